package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/nhle/inbox-triage/internal/credential"
	"github.com/nhle/inbox-triage/internal/intel"
	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/prefs"
	"github.com/nhle/inbox-triage/internal/processor"
	"github.com/nhle/inbox-triage/internal/scheduler"
	"github.com/nhle/inbox-triage/internal/store"
)

// ErrMissingCredential is returned when a required secret is in neither
// the config, the environment, nor the keyring.
var ErrMissingCredential = errors.New("missing credential")

// App holds every long-lived component of the agent.
type App struct {
	Config    *model.AppConfig
	Logger    *log.Logger
	Mailbox   *mail.Mailbox
	Store     *store.SQLiteStore
	Intel     *intel.Service
	Prefs     *prefs.Store
	Processor *processor.Processor
	Scheduler *scheduler.Scheduler
}

// New wires the agent from cfg. ring may be nil, in which case secrets
// must come from the config or the environment.
func New(cfg *model.AppConfig, ring *credential.Ring, logger *log.Logger) (*App, error) {
	password, err := resolve(ring, cfg.Account.Password, credential.KeyIMAPPassword)
	if err != nil {
		return nil, fmt.Errorf("mail password: %w", err)
	}

	apiKey, err := resolve(ring, firstNonEmpty(cfg.AI.APIKey, providerEnvKey(cfg.AI.Provider)), credential.KeyAIAPIKey)
	if err != nil {
		return nil, fmt.Errorf("ai api key: %w", err)
	}

	completer, err := intel.NewCompleter(cfg.AI, apiKey, logger)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	imapCfg := mail.ServerConfig{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: cfg.Account.Username,
		Password: password,
		TLS:      cfg.IMAP.TLS,
	}
	smtpCfg := mail.ServerConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.Account.Username,
		Password: password,
		TLS:      cfg.SMTP.TLS,
	}
	mailbox := mail.NewMailbox(
		mail.NewIMAPClient(imapCfg, cfg.Mail.Mailbox, cfg.Mail.SessionMode == model.SessionPooled),
		mail.NewSender(smtpCfg),
		logger,
	)

	svc := intel.NewService(completer, st, logger)
	pstore := prefs.Open(cfg.Preferences.Path, logger)

	proc := processor.New(mailbox, svc, pstore, logger,
		processor.WithQuota(cfg.Processor.Quota),
		processor.WithManualWindow(cfg.Processor.ManualWindow),
		processor.WithHistory(st),
	)
	sched := scheduler.New(proc, pstore, logger, scheduler.FromConfig(cfg.Scheduler)...)

	logger.Info("agent ready",
		"imap", cfg.IMAP.Host,
		"session", cfg.Mail.SessionMode,
		"provider", cfg.AI.Provider,
		"quota", proc.Quota(),
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Mailbox:   mailbox,
		Store:     st,
		Intel:     svc,
		Prefs:     pstore,
		Processor: proc,
		Scheduler: sched,
	}, nil
}

// Close stops the scheduler and releases connections.
func (a *App) Close() error {
	a.Scheduler.Stop()
	return errors.Join(a.Mailbox.Close(), a.Store.Close())
}

func resolve(ring *credential.Ring, explicit, key string) (string, error) {
	v, err := ring.Resolve(explicit, key)
	if errors.Is(err, credential.ErrNotFound) {
		return "", fmt.Errorf("%w: set %s with `inboxagent credential set %s`", ErrMissingCredential, key, key)
	}
	return v, err
}

func providerEnvKey(provider string) string {
	if provider == intel.ProviderOpenAI {
		return os.Getenv("OPENAI_API_KEY")
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
