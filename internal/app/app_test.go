package app

import (
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-triage/internal/credential"
	"github.com/nhle/inbox-triage/internal/logging"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/scheduler"
)

func testConfig(t *testing.T) *model.AppConfig {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	dir := t.TempDir()
	return &model.AppConfig{
		IMAP:        model.IMAPConfig{Host: "127.0.0.1", Port: "1", TLS: true},
		SMTP:        model.SMTPConfig{Host: "127.0.0.1", Port: "1"},
		Account:     model.AccountConfig{Username: "agent@example.com"},
		Mail:        model.MailConfig{SessionMode: model.SessionPerCall, Mailbox: "INBOX"},
		AI:          model.AIConfig{Provider: "anthropic"},
		Processor:   model.ProcessorConfig{Quota: 5, ManualWindow: 20},
		Scheduler:   model.SchedulerConfig{IntervalSec: 60, BackoffSec: 10},
		Preferences: model.PreferencesConfig{Path: filepath.Join(dir, "prefs.json")},
		Store:       model.StoreConfig{Path: filepath.Join(dir, "data", "agent.db")},
	}
}

func fullRing() *credential.Ring {
	return credential.NewRing(keyring.NewArrayKeyring([]keyring.Item{
		{Key: credential.KeyIMAPPassword, Data: []byte("imap-secret")},
		{Key: credential.KeyAIAPIKey, Data: []byte("ai-secret")},
	}))
}

func TestNewWiresComponents(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, fullRing(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, 5, a.Processor.Quota())
	assert.Equal(t, scheduler.Idle, a.Scheduler.State())
	assert.Equal(t, cfg.Preferences.Path, a.Prefs.Path())
	assert.FileExists(t, cfg.Store.Path)
}

func TestNewMissingMailPassword(t *testing.T) {
	ring := credential.NewRing(keyring.NewArrayKeyring([]keyring.Item{
		{Key: credential.KeyAIAPIKey, Data: []byte("ai-secret")},
	}))

	_, err := New(testConfig(t), ring, logging.Discard())
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestNewWithoutRingUsesConfigAndEnvironment(t *testing.T) {
	cfg := testConfig(t)
	cfg.Account.Password = "from-config"
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	a, err := New(cfg, nil, logging.Discard())
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestNewMissingAPIKeyWithoutRing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Account.Password = "from-config"

	_, err := New(cfg, nil, logging.Discard())
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.Provider = "gemini"

	_, err := New(cfg, fullRing(), logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ai provider")
}
