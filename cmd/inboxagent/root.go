package main

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nhle/inbox-triage/internal/app"
	"github.com/nhle/inbox-triage/internal/credential"
	"github.com/nhle/inbox-triage/internal/logging"
	"github.com/nhle/inbox-triage/internal/model"
)

var (
	configPath string
	envFile    string
	logLevel   string

	cfg    *model.AppConfig
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:           "inboxagent",
	Short:         "Triage an IMAP inbox and answer routine mail automatically",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		loaded, err := model.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		cfg = loaded
		logger = logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// openRing returns the credential ring, or nil when no backend is usable.
func openRing() *credential.Ring {
	ring, err := credential.Open(model.DefaultConfigDir())
	if err != nil {
		logger.Warn("keyring unavailable, secrets must come from config or environment", "err", err)
		return nil
	}
	return ring
}

func openApp(l *log.Logger) (*app.App, error) {
	return app.New(cfg, openRing(), l)
}

// fileLogger redirects logs away from the terminal while a TUI owns it.
func fileLogger() (*log.Logger, io.Closer, error) {
	dir := model.DefaultConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "inboxagent.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return logging.New(f, cfg.Log.Level, cfg.Log.Format), f, nil
}
