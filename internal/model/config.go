package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Session modes for the mail transport.
const (
	SessionPerCall = "per_call"
	SessionPooled  = "pooled"
)

// IMAPConfig holds the IMAP server settings.
type IMAPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	// TLS selects implicit TLS; false means STARTTLS.
	TLS bool `mapstructure:"tls" yaml:"tls"`
}

// SMTPConfig holds the SMTP server settings.
type SMTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
	TLS  bool   `mapstructure:"tls" yaml:"tls"`
}

// AccountConfig holds the mailbox credentials. An empty password is
// resolved from the system keyring.
type AccountConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// MailConfig controls how sessions are opened.
type MailConfig struct {
	SessionMode string `mapstructure:"session_mode" yaml:"session_mode"`
	Mailbox     string `mapstructure:"mailbox" yaml:"mailbox"`
}

// BreakerConfig tunes the circuit breaker around the LLM backend.
type BreakerConfig struct {
	MaxFailures int `mapstructure:"max_failures" yaml:"max_failures"`
	OpenSeconds int `mapstructure:"open_seconds" yaml:"open_seconds"`
}

// AIConfig holds settings for the content intelligence backend.
type AIConfig struct {
	Provider  string        `mapstructure:"provider" yaml:"provider"`
	Model     string        `mapstructure:"model" yaml:"model"`
	MaxTokens int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Breaker   BreakerConfig `mapstructure:"breaker" yaml:"breaker"`
}

// ProcessorConfig holds batch sizing.
type ProcessorConfig struct {
	Quota        int `mapstructure:"quota" yaml:"quota"`
	ManualWindow int `mapstructure:"manual_window" yaml:"manual_window"`
}

// SchedulerConfig holds the autonomous loop timing.
type SchedulerConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
	BackoffSec  int `mapstructure:"backoff_sec" yaml:"backoff_sec"`
}

// PreferencesConfig locates the persisted preference record.
type PreferencesConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// StoreConfig locates the SQLite history database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig holds the web boundary settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// RateLimit is the number of requests allowed per IP per minute.
	RateLimit int `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP        IMAPConfig        `mapstructure:"imap" yaml:"imap"`
	SMTP        SMTPConfig        `mapstructure:"smtp" yaml:"smtp"`
	Account     AccountConfig     `mapstructure:"account" yaml:"account"`
	Mail        MailConfig        `mapstructure:"mail" yaml:"mail"`
	AI          AIConfig          `mapstructure:"ai" yaml:"ai"`
	Processor   ProcessorConfig   `mapstructure:"processor" yaml:"processor"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler" yaml:"scheduler"`
	Preferences PreferencesConfig `mapstructure:"preferences" yaml:"preferences"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// EnvPrefix is prepended to every environment override,
// e.g. INBOXAGENT_ACCOUNT_PASSWORD.
const EnvPrefix = "INBOXAGENT"

// DefaultConfigDir returns ~/.config/inboxagent, or "." when the home
// directory cannot be resolved.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "inboxagent")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.tls", true)
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", "587")
	v.SetDefault("smtp.tls", false)
	v.SetDefault("account.username", "")
	v.SetDefault("account.password", "")
	v.SetDefault("mail.session_mode", SessionPerCall)
	v.SetDefault("mail.mailbox", "INBOX")
	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.breaker.max_failures", 5)
	v.SetDefault("ai.breaker.open_seconds", 30)
	v.SetDefault("processor.quota", 10)
	v.SetDefault("processor.manual_window", 50)
	v.SetDefault("scheduler.interval_sec", 300)
	v.SetDefault("scheduler.backoff_sec", 60)
	v.SetDefault("preferences.path", "user_preferences.json")
	v.SetDefault("store.path", filepath.Join(DefaultConfigDir(), "inboxagent.db"))
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with EnvPrefix override file values. A
// missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Mail.SessionMode != SessionPooled {
		cfg.Mail.SessionMode = SessionPerCall
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("imap", cfg.IMAP)
	v.Set("smtp", cfg.SMTP)
	v.Set("account", AccountConfig{Username: cfg.Account.Username})
	v.Set("mail", cfg.Mail)
	v.Set("ai", AIConfig{
		Provider:  cfg.AI.Provider,
		Model:     cfg.AI.Model,
		MaxTokens: cfg.AI.MaxTokens,
		BaseURL:   cfg.AI.BaseURL,
		Breaker:   cfg.AI.Breaker,
	})
	v.Set("processor", cfg.Processor)
	v.Set("scheduler", cfg.Scheduler)
	v.Set("preferences", cfg.Preferences)
	v.Set("store", cfg.Store)
	v.Set("server", cfg.Server)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
