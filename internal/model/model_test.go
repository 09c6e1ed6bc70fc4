package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
	}{
		{"newsletter", CategoryNewsletter},
		{"  Calendar_Invite\n", CategoryCalendarInvite},
		{"URGENT.", CategoryUrgent},
		{"`business`", CategoryBusiness},
		{"spam", CategoryUnknown},
		{"", CategoryUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCategory(tt.raw), "raw=%q", tt.raw)
	}
}

func TestPreferencesPatchApply(t *testing.T) {
	base := DefaultPreferences()
	sig := "X"

	got := PreferencesPatch{Signature: &sig}.Apply(base)

	assert.Equal(t, "X", got.Signature)
	assert.Equal(t, base.ResponseTone, got.ResponseTone)
	assert.Equal(t, base.AutoReplyEnabled, got.AutoReplyEnabled)
	assert.Equal(t, base.AutoCategories, got.AutoCategories)
	assert.Equal(t, "Best regards", base.Signature, "base must not be mutated")
}

func TestPreferencesPatchNormalizesCategories(t *testing.T) {
	got := PreferencesPatch{
		AutoCategories: []Category{" Newsletter ", "NOTIFICATION"},
	}.Apply(DefaultPreferences())

	assert.Equal(t, []Category{CategoryNewsletter, CategoryNotification}, got.AutoCategories)
	assert.True(t, got.AllowsAutoReply(CategoryNewsletter))
	assert.False(t, got.AllowsAutoReply(CategoryPersonal))
}

func TestCloneIsDeep(t *testing.T) {
	p := DefaultPreferences()
	c := p.Clone()
	c.AutoCategories[0] = CategoryUrgent

	assert.Equal(t, CategoryCalendarInvite, p.AutoCategories[0])
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "imap.gmail.com", cfg.IMAP.Host)
	assert.Equal(t, "993", cfg.IMAP.Port)
	assert.Equal(t, "587", cfg.SMTP.Port)
	assert.Equal(t, 10, cfg.Processor.Quota)
	assert.Equal(t, 300, cfg.Scheduler.IntervalSec)
	assert.Equal(t, 60, cfg.Scheduler.BackoffSec)
	assert.Equal(t, SessionPerCall, cfg.Mail.SessionMode)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "imap:\n  host: mail.example.com\nprocessor:\n  quota: 7\nmail:\n  session_mode: pooled\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("INBOXAGENT_ACCOUNT_USERNAME", "me@example.com")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com", cfg.IMAP.Host)
	assert.Equal(t, 7, cfg.Processor.Quota)
	assert.Equal(t, SessionPooled, cfg.Mail.SessionMode)
	assert.Equal(t, "me@example.com", cfg.Account.Username)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.IMAP.Host = "imap.example.org"
	cfg.Account.Password = "secret"

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "imap.example.org", loaded.IMAP.Host)
	assert.Empty(t, loaded.Account.Password, "passwords are never written to disk")
}
