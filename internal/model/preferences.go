package model

import (
	"slices"
	"strings"
)

// WorkingHours is the user's working window, in whole hours of the day.
type WorkingHours struct {
	Start int `json:"start" mapstructure:"start"`
	End   int `json:"end" mapstructure:"end"`
}

// UserPreferences is the single process-wide user configuration.
type UserPreferences struct {
	AutoReplyEnabled bool         `json:"auto_reply_enabled" mapstructure:"auto_reply_enabled"`
	ResponseTone     string       `json:"response_tone" mapstructure:"response_tone"`
	Signature        string       `json:"signature" mapstructure:"signature"`
	WorkingHours     WorkingHours `json:"working_hours" mapstructure:"working_hours"`
	AutoCategories   []Category   `json:"auto_categories" mapstructure:"auto_categories"`
}

// DefaultAutoReplyCategories is the allow-list used when none is configured.
var DefaultAutoReplyCategories = []Category{
	CategoryCalendarInvite,
	CategoryNewsletter,
	CategoryNotification,
	CategoryConfirmation,
}

// DefaultPreferences returns the record used when nothing is persisted yet.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		AutoReplyEnabled: true,
		ResponseTone:     "professional",
		Signature:        "Best regards",
		WorkingHours:     WorkingHours{Start: 9, End: 17},
		AutoCategories:   []Category{CategoryCalendarInvite, CategoryNewsletter},
	}
}

// AllowsAutoReply reports whether c is in the auto-reply allow-list.
func (p UserPreferences) AllowsAutoReply(c Category) bool {
	return slices.Contains(p.AutoCategories, c)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p UserPreferences) Clone() UserPreferences {
	out := p
	out.AutoCategories = slices.Clone(p.AutoCategories)
	return out
}

// PreferencesPatch is a partial update. Nil fields are left untouched.
type PreferencesPatch struct {
	AutoReplyEnabled *bool         `json:"auto_reply_enabled,omitempty"`
	ResponseTone     *string       `json:"response_tone,omitempty"`
	Signature        *string       `json:"signature,omitempty"`
	WorkingHours     *WorkingHours `json:"working_hours,omitempty"`
	AutoCategories   []Category    `json:"auto_categories,omitempty"`
}

// Apply shallow-merges the patch into p and returns the result.
func (patch PreferencesPatch) Apply(p UserPreferences) UserPreferences {
	out := p.Clone()
	if patch.AutoReplyEnabled != nil {
		out.AutoReplyEnabled = *patch.AutoReplyEnabled
	}
	if patch.ResponseTone != nil {
		out.ResponseTone = *patch.ResponseTone
	}
	if patch.Signature != nil {
		out.Signature = *patch.Signature
	}
	if patch.WorkingHours != nil {
		out.WorkingHours = *patch.WorkingHours
	}
	if patch.AutoCategories != nil {
		cats := make([]Category, 0, len(patch.AutoCategories))
		for _, c := range patch.AutoCategories {
			cats = append(cats, Category(normalizeLabel(string(c))))
		}
		out.AutoCategories = cats
	}
	return out
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, ".\"'`*")
}
