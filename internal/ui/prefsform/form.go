// Package prefsform edits user preferences in an interactive huh form.
package prefsform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/inbox-triage/internal/model"
)

var tones = []string{"professional", "friendly", "casual", "formal", "concise"}

// Values holds the form fields huh binds to.
type Values struct {
	AutoReplyEnabled bool
	ResponseTone     string
	Signature        string
	Start            string
	End              string
	AutoCategories   []string
}

// FromPreferences fills form values from p.
func FromPreferences(p model.UserPreferences) *Values {
	cats := make([]string, 0, len(p.AutoCategories))
	for _, c := range p.AutoCategories {
		cats = append(cats, string(c))
	}
	return &Values{
		AutoReplyEnabled: p.AutoReplyEnabled,
		ResponseTone:     p.ResponseTone,
		Signature:        p.Signature,
		Start:            strconv.Itoa(p.WorkingHours.Start),
		End:              strconv.Itoa(p.WorkingHours.End),
		AutoCategories:   cats,
	}
}

// Preferences converts validated form values back into a record.
func (v *Values) Preferences() (model.UserPreferences, error) {
	start, err := parseHour(v.Start)
	if err != nil {
		return model.UserPreferences{}, fmt.Errorf("start hour: %w", err)
	}
	end, err := parseHour(v.End)
	if err != nil {
		return model.UserPreferences{}, fmt.Errorf("end hour: %w", err)
	}

	cats := make([]model.Category, 0, len(v.AutoCategories))
	for _, c := range v.AutoCategories {
		cats = append(cats, model.ParseCategory(c))
	}

	return model.UserPreferences{
		AutoReplyEnabled: v.AutoReplyEnabled,
		ResponseTone:     strings.TrimSpace(v.ResponseTone),
		Signature:        strings.TrimSpace(v.Signature),
		WorkingHours:     model.WorkingHours{Start: start, End: end},
		AutoCategories:   cats,
	}, nil
}

func parseHour(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if n < 0 || n > 24 {
		return 0, fmt.Errorf("%d is outside 0-24", n)
	}
	return n, nil
}

func validateHour(s string) error {
	_, err := parseHour(s)
	return err
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// Build returns the form bound to v.
func Build(v *Values) *huh.Form {
	toneOpts := make([]huh.Option[string], 0, len(tones)+1)
	known := false
	for _, t := range tones {
		toneOpts = append(toneOpts, huh.NewOption(t, t))
		known = known || t == v.ResponseTone
	}
	if !known && v.ResponseTone != "" {
		toneOpts = append(toneOpts, huh.NewOption(v.ResponseTone, v.ResponseTone))
	}

	catOpts := make([]huh.Option[string], 0, len(model.Categories))
	for _, c := range model.Categories {
		catOpts = append(catOpts, huh.NewOption(string(c), string(c)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Auto-reply").
				Description("Send generated replies automatically for allowed categories").
				Affirmative("On").
				Negative("Off").
				Value(&v.AutoReplyEnabled),
			huh.NewSelect[string]().
				Title("Response tone").
				Options(toneOpts...).
				Value(&v.ResponseTone),
			huh.NewText().
				Title("Signature").
				Description("Appended to generated replies").
				Value(&v.Signature).
				Validate(validateRequired("Signature")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Working hours start").
				Placeholder("9").
				Value(&v.Start).
				Validate(validateHour),
			huh.NewInput().
				Title("Working hours end").
				Placeholder("17").
				Value(&v.End).
				Validate(validateHour),
			huh.NewMultiSelect[string]().
				Title("Auto-reply categories").
				Description("Only these categories are ever replied to automatically").
				Options(catOpts...).
				Value(&v.AutoCategories),
		),
	)
}

// Run shows the form for p and returns the edited record. Aborting the
// form returns huh.ErrUserAborted.
func Run(p model.UserPreferences) (model.UserPreferences, error) {
	v := FromPreferences(p)
	if err := Build(v).Run(); err != nil {
		return model.UserPreferences{}, err
	}
	return v.Preferences()
}
