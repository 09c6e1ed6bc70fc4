// Package prefs holds the process-wide user preferences and persists them
// as a human-readable JSON file.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/nhle/inbox-triage/internal/model"
)

// PersistenceError reports a failed save. The in-memory record stays
// authoritative when it occurs.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("saving preferences to %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store guards the single preferences record.
type Store struct {
	mu      sync.RWMutex
	path    string
	current model.UserPreferences
	logger  *log.Logger
}

// Open loads preferences from path. A missing or unreadable file yields the
// defaults and is never an error.
func Open(path string, logger *log.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger.WithPrefix("prefs"),
	}
	s.current = s.load()
	return s
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() model.UserPreferences {
	v := newViper(s.path)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
			s.logger.Info("no preferences file, using defaults", "path", s.path)
		} else {
			s.logger.Warn("unreadable preferences file, using defaults", "path", s.path, "err", err)
		}
		return model.DefaultPreferences()
	}

	var p model.UserPreferences
	if err := v.Unmarshal(&p); err != nil {
		s.logger.Warn("malformed preferences, using defaults", "path", s.path, "err", err)
		return model.DefaultPreferences()
	}

	if p.AutoCategories == nil {
		p.AutoCategories = model.DefaultPreferences().AutoCategories
	}

	return p
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	d := model.DefaultPreferences()
	v.SetDefault("auto_reply_enabled", d.AutoReplyEnabled)
	v.SetDefault("response_tone", d.ResponseTone)
	v.SetDefault("signature", d.Signature)
	v.SetDefault("working_hours.start", d.WorkingHours.Start)
	v.SetDefault("working_hours.end", d.WorkingHours.End)

	return v
}

// Get returns a snapshot of the current preferences.
func (s *Store) Get() model.UserPreferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update merges patch into the current record and persists the result
// before returning. A failed save is logged and the merged record is kept.
func (s *Store) Update(patch model.PreferencesPatch) model.UserPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = patch.Apply(s.current)
	if err := s.save(s.current); err != nil {
		s.logger.Error("persisting preferences failed", "err", err)
	}

	return s.current.Clone()
}

// Replace swaps the whole record, for editors that work on a full copy.
func (s *Store) Replace(p model.UserPreferences) model.UserPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = p.Clone()
	if err := s.save(s.current); err != nil {
		s.logger.Error("persisting preferences failed", "err", err)
	}

	return s.current.Clone()
}

// Save writes the current record, returning any PersistenceError.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.save(s.current)
}

// save rewrites the whole file through a temp file and rename.
func (s *Store) save(p model.UserPreferences) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &PersistenceError{Path: s.path, Err: err}
		}
	}

	cats := make([]string, 0, len(p.AutoCategories))
	for _, c := range p.AutoCategories {
		cats = append(cats, string(c))
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("auto_reply_enabled", p.AutoReplyEnabled)
	v.Set("response_tone", p.ResponseTone)
	v.Set("signature", p.Signature)
	v.Set("working_hours", map[string]any{
		"start": p.WorkingHours.Start,
		"end":   p.WorkingHours.End,
	})
	v.Set("auto_categories", cats)

	// viper picks the encoder from the extension.
	tmp := s.path + ".tmp.json"
	if err := v.WriteConfigAs(tmp); err != nil {
		return &PersistenceError{Path: s.path, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return &PersistenceError{Path: s.path, Err: err}
	}

	return nil
}
