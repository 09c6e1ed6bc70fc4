package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-triage/internal/logging"
	"github.com/nhle/inbox-triage/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestOpenMissingFileUsesDefaults(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "prefs.json"), logging.Discard())
	assert.Equal(t, model.DefaultPreferences(), s.Get())
}

func TestOpenCorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := Open(path, logging.Discard())
	assert.Equal(t, model.DefaultPreferences(), s.Get())
}

func TestUpdateMergesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s := Open(path, logging.Discard())

	s.Update(model.PreferencesPatch{ResponseTone: ptr("friendly")})
	got := s.Update(model.PreferencesPatch{Signature: ptr("X")})
	assert.Equal(t, "X", got.Signature)
	assert.Equal(t, "friendly", got.ResponseTone)

	reloaded := Open(path, logging.Discard()).Get()
	assert.Equal(t, "X", reloaded.Signature)
	assert.Equal(t, "friendly", reloaded.ResponseTone)
	assert.True(t, reloaded.AutoReplyEnabled)
	assert.Equal(t, model.WorkingHours{Start: 9, End: 17}, reloaded.WorkingHours)
	assert.Equal(t, model.DefaultPreferences().AutoCategories, reloaded.AutoCategories)
}

func TestPersistedFileIsReadableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s := Open(path, logging.Discard())
	s.Update(model.PreferencesPatch{
		AutoReplyEnabled: ptr(false),
		AutoCategories:   []model.Category{"Newsletter", " urgent "},
	})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, false, doc["auto_reply_enabled"])
	assert.Equal(t, []any{"newsletter", "urgent"}, doc["auto_categories"])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestUpdatePersistenceFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	s := Open(filepath.Join(blocker, "prefs.json"), logging.Discard())
	got := s.Update(model.PreferencesPatch{Signature: ptr("kept")})

	assert.Equal(t, "kept", got.Signature)
	assert.Equal(t, "kept", s.Get().Signature)

	var perr *PersistenceError
	assert.ErrorAs(t, s.Save(), &perr)
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "prefs.json"), logging.Discard())

	snap := s.Get()
	snap.AutoCategories[0] = model.CategoryUrgent

	assert.Equal(t, model.CategoryCalendarInvite, s.Get().AutoCategories[0])
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s := Open(path, logging.Discard())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 20 {
			s.Update(model.PreferencesPatch{Signature: ptr("sig")})
		}
	}()
	go func() {
		defer wg.Done()
		for range 20 {
			s.Update(model.PreferencesPatch{ResponseTone: ptr("casual")})
		}
	}()
	wg.Wait()

	reloaded := Open(path, logging.Discard()).Get()
	assert.Equal(t, "sig", reloaded.Signature)
	assert.Equal(t, "casual", reloaded.ResponseTone)
}

func TestReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s := Open(path, logging.Discard())

	p := model.DefaultPreferences()
	p.WorkingHours = model.WorkingHours{Start: 8, End: 16}
	s.Replace(p)

	assert.Equal(t, 8, Open(path, logging.Discard()).Get().WorkingHours.Start)
}

func TestSaveRoundTripsAndLeavesNoTempFile(t *testing.T) {
	for _, name := range []string{"user_preferences.json", "preferences"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, name)
			s := Open(path, logging.Discard())

			s.Update(model.PreferencesPatch{Signature: ptr("X")})
			require.NoError(t, s.Save())

			assert.Equal(t, "X", Open(path, logging.Discard()).Get().Signature)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, name, entries[0].Name())
		})
	}
}
