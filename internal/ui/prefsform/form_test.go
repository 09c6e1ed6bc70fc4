package prefsform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-triage/internal/model"
)

func TestValuesRoundTrip(t *testing.T) {
	p := model.DefaultPreferences()
	p.ResponseTone = "friendly"

	got, err := FromPreferences(p).Preferences()
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestValuesRejectBadHours(t *testing.T) {
	v := FromPreferences(model.DefaultPreferences())
	v.Start = "nine"
	_, err := v.Preferences()
	assert.Error(t, err)

	v.Start = "9"
	v.End = "25"
	_, err = v.Preferences()
	assert.Error(t, err)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateHour(" 17 "))
	assert.Error(t, validateHour("-1"))
	assert.Error(t, validateRequired("Signature")("  "))
	assert.NoError(t, validateRequired("Signature")("Bob"))
}

func TestBuildKeepsUnknownTone(t *testing.T) {
	v := FromPreferences(model.DefaultPreferences())
	v.ResponseTone = "pirate"
	assert.NotNil(t, Build(v))
}
