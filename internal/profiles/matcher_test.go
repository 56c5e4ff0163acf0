package profiles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"namefix/pkg/types"
)

func TestMatchFirstMatchWinsByPriority(t *testing.T) {
	m := Build([]types.Profile{
		{ID: "low", Enabled: true, Pattern: "*.png", Priority: 5},
		{ID: "high", Enabled: true, Pattern: "*.png", Priority: 1},
	})

	got := m.Match("photo.png")
	assert.NotNil(t, got)
	assert.Equal(t, "high", got.ID)
}

func TestMatchSkipsDisabled(t *testing.T) {
	m := Build([]types.Profile{
		{ID: "disabled", Enabled: false, Pattern: "*.png"},
	})
	assert.Nil(t, m.Match("photo.png"))
}

func TestMatchDotfilesNeverMatch(t *testing.T) {
	m := Build([]types.Profile{
		{ID: "catch-all", Enabled: true, Pattern: "*"},
	})
	assert.Nil(t, m.Match(".hidden"))
}

func TestMatchRegexProfile(t *testing.T) {
	m := Build([]types.Profile{
		{ID: "regex", Enabled: true, IsRegex: true, Pattern: `^IMG_\d+\.jpg$`},
	})
	assert.True(t, m.Test("IMG_1234.jpg"))
	assert.False(t, m.Test("DSC_1234.jpg"))
}

func TestBuildSkipsInvalidRegex(t *testing.T) {
	m := Build([]types.Profile{
		{ID: "broken", Enabled: true, IsRegex: true, Pattern: "("},
		{ID: "fine", Enabled: true, Pattern: "*.png"},
	})
	assert.Len(t, m.entries, 1)
	assert.Equal(t, "fine", m.entries[0].profile.ID)
}

func TestGlobMatchIsCaseInsensitive(t *testing.T) {
	m := Build([]types.Profile{
		{ID: "heic", Enabled: true, Pattern: "*.heic"},
	})
	assert.True(t, m.Test("Photo.HEIC"))
}
