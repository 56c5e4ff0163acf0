package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"namefix/internal/config"
	"namefix/pkg/types"
)

func TestGetWritesDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	s := config.New(path)
	cfg, err := s.Get()
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.Len(t, cfg.Profiles, 3)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestGetFallsBackToDefaultsOnMalformedFileWithoutOverwriting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	s := config.New(path)
	cfg, err := s.Get()
	require.NoError(t, err)
	assert.True(t, cfg.DryRun)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not json", string(onDisk))
}

func TestSetMergesValidatesAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	watchDir := filepath.Join(dir, "Downloads")
	require.NoError(t, os.MkdirAll(watchDir, 0755))

	s := config.New(path)
	_, err := s.Get()
	require.NoError(t, err)

	updated, err := s.Set(types.Config{WatchDirs: []string{watchDir}, DryRun: false})
	require.NoError(t, err)

	assert.Equal(t, watchDir, updated.WatchDir)
	assert.False(t, updated.DryRun)

	info, statErr := os.Stat(path)
	require.NoError(t, statErr)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestValidateDedupesWatchDirsPreservingOrder(t *testing.T) {
	cfg := types.Config{WatchDirs: []string{"/a", "/b", "/a"}}
	out := config.Validate(cfg)
	assert.Equal(t, []string{"/a", "/b"}, out.WatchDirs)
	assert.Equal(t, "/a", out.WatchDir)
}

func TestValidateReinjectsMissingBuiltinProfiles(t *testing.T) {
	cfg := types.Config{Profiles: []types.Profile{{ID: "custom", Enabled: true, Pattern: "*.txt"}}}
	out := config.Validate(cfg)

	ids := make(map[string]bool)
	for _, p := range out.Profiles {
		ids[p.ID] = true
	}
	assert.True(t, ids["custom"])
	assert.True(t, ids["heic-convert"])
	assert.True(t, ids["screenshots"])
	assert.True(t, ids["screen-recordings"])
}

func TestValidateDropsProfileWithInvalidAction(t *testing.T) {
	cfg := types.Config{Profiles: []types.Profile{
		{ID: "bad", Enabled: true, Pattern: "*.txt", Action: "not-a-real-action"},
	}}
	out := config.Validate(cfg)

	for _, p := range out.Profiles {
		assert.NotEqual(t, "bad", p.ID)
	}
}

func TestValidateMigratesLegacyPrefixIncludeIntoProfiles(t *testing.T) {
	cfg := types.Config{
		Prefix:  "Screenshot",
		Include: []string{"Screenshot*", "Screen Recording*"},
	}
	out := config.Validate(cfg)

	found := false
	for _, p := range out.Profiles {
		if p.ID == "legacy-0" {
			found = true
			assert.Equal(t, "Screenshot*", p.Pattern)
			assert.Equal(t, "Screenshot", p.Prefix)
		}
	}
	assert.True(t, found)
}

func TestOnChangeDeliversEagerlyAndOnFutureChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	s := config.New(path)
	_, err := s.Get()
	require.NoError(t, err)

	var received []bool
	unsub := s.OnChange(func(c types.Config) { received = append(received, c.DryRun) })
	defer unsub()

	require.Len(t, received, 1)
	assert.True(t, received[0])

	_, err = s.Set(types.Config{DryRun: false})
	require.NoError(t, err)
	require.Len(t, received, 2)
	assert.False(t, received[1])
}

func TestUnsubscribeStopsFutureDelivery(t *testing.T) {
	dir := t.TempDir()
	s := config.New(filepath.Join(dir, "config.json"))
	_, err := s.Get()
	require.NoError(t, err)

	calls := 0
	unsub := s.OnChange(func(types.Config) { calls++ })
	unsub()

	_, err = s.Set(types.Config{DryRun: false})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDefaultsRoundTripThroughJSON(t *testing.T) {
	data, err := json.Marshal(config.Defaults())
	require.NoError(t, err)

	var decoded types.Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, config.Defaults().DryRun, decoded.DryRun)
}
