package pathutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDirHonorsNamefixHome(t *testing.T) {
	t.Setenv("NAMEFIX_HOME", "/tmp/namefix-home")
	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/namefix-home", dir)
}

func TestConfigDirHonorsXDG(t *testing.T) {
	t.Setenv("NAMEFIX_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-config", "namefix"), dir)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, "Pictures"), ExpandHome("~/Pictures"))
	assert.Equal(t, "/already/absolute", ExpandHome("/already/absolute"))
}

func TestNormalize(t *testing.T) {
	norm, err := Normalize("  ~/Pictures/../Pictures  ")
	require.NoError(t, err)
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "Pictures"), norm)

	empty, err := Normalize("   ")
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}
