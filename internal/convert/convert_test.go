package convert

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nferrors "namefix/internal/errors"
)

func TestCanConvertSupportedFormats(t *testing.T) {
	s := NewExecService("true")
	assert.True(t, s.CanConvert(".heic"))
	assert.True(t, s.CanConvert("PNG"))
	assert.False(t, s.CanConvert(".txt"))
}

func TestResolveDestCollisionSuffix(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "photo.heic")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpeg"), []byte("x"), 0644))

	s := NewExecService("true")
	dest := s.resolveDest(srcPath, Options{OutputFormat: "jpeg"})
	assert.Equal(t, filepath.Join(dir, "photo_2.jpeg"), dest)
}

func TestConvertMissingBinaryReturnsUnsupportedFormatError(t *testing.T) {
	s := NewExecService("namefix-nonexistent-converter-binary")
	_, err := s.Convert(context.Background(), "/tmp/x.heic", Options{OutputFormat: "jpeg"})
	require.Error(t, err)
	assert.Equal(t, nferrors.UnsupportedFormat, nferrors.Kind(err))
}

func TestConvertSucceedsWithTrueBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX 'true' binary")
	}
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "photo.heic")
	require.NoError(t, os.WriteFile(srcPath, []byte("x"), 0644))

	s := NewExecService("true")
	result, err := s.Convert(context.Background(), srcPath, Options{OutputFormat: "jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "jpeg", result.Format)
	assert.Equal(t, filepath.Join(dir, "photo.jpeg"), result.DestPath)
}
