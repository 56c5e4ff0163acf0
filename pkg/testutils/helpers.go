package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateTestFilesWithContent creates test files with specific content
func CreateTestFilesWithContent(t *testing.T, dir string, files map[string]string) {
	for name, content := range files {
		err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
		require.NoError(t, err)
	}
}

// CreateTestFilesWithDefault creates test files with default content
func CreateTestFilesWithDefault(t *testing.T, dir string) {
	files := map[string]string{
		"test1.txt": "test content 1",
		"test2.txt": "test content 2",
		"test3.jpg": "image content",
	}
	CreateTestFilesWithContent(t, dir, files)
}

