package fileutils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsnap/vaultsnap/fileutils"
)

func TestCopyFile(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "src.zip")
	dstPath := filepath.Join(t.TempDir(), "dst.zip")

	content := []byte("archive bytes")
	require.NoError(t, os.WriteFile(srcPath, content, 0600))

	written, err := fileutils.CopyFile(srcPath, dstPath)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), written)

	copied, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, content, copied)
}

func TestCopyFile_MissingSource(t *testing.T) {
	dstPath := filepath.Join(t.TempDir(), "dst.zip")

	_, err := fileutils.CopyFile(filepath.Join(t.TempDir(), "missing.zip"), dstPath)
	assert.Error(t, err)
	assert.NoFileExists(t, dstPath)
}

func TestCopyFile_OverwritesDestination(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "src.zip")
	dstPath := filepath.Join(t.TempDir(), "dst.zip")

	require.NoError(t, os.WriteFile(srcPath, []byte("new"), 0600))
	require.NoError(t, os.WriteFile(dstPath, []byte("old content"), 0600))

	_, err := fileutils.CopyFile(srcPath, dstPath)
	require.NoError(t, err)

	copied, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), copied)
}
