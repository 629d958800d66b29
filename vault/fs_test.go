package vault_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsnap/vaultsnap/vault"
)

func writeVaultFile(t *testing.T, root string, rel string, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFSSource_Files(t *testing.T) {
	root := t.TempDir()
	writeVaultFile(t, root, "notes/today.md", "today")
	writeVaultFile(t, root, "notes/ideas/one.md", "one")
	writeVaultFile(t, root, "readme.md", "readme")

	src := vault.NewFSSource(root, "", zerolog.New(io.Discard))
	assert.Equal(t, filepath.Base(root), src.Name())

	files, err := src.Files(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 3)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path())
	}
	assert.True(t, sort.StringsAreSorted(paths), "walk order should be deterministic")
	assert.ElementsMatch(t, []string{"notes/today.md", "notes/ideas/one.md", "readme.md"}, paths)
}

func TestFSSource_SkipsHidden(t *testing.T) {
	root := t.TempDir()
	writeVaultFile(t, root, "note.md", "note")
	writeVaultFile(t, root, ".vaultsnap/settings.json", "{}")
	writeVaultFile(t, root, ".trash/gone.md", "gone")

	src := vault.NewFSSource(root, "myvault", zerolog.New(io.Discard))
	assert.Equal(t, "myvault", src.Name())

	files, err := src.Files(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "note.md", files[0].Path())
}

func TestFSSource_OpenReadsContent(t *testing.T) {
	root := t.TempDir()
	writeVaultFile(t, root, "note.md", "the content")

	src := vault.NewFSSource(root, "", zerolog.New(io.Discard))
	files, err := src.Files(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)

	r, err := files[0].Open()
	require.NoError(t, err)
	defer r.Close()

	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "the content", string(content))
	assert.Equal(t, int64(len("the content")), files[0].Size())
}

func TestFSSource_MissingRoot(t *testing.T) {
	src := vault.NewFSSource(filepath.Join(t.TempDir(), "missing"), "", zerolog.New(io.Discard))
	_, err := src.Files(context.Background())
	assert.Error(t, err)
}
