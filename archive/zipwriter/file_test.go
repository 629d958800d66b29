package zipwriter_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/vaultsnap/vaultsnap/archive/zipwriter"
	"github.com/vaultsnap/vaultsnap/fileutils"
)

func TestNewLazyZipFile(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	zipFile := zipwriter.NewLazyZipFile(zipPath, 6)

	if zipFile.Path() != zipPath {
		t.Errorf("Expected path %s, got %s", zipPath, zipFile.Path())
	}

	// Nothing written yet: the file must not exist.
	if fileutils.Exists(zipPath) {
		t.Errorf("Zip file was created before first write")
	}

	writer, err := zipFile.CreateHeader(&zip.FileHeader{
		Name:   "test.txt",
		Method: zip.Deflate,
	})
	if err != nil {
		t.Fatalf("Failed to create zip entry: %v", err)
	}

	_, err = writer.Write([]byte("test content"))
	if err != nil {
		t.Fatalf("Failed to write content: %v", err)
	}

	if err := zipFile.Close(); err != nil {
		t.Fatalf("Failed to close zip file: %v", err)
	}

	if !fileutils.Exists(zipPath) {
		t.Errorf("Zip file was not created at %s", zipPath)
	}

	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("Failed to open written zip: %v", err)
	}
	defer reader.Close()
	if len(reader.File) != 1 || reader.File[0].Name != "test.txt" {
		t.Errorf("Unexpected zip contents: %v", reader.File)
	}

	if err := zipFile.Delete(); err != nil {
		t.Fatalf("Failed to delete zip file: %v", err)
	}

	if fileutils.Exists(zipPath) {
		t.Errorf("Zip file was not deleted from %s", zipPath)
	}
}

func TestNewLazyZipFile_ExistingFile(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "existing.zip")

	if _, err := os.Create(zipPath); err != nil {
		t.Fatalf("Failed to create existing file: %v", err)
	}

	// Opening over an existing file must fail instead of truncating it.
	zipFile := zipwriter.NewLazyZipFile(zipPath, 6)
	if _, err := zipFile.CreateHeader(&zip.FileHeader{Name: "test.txt"}); err == nil {
		t.Error("Expected error when creating zip over existing file, got nil")
	}
}

func TestNewLazyZipFile_CompressionLevels(t *testing.T) {
	content := make([]byte, 16*1024)
	for i := range content {
		content[i] = byte(i % 7)
	}

	sizes := map[int]int64{}
	for _, level := range []int{0, 9} {
		zipPath := filepath.Join(t.TempDir(), "level.zip")
		zipFile := zipwriter.NewLazyZipFile(zipPath, level)

		w, err := zipFile.CreateHeader(&zip.FileHeader{Name: "data.bin", Method: zip.Deflate})
		if err != nil {
			t.Fatalf("Failed to create entry: %v", err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
		if err := zipFile.Close(); err != nil {
			t.Fatalf("Failed to close zip: %v", err)
		}

		info, err := os.Stat(zipPath)
		if err != nil {
			t.Fatalf("Failed to stat zip: %v", err)
		}
		sizes[level] = info.Size()
	}

	if sizes[9] >= sizes[0] {
		t.Errorf("Expected level 9 archive (%d bytes) smaller than level 0 (%d bytes)", sizes[9], sizes[0])
	}
}

func TestZipFile_CreateEmptyArchive(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "empty.zip")
	zipFile := zipwriter.NewLazyZipFile(zipPath, 6)

	if err := zipFile.Create(); err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	if err := zipFile.Close(); err != nil {
		t.Fatalf("Failed to close zip file: %v", err)
	}

	// No entries written: the file must still be a readable archive.
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("Failed to open empty archive: %v", err)
	}
	defer reader.Close()
	if len(reader.File) != 0 {
		t.Errorf("Expected empty archive, got %d entries", len(reader.File))
	}
}

func TestZipFile_CloseUnopened(t *testing.T) {
	zipFile := zipwriter.NewLazyZipFile(filepath.Join(t.TempDir(), "never.zip"), 6)
	if err := zipFile.Close(); err != nil {
		t.Errorf("Close on unopened zip should be a no-op, got %v", err)
	}
	if err := zipFile.Delete(); err != nil {
		t.Errorf("Delete on unopened zip should be a no-op, got %v", err)
	}
}
