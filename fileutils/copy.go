package fileutils

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash"
)

// CopyFile copies the file at src to dst, returning the number of bytes
// copied. The destination is written with the source file's permissions.
// The copy is verified by comparing content hashes of both files.
func CopyFile(src string, dst string) (written int64, err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("could not open source file: %w", err)
	}
	defer func() {
		err = errors.Join(err, srcFile.Close())
	}()

	info, err := srcFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("could not stat source file: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("could not create destination file: %w", err)
	}

	// Hash the source while copying, then hash the written file back.
	hash := xxhash.New()
	written, err = io.Copy(dstFile, io.TeeReader(srcFile, hash))
	if err != nil {
		_ = dstFile.Close()
		return written, fmt.Errorf("could not copy file: %w", err)
	}
	if err := dstFile.Close(); err != nil {
		return written, fmt.Errorf("could not close destination file: %w", err)
	}

	dstHash, err := ComputeFileHash(dst)
	if err != nil {
		return written, fmt.Errorf("could not verify copied file: %w", err)
	}
	if dstHash != hash.Sum64() {
		return written, fmt.Errorf("copied file %s does not match source %s", dst, src)
	}

	return written, nil
}
