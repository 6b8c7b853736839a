// Package modelio stages uploaded model archives on the local filesystem so
// a validator can inspect them and the artifact store can move them into a
// project namespace. Format validation of the archived model itself belongs
// to the validator, not here.
package modelio

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StageArchive unpacks a zip archive into a fresh staging directory and
// returns its path. The caller removes the directory once the store has
// consumed it.
func StageArchive(r io.ReaderAt, size int64) (string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	dir := filepath.Join(os.TempDir(), "hmse-upload-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if err := extractFile(dir, f); err != nil {
			_ = os.RemoveAll(dir)
			return "", err
		}
	}
	return dir, nil
}

// StageArchiveFile stages a zip archive from disk.
func StageArchiveFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	return StageArchive(f, info.Size())
}

func extractFile(dir string, f *zip.File) error {
	name := filepath.FromSlash(f.Name)
	if strings.Contains(f.Name, "..") || filepath.IsAbs(name) {
		return fmt.Errorf("archive entry %q escapes staging directory", f.Name)
	}
	target := filepath.Join(dir, name)
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	in, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
