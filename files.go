package loreforge

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskFileStore implements FileStore over a local upload directory. Paths
// outside Root are rejected so a corrupted record cannot delete arbitrary
// files.
type DiskFileStore struct {
	Root string
}

var _ FileStore = (*DiskFileStore)(nil)

// NewDiskFileStore creates the upload directory if needed.
func NewDiskFileStore(root string) (*DiskFileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskFileStore{Root: root}, nil
}

// Save writes content under the root and returns the absolute path.
func (d *DiskFileStore) Save(name string, content []byte) (string, error) {
	path := filepath.Join(d.Root, filepath.Base(name))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Remove implements FileStore. A file already gone is not an error.
func (d *DiskFileStore) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(d.Root)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.New("path outside upload root")
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
