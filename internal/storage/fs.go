package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/folio/internal/checksum"
)

// FS implements Provider backed by a local directory.
type FS struct {
	root string // absolute path to the mirror directory
}

// NewFS creates a new FS provider rooted at the given directory, creating it
// when it does not exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute mirror directory.
func (f *FS) Root() string { return f.root }

// NameOf maps an absolute or root-relative file path back to an article
// name. It reports false for anything that is not a top-level mirror file.
func (f *FS) NameOf(path string) (string, bool) {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return "", false
		}
		path = rel
	}
	if strings.ContainsRune(path, os.PathSeparator) || !strings.HasSuffix(path, Ext) {
		return "", false
	}
	name := strings.TrimSuffix(path, Ext)
	if name == "" || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}

// filePath resolves an article name to its file and rejects names that
// would leave the mirror directory.
func (f *FS) filePath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("storage: invalid article name %q", name)
	}
	return filepath.Join(f.root, name+Ext), nil
}

// List returns metadata for every top-level .md file.
func (f *FS) List() ([]FileInfo, error) {
	dirEntries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []FileInfo
	for _, d := range dirEntries {
		if d.IsDir() {
			continue
		}
		name, ok := f.NameOf(d.Name())
		if !ok {
			continue
		}
		info, err := d.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, FileInfo{
			Name:      name,
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// Read returns the raw bytes of an article file.
func (f *FS) Read(name string) ([]byte, error) {
	abs, err := f.filePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename. The temp file
// starts with a dot so NameOf ignores it.
func (f *FS) Write(name string, content []byte) error {
	abs, err := f.filePath(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".folio-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes an article file.
func (f *FS) Delete(name string) error {
	abs, err := f.filePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}
