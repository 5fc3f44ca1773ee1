package storage

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/starford/folio/internal/checksum"
)

func tempMirror(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempMirror(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "note.md")); err != nil {
		t.Errorf("expected note.md on disk: %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempMirror(t)
	_ = s.Write("del", []byte("bye"))
	if err := s.Delete("del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList(t *testing.T) {
	s := tempMirror(t)
	_ = s.Write("a", []byte("a"))
	_ = s.Write("b", []byte("b"))
	_ = os.WriteFile(filepath.Join(s.Root(), "readme.txt"), []byte("not md"), 0o644)
	_ = os.WriteFile(filepath.Join(s.Root(), ".hidden.md"), []byte("x"), 0o644)
	_ = os.MkdirAll(filepath.Join(s.Root(), "sub"), 0o755)
	_ = os.WriteFile(filepath.Join(s.Root(), "sub", "c.md"), []byte("c"), 0o644)

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	if len(items) != 2 || items[0].Name != "a" || items[1].Name != "b" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Checksum != checksum.Sum([]byte("a")) {
		t.Errorf("checksum = %s", items[0].Checksum)
	}
}

func TestInvalidNamesBlocked(t *testing.T) {
	s := tempMirror(t)
	for _, name := range []string{"", "..", "../outside", "/etc/shadow", `a\b`} {
		if _, err := s.Read(name); err == nil {
			t.Errorf("expected error for name %q", name)
		}
		if err := s.Write(name, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", name)
		}
	}
}

func TestNameOf(t *testing.T) {
	s := tempMirror(t)
	cases := []struct {
		path string
		name string
		ok   bool
	}{
		{filepath.Join(s.Root(), "post.md"), "post", true},
		{"post.md", "post", true},
		{filepath.Join(s.Root(), "sub", "post.md"), "", false},
		{filepath.Join(s.Root(), ".folio-tmp-123"), "", false},
		{filepath.Join(s.Root(), "post.txt"), "", false},
	}
	for _, tc := range cases {
		name, ok := s.NameOf(tc.path)
		if name != tc.name || ok != tc.ok {
			t.Errorf("NameOf(%q) = %q, %v; want %q, %v", tc.path, name, ok, tc.name, tc.ok)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempMirror(t)
	_ = s.Write("atomic", []byte("original content"))
	if err := s.Write("atomic", []byte("updated content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic")
	if string(got) != "updated content" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".folio-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")
	if _, err := NewFS(dir); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("mirror dir not created: %v", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "folio-test-*")
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
