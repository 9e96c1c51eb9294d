package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStore_SaveAndRead(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	stored, err := store.SaveUpload("חשבונית 3.25.csv", strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}
	if !strings.HasPrefix(stored.Path, "uploads/") {
		t.Errorf("path = %q, want uploads/ prefix", stored.Path)
	}
	if stored.Size != 8 {
		t.Errorf("size = %d, want 8", stored.Size)
	}

	data, err := store.ReadFile(stored.Path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("content = %q", data)
	}
}

func TestLocalStore_UniqueStoredNames(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	first, err := store.SaveUpload("same.csv", strings.NewReader("1"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.SaveUpload("same.csv", strings.NewReader("2"))
	if err != nil {
		t.Fatal(err)
	}
	if first.Path == second.Path {
		t.Errorf("re-upload collided on %q", first.Path)
	}
}

func TestLocalStore_SanitizesFilename(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	stored, err := store.SaveUpload("../../../etc/passwd.csv", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(stored.Path, "..") {
		t.Errorf("stored path %q still contains traversal", stored.Path)
	}
	if filepath.Dir(stored.Path) != "uploads" {
		t.Errorf("stored outside uploads dir: %q", stored.Path)
	}
}

func TestLocalStore_RemoveMissingIsNotAnError(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Remove("uploads/never-existed.csv"); err != nil {
		t.Errorf("Remove() on missing file = %v, want nil", err)
	}
}

func TestLocalStore_ListDir(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStore(base)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.SaveUpload("a.csv", strings.NewReader("1")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "output", "a.xlsx"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	uploads, err := store.ListDir("uploads")
	if err != nil {
		t.Fatal(err)
	}
	if len(uploads) != 1 {
		t.Errorf("uploads listing = %v", uploads)
	}

	output, err := store.ListDir("output")
	if err != nil {
		t.Fatal(err)
	}
	if len(output) != 1 || output[0] != "a.xlsx" {
		t.Errorf("output listing = %v", output)
	}
}
