package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	uploadsSubdir = "uploads"
	outputSubdir  = "output"
)

// LocalStore implements Store on the local filesystem.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the uploads/ and output/ areas under basePath.
func NewLocalStore(basePath string) (*LocalStore, error) {
	for _, sub := range []string{uploadsSubdir, outputSubdir} {
		if err := os.MkdirAll(filepath.Join(basePath, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return &LocalStore{basePath: basePath}, nil
}

// SaveUpload stores an uploaded CSV. The original (possibly Hebrew) name
// is kept in the stored filename behind a timestamp prefix, so a
// re-upload of the same invoice never collides on disk.
func (s *LocalStore) SaveUpload(originalFilename string, r io.Reader) (*StoredFile, error) {
	timestamp := strings.NewReplacer(":", "-", ".", "-").Replace(time.Now().UTC().Format(time.RFC3339Nano))
	storedName := fmt.Sprintf("%s_%s", timestamp, sanitizeFilename(originalFilename))
	absPath := filepath.Join(s.basePath, uploadsSubdir, storedName)

	f, err := os.Create(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(absPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &StoredFile{
		Path: filepath.ToSlash(filepath.Join(uploadsSubdir, storedName)),
		Size: size,
	}, nil
}

// ReadFile reads an artifact by relative path.
func (s *LocalStore) ReadFile(relPath string) ([]byte, error) {
	return os.ReadFile(s.Abs(relPath))
}

// Open opens an artifact for streaming.
func (s *LocalStore) Open(relPath string) (io.ReadCloser, error) {
	f, err := os.Open(s.Abs(relPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Abs resolves a relative artifact path against the base directory.
func (s *LocalStore) Abs(relPath string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(relPath))
}

// Remove deletes an artifact; a missing file is not an error.
func (s *LocalStore) Remove(relPath string) error {
	if err := os.Remove(s.Abs(relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// OutputDir returns the absolute output directory for converter artifacts.
func (s *LocalStore) OutputDir() string {
	return filepath.Join(s.basePath, outputSubdir)
}

// ListDir lists the artifact filenames in one storage area ("uploads" or
// "output"); used by the orphan sweep.
func (s *LocalStore) ListDir(subdir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, subdir))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ModTime returns an artifact's last modification time.
func (s *LocalStore) ModTime(relPath string) (time.Time, error) {
	info, err := os.Stat(s.Abs(relPath))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
