// Package storage manages the on-disk artifact areas: uploaded invoice
// CSVs and the converter's generated Excel/TSV files. Records reference
// artifacts by paths relative to the base directory ("uploads/...",
// "output/...").
package storage

import "io"

// StoredFile describes a file written into the uploads area.
type StoredFile struct {
	// Path is the record-facing relative path, e.g. "uploads/<stored name>".
	Path string
	Size int64
}

// Store is the artifact storage interface.
type Store interface {
	// SaveUpload writes an uploaded CSV under a timestamped stored name.
	SaveUpload(originalFilename string, r io.Reader) (*StoredFile, error)

	// ReadFile reads an artifact by its relative path.
	ReadFile(relPath string) ([]byte, error)

	// Open opens an artifact for streaming (downloads).
	Open(relPath string) (io.ReadCloser, error)

	// Abs resolves a relative artifact path to an absolute one.
	Abs(relPath string) string

	// Remove deletes an artifact. Missing files are not an error.
	Remove(relPath string) error

	// OutputDir is the absolute directory handed to the conversion script.
	OutputDir() string
}
