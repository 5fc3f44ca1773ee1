// Package storage defines the local mirror directory abstraction. The mirror
// holds one <name>.md file per article at its top level.
package storage

import "time"

// Ext is the file extension of mirror files.
const Ext = ".md"

// FileInfo describes one mirror file.
type FileInfo struct {
	Name      string    // article name, without extension
	Checksum  string    // hex SHA-256 of the file content
	UpdatedAt time.Time // modification time
}

// Provider is the interface for mirror file operations. Every method takes
// an article name, not a path.
type Provider interface {
	// List returns metadata for every article file in the mirror.
	List() ([]FileInfo, error)
	// Read returns the raw bytes of the article file.
	Read(name string) ([]byte, error)
	// Write atomically writes the article file.
	Write(name string, content []byte) error
	// Delete removes the article file.
	Delete(name string) error
}
