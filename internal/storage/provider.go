// Package storage is the inbox drop folder: files placed there become
// captures, and are moved aside once ingested.
package storage

import "time"

// Subdirectories of the inbox root that hold handled files. They are never
// listed as pending captures.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// FileMeta describes one pending capture file.
type FileMeta struct {
	Path     string    `json:"path"`
	Ext      string    `json:"ext"`
	Size     int64     `json:"size"`
	Checksum string    `json:"checksum"`
	ModTime  time.Time `json:"mod_time"`
}

// Provider is the interface for inbox file operations. Paths are relative to
// the inbox root.
type Provider interface {
	// List returns every capture file under dir, skipping handled files.
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}

// Capturable reports whether a file extension is accepted by the inbox.
func Capturable(ext string) bool {
	switch ext {
	case ".md", ".txt", ".pdf":
		return true
	}
	return false
}
