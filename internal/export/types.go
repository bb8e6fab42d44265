// Package export renders notes to downloadable PDF files.
package export

import (
	"errors"
	"time"
)

// NoteData is the note content handed to the renderer.
type NoteData struct {
	ID         string
	Title      string
	Content    string
	OwnerName  string
	OwnerEmail string
	CreatedAt  time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
