// Package corpus defines the knowledge-store document layout: one
// durable summary document, a set of reference documents, and one
// dated log per calendar day.
package corpus

import "time"

// Kind classifies a corpus document.
type Kind string

const (
	KindSummary   Kind = "summary"
	KindReference Kind = "reference"
	KindLog       Kind = "log"
)

// DateLayout is the calendar-day format used for log filenames and
// promotion date stamps.
const DateLayout = "2006-01-02"

// Document is a lightweight descriptor returned by list operations.
type Document struct {
	Path      string    `json:"path"`
	Kind      Kind      `json:"kind"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Layout names the pieces of a corpus root.
type Layout struct {
	SummaryFile  string
	ReferenceDir string
	LogDir       string
}

// DefaultLayout mirrors the conventional on-disk arrangement.
func DefaultLayout() Layout {
	return Layout{
		SummaryFile:  "MEMORY.md",
		ReferenceDir: "reference",
		LogDir:       "memory",
	}
}

// Provider is the interface for corpus file operations. Paths are
// relative to the corpus root.
type Provider interface {
	// Documents returns descriptors for every corpus document in the
	// fixed enumeration order: the summary document first, then
	// reference documents in sorted-path order, then dated logs in
	// sorted-path (hence chronological) order. Absent pieces are
	// skipped, never errors.
	Documents() ([]Document, error)
	// Read returns the raw bytes of one document.
	Read(path string) ([]byte, error)
	// Write atomically replaces one document.
	Write(path string, content []byte) error
	// SummaryPath returns the relative path of the durable summary
	// document.
	SummaryPath() string
	// LogPath returns the relative path of the dated log for day.
	LogPath(day time.Time) string
}
