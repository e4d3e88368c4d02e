package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/mimir/internal/checksum"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root   string // absolute path to the corpus root
	layout Layout
}

var _ Provider = (*FS)(nil)

// NewFS creates a corpus provider rooted at the given directory. The
// root must already exist; the reference and log directories may be
// created later.
func NewFS(root string, layout Layout) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("corpus: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("corpus: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus: root is not a directory: %s", abs)
	}
	return &FS{root: abs, layout: layout}, nil
}

// SummaryPath returns the relative path of the durable summary document.
func (f *FS) SummaryPath() string { return f.layout.SummaryFile }

// LogPath returns the relative path of the dated log for day.
func (f *FS) LogPath(day time.Time) string {
	return filepath.Join(f.layout.LogDir, day.Format(DateLayout)+".md")
}

// Documents enumerates the corpus in its fixed order: summary first,
// then reference documents by sorted path, then dated logs by sorted
// path. Index identity depends on this order staying exact.
func (f *FS) Documents() ([]Document, error) {
	var out []Document

	d, err := f.describe(f.layout.SummaryFile, KindSummary)
	switch {
	case err == nil:
		out = append(out, d)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	refs, err := f.listDir(f.layout.ReferenceDir, KindReference)
	if err != nil {
		return nil, err
	}
	out = append(out, refs...)

	logs, err := f.listDir(f.layout.LogDir, KindLog)
	if err != nil {
		return nil, err
	}
	return append(out, logs...), nil
}

// Read returns the raw bytes of a corpus file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("corpus: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("corpus: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mimir-tmp-*")
	if err != nil {
		return fmt.Errorf("corpus: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("corpus: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("corpus: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("corpus: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("corpus: rename: %w", err)
	}
	success = true
	return nil
}

// describe stats and checksums one file.
func (f *FS) describe(rel string, kind Kind) (Document, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return Document{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Document{}, fmt.Errorf("corpus: stat %s: %w", rel, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return Document{}, fmt.Errorf("corpus: read %s: %w", rel, err)
	}
	return Document{
		Path:      rel,
		Kind:      kind,
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// listDir returns descriptors for the .md files directly inside dir,
// in sorted-filename order. A missing directory is an empty group.
func (f *FS) listDir(dir string, kind Kind) ([]Document, error) {
	abs, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("corpus: list %s: %w", dir, err)
	}
	var out []Document
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		d, err := f.describe(filepath.Join(dir, e.Name()), kind)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// safePath resolves a relative path against the corpus root and
// rejects any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("corpus: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("corpus: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("corpus: path escapes corpus root: %s", rel)
	}
	return abs, nil
}
