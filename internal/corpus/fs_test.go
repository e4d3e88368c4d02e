package corpus

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempCorpus(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	f, err := NewFS(dir, DefaultLayout())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return f
}

func seed(t *testing.T, f *FS, rel, content string) {
	t.Helper()
	abs := filepath.Join(f.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDocuments_FixedOrder(t *testing.T) {
	f := tempCorpus(t)
	seed(t, f, "memory/2026-01-02.md", "log two")
	seed(t, f, "memory/2026-01-01.md", "log one")
	seed(t, f, "reference/zeta.md", "ref z")
	seed(t, f, "reference/alpha.md", "ref a")
	seed(t, f, "MEMORY.md", "summary")

	docs, err := f.Documents()
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	wantPaths := []string{
		"MEMORY.md",
		"reference/alpha.md",
		"reference/zeta.md",
		"memory/2026-01-01.md",
		"memory/2026-01-02.md",
	}
	if len(docs) != len(wantPaths) {
		t.Fatalf("len(docs) = %d, want %d: %+v", len(docs), len(wantPaths), docs)
	}
	for i, want := range wantPaths {
		if docs[i].Path != want {
			t.Errorf("docs[%d].Path = %q, want %q", i, docs[i].Path, want)
		}
	}
	wantKinds := []Kind{KindSummary, KindReference, KindReference, KindLog, KindLog}
	for i, want := range wantKinds {
		if docs[i].Kind != want {
			t.Errorf("docs[%d].Kind = %q, want %q", i, docs[i].Kind, want)
		}
	}
}

func TestDocuments_AbsentPiecesSkipped(t *testing.T) {
	f := tempCorpus(t)
	docs, err := f.Documents()
	if err != nil {
		t.Fatalf("Documents on empty root: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("len(docs) = %d, want 0", len(docs))
	}

	seed(t, f, "memory/2026-02-01.md", "only a log")
	docs, err = f.Documents()
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 1 || docs[0].Kind != KindLog {
		t.Errorf("docs = %+v, want single log", docs)
	}
}

func TestDocuments_IgnoresNonMarkdownAndSubdirs(t *testing.T) {
	f := tempCorpus(t)
	seed(t, f, "reference/keep.md", "kept")
	seed(t, f, "reference/skip.txt", "not markdown")
	seed(t, f, "reference/nested/deep.md", "one level only")

	docs, err := f.Documents()
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 1 || docs[0].Path != "reference/keep.md" {
		t.Errorf("docs = %+v, want only reference/keep.md", docs)
	}
}

func TestWriteAndRead(t *testing.T) {
	f := tempCorpus(t)
	content := []byte("# Memory\nDurable knowledge.\n")
	if err := f.Write("MEMORY.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := f.Read("MEMORY.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}

	// No leftover temp files after the atomic rename.
	matches, _ := filepath.Glob(filepath.Join(f.root, ".mimir-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestWriteCreatesLogDir(t *testing.T) {
	f := tempCorpus(t)
	day := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	if err := f.Write(f.LogPath(day), []byte("## Note\nentry\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := f.Read("memory/2026-03-14.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) == 0 {
		t.Error("expected content")
	}
}

func TestRead_Missing(t *testing.T) {
	f := tempCorpus(t)
	_, err := f.Read("MEMORY.md")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestPaths(t *testing.T) {
	f := tempCorpus(t)
	if got := f.SummaryPath(); got != "MEMORY.md" {
		t.Errorf("SummaryPath = %q", got)
	}
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := f.LogPath(day); got != filepath.Join("memory", "2026-01-05.md") {
		t.Errorf("LogPath = %q", got)
	}
}

func TestTraversalBlocked(t *testing.T) {
	f := tempCorpus(t)
	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := f.Read(p); err == nil {
			t.Errorf("expected error for read of %q", p)
		}
		if err := f.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestNewFS_NonExistentRoot(t *testing.T) {
	if _, err := NewFS(filepath.Join(os.TempDir(), "mimir-does-not-exist-"+t.Name()), DefaultLayout()); err == nil {
		t.Error("expected error for non-existent root")
	}
}
