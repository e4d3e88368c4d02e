package promote

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/mimir/internal/corpus"
	"github.com/starford/mimir/internal/scoring"
)

var testClock = func() time.Time {
	return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
}

func testEngine(t *testing.T, opts ...Option) (*Engine, corpus.Provider) {
	t.Helper()
	root := t.TempDir()
	store, err := corpus.NewFS(root, corpus.DefaultLayout())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	opts = append([]Option{WithClock(testClock)}, opts...)
	return NewEngine(store, scoring.KeywordScorer{}, logger, opts...), store
}

func writeLog(t *testing.T, store corpus.Provider, day time.Time, content string) {
	t.Helper()
	if err := store.Write(store.LogPath(day), []byte(content)); err != nil {
		t.Fatal(err)
	}
}

func writeSummary(t *testing.T, store corpus.Provider, content string) {
	t.Helper()
	if err := store.Write(store.SummaryPath(), []byte(content)); err != nil {
		t.Fatal(err)
	}
}

func readSummary(t *testing.T, store corpus.Provider) string {
	t.Helper()
	data, err := store.Read(store.SummaryPath())
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// significantText scores well above 0.8: several indicator terms plus
// enough length for a full length contribution.
const significantText = `We decided on the final architecture and deployed the service.
A critical bug was fixed after the error analysis; major milestone completed and validated in production today.`

// mildText carries exactly one significant term ("updated") and no
// high-priority or routine terms, so it scores just past the
// significance threshold with a confidence well under 1.
const mildText = `We updated the user guide wording across several pages to make the setup flow easier to follow.`

func TestPromoteWritesBlock(t *testing.T) {
	e, store := testEngine(t)
	writeLog(t, store, testClock(), "## Standup\n\n"+significantText+"\n")
	writeSummary(t, store, "# Memory\n\n## Key Lessons\n\n- old lesson\n")

	res, err := e.Promote(context.Background(), Params{DaysBack: 1, MinConfidence: 0.7})
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if res.CandidatesFound != 1 || res.PromotionsMade != 1 {
		t.Fatalf("got candidates=%d promoted=%d, want 1/1", res.CandidatesFound, res.PromotionsMade)
	}

	got := readSummary(t, store)
	if !strings.Contains(got, "## Recent Updates (Auto-Promoted)") {
		t.Error("promoted block header missing")
	}
	if !strings.Contains(got, "- **2025-06-15:** ⭐ ") {
		t.Errorf("entry with star marker missing:\n%s", got)
	}
	if !strings.Contains(got, "*Last auto-promotion: 2025-06-15 10:30*") {
		t.Error("footer timestamp missing")
	}
}

func TestPromoteInsertsBeforeKeyLessons(t *testing.T) {
	e, store := testEngine(t)
	writeLog(t, store, testClock(), "## Work\n\n"+significantText+"\n")
	writeSummary(t, store, "# Memory\n\n## Key Lessons\n\n- stay curious\n")

	if _, err := e.Promote(context.Background(), Params{DaysBack: 1, MinConfidence: 0.5}); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	got := readSummary(t, store)
	block := strings.Index(got, "## Recent Updates (Auto-Promoted)")
	lessons := strings.Index(got, "## Key Lessons")
	if block < 0 || lessons < 0 {
		t.Fatalf("missing section:\n%s", got)
	}
	if block > lessons {
		t.Errorf("block at %d should precede Key Lessons at %d:\n%s", block, lessons, got)
	}
}

func TestPromoteAppendsIntoExistingRecentSection(t *testing.T) {
	e, store := testEngine(t)
	writeLog(t, store, testClock(), "## Work\n\n"+significantText+"\n")
	writeSummary(t, store, "# Memory\n\n## Recent Updates\n\n- earlier entry\n\n## Key Lessons\n\n- a lesson\n")

	if _, err := e.Promote(context.Background(), Params{DaysBack: 1, MinConfidence: 0.5}); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	got := readSummary(t, store)
	earlier := strings.Index(got, "- earlier entry")
	block := strings.Index(got, "## Recent Updates (Auto-Promoted)")
	lessons := strings.Index(got, "## Key Lessons")
	if !(earlier < block && block < lessons) {
		t.Errorf("block should sit after the existing Recent Updates body and before Key Lessons:\n%s", got)
	}
}

func TestPromoteFallsBackBeforeLastSection(t *testing.T) {
	e, store := testEngine(t)
	writeLog(t, store, testClock(), "## Work\n\n"+significantText+"\n")
	writeSummary(t, store, "# Memory\n\n## Alpha\n\nfirst\n\n## Omega\n\nlast\n")

	if _, err := e.Promote(context.Background(), Params{DaysBack: 1, MinConfidence: 0.5}); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	got := readSummary(t, store)
	alpha := strings.Index(got, "## Alpha")
	block := strings.Index(got, "## Recent Updates (Auto-Promoted)")
	omega := strings.Index(got, "## Omega")
	if !(alpha < block && block < omega) {
		t.Errorf("block should land before the last section:\n%s", got)
	}
}

func TestPromoteAppendsWhenNoSections(t *testing.T) {
	e, store := testEngine(t)
	writeLog(t, store, testClock(), "## Work\n\n"+significantText+"\n")
	writeSummary(t, store, "just prose, no headers\n")

	if _, err := e.Promote(context.Background(), Params{DaysBack: 1, MinConfidence: 0.5}); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	got := readSummary(t, store)
	if !strings.HasPrefix(got, "just prose, no headers\n") {
		t.Errorf("existing prose must stay first:\n%s", got)
	}
	if !strings.Contains(got, "## Recent Updates (Auto-Promoted)") {
		t.Error("block missing")
	}
}

func TestPromoteCreatesAbsentSummary(t *testing.T) {
	e, store := testEngine(t)
	writeLog(t, store, testClock(), "## Work\n\n"+significantText+"\n")

	if _, err := e.Promote(context.Background(), Params{DaysBack: 1, MinConfidence: 0.5}); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	got := readSummary(t, store)
	if !strings.Contains(got, "## Recent Updates (Auto-Promoted)") {
		t.Errorf("summary should be created with the block:\n%s", got)
	}
}

func TestPromoteUnreachableConfidenceLeavesDocumentUntouched(t *testing.T) {
	e, store := testEngine(t)
	writeLog(t, store, testClock(), "## Work\n\n"+mildText+"\n")
	original := "# Memory\n\n## Key Lessons\n\n- a lesson\n"
	writeSummary(t, store, original)

	res, err := e.Promote(context.Background(), Params{DaysBack: 1, MinConfidence: 1.1})
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if res.PromotionsMade != 0 || res.CandidatesFound != 0 {
		t.Errorf("got candidates=%d promoted=%d, want 0/0", res.CandidatesFound, res.PromotionsMade)
	}
	if got := readSummary(t, store); got != original {
		t.Errorf("document changed:\ngot  %q\nwant %q", got, original)
	}
}

func TestPromoteDryRunReportsWithoutWriting(t *testing.T) {
	e, store := testEngine(t)
	writeLog(t, store, testClock(), "## Work\n\n"+significantText+"\n")
	original := "# Memory\n\n## Key Lessons\n\n- a lesson\n"
	writeSummary(t, store, original)

	res, err := e.Promote(context.Background(), Params{DaysBack: 1, MinConfidence: 0.5, DryRun: true})
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if res.PromotionsMade != 1 {
		t.Errorf("dry run should still count promotions, got %d", res.PromotionsMade)
	}
	if got := readSummary(t, store); got != original {
		t.Errorf("dry run must not write:\ngot  %q\nwant %q", got, original)
	}
}

func TestPromoteSkipsShortChunks(t *testing.T) {
	e, store := testEngine(t)
	writeLog(t, store, testClock(), "## Note\n\nfixed a bug\n\n## Long\n\n"+significantText+"\n")

	res, err := e.Promote(context.Background(), Params{DaysBack: 1, MinConfidence: 0.5})
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if res.CandidatesFound != 1 {
		t.Errorf("short chunk should be filtered out, got %d candidates", res.CandidatesFound)
	}
}

func TestPromoteGroupsByDateDescending(t *testing.T) {
	e, store := testEngine(t)
	today := testClock()
	yesterday := today.AddDate(0, 0, -1)
	writeLog(t, store, yesterday, "## Older\n\n"+significantText+"\n")
	writeLog(t, store, today, "## Newer\n\n"+significantText+"\n")

	if _, err := e.Promote(context.Background(), Params{DaysBack: 2, MinConfidence: 0.5}); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	got := readSummary(t, store)
	newer := strings.Index(got, "- **2025-06-15:**")
	older := strings.Index(got, "- **2025-06-14:**")
	if newer < 0 || older < 0 {
		t.Fatalf("expected entries for both dates:\n%s", got)
	}
	if newer > older {
		t.Errorf("most recent date must come first:\n%s", got)
	}
}

func TestPromoteMissingLogsSkippedSilently(t *testing.T) {
	e, _ := testEngine(t)
	res, err := e.Promote(context.Background(), Params{DaysBack: 5, MinConfidence: 0.5})
	if err != nil {
		t.Fatalf("Promote with no logs: %v", err)
	}
	if res.CandidatesFound != 0 {
		t.Errorf("got %d candidates from an empty corpus", res.CandidatesFound)
	}
}

func TestFormatEntryFlattensAndTruncates(t *testing.T) {
	long := strings.Repeat("x", 400)
	entry := formatEntry(ScoredItem{
		Content:    "## Heading\nline one\n\nline two " + long,
		Confidence: 0.5,
		SourceDate: "2025-06-15",
	})

	if strings.Contains(entry, "\n") {
		t.Error("entry must be a single line")
	}
	if strings.Contains(entry, "#") {
		t.Error("leading header markers must be stripped")
	}
	if !strings.HasPrefix(entry, "- **2025-06-15:** • ") {
		t.Errorf("entry prefix wrong: %q", entry[:40])
	}
	if !strings.HasSuffix(entry, "...") {
		t.Error("long content must end with ellipsis")
	}
	body := strings.TrimPrefix(entry, "- **2025-06-15:** • ")
	if got := len([]rune(body)); got != 300 {
		t.Errorf("truncated body is %d runes, want 300", got)
	}
}

func TestCleanupExpiresOldDatedLines(t *testing.T) {
	e, store := testEngine(t)
	writeSummary(t, store, strings.Join([]string{
		"# Memory",
		"",
		"## Recent Updates (Auto-Promoted)",
		"- **2025-06-15:** • today entry",
		"- **2025-05-01:** • stale entry",
		"",
		"*Last auto-promotion: 2025-05-01 09:00*",
		"",
		"## Key Lessons",
		"",
		"- a lesson",
		"",
	}, "\n"))

	removed, err := e.Cleanup(context.Background(), 30)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	got := readSummary(t, store)
	if strings.Contains(got, "stale entry") {
		t.Error("stale entry should be gone")
	}
	if !strings.Contains(got, "today entry") {
		t.Error("recent entry must survive")
	}
	if !strings.Contains(got, "*Last auto-promotion: 2025-05-01 09:00*") {
		t.Error("footer line never expires")
	}
	if !strings.Contains(got, "## Recent Updates (Auto-Promoted)") {
		t.Error("section header never expires")
	}
}

func TestCleanupZeroDaysKeepsOnlyToday(t *testing.T) {
	e, store := testEngine(t)
	writeSummary(t, store, strings.Join([]string{
		"## Recent Updates (Auto-Promoted)",
		"- **2025-06-15:** • today",
		"- **2025-06-14:** • yesterday",
		"*Last auto-promotion: 2024-01-01 00:00*",
		"",
	}, "\n"))

	removed, err := e.Cleanup(context.Background(), 0)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	got := readSummary(t, store)
	if strings.Contains(got, "yesterday") {
		t.Error("yesterday's entry should expire with days_to_keep=0")
	}
	if !strings.Contains(got, "today") || !strings.Contains(got, "*Last auto-promotion:") {
		t.Errorf("today's entry and footer must remain:\n%s", got)
	}
}

func TestCleanupWithoutSectionIsNoop(t *testing.T) {
	e, store := testEngine(t)
	original := "# Memory\n\n## Key Lessons\n\n- **2020-01-01:** ancient but outside the section\n"
	writeSummary(t, store, original)

	removed, err := e.Cleanup(context.Background(), 0)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if got := readSummary(t, store); got != original {
		t.Errorf("document changed:\ngot  %q\nwant %q", got, original)
	}
}

func TestCleanupAbsentSummary(t *testing.T) {
	e, _ := testEngine(t)
	removed, err := e.Cleanup(context.Background(), 30)
	if err != nil {
		t.Fatalf("Cleanup on absent summary: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
