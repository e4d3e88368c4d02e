// Package promote moves significant daily-log content into the
// durable summary document and expires old auto-promoted entries.
package promote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/starford/mimir/internal/chunker"
	"github.com/starford/mimir/internal/corpus"
	"github.com/starford/mimir/internal/scoring"
	"github.com/starford/mimir/internal/sections"
)

// AutoSectionTitle is the header of the section this engine owns in
// the summary document. Cleanup only ever touches this section.
const AutoSectionTitle = "Recent Updates (Auto-Promoted)"

const (
	defaultMinChunkLen = 50

	// Entries longer than maxEntryLen runes are truncated to
	// truncatedLen runes plus an ellipsis.
	maxEntryLen  = 300
	truncatedLen = 297

	// previewLen bounds the content echoed back in promotion results.
	previewLen = 100
)

var (
	leadingHeaderRe = regexp.MustCompile(`^#+\s*`)
	newlineRunRe    = regexp.MustCompile(`\n+`)

	// dateStampRe matches the bold date stamp carried by promoted
	// entries, with or without the trailing colon.
	dateStampRe = regexp.MustCompile(`\*\*(\d{4}-\d{2}-\d{2}):?\*\*`)
)

// ScoredItem is a chunk annotated by the scorer, tied back to the log
// it came from. SectionIndex is the chunk's position in its document's
// chunk list before the noise filter.
type ScoredItem struct {
	Content      string  `json:"content"`
	Significant  bool    `json:"is_significant"`
	Reason       string  `json:"reason"`
	Confidence   float64 `json:"confidence"`
	SourceDate   string  `json:"source_date"`
	SectionIndex int     `json:"section_index"`
}

// PromotedItem is the result-record echo of one promoted entry.
type PromotedItem struct {
	Date       string  `json:"date"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// Result summarizes one promotion pass. It is returned for dry runs
// too, with PromotionsMade counting the entries that would be written.
type Result struct {
	AnalyzedDays    int            `json:"analyzed_days"`
	CandidatesFound int            `json:"candidates_found"`
	PromotionsMade  int            `json:"promotions_made"`
	Promoted        []PromotedItem `json:"promoted_items"`
	DryRun          bool           `json:"dry_run"`
}

// Params controls one promotion pass.
type Params struct {
	DaysBack      int
	MinConfidence float64
	DryRun        bool
}

// Engine scans recent daily logs and merges significant entries into
// the durable summary document. The document is read, modified through
// a section tree, and written back whole; there is no locking, so
// concurrent engines racing on the same document are last-write-wins.
type Engine struct {
	corpus corpus.Provider
	scorer scoring.Scorer
	logger *slog.Logger

	minChunkLen int
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMinChunkLength overrides the noise filter: chunks whose trimmed
// content is shorter than n characters are never candidates.
func WithMinChunkLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minChunkLen = n
		}
	}
}

// WithClock overrides the time source. Tests use it to pin "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires a promotion engine from its collaborators.
func NewEngine(c corpus.Provider, s scoring.Scorer, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		corpus:      c,
		scorer:      s,
		logger:      logger,
		minChunkLen: defaultMinChunkLen,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Promote scans the last DaysBack calendar days of logs, keeps chunks
// that score significant with confidence at or above MinConfidence,
// and splices the formatted block into the summary document. Absent
// logs are skipped silently. With DryRun the document is untouched but
// the result still reports what would have been promoted.
func (e *Engine) Promote(_ context.Context, p Params) (*Result, error) {
	if p.DaysBack < 1 {
		return nil, fmt.Errorf("promote: days back must be >= 1, got %d", p.DaysBack)
	}

	candidates, err := e.scan(p.DaysBack, p.MinConfidence)
	if err != nil {
		return nil, err
	}

	res := &Result{
		AnalyzedDays:    p.DaysBack,
		CandidatesFound: len(candidates),
		Promoted:        []PromotedItem{},
		DryRun:          p.DryRun,
	}
	if len(candidates) == 0 {
		return res, nil
	}

	// Group by source date, most recent date first; original chunk
	// order within each date.
	byDate := make(map[string][]ScoredItem)
	for _, item := range candidates {
		byDate[item.SourceDate] = append(byDate[item.SourceDate], item)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	var entries []string
	for _, d := range dates {
		for _, item := range byDate[d] {
			entries = append(entries, formatEntry(item))
			res.Promoted = append(res.Promoted, PromotedItem{
				Date:       item.SourceDate,
				Content:    preview(item.Content),
				Confidence: item.Confidence,
			})
		}
	}
	res.PromotionsMade = len(entries)

	block := "\n## " + AutoSectionTitle + "\n" +
		strings.Join(entries, "\n") +
		"\n*Last auto-promotion: " + e.now().Format("2006-01-02 15:04") + "*\n"

	if p.DryRun {
		return res, nil
	}

	doc, err := e.loadSummary()
	if err != nil {
		return nil, err
	}
	insertBlock(doc, block)

	if err := e.corpus.Write(e.corpus.SummaryPath(), []byte(doc.String())); err != nil {
		return nil, fmt.Errorf("promote: write summary: %w", err)
	}
	e.logger.Info("promote: summary updated",
		slog.Int("candidates", res.CandidatesFound),
		slog.Int("promoted", res.PromotionsMade))
	return res, nil
}

// Cleanup expires dated entries inside the auto-promoted section. A
// line is removed only when it carries a bold date stamp older than
// today minus daysToKeep; every other line (header continuation,
// blank separators, the footer timestamp) is retained unconditionally,
// so the section itself never disappears. Returns the number of lines
// removed.
func (e *Engine) Cleanup(_ context.Context, daysToKeep int) (int, error) {
	if daysToKeep < 0 {
		return 0, fmt.Errorf("promote: days to keep must be >= 0, got %d", daysToKeep)
	}

	doc, err := e.loadSummary()
	if err != nil {
		return 0, err
	}

	cutoff := e.now().AddDate(0, 0, -daysToKeep).Format(corpus.DateLayout)
	removed := 0

	found := doc.RewriteSectionBody(
		func(s sections.Section) bool {
			return s.Level() == 2 && s.Title() == AutoSectionTitle
		},
		func(body string) string {
			lines := strings.Split(body, "\n")
			kept := lines[:0]
			for _, line := range lines {
				if m := dateStampRe.FindStringSubmatch(line); m != nil && m[1] < cutoff {
					removed++
					continue
				}
				kept = append(kept, line)
			}
			return strings.Join(kept, "\n")
		},
	)
	if !found || removed == 0 {
		return 0, nil
	}

	if err := e.corpus.Write(e.corpus.SummaryPath(), []byte(doc.String())); err != nil {
		return 0, fmt.Errorf("promote: write summary: %w", err)
	}
	e.logger.Info("promote: cleanup removed entries",
		slog.Int("removed", removed),
		slog.Int("days_kept", daysToKeep))
	return removed, nil
}

// scan chunks the last daysBack logs and returns the items that are
// both significant and at or above minConfidence, in scan order (today
// backward, document order within a day).
func (e *Engine) scan(daysBack int, minConfidence float64) ([]ScoredItem, error) {
	today := e.now()

	var candidates []ScoredItem
	for i := 0; i < daysBack; i++ {
		day := today.AddDate(0, 0, -i)
		path := e.corpus.LogPath(day)

		data, err := e.corpus.Read(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("promote: read log %s: %w", path, err)
		}

		chunks := chunker.Split(path, string(data))
		for idx, c := range chunks {
			if len(strings.TrimSpace(c.Content)) < e.minChunkLen {
				continue
			}
			verdict := e.scorer.Score(c.Content, "")
			if !verdict.Significant || verdict.Confidence < minConfidence {
				continue
			}
			candidates = append(candidates, ScoredItem{
				Content:      c.Content,
				Significant:  verdict.Significant,
				Reason:       verdict.Reason,
				Confidence:   verdict.Confidence,
				SourceDate:   day.Format(corpus.DateLayout),
				SectionIndex: idx,
			})
		}
	}
	return candidates, nil
}

// loadSummary parses the durable summary document. An absent document
// parses as empty, so the first promotion creates it.
func (e *Engine) loadSummary() (*sections.Doc, error) {
	data, err := e.corpus.Read(e.corpus.SummaryPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("promote: read summary: %w", err)
	}
	return sections.Parse(string(data)), nil
}

// insertBlock places block using the fallback chain: after an existing
// Recent Updates / Latest / Current section (pattern priority before
// document position), else before Key Lessons, else before the LAST
// level-2 section, else appended at the end.
func insertBlock(doc *sections.Doc, block string) {
	for _, prefix := range []string{"Recent Updates", "Latest", "Current"} {
		if doc.InsertAfterSection(level2TitledWith(prefix), block) {
			return
		}
	}
	if doc.InsertBeforeSection(level2TitledWith("Key Lessons"), block) {
		return
	}
	if doc.InsertBeforeLastSection(func(s sections.Section) bool { return s.Level() == 2 }, block) {
		return
	}
	doc.AppendSection(block)
}

func level2TitledWith(prefix string) func(sections.Section) bool {
	return func(s sections.Section) bool {
		return s.Level() == 2 && strings.HasPrefix(s.Title(), prefix)
	}
}

// formatEntry renders one promoted line: bold date stamp, confidence
// marker (star above 0.8, bullet otherwise), then the chunk content
// flattened to a single line and truncated if very long.
func formatEntry(item ScoredItem) string {
	content := strings.TrimSpace(item.Content)
	content = leadingHeaderRe.ReplaceAllString(content, "")
	content = newlineRunRe.ReplaceAllString(content, " ")

	if r := []rune(content); len(r) > maxEntryLen {
		content = string(r[:truncatedLen]) + "..."
	}

	marker := "•"
	if item.Confidence > 0.8 {
		marker = "⭐"
	}
	return fmt.Sprintf("- **%s:** %s %s", item.SourceDate, marker, content)
}

// preview returns the leading slice of content echoed in results.
func preview(content string) string {
	r := []rune(content)
	if len(r) > previewLen {
		r = r[:previewLen]
	}
	return string(r) + "..."
}
