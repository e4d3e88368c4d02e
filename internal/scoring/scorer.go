// Package scoring estimates whether a span of text is worth keeping in
// long-term memory. The baseline implementation is a fixed keyword
// heuristic; callers depend on the Scorer interface so it can be
// replaced by a learned model without touching the promotion pipeline.
package scoring

import (
	"fmt"
	"strings"
)

// Result is the scorer's verdict on one text span.
type Result struct {
	Significant bool
	Reason      string
	Confidence  float64
}

// Scorer classifies a text span, optionally with surrounding context.
// Implementations must be pure functions of their two inputs.
type Scorer interface {
	Score(text, context string) Result
}

// KeywordScorer scores by keyword membership over three fixed term
// lists. The lists, weights, and threshold are the contract; changing
// any of them changes which log entries get promoted.
type KeywordScorer struct{}

var _ Scorer = KeywordScorer{}

var significantTerms = []string{
	// Decisions & architecture
	"decided", "chose", "selected", "architecture", "design", "approach",
	"strategy", "plan", "direction", "solution",

	// State changes & progress
	"completed", "finished", "deployed", "implemented", "fixed", "resolved",
	"updated", "changed", "modified", "installed", "configured",

	// Lessons & insights
	"learned", "discovered", "found", "realized", "insight", "mistake",
	"error", "problem", "issue", "bug", "failure", "works", "doesn't work",

	// Blockers & dependencies
	"blocked", "waiting", "dependency", "requires", "needs", "missing",
	"broken", "unavailable", "credential", "access",

	// Milestones. "deployed" repeats from the progress group and counts twice.
	"milestone", "release", "version", "complete", "ready", "shipped",
	"tested", "validated", "approved", "deployed",

	// Research & analysis
	"research", "analysis", "findings", "conclusion", "recommendation",
	"comparison", "evaluation", "assessment", "study",
}

var routineTerms = []string{
	"hello", "hi", "thanks", "okay", "sure", "sounds good",
	"got it", "understood", "yes", "no", "maybe", "hmm",
	"checking", "looking", "reviewing", "reading", "browsing",
}

var highPriorityTerms = []string{
	"error", "failure", "crash", "bug", "fix", "solve",
	"breakthrough", "discovery", "major", "critical", "important",
	"decision", "architecture", "design", "strategy", "direction",
}

// threshold is deliberately low: over-capture beats under-capture for
// a memory store that gets cleaned up later.
const threshold = 0.3

// Score lower-cases text and context, counts term-list membership with
// plain substring tests (not word-boundary aware), and combines:
//
//	score = max(0, sig*0.3 + min(len(text)/200, 1)*0.2 + high*0.5 - routine*0.1)
//
// A span is significant when score >= 0.3.
func (KeywordScorer) Score(text, context string) Result {
	combined := strings.ToLower(text) + " " + strings.ToLower(context)

	sigCount := countHits(significantTerms, combined)
	routineCount := countHits(routineTerms, combined)
	highCount := countHits(highPriorityTerms, combined)

	lengthScore := float64(len(text)) / 200.0
	if lengthScore > 1.0 {
		lengthScore = 1.0
	}

	score := float64(sigCount)*0.3 + lengthScore*0.2 + float64(highCount)*0.5 - float64(routineCount)*0.1
	if score < 0 {
		score = 0
	}

	significant := score >= threshold

	var reason string
	if significant {
		var parts []string
		if sigCount > 0 {
			parts = append(parts, fmt.Sprintf("%d significance indicators", sigCount))
		}
		if highCount > 0 {
			parts = append(parts, fmt.Sprintf("%d high-priority patterns", highCount))
		}
		if lengthScore > 0.5 {
			parts = append(parts, "substantial content")
		}
		reason = fmt.Sprintf("SIGNIFICANT: %s (score: %.2f)", strings.Join(parts, ", "), score)
	} else {
		reason = fmt.Sprintf("ROUTINE: Low significance score (%.2f), likely routine interaction", score)
	}

	return Result{Significant: significant, Reason: reason, Confidence: score}
}

// countHits returns how many list terms occur in s. Each term counts
// at most once regardless of how often it appears.
func countHits(terms []string, s string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(s, t) {
			n++
		}
	}
	return n
}
