// Package chunker splits Markdown documents into header-delimited sections.
package chunker

import (
	"regexp"
	"strings"
)

// headerRe matches a top-level or second-level Markdown header line.
// Splitting is single-level: deeper headers (###) stay inside the
// surrounding section's body.
var headerRe = regexp.MustCompile(`(?m)^##?\s+.*$`)

// IntroSection labels the un-headed leading span of a document.
const IntroSection = "Intro"

// Chunk is one header-delimited span of a document, the unit of
// scoring and indexing.
type Chunk struct {
	Content string
	Section string
	Source  string
}

// Split partitions text at every `#`/`##` header line. Content before
// the first header becomes an "Intro" chunk when non-empty; every
// header's body becomes a chunk named after the header text; sections
// whose trimmed body is empty are dropped. Chunk order is document
// order.
func Split(source, text string) []Chunk {
	locs := headerRe.FindAllStringIndex(text, -1)

	var chunks []Chunk
	intro := text
	if len(locs) > 0 {
		intro = text[:locs[0][0]]
	}
	if s := strings.TrimSpace(intro); s != "" {
		chunks = append(chunks, Chunk{Content: s, Section: IntroSection, Source: source})
	}

	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(text[loc[1]:end])
		if body == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Content: body,
			Section: sectionName(text[loc[0]:loc[1]]),
			Source:  source,
		})
	}
	return chunks
}

// sectionName strips marker characters and surrounding whitespace from
// a header line.
func sectionName(header string) string {
	return strings.TrimSpace(strings.ReplaceAll(header, "#", ""))
}
