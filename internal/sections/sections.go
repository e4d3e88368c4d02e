// Package sections models a Markdown document as an ordered list of
// {header, body} nodes with named insertion operations, so callers can
// place content relative to sections instead of splicing strings.
// Rendering an unmodified document reproduces its input byte for byte.
package sections

import (
	"regexp"
	"strings"
)

var headerRe = regexp.MustCompile(`(?m)^##?\s+.*$`)

// Doc is a parsed document: optional un-headed preamble followed by
// sections in document order.
type Doc struct {
	preamble string
	sections []Section
}

// Section is one header line and the raw text that follows it up to
// the next header. The body keeps its original whitespace, including
// the newline that terminates the header line.
type Section struct {
	header string
	body   string
}

// Level reports the header depth: 1 for `#`, 2 for `##`.
func (s Section) Level() int {
	if strings.HasPrefix(s.header, "##") {
		return 2
	}
	return 1
}

// Title returns the header text without marker characters or
// surrounding whitespace.
func (s Section) Title() string {
	return strings.TrimSpace(strings.TrimLeft(s.header, "#"))
}

// Header returns the raw header line.
func (s Section) Header() string { return s.header }

// Body returns the raw section body.
func (s Section) Body() string { return s.body }

// Parse splits text at every `#`/`##` header line. Text before the
// first header becomes the preamble; a document without headers is all
// preamble.
func Parse(text string) *Doc {
	locs := headerRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return &Doc{preamble: text}
	}
	d := &Doc{preamble: text[:locs[0][0]]}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		d.sections = append(d.sections, Section{
			header: text[loc[0]:loc[1]],
			body:   text[loc[1]:end],
		})
	}
	return d
}

// String renders the document. With no mutations the output equals the
// Parse input exactly.
func (d *Doc) String() string {
	var b strings.Builder
	b.WriteString(d.preamble)
	for _, s := range d.sections {
		b.WriteString(s.header)
		b.WriteString(s.body)
	}
	return b.String()
}

// Len returns the number of sections.
func (d *Doc) Len() int { return len(d.sections) }

// Sections returns the sections in document order. The slice is a
// copy; mutate the document through the named operations.
func (d *Doc) Sections() []Section {
	out := make([]Section, len(d.sections))
	copy(out, d.sections)
	return out
}

// InsertAfterSection places block at the end of the first matching
// section's body. A horizontal-rule boundary (`\n---`) inside the body
// caps the section: the block goes before it. Inserted text is opaque
// to the tree; re-Parse the rendered document if its structure is
// needed afterwards. Reports whether a section matched.
func (d *Doc) InsertAfterSection(match func(Section) bool, block string) bool {
	for i := range d.sections {
		if !match(d.sections[i]) {
			continue
		}
		body := d.sections[i].body
		if cut := strings.Index(body, "\n---"); cut >= 0 {
			d.sections[i].body = body[:cut] + block + body[cut:]
		} else {
			d.sections[i].body = body + block
		}
		return true
	}
	return false
}

// InsertBeforeSection places block immediately before the first
// matching section's header. Reports whether a section matched.
func (d *Doc) InsertBeforeSection(match func(Section) bool, block string) bool {
	for i := range d.sections {
		if match(d.sections[i]) {
			d.insertAt(i, block)
			return true
		}
	}
	return false
}

// InsertBeforeLastSection places block immediately before the header
// of the LAST matching section. Reports whether a section matched.
func (d *Doc) InsertBeforeLastSection(match func(Section) bool, block string) bool {
	for i := len(d.sections) - 1; i >= 0; i-- {
		if match(d.sections[i]) {
			d.insertAt(i, block)
			return true
		}
	}
	return false
}

// AppendSection places block at the very end of the document.
func (d *Doc) AppendSection(block string) {
	if n := len(d.sections); n > 0 {
		d.sections[n-1].body += block
		return
	}
	d.preamble += block
}

// RewriteSectionBody applies rewrite to the first matching section's
// body in place. Reports whether a section matched.
func (d *Doc) RewriteSectionBody(match func(Section) bool, rewrite func(body string) string) bool {
	for i := range d.sections {
		if match(d.sections[i]) {
			d.sections[i].body = rewrite(d.sections[i].body)
			return true
		}
	}
	return false
}

func (d *Doc) insertAt(i int, block string) {
	if i == 0 {
		d.preamble += block
		return
	}
	d.sections[i-1].body += block
}
