// Package graph maintains the relationship graph between corpus
// documents and their sections, persisted as node-link JSON.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/mimir/internal/chunker"
)

// Short section titles match inside unrelated prose too often to be
// useful mention targets.
const minMentionLen = 4

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Node is a document, section, or wikilink target in the graph.
type Node struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Link is a directed, labeled edge between two nodes.
type Link struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// nodeLink is the serialized file layout. The field set matches the
// node-link convention so external tooling can load the file directly.
type nodeLink struct {
	Directed   bool           `json:"directed"`
	Multigraph bool           `json:"multigraph"`
	Graph      map[string]any `json:"graph"`
	Nodes      []Node         `json:"nodes"`
	Links      []Link         `json:"links"`
}

// Builder rebuilds the relationship graph from the full chunk list.
type Builder interface {
	Rebuild(ctx context.Context, chunks []chunker.Chunk) error
}

// Noop discards every rebuild. Used when graph persistence is
// disabled.
type Noop struct{}

func (Noop) Rebuild(context.Context, []chunker.Chunk) error { return nil }

// FileBuilder derives nodes and links from chunks and replaces the
// graph file on every rebuild.
type FileBuilder struct {
	path string
}

var (
	_ Builder = (*FileBuilder)(nil)
	_ Builder = Noop{}
)

// NewFileBuilder persists the graph at path.
func NewFileBuilder(path string) *FileBuilder {
	return &FileBuilder{path: path}
}

// Path returns the graph file location.
func (b *FileBuilder) Path() string { return b.path }

// Rebuild derives the graph from chunks and atomically rewrites the
// file. Documents contain sections; sections reference wikilink
// targets and mention other sections whose title appears in their
// text.
func (b *FileBuilder) Rebuild(ctx context.Context, chunks []chunker.Chunk) error {
	g := build(chunks)

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("graph: marshal: %w", err)
	}
	if err := writeFileAtomic(b.path, data); err != nil {
		return fmt.Errorf("graph: write %s: %w", b.path, err)
	}
	return nil
}

func build(chunks []chunker.Chunk) nodeLink {
	g := nodeLink{
		Graph: map[string]any{},
		Nodes: make([]Node, 0),
		Links: make([]Link, 0),
	}
	seenNode := make(map[string]bool)
	seenLink := make(map[string]bool)
	titles := make([]string, 0)

	addNode := func(id, typ string) {
		if id == "" || seenNode[id] {
			return
		}
		seenNode[id] = true
		g.Nodes = append(g.Nodes, Node{ID: id, Type: typ})
	}
	addLink := func(source, target, relation string) {
		if source == "" || target == "" || source == target {
			return
		}
		key := source + "\x00" + target + "\x00" + relation
		if seenLink[key] {
			return
		}
		seenLink[key] = true
		g.Links = append(g.Links, Link{Source: source, Target: target, Relation: relation})
	}

	// First pass fixes the node set so mention scanning can see every
	// section title regardless of chunk order.
	for _, c := range chunks {
		addNode(c.Source, "document")
		if !seenNode[c.Section] {
			titles = append(titles, c.Section)
		}
		addNode(c.Section, "section")
		addLink(c.Source, c.Section, "contains")
	}

	for _, c := range chunks {
		for _, m := range wikilinkRe.FindAllStringSubmatch(c.Content, -1) {
			target := strings.TrimSpace(m[1])
			if target == "" {
				continue
			}
			addNode(target, "reference")
			addLink(c.Section, target, "references")
		}
		for _, title := range titles {
			if title == c.Section || len(title) < minMentionLen {
				continue
			}
			if strings.Contains(c.Content, title) {
				addLink(c.Section, title, "mentions")
			}
		}
	}
	return g
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".mimir-tmp-*")
	if err != nil {
		return err
	}
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	success = true
	return nil
}
