// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the Mimir knowledge store to LLM agents via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mimir/internal/memoryservice"
	"github.com/starford/mimir/internal/promote"
)

// Defaults holds the configured fallbacks for tool calls that omit a
// parameter.
type Defaults struct {
	DaysBack      int
	MinConfidence float64
	DaysToKeep    int
	SearchK       int
}

// Server wraps the MCP server with Mimir tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *memoryservice.Service
	defaults Defaults
}

// New creates a new MCP server with all Mimir tools registered.
func New(svc *memoryservice.Service, defaults Defaults) *Server {
	s := &Server{svc: svc, defaults: defaults}

	s.mcp = server.NewMCPServer(
		"Mimir",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_memory",
		mcp.WithDescription("Semantic search over the long-term knowledge store. "+
			"Returns the most similar indexed chunks with their source document and section."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language search query")),
		mcp.WithNumber("k", mcp.Description("Number of results to return")),
	), s.searchMemory)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full content of a corpus document (summary, reference, or daily log)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path, e.g. reference/setup.md or memory/2025-06-15.md")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("log_event",
		mcp.WithDescription("Append an event to today's daily log. "+
			"Follow the log contract (mimir://log-format) so the entry can be scored and promoted later."),
		mcp.WithString("title", mcp.Description("Short section title; defaults to the current time")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body of the event")),
	), s.logEvent)

	s.mcp.AddTool(mcp.NewTool("promote_memories",
		mcp.WithDescription("Scan recent daily logs and promote significant entries into the durable summary document."),
		mcp.WithNumber("days_back", mcp.Description("How many calendar days to scan")),
		mcp.WithNumber("min_confidence", mcp.Description("Minimum significance confidence for promotion")),
		mcp.WithBoolean("dry_run", mcp.Description("Report what would be promoted without writing")),
	), s.promoteMemories)

	s.mcp.AddTool(mcp.NewTool("cleanup_memories",
		mcp.WithDescription("Expire old auto-promoted entries from the durable summary document."),
		mcp.WithNumber("days_to_keep", mcp.Description("Entries older than this many days are removed")),
	), s.cleanupMemories)

	s.mcp.AddTool(mcp.NewTool("reindex_memory",
		mcp.WithDescription("Rebuild the semantic index and relationship graph from the full corpus."),
	), s.reindexMemory)

	s.mcp.AddTool(mcp.NewTool("memory_status",
		mcp.WithDescription("Report document counts, indexed chunk count, and the embedding model in use."),
	), s.memoryStatus)

	// Resources: the durable summary document and the log contract.
	s.mcp.AddResource(
		mcp.NewResource("mimir://memory", "Durable Summary Document",
			mcp.WithResourceDescription("The long-lived markdown document accumulating promoted knowledge."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMemoryResource,
	)
	s.mcp.AddResource(
		mcp.NewResource("mimir://log-format", "Daily Log Contract",
			mcp.WithResourceDescription("How to write daily-log entries so they can be scored and promoted."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLogFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	k := req.GetInt("k", s.defaults.SearchK)

	hits, err := s.svc.Search(ctx, query, k)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Document(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(doc.Content), nil
}

func (s *Server) logEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title := req.GetString("title", "")

	path, err := s.svc.AppendLog(ctx, title, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("logged to %s", path)), nil
}

func (s *Server) promoteMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := promote.Params{
		DaysBack:      req.GetInt("days_back", s.defaults.DaysBack),
		MinConfidence: req.GetFloat("min_confidence", s.defaults.MinConfidence),
		DryRun:        req.GetBool("dry_run", false),
	}

	res, err := s.svc.Promote(ctx, params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) cleanupMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	daysToKeep := req.GetInt("days_to_keep", s.defaults.DaysToKeep)

	removed, err := s.svc.Cleanup(ctx, daysToKeep)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed %d expired entries (kept %d days)", removed, daysToKeep)), nil
}

func (s *Server) reindexMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Reindex(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("indexed %d chunks from %d documents (%d orphans removed)",
		stats.Chunks, stats.Documents, stats.Removed)), nil
}

func (s *Server) memoryStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(st, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readMemoryResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	content, err := s.svc.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "mimir://memory",
			MIMEType: "text/markdown",
			Text:     content,
		},
	}, nil
}

func (s *Server) readLogFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "mimir://log-format",
			MIMEType: "text/markdown",
			Text:     LogFormatContract,
		},
	}, nil
}
