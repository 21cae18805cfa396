// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Dagaz outline tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/noteservice"
	"github.com/starford/dagaz/internal/outline"
)

const rulesURI = "dagaz://outline-rules"

// Server wraps the MCP server with Dagaz tools.
type Server struct {
	mcp       *server.MCPServer
	svc       *noteservice.Service
	workspace string
}

// New creates a new MCP server with all Dagaz tools registered. workspace is
// used when a tool call does not name one.
func New(svc *noteservice.Service, workspace string) *Server {
	s := &Server{svc: svc, workspace: workspace}

	s.mcp = server.NewMCPServer(
		"Dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	wsOpt := mcp.WithString("workspace", mcp.Description("Workspace name (defaults to the server's workspace)"))

	s.mcp.AddTool(mcp.NewTool("get_outline",
		mcp.WithDescription("Return the visible outline rows with depth, legal operations and the current revision. "+
			"Read the outline rules resource ("+rulesURI+") first."),
		wsOpt,
		mcp.WithString("expanded", mcp.Description("Comma-separated ids of expanded notes, or * to expand everything")),
	), s.getOutline)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note's title, content, placement and descendant count."),
		wsOpt,
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note at the end of its sibling group."),
		wsOpt,
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content; the title is derived from it when omitted")),
		mcp.WithString("title", mcp.Description("Optional title")),
		mcp.WithString("parent_id", mcp.Description("Parent note id (empty for a root note)")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("move_note",
		mcp.WithDescription("Apply one reorder operation. Only use an operation whose legality flag is true."),
		wsOpt,
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("op", mcp.Required(), mcp.Enum("up", "down", "promote", "demote"), mcp.Description("Operation")),
		mcp.WithString("revision", mcp.Description("Outline revision the decision was based on")),
		mcp.WithString("expanded", mcp.Description("Comma-separated ids of expanded notes, or * to expand everything")),
	), s.moveNote)

	s.mcp.AddTool(mcp.NewTool("drop_note",
		mcp.WithDescription("Drop a note over another visible row, as a drag-and-drop gesture would."),
		wsOpt,
		mcp.WithString("id", mcp.Required(), mcp.Description("Dragged note id")),
		mcp.WithString("over", mcp.Required(), mcp.Description("Id of the row it is dropped on")),
		mcp.WithString("revision", mcp.Description("Outline revision the decision was based on")),
		mcp.WithString("expanded", mcp.Description("Comma-separated ids of expanded notes, or * to expand everything")),
	), s.dropNote)

	s.mcp.AddTool(mcp.NewTool("preview_delete",
		mcp.WithDescription("Report how many descendants would be removed together with a note."),
		wsOpt,
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.previewDelete)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and content."),
		wsOpt,
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Outline Rules",
			mcp.WithResourceDescription("How the outline is ordered and which reorder operations exist."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRulesResource,
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

func (s *Server) ws(req mcp.CallToolRequest) string {
	return req.GetString("workspace", s.workspace)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := s.svc.Outline(ctx, s.ws(req), outline.ParseExpandSet(req.GetString("expanded", "")))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(view)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, s.ws(req), id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parent := req.GetString("parent_id", "")
	note, err := s.svc.CreateNote(ctx, s.ws(req), noteservice.CreateInput{
		Title:    req.GetString("title", ""),
		Content:  content,
		ParentID: &parent,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) moveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawOp, err := req.RequireString("op")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	op, err := outline.ParseOp(rawOp)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Move(ctx, s.ws(req), id, op,
		req.GetString("revision", ""),
		outline.ParseExpandSet(req.GetString("expanded", "")))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) dropNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	over, err := req.RequireString("over")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Drop(ctx, s.ws(req), id, over,
		req.GetString("revision", ""),
		outline.ParseExpandSet(req.GetString("expanded", "")))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) previewDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.PreviewDelete(ctx, s.ws(req), id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(p)
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, s.ws(req), query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	return jsonResult(results)
}

func (s *Server) readRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "text/markdown",
			Text:     OutlineRules,
		},
	}, nil
}
