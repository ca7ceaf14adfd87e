// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes studyai captures, summaries and flashcards to LLM clients
// via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/studyai/internal/capture"
	"github.com/starford/studyai/internal/flashcards"
	"github.com/starford/studyai/internal/models"
	"github.com/starford/studyai/internal/persist"
	"github.com/starford/studyai/internal/summaries"
)

const contractURI = "studyai://capture-format"

// Server wraps the MCP server with studyai tools.
type Server struct {
	mcp        *server.MCPServer
	persist    *persist.Adapter
	summaries  *summaries.Service
	flashcards *flashcards.Workflow
	pdf        capture.Extractor
	fetch      fetcher
}

// New creates a new MCP server with all studyai tools registered. pdf may be
// nil to use the default extractor.
func New(p *persist.Adapter, sums *summaries.Service, cards *flashcards.Workflow, pdf capture.Extractor) *Server {
	s := &Server{persist: p, summaries: sums, flashcards: cards, pdf: pdf, fetch: fetchHTTP}

	s.mcp = server.NewMCPServer(
		"studyai",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("summarize_text",
		mcp.WithDescription("Summarize a text or transcribed voice note and save the note with its summary. "+
			"Read the capture contract first via get_capture_contract."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the note")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Note text to summarize")),
		mcp.WithString("source", mcp.Description("Capture source: text (default) or voice")),
		mcp.WithString("summary_type", mcp.Description("Summary style passed to the backend, e.g. detailed")),
		mcp.WithBoolean("long", mcp.Description("Require at least 300 characters, as for pasted notes")),
	), s.summarizeText)

	s.mcp.AddTool(mcp.NewTool("summarize_pdf",
		mcp.WithDescription("Import a PDF, summarize its text and save the note with its summary."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or base64 data URI (data:application/pdf;base64,...)")),
		mcp.WithString("title", mcp.Description("Title of the note (defaults to the file name)")),
		mcp.WithString("summary_type", mcp.Description("Summary style passed to the backend")),
	), s.summarizePDF)

	s.mcp.AddTool(mcp.NewTool("list_summaries",
		mcp.WithDescription("List saved summaries, newest first."),
	), s.listSummaries)

	s.mcp.AddTool(mcp.NewTool("search_summaries",
		mcp.WithDescription("Full-text search through notes and their summaries."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchSummaries)

	s.mcp.AddTool(mcp.NewTool("generate_flashcards",
		mcp.WithDescription("Generate a flashcard set from note content and return the created set."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note content to generate cards from")),
		mcp.WithString("set_name", mcp.Required(), mcp.Description("Name of the new set")),
		mcp.WithString("note_id", mcp.Description("Id of the note the set belongs to")),
		mcp.WithString("note_title", mcp.Description("Title of the note the set belongs to")),
	), s.generateFlashcards)

	s.mcp.AddTool(mcp.NewTool("list_flashcard_sets",
		mcp.WithDescription("List flashcard sets."),
	), s.listFlashcardSets)

	s.mcp.AddTool(mcp.NewTool("get_capture_contract",
		mcp.WithDescription("Returns the capture contract: what a capture needs before it can be summarized."),
	), s.getCaptureContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Capture Contract",
			mcp.WithResourceDescription("Requirements a capture must meet before it is summarized."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) summarizeText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := req.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src := models.SourceKind(req.GetString("source", string(models.SourceText)))
	if src != models.SourceText && src != models.SourceVoice {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported source: %s (text or voice)", src)), nil
	}

	cp := models.Capture{Title: title, Body: body, Source: src, SummaryType: req.GetString("summary_type", "")}
	saved, err := s.persist.SaveServerAtomic(ctx, cp, req.GetBool("long", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(saved), nil
}

func (s *Server) summarizePDF(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	if strings.HasPrefix(rawURL, "data:") {
		data, err = decodeDataURI(rawURL)
	} else {
		data, err = s.fetch(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := checkPDF(data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := filenameFromURL(rawURL)
	title := req.GetString("title", "")
	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(name, ".pdf")
	}
	cp, err := capture.ImportPDF(s.pdf, name, data, title)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cp.SummaryType = req.GetString("summary_type", "")

	saved, err := s.persist.SaveServerAtomic(ctx, cp, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(saved), nil
}

func (s *Server) listSummaries(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.summaries.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no summaries found"), nil
	}
	return jsonResult(items), nil
}

func (s *Server) searchSummaries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.summaries.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) generateFlashcards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	setName, err := req.RequireString("set_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sess := s.flashcards.NewSession()
	set, err := sess.Generate(ctx, flashcards.GenerateInput{
		Content:   content,
		SetName:   setName,
		NoteID:    req.GetString("note_id", ""),
		NoteTitle: req.GetString("note_title", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(set), nil
}

func (s *Server) listFlashcardSets(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sets, err := s.flashcards.ListSets(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(sets) == 0 {
		return mcp.NewToolResultText("no flashcard sets found"), nil
	}
	return jsonResult(sets), nil
}

func (s *Server) getCaptureContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CaptureContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     CaptureContract,
		},
	}, nil
}
