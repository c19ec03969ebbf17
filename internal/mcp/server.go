package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/taishikato/supavec-api/internal/api"
	"github.com/taishikato/supavec-api/internal/database"
	"github.com/taishikato/supavec-api/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Searcher queries chunk documents.
type Searcher interface {
	HybridSearch(ctx context.Context, query string, queryEmbedding []float32, fileIDs []string, limit int) ([]models.Document, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
}

// Files lists and reads a team's file rows.
type Files interface {
	ListFiles(ctx context.Context, teamID string, limit int) ([]models.File, error)
	GetFile(ctx context.Context, teamID, fileID string) (*models.File, error)
}

// Embedder embeds search queries. Optional.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Deps are the collaborators behind the tools.
type Deps struct {
	Auth     api.Authenticator
	Scraper  api.Scraper
	Usage    api.UsageRecorder // may be nil
	Searcher Searcher
	Files    Files
	Embedder Embedder // nil means BM25 only
}

// maxTeamFiles bounds the files a search is scoped to.
const maxTeamFiles = 1000

// Server exposes scrape and search as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	deps      Deps
}

// NewServer creates a new MCP server with scrape and search tools.
func NewServer(config Config, deps Deps) *Server {
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		deps:      deps,
	}

	scrapeTool := mcp.NewTool("scrape_url",
		mcp.WithDescription("Fetch a web page, store it as markdown and index its chunks for search. Returns the markdown, the chunks and the new file_id."),
		mcp.WithString("api_key",
			mcp.Required(),
			mcp.Description("API key (UUID) of the calling team"),
		),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Page URL to scrape"),
		),
		mcp.WithNumber("chunk_size",
			mcp.Description("Maximum characters per chunk (default: 1500)"),
		),
		mcp.WithNumber("chunk_overlap",
			mcp.Description("Characters shared between consecutive chunks (default: 20)"),
		),
	)
	mcpServer.AddTool(scrapeTool, s.scrapeHandler)

	searchTool := mcp.NewTool("search_documents",
		mcp.WithDescription("Search the calling team's indexed chunks by query."),
		mcp.WithString("api_key",
			mcp.Required(),
			mcp.Description("API key (UUID) of the calling team"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	getDocTool := mcp.NewTool("get_document",
		mcp.WithDescription("Get a specific chunk document by ID ({file_id}-{chunk_index})"),
		mcp.WithString("api_key",
			mcp.Required(),
			mcp.Description("API key (UUID) of the calling team"),
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Document ID to retrieve"),
		),
	)
	mcpServer.AddTool(getDocTool, s.getDocumentHandler)

	return s
}

// scrapeHandler handles the scrape_url tool call.
func (s *Server) scrapeHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.deps.Auth.Authenticate(ctx, req.GetString("api_key", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pageURL, err := req.RequireString("url")
	if err != nil {
		s.record(id, api.MsgURLRequired)
		return mcp.NewToolResultError(api.MsgURLRequired), nil
	}

	scrapeReq := models.ScrapeRequest{URL: pageURL}
	args := req.GetArguments()
	if args["chunk_size"] != nil {
		size := req.GetInt("chunk_size", 0)
		scrapeReq.ChunkSize = &size
	}
	if args["chunk_overlap"] != nil {
		overlap := req.GetInt("chunk_overlap", 0)
		scrapeReq.ChunkOverlap = &overlap
	}

	result, err := s.deps.Scraper.Run(ctx, id, scrapeReq)
	if err != nil {
		s.record(id, err.Error())
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.record(id, "")

	return jsonResult(result)
}

// searchHandler handles the search_documents tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.deps.Auth.Authenticate(ctx, req.GetString("api_key", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := req.GetInt("limit", 10)

	docs, err := s.handleSearch(ctx, id.TeamID, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return jsonResult(docs)
}

// getDocumentHandler handles the get_document tool call.
func (s *Server) getDocumentHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.deps.Auth.Authenticate(ctx, req.GetString("api_key", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	docID, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	doc, err := s.handleGetDocument(ctx, id.TeamID, docID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get document failed: %v", err)), nil
	}

	if doc == nil {
		return mcp.NewToolResultError(fmt.Sprintf("document not found: %s", docID)), nil
	}

	return jsonResult(doc)
}

// handleSearch searches the team's documents. A team without files has
// nothing to search.
func (s *Server) handleSearch(ctx context.Context, teamID, query string, limit int) ([]models.Document, error) {
	files, err := s.deps.Files.ListFiles(ctx, teamID, maxTeamFiles)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return []models.Document{}, nil
	}

	fileIDs := make([]string, len(files))
	for i, f := range files {
		fileIDs[i] = f.FileID
	}

	var vector []float32
	if s.deps.Embedder != nil {
		vector, err = s.deps.Embedder.Embed(ctx, query)
		if err != nil {
			slog.Warn("query embedding failed, using text search only", "error", err)
			vector = nil
		}
	}

	return s.deps.Searcher.HybridSearch(ctx, query, vector, fileIDs, limit)
}

// handleGetDocument retrieves a document by ID if it belongs to the team.
func (s *Server) handleGetDocument(ctx context.Context, teamID, docID string) (*models.Document, error) {
	doc, err := s.deps.Searcher.GetDocument(ctx, docID)
	if err != nil || doc == nil {
		return nil, err
	}
	// A file of another team is not visible to this one.
	if _, err := s.deps.Files.GetFile(ctx, teamID, doc.Metadata.FileID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func (s *Server) record(id models.Identity, errMsg string) {
	if s.deps.Usage == nil {
		return
	}
	entry := models.UsageLog{UserID: id.UserID, Endpoint: "mcp:scrape_url", Success: errMsg == ""}
	if errMsg != "" {
		entry.Error = &errMsg
	}
	s.deps.Usage.Record(entry)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
