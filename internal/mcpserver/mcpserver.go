// Package mcpserver exposes search() and extract() as Model Context Protocol
// tools over stdio, for AI assistants that speak MCP instead of invoking the
// CLI directly. Grounded on the teacher's internal/mcp package: the
// NewServer/registerTools/AddTool registration shape and the
// json.Unmarshal-then-createJSONResponse handler pattern are kept; the
// dozens of indexing-product tools are replaced with exactly two.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/codeprobe/internal/config"
	cperrors "github.com/standardbeagle/codeprobe/internal/errors"
	"github.com/standardbeagle/codeprobe/internal/searchcore"
	"github.com/standardbeagle/codeprobe/internal/version"
)

// Server wraps the shared Core and Config, and registers the search/extract
// tools with the MCP server instance.
type Server struct {
	core   *searchcore.Core
	cfg    *config.Config
	root   string
	server *mcp.Server
}

// NewServer builds the MCP server and registers its tools, mirroring the
// teacher's NewServer(...)/registerTools() split.
func NewServer(core *searchcore.Core, cfg *config.Config, root string) *Server {
	s := &Server{core: core, cfg: cfg, root: root}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "codeprobe-mcp-server",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s
}

// Start runs the server over stdio until ctx is cancelled or the transport
// closes, mirroring the teacher's Start(ctx) -> server.Run(ctx, &mcp.StdioTransport{}).
func (s *Server) Start(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools registers the two tools this server exposes.
func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "search",
		Description: "Search a codebase for code blocks matching a query, using tree-sitter-aware block extraction and BM25 ranking.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"queries": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "One or more search terms, joined with spaces into one query; whitespace-separated terms combine with OR unless AND or a +term/-term prefix is used",
				},
				"path": {
					Type:        "string",
					Description: "Root directory to search (default: current directory)",
				},
				"files_only": {
					Type:        "boolean",
					Description: "Return whole matched files instead of extracted code blocks",
				},
				"allow_tests": {
					Type:        "boolean",
					Description: "Include test files and test-named declarations in results",
				},
				"exact": {
					Type:        "boolean",
					Description: "Disable stemming/compound-splitting and match query terms literally",
				},
				"no_merge": {
					Type:        "boolean",
					Description: "Keep overlapping blocks separate instead of merging them",
				},
				"include_filenames": {
					Type:        "boolean",
					Description: "Also match and rank on the file path, not just file content",
				},
				"frequency_search": {
					Type:        "boolean",
					Description: "Rank candidate files by raw match count before block extraction",
				},
				"reranker": {
					Type:        "string",
					Description: "Optional reranker model name (BERT rerankers are recognized but fall back to BM25 when unavailable)",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of results to return",
				},
				"max_bytes": {
					Type:        "integer",
					Description: "Maximum total bytes of code across all returned results",
				},
				"max_tokens": {
					Type:        "integer",
					Description: "Maximum total GPT-BPE tokens of code across all returned results",
				},
				"session_id": {
					Type:        "string",
					Description: "Opaque session identifier; blocks already returned under this session/query pair are skipped",
				},
				"custom_ignores": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Additional gitignore-style patterns to exclude from the search",
				},
			},
			Required: []string{"queries"},
		},
	}, s.handleSearch)

	s.server.AddTool(&mcp.Tool{
		Name:        "extract",
		Description: "Extract a file, or the code block enclosing a specific line of a file, using tree-sitter's acceptable-parent node resolution.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file_path": {
					Type:        "string",
					Description: "Path to the file to extract from",
				},
				"line": {
					Type:        "integer",
					Description: "1-based line number to resolve to its enclosing block; omit to return the whole file",
				},
				"allow_tests": {
					Type:        "boolean",
					Description: "Allow the resolved block to be a test declaration",
				},
				"context_lines": {
					Type:        "integer",
					Description: "Lines of context to use when the line's language has no block-extraction support",
				},
			},
			Required: []string{"file_path"},
		},
	}, s.handleExtract)
}

// searchToolParams is the JSON shape the search tool accepts.
type searchToolParams struct {
	Queries          []string `json:"queries"`
	Path             string   `json:"path"`
	FilesOnly        bool     `json:"files_only"`
	AllowTests       bool     `json:"allow_tests"`
	Exact            bool     `json:"exact"`
	NoMerge          bool     `json:"no_merge"`
	IncludeFilenames bool     `json:"include_filenames"`
	FrequencySearch  bool     `json:"frequency_search"`
	Reranker         string   `json:"reranker"`
	MaxResults       int      `json:"max_results"`
	MaxBytes         int      `json:"max_bytes"`
	MaxTokens        int      `json:"max_tokens"`
	SessionID        string   `json:"session_id"`
	CustomIgnores    []string `json:"custom_ignores"`
}

// extractToolParams is the JSON shape the extract tool accepts.
type extractToolParams struct {
	FilePath     string `json:"file_path"`
	Line         *int   `json:"line"`
	AllowTests   bool   `json:"allow_tests"`
	ContextLines int    `json:"context_lines"`
}

// searchResultView is the JSON shape a SearchResult renders to over MCP.
type searchResultView struct {
	File      string  `json:"file"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	NodeType  string  `json:"node_type"`
	Code      string  `json:"code"`
	Rank      int     `json:"rank,omitempty"`
	Score     float64 `json:"score,omitempty"`
	BM25      float64 `json:"bm25,omitempty"`

	ParentNodeType  string `json:"parent_node_type,omitempty"`
	ParentStartLine int    `json:"parent_start_line,omitempty"`
	ParentEndLine   int    `json:"parent_end_line,omitempty"`
}

func toView(r searchcore.SearchResult) searchResultView {
	v := searchResultView{
		File: r.File, StartLine: r.StartLine, EndLine: r.EndLine,
		NodeType: r.NodeType, Code: r.Code,
		Rank: r.Rank, Score: r.Score, BM25: r.BM25,
	}
	if r.HasParent {
		v.ParentNodeType = r.ParentNodeType
		v.ParentStartLine = r.ParentStartLine
		v.ParentEndLine = r.ParentEndLine
	}
	return v
}

// handleSearch decodes a search tool call, runs Core.Search, and reports
// the results as JSON text content.
func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p searchToolParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("search", fmt.Errorf("invalid parameters: %w", err)), nil
	}

	root := p.Path
	if root == "" {
		root = s.root
	}

	maxResults := p.MaxResults
	if maxResults == 0 {
		maxResults = s.cfg.Search.MaxResults
	}
	maxBytes := p.MaxBytes
	if maxBytes == 0 {
		maxBytes = s.cfg.Search.MaxBytes
	}
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.cfg.Search.MaxTokens
	}
	reranker := p.Reranker
	if reranker == "" {
		reranker = s.cfg.Search.Reranker
	}

	result, err := s.core.Search(ctx, searchcore.SearchParams{
		Root:             root,
		Queries:          p.Queries,
		FilesOnly:        p.FilesOnly,
		CustomIgnores:    p.CustomIgnores,
		IncludeFilenames: p.IncludeFilenames,
		Reranker:         reranker,
		FrequencySearch:  p.FrequencySearch,
		MaxResults:       maxResults,
		MaxBytes:         maxBytes,
		MaxTokens:        maxTokens,
		AllowTests:       p.AllowTests || s.cfg.Search.AllowTests,
		Exact:            p.Exact,
		NoMerge:          p.NoMerge,
		SessionID:        p.SessionID,
	})
	if err != nil {
		return errorResult("search", err), nil
	}

	views := make([]searchResultView, 0, len(result.Results))
	for _, r := range result.Results {
		views = append(views, toView(r))
	}
	skipped := make([]searchResultView, 0, len(result.SkippedFiles))
	for _, r := range result.SkippedFiles {
		skipped = append(skipped, toView(r))
	}

	return jsonResult(map[string]interface{}{
		"results":        views,
		"skipped_files":  skipped,
		"limits_applied": result.LimitsApplied,
	})
}

// handleExtract decodes an extract tool call and runs Core.Extract.
func (s *Server) handleExtract(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p extractToolParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult("extract", fmt.Errorf("invalid parameters: %w", err)), nil
	}

	contextLines := p.ContextLines
	if contextLines == 0 {
		contextLines = s.cfg.Extract.ContextLines
	}

	result, err := s.core.Extract(ctx, searchcore.ExtractParams{
		FilePath:     p.FilePath,
		Line:         p.Line,
		AllowTests:   p.AllowTests || s.cfg.Extract.AllowTests,
		ContextLines: contextLines,
	})
	if err != nil {
		return errorResult("extract", err), nil
	}

	return jsonResult(toView(result))
}

// jsonResult marshals data into a single TextContent result, mirroring the
// teacher's createJSONResponse.
func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

// errorResult builds an in-band MCP error response (IsError: true), per the
// MCP spec's guidance that tool errors belong in the result, not as a
// protocol-level error, so the calling model can see and self-correct. Kept
// from the teacher's createErrorResponse.
func errorResult(operation string, err error) *mcp.CallToolResult {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}
	if ce, ok := err.(*cperrors.CoreError); ok {
		errorData["kind"] = string(ce.Kind)
		errorData["recoverable"] = ce.Recoverable
	}

	content, marshalErr := json.Marshal(errorData)
	if marshalErr != nil {
		content = []byte(`{"success":false,"error":"failed to marshal error"}`)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
		IsError: true,
	}
}
