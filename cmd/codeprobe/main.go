// Command codeprobe is the CLI entry point: search/extract subcommands for
// direct use, plus an mcp subcommand exposing the same two operations over
// the Model Context Protocol. Grounded on the teacher's cmd/lci/main.go
// urfave/cli command structure, narrowed from its dozen-plus subcommands to
// the three this repo's scope needs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codeprobe/internal/config"
	"github.com/standardbeagle/codeprobe/internal/debug"
	"github.com/standardbeagle/codeprobe/internal/mcpserver"
	"github.com/standardbeagle/codeprobe/internal/searchcore"
	"github.com/standardbeagle/codeprobe/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "codeprobe",
		Usage:   "Tree-sitter-aware code search for AI assistants",
		Version: version.Version,
		Commands: []*cli.Command{
			searchSubcommand(),
			extractSubcommand(),
			mcpSubcommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func searchSubcommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "Search a codebase for code blocks matching a query",
		ArgsUsage: "<query> [query...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Project root to search", Value: "."},
			&cli.BoolFlag{Name: "files-only", Usage: "Return whole matched files instead of code blocks"},
			&cli.BoolFlag{Name: "allow-tests", Usage: "Include test files and test declarations"},
			&cli.BoolFlag{Name: "exact", Usage: "Disable stemming/compound-splitting, match terms literally"},
			&cli.BoolFlag{Name: "no-merge", Usage: "Keep overlapping blocks separate instead of merging"},
			&cli.BoolFlag{Name: "include-filenames", Usage: "Also match and rank on the file path"},
			&cli.BoolFlag{Name: "frequency", Usage: "Rank candidate files by match count before extraction"},
			&cli.StringFlag{Name: "reranker", Usage: "Optional reranker model name"},
			&cli.IntFlag{Name: "max-results", Usage: "Maximum number of results"},
			&cli.IntFlag{Name: "max-bytes", Usage: "Maximum total bytes of code across results"},
			&cli.IntFlag{Name: "max-tokens", Usage: "Maximum total GPT-BPE tokens across results"},
			&cli.StringFlag{Name: "session-id", Usage: "Dedup blocks already returned under this session/query"},
			&cli.StringSliceFlag{Name: "ignore", Usage: "Additional gitignore-style patterns to exclude"},
			&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
		},
		Action: searchCommand,
	}
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: codeprobe search <query> [query...]")
	}

	root := c.String("path")
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	maxResults := c.Int("max-results")
	if maxResults == 0 {
		maxResults = cfg.Search.MaxResults
	}
	maxBytes := c.Int("max-bytes")
	if maxBytes == 0 {
		maxBytes = cfg.Search.MaxBytes
	}
	maxTokens := c.Int("max-tokens")
	if maxTokens == 0 {
		maxTokens = cfg.Search.MaxTokens
	}
	reranker := c.String("reranker")
	if reranker == "" {
		reranker = cfg.Search.Reranker
	}

	core := searchcore.NewCore()
	result, err := core.Search(context.Background(), searchcore.SearchParams{
		Root:             root,
		Queries:          c.Args().Slice(),
		FilesOnly:        c.Bool("files-only"),
		CustomIgnores:    c.StringSlice("ignore"),
		IncludeFilenames: c.Bool("include-filenames"),
		Reranker:         reranker,
		FrequencySearch:  c.Bool("frequency"),
		MaxResults:       maxResults,
		MaxBytes:         maxBytes,
		MaxTokens:        maxTokens,
		AllowTests:       c.Bool("allow-tests") || cfg.Search.AllowTests,
		Exact:            c.Bool("exact"),
		NoMerge:          c.Bool("no-merge"),
		SessionID:        c.String("session-id"),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if c.Bool("json") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	return printSearchResults(result)
}

func printSearchResults(result searchcore.LimitedSearchResults) error {
	for _, r := range result.Results {
		fmt.Printf("%s:%d-%d: %s\n", r.File, r.StartLine, r.EndLine, r.NodeType)
		fmt.Println(r.Code)
		fmt.Println()
	}
	if result.LimitsApplied {
		fmt.Printf("-- limits applied, %d file(s) skipped --\n", len(result.SkippedFiles))
	}
	return nil
}

func extractSubcommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Aliases:   []string{"x"},
		Usage:     "Extract a file, or the code block enclosing a line of a file",
		ArgsUsage: "<file_path>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "line", Aliases: []string{"l"}, Usage: "1-based line to resolve to its enclosing block"},
			&cli.BoolFlag{Name: "allow-tests", Usage: "Allow the resolved block to be a test declaration"},
			&cli.IntFlag{Name: "context-lines", Usage: "Context lines to use when the language has no block support"},
			&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
		},
		Action: extractCommand,
	}
}

func extractCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: codeprobe extract <file_path>")
	}
	filePath := c.Args().First()

	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var line *int
	if c.IsSet("line") {
		l := c.Int("line")
		line = &l
	}

	contextLines := c.Int("context-lines")
	if contextLines == 0 {
		contextLines = cfg.Extract.ContextLines
	}

	core := searchcore.NewCore()
	result, err := core.Extract(context.Background(), searchcore.ExtractParams{
		FilePath:     filePath,
		Line:         line,
		AllowTests:   c.Bool("allow-tests") || cfg.Extract.AllowTests,
		ContextLines: contextLines,
	})
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	if c.Bool("json") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Printf("%s:%d-%d: %s\n", result.File, result.StartLine, result.EndLine, result.NodeType)
	fmt.Println(result.Code)
	return nil
}

func mcpSubcommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start an MCP server exposing search/extract over stdio",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Project root to serve", Value: "."},
		},
		Action: mcpCommand,
	}
}

func mcpCommand(c *cli.Context) error {
	root := c.String("path")
	if envProcs := os.Getenv("CODEPROBE_MAX_PROCS"); envProcs != "" {
		if parsed, err := strconv.Atoi(envProcs); err == nil && parsed > 0 {
			runtime.GOMAXPROCS(parsed)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: invalid CODEPROBE_MAX_PROCS value %q: %v\n", envProcs, err)
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	server := mcpserver.NewServer(searchcore.NewCore(), cfg, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		debug.MCP("starting server with stdio transport")
		errChan <- server.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		debug.MCP("received signal %v, shutting down", sig)
		cancel()
		return <-errChan
	}
}
