// Package debug provides env-gated diagnostic printing for the search core,
// matching the DEBUG=1 behavior spec.md §6 documents.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// output is the writer diagnostic lines go to; nil means discard.
var (
	mu     sync.Mutex
	output io.Writer = os.Stderr
)

// SetOutput redirects diagnostic output, chiefly for tests. Pass nil to
// discard.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Enabled reports whether DEBUG=1 (or "true") is set in the environment.
func Enabled() bool {
	v := os.Getenv("DEBUG")
	return v == "1" || v == "true"
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// Log prints a component-tagged diagnostic line when DEBUG is enabled.
func Log(component, format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// Discovery logs a diagnostic for the File List Cache / walk stage.
func Discovery(format string, args ...interface{}) { Log("DISCOVERY", format, args...) }

// Match logs a diagnostic for the Content Matcher stage.
func Match(format string, args ...interface{}) { Log("MATCH", format, args...) }

// Block logs a diagnostic for the Block Extractor stage.
func Block(format string, args ...interface{}) { Log("BLOCK", format, args...) }

// Rank logs a diagnostic for the Ranker/Limiter stage.
func Rank(format string, args ...interface{}) { Log("RANK", format, args...) }

// Query logs a diagnostic for the Query Compiler stage.
func Query(format string, args ...interface{}) { Log("QUERY", format, args...) }

// MCP logs a diagnostic for the MCP server's lifecycle (start/shutdown).
func MCP(format string, args ...interface{}) { Log("MCP", format, args...) }
