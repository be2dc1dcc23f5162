package debug

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withDebugEnv(t *testing.T, value string) func() {
	t.Helper()
	prev, had := os.LookupEnv("DEBUG")
	os.Setenv("DEBUG", value)
	return func() {
		if had {
			os.Setenv("DEBUG", prev)
		} else {
			os.Unsetenv("DEBUG")
		}
	}
}

func TestLogDisabledByDefault(t *testing.T) {
	restore := withDebugEnv(t, "")
	defer restore()

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Log("TEST", "hello %s", "world")
	assert.Empty(t, buf.String())
}

func TestLogEnabled(t *testing.T) {
	restore := withDebugEnv(t, "1")
	defer restore()

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Log("TEST", "hello %s", "world")
	assert.Contains(t, buf.String(), "[DEBUG:TEST]")
	assert.Contains(t, buf.String(), "hello world")
}

func TestComponentHelpers(t *testing.T) {
	restore := withDebugEnv(t, "true")
	defer restore()

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Discovery("scanned %d files", 3)
	Match("matched %d lines", 2)
	Block("extracted %d blocks", 1)
	Rank("scored %d results", 1)
	Query("compiled plan with %d terms", 4)

	out := buf.String()
	for _, tag := range []string{"DISCOVERY", "MATCH", "BLOCK", "RANK", "QUERY"} {
		assert.Contains(t, out, "[DEBUG:"+tag+"]")
	}
}

func TestNilOutputDiscardsSilently(t *testing.T) {
	restore := withDebugEnv(t, "1")
	defer restore()

	SetOutput(nil)
	defer SetOutput(os.Stderr)

	assert.NotPanics(t, func() {
		Log("TEST", "no writer configured")
	})
}
