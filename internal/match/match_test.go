package match

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBinaryByExtension(t *testing.T) {
	assert.True(t, IsBinaryByExtension("logo.png"))
	assert.False(t, IsBinaryByExtension("main.go"))
	assert.False(t, IsBinaryByExtension("bundle.min.js"))
}

func TestIsBinaryByContentDetectsPNGMagicNumber(t *testing.T) {
	content := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}
	assert.True(t, IsBinaryByContent(content))
}

func TestIsBinaryByContentAllowsPlainText(t *testing.T) {
	assert.False(t, IsBinaryByContent([]byte("package main\n\nfunc main() {}\n")))
}

func TestMatchFindsCaseInsensitiveLines(t *testing.T) {
	content := []byte("package main\n\nfunc Auth() error {\n\treturn nil\n}\n")
	re := regexp.MustCompile(`(?i)auth`)

	res := Match("auth.go", content, re)

	assert.True(t, res.MatchedAny)
	assert.Contains(t, res.Lines, 3)
	assert.Equal(t, []string{"Auth"}, res.Lines[3])
}

func TestMatchSkipsBinaryFiles(t *testing.T) {
	content := []byte{0xFF, 0xD8, 0xFF, 0x00, 0x01, 0x02}
	re := regexp.MustCompile(`(?i).`)

	res := Match("photo.jpg", content, re)

	assert.False(t, res.MatchedAny)
	assert.Empty(t, res.Lines)
}

func TestMatchSkipsOverlongLines(t *testing.T) {
	longLine := strings.Repeat("a", maxLineLength+1) + "needle"
	content := []byte("short needle\n" + longLine + "\n")
	re := regexp.MustCompile(`(?i)needle`)

	res := Match("file.txt", content, re)

	assert.True(t, res.MatchedAny)
	assert.Contains(t, res.Lines, 1)
	assert.NotContains(t, res.Lines, 2)
}

func TestMatchNoMatches(t *testing.T) {
	content := []byte("nothing interesting here\n")
	re := regexp.MustCompile(`(?i)needle`)

	res := Match("file.txt", content, re)

	assert.False(t, res.MatchedAny)
	assert.Empty(t, res.Lines)
}
