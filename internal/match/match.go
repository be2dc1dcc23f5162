// Package match implements the Content Matcher of spec.md §4.6: per-file,
// per-regex line matching with binary-file rejection, adapted from the
// teacher's indexing.BinaryDetector.
package match

import (
	"bufio"
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
)

const maxLineLength = 2000

// binaryExtensions mirrors the teacher's BinaryDetector extension table,
// trimmed to the entries relevant to a search tool (no document/media
// formats beyond what a source tree typically contains).
var binaryExtensions = map[string]bool{
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".tiff": true, ".tif": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
	".7z": true, ".rar": true, ".jar": true, ".war": true, ".ear": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".obj": true, ".bin": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".wav": true, ".flac": true, ".ogg": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
	".pyc": true, ".pyo": true, ".class": true, ".pickle": true, ".pkl": true,
}

// IsBinaryByExtension reports whether path's extension is a known binary
// format. Minified JS/CSS and source maps are deliberately treated as text.
func IsBinaryByExtension(path string) bool {
	if strings.HasSuffix(path, ".min.js") || strings.HasSuffix(path, ".min.css") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext != "" && binaryExtensions[ext]
}

// IsBinaryByContent applies the teacher's magic-number + null-byte heuristic
// over the first 512 bytes of content.
func IsBinaryByContent(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	checkLen := 512
	if len(content) < checkLen {
		checkLen = len(content)
	}
	sample := content[:checkLen]

	signatures := [][]byte{
		{0x1F, 0x8B},             // gzip
		{0x50, 0x4B, 0x03, 0x04}, // zip
		{0x50, 0x4B, 0x05, 0x06},
		{0x89, 0x50, 0x4E, 0x47}, // PNG
		{0xFF, 0xD8, 0xFF},       // JPEG
		{0x47, 0x49, 0x46, 0x38}, // GIF
		{0x25, 0x50, 0x44, 0x46}, // PDF
		{0x7F, 0x45, 0x4C, 0x46}, // ELF
		{0x4D, 0x5A},             // DOS/Windows executable
		{0xCA, 0xFE, 0xBA, 0xBE}, // Mach-O
		{0x77, 0x4F, 0x46, 0x46}, // WOFF
		{0x77, 0x4F, 0x46, 0x32}, // WOFF2
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(sample, sig) {
			return true
		}
	}

	nullBytes, nonPrintable := 0, 0
	for _, b := range sample {
		if b == 0 {
			nullBytes++
		}
		if b < 0x20 && b != 0x09 && b != 0x0A && b != 0x0D {
			nonPrintable++
		}
	}
	if nullBytes > len(sample)/100 {
		return true
	}
	if nonPrintable > len(sample)*30/100 {
		return true
	}
	return false
}

// IsBinary combines the extension and content heuristics, checking the
// cheap extension test first.
func IsBinary(path string, content []byte) bool {
	if IsBinaryByExtension(path) {
		return true
	}
	return IsBinaryByContent(content)
}

// Result is the per-file output of Match: whether the regex matched at all,
// and the matched substrings on each matching line (1-based line numbers).
type Result struct {
	MatchedAny bool
	Lines      map[int][]string
}

// Match scans content line by line looking for re as given; the patterns
// the callers pass carry the (?i) flag, which makes the scan case-insensitive.
// Binary files are rejected outright. Lines longer than 2000 characters are
// skipped without being scanned, matching the teacher's guard against
// pathological minified/generated lines.
func Match(path string, content []byte, re *regexp.Regexp) Result {
	res := Result{Lines: make(map[int][]string)}
	if IsBinary(path, content) {
		return res
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if len(line) > maxLineLength {
			continue
		}
		matches := re.FindAllString(line, -1)
		if len(matches) == 0 {
			continue
		}
		res.MatchedAny = true
		res.Lines[lineNo] = matches
	}
	return res
}
