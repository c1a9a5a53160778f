// Package materialize extracts FILE blocks from generator output and
// writes them under allow-listed roots. Every write goes through the
// sandbox.
package materialize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/atomiq/atomiq/core/infra/logging"
	"github.com/atomiq/atomiq/core/sandbox"
)

// DefaultRoots are the output categories the generator may write into.
// Anything else it emits is discarded.
var DefaultRoots = []string{"unit-tests", "bdd-tests"}

// ErrNoFiles indicates the text contained no usable file blocks. Callers
// that required generation treat this as a contract violation.
var ErrNoFiles = errors.New("no file blocks written")

// Grammar A: <<<FILE:path>>> followed by a fenced body and an end marker.
var fencedBlockRe = regexp.MustCompile(`(?s)<<<FILE:([^>]+)>>>\s*` + "```" + `(?:[\w+-]+)?\s*(.*?)` + "```" + `.*?<<<END_FILE>>>`)

// Grammar B: a FILE: header line immediately followed by a fenced body.
var headerBlockRe = regexp.MustCompile(`(?m)^FILE:\s*([^\n]+)\n` + "```" + `(?:[\w+-]+)?\n(?s:(.*?))\n` + "```")

// Block is one extracted (path, body) unit.
type Block struct {
	Path string
	Body string
}

// Extract runs both grammars over text and returns every match in order,
// grammar A first. Paths are normalized to forward slashes with leading
// separators stripped; no filtering happens here.
func Extract(text string) []Block {
	var blocks []Block
	for _, re := range []*regexp.Regexp{fencedBlockRe, headerBlockRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			blocks = append(blocks, Block{
				Path: normalizePath(m[1]),
				Body: m[2],
			})
		}
	}
	return blocks
}

// WriteBlocks materializes every allowed block from text into outRoot and
// returns the number of files written. Blocks outside the allow-list are
// skipped silently; blocks whose path escapes outRoot are dropped and
// logged. Later blocks for the same path overwrite earlier ones.
func WriteBlocks(text, outRoot string, roots []string) (int, error) {
	if len(roots) == 0 {
		roots = DefaultRoots
	}
	written := 0
	for _, b := range Extract(text) {
		if !underAllowedRoot(b.Path, roots) {
			continue
		}
		full, err := sandbox.Resolve(outRoot, b.Path)
		if err != nil {
			logging.Warn("materialize", "dropped unsafe block", "path", b.Path, "error", err)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return written, fmt.Errorf("create dirs for %s: %w", b.Path, err)
		}
		if err := os.WriteFile(full, []byte(CleanBody(b.Body)), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", b.Path, err)
		}
		written++
	}
	return written, nil
}

// CleanBody normalizes line endings to LF and guarantees exactly one
// trailing newline without touching interior content.
func CleanBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	return strings.TrimRight(body, " \t\n") + "\n"
}

func normalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	return strings.TrimLeft(p, "/")
}

func underAllowedRoot(path string, roots []string) bool {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+"/") {
			return true
		}
	}
	return false
}
