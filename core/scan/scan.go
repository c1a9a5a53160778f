// Package scan discovers and summarizes Java sources in a working copy.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/atomiq/atomiq/core/infra/logging"
)

var (
	packageRe = regexp.MustCompile(`(?m)^\s*package\s+([\w.]+)\s*;`)
	classRe   = regexp.MustCompile(`\b(class|interface|enum)\s+(\w+)`)
	methodRe  = regexp.MustCompile(`(?m)(public|protected|private)\s+[\w<>\[\]]+\s+(\w+)\s*\(([^)]*)\)\s*(?:throws\s+[\w.,\s]+)?\s*\{`)
)

// Directory name fragments excluded from discovery. Build output and
// generated code would swamp the summaries with noise.
var skipDirs = []string{"target", "build", "out", "node_modules", "generated-sources"}

const snippetChars = 2000

// Method is a declared method signature found in a source file.
type Method struct {
	Name   string `json:"name"`
	Params string `json:"params"`
}

// Summary is a compact description of one Java source file.
type Summary struct {
	File    string   `json:"file"`
	Package string   `json:"package"`
	Class   string   `json:"class"`
	Methods []Method `json:"methods"`
	Snippet string   `json:"snippet"`
}

// Discover walks root and returns all .java files in sorted order,
// skipping build and generated directories.
func Discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".java") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover java files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func shouldSkipDir(name string) bool {
	lowered := strings.ToLower(name)
	for _, skip := range skipDirs {
		if strings.Contains(lowered, skip) {
			return true
		}
	}
	return false
}

// Summarize reads one Java file and extracts its package, first type
// declaration, method signatures and a leading snippet.
func Summarize(path string) (Summary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("read %s: %w", path, err)
	}
	src := string(raw)

	s := Summary{File: path}
	if m := packageRe.FindStringSubmatch(src); m != nil {
		s.Package = m[1]
	}
	if m := classRe.FindStringSubmatch(src); m != nil {
		s.Class = m[2]
	}
	for _, m := range methodRe.FindAllStringSubmatch(src, -1) {
		s.Methods = append(s.Methods, Method{Name: m[2], Params: strings.TrimSpace(m[3])})
	}
	if len(src) > snippetChars {
		src = src[:snippetChars]
	}
	s.Snippet = src
	return s, nil
}

// Repo discovers Java files under root and summarizes up to maxFiles of
// them. Files that cannot be summarized are skipped. An empty result with
// a nil error means the repository contains no Java sources.
func Repo(root string, maxFiles int) ([]Summary, error) {
	files, err := Discover(root)
	if err != nil {
		return nil, err
	}
	if len(files) > maxFiles {
		files = files[:maxFiles]
	}
	summaries := make([]Summary, 0, len(files))
	for _, fp := range files {
		s, err := Summarize(fp)
		if err != nil {
			logging.Warn("scan", "skipping unreadable source", "file", fp, "error", err)
			continue
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// PickTargets selects up to limit (package, class) pairs from the
// summaries, preserving order and skipping files without a type
// declaration.
func PickTargets(summaries []Summary, limit int) [][2]string {
	var picked [][2]string
	for _, s := range summaries {
		if s.Class == "" {
			continue
		}
		picked = append(picked, [2]string{s.Package, s.Class})
		if len(picked) >= limit {
			break
		}
	}
	return picked
}

// Bundle renders the summaries as a compact context document for the
// generation prompt. At most maxFiles summaries are included and each
// snippet is truncated to perFileChars.
func Bundle(summaries []Summary, maxFiles, perFileChars int) string {
	var b strings.Builder
	b.WriteString("# Repository Context\n")
	if len(summaries) > maxFiles {
		summaries = summaries[:maxFiles]
	}
	for _, s := range summaries {
		names := make([]string, 0, len(s.Methods))
		for _, m := range s.Methods {
			names = append(names, m.Name)
			if len(names) >= 12 {
				break
			}
		}
		fmt.Fprintf(&b, "%s :: %s.%s :: methods[%s]\n", s.File, s.Package, s.Class, strings.Join(names, ", "))
		snippet := s.Snippet
		if len(snippet) > perFileChars {
			snippet = snippet[:perFileChars]
		}
		if snippet != "" {
			b.WriteString("----8<----\n")
			b.WriteString(snippet + "\n")
			b.WriteString("---->8----\n\n")
		}
	}
	return b.String()
}

// AppendRequirement attaches an uploaded requirements document to the
// context bundle, truncated to maxChars.
func AppendRequirement(bundle, requirement string, maxChars int) string {
	if requirement == "" {
		return bundle
	}
	if len(requirement) > maxChars {
		requirement = requirement[:maxChars]
	}
	return bundle + "\n# Requirements\n" + requirement
}
