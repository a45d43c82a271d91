package mdbatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Markdown file extensions accepted by the collector.
var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

// ErrInvalidExtension indicates an explicitly listed file is not markdown.
var ErrInvalidExtension = errors.New("file must have .md or .markdown extension")

// FileSet is the resolved input of a batch run.
type FileSet struct {
	Paths   []string // absolute paths, lexically sorted
	BaseDir string   // base directory for structure mirroring ("" when unknown)
}

// FileCollector resolves an input specification into an ordered file set.
// Supported forms: glob patterns (including **), comma-separated explicit
// paths, bare directories (treated as dir/*.md, or dir/**/*.md when
// recursive), and single files.
type FileCollector struct{}

// NewFileCollector creates a ready-to-use collector.
func NewFileCollector() *FileCollector {
	return &FileCollector{}
}

// Collect resolves input into a FileSet. A pattern that matches nothing
// yields an empty set and nil error; a missing base directory or listed
// file yields an error wrapping os.ErrNotExist. Ordering is lexical and
// stable for the same filesystem state.
func (c *FileCollector) Collect(input string, recursive bool) (*FileSet, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if strings.Contains(input, ",") {
		return c.collectList(input)
	}

	info, err := os.Stat(input)
	switch {
	case err == nil && info.IsDir():
		return c.collectDir(input, recursive)
	case err == nil:
		return c.collectFile(input)
	case hasGlobMeta(input):
		return c.collectGlob(input)
	default:
		return nil, fmt.Errorf("collecting %s: %w", input, err)
	}
}

// collectList resolves a comma-separated list of explicit paths.
// Every listed file must exist.
func (c *FileCollector) collectList(input string) (*FileSet, error) {
	var paths []string
	for _, raw := range strings.Split(input, ",") {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("collecting %s: %w", path, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("collecting %s: listed path is a directory", path)
		}
		paths = append(paths, path)
	}
	return newFileSet(paths, "")
}

// collectDir resolves a bare directory to its markdown files.
func (c *FileCollector) collectDir(dir string, recursive bool) (*FileSet, error) {
	pattern := filepath.Join(dir, "*.md")
	if recursive {
		pattern = filepath.Join(dir, "**", "*.md")
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return newFileSet(onlyRegularFiles(matches), dir)
}

// collectFile resolves a single explicit file path.
func (c *FileCollector) collectFile(path string) (*FileSet, error) {
	if !markdownExtensions[filepath.Ext(path)] {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidExtension, filepath.Ext(path))
	}
	return newFileSet([]string{path}, "")
}

// collectGlob resolves a glob pattern. The non-glob base directory must
// exist; an empty match set is not an error.
func (c *FileCollector) collectGlob(pattern string) (*FileSet, error) {
	base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
	baseDir := ""
	if base != "" && base != "." {
		baseDir = filepath.FromSlash(base)
		if _, err := os.Stat(baseDir); err != nil {
			return nil, fmt.Errorf("glob base directory %s: %w", baseDir, err)
		}
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return newFileSet(onlyRegularFiles(matches), baseDir)
}

// hasGlobMeta reports whether the input contains glob metacharacters.
func hasGlobMeta(input string) bool {
	return strings.ContainsAny(input, "*?[{")
}

// onlyRegularFiles drops directories from glob matches.
func onlyRegularFiles(paths []string) []string {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, p)
	}
	return files
}

// newFileSet absolutizes, deduplicates, and sorts paths.
func newFileSet(paths []string, baseDir string) (*FileSet, error) {
	seen := make(map[string]bool, len(paths))
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		abs = append(abs, a)
	}
	sort.Strings(abs)

	if baseDir != "" {
		a, err := filepath.Abs(baseDir)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", baseDir, err)
		}
		baseDir = a
	}
	return &FileSet{Paths: abs, BaseDir: baseDir}, nil
}
