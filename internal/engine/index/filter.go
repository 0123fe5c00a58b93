package index

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Filter decides which files and directories take part in indexing.
// Directory and file globs match the base name.
type Filter struct {
	extensions   map[string]bool
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

// NewFilter compiles the exclude globs. An empty extension list accepts
// every file not otherwise excluded.
func NewFilter(extensions, excludeDirs, excludeFiles []string) (*Filter, error) {
	f := &Filter{extensions: make(map[string]bool, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = true
	}

	var err error
	if f.excludeDirs, err = compileGlobs(excludeDirs); err != nil {
		return nil, fmt.Errorf("exclude dirs: %w", err)
	}
	if f.excludeFiles, err = compileGlobs(excludeFiles); err != nil {
		return nil, fmt.Errorf("exclude files: %w", err)
	}
	return f, nil
}

// DefaultFilter accepts .awk files and skips VCS metadata directories.
func DefaultFilter() *Filter {
	f, _ := NewFilter([]string{".awk"}, []string{".git", ".hg", ".svn"}, nil)
	return f
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile glob %q: %w", pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// SkipDir reports whether a directory should not be descended into.
func (f *Filter) SkipDir(path string) bool {
	if f == nil {
		return false
	}
	base := filepath.Base(path)
	for _, g := range f.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// IncludeFile reports whether a file path should be indexed.
func (f *Filter) IncludeFile(path string) bool {
	if f == nil {
		return true
	}
	base := filepath.Base(path)
	if len(f.extensions) > 0 && !f.extensions[strings.ToLower(filepath.Ext(base))] {
		return false
	}
	for _, g := range f.excludeFiles {
		if g.Match(base) {
			return false
		}
	}
	return true
}

// InExcludedDir reports whether any directory component of path between
// root and the file is excluded.
func (f *Filter) InExcludedDir(root, path string) bool {
	if f == nil || len(f.excludeDirs) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ".." {
			return false
		}
		for _, g := range f.excludeDirs {
			if g.Match(part) {
				return true
			}
		}
	}
	return false
}
