package watch

import (
	"path/filepath"
	"strings"
)

// FilterFunc decides whether a single (kind, path) pair is kept in a
// batch. It must be pure and stateless: the engine calls it once per
// candidate pair per window, at no particular point relative to the
// debounce timing. A nil FilterFunc keeps everything.
type FilterFunc func(kind Kind, path string) bool

// Directory names skipped by DefaultFilter.
var defaultIgnoreDirs = []string{
	"__pycache__", ".git", ".hg", ".svn", ".tox", ".venv",
	".idea", ".vscode", "node_modules", "site-packages",
}

// Base-name suffixes skipped by DefaultFilter (editor temp and swap
// files, compiled artifacts).
var defaultIgnoreSuffixes = []string{
	"~", ".swp", ".swx", ".pyc", ".pyo", ".pyd", ".tmp",
}

// DefaultFilter drops the usual filesystem noise: VCS metadata, editor
// temporary files, caches. Use [NewDefaultFilter] to add project
// specific ignores on top of the built-in lists.
type DefaultFilter struct {
	ignoreDirs     []string
	ignoreSuffixes []string
	ignorePaths    []string
}

// NewDefaultFilter returns a DefaultFilter with the built-in ignore
// lists plus extraDirs (directory names) and ignorePaths (absolute path
// prefixes).
func NewDefaultFilter(extraDirs, ignorePaths []string) *DefaultFilter {
	f := &DefaultFilter{
		ignoreDirs:     append([]string{}, defaultIgnoreDirs...),
		ignoreSuffixes: append([]string{}, defaultIgnoreSuffixes...),
	}

	f.ignoreDirs = append(f.ignoreDirs, extraDirs...)

	for _, p := range ignorePaths {
		if abs, err := filepath.Abs(p); err == nil {
			f.ignorePaths = append(f.ignorePaths, abs)
		}
	}

	return f
}

// Keep reports whether the change should be included in a batch.
// Keep is a valid [FilterFunc].
func (f *DefaultFilter) Keep(_ Kind, path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, dir := range f.ignoreDirs {
			if part == dir {
				return false
			}
		}
	}

	name := filepath.Base(path)

	if strings.HasPrefix(name, ".#") || strings.HasPrefix(name, "#") || name == ".DS_Store" {
		return false
	}

	for _, suffix := range f.ignoreSuffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}

	for _, prefix := range f.ignorePaths {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}

	return true
}

// IgnoreDirsFilter drops any path that has one of the given directory
// names as a component, and nothing else: no suffix or noise rules
// apply. Use it when everything should pass except a few directories.
func IgnoreDirsFilter(dirs ...string) FilterFunc {
	return func(_ Kind, path string) bool {
		for _, part := range strings.Split(filepath.ToSlash(path), "/") {
			for _, dir := range dirs {
				if part == dir {
					return false
				}
			}
		}

		return true
	}
}

// ExtensionFilter keeps only paths with one of the given extensions
// (e.g. ".go", ".yaml"), on top of the DefaultFilter ignore rules.
func ExtensionFilter(extensions ...string) FilterFunc {
	base := NewDefaultFilter(nil, nil)

	return func(kind Kind, path string) bool {
		if !base.Keep(kind, path) {
			return false
		}

		ext := filepath.Ext(path)
		for _, e := range extensions {
			if ext == e {
				return true
			}
		}

		return false
	}
}
