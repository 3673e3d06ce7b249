// Package exclude implements the shell-glob exclude filter shared by the
// four mtfs commands. It is a thin, deliberately small collaborator: the
// traversal engine knows nothing about it, and each command wires it into
// the DirEnter/FileMethod decision of whether to descend into or act on a
// given path.
package exclude

import (
	"path/filepath"

	"github.com/pkg/errors"
)

// Filter holds a set of path/filepath.Match-style shell glob patterns and
// decides whether a given path matches any of them.
type Filter struct {
	patterns []string
}

// New compiles patterns, rejecting any that filepath.Match itself would
// reject as malformed (e.g. an unterminated character class).
func New(patterns []string) (*Filter, error) {
	f := &Filter{patterns: patterns}
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, errors.Wrapf(err, "invalid exclude pattern %q", p)
		}
	}
	return f, nil
}

// Matches reports whether path matches any configured pattern, matching
// either the full path or its base name so a bare pattern like "*.tmp"
// excludes files anywhere in the tree, not only at its root.
func (f *Filter) Matches(path string) bool {
	if f == nil {
		return false
	}
	base := filepath.Base(path)
	for _, p := range f.patterns {
		if matched, _ := filepath.Match(p, path); matched {
			return true
		}
		if matched, _ := filepath.Match(p, base); matched {
			return true
		}
	}
	return false
}
