// SPDX-License-Identifier: MPL-2.0

package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/cmdtree/cmdtree/pkg/cmddoc"

	"github.com/bmatcuk/doublestar/v4"
)

type (
	// Dir loads one document per matching file below a directory. Document
	// ids are slash-separated paths relative to the directory.
	Dir struct {
		root     string
		fsys     fs.FS
		patterns []string
		ignore   []string
	}

	// DirOption configures a Dir.
	DirOption func(*Dir)
)

// WithPatterns replaces DefaultPatterns. Patterns are doublestar globs
// relative to the directory.
func WithPatterns(patterns ...string) DirOption {
	return func(d *Dir) {
		if len(patterns) > 0 {
			d.patterns = patterns
		}
	}
}

// WithIgnore excludes files matching any of the doublestar patterns.
func WithIgnore(patterns ...string) DirOption {
	return func(d *Dir) { d.ignore = append(d.ignore, patterns...) }
}

// WithFS reads from fsys instead of the operating system directory.
func WithFS(fsys fs.FS) DirOption {
	return func(d *Dir) { d.fsys = fsys }
}

// NewDir creates a directory source. All patterns are checked up front.
func NewDir(root string, opts ...DirOption) (*Dir, error) {
	d := &Dir{root: root, patterns: DefaultPatterns()}
	for _, opt := range opts {
		opt(d)
	}
	if d.fsys == nil {
		d.fsys = os.DirFS(root)
	}
	for _, pat := range slices.Concat(d.patterns, d.ignore) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
	}
	return d, nil
}

// Name implements live.Source.
func (d *Dir) Name() string { return "dir:" + filepath.ToSlash(d.root) }

// Root returns the directory the source reads.
func (d *Dir) Root() string { return d.root }

// Patterns returns the include patterns.
func (d *Dir) Patterns() []string { return slices.Clone(d.patterns) }

// Ignore returns the exclude patterns.
func (d *Dir) Ignore() []string { return slices.Clone(d.ignore) }

// Load implements live.Source. A missing directory yields an error rather
// than an empty batch, so a misconfigured path never publishes an empty tree.
func (d *Dir) Load(ctx context.Context) ([]cmddoc.Input, error) {
	if _, err := fs.Stat(d.fsys, "."); err != nil {
		return nil, fmt.Errorf("documents directory %s: %w", d.root, err)
	}

	seen := make(map[string]bool)
	var inputs []cmddoc.Input
	for _, pat := range d.patterns {
		matches, err := doublestar.Glob(d.fsys, pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pat, err)
		}
		for _, name := range matches {
			if seen[name] || d.ignored(name) {
				continue
			}
			seen[name] = true
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			data, err := fs.ReadFile(d.fsys, name)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", name, err)
			}
			inputs = append(inputs, cmddoc.Input{ID: name, Data: data})
		}
	}
	sortInputs(inputs)
	return inputs, nil
}

// Matches reports whether a slash-separated path relative to the directory
// would be loaded.
func (d *Dir) Matches(name string) bool {
	if d.ignored(name) {
		return false
	}
	for _, pat := range d.patterns {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}

func (d *Dir) ignored(name string) bool {
	for _, pat := range d.ignore {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}
