// SPDX-License-Identifier: MPL-2.0

// Package resolver turns an assembled draft into a fully resolved draft:
// every alias is materialized as a structural copy and every redirect target
// is checked, so cmdtree.Build can only succeed.
//
// Resolution runs once per reload, after all documents of the batch have
// been added to the registry. Alias expansion always runs before redirect
// checking, so a redirect may target a path that exists only through an alias.
package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/cmdtree/cmdtree/internal/dag"
	"github.com/cmdtree/cmdtree/internal/registry"
	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

// DefaultMaxAliasDepth bounds how many aliases one expansion may chain through.
const DefaultMaxAliasDepth = 16

type (
	// Resolver resolves drafts. It is stateless between calls and safe for
	// concurrent use.
	Resolver struct {
		maxAliasDepth int
		logger        *slog.Logger
	}

	// Option configures a Resolver.
	Option func(*Resolver)

	// Result is a resolved draft.
	Result struct {
		// Root is the resolved draft, ready for cmdtree.Build.
		Root *cmdtree.Spec
		// Owners maps every path, including alias copies, to the document
		// responsible for it.
		Owners map[string]string
		// Aliases lists expanded alias paths in expansion order.
		Aliases []string
	}

	state struct {
		r       *Resolver
		index   map[string]*cmdtree.Spec
		owners  map[string]string
		aliases map[string]cmdtree.AliasSpec
		done    map[string]bool
		failed  map[string]bool
		depth   map[string]int
		onStack map[string]bool
		stack   []string
		order   []string
		diags   []*cmdtree.Error
	}
)

// WithMaxAliasDepth overrides DefaultMaxAliasDepth. Values below 1 are ignored.
func WithMaxAliasDepth(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAliasDepth = n
		}
	}
}

// WithLogger sets the logger for resolution tracing.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		maxAliasDepth: DefaultMaxAliasDepth,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxAliasDepth returns the configured alias chain bound.
func (r *Resolver) MaxAliasDepth() int { return r.maxAliasDepth }

// Resolve assembles d, expands its aliases and validates redirects. Any
// diagnostic rejects the whole batch: the returned error is a
// *cmdtree.ReloadError and the Result is nil.
func (r *Resolver) Resolve(d *registry.Draft) (*Result, error) {
	root, diags := d.Assemble()
	if len(diags) > 0 {
		return nil, cmdtree.NewReloadError(diags)
	}

	s := &state{
		r:       r,
		index:   make(map[string]*cmdtree.Spec),
		owners:  d.Owners(),
		aliases: make(map[string]cmdtree.AliasSpec),
		done:    make(map[string]bool),
		failed:  make(map[string]bool),
		depth:   make(map[string]int),
		onStack: make(map[string]bool),
	}
	root.Walk("", func(path string, spec *cmdtree.Spec) bool {
		s.index[path] = spec
		return true
	})
	for _, a := range d.Aliases() {
		s.aliases[a.Path] = a
	}

	for _, p := range slices.Sorted(maps.Keys(s.aliases)) {
		s.expand(p)
	}
	if len(s.diags) > 0 {
		return nil, cmdtree.NewReloadError(s.sorted())
	}

	s.checkRedirects()
	if len(s.diags) > 0 {
		return nil, cmdtree.NewReloadError(s.sorted())
	}

	r.logger.Debug("draft resolved", "nodes", len(s.index)-1, "aliases", len(s.order))
	return &Result{Root: root, Owners: s.owners, Aliases: s.order}, nil
}

// expand materializes the alias at path after everything it depends on. The
// depth of an alias is one more than the deepest alias it depends on, so the
// bound holds regardless of expansion order.
// Dependencies are the aliases whose expansion can change what the alias
// copies or where it is placed: aliases at or above the target, below the
// target, and at or above the alias parent.
func (s *state) expand(path string) bool {
	if s.done[path] {
		return true
	}
	if s.failed[path] {
		return false
	}
	alias := s.aliases[path]

	if s.onStack[path] {
		start := slices.Index(s.stack, path)
		cycle := append(slices.Clone(s.stack[start:]), path)
		s.fail(cmdtree.NewError(cmdtree.CycleDetected, alias.Document, path,
			fmt.Errorf("alias expansion revisits %q", path)).WithRelated(cycle...))
		return false
	}
	s.onStack[path] = true
	s.stack = append(s.stack, path)
	ok, depth := true, 1
	for _, dep := range s.dependencies(alias) {
		if !s.expand(dep) {
			ok = false
			break
		}
		depth = max(depth, s.depth[dep]+1)
	}
	chain := slices.Clone(s.stack)
	s.stack = s.stack[:len(s.stack)-1]
	delete(s.onStack, path)

	if ok && depth > s.r.maxAliasDepth {
		s.fail(cmdtree.NewError(cmdtree.CycleDetected, alias.Document, path,
			fmt.Errorf("alias chain exceeds maximum depth %d", s.r.maxAliasDepth)).WithRelated(chain...))
		ok = false
	}
	if ok {
		ok = s.materialize(alias)
	}
	if ok {
		s.done[path] = true
		s.depth[path] = depth
		s.order = append(s.order, path)
	} else {
		s.failed[path] = true
	}
	return ok
}

func (s *state) dependencies(alias cmdtree.AliasSpec) []string {
	parent := cmdtree.Parent(alias.Path)
	var deps []string
	for _, other := range slices.Sorted(maps.Keys(s.aliases)) {
		if cmdtree.IsWithin(alias.Target, other) ||
			cmdtree.IsWithin(other, alias.Target) ||
			(parent != "" && cmdtree.IsWithin(parent, other)) {
			deps = append(deps, other)
		}
	}
	return deps
}

func (s *state) materialize(alias cmdtree.AliasSpec) bool {
	target, ok := s.index[alias.Target]
	if !ok {
		s.diags = append(s.diags, cmdtree.NewError(cmdtree.DanglingReference, alias.Document, alias.Path,
			fmt.Errorf("alias target %q does not exist", alias.Target)).WithRelated(alias.Target))
		return false
	}
	parentPath := cmdtree.Parent(alias.Path)
	parent, ok := s.index[parentPath]
	if !ok {
		s.diags = append(s.diags, cmdtree.NewError(cmdtree.DanglingReference, alias.Document, alias.Path,
			fmt.Errorf("alias parent %q does not exist", parentPath)).WithRelated(parentPath))
		return false
	}
	if _, taken := s.index[alias.Path]; taken {
		owner := s.owners[alias.Path]
		s.diags = append(s.diags, cmdtree.NewError(cmdtree.PathCollision, alias.Document, alias.Path,
			fmt.Errorf("alias path is already declared by %s", owner)).WithRelated(owner))
		return false
	}

	clone := target.CloneForAlias()
	clone.Name = cmdtree.Base(alias.Path)
	parent.AddChild(clone)
	clone.Walk(alias.Path, func(p string, spec *cmdtree.Spec) bool {
		s.index[p] = spec
		s.owners[p] = alias.Document
		return true
	})
	s.r.logger.Debug("alias expanded", "alias", alias.Path, "target", alias.Target, "document", alias.Document)
	return true
}

func (s *state) fail(e *cmdtree.Error) {
	s.diags = append(s.diags, e)
}

// checkRedirects verifies every redirect target exists and that no chain of
// redirect-carrying nodes loops back on itself.
func (s *state) checkRedirects() {
	g := dag.New()
	for _, p := range slices.Sorted(maps.Keys(s.index)) {
		spec := s.index[p]
		if spec.Redirect == nil {
			continue
		}
		target, ok := s.index[spec.Redirect.Target]
		if !ok {
			s.diags = append(s.diags, cmdtree.NewError(cmdtree.DanglingReference, s.owners[p], p,
				fmt.Errorf("redirect target %q does not exist", spec.Redirect.Target)).WithRelated(spec.Redirect.Target))
			continue
		}
		g.AddNode(p)
		if target.Redirect != nil {
			g.AddEdge(p, spec.Redirect.Target)
		}
	}

	_, err := g.TopologicalSort()
	var ce *dag.CycleError
	if errors.As(err, &ce) {
		first := ce.Cycle[0]
		s.diags = append(s.diags, cmdtree.NewError(cmdtree.CycleDetected, s.owners[first], first,
			fmt.Errorf("redirect chain loops back to %q", first)).WithRelated(ce.Cycle...))
	}
}

func (s *state) sorted() []*cmdtree.Error {
	diags := slices.Clone(s.diags)
	slices.SortStableFunc(diags, func(a, b *cmdtree.Error) int {
		return strings.Compare(a.Path, b.Path)
	})
	return diags
}
