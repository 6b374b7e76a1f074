// SPDX-License-Identifier: MPL-2.0

package cmdtree

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

type (
	// Tree is an immutable, fully resolved command tree.
	Tree struct {
		root       *Node
		index      map[string]*Node
		paths      []string
		generation uint64
		builtAt    time.Time
		digest     string
	}

	// BuildOption configures Build.
	BuildOption func(*buildOptions)

	buildOptions struct {
		handlers   HandlerLookup
		generation uint64
		builtAt    time.Time
	}
)

// WithHandlers sets the lookup used to attach handlers to executable nodes.
func WithHandlers(lookup HandlerLookup) BuildOption {
	return func(o *buildOptions) { o.handlers = lookup }
}

// WithGeneration stamps the tree with a reload generation number.
func WithGeneration(gen uint64) BuildOption {
	return func(o *buildOptions) { o.generation = gen }
}

// WithBuiltAt stamps the tree with its build time.
func WithBuiltAt(t time.Time) BuildOption {
	return func(o *buildOptions) { o.builtAt = t }
}

// Empty returns a tree holding only the root.
func Empty() *Tree {
	t, _ := Build(NewRootSpec())
	return t
}

// Build turns a resolved draft into an immutable Tree. Every redirect target
// must exist in the draft; a missing one is reported as DanglingReference.
// root is not retained, so callers may keep editing it afterwards.
func Build(root *Spec, opts ...BuildOption) (*Tree, error) {
	options := buildOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	t := &Tree{
		index:      make(map[string]*Node),
		generation: options.generation,
		builtAt:    options.builtAt,
	}

	// First pass materializes nodes; redirects need every node to exist.
	specs := make(map[string]*Spec)
	var link func(path string, s *Spec) *Node
	link = func(path string, s *Spec) *Node {
		n := newNode(path, s, options.handlers)
		t.index[path] = n
		specs[path] = s
		for _, name := range n.childNames {
			n.children[name] = link(Join(path, name), s.Children[name])
		}
		return n
	}
	t.root = link("", root)

	var diags []*Error
	for path, s := range specs {
		if s.Redirect == nil {
			continue
		}
		target, ok := t.index[s.Redirect.Target]
		if !ok {
			diags = append(diags, NewError(DanglingReference, "", path,
				fmt.Errorf("redirect target %q does not exist", s.Redirect.Target)))
			continue
		}
		t.index[path].redirect = &Redirect{
			target:   target,
			fork:     s.Redirect.Fork,
			modifier: s.Redirect.Modifier,
		}
	}
	if len(diags) > 0 {
		slices.SortFunc(diags, func(a, b *Error) int { return strings.Compare(a.Path, b.Path) })
		return nil, NewReloadError(diags)
	}

	t.paths = slices.Sorted(maps.Keys(t.index))
	t.digest = t.computeDigest()
	return t, nil
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Lookup returns the node at path. The root is found at "".
func (t *Tree) Lookup(path string) (*Node, bool) {
	n, ok := t.index[path]
	return n, ok
}

// Paths returns every non-root path in lexical order.
func (t *Tree) Paths() []string {
	if len(t.paths) == 0 {
		return nil
	}
	return slices.Clone(t.paths[1:])
}

// Len returns the number of nodes, excluding the root.
func (t *Tree) Len() int { return len(t.index) - 1 }

// Generation returns the reload generation that produced the tree.
func (t *Tree) Generation() uint64 { return t.generation }

// BuiltAt returns when the tree was built.
func (t *Tree) BuiltAt() time.Time { return t.builtAt }

// Digest returns a hash of the tree's structure. Trees built from the same
// documents have the same digest regardless of generation, build time or
// bound handlers.
func (t *Tree) Digest() string { return t.digest }

// StructurallyEqual reports whether t and other describe the same grammar.
func (t *Tree) StructurallyEqual(other *Tree) bool {
	return other != nil && t.digest == other.digest
}

// Walk visits every node depth-first in lexical order, root first.
// Returning false from fn skips the node's children.
func (t *Tree) Walk(fn func(n *Node) bool) {
	var visit func(n *Node)
	visit = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.Children() {
			visit(c)
		}
	}
	visit(t.root)
}

// Executables returns the paths of executable nodes in lexical order.
func (t *Tree) Executables() []string {
	var out []string
	for _, p := range t.paths {
		if t.index[p].executable {
			out = append(out, p)
		}
	}
	return out
}

// Unbound returns the paths of executable nodes that have no handler.
func (t *Tree) Unbound() []string {
	var out []string
	for _, p := range t.paths {
		if n := t.index[p]; n.executable && n.handler == nil {
			out = append(out, p)
		}
	}
	return out
}

func (t *Tree) computeDigest() string {
	h := sha256.New()
	for _, p := range t.paths {
		n := t.index[p]
		var b strings.Builder
		b.WriteString(strconv.Quote(p))
		b.WriteByte(' ')
		b.WriteString(n.kind.String())
		if n.kind == KindArgument {
			b.WriteString(" type=")
			b.WriteString(strconv.Quote(n.argType))
			if len(n.params) > 0 {
				// encoding/json sorts map keys, giving a stable rendering.
				raw, err := json.Marshal(n.params)
				if err == nil {
					b.WriteString(" params=")
					b.Write(raw)
				}
			}
		}
		if n.hasLevel {
			b.WriteString(" level=")
			b.WriteString(strconv.Itoa(n.level))
		}
		if n.executable {
			b.WriteString(" exec=")
			b.WriteString(strconv.Quote(n.handlerPath))
		}
		if r := n.redirect; r != nil {
			fmt.Fprintf(&b, " redirect=%q fork=%t modifier=%q", r.target.path, r.fork, r.modifier)
		}
		b.WriteByte('\n')
		h.Write([]byte(b.String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}
