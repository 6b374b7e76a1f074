// SPDX-License-Identifier: MPL-2.0

package cmdtree

import (
	"maps"
	"slices"
)

const (
	// KindRoot is the kind of the unnamed root node.
	KindRoot Kind = iota
	// KindLiteral nodes match their name exactly.
	KindLiteral
	// KindArgument nodes match a typed value.
	KindArgument
)

type (
	// Kind distinguishes literal nodes from argument nodes.
	Kind uint8

	// RedirectSpec is a redirect as authored: the target is still a path.
	RedirectSpec struct {
		// Target is the canonical path of the node execution is forwarded to.
		Target string
		// Fork makes the redirect run once per source produced by the modifier.
		Fork bool
		// Modifier is the id of the host modifier applied before forwarding.
		// Empty means the source is forwarded unchanged.
		Modifier string
	}

	// AliasSpec asks for a copy of the subtree at Target to be placed at Path.
	AliasSpec struct {
		Path     string
		Target   string
		Document string
	}

	// Spec is the mutable draft form of a node. The registry and resolver edit
	// Spec trees; Build turns the final one into an immutable Tree.
	Spec struct {
		Name         string
		Kind         Kind
		ArgumentType string
		Parameters   map[string]any
		// Level is the required permission level, nil when unrestricted.
		Level      *int
		Executable bool
		// HandlerPath binds the node to the handler registered for another
		// path. Empty means the node's own path.
		HandlerPath string
		Redirect    *RedirectSpec
		Children    map[string]*Spec
	}
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindLiteral:
		return "literal"
	case KindArgument:
		return "argument"
	default:
		return "unknown"
	}
}

// NewRootSpec returns an empty root draft.
func NewRootSpec() *Spec {
	return &Spec{Kind: KindRoot, Children: make(map[string]*Spec)}
}

// AddChild attaches child under s, replacing any existing child of the same name.
func (s *Spec) AddChild(child *Spec) {
	if s.Children == nil {
		s.Children = make(map[string]*Spec)
	}
	s.Children[child.Name] = child
}

// ChildNames returns child names in lexical order.
func (s *Spec) ChildNames() []string {
	return slices.Sorted(maps.Keys(s.Children))
}

// Clone returns a deep copy of s.
func (s *Spec) Clone() *Spec {
	return s.clone(false)
}

// CloneForAlias returns a deep copy of s with every HandlerPath override
// removed, so the copy binds handlers by its own paths.
func (s *Spec) CloneForAlias() *Spec {
	return s.clone(true)
}

func (s *Spec) clone(dropHandlerPaths bool) *Spec {
	c := &Spec{
		Name:         s.Name,
		Kind:         s.Kind,
		ArgumentType: s.ArgumentType,
		Parameters:   cloneParams(s.Parameters),
		Executable:   s.Executable,
		HandlerPath:  s.HandlerPath,
	}
	if dropHandlerPaths {
		c.HandlerPath = ""
	}
	if s.Level != nil {
		lvl := *s.Level
		c.Level = &lvl
	}
	if s.Redirect != nil {
		r := *s.Redirect
		c.Redirect = &r
	}
	if len(s.Children) > 0 {
		c.Children = make(map[string]*Spec, len(s.Children))
		for name, child := range s.Children {
			c.Children[name] = child.clone(dropHandlerPaths)
		}
	}
	return c
}

// Walk visits s and its descendants depth-first in lexical child order. path
// is the canonical path of s; fn receives each node with its own path.
// Returning false from fn skips the node's children.
func (s *Spec) Walk(path string, fn func(path string, node *Spec) bool) {
	if !fn(path, s) {
		return
	}
	for _, name := range s.ChildNames() {
		s.Children[name].Walk(Join(path, name), fn)
	}
}

// cloneParams deep-copies a parameter object. Parameter values come from
// decoded documents, so only maps and slices need copying.
func cloneParams(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneParams(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
