// SPDX-License-Identifier: MPL-2.0

package cmdtree

import (
	"maps"
	"slices"
)

type (
	// Node is an immutable, fully resolved command tree node.
	Node struct {
		name        string
		path        string
		kind        Kind
		argType     string
		params      map[string]any
		level       int
		hasLevel    bool
		executable  bool
		handlerPath string
		handler     Handler
		redirect    *Redirect
		children    map[string]*Node
		childNames  []string
	}

	// Redirect is a resolved redirect. The target is a direct reference into
	// the same tree.
	Redirect struct {
		target   *Node
		fork     bool
		modifier string
	}
)

// Name returns the node's segment name. The root has an empty name.
func (n *Node) Name() string { return n.name }

// Path returns the canonical path.
func (n *Node) Path() string { return n.path }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// IsRoot reports whether n is the tree root.
func (n *Node) IsRoot() bool { return n.kind == KindRoot }

// ArgumentType returns the argument type identifier of an argument node.
func (n *Node) ArgumentType() string { return n.argType }

// Parameters returns a copy of the argument type parameters.
func (n *Node) Parameters() map[string]any { return cloneParams(n.params) }

// Param returns a single parameter value.
func (n *Node) Param(key string) (any, bool) {
	v, ok := n.params[key]
	return v, ok
}

// Level returns the required permission level and whether one is set.
func (n *Node) Level() (int, bool) { return n.level, n.hasLevel }

// Permits reports whether a source at the given level may use n.
func (n *Node) Permits(level int) bool { return !n.hasLevel || level >= n.level }

// Executable reports whether the command may end at n.
func (n *Node) Executable() bool { return n.executable }

// HandlerPath returns the binding key the handler was looked up by.
func (n *Node) HandlerPath() string { return n.handlerPath }

// Handler returns the bound handler, or nil.
func (n *Node) Handler() Handler { return n.handler }

// HasHandler reports whether a handler was bound when the tree was built.
func (n *Node) HasHandler() bool { return n.handler != nil }

// Redirect returns the resolved redirect, or nil.
func (n *Node) Redirect() *Redirect { return n.redirect }

// Child returns the named child.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

// ChildNames returns child names in lexical order.
func (n *Node) ChildNames() []string { return slices.Clone(n.childNames) }

// Children returns the children in lexical name order.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.childNames))
	for _, name := range n.childNames {
		out = append(out, n.children[name])
	}
	return out
}

// Literals returns literal children in lexical order.
func (n *Node) Literals() []*Node { return n.childrenOfKind(KindLiteral) }

// Arguments returns argument children in lexical order.
func (n *Node) Arguments() []*Node { return n.childrenOfKind(KindArgument) }

func (n *Node) childrenOfKind(k Kind) []*Node {
	var out []*Node
	for _, name := range n.childNames {
		if c := n.children[name]; c.kind == k {
			out = append(out, c)
		}
	}
	return out
}

// Target returns the node execution is forwarded to.
func (r *Redirect) Target() *Node { return r.target }

// TargetPath returns the canonical path of the target.
func (r *Redirect) TargetPath() string { return r.target.path }

// Fork reports whether the redirect forks over modifier results.
func (r *Redirect) Fork() bool { return r.fork }

// Modifier returns the modifier id, empty when none.
func (r *Redirect) Modifier() string { return r.modifier }

func newNode(path string, s *Spec, handlers HandlerLookup) *Node {
	n := &Node{
		name:       s.Name,
		path:       path,
		kind:       s.Kind,
		argType:    s.ArgumentType,
		params:     cloneParams(s.Parameters),
		executable: s.Executable,
	}
	if path == "" {
		n.kind = KindRoot
		n.name = ""
	}
	if s.Level != nil {
		n.level, n.hasLevel = *s.Level, true
	}
	if n.executable {
		n.handlerPath = path
		if s.HandlerPath != "" {
			n.handlerPath = s.HandlerPath
		}
		if handlers != nil {
			if h, ok := handlers(n.handlerPath); ok {
				n.handler = h
			}
		}
	}
	if len(s.Children) > 0 {
		n.children = make(map[string]*Node, len(s.Children))
		n.childNames = slices.Sorted(maps.Keys(s.Children))
	}
	return n
}
