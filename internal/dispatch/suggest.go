// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"maps"
	"slices"
	"strings"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

// Suggest completes the last token of input against the current tree.
// Literal names are returned as-is and arguments as "<name>"; nodes src may
// not use are left out. Completions of every matching alternative are
// merged and sorted.
func (d *Dispatcher) Suggest(src cmdtree.Source, input string) []string {
	tree := d.trees.Current()
	p := &parser{types: d.types, input: input, level: src.PermissionLevel()}
	found := make(map[string]struct{})
	p.suggest(tree.Root(), 0, false, found)
	return slices.Sorted(maps.Keys(found))
}

func (p *parser) suggest(node *cmdtree.Node, pos int, needSep bool, found map[string]struct{}) {
	if needSep {
		if pos == len(p.input) || p.input[pos] != Separator {
			return
		}
		pos++
	}

	rest := p.input[pos:]
	children := p.reachable(node)
	if !strings.ContainsRune(rest, Separator) {
		for _, c := range children {
			switch c.Kind() {
			case cmdtree.KindLiteral:
				if strings.HasPrefix(c.Name(), rest) {
					found[c.Name()] = struct{}{}
				}
			case cmdtree.KindArgument:
				if rest == "" {
					found["<"+c.Name()+">"] = struct{}{}
				}
			}
		}
	}

	word := NewReader(p.input, pos).ReadUnquoted()
	for _, c := range children {
		switch c.Kind() {
		case cmdtree.KindLiteral:
			if c.Name() == word {
				p.suggest(c, pos+len(word), true, found)
			}
		case cmdtree.KindArgument:
			at, err := p.types.New(c)
			if err != nil {
				continue
			}
			r := NewReader(p.input, pos)
			if _, err := at.Parse(r); err == nil && r.Cursor() > pos {
				p.suggest(c, r.Cursor(), true, found)
			}
		}
	}
}

// reachable lists the permitted nodes that may follow node: its children,
// then the children of its redirect target.
func (p *parser) reachable(node *cmdtree.Node) []*cmdtree.Node {
	var out []*cmdtree.Node
	for _, c := range node.Children() {
		if c.Permits(p.level) {
			out = append(out, c)
		}
	}
	if r := node.Redirect(); r != nil {
		for _, c := range r.Target().Children() {
			if c.Permits(p.level) {
				out = append(out, c)
			}
		}
	}
	return out
}
