// SPDX-License-Identifier: MPL-2.0

// Package registry accumulates parsed documents into one draft command tree
// for a single reload. It enforces the one-declarer-per-path rule and records
// aliases for the resolver; it never resolves references itself.
package registry

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cmdtree/cmdtree/pkg/cmddoc"
	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

type (
	// Draft is the accumulating state of one reload batch. It is not safe
	// for concurrent use; the live manager feeds it from a single goroutine.
	Draft struct {
		// owners maps every structurally declared path to its document.
		owners map[string]string
		// fragments are the top-level specs of each document, in Add order.
		fragments []fragment
		aliases   map[string]cmdtree.AliasSpec
		documents []string
	}

	fragment struct {
		document string
		path     string
		spec     *cmdtree.Spec
	}
)

// New creates an empty Draft.
func New() *Draft {
	return &Draft{
		owners:  make(map[string]string),
		aliases: make(map[string]cmdtree.AliasSpec),
	}
}

// Add records every node and alias declared by doc. A path already declared
// by another document is a PathCollision naming both documents, and the
// colliding subtree is not recorded. All collisions of doc are returned.
func (d *Draft) Add(doc *cmddoc.Document) []*cmdtree.Error {
	d.documents = append(d.documents, doc.ID)

	var diags []*cmdtree.Error
	for _, name := range doc.Names() {
		spec := doc.Commands[name]
		root := cmdtree.Join(doc.Mount, name)

		var collisions []*cmdtree.Error
		spec.Walk(root, func(path string, _ *cmdtree.Spec) bool {
			if owner, taken := d.owners[path]; taken {
				collisions = append(collisions, collision(doc.ID, path, owner))
				return false
			}
			if alias, taken := d.aliases[path]; taken {
				collisions = append(collisions, collision(doc.ID, path, alias.Document))
				return false
			}
			return true
		})
		if len(collisions) > 0 {
			diags = append(diags, collisions...)
			continue
		}

		spec.Walk(root, func(path string, _ *cmdtree.Spec) bool {
			d.owners[path] = doc.ID
			return true
		})
		d.fragments = append(d.fragments, fragment{document: doc.ID, path: root, spec: spec})
	}

	for _, a := range doc.Aliases {
		if prev, taken := d.aliases[a.Path]; taken {
			diags = append(diags, collision(doc.ID, a.Path, prev.Document))
			continue
		}
		if owner, taken := d.owners[a.Path]; taken {
			diags = append(diags, collision(doc.ID, a.Path, owner))
			continue
		}
		d.aliases[a.Path] = a
	}
	return diags
}

func collision(document, path, other string) *cmdtree.Error {
	return cmdtree.NewError(cmdtree.PathCollision, document, path,
		fmt.Errorf("path is also declared by %s", other)).WithRelated(other)
}

// Documents returns the ids of every added document in Add order.
func (d *Draft) Documents() []string { return slices.Clone(d.documents) }

// Owner returns the document that declared path.
func (d *Draft) Owner(path string) (string, bool) {
	doc, ok := d.owners[path]
	return doc, ok
}

// Owners returns a copy of the path to document map.
func (d *Draft) Owners() map[string]string { return maps.Clone(d.owners) }

// Paths returns every structurally declared path in lexical order.
func (d *Draft) Paths() []string { return slices.Sorted(maps.Keys(d.owners)) }

// Aliases returns recorded aliases ordered by alias path.
func (d *Draft) Aliases() []cmdtree.AliasSpec {
	out := make([]cmdtree.AliasSpec, 0, len(d.aliases))
	for _, p := range slices.Sorted(maps.Keys(d.aliases)) {
		out = append(out, d.aliases[p])
	}
	return out
}

// Assemble links the fragments of every document into one root draft. It
// works on deep copies, so documents can be parsed once and reused across
// reloads. A fragment mounted under a path no document declares is a
// DanglingReference.
func (d *Draft) Assemble() (*cmdtree.Spec, []*cmdtree.Error) {
	root := cmdtree.NewRootSpec()
	index := map[string]*cmdtree.Spec{"": root}

	clones := make([]fragment, len(d.fragments))
	for i, f := range d.fragments {
		c := f.spec.Clone()
		clones[i] = fragment{document: f.document, path: f.path, spec: c}
		c.Walk(f.path, func(path string, s *cmdtree.Spec) bool {
			index[path] = s
			return true
		})
	}

	var diags []*cmdtree.Error
	for _, f := range clones {
		mount := cmdtree.Parent(f.path)
		parent, ok := index[mount]
		if !ok {
			diags = append(diags, cmdtree.NewError(cmdtree.DanglingReference, f.document, f.path,
				fmt.Errorf("mount point %q is not declared by any document", mount)))
			continue
		}
		parent.AddChild(f.spec)
	}

	slices.SortFunc(diags, func(a, b *cmdtree.Error) int { return strings.Compare(a.Path, b.Path) })
	return root, diags
}
