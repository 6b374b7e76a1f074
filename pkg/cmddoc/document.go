// SPDX-License-Identifier: MPL-2.0

package cmddoc

import (
	"maps"
	"slices"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

type (
	// Input is one unparsed document.
	Input struct {
		// ID identifies the document in diagnostics, typically its path
		// relative to the documents directory.
		ID string
		// Format is the serialization. Empty means derive from ID.
		Format Format
		// Data is the raw document content.
		Data []byte
	}

	// Document is the parsed, validated form of one input. It is
	// self-contained: references to other documents stay unresolved paths.
	Document struct {
		ID        string
		Namespace string
		// Mount is the path the document's commands are placed under.
		// Empty means the root.
		Mount string
		// Commands holds the top-level fragments keyed by name.
		Commands map[string]*cmdtree.Spec
		Aliases  []cmdtree.AliasSpec
	}

	rawDocument struct {
		Namespace string              `json:"namespace,omitempty"`
		Mount     string              `json:"mount,omitempty"`
		Commands  map[string]*rawNode `json:"commands,omitempty"`
		Aliases   map[string]string   `json:"aliases,omitempty"`
	}

	rawNode struct {
		Type       string              `json:"type,omitempty"`
		Parameters map[string]any      `json:"parameters,omitempty"`
		Level      any                 `json:"level,omitempty"`
		Executable any                 `json:"executable,omitempty"`
		Redirect   any                 `json:"redirect,omitempty"`
		Arguments  map[string]*rawNode `json:"arguments,omitempty"`
	}
)

// Names returns top-level command names in lexical order.
func (d *Document) Names() []string {
	return slices.Sorted(maps.Keys(d.Commands))
}

// Paths returns the canonical path of every node the document declares, in
// depth-first lexical order.
func (d *Document) Paths() []string {
	var out []string
	for _, name := range d.Names() {
		d.Commands[name].Walk(cmdtree.Join(d.Mount, name), func(path string, _ *cmdtree.Spec) bool {
			out = append(out, path)
			return true
		})
	}
	return out
}

// Redirects returns the redirects declared by the document keyed by the
// path of the node carrying them.
func (d *Document) Redirects() map[string]cmdtree.RedirectSpec {
	out := make(map[string]cmdtree.RedirectSpec)
	for _, name := range d.Names() {
		d.Commands[name].Walk(cmdtree.Join(d.Mount, name), func(path string, s *cmdtree.Spec) bool {
			if s.Redirect != nil {
				out[path] = *s.Redirect
			}
			return true
		})
	}
	return out
}
