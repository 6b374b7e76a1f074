// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

var kindSuggestions = map[cmdtree.ErrorKind][]string{
	cmdtree.MalformedDocument: {
		"Check the document against the schema; unknown fields are rejected",
	},
	cmdtree.PathCollision: {
		"Rename one of the commands or mount one document elsewhere",
	},
	cmdtree.DanglingReference: {
		"Check the target path; references may point into any document of the batch",
	},
	cmdtree.CycleDetected: {
		"Point one alias of the chain at a real command",
	},
	cmdtree.UnboundExecutable: {
		"Bind a handler to the path and refresh the tree",
	},
}

// Suggestions returns the short hints for an error kind.
func Suggestions(kind cmdtree.ErrorKind) []string {
	return append([]string(nil), kindSuggestions[kind]...)
}

// FromReloadError turns a failed reload into an ActionableError. The resource
// is the document of the first diagnostic, and one hint is added per
// distinct kind followed by a pointer to 'cmdtree explain'. Errors without
// diagnostics are wrapped unchanged.
func FromReloadError(err error) *ActionableError {
	if err == nil {
		return nil
	}
	ectx := NewErrorContext().WithOperation("reload command tree").Wrap(err)

	diags := cmdtree.Diagnostics(err)
	if len(diags) == 0 {
		return ectx.Build()
	}
	ectx.WithResource(diags[0].Document)

	seen := make(map[cmdtree.ErrorKind]bool)
	for _, d := range diags {
		if seen[d.Kind] {
			continue
		}
		seen[d.Kind] = true
		ectx.WithSuggestions(kindSuggestions[d.Kind]...)
		if is, ok := ForKind(d.Kind); ok {
			ectx.WithSuggestion(fmt.Sprintf("Run 'cmdtree explain %s' for details", is.Name()))
		}
	}
	return ectx.Build()
}

// IsRejection reports whether err carries document diagnostics rather than
// an I/O or context failure.
func IsRejection(err error) bool {
	var re *cmdtree.ReloadError
	if errors.As(err, &re) {
		return true
	}
	return len(cmdtree.Diagnostics(err)) > 0
}
