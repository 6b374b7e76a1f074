// SPDX-License-Identifier: MPL-2.0

// Package source provides the document batches a live.Manager reloads from:
// a directory of files, an in-memory set, or a Redis hash whose changes are
// announced over pub/sub.
package source

import (
	"slices"
	"strings"

	"github.com/cmdtree/cmdtree/pkg/cmddoc"
)

// DefaultPatterns matches every supported document extension at any depth.
func DefaultPatterns() []string {
	exts := cmddoc.Extensions()
	patterns := make([]string, 0, len(exts))
	for _, ext := range exts {
		patterns = append(patterns, "**/*"+ext)
	}
	return patterns
}

func sortInputs(inputs []cmddoc.Input) {
	slices.SortFunc(inputs, func(a, b cmddoc.Input) int { return strings.Compare(a.ID, b.ID) })
}
