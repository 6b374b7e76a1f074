// SPDX-License-Identifier: MPL-2.0

package cmdtree

import "context"

type (
	// Source identifies whoever issued a command. The tree only needs the
	// permission level; hosts attach anything else they want to carry.
	Source interface {
		PermissionLevel() int
	}

	// Invocation is what a handler receives when its node is executed.
	Invocation struct {
		// Source is the (possibly redirect-modified) issuer.
		Source Source
		// Input is the full command line as submitted.
		Input string
		// Path is the path of the node being executed.
		Path string
		// Args holds parsed argument values keyed by argument node name.
		Args map[string]any
	}

	// Handler is host code bound to an executable path.
	Handler interface {
		Run(ctx context.Context, inv *Invocation) (int, error)
	}

	// HandlerFunc adapts a function to Handler.
	HandlerFunc func(ctx context.Context, inv *Invocation) (int, error)

	// Modifier is host code that maps one source to the sources a redirect
	// forwards to. A non-forking redirect requires exactly one result.
	Modifier interface {
		Modify(ctx context.Context, inv *Invocation) ([]Source, error)
	}

	// ModifierFunc adapts a function to Modifier.
	ModifierFunc func(ctx context.Context, inv *Invocation) ([]Source, error)

	// HandlerLookup resolves the handler bound to a path during Build.
	HandlerLookup func(path string) (Handler, bool)
)

// Run calls f.
func (f HandlerFunc) Run(ctx context.Context, inv *Invocation) (int, error) { return f(ctx, inv) }

// Modify calls f.
func (f ModifierFunc) Modify(ctx context.Context, inv *Invocation) ([]Source, error) {
	return f(ctx, inv)
}

// Arg returns the parsed value of the named argument.
func (inv *Invocation) Arg(name string) (any, bool) {
	v, ok := inv.Args[name]
	return v, ok
}
