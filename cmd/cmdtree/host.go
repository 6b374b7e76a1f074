// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/cmdtree/cmdtree/internal/issue"
	"github.com/cmdtree/cmdtree/internal/live"
	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

// echoHost stands in for a real host. After every reload it binds a handler
// that prints its invocation to each executable path without one, and a
// modifier that passes the source through unchanged to each modifier id
// without one.
type echoHost struct {
	manager *live.Manager

	mu  sync.Mutex
	out io.Writer
}

func newEchoHost(m *live.Manager, out io.Writer) *echoHost {
	return &echoHost{manager: m, out: out}
}

// Current implements server.Trees and dispatch.TreeSource.
func (h *echoHost) Current() *cmdtree.Tree { return h.manager.Current() }

// Reload reloads the documents and refreshes the tree when the new
// documents introduced handler paths or modifiers that were not bound yet.
func (h *echoHost) Reload(ctx context.Context) (*live.Report, error) {
	report, err := h.manager.Reload(ctx)
	if err != nil {
		return report, err
	}
	if h.bindMissing(h.manager.Current()) == 0 {
		return report, nil
	}
	return h.manager.Refresh(ctx)
}

// ReloadOnChange matches the watch callback. Rejected batches are reported
// through the returned report, not as errors.
func (h *echoHost) ReloadOnChange(ctx context.Context, _ []string) error {
	_, err := h.Reload(ctx)
	if err != nil && !issue.IsRejection(err) {
		return err
	}
	return nil
}

func (h *echoHost) bindMissing(tree *cmdtree.Tree) int {
	b := h.manager.Bindings()
	bound := 0
	tree.Walk(func(n *cmdtree.Node) bool {
		if n.Executable() {
			if _, ok := b.Lookup(n.HandlerPath()); !ok {
				if err := b.Bind(n.HandlerPath(), h.handler()); err == nil {
					bound++
				}
			}
		}
		if r := n.Redirect(); r != nil && r.Modifier() != "" {
			if _, ok := b.Modifier(r.Modifier()); !ok {
				if err := b.RegisterModifier(r.Modifier(), passThrough); err == nil {
					bound++
				}
			}
		}
		return true
	})
	return bound
}

func (h *echoHost) handler() cmdtree.Handler {
	return cmdtree.HandlerFunc(func(_ context.Context, inv *cmdtree.Invocation) (int, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		fmt.Fprintf(h.out, "%s %s%s %s\n",
			SuccessStyle.Render("→"),
			PathStyle.Render(inv.Path),
			formatArgs(inv.Args),
			detailStyle.Render(fmt.Sprintf("(level %d)", inv.Source.PermissionLevel())))
		return 1, nil
	})
}

var passThrough = cmdtree.ModifierFunc(func(_ context.Context, inv *cmdtree.Invocation) ([]cmdtree.Source, error) {
	return []cmdtree.Source{inv.Source}, nil
})

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(args)) {
		fmt.Fprintf(&b, " %s=%v", name, args[name])
	}
	return b.String()
}
