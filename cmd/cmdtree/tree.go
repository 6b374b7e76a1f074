// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"
)

func newTreeCommand(app *App) *cobra.Command {
	var (
		paths   bool
		unbound bool
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the compiled command tree",
		Long: `Compile the configured documents and print the resulting tree.

Literal nodes are shown by name and argument nodes as <name> with their
type. Executable nodes are marked with their handler path when it differs
from their own path, and redirects with their target.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.open(cmd.Context(), nil)
			if err != nil {
				return app.printError(cmd, err, 1)
			}
			defer s.Close()

			report, err := s.manager.Reload(cmd.Context())
			if err != nil {
				renderDiagnostics(app.stdout, report)
				return app.printError(cmd, reloadError(err), 1)
			}
			t := s.manager.Current()

			switch {
			case paths:
				for _, p := range t.Paths() {
					fmt.Fprintln(app.stdout, p)
				}
			case unbound:
				for _, p := range t.Unbound() {
					fmt.Fprintln(app.stdout, p)
				}
			default:
				fmt.Fprintln(app.stdout, renderTree(t))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&paths, "paths", false, "print one node path per line")
	cmd.Flags().BoolVar(&unbound, "unbound", false, "print the executable paths without a handler")
	cmd.MarkFlagsMutuallyExclusive("paths", "unbound")
	return cmd
}

func renderTree(t *cmdtree.Tree) string {
	root := tree.Root(TitleStyle.Render(fmt.Sprintf("generation %d", t.Generation()))).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(detailStyle)
	for _, c := range t.Root().Children() {
		root.Child(treeNode(c))
	}
	return root.String()
}

func treeNode(n *cmdtree.Node) any {
	label := nodeLabel(n)
	children := n.Children()
	if len(children) == 0 {
		return label
	}
	sub := tree.Root(label)
	for _, c := range children {
		sub.Child(treeNode(c))
	}
	return sub
}

func nodeLabel(n *cmdtree.Node) string {
	var b strings.Builder
	if n.Kind() == cmdtree.KindArgument {
		b.WriteString(argumentStyle.Render("<" + n.Name() + ">"))
		b.WriteString(" ")
		b.WriteString(detailStyle.Render(n.ArgumentType()))
	} else {
		b.WriteString(literalStyle.Render(n.Name()))
	}

	var tags []string
	if lvl, ok := n.Level(); ok {
		tags = append(tags, fmt.Sprintf("level %d", lvl))
	}
	if n.Executable() {
		tag := "exec"
		if n.HandlerPath() != n.Path() {
			tag += " " + n.HandlerPath()
		}
		tags = append(tags, tag)
	}
	if r := n.Redirect(); r != nil {
		tag := "→ " + r.TargetPath()
		if r.Fork() {
			tag += " fork"
		}
		if r.Modifier() != "" {
			tag += " via " + r.Modifier()
		}
		tags = append(tags, tag)
	}
	if len(tags) > 0 {
		b.WriteString(" ")
		b.WriteString(detailStyle.Render("[" + strings.Join(tags, ", ") + "]"))
	}
	return b.String()
}
