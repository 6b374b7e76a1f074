// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/cmdtree/cmdtree/internal/issue"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newExplainCommand(app *App) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "explain [issue]",
		Short: "Explain an error kind or problem",
		Long: `Print a longer explanation of a problem, with common causes and things to
try. The argument is an issue name (e.g. cycle-detected) or an error kind
(e.g. CycleDetected). Without an argument every issue is listed.

Output is rendered as styled Markdown on a terminal and printed raw
otherwise, or always with --raw.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(app.stdout, TitleStyle.Render("Issues:"))
				for _, is := range issue.Values() {
					fmt.Fprintf(app.stdout, "  %s\n", PathStyle.Render(is.Name()))
				}
				return nil
			}

			is, ok := issue.Lookup(args[0])
			if !ok {
				return app.printError(cmd, 
					issue.NewErrorContext().
						WithOperation("explain").
						WithResource(args[0]).
						WithSuggestion("Run 'cmdtree explain' to list the known issues").
						Wrap(fmt.Errorf("unknown issue %q", args[0])).
						BuildError(),
					1)
			}

			if raw || !term.IsTerminal(int(os.Stdout.Fd())) {
				fmt.Fprintln(app.stdout, is.Markdown())
				return nil
			}
			out, err := is.Render("auto")
			if err != nil {
				return app.printError(cmd, err, 1)
			}
			fmt.Fprint(app.stdout, out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print the Markdown source")
	return cmd
}
