// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/cmdtree/cmdtree/internal/dispatch"

	"github.com/spf13/cobra"
)

func newRunCommand(app *App) *cobra.Command {
	var (
		level   int
		suggest bool
	)

	cmd := &cobra.Command{
		Use:   "run <input>...",
		Short: "Execute one command line against the tree",
		Long: `Compile the configured documents and execute one command line against
the resulting tree. The arguments are joined with single spaces.

Every executable path is bound to a handler that prints its path, its
arguments and the permission level it ran with, and returns 1. Redirect
modifiers pass the source through unchanged, so a forking redirect runs
its target once.

With --suggest the last token is completed instead of executed.`,
		Example: `  cmdtree run json_test 42
  cmdtree run --level 3 admin run
  cmdtree run --suggest "json_test "`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.open(cmd.Context(), nil)
			if err != nil {
				return app.printError(cmd, err, 1)
			}
			defer s.Close()

			host := newEchoHost(s.manager, app.stdout)
			if report, err := host.Reload(cmd.Context()); err != nil {
				renderDiagnostics(app.stdout, report)
				return app.printError(cmd, reloadError(err), 1)
			}
			d := dispatch.New(host,
				dispatch.WithModifiers(s.manager.Bindings()),
				dispatch.WithLogger(s.logger))

			input := strings.Join(args, " ")
			if suggest {
				for _, c := range d.Suggest(dispatch.Level(level), input) {
					fmt.Fprintln(app.stdout, c)
				}
				return nil
			}

			res, err := d.Execute(cmd.Context(), dispatch.Level(level), input)
			if err != nil {
				return app.printError(cmd, err, 2)
			}

			summary := fmt.Sprintf("result %d", res.Value)
			if res.Forked {
				summary += fmt.Sprintf(" (%d run(s), %d failed)", res.Runs, res.Failures)
			}
			fmt.Fprintf(app.stdout, "%s %s\n", successIcon, SuccessStyle.Render(summary))
			return nil
		},
	}

	cmd.Flags().IntVarP(&level, "level", "l", 0, "permission level of the issuing source")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "complete the last token instead of executing")
	return cmd
}
