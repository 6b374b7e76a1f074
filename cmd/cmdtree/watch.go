// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/cmdtree/cmdtree/internal/issue"
	"github.com/cmdtree/cmdtree/internal/live"

	"github.com/spf13/cobra"
)

func newWatchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Recompile the documents whenever they change",
		Long: `Compile the documents, then recompile them on every change and print a
report for each attempt. A rejected batch keeps the previous tree live.

Directory sources are watched with file system notifications. Redis
sources are reloaded when a document id is published on the configured
channel.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := app.open(ctx, nil)
			if err != nil {
				return app.printError(cmd, err, 1)
			}
			defer s.Close()

			cancel := s.manager.OnReload(func(r *live.Report) {
				renderReport(app.stdout, r)
			})
			defer cancel()

			if _, err := s.manager.Reload(ctx); err != nil && !issue.IsRejection(err) {
				return app.printError(cmd, err, 1)
			}
			if err := s.follow(ctx, s.manager.ReloadOnChange); err != nil {
				return app.printError(cmd, err, 1)
			}
			return nil
		},
	}
}

func renderReport(w io.Writer, r *live.Report) {
	switch r.Result() {
	case "success":
		state := "unchanged"
		if r.Changed {
			state = "changed"
		}
		fmt.Fprintf(w, "%s %s %s\n", successIcon,
			SuccessStyle.Render(fmt.Sprintf("generation %d: %d node(s), %s", r.Generation, r.Nodes, state)),
			detailStyle.Render(r.Duration.String()))
	case "rejected":
		renderDiagnostics(w, r)
		fmt.Fprintf(w, "  %s\n", WarningStyle.Render(fmt.Sprintf("keeping generation %d", r.Generation)))
	default:
		fmt.Fprintf(w, "%s %s\n", errorIcon, ErrorStyle.Render("reload failed: "+r.Err.Error()))
	}
}
