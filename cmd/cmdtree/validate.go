// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/cmdtree/cmdtree/internal/dispatch"
	"github.com/cmdtree/cmdtree/internal/issue"
	"github.com/cmdtree/cmdtree/internal/live"
	"github.com/cmdtree/cmdtree/pkg/cmdtree"

	"github.com/spf13/cobra"
)

func newValidateCommand(app *App) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compile the documents and report every problem",
		Long: `Compile the configured documents exactly like a reload would, without
serving the result. Every diagnostic of a rejected batch is listed.

Unbound executables are expected here, since no host is attached. Argument
types the built-in dispatcher does not know are reported as warnings; with
--strict they fail the command.`,
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

			renderSummary(app.stdout, report, s.source.Name())
			warnings := dispatch.NewTypes().Check(s.manager.Current())
			for _, w := range warnings {
				fmt.Fprintf(app.stdout, "%s %s\n", warningIcon, WarningStyle.Render(w.Error()))
			}
			if strict && len(warnings) > 0 {
				return app.printError(cmd, fmt.Errorf("%d argument type warning(s) in strict mode", len(warnings)), 1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat argument type warnings as errors")
	return cmd
}

// reloadError adds hints to reload failures.
func reloadError(err error) error {
	if ae := issue.FromReloadError(err); ae != nil {
		return ae
	}
	return err
}

func renderSummary(w io.Writer, report *live.Report, sourceName string) {
	fmt.Fprintf(w, "%s %s\n", successIcon, SuccessStyle.Render(fmt.Sprintf(
		"%d document(s) from %s compiled into %d node(s)", report.Documents, sourceName, report.Nodes)))
	fmt.Fprintf(w, "  %s %d\n", detailStyle.Render("generation:"), report.Generation)
	fmt.Fprintf(w, "  %s %s\n", detailStyle.Render("digest:"), report.Digest)
	if len(report.Unbound) > 0 {
		fmt.Fprintf(w, "  %s %d executable path(s) without a handler\n", detailStyle.Render("unbound:"), len(report.Unbound))
	}
}

func renderDiagnostics(w io.Writer, report *live.Report) {
	if report == nil || len(report.Diagnostics) == 0 {
		return
	}
	fmt.Fprintf(w, "%s %s\n", errorIcon, ErrorStyle.Render(fmt.Sprintf(
		"%d document(s) rejected with %d error(s)", report.Documents, len(report.Diagnostics))))
	for _, d := range report.Diagnostics {
		fmt.Fprintf(w, "  %s %s\n", kindTagStyle.Render("["+string(d.Kind)+"]"), diagnosticText(d))
	}
}

func diagnosticText(d *cmdtree.Error) string {
	where := d.Document
	if d.Path != "" {
		where += " " + PathStyle.Render(d.Path)
	}
	if where == "" {
		return d.Error()
	}
	return where + ": " + d.Error()
}
