// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "cmdtree",
		Short: "Compile command documents into a live command tree",
		Long: TitleStyle.Render("cmdtree") + SubtitleStyle.Render(" - compile command documents into a live command tree") + `

cmdtree reads command documents (CUE, JSON, YAML or TOML), resolves their
aliases and redirects, and publishes an immutable command tree that can be
reloaded at runtime without disturbing commands in flight.

` + SubtitleStyle.Render("Examples:") + `
  cmdtree init                      Create a config file and a sample document
  cmdtree validate                  Check the documents without publishing
  cmdtree tree                      Print the compiled tree
  cmdtree run json_test 42          Execute one command against the tree
  cmdtree serve                     Serve the tree over HTTP, reloading on change
  cmdtree explain cycle-detected    Explain a reload error`,
		SilenceUsage: true,
	}

	app.flags.register(root)

	root.AddCommand(
		newValidateCommand(app),
		newTreeCommand(app),
		newRunCommand(app),
		newWatchCommand(app),
		newServeCommand(app),
		newInitCommand(app),
		newExplainCommand(app),
		newConfigCommand(app),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI with the process streams and exits on failure.
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
