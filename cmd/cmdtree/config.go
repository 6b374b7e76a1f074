// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/cmdtree/cmdtree/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration",
		Long: `Inspect the effective configuration and create config files.

Configuration is read from ` + config.FileName() + ` in the user config directory or
the working directory, then CMDTREE_* environment variables, then flags.`,
	}

	cmd.AddCommand(
		newConfigShowCommand(app),
		newConfigPathCommand(app),
		newConfigInitCommand(app),
	)
	return cmd
}

func newConfigShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context(), nil)
			if err != nil {
				return app.printError(cmd, err, 1)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	}
}

func newConfigPathCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.LoadWithPath(cmd.Context(), config.LoadOptions{
				ConfigFilePath: app.flags.configPath,
				Overrides:      app.flags.overrides(),
			})
			if err != nil {
				return app.printError(cmd, err, 1)
			}
			if loaded.Path == "" {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("no config file, using defaults"))
				return nil
			}
			fmt.Fprintln(app.stdout, filepath.ToSlash(loaded.Path))
			return nil
		},
	}
}

func newConfigInitCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to the user config directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := app.flags.configPath
			if path == "" {
				dir, err := config.ConfigDir()
				if err != nil {
					return app.printError(cmd, err, 1)
				}
				path = filepath.Join(dir, config.FileName())
			}
			wrote, err := config.WriteDefault(path)
			if err != nil {
				return app.printError(cmd, err, 1)
			}
			reportWrite(app, path, wrote)
			return nil
		},
	}
}
