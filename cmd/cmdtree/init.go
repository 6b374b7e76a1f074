// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cmdtree/cmdtree/internal/config"

	"github.com/spf13/cobra"
)

const sampleDocumentName = "example.cue"

const sampleDocument = `// Example command document. Every file matching documents.patterns under
// documents.dir is merged into one command tree.
namespace: "example"

commands: {
	greet: {
		executable: true
		arguments: name: {
			type: "brigadier:string"
			parameters: type: "word"
			executable: true
		}
	}
	count: arguments: n: {
		type: "brigadier:integer"
		parameters: {min: 1, max: 10}
		executable: true
	}
	shout: redirect: "greet"
	everyone: redirect: {target: "greet", modifier: true, forks: true}
	admin: {
		level: "admins"
		arguments: reload: executable: true
	}
}

aliases: hello: "greet"
`

func newInitCommand(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file and a sample command document",
		Long: `Create ` + config.FileName() + ` in the working directory (or at --config) and an
example document in the documents directory. Existing files are kept
unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath := app.flags.configPath
			if cfgPath == "" {
				cfgPath = config.FileName()
			}
			cfg := config.DefaultConfig()
			if app.flags.documents != "" {
				cfg.Documents.Dir = app.flags.documents
			}

			wrote, err := writeFile(cfgPath, config.GenerateCUE(cfg), force)
			if err != nil {
				return app.printError(cmd, err, 1)
			}
			reportWrite(app, cfgPath, wrote)

			docPath := filepath.Join(cfg.Documents.Dir, sampleDocumentName)
			wrote, err = writeFile(docPath, sampleDocument, force)
			if err != nil {
				return app.printError(cmd, err, 1)
			}
			reportWrite(app, docPath, wrote)

			fmt.Fprintf(app.stdout, "\n%s\n", SubtitleStyle.Render("Next: cmdtree validate && cmdtree tree"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

// writeFile writes content to path, creating parent directories. An
// existing file is only replaced when force is set.
func writeFile(path, content string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

func reportWrite(app *App, path string, wrote bool) {
	if wrote {
		fmt.Fprintf(app.stdout, "%s created %s\n", successIcon, PathStyle.Render(filepath.ToSlash(path)))
		return
	}
	fmt.Fprintf(app.stdout, "%s kept existing %s\n", warningIcon, PathStyle.Render(filepath.ToSlash(path)))
}
