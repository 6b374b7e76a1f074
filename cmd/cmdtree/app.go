// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cmdtree/cmdtree/internal/config"
	"github.com/cmdtree/cmdtree/internal/live"
	"github.com/cmdtree/cmdtree/internal/logging"
	"github.com/cmdtree/cmdtree/internal/resolver"
	"github.com/cmdtree/cmdtree/internal/source"
	"github.com/cmdtree/cmdtree/internal/watch"
	"github.com/cmdtree/cmdtree/pkg/cmddoc"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type (
	// Dependencies are the injectable services of the CLI. Zero fields fall
	// back to the process defaults.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}

	// App wires configuration, logging and the live manager for every
	// subcommand.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
		flags  *globalFlags
	}

	globalFlags struct {
		set        *pflag.FlagSet
		configPath string
		documents  string
		logLevel   string
		logFormat  string
		verbose    bool
	}

	// session is one opened document source with its manager.
	session struct {
		cfg     *config.Config
		logger  *slog.Logger
		source  live.Source
		redis   *source.Redis
		manager *live.Manager
	}
)

// NewApp creates the application from deps.
func NewApp(deps Dependencies) (*App, error) {
	app := &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
		flags:  &globalFlags{},
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app, nil
}

func (f *globalFlags) register(root *cobra.Command) {
	f.set = root.PersistentFlags()
	f.set.StringVar(&f.configPath, "config", "", "config file (default: user config dir, then ./"+config.FileName()+")")
	f.set.StringVarP(&f.documents, "documents", "d", "", "documents directory (overrides documents.dir)")
	f.set.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.set.StringVar(&f.logFormat, "log-format", "", "log format: text, json or logfmt")
	f.set.BoolVarP(&f.verbose, "verbose", "v", false, "show detailed errors and debug logs")
}

// overrides returns the config keys of every global flag set on the command
// line.
func (f *globalFlags) overrides() map[string]any {
	out := make(map[string]any)
	if f.set == nil {
		return out
	}
	if f.set.Changed("documents") {
		out["documents.dir"] = f.documents
	}
	if f.set.Changed("log-level") {
		out["log.level"] = f.logLevel
	}
	if f.set.Changed("log-format") {
		out["log.format"] = f.logFormat
	}
	return out
}

// loadConfig loads the configuration with the global flag overrides plus
// extra, which wins over them.
func (a *App) loadConfig(ctx context.Context, extra map[string]any) (*config.Config, error) {
	overrides := a.flags.overrides()
	for k, v := range extra {
		overrides[k] = v
	}
	return a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configPath,
		Overrides:      overrides,
	})
}

func (a *App) newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Log.Level.String()
	if a.flags.verbose {
		level = string(config.LogLevelDebug)
	}
	return logging.New(a.stderr, logging.Options{
		Level:  level,
		Format: cfg.Log.Format.String(),
		Prefix: "cmdtree",
	})
}

// open loads the configuration, opens the configured document source and
// creates a manager over it. Nothing is loaded until the first Reload.
func (a *App) open(ctx context.Context, extra map[string]any, opts ...live.Option) (*session, error) {
	cfg, err := a.loadConfig(ctx, extra)
	if err != nil {
		return nil, err
	}
	logger, err := a.newLogger(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger}
	if cfg.RedisEnabled() {
		s.redis, err = source.DialRedis(ctx, cfg.Redis.Addr,
			source.WithKey(cfg.Redis.Key),
			source.WithChannel(cfg.Redis.Channel))
		if err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		s.source = s.redis
	} else {
		patterns := cfg.Documents.Patterns
		if len(patterns) == 0 {
			patterns = source.DefaultPatterns()
		}
		dir, err := source.NewDir(cfg.Documents.Dir, source.WithPatterns(patterns...))
		if err != nil {
			return nil, err
		}
		s.source = dir
	}

	base := []live.Option{
		live.WithLogger(logger),
		live.WithParser(cmddoc.NewParser(cmddoc.WithDefaultNamespace(cfg.Documents.Namespace))),
		live.WithResolver(resolver.New(
			resolver.WithMaxAliasDepth(cfg.Resolver.MaxAliasDepth),
			resolver.WithLogger(logger))),
		live.WithParseWorkers(cfg.Reload.ParseWorkers),
	}
	s.manager, err = live.New(s.source, append(base, opts...)...)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the document source.
func (s *session) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

// printError writes err in the CLI error format and returns an ExitError
// carrying code. The error is already printed, so cobra and fang are told
// to stay silent.
func (a *App) printError(cmd *cobra.Command, err error, code int) error {
	fmt.Fprintln(a.stderr, formatErrorForDisplay(err, a.flags.verbose))
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: code, Err: err}
}

// formatErrorForDisplay renders an error for the terminal. Actionable errors
// include their hints, and verbose mode adds the error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	if err == nil {
		return ""
	}
	var ae interface{ Format(bool) string }
	if errors.As(err, &ae) {
		return ErrorStyle.Render("Error: ") + ae.Format(verbose)
	}
	return ErrorStyle.Render("Error: ") + err.Error()
}

// follow calls onChange whenever the documents change: on Redis
// announcements when the source is Redis, on file system events otherwise.
// It returns when ctx ends.
func (s *session) follow(ctx context.Context, onChange func(ctx context.Context, changed []string) error) error {
	if s.redis != nil {
		sub, err := s.redis.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", s.redis.Channel(), err)
		}
		s.logger.Info("following document announcements", "channel", s.redis.Channel())
		return live.Coalesce(ctx, sub, func(ctx context.Context, ids []string) error {
			if err := onChange(ctx, ids); err != nil && ctx.Err() == nil {
				s.logger.Error("triggered reload failed", "err", err)
			}
			return nil
		})
	}

	w, err := watch.New(watch.Config{
		Dir:      s.cfg.Documents.Dir,
		Patterns: s.cfg.Documents.Patterns,
		Debounce: s.cfg.Reload.Debounce,
		Logger:   s.logger,
		OnChange: onChange,
	})
	if err != nil {
		return err
	}
	s.logger.Info("watching documents", "dir", w.Dir())
	return w.Run(ctx)
}
