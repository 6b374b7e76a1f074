// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cmdtree/cmdtree/internal/issue"
	"github.com/cmdtree/cmdtree/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "cmdtree"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "cmdtree"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. CMDTREE_LOG_LEVEL.
	EnvPrefix = "CMDTREE"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the cmdtree directory below the user configuration
// directory.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// FileName returns the config file name, "cmdtree.cue".
func FileName() string { return ConfigFileName + "." + ConfigFileExt }

// newViper returns a Viper instance carrying the defaults and the
// environment binding.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("documents.dir", defaults.Documents.Dir)
	v.SetDefault("documents.patterns", defaults.Documents.Patterns)
	v.SetDefault("documents.namespace", defaults.Documents.Namespace)
	v.SetDefault("reload.debounce", defaults.Reload.Debounce)
	v.SetDefault("reload.parse_workers", defaults.Reload.ParseWorkers)
	v.SetDefault("resolver.max_alias_depth", defaults.Resolver.MaxAliasDepth)
	v.SetDefault("log.level", string(defaults.Log.Level))
	v.SetDefault("log.format", string(defaults.Log.Format))
	v.SetDefault("server.listen", defaults.Server.Listen)
	v.SetDefault("redis.addr", defaults.Redis.Addr)
	v.SetDefault("redis.key", defaults.Redis.Key)
	v.SetDefault("redis.channel", defaults.Redis.Channel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the config and the file it was read from,
// which is empty when only defaults and the environment applied.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	resolvedPath, err := locate(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'cmdtree explain config-load-failed' for details").
				Wrap(err).
				BuildError()
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Run 'cmdtree config show' to see the effective values").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// locate picks the config file: the explicit path, which must exist, then
// the user config directory, then the working directory. No file is not an
// error.
func locate(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'cmdtree config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}
	for _, candidate := range []string{filepath.Join(cfgDir, FileName()), FileName()} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config
// schema and merges its contents into Viper. Concrete(false) is used because
// every config field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// WriteDefault writes the default configuration to path unless a file
// already exists there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// GenerateCUE renders cfg as a cmdtree.cue file.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// cmdtree configuration file\n\n")

	sb.WriteString("documents: {\n")
	fmt.Fprintf(&sb, "\tdir: %q\n", cfg.Documents.Dir)
	if len(cfg.Documents.Patterns) > 0 {
		sb.WriteString("\tpatterns: [")
		for i, p := range cfg.Documents.Patterns {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", p)
		}
		sb.WriteString("]\n")
	}
	if cfg.Documents.Namespace != "" {
		fmt.Fprintf(&sb, "\tnamespace: %q\n", cfg.Documents.Namespace)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nreload: {\n")
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Reload.Debounce.String())
	fmt.Fprintf(&sb, "\tparse_workers: %d\n", cfg.Reload.ParseWorkers)
	sb.WriteString("}\n")

	sb.WriteString("\nresolver: {\n")
	fmt.Fprintf(&sb, "\tmax_alias_depth: %d\n", cfg.Resolver.MaxAliasDepth)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Log.Format)
	sb.WriteString("}\n")

	sb.WriteString("\nserver: {\n")
	fmt.Fprintf(&sb, "\tlisten: %q\n", cfg.Server.Listen)
	sb.WriteString("}\n")

	sb.WriteString("\nredis: {\n")
	fmt.Fprintf(&sb, "\taddr: %q\n", cfg.Redis.Addr)
	fmt.Fprintf(&sb, "\tkey: %q\n", cfg.Redis.Key)
	fmt.Fprintf(&sb, "\tchannel: %q\n", cfg.Redis.Channel)
	sb.WriteString("}\n")

	return sb.String()
}
