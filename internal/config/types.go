// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	// LogFormatText is the human-readable format.
	LogFormatText LogFormat = "text"
	// LogFormatJSON emits one JSON object per line.
	LogFormatJSON LogFormat = "json"
	// LogFormatLogfmt emits key=value lines.
	LogFormatLogfmt LogFormat = "logfmt"

	// LogLevelDebug enables debug output.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"

	// maxAliasDepthLimit mirrors the upper bound of config_schema.cue.
	maxAliasDepthLimit = 1024
)

var (
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidDocumentsConfig is the sentinel wrapped by InvalidDocumentsConfigError.
	ErrInvalidDocumentsConfig = errors.New("invalid documents config")
	// ErrInvalidReloadConfig is the sentinel wrapped by InvalidReloadConfigError.
	ErrInvalidReloadConfig = errors.New("invalid reload config")
	// ErrInvalidServerConfig is the sentinel wrapped by InvalidServerConfigError.
	ErrInvalidServerConfig = errors.New("invalid server config")
	// ErrInvalidConfig is the sentinel wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogFormat selects the log encoding.
	LogFormat string

	// InvalidLogFormatError is returned when a LogFormat value is not recognized.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// LogLevel is the minimum level that is logged.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidDocumentsConfigError collects DocumentsConfig field errors.
	InvalidDocumentsConfigError struct {
		FieldErrors []error
	}

	// InvalidReloadConfigError collects ReloadConfig and ResolverConfig field errors.
	InvalidReloadConfigError struct {
		FieldErrors []error
	}

	// InvalidServerConfigError collects ServerConfig field errors.
	InvalidServerConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError collects every field error of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the complete cmdtree configuration.
	Config struct {
		Documents DocumentsConfig `json:"documents" mapstructure:"documents"`
		Reload    ReloadConfig    `json:"reload" mapstructure:"reload"`
		Resolver  ResolverConfig  `json:"resolver" mapstructure:"resolver"`
		Log       LogConfig       `json:"log" mapstructure:"log"`
		Server    ServerConfig    `json:"server" mapstructure:"server"`
		Redis     RedisConfig     `json:"redis" mapstructure:"redis"`
	}

	// DocumentsConfig locates the command documents.
	DocumentsConfig struct {
		// Dir is the documents directory.
		Dir string `json:"dir" mapstructure:"dir"`
		// Patterns are doublestar globs relative to Dir. Empty means every
		// supported extension.
		Patterns []string `json:"patterns" mapstructure:"patterns"`
		// Namespace qualifies modifier ids of documents that set none.
		Namespace string `json:"namespace" mapstructure:"namespace"`
	}

	// ReloadConfig tunes the reload pipeline.
	ReloadConfig struct {
		// Debounce is the quiet period after a file change before reloading.
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
		// ParseWorkers bounds concurrent document parsing. Zero means GOMAXPROCS.
		ParseWorkers int `json:"parse_workers" mapstructure:"parse_workers"`
	}

	// ResolverConfig tunes alias resolution.
	ResolverConfig struct {
		MaxAliasDepth int `json:"max_alias_depth" mapstructure:"max_alias_depth"`
	}

	// LogConfig selects the log output.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level"`
		Format LogFormat `json:"format" mapstructure:"format"`
	}

	// ServerConfig configures 'cmdtree serve'.
	ServerConfig struct {
		Listen string `json:"listen" mapstructure:"listen"`
	}

	// RedisConfig enables the Redis document source when Addr is set.
	RedisConfig struct {
		Addr    string `json:"addr" mapstructure:"addr"`
		Key     string `json:"key" mapstructure:"key"`
		Channel string `json:"channel" mapstructure:"channel"`
	}
)

// String returns the string representation of the LogFormat.
func (f LogFormat) String() string { return string(f) }

// IsValid returns whether the LogFormat is one of the defined formats.
func (f LogFormat) IsValid() (bool, []error) {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return true, nil
	default:
		return false, []error{&InvalidLogFormatError{Value: f}}
	}
}

func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json, logfmt)", e.Value)
}

func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// IsValid checks the documents directory and patterns.
func (c DocumentsConfig) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.Dir) == "" {
		errs = append(errs, errors.New("documents.dir: must not be empty"))
	}
	for i, p := range c.Patterns {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("documents.patterns[%d]: must not be empty", i))
		}
	}
	if strings.ContainsAny(c.Namespace, " \t:") {
		errs = append(errs, fmt.Errorf("documents.namespace %q: must not contain whitespace or ':'", c.Namespace))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidDocumentsConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func (e *InvalidDocumentsConfigError) Error() string {
	return fmt.Sprintf("invalid documents config: %d field error(s)", len(e.FieldErrors))
}

func (e *InvalidDocumentsConfigError) Unwrap() error { return ErrInvalidDocumentsConfig }

// IsValid checks the reload and resolver tuning.
func (c ReloadConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("reload.debounce %s: must not be negative", c.Debounce))
	}
	if c.ParseWorkers < 0 {
		errs = append(errs, fmt.Errorf("reload.parse_workers %d: must not be negative", c.ParseWorkers))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidReloadConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// IsValid checks the alias depth bound.
func (c ResolverConfig) IsValid() (bool, []error) {
	if c.MaxAliasDepth < 1 || c.MaxAliasDepth > maxAliasDepthLimit {
		return false, []error{&InvalidReloadConfigError{FieldErrors: []error{
			fmt.Errorf("resolver.max_alias_depth %d: must be between 1 and %d", c.MaxAliasDepth, maxAliasDepthLimit),
		}}}
	}
	return true, nil
}

func (e *InvalidReloadConfigError) Error() string {
	return fmt.Sprintf("invalid reload config: %d field error(s)", len(e.FieldErrors))
}

func (e *InvalidReloadConfigError) Unwrap() error { return ErrInvalidReloadConfig }

// IsValid checks that Listen is a host:port pair.
func (c ServerConfig) IsValid() (bool, []error) {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return false, []error{&InvalidServerConfigError{FieldErrors: []error{
			fmt.Errorf("server.listen %q: %w", c.Listen, err),
		}}}
	}
	return true, nil
}

func (e *InvalidServerConfigError) Error() string {
	return fmt.Sprintf("invalid server config: %d field error(s)", len(e.FieldErrors))
}

func (e *InvalidServerConfigError) Unwrap() error { return ErrInvalidServerConfig }

// IsValid validates every section and returns all field errors wrapped in
// one InvalidConfigError.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for _, check := range []func() (bool, []error){
		c.Documents.IsValid,
		c.Reload.IsValid,
		c.Resolver.IsValid,
		c.Log.Level.IsValid,
		c.Log.Format.IsValid,
		c.Server.IsValid,
	} {
		if valid, fieldErrs := check(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// RedisEnabled reports whether the Redis source is configured.
func (c Config) RedisEnabled() bool { return strings.TrimSpace(c.Redis.Addr) != "" }

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Documents: DocumentsConfig{
			Dir:       "commands",
			Namespace: "cmdtree",
		},
		Reload: ReloadConfig{
			Debounce: 300 * time.Millisecond,
		},
		Resolver: ResolverConfig{MaxAliasDepth: 16},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
		Server: ServerConfig{Listen: "127.0.0.1:8080"},
		Redis: RedisConfig{
			Key:     "cmdtree:documents",
			Channel: "cmdtree:reload",
		},
	}
}
