// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cmdtree/cmdtree/internal/issue"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	loaded, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if loaded.Path != "" {
		t.Errorf("Path = %q, want empty", loaded.Path)
	}

	want := DefaultConfig()
	if loaded.Documents.Dir != want.Documents.Dir {
		t.Errorf("documents.dir = %q, want %q", loaded.Documents.Dir, want.Documents.Dir)
	}
	if loaded.Reload.Debounce != want.Reload.Debounce {
		t.Errorf("reload.debounce = %v, want %v", loaded.Reload.Debounce, want.Reload.Debounce)
	}
	if loaded.Resolver.MaxAliasDepth != want.Resolver.MaxAliasDepth {
		t.Errorf("resolver.max_alias_depth = %d", loaded.Resolver.MaxAliasDepth)
	}
	if loaded.Log.Format != LogFormatText || loaded.Log.Level != LogLevelInfo {
		t.Errorf("log = %+v", loaded.Log)
	}
	if loaded.RedisEnabled() {
		t.Error("redis should be disabled by default")
	}
}

func TestLoad_CUEFile(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, `
documents: {
	dir: "/srv/commands"
	patterns: ["**/*.cue", "extra/*.json"]
	namespace: "game"
}
reload: debounce: "1m30s"
reload: parse_workers: 4
resolver: max_alias_depth: 3
log: {
	level: "debug"
	format: "json"
}
redis: addr: "localhost:6379"
`)

	loaded, err := LoadWithPath(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("LoadWithPath() error = %v", err)
	}
	if loaded.Path != filepath.Join(dir, FileName()) {
		t.Errorf("Path = %q", loaded.Path)
	}
	if loaded.Documents.Dir != "/srv/commands" || loaded.Documents.Namespace != "game" {
		t.Errorf("documents = %+v", loaded.Documents)
	}
	if len(loaded.Documents.Patterns) != 2 || loaded.Documents.Patterns[1] != "extra/*.json" {
		t.Errorf("patterns = %v", loaded.Documents.Patterns)
	}
	if loaded.Reload.Debounce != 90*time.Second || loaded.Reload.ParseWorkers != 4 {
		t.Errorf("reload = %+v", loaded.Reload)
	}
	if loaded.Resolver.MaxAliasDepth != 3 {
		t.Errorf("max_alias_depth = %d", loaded.Resolver.MaxAliasDepth)
	}
	if loaded.Log.Level != LogLevelDebug || loaded.Log.Format != LogFormatJSON {
		t.Errorf("log = %+v", loaded.Log)
	}
	if !loaded.RedisEnabled() || loaded.Redis.Key != "cmdtree:documents" {
		t.Errorf("redis = %+v", loaded.Redis)
	}
	// Unset sections keep defaults.
	if loaded.Server.Listen != DefaultConfig().Server.Listen {
		t.Errorf("server.listen = %q", loaded.Server.Listen)
	}
}

func TestLoad_SchemaRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"unknown top-level field", `container_engine: "docker"`},
		{"unknown nested field", `documents: recursive: true`},
		{"bad level", `log: level: "verbose"`},
		{"bad format", `log: format: "xml"`},
		{"bad debounce", `reload: debounce: "soon"`},
		{"negative workers", `reload: parse_workers: -1`},
		{"alias depth zero", `resolver: max_alias_depth: 0`},
		{"empty dir", `documents: dir: ""`},
		{"syntax error", `documents: {`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := writeConfig(t, tt.content)
			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			if err == nil {
				t.Fatal("Load() should fail")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error %T is not an ActionableError", err)
			}
			if ae.Operation != "load configuration" {
				t.Errorf("Operation = %q", ae.Operation)
			}
		})
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, `server: listen: ":9090"`)
	path := filepath.Join(dir, FileName())

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Listen != ":9090" {
		t.Errorf("server.listen = %q", cfg.Server.Listen)
	}

	_, err = NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: filepath.Join(dir, "missing.cue")})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("missing explicit file error = %v", err)
	}
}

func TestLoad_OverridesWin(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, `documents: dir: "from-file"`)
	cfg, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigDirPath: dir,
		Overrides: map[string]any{
			"documents.dir": "from-flag",
			"log.level":     "warn",
		},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Documents.Dir != "from-flag" || cfg.Log.Level != LogLevelWarn {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_InvalidOverride(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{
		ConfigDirPath: t.TempDir(),
		Overrides:     map[string]any{"log.format": "xml", "server.listen": "nope"},
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	var ice *InvalidConfigError
	if !errors.As(err, &ice) || len(ice.FieldErrors) != 2 {
		t.Errorf("want 2 field errors, got %v", err)
	}
}

// Not parallel: uses t.Setenv.
func TestLoad_Environment(t *testing.T) {
	t.Setenv("CMDTREE_DOCUMENTS_DIR", "/from/env")
	t.Setenv("CMDTREE_RELOAD_DEBOUNCE", "2s")
	t.Setenv("CMDTREE_REDIS_ADDR", "redis:6379")

	dir := writeConfig(t, `documents: dir: "from-file"`)
	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Documents.Dir != "/from/env" {
		t.Errorf("documents.dir = %q, env should beat the file", cfg.Documents.Dir)
	}
	if cfg.Reload.Debounce != 2*time.Second {
		t.Errorf("reload.debounce = %v", cfg.Reload.Debounce)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis.addr = %q", cfg.Redis.Addr)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	want := DefaultConfig()
	want.Documents.Patterns = []string{"**/*.cue"}
	want.Reload.Debounce = 1500 * time.Millisecond
	want.Redis.Addr = "127.0.0.1:6379"

	dir := writeConfig(t, GenerateCUE(want))
	got, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("generated config does not load: %v\n%s", err, GenerateCUE(want))
	}
	if got.Reload.Debounce != want.Reload.Debounce ||
		got.Redis.Addr != want.Redis.Addr ||
		len(got.Documents.Patterns) != 1 {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", FileName())
	wrote, err := WriteDefault(path)
	if err != nil || !wrote {
		t.Fatalf("WriteDefault() = %v, %v", wrote, err)
	}
	wrote, err = WriteDefault(path)
	if err != nil || wrote {
		t.Errorf("second WriteDefault() = %v, %v; want no write", wrote, err)
	}
}

// Not parallel: mutates the config directory override.
func TestConfigDirOverride(t *testing.T) {
	t.Cleanup(Reset)

	SetConfigDirOverride("/tmp/cmdtree-test")
	dir, err := ConfigDir()
	if err != nil || dir != "/tmp/cmdtree-test" {
		t.Errorf("ConfigDir() = %q, %v", dir, err)
	}
	Reset()
	if configDirOverride != "" {
		t.Error("Reset() did not clear the override")
	}
}
