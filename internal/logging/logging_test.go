// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{
			format: FormatJSON,
			check: func(t *testing.T, out string) {
				t.Helper()
				var rec map[string]any
				if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
					t.Fatalf("output is not JSON: %v\n%s", err, out)
				}
				if rec["msg"] != "command tree published" {
					t.Errorf("msg = %v", rec["msg"])
				}
			},
		},
		{
			format: FormatLogfmt,
			check: func(t *testing.T, out string) {
				t.Helper()
				if !strings.Contains(out, "generation=3") {
					t.Errorf("logfmt output missing attribute:\n%s", out)
				}
			},
		},
		{
			format: FormatText,
			check: func(t *testing.T, out string) {
				t.Helper()
				if !strings.Contains(out, "command tree published") || !strings.Contains(out, "generation=3") {
					t.Errorf("text output = %q", out)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger, err := New(&buf, Options{Format: tt.format})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			logger.Info("command tree published", "generation", 3)
			tt.check(t, buf.String())
		})
	}
}

func TestLevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "warn"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("hidden")
	logger.Debug("hidden too")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info/debug leaked through warn level:\n%s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing:\n%s", out)
	}
}

func TestInvalidOptions(t *testing.T) {
	t.Parallel()

	if _, err := New(&bytes.Buffer{}, Options{Level: "loud"}); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("level error = %v, want ErrInvalidLevel", err)
	}
	if _, err := New(&bytes.Buffer{}, Options{Format: "xml"}); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("format error = %v, want ErrInvalidFormat", err)
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	Discard().Error("nothing happens")
}
