// SPDX-License-Identifier: MPL-2.0

package binding

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

func constant(n int) cmdtree.Handler {
	return cmdtree.HandlerFunc(func(context.Context, *cmdtree.Invocation) (int, error) { return n, nil })
}

func run(t *testing.T, h cmdtree.Handler) int {
	t.Helper()
	n, err := h.Run(t.Context(), &cmdtree.Invocation{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return n
}

func TestBindings_BindLookupUnbind(t *testing.T) {
	t.Parallel()

	b := New()
	if err := b.Bind("json_test/literal_child", constant(1)); err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	// Rebinding replaces the previous handler.
	if err := b.Bind("json_test/literal_child", constant(2)); err != nil {
		t.Fatalf("Bind() error: %v", err)
	}
	h, ok := b.Lookup("json_test/literal_child")
	if !ok || run(t, h) != 2 {
		t.Fatal("Lookup() did not return the latest handler")
	}

	if !b.Unbind("json_test/literal_child") {
		t.Error("Unbind() = false for a bound path")
	}
	if b.Unbind("json_test/literal_child") {
		t.Error("second Unbind() = true")
	}
	if _, ok := b.Lookup("json_test/literal_child"); ok {
		t.Error("handler still bound after Unbind")
	}
}

func TestBindings_BindRejects(t *testing.T) {
	t.Parallel()

	b := New()
	tests := []struct {
		name string
		path string
		h    cmdtree.Handler
		want error
	}{
		{"empty path", "", constant(1), cmdtree.ErrInvalidPath},
		{"whitespace segment", "a/b c", constant(1), cmdtree.ErrInvalidPath},
		{"empty segment", "a//b", constant(1), cmdtree.ErrInvalidPath},
		{"nil handler", "a", nil, ErrNilBinding},
		{"nil func", "a", cmdtree.HandlerFunc(nil), ErrNilBinding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := b.Bind(tt.path, tt.h); !errors.Is(err, tt.want) {
				t.Errorf("Bind(%q) error = %v, want %v", tt.path, err, tt.want)
			}
		})
	}
}

func TestBindings_SnapshotIsFrozen(t *testing.T) {
	t.Parallel()

	b := New()
	if err := b.Bind("a", constant(1)); err != nil {
		t.Fatal(err)
	}
	snap := b.Snapshot()

	_ = b.Bind("a", constant(9))
	_ = b.Bind("b", constant(2))

	h, ok := snap("a")
	if !ok || run(t, h) != 1 {
		t.Error("snapshot observed a later Bind")
	}
	if _, ok := snap("b"); ok {
		t.Error("snapshot observed a path bound after it was taken")
	}
}

func TestBindings_PathsIncludesAbsentPaths(t *testing.T) {
	t.Parallel()

	b := New()
	for _, p := range []string{"z/late", "a/early", "m"} {
		if err := b.Bind(p, constant(0)); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := b.Paths(), []string{"a/early", "m", "z/late"}; !slices.Equal(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestBindings_Modifiers(t *testing.T) {
	t.Parallel()

	b := New()
	m := cmdtree.ModifierFunc(func(_ context.Context, inv *cmdtree.Invocation) ([]cmdtree.Source, error) {
		return []cmdtree.Source{inv.Source, inv.Source}, nil
	})

	if err := b.RegisterModifier("testmod:triple_literal", m); err != nil {
		t.Fatalf("RegisterModifier() error: %v", err)
	}
	if _, ok := b.Modifier("testmod:triple_literal"); !ok {
		t.Error("modifier not found")
	}
	if err := b.RegisterModifier("bad id", m); !errors.Is(err, ErrInvalidModifierID) {
		t.Errorf("RegisterModifier(bad id) error = %v", err)
	}
	if err := b.RegisterModifier("", m); !errors.Is(err, ErrInvalidModifierID) {
		t.Errorf("RegisterModifier(empty) error = %v", err)
	}
	if !b.UnregisterModifier("testmod:triple_literal") {
		t.Error("UnregisterModifier() = false")
	}
}

func TestBindings_Version(t *testing.T) {
	t.Parallel()

	b := New()
	v0 := b.Version()
	_ = b.Bind("a", constant(1))
	v1 := b.Version()
	b.Unbind("missing")
	if b.Version() != v1 {
		t.Error("no-op Unbind changed the version")
	}
	_ = b.RegisterModifier("ns:m", cmdtree.ModifierFunc(func(context.Context, *cmdtree.Invocation) ([]cmdtree.Source, error) {
		return nil, nil
	}))
	if !(v0 < v1 && v1 < b.Version()) {
		t.Errorf("versions did not advance: %d %d %d", v0, v1, b.Version())
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry[int](nil)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := range 100 {
				_ = r.Bind(string(rune('a'+i)), j)
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				_, _ = r.Lookup(string(rune('a' + i)))
				_ = r.Snapshot()
			}
		}()
	}
	wg.Wait()

	if r.Len() != 8 {
		t.Errorf("Len() = %d, want 8", r.Len())
	}
	if v, _ := r.Lookup("c"); v != 99 {
		t.Errorf("Lookup(c) = %d, want 99", v)
	}
}
