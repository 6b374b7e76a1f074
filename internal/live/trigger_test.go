// SPDX-License-Identifier: MPL-2.0

package live

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestManager_ReloadOnChangeSwallowsRejections(t *testing.T) {
	t.Parallel()

	m, mem := newManager(t, map[string]string{"base.cue": baseDoc})
	if err := m.ReloadOnChange(t.Context(), []string{"base.cue"}); err != nil {
		t.Fatalf("ReloadOnChange() error: %v", err)
	}
	mem.Put("clash.cue", []byte(`commands: json_test: {}`))
	if err := m.ReloadOnChange(t.Context(), []string{"clash.cue"}); err != nil {
		t.Errorf("rejected batch returned %v", err)
	}
	if m.Current().Generation() != 1 {
		t.Errorf("generation = %d, want 1", m.Current().Generation())
	}
}

func TestManager_ReloadOn(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, map[string]string{"base.cue": baseDoc})
	reloaded := make(chan uint64, 10)
	m.OnReload(func(r *Report) { reloaded <- r.Generation })

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	triggers := make(chan string)
	done := make(chan error, 1)
	go func() { done <- m.ReloadOn(ctx, triggers) }()

	triggers <- "base.cue"
	select {
	case gen := <-reloaded:
		if gen != 1 {
			t.Errorf("generation = %d", gen)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("trigger did not reload")
	}

	close(triggers)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ReloadOn() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ReloadOn did not return after triggers closed")
	}
}

func TestCoalesce(t *testing.T) {
	t.Parallel()

	triggers := make(chan string, 3)
	triggers <- "a.cue"
	triggers <- "b.cue"
	triggers <- "c.cue"
	close(triggers)

	var calls [][]string
	err := Coalesce(t.Context(), triggers, func(_ context.Context, changed []string) error {
		calls = append(calls, changed)
		return nil
	})
	if err != nil {
		t.Fatalf("Coalesce() error = %v", err)
	}
	if len(calls) != 1 || !slices.Equal(calls[0], []string{"a.cue", "b.cue", "c.cue"}) {
		t.Errorf("calls = %v, want one burst of three ids", calls)
	}
}

func TestCoalesce_StopsOnError(t *testing.T) {
	t.Parallel()

	triggers := make(chan string, 1)
	triggers <- "a.cue"
	boom := errors.New("boom")
	err := Coalesce(t.Context(), triggers, func(context.Context, []string) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Coalesce() error = %v, want boom", err)
	}
}

func TestCoalesce_ContextDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := Coalesce(ctx, make(chan string), func(context.Context, []string) error {
		t.Error("fn called after cancel")
		return nil
	}); err != nil {
		t.Errorf("Coalesce() error = %v", err)
	}
}
