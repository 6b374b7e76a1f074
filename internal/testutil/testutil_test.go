// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFakeClock(t *testing.T) {
	t.Parallel()

	initial := time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(initial)
	if got := clock.Now(); !got.Equal(initial) {
		t.Errorf("Now() = %v, want %v", got, initial)
	}
	if got := clock.Now(); !got.Equal(initial) {
		t.Errorf("Now() moved without AutoAdvance: %v", got)
	}

	clock.Advance(time.Hour)
	if got := clock.Now(); !got.Equal(initial.Add(time.Hour)) {
		t.Errorf("after Advance Now() = %v", got)
	}

	clock.AutoAdvance(5 * time.Millisecond)
	a, b := clock.Now(), clock.Now()
	if d := b.Sub(a); d != 5*time.Millisecond {
		t.Errorf("AutoAdvance step = %v, want 5ms", d)
	}

	clock.Set(initial)
	if got := clock.Now(); !got.Equal(initial) {
		t.Errorf("after Set Now() = %v", got)
	}
}

func TestFakeClock_DefaultTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := NewFakeClock(time.Time{}).Now(); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
}

func TestWriteTree(t *testing.T) {
	t.Parallel()

	root := WriteTree(t, map[string]string{
		"a.cue":        "a",
		"nested/b.cue": "b",
	})
	data, err := os.ReadFile(filepath.Join(root, "nested", "b.cue"))
	if err != nil || string(data) != "b" {
		t.Fatalf("nested file = %q, %v", data, err)
	}

	MustRemove(t, root, "a.cue")
	if _, err := os.Stat(filepath.Join(root, "a.cue")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("a.cue still present: %v", err)
	}
}

type stopCounter struct {
	calls int
	err   error
}

func (s *stopCounter) Stop() error {
	s.calls++
	return s.err
}

func TestMustStop(t *testing.T) {
	t.Parallel()

	s := &stopCounter{err: errors.New("already stopped")}
	MustStop(t, s)
	if s.calls != 1 {
		t.Errorf("Stop called %d times", s.calls)
	}
}
