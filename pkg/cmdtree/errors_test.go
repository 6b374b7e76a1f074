// SPDX-License-Identifier: MPL-2.0

package cmdtree

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_IsSentinel(t *testing.T) {
	t.Parallel()

	for _, kind := range Kinds() {
		err := NewError(kind, "doc.cue", "a/b", nil)
		if !errors.Is(err, kind.Sentinel()) {
			t.Errorf("%s: errors.Is(sentinel) = false", kind)
		}
		for _, other := range Kinds() {
			if other != kind && errors.Is(err, other.Sentinel()) {
				t.Errorf("%s matched sentinel of %s", kind, other)
			}
		}
	}
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	collision := NewError(PathCollision, "b.cue", "x/y", nil).WithRelated("a.cue")
	if got := collision.Error(); got != `path collision in b.cue at "x/y" (also: a.cue)` {
		t.Errorf("collision message = %q", got)
	}

	cycle := NewError(CycleDetected, "", "a", nil).WithRelated("a", "b", "a")
	if got := cycle.Error(); !strings.Contains(got, "a -> b -> a") {
		t.Errorf("cycle message = %q", got)
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := NewError(MalformedDocument, "d", "", cause)
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through errors.Is")
	}
}

func TestReloadError(t *testing.T) {
	t.Parallel()

	err := NewReloadError([]*Error{
		NewError(PathCollision, "b", "x", nil),
		NewError(DanglingReference, "c", "y", nil),
		NewError(PathCollision, "d", "z", nil),
	})

	wrapped := fmt.Errorf("reload: %w", err)
	if !errors.Is(wrapped, ErrPathCollision) || !errors.Is(wrapped, ErrDanglingReference) {
		t.Error("ReloadError should match every contained kind")
	}
	if errors.Is(wrapped, ErrCycleDetected) {
		t.Error("ReloadError matched an absent kind")
	}

	var re *ReloadError
	if !errors.As(wrapped, &re) {
		t.Fatal("errors.As(*ReloadError) failed")
	}
	kinds := re.Kinds()
	if len(kinds) != 2 || kinds[0] != PathCollision || kinds[1] != DanglingReference {
		t.Errorf("Kinds() = %v", kinds)
	}
	if got := len(Diagnostics(wrapped)); got != 3 {
		t.Errorf("Diagnostics() returned %d entries, want 3", got)
	}

	if NewReloadError(nil) != nil {
		t.Error("NewReloadError(nil) should be nil")
	}
}

func TestErrorKind_ReloadTime(t *testing.T) {
	t.Parallel()

	if UnboundExecutable.ReloadTime() {
		t.Error("UnboundExecutable must be runtime-only")
	}
	for _, k := range []ErrorKind{MalformedDocument, PathCollision, DanglingReference, CycleDetected} {
		if !k.ReloadTime() {
			t.Errorf("%s should abort reloads", k)
		}
	}
}
