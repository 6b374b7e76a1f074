// SPDX-License-Identifier: MPL-2.0

// Package binding holds the host-owned tables that outlive every reload: the
// handler bound to each command path and the redirect modifier registered
// under each modifier id.
//
// Bindings are keyed by path, never by node, so a binding made for a path
// that is absent from the current tree is kept and attached automatically the
// next time a tree containing that path is published. Changes never touch a
// published tree; they become visible when the Live Manager builds the next
// one from a Snapshot.
package binding

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

var (
	// ErrNilBinding is returned when Bind is called with a nil value.
	ErrNilBinding = errors.New("binding value is nil")

	// ErrInvalidModifierID is the sentinel for malformed modifier ids.
	ErrInvalidModifierID = errors.New("invalid modifier id")
)

type (
	// Registry is a concurrency-safe map from a validated key to a value.
	Registry[T any] struct {
		mu       sync.RWMutex
		entries  map[string]T
		validate func(string) error
		version  uint64
	}

	// Bindings groups the handler and modifier registries of one host.
	Bindings struct {
		handlers  *Registry[cmdtree.Handler]
		modifiers *Registry[cmdtree.Modifier]
	}

	// InvalidModifierIDError describes a modifier id that cannot be registered.
	InvalidModifierIDError struct {
		ID     string
		Reason string
	}
)

func (e *InvalidModifierIDError) Error() string {
	return fmt.Sprintf("invalid modifier id %q: %s", e.ID, e.Reason)
}

func (e *InvalidModifierIDError) Unwrap() error { return ErrInvalidModifierID }

// ValidateModifierID checks that id is non-empty and free of whitespace.
// Ids are usually "namespace:path" but any other opaque form is accepted.
func ValidateModifierID(id string) error {
	if id == "" {
		return &InvalidModifierIDError{ID: id, Reason: "id is empty"}
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return &InvalidModifierIDError{ID: id, Reason: "id contains whitespace"}
	}
	return nil
}

// NewRegistry creates an empty registry whose keys are checked by validate.
// A nil validate accepts every key.
func NewRegistry[T any](validate func(string) error) *Registry[T] {
	return &Registry[T]{
		entries:  make(map[string]T),
		validate: validate,
	}
}

// Bind associates value with key, replacing any previous value.
func (r *Registry[T]) Bind(key string, value T) error {
	if r.validate != nil {
		if err := r.validate(key); err != nil {
			return err
		}
	}
	if isNil(value) {
		return fmt.Errorf("bind %q: %w", key, ErrNilBinding)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
	r.version++
	return nil
}

// Unbind removes the value for key and reports whether one was present.
// Unbinding an absent key is a no-op.
func (r *Registry[T]) Unbind(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	r.version++
	return true
}

// Lookup returns the value bound to key.
func (r *Registry[T]) Lookup(key string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Keys returns all bound keys in sorted order.
func (r *Registry[T]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.entries))
}

// Len returns the number of bindings.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Version increases every time the registry changes.
func (r *Registry[T]) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Snapshot returns a lookup over a private copy of the current bindings.
// Later Bind and Unbind calls do not affect it.
func (r *Registry[T]) Snapshot() func(string) (T, bool) {
	r.mu.RLock()
	frozen := maps.Clone(r.entries)
	r.mu.RUnlock()

	return func(key string) (T, bool) {
		v, ok := frozen[key]
		return v, ok
	}
}

// New creates empty Bindings.
func New() *Bindings {
	return &Bindings{
		handlers:  NewRegistry[cmdtree.Handler](cmdtree.ValidatePath),
		modifiers: NewRegistry[cmdtree.Modifier](ValidateModifierID),
	}
}

// Bind binds h to a command path. The path does not need to exist in any tree.
func (b *Bindings) Bind(path string, h cmdtree.Handler) error { return b.handlers.Bind(path, h) }

// BindFunc is Bind for a plain function.
func (b *Bindings) BindFunc(path string, fn func(ctx context.Context, inv *cmdtree.Invocation) (int, error)) error {
	return b.handlers.Bind(path, cmdtree.HandlerFunc(fn))
}

// Unbind removes the handler bound to path.
func (b *Bindings) Unbind(path string) bool { return b.handlers.Unbind(path) }

// Lookup returns the handler currently bound to path.
func (b *Bindings) Lookup(path string) (cmdtree.Handler, bool) { return b.handlers.Lookup(path) }

// Paths lists every bound path, including paths absent from the live tree.
func (b *Bindings) Paths() []string { return b.handlers.Keys() }

// Handlers exposes the handler registry.
func (b *Bindings) Handlers() *Registry[cmdtree.Handler] { return b.handlers }

// RegisterModifier registers m under id.
func (b *Bindings) RegisterModifier(id string, m cmdtree.Modifier) error {
	return b.modifiers.Bind(id, m)
}

// UnregisterModifier removes the modifier registered under id.
func (b *Bindings) UnregisterModifier(id string) bool { return b.modifiers.Unbind(id) }

// Modifier returns the modifier registered under id.
func (b *Bindings) Modifier(id string) (cmdtree.Modifier, bool) { return b.modifiers.Lookup(id) }

// Modifiers exposes the modifier registry.
func (b *Bindings) Modifiers() *Registry[cmdtree.Modifier] { return b.modifiers }

// Snapshot freezes the handler table for one tree build.
func (b *Bindings) Snapshot() cmdtree.HandlerLookup {
	return cmdtree.HandlerLookup(b.handlers.Snapshot())
}

// Version combines the versions of both registries so callers can tell
// whether anything changed since a tree was built.
func (b *Bindings) Version() uint64 {
	return b.handlers.Version() + b.modifiers.Version()
}

// isNil reports whether v is a nil interface or a nil func adapter.
func isNil[T any](v T) bool {
	switch x := any(v).(type) {
	case nil:
		return true
	case cmdtree.HandlerFunc:
		return x == nil
	case cmdtree.ModifierFunc:
		return x == nil
	default:
		return false
	}
}
