// SPDX-License-Identifier: MPL-2.0

package cmdtree

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MalformedDocument means a document failed structural validation.
	MalformedDocument ErrorKind = "MalformedDocument"
	// PathCollision means two declarations claim the same canonical path.
	PathCollision ErrorKind = "PathCollision"
	// DanglingReference means an alias, redirect or mount points at a path
	// that does not exist once the whole batch is assembled.
	DanglingReference ErrorKind = "DanglingReference"
	// CycleDetected means alias expansion or a redirect chain revisits a path.
	CycleDetected ErrorKind = "CycleDetected"
	// UnboundExecutable means an executable node was invoked without a handler.
	// It is the only kind raised at dispatch time rather than reload time.
	UnboundExecutable ErrorKind = "UnboundExecutable"
)

var (
	// ErrMalformedDocument is the sentinel for MalformedDocument errors.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrPathCollision is the sentinel for PathCollision errors.
	ErrPathCollision = errors.New("path collision")
	// ErrDanglingReference is the sentinel for DanglingReference errors.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrCycleDetected is the sentinel for CycleDetected errors.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrUnboundExecutable is the sentinel for UnboundExecutable errors.
	ErrUnboundExecutable = errors.New("unbound executable")
)

type (
	// ErrorKind classifies pipeline failures.
	ErrorKind string

	// Error is one diagnostic produced by the reload pipeline or the
	// execution boundary.
	Error struct {
		// Kind classifies the failure.
		Kind ErrorKind
		// Document is the identifier of the document the failure is attributed to.
		Document string
		// Path is the command path involved, if any.
		Path string
		// Related lists other documents or paths participating in the failure:
		// the second declarer of a collision, or the members of a cycle.
		Related []string
		// Cause is the underlying error, if any.
		Cause error
	}

	// ReloadError aggregates every diagnostic of a rejected reload.
	ReloadError struct {
		Diagnostics []*Error
	}
)

// Kinds returns all error kinds in declaration order.
func Kinds() []ErrorKind {
	return []ErrorKind{MalformedDocument, PathCollision, DanglingReference, CycleDetected, UnboundExecutable}
}

// String returns the kind name.
func (k ErrorKind) String() string { return string(k) }

// Sentinel returns the errors.Is target for the kind.
func (k ErrorKind) Sentinel() error {
	switch k {
	case MalformedDocument:
		return ErrMalformedDocument
	case PathCollision:
		return ErrPathCollision
	case DanglingReference:
		return ErrDanglingReference
	case CycleDetected:
		return ErrCycleDetected
	case UnboundExecutable:
		return ErrUnboundExecutable
	default:
		return nil
	}
}

// ReloadTime reports whether the kind aborts a reload. UnboundExecutable is
// the only runtime-only kind.
func (k ErrorKind) ReloadTime() bool {
	return k != UnboundExecutable
}

// NewError builds a diagnostic.
func NewError(kind ErrorKind, document, path string, cause error) *Error {
	return &Error{Kind: kind, Document: document, Path: path, Cause: cause}
}

// WithRelated returns e with related entries appended.
func (e *Error) WithRelated(related ...string) *Error {
	e.Related = append(e.Related, related...)
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Sentinel().Error())
	if e.Document != "" {
		b.WriteString(" in ")
		b.WriteString(e.Document)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " at %q", e.Path)
	}
	if len(e.Related) > 0 {
		switch e.Kind {
		case CycleDetected:
			b.WriteString(" (")
			b.WriteString(strings.Join(e.Related, " -> "))
			b.WriteString(")")
		default:
			b.WriteString(" (also: ")
			b.WriteString(strings.Join(e.Related, ", "))
			b.WriteString(")")
		}
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// NewReloadError groups diagnostics. It returns nil when there are none so
// callers can return the result directly.
func NewReloadError(diags []*Error) error {
	if len(diags) == 0 {
		return nil
	}
	return &ReloadError{Diagnostics: diags}
}

// Error implements the error interface.
func (e *ReloadError) Error() string {
	if len(e.Diagnostics) == 1 {
		return "reload rejected: " + e.Diagnostics[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "reload rejected with %d errors:", len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		b.WriteString("\n  ")
		b.WriteString(d.Error())
	}
	return b.String()
}

// Unwrap exposes every diagnostic to errors.Is and errors.As.
func (e *ReloadError) Unwrap() []error {
	errs := make([]error, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		errs[i] = d
	}
	return errs
}

// Kinds returns the distinct kinds present, in first-seen order.
func (e *ReloadError) Kinds() []ErrorKind {
	seen := make(map[ErrorKind]bool, len(e.Diagnostics))
	var kinds []ErrorKind
	for _, d := range e.Diagnostics {
		if !seen[d.Kind] {
			seen[d.Kind] = true
			kinds = append(kinds, d.Kind)
		}
	}
	return kinds
}

// Diagnostics extracts the diagnostics carried by err, whether it is a single
// *Error or a *ReloadError.
func Diagnostics(err error) []*Error {
	var re *ReloadError
	if errors.As(err, &re) {
		return re.Diagnostics
	}
	var e *Error
	if errors.As(err, &e) {
		return []*Error{e}
	}
	return nil
}
