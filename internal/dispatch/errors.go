// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCommand means the input matches no node at some position.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrIncompleteCommand means the input ends on a node that cannot run.
	ErrIncompleteCommand = errors.New("incomplete command")
	// ErrPermissionDenied means a matching node requires a higher level.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidArgument means an argument value failed to parse.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownArgumentType means a node names a type nobody registered.
	ErrUnknownArgumentType = errors.New("unknown argument type")
	// ErrUnknownModifier means a redirect names a modifier that is not registered.
	ErrUnknownModifier = errors.New("unknown modifier")
	// ErrRedirectCardinality means a non-forking redirect produced zero or
	// several sources.
	ErrRedirectCardinality = errors.New("redirect cardinality")
	// ErrRedirectLoop means forwarding through redirects did not reach an
	// executable node.
	ErrRedirectLoop = errors.New("redirect loop")
)

type (
	// SyntaxError locates a parse failure in the input.
	SyntaxError struct {
		// Err is one of the package sentinels.
		Err    error
		Input  string
		Cursor int
		Reason string
	}

	// ArgumentTypeError is returned when an argument node's type cannot be
	// instantiated.
	ArgumentTypeError struct {
		Path string
		Type string
		Err  error
	}

	// UnknownModifierError names the missing modifier.
	UnknownModifierError struct {
		Path     string
		Modifier string
	}

	// RedirectCardinalityError reports a non-forking redirect that did not
	// produce exactly one source.
	RedirectCardinalityError struct {
		Path     string
		Modifier string
		Got      int
	}
)

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("%s at position %d", e.Err, e.Cursor)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg + "\n" + e.Context()
}

// Context renders the input up to the cursor followed by a marker, the way
// command consoles point at the failing token.
func (e *SyntaxError) Context() string {
	cursor := min(max(e.Cursor, 0), len(e.Input))
	start := max(cursor-16, 0)
	prefix := ""
	if start > 0 {
		prefix = "..."
	}
	return prefix + e.Input[start:cursor] + "<--[HERE]"
}

func (e *SyntaxError) Unwrap() error { return e.Err }

func (e *ArgumentTypeError) Error() string {
	return fmt.Sprintf("argument %q of type %q: %v", e.Path, e.Type, e.Err)
}

func (e *ArgumentTypeError) Unwrap() error { return e.Err }

func (e *UnknownModifierError) Error() string {
	return fmt.Sprintf("redirect at %q: modifier %q is not registered", e.Path, e.Modifier)
}

func (e *UnknownModifierError) Unwrap() error { return ErrUnknownModifier }

func (e *RedirectCardinalityError) Error() string {
	return fmt.Sprintf("redirect at %q: modifier %q produced %d sources, a non-forking redirect needs exactly 1",
		e.Path, e.Modifier, e.Got)
}

func (e *RedirectCardinalityError) Unwrap() error { return ErrRedirectCardinality }
