// SPDX-License-Identifier: MPL-2.0

package cmdtree

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Separator joins path segments.
const Separator = "/"

var (
	// ErrInvalidPath is the sentinel wrapped by InvalidPathError.
	ErrInvalidPath = errors.New("invalid command path")

	// ErrInvalidSegment is the sentinel wrapped by InvalidSegmentError.
	ErrInvalidSegment = errors.New("invalid path segment")
)

type (
	// InvalidPathError is returned when a command path is not canonical.
	// It wraps ErrInvalidPath for errors.Is() compatibility.
	InvalidPathError struct {
		Path   string
		Reason string
	}

	// InvalidSegmentError is returned when a single node name cannot be used
	// as a path segment.
	InvalidSegmentError struct {
		Segment string
	}
)

// Error implements the error interface.
func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid command path %q: %s", e.Path, e.Reason)
}

// Unwrap returns ErrInvalidPath for errors.Is() compatibility.
func (e *InvalidPathError) Unwrap() error { return ErrInvalidPath }

// Error implements the error interface.
func (e *InvalidSegmentError) Error() string {
	return fmt.Sprintf("invalid path segment %q (must be non-empty and contain no whitespace or %q)", e.Segment, Separator)
}

// Unwrap returns ErrInvalidSegment for errors.Is() compatibility.
func (e *InvalidSegmentError) Unwrap() error { return ErrInvalidSegment }

// Join builds a canonical path from segments. Empty segments are skipped so
// joining onto the root path ("") yields the child name alone.
func Join(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(p)
	}
	return b.String()
}

// Split returns the segments of path. The root path yields nil.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// Parent returns the path of the parent node. The parent of a top-level node
// (and of the root) is the root path "".
func Parent(path string) string {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Base returns the last segment of path.
func Base(path string) string {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return path
	}
	return path[i+1:]
}

// Depth returns the number of segments in path.
func Depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, Separator) + 1
}

// IsWithin reports whether path equals ancestor or lies underneath it.
// Every path is within the root.
func IsWithin(path, ancestor string) bool {
	if ancestor == "" || path == ancestor {
		return true
	}
	return strings.HasPrefix(path, ancestor+Separator)
}

// ValidateSegment checks that name can be used as a single path segment.
func ValidateSegment(name string) error {
	if name == "" || strings.Contains(name, Separator) || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return &InvalidSegmentError{Segment: name}
	}
	return nil
}

// ValidatePath checks that path is canonical: non-empty, no leading or
// trailing separator, and every segment valid.
func ValidatePath(path string) error {
	if path == "" {
		return &InvalidPathError{Path: path, Reason: "path is empty"}
	}
	for _, seg := range Split(path) {
		if err := ValidateSegment(seg); err != nil {
			return &InvalidPathError{Path: path, Reason: err.Error()}
		}
	}
	return nil
}
