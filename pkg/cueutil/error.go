// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
)

type (
	// Issue is one validation failure located by a CUE path.
	Issue struct {
		// Path is the JSON-style path to the offending value
		// (e.g. "commands.json_test.arguments.integer_child.level").
		Path string
		// Message is the CUE error message with the path prefix removed.
		Message string
	}

	// DecodeError reports every issue CUE found in one source.
	DecodeError struct {
		File   string
		Issues []Issue
	}
)

// Error implements the error interface.
func (e *DecodeError) Error() string {
	lines := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path != "" {
			lines = append(lines, is.Path+": "+is.Message)
		} else {
			lines = append(lines, is.Message)
		}
	}
	if len(lines) == 1 {
		return fmt.Sprintf("%s: %s", e.File, lines[0])
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.File, strings.Join(lines, "\n  "))
}

// FirstPath returns the path of the first issue, or "".
func (e *DecodeError) FirstPath() string {
	for _, is := range e.Issues {
		if is.Path != "" {
			return is.Path
		}
	}
	return ""
}

// FormatError converts a CUE error into a *DecodeError with one Issue per
// underlying CUE error. Non-CUE errors are wrapped with the file path.
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	cueErrors := errors.Errors(err)
	if len(cueErrors) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	de := &DecodeError{File: filePath}
	seen := make(map[string]bool, len(cueErrors))
	for _, e := range cueErrors {
		pathStr := formatPath(errors.Path(e))
		msg := e.Error()

		// CUE sometimes repeats the path at the start of the message.
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimPrefix(msg, pathStr)
			msg = strings.TrimPrefix(msg, ":")
			msg = strings.TrimSpace(msg)
		}

		key := pathStr + "\x00" + msg
		if seen[key] {
			continue
		}
		seen[key] = true
		de.Issues = append(de.Issues, Issue{Path: pathStr, Message: msg})
	}
	return de
}

// formatPath converts a CUE error path (["commands", "a", "arguments", "0"])
// to JSON-path notation ("commands.a.arguments[0]").
func formatPath(path []string) string {
	var result strings.Builder
	for i, part := range path {
		isIndex := part != ""
		for _, c := range part {
			if c < '0' || c > '9' {
				isIndex = false
				break
			}
		}

		switch {
		case isIndex && i > 0:
			result.WriteString("[")
			result.WriteString(part)
			result.WriteString("]")
		default:
			if i > 0 {
				result.WriteString(".")
			}
			result.WriteString(part)
		}
	}
	return result.String()
}

// CheckFileSize verifies that data does not exceed maxSize.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes",
			filename, len(data), maxSize)
	}
	return nil
}
