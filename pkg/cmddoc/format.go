// SPDX-License-Identifier: MPL-2.0

package cmddoc

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	// FormatCUE is a CUE document.
	FormatCUE Format = "cue"
	// FormatJSON is a JSON document.
	FormatJSON Format = "json"
	// FormatYAML is a YAML document.
	FormatYAML Format = "yaml"
	// FormatTOML is a TOML document.
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is the sentinel wrapped by UnknownFormatError.
var ErrUnknownFormat = errors.New("unknown document format")

type (
	// Format is the serialization a document is written in.
	Format string

	// UnknownFormatError is returned when a document's format cannot be
	// determined from its identifier.
	UnknownFormatError struct {
		ID string
	}
)

// Error implements the error interface.
func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("cannot determine format of %q (supported extensions: .cue, .json, .yaml, .yml, .toml)", e.ID)
}

// Unwrap returns ErrUnknownFormat for errors.Is() compatibility.
func (e *UnknownFormatError) Unwrap() error { return ErrUnknownFormat }

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatCUE, FormatJSON, FormatYAML, FormatTOML}
}

// Extensions returns the file extensions recognized by FormatFromPath.
func Extensions() []string {
	return []string{".cue", ".json", ".yaml", ".yml", ".toml"}
}

// FormatFromPath derives the format from a document identifier's extension.
func FormatFromPath(id string) (Format, error) {
	switch strings.ToLower(path.Ext(id)) {
	case ".cue":
		return FormatCUE, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", &UnknownFormatError{ID: id}
	}
}

// IsValid reports whether f is a supported format.
func (f Format) IsValid() bool {
	switch f {
	case FormatCUE, FormatJSON, FormatYAML, FormatTOML:
		return true
	default:
		return false
	}
}

// String returns the format name.
func (f Format) String() string { return string(f) }
