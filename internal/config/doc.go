// SPDX-License-Identifier: MPL-2.0

// Package config loads cmdtree settings with Viper, using CUE as the file
// format.
//
// Values are layered: built-in defaults, then cmdtree.cue (an explicit
// path, the user config directory, or the working directory, first match
// wins), then CMDTREE_* environment variables, then explicit overrides from
// command-line flags. The file is validated against the embedded
// config_schema.cue before it is merged.
package config
