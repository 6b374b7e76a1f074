// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE validation utilities.
//
// Command documents and the configuration file are both checked against
// embedded CUE schemas with the same three steps:
//
//  1. Compile the embedded schema
//  2. Compile (or encode) user data and unify with the schema definition
//  3. Validate and decode to a Go value
//
// CUE and JSON sources go through ParseAndDecode. Sources that were already
// decoded by another parser (YAML, TOML) go through EncodeAndDecode so they
// receive exactly the same validation.
//
// # Usage
//
//	//go:embed schema.cue
//	var schema []byte
//
//	result, err := cueutil.ParseAndDecode[rawDocument](
//	    schema,
//	    data,
//	    "#Document",
//	    cueutil.WithFilename("commands/core.cue"),
//	)
//	if err != nil {
//	    return nil, err // *cueutil.DecodeError with per-field issues
//	}
//	return result.Value, nil
package cueutil
