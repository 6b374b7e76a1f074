// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers that fail the test on error
// instead of returning it.
//
// It covers writing document trees to disk (MustWriteFile, WriteTree),
// resource cleanup (MustClose, MustStop) and a controllable clock
// (FakeClock) for code that accepts a time source.
package testutil
