// SPDX-License-Identifier: MPL-2.0

// Package issue turns internal errors into user-facing guidance.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions for a fix. Issue holds a longer Markdown explanation per
// problem class, rendered for the terminal with glamour.
package issue
