// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the cmdtree command line.
//
// Every subcommand loads the configuration, builds a live manager over the
// configured document source and works on the published tree. The CLI has
// no host handlers of its own: run, watch and serve bind an echo handler to
// every executable path and a pass-through modifier to every redirect, so
// documents can be exercised end to end before a host exists.
package cmd
