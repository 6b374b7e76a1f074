// SPDX-License-Identifier: MPL-2.0

// Package server exposes the live command tree over HTTP.
//
// Routes:
//
//	GET  /healthz        liveness and the published generation
//	GET  /tree           the published tree as JSON
//	GET  /tree/{path...} one node of the published tree
//	GET  /suggest        completions for ?input= at ?level=
//	POST /dispatch       {"input": "...", "level": n} executes a command
//	POST /reload         rebuilds the tree from the document source
//	GET  /metrics        Prometheus metrics
//
// Reload and dispatch failures are answered with a JSON error body; a
// rejected reload never takes the previous tree down.
package server
