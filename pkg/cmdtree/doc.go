// SPDX-License-Identifier: MPL-2.0

// Package cmdtree defines the command tree model shared by every stage of the
// reload pipeline.
//
// Two representations live here:
//
//   - Spec is the mutable draft form produced by document parsing and edited by
//     the registry and resolver while a reload is being assembled.
//   - Node and Tree are the immutable, fully resolved form published by the live
//     manager. Once Build returns a Tree, nothing in it changes.
//
// Nodes are addressed by canonical slash-separated paths ("json_test/literal_child").
// The root has the empty path. Paths are the cross-reference key for aliases,
// redirects and handler bindings.
//
// # Errors
//
// Reload failures are reported as *Error values carrying an ErrorKind. Several
// diagnostics from one reload are grouped in a *ReloadError. Both support
// errors.Is against the kind sentinels:
//
//	if errors.Is(err, cmdtree.ErrPathCollision) {
//	    // two documents declared the same path
//	}
package cmdtree
