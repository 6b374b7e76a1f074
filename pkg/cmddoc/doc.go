// SPDX-License-Identifier: MPL-2.0

// Package cmddoc parses command documents into draft command tree fragments.
//
// A document declares literal and argument nodes, aliases and redirects:
//
//	namespace: "testmod"
//	commands: {
//		json_test: arguments: {
//			literal_child: executable: true
//			integer_child: {
//				type:       "brigadier:integer"
//				parameters: {min: 0, max: 100}
//				level:      "admins"
//				executable: true
//			}
//		}
//		triple_literal: redirect: {target: "json_test/literal_child", modifier: true, forks: true}
//	}
//	aliases: alias_test: "json_test"
//
// Documents may be written in CUE, JSON, YAML or TOML; all four are validated
// against the same embedded CUE schema (schema.cue). Parsing one document
// never looks at another, so references stay as unresolved paths until the
// resolver runs over the whole batch.
package cmddoc
