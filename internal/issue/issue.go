// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"

	"github.com/charmbracelet/glamour"
)

// Problem classes with a Markdown explanation.
const (
	MalformedDocumentId Id = iota + 1
	PathCollisionId
	DanglingReferenceId
	CycleDetectedId
	UnboundExecutableId
	UnknownCommandId
	PermissionDeniedId
	RedirectCardinalityId
	DocumentsDirNotFoundId
	ConfigLoadFailedId
)

type (
	// Id identifies an Issue.
	Id int

	// MarkdownMsg is the Markdown body of an Issue.
	MarkdownMsg string

	// HttpLink is a documentation link shown under an Issue.
	HttpLink string

	// Issue is a long-form explanation of one problem class.
	Issue struct {
		id       Id
		name     string
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Id returns the issue id.
func (i *Issue) Id() Id { return i.id }

// Name returns the short name used by 'cmdtree explain'.
func (i *Issue) Name() string { return i.name }

// MarkdownMsg returns the unrendered explanation.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// DocLinks returns the documentation links.
func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Markdown returns the explanation with its links appended.
func (i *Issue) Markdown() string {
	var b strings.Builder
	b.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		b.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			b.WriteString("- <")
			b.WriteString(string(link))
			b.WriteString(">\n")
		}
	}
	return b.String()
}

// Render renders the explanation for a terminal. stylePath is a glamour
// style name ("dark", "light", "notty", "auto") or a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	malformedDocumentIssue = &Issue{
		id:   MalformedDocumentId,
		name: "malformed-document",
		mdMsg: `
# Malformed document

A command document could not be parsed or does not match the document schema.
Only that document is rejected, but the whole reload is abandoned and the
previous command tree stays live.

## Common causes
- A field name that the schema does not know (the schema is closed)
- ` + "`level`" + ` set to an unknown name; valid names are all, moderators,
  gamemasters, admins and owners
- A command or argument name containing whitespace or a slash
- ` + "`parameters`" + ` on a literal; only typed arguments take parameters

## Things you can try
~~~
$ cmdtree validate --documents ./commands
~~~`,
	}

	pathCollisionIssue = &Issue{
		id:   PathCollisionId,
		name: "path-collision",
		mdMsg: `
# Path collision

Two documents declare the same command path, or an alias would be
materialized where a command already exists. Definitions are never merged or
silently overwritten.

## Things you can try
- Rename one of the commands
- Move one document's commands under a different ` + "`mount`" + `
- Replace the duplicate with an alias or a redirect to the existing path`,
	}

	danglingReferenceIssue = &Issue{
		id:   DanglingReferenceId,
		name: "dangling-reference",
		mdMsg: `
# Dangling reference

A redirect target, an alias target, an alias parent or a mount point does
not exist once every document of the batch has been read. References are
resolved across documents, so the target may live in any file.

## Things you can try
- Check the spelling of the target path (segments are separated by ` + "`/`" + `)
- Make sure the document defining the target matches the configured patterns
- List the paths of the tree:
~~~
$ cmdtree tree --paths
~~~`,
	}

	cycleDetectedIssue = &Issue{
		id:   CycleDetectedId,
		name: "cycle-detected",
		mdMsg: `
# Cycle detected

Aliases are expanded by copying their target. An alias that reaches itself
(directly, through other aliases, or by pointing at its own subtree) can never
be expanded. The same applies to a chain of redirects that leads back to its
start. Very long alias chains are rejected too, see
` + "`resolver.max_alias_depth`" + `.

## Things you can try
- Break the loop by pointing one alias at the real command
- Use a redirect to an ancestor instead of an alias when a command should
  accept its own children again`,
	}

	unboundExecutableIssue = &Issue{
		id:   UnboundExecutableId,
		name: "unbound-executable",
		mdMsg: `
# Unbound executable

The command exists and is marked executable, but the host has not bound a
handler to its path. This is not a document error: bindings are made by the
program embedding cmdtree and are attached on the next reload.

## Things you can try
- Bind a handler for the path, then refresh the tree
- Use ` + "`executable: \"other/path\"`" + ` to share the handler of another path`,
	}

	unknownCommandIssue = &Issue{
		id:   UnknownCommandId,
		name: "unknown-command",
		mdMsg: `
# Unknown command

The input does not match any literal or argument at some position.

## Things you can try
~~~
$ cmdtree run --suggest "partial input"
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id:   PermissionDeniedId,
		name: "permission-denied",
		mdMsg: `
# Permission denied

A node on the input path requires a higher permission level than the source
that dispatched it.

## Things you can try
- Dispatch with a higher ` + "`--level`" + `
- Lower the node's ` + "`level`" + ` in its document`,
	}

	redirectCardinalityIssue = &Issue{
		id:   RedirectCardinalityId,
		name: "redirect-cardinality",
		mdMsg: `
# Redirect cardinality

A redirect that does not fork must continue with exactly one source, but its
modifier produced none or several.

## Things you can try
- Set ` + "`forks: true`" + ` on the redirect to run once per source
- Change the modifier to return a single source`,
	}

	documentsDirNotFoundIssue = &Issue{
		id:   DocumentsDirNotFoundId,
		name: "documents-dir-not-found",
		mdMsg: `
# Documents directory not found

The configured documents directory does not exist. cmdtree refuses to publish
an empty tree for a missing directory.

## Things you can try
~~~
$ cmdtree init ./commands
$ cmdtree validate --documents ./commands
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id:   ConfigLoadFailedId,
		name: "config-load-failed",
		mdMsg: `
# Configuration could not be loaded

The configuration file is not valid CUE or does not match the configuration
schema.

## Things you can try
~~~
$ cmdtree config show
~~~
- Environment variables such as ` + "`CMDTREE_DOCUMENTS_DIR`" + ` override file values`,
	}

	issues = map[Id]*Issue{
		malformedDocumentIssue.Id():    malformedDocumentIssue,
		pathCollisionIssue.Id():        pathCollisionIssue,
		danglingReferenceIssue.Id():    danglingReferenceIssue,
		cycleDetectedIssue.Id():        cycleDetectedIssue,
		unboundExecutableIssue.Id():    unboundExecutableIssue,
		unknownCommandIssue.Id():       unknownCommandIssue,
		permissionDeniedIssue.Id():     permissionDeniedIssue,
		redirectCardinalityIssue.Id():  redirectCardinalityIssue,
		documentsDirNotFoundIssue.Id(): documentsDirNotFoundIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
	}

	kindIssues = map[cmdtree.ErrorKind]Id{
		cmdtree.MalformedDocument: MalformedDocumentId,
		cmdtree.PathCollision:     PathCollisionId,
		cmdtree.DanglingReference: DanglingReferenceId,
		cmdtree.CycleDetected:     CycleDetectedId,
		cmdtree.UnboundExecutable: UnboundExecutableId,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, id := range slices.Sorted(maps.Keys(issues)) {
		out = append(out, issues[id])
	}
	return out
}

// Get returns the issue with the given id, or nil.
func Get(id Id) *Issue { return issues[id] }

// ForKind returns the issue explaining an error kind.
func ForKind(kind cmdtree.ErrorKind) (*Issue, bool) {
	id, ok := kindIssues[kind]
	if !ok {
		return nil, false
	}
	return issues[id], true
}

// Lookup finds an issue by its name or by an error kind name, ignoring case.
func Lookup(name string) (*Issue, bool) {
	for _, is := range issues {
		if strings.EqualFold(is.name, name) {
			return is, true
		}
	}
	for kind, id := range kindIssues {
		if strings.EqualFold(string(kind), name) {
			return issues[id], true
		}
	}
	return nil, false
}
