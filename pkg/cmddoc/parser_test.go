// SPDX-License-Identifier: MPL-2.0

package cmddoc

import (
	"errors"
	"slices"
	"testing"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

const sampleCUE = `
namespace: "testmod"
commands: {
	json_test: arguments: {
		literal_child: executable: true
		integer_child: {
			type:       "brigadier:integer"
			parameters: {min: 0, max: 100}
			level:      "admins"
			executable: true
		}
	}
	triple_literal: redirect: {target: "json_test/literal_child", modifier: true, forks: true}
	short: redirect: "json_test"
	shared: executable: "json_test/literal_child"
}
aliases: alias_test: "json_test"
`

func TestParse_CUE(t *testing.T) {
	t.Parallel()

	doc, err := Parse("core.cue", []byte(sampleCUE))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if doc.Namespace != "testmod" {
		t.Errorf("Namespace = %q", doc.Namespace)
	}
	wantNames := []string{"json_test", "shared", "short", "triple_literal"}
	if got := doc.Names(); !slices.Equal(got, wantNames) {
		t.Errorf("Names() = %v, want %v", got, wantNames)
	}

	jsonTest := doc.Commands["json_test"]
	if jsonTest.Kind != cmdtree.KindLiteral || jsonTest.Executable {
		t.Errorf("json_test = %+v", jsonTest)
	}
	ic := jsonTest.Children["integer_child"]
	if ic.Kind != cmdtree.KindArgument || ic.ArgumentType != "brigadier:integer" {
		t.Errorf("integer_child kind/type = %v/%q", ic.Kind, ic.ArgumentType)
	}
	if ic.Level == nil || *ic.Level != int(LevelAdmins) {
		t.Errorf("integer_child level = %v", ic.Level)
	}
	if len(ic.Parameters) != 2 {
		t.Errorf("integer_child parameters = %v", ic.Parameters)
	}

	tr := doc.Commands["triple_literal"].Redirect
	if tr == nil || tr.Target != "json_test/literal_child" || !tr.Fork || tr.Modifier != "testmod:triple_literal" {
		t.Errorf("triple_literal redirect = %+v", tr)
	}
	short := doc.Commands["short"].Redirect
	if short == nil || short.Target != "json_test" || short.Fork || short.Modifier != "" {
		t.Errorf("short redirect = %+v", short)
	}

	shared := doc.Commands["shared"]
	if !shared.Executable || shared.HandlerPath != "json_test/literal_child" {
		t.Errorf("shared = executable %v handler %q", shared.Executable, shared.HandlerPath)
	}

	if len(doc.Aliases) != 1 || doc.Aliases[0] != (cmdtree.AliasSpec{Path: "alias_test", Target: "json_test", Document: "core.cue"}) {
		t.Errorf("Aliases = %+v", doc.Aliases)
	}

	wantPaths := []string{
		"json_test", "json_test/integer_child", "json_test/literal_child",
		"shared", "short", "triple_literal",
	}
	if got := doc.Paths(); !slices.Equal(got, wantPaths) {
		t.Errorf("Paths() = %v, want %v", got, wantPaths)
	}
	if got := doc.Redirects(); len(got) != 2 {
		t.Errorf("Redirects() = %v", got)
	}
}

func TestParse_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		data string
	}{
		{"a.json", `{"commands": {"a": {"arguments": {"n": {"type": "brigadier:integer", "level": 2, "executable": true}}}}}`},
		{"a.yaml", "commands:\n  a:\n    arguments:\n      n:\n        type: brigadier:integer\n        level: 2\n        executable: true\n"},
		{"a.yml", "commands:\n  a:\n    arguments:\n      n:\n        type: brigadier:integer\n        level: gamemasters\n        executable: true\n"},
		{"a.toml", "[commands.a.arguments.n]\ntype = \"brigadier:integer\"\nlevel = 2\nexecutable = true\n"},
		{"a.cue", `commands: a: arguments: n: {type: "brigadier:integer", level: 2, executable: true}`},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()

			doc, err := Parse(tt.id, []byte(tt.data))
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			n := doc.Commands["a"].Children["n"]
			if n == nil {
				t.Fatal("a/n missing")
			}
			if n.Kind != cmdtree.KindArgument || !n.Executable || n.Level == nil || *n.Level != 2 {
				t.Errorf("a/n = %+v", n)
			}
		})
	}
}

func TestParse_Mount(t *testing.T) {
	t.Parallel()

	doc, err := Parse("ext.cue", []byte(`mount: "json_test", commands: extra: executable: true`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if doc.Mount != "json_test" {
		t.Errorf("Mount = %q", doc.Mount)
	}
	if got := doc.Paths(); !slices.Equal(got, []string{"json_test/extra"}) {
		t.Errorf("Paths() = %v", got)
	}
}

func TestParse_DefaultNamespace(t *testing.T) {
	t.Parallel()

	p := NewParser(WithDefaultNamespace("host"))
	doc, err := p.Parse(Input{
		ID:   "a.cue",
		Data: []byte(`commands: a: redirect: {target: "b", modifier: "fan_out"}, commands: b: {}`),
	})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := doc.Commands["a"].Redirect.Modifier; got != "host:fan_out" {
		t.Errorf("Modifier = %q, want host:fan_out", got)
	}

	doc, err = p.Parse(Input{
		ID:   "b.cue",
		Data: []byte(`commands: a: redirect: {target: "b", modifier: "other:fan_out"}`),
	})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := doc.Commands["a"].Redirect.Modifier; got != "other:fan_out" {
		t.Errorf("qualified Modifier = %q", got)
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		id       string
		data     string
		wantPath string
	}{
		{"unknown field", "a.cue", `commands: a: bogus: 1`, "a"},
		{"unknown level name", "a.cue", `commands: a: arguments: b: level: "kings"`, ""},
		{"negative level", "a.json", `{"commands": {"a": {"level": -1}}}`, ""},
		{"executable wrong shape", "a.cue", `commands: a: executable: 3`, ""},
		{"redirect without target", "a.cue", `commands: a: redirect: {forks: true}`, ""},
		{"segment with separator", "a.json", `{"commands": {"a/b": {}}}`, ""},
		{"segment with space", "a.cue", `commands: "a b": {}`, ""},
		{"parameters on literal", "a.cue", `commands: a: parameters: {min: 1}`, "a"},
		{"unknown top-level", "a.yaml", "extra: 1\n", ""},
		{"yaml syntax", "a.yaml", "commands: [\n", ""},
		{"toml syntax", "a.toml", "[commands\n", ""},
		{"unknown extension", "a.txt", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tt.id, []byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, cmdtree.ErrMalformedDocument) {
				t.Fatalf("error should be MalformedDocument, got %v", err)
			}
			var ce *cmdtree.Error
			if !errors.As(err, &ce) {
				t.Fatalf("expected *cmdtree.Error, got %T", err)
			}
			if ce.Document != tt.id {
				t.Errorf("Document = %q, want %q", ce.Document, tt.id)
			}
			if tt.wantPath != "" && ce.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q (err: %v)", ce.Path, tt.wantPath, err)
			}
		})
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"e.cue", "e.json", "e.yaml", "e.toml"} {
		doc, err := Parse(id, nil)
		if err != nil {
			t.Errorf("%s: Parse() error: %v", id, err)
			continue
		}
		if len(doc.Commands) != 0 || len(doc.Aliases) != 0 {
			t.Errorf("%s: expected empty document", id)
		}
	}
}

func TestParse_ArgumentTypeNotValidated(t *testing.T) {
	t.Parallel()

	doc, err := Parse("a.cue", []byte(`commands: a: {type: "host:never_registered", parameters: {anything: [1, 2]}}`))
	if err != nil {
		t.Fatalf("unknown argument types must parse, got %v", err)
	}
	if doc.Commands["a"].ArgumentType != "host:never_registered" {
		t.Errorf("ArgumentType = %q", doc.Commands["a"].ArgumentType)
	}
}

func TestCommandPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"commands.a":                         "a",
		"commands.a.level":                   "a",
		"commands.a.arguments.b.redirect":    "a/b",
		"commands.a.arguments.b.arguments.c": "a/b/c",
		"aliases.x":                          "",
		"":                                   "",
	}
	for in, want := range tests {
		if got := commandPath(in); got != want {
			t.Errorf("commandPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      any
		want    Level
		wantErr bool
	}{
		{"all", LevelAll, false},
		{"moderators", LevelModerators, false},
		{"gamemasters", LevelGamemasters, false},
		{"admins", LevelAdmins, false},
		{"owners", LevelOwners, false},
		{7, 7, false},
		{int64(2), 2, false},
		{float64(3), 3, false},
		{"kings", 0, true},
		{-1, 0, true},
		{1.5, 0, true},
		{true, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidLevel) {
			t.Errorf("ParseLevel(%v) error does not wrap ErrInvalidLevel", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if LevelAdmins.String() != "admins" || Level(9).String() != "9" {
		t.Errorf("String() = %q / %q", LevelAdmins.String(), Level(9).String())
	}
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	for id, want := range map[string]Format{
		"a/b.cue": FormatCUE, "x.JSON": FormatJSON, "c.yml": FormatYAML, "d.yaml": FormatYAML, "e.toml": FormatTOML,
	} {
		got, err := FormatFromPath(id)
		if err != nil || got != want {
			t.Errorf("FormatFromPath(%q) = %q, %v", id, got, err)
		}
	}
	if _, err := FormatFromPath("noext"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}
