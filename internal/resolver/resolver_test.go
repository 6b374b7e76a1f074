// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/cmdtree/cmdtree/internal/registry"
	"github.com/cmdtree/cmdtree/pkg/cmddoc"
	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

// draft parses docs (id -> CUE source) in id order into a fresh registry.
func draft(t *testing.T, docs map[string]string) *registry.Draft {
	t.Helper()
	d := registry.New()
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		doc, err := cmddoc.Parse(id, []byte(docs[id]))
		if err != nil {
			t.Fatalf("parse %s: %v", id, err)
		}
		if diags := d.Add(doc); len(diags) > 0 {
			t.Fatalf("add %s: %v", id, diags)
		}
	}
	return d
}

func resolveTree(t *testing.T, r *Resolver, docs map[string]string) *cmdtree.Tree {
	t.Helper()
	res, err := r.Resolve(draft(t, docs))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	tree, err := cmdtree.Build(res.Root)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return tree
}

func diagnostic(t *testing.T, err error, kind cmdtree.ErrorKind) *cmdtree.Error {
	t.Helper()
	if !errors.Is(err, kind.Sentinel()) {
		t.Fatalf("expected %s, got %v", kind, err)
	}
	for _, d := range cmdtree.Diagnostics(err) {
		if d.Kind == kind {
			return d
		}
	}
	t.Fatalf("no %s diagnostic in %v", kind, err)
	return nil
}

func TestResolve_AliasAndRedirectAcrossDocuments(t *testing.T) {
	t.Parallel()

	tree := resolveTree(t, New(), map[string]string{
		// The alias and redirect are declared before their targets are parsed.
		"a.cue": `
			namespace: "testmod"
			commands: triple_literal: redirect: {target: "json_test/literal_child", modifier: true, forks: true}
			aliases: alias_test: "json_test"
		`,
		"b.cue": `
			commands: json_test: arguments: {
				literal_child: executable: true
				integer_child: {type: "brigadier:integer", parameters: {min: 0, max: 100}, level: "admins", executable: true}
			}
		`,
	})

	want := []string{
		"alias_test", "alias_test/integer_child", "alias_test/literal_child",
		"json_test", "json_test/integer_child", "json_test/literal_child",
		"triple_literal",
	}
	if got := tree.Paths(); !slices.Equal(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}

	triple, _ := tree.Lookup("triple_literal")
	r := triple.Redirect()
	if r == nil || r.TargetPath() != "json_test/literal_child" || !r.Fork() || r.Modifier() != "testmod:triple_literal" {
		t.Errorf("redirect = %+v", r)
	}

	aliased, _ := tree.Lookup("alias_test/integer_child")
	if lvl, ok := aliased.Level(); !ok || lvl != 3 || aliased.ArgumentType() != "brigadier:integer" {
		t.Errorf("alias copy lost argument descriptor: level %d/%v type %q", lvl, ok, aliased.ArgumentType())
	}
	if aliased.HandlerPath() != "alias_test/integer_child" {
		t.Errorf("alias copy binds by %q, want its own path", aliased.HandlerPath())
	}
}

func TestResolve_AliasIndependence(t *testing.T) {
	t.Parallel()

	d := draft(t, map[string]string{
		"a.cue": `
			commands: orig: arguments: leaf: executable: "shared/handler"
			aliases: copy: "orig"
		`,
	})
	res, err := New().Resolve(d)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	orig := res.Root.Children["orig"]
	cp := res.Root.Children["copy"]
	if cp == orig || cp.Children["leaf"] == orig.Children["leaf"] {
		t.Fatal("alias shares nodes with its target")
	}
	if cp.Children["leaf"].HandlerPath != "" {
		t.Errorf("alias copy kept handler override %q", cp.Children["leaf"].HandlerPath)
	}
	if orig.Children["leaf"].HandlerPath != "shared/handler" {
		t.Error("original lost its handler override")
	}
	if res.Owners["copy/leaf"] != "a.cue" {
		t.Errorf("Owners[copy/leaf] = %q", res.Owners["copy/leaf"])
	}

	// Changing the alias copy does not reach the original.
	cp.Children["leaf"].Executable = false
	if !orig.Children["leaf"].Executable {
		t.Error("mutating the alias copy changed the original")
	}
}

func TestResolve_AliasChain(t *testing.T) {
	t.Parallel()

	tree := resolveTree(t, New(), map[string]string{
		"a.cue": `
			commands: base: arguments: x: executable: true
			aliases: {c: "b", b: "base", "base/y": "base/x"}
		`,
	})
	for _, p := range []string{"b/x", "b/y", "c/x", "c/y", "base/y"} {
		if _, ok := tree.Lookup(p); !ok {
			t.Errorf("missing %q in %v", p, tree.Paths())
		}
	}
}

func TestResolve_AliasCycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		aliases string
	}{
		{"self", `aliases: a: "a"`},
		{"mutual", `aliases: {a: "b", b: "a"}`},
		{"three", `aliases: {a: "b", b: "c", c: "a"}`},
		{"into own subtree", `commands: x: {}, aliases: "x/y": "x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New().Resolve(draft(t, map[string]string{"a.cue": tt.aliases}))
			d := diagnostic(t, err, cmdtree.CycleDetected)
			if d.Document != "a.cue" || len(d.Related) < 2 {
				t.Errorf("cycle diagnostic = %+v", d)
			}
			if d.Related[0] != d.Related[len(d.Related)-1] {
				t.Errorf("cycle should be closed, got %v", d.Related)
			}
		})
	}
}

func TestResolve_AliasDepthBound(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("commands: a0: {}\naliases: {\n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "\ta%d: \"a%d\"\n", i, i-1)
	}
	b.WriteString("}\n")
	docs := map[string]string{"chain.cue": b.String()}

	if _, err := New(WithMaxAliasDepth(5)).Resolve(draft(t, docs)); err != nil {
		t.Fatalf("chain of 5 within bound 5: %v", err)
	}

	_, err := New(WithMaxAliasDepth(3)).Resolve(draft(t, docs))
	d := diagnostic(t, err, cmdtree.CycleDetected)
	if !strings.Contains(d.Error(), "maximum depth 3") {
		t.Errorf("depth diagnostic = %v", d)
	}
}

func TestResolve_Dangling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		doc      string
		wantPath string
	}{
		{"alias target", `aliases: a: "missing"`, "a"},
		{"alias parent", `commands: t: {}, aliases: "nowhere/a": "t"`, "nowhere/a"},
		{"redirect target", `commands: r: redirect: "missing/node"`, "r"},
		{"redirect inside alias copy", `commands: t: arguments: r: redirect: "gone", aliases: u: "t"`, "t/r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New().Resolve(draft(t, map[string]string{"a.cue": tt.doc}))
			d := diagnostic(t, err, cmdtree.DanglingReference)
			if d.Path != tt.wantPath || d.Document != "a.cue" {
				t.Errorf("diagnostic = %+v", d)
			}
		})
	}
}

func TestResolve_RedirectThroughAlias(t *testing.T) {
	t.Parallel()

	tree := resolveTree(t, New(), map[string]string{
		"a.cue": `
			commands: {
				t: arguments: leaf: executable: true
				r: redirect: "u/leaf"
			}
			aliases: u: "t"
		`,
	})
	r, _ := tree.Lookup("r")
	if r.Redirect() == nil || r.Redirect().TargetPath() != "u/leaf" {
		t.Errorf("redirect = %+v", r.Redirect())
	}
}

func TestResolve_RedirectCycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"self", `commands: a: redirect: "a"`},
		{"mutual", `commands: {a: redirect: "b", b: redirect: "a"}`},
		{"three", `commands: {a: redirect: "b", b: redirect: "c", c: redirect: "a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New().Resolve(draft(t, map[string]string{"a.cue": tt.doc}))
			d := diagnostic(t, err, cmdtree.CycleDetected)
			if d.Related[0] != d.Related[len(d.Related)-1] {
				t.Errorf("cycle should be closed, got %v", d.Related)
			}
		})
	}
}

func TestResolve_RedirectToAncestorIsNotACycle(t *testing.T) {
	t.Parallel()

	tree := resolveTree(t, New(), map[string]string{
		"a.cue": `commands: execute: arguments: run: redirect: "execute"`,
	})
	run, _ := tree.Lookup("execute/run")
	if run.Redirect().Target() != tree.Root().Children()[0] {
		t.Error("redirect should point at the ancestor node")
	}
}

func TestResolve_ChainedRedirectsWithoutCycle(t *testing.T) {
	t.Parallel()

	tree := resolveTree(t, New(), map[string]string{
		"a.cue": `commands: {a: redirect: "b", b: redirect: "c", c: executable: true}`,
	})
	a, _ := tree.Lookup("a")
	if a.Redirect().Target().Redirect().TargetPath() != "c" {
		t.Error("chain a -> b -> c not preserved")
	}
}

func TestResolve_Idempotent(t *testing.T) {
	t.Parallel()

	docs := map[string]string{
		"a.cue": `commands: {x: arguments: y: executable: true, z: redirect: {target: "x/y", forks: true}}, aliases: w: "x"`,
	}
	first := resolveTree(t, New(), docs)
	second := resolveTree(t, New(), docs)
	if first.Digest() != second.Digest() {
		t.Error("resolving the same documents twice produced different trees")
	}
}

func TestResolve_DanglingMountSurfaces(t *testing.T) {
	t.Parallel()

	_, err := New().Resolve(draft(t, map[string]string{"a.cue": `mount: "ghost", commands: x: {}`}))
	diagnostic(t, err, cmdtree.DanglingReference)
}
