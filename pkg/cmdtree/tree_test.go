// SPDX-License-Identifier: MPL-2.0

package cmdtree

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

// sampleSpec mirrors a small grammar: json_test with a literal and an integer
// child, plus a forking redirect onto the literal child.
func sampleSpec() *Spec {
	root := NewRootSpec()
	jsonTest := &Spec{Name: "json_test", Kind: KindLiteral}
	jsonTest.AddChild(&Spec{Name: "literal_child", Kind: KindLiteral, Executable: true})
	jsonTest.AddChild(&Spec{
		Name:         "integer_child",
		Kind:         KindArgument,
		ArgumentType: "brigadier:integer",
		Parameters:   map[string]any{"min": 0, "max": 100},
		Level:        intPtr(3),
		Executable:   true,
	})
	root.AddChild(jsonTest)
	root.AddChild(&Spec{
		Name: "triple_literal",
		Kind: KindLiteral,
		Redirect: &RedirectSpec{
			Target:   "json_test/literal_child",
			Fork:     true,
			Modifier: "testmod:triple_literal",
		},
	})
	return root
}

func TestBuild(t *testing.T) {
	t.Parallel()

	handler := HandlerFunc(func(context.Context, *Invocation) (int, error) { return 1, nil })
	lookup := func(path string) (Handler, bool) {
		if path == "json_test/literal_child" {
			return handler, true
		}
		return nil, false
	}

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tree, err := Build(sampleSpec(), WithHandlers(lookup), WithGeneration(7), WithBuiltAt(now))
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	wantPaths := []string{"json_test", "json_test/integer_child", "json_test/literal_child", "triple_literal"}
	if got := tree.Paths(); !slices.Equal(got, wantPaths) {
		t.Errorf("Paths() = %v, want %v", got, wantPaths)
	}
	if tree.Len() != 4 {
		t.Errorf("Len() = %d, want 4", tree.Len())
	}
	if tree.Generation() != 7 || !tree.BuiltAt().Equal(now) {
		t.Errorf("stamps = %d/%v", tree.Generation(), tree.BuiltAt())
	}

	lit, ok := tree.Lookup("json_test/literal_child")
	if !ok {
		t.Fatal("literal_child not indexed")
	}
	if !lit.Executable() || !lit.HasHandler() {
		t.Errorf("literal_child executable=%v handler=%v", lit.Executable(), lit.HasHandler())
	}

	intNode, _ := tree.Lookup("json_test/integer_child")
	if intNode.Kind() != KindArgument || intNode.ArgumentType() != "brigadier:integer" {
		t.Errorf("integer_child = %v %q", intNode.Kind(), intNode.ArgumentType())
	}
	if lvl, ok := intNode.Level(); !ok || lvl != 3 {
		t.Errorf("Level() = %d, %v", lvl, ok)
	}
	if intNode.Permits(2) || !intNode.Permits(4) {
		t.Error("Permits() does not honour level 3")
	}
	if intNode.HasHandler() {
		t.Error("integer_child should be unbound")
	}
	if got := tree.Unbound(); !slices.Equal(got, []string{"json_test/integer_child"}) {
		t.Errorf("Unbound() = %v", got)
	}

	triple, _ := tree.Lookup("triple_literal")
	r := triple.Redirect()
	if r == nil {
		t.Fatal("triple_literal has no redirect")
	}
	if r.Target() != lit {
		t.Error("redirect target is not the indexed literal_child node")
	}
	if !r.Fork() || r.Modifier() != "testmod:triple_literal" {
		t.Errorf("redirect fork=%v modifier=%q", r.Fork(), r.Modifier())
	}

	// Index and reachable nodes agree.
	visited := 0
	tree.Walk(func(n *Node) bool {
		if got, ok := tree.Lookup(n.Path()); !ok || got != n {
			t.Errorf("walked node %q not in index", n.Path())
		}
		visited++
		return true
	})
	if visited != tree.Len()+1 {
		t.Errorf("walked %d nodes, index has %d", visited, tree.Len()+1)
	}
}

func TestBuild_DanglingRedirect(t *testing.T) {
	t.Parallel()

	root := NewRootSpec()
	root.AddChild(&Spec{Name: "a", Kind: KindLiteral, Redirect: &RedirectSpec{Target: "missing"}})

	_, err := Build(root)
	if !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("Build() error = %v, want ErrDanglingReference", err)
	}
}

func TestBuild_DoesNotRetainDraft(t *testing.T) {
	t.Parallel()

	spec := sampleSpec()
	tree, err := Build(spec)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	spec.Children["json_test"].Children["integer_child"].Parameters["max"] = 5
	delete(spec.Children, "triple_literal")

	n, _ := tree.Lookup("json_test/integer_child")
	if v, _ := n.Param("max"); v != 100 {
		t.Errorf("tree parameter changed with draft: %v", v)
	}
	if _, ok := tree.Lookup("triple_literal"); !ok {
		t.Error("tree lost a node when the draft was edited")
	}
}

func TestDigest_IgnoresHandlersAndStamps(t *testing.T) {
	t.Parallel()

	a, err := Build(sampleSpec(), WithGeneration(1))
	if err != nil {
		t.Fatal(err)
	}
	bound := func(string) (Handler, bool) {
		return HandlerFunc(func(context.Context, *Invocation) (int, error) { return 0, nil }), true
	}
	b, err := Build(sampleSpec(), WithGeneration(2), WithHandlers(bound))
	if err != nil {
		t.Fatal(err)
	}
	if !a.StructurallyEqual(b) {
		t.Error("same draft should produce equal digests")
	}

	changed := sampleSpec()
	changed.Children["triple_literal"].Redirect.Fork = false
	c, err := Build(changed)
	if err != nil {
		t.Fatal(err)
	}
	if a.StructurallyEqual(c) {
		t.Error("changing the fork flag should change the digest")
	}
}

func TestSpecCloneForAlias(t *testing.T) {
	t.Parallel()

	orig := &Spec{Name: "a", Kind: KindLiteral, Executable: true, HandlerPath: "shared"}
	orig.AddChild(&Spec{Name: "b", Kind: KindLiteral, Executable: true, HandlerPath: "other"})

	c := orig.CloneForAlias()
	if c.HandlerPath != "" || c.Children["b"].HandlerPath != "" {
		t.Error("CloneForAlias kept handler path overrides")
	}
	if !c.Executable || !c.Children["b"].Executable {
		t.Error("CloneForAlias dropped executable flags")
	}

	c.Children["b"].Executable = false
	if !orig.Children["b"].Executable {
		t.Error("clone shares children with original")
	}

	if kept := orig.Clone(); kept.HandlerPath != "shared" {
		t.Errorf("Clone() HandlerPath = %q, want shared", kept.HandlerPath)
	}
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	tree := Empty()
	if tree.Len() != 0 || len(tree.Paths()) != 0 {
		t.Errorf("Empty() has %d nodes", tree.Len())
	}
	if !tree.Root().IsRoot() {
		t.Error("root kind mismatch")
	}
}
