// SPDX-License-Identifier: MPL-2.0

package server

import (
	"time"

	"github.com/cmdtree/cmdtree/internal/dispatch"
	"github.com/cmdtree/cmdtree/internal/live"
	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

type (
	treeView struct {
		Generation uint64    `json:"generation"`
		Digest     string    `json:"digest"`
		BuiltAt    time.Time `json:"built_at"`
		Nodes      int       `json:"nodes"`
		Unbound    []string  `json:"unbound,omitempty"`
		Root       nodeView  `json:"root"`
	}

	nodeView struct {
		Name       string         `json:"name,omitempty"`
		Path       string         `json:"path,omitempty"`
		Kind       string         `json:"kind"`
		Type       string         `json:"type,omitempty"`
		Parameters map[string]any `json:"parameters,omitempty"`
		Level      *int           `json:"level,omitempty"`
		Executable bool           `json:"executable,omitempty"`
		// HandlerPath is set when the node runs the handler of another path.
		HandlerPath string        `json:"handler_path,omitempty"`
		Bound       bool          `json:"bound,omitempty"`
		Redirect    *redirectView `json:"redirect,omitempty"`
		Children    []nodeView    `json:"children,omitempty"`
	}

	redirectView struct {
		Target   string `json:"target"`
		Fork     bool   `json:"fork,omitempty"`
		Modifier string `json:"modifier,omitempty"`
	}

	resultView struct {
		Value      int    `json:"value"`
		Path       string `json:"path"`
		Generation uint64 `json:"generation"`
		Forked     bool   `json:"forked,omitempty"`
		Runs       int    `json:"runs"`
		Failures   int    `json:"failures,omitempty"`
	}

	reportView struct {
		Generation uint64   `json:"generation"`
		Documents  int      `json:"documents"`
		Nodes      int      `json:"nodes"`
		Digest     string   `json:"digest"`
		Changed    bool     `json:"changed"`
		Unbound    []string `json:"unbound,omitempty"`
		DurationMS float64  `json:"duration_ms"`
	}

	diagnosticView struct {
		Kind     string   `json:"kind"`
		Document string   `json:"document,omitempty"`
		Path     string   `json:"path,omitempty"`
		Related  []string `json:"related,omitempty"`
		Message  string   `json:"message"`
	}
)

func newTreeView(t *cmdtree.Tree) treeView {
	return treeView{
		Generation: t.Generation(),
		Digest:     t.Digest(),
		BuiltAt:    t.BuiltAt(),
		Nodes:      t.Len(),
		Unbound:    t.Unbound(),
		Root:       newNodeView(t.Root()),
	}
}

func newNodeView(n *cmdtree.Node) nodeView {
	v := nodeView{
		Name:       n.Name(),
		Path:       n.Path(),
		Kind:       n.Kind().String(),
		Type:       n.ArgumentType(),
		Executable: n.Executable(),
		Bound:      n.HasHandler(),
	}
	if params := n.Parameters(); len(params) > 0 {
		v.Parameters = params
	}
	if level, ok := n.Level(); ok {
		v.Level = &level
	}
	if n.Executable() && n.HandlerPath() != n.Path() {
		v.HandlerPath = n.HandlerPath()
	}
	if r := n.Redirect(); r != nil {
		v.Redirect = &redirectView{Target: r.TargetPath(), Fork: r.Fork(), Modifier: r.Modifier()}
	}
	for _, c := range n.Children() {
		v.Children = append(v.Children, newNodeView(c))
	}
	return v
}

func newResultView(r *dispatch.Result) resultView {
	return resultView{
		Value:      r.Value,
		Path:       r.Path,
		Generation: r.Generation,
		Forked:     r.Forked,
		Runs:       r.Runs,
		Failures:   r.Failures,
	}
}

func newReportView(r *live.Report) reportView {
	return reportView{
		Generation: r.Generation,
		Documents:  r.Documents,
		Nodes:      r.Nodes,
		Digest:     r.Digest,
		Changed:    r.Changed,
		Unbound:    r.Unbound,
		DurationMS: float64(r.Duration.Microseconds()) / 1000,
	}
}

func newDiagnosticViews(diags []*cmdtree.Error) []diagnosticView {
	out := make([]diagnosticView, 0, len(diags))
	for _, d := range diags {
		out = append(out, diagnosticView{
			Kind:     d.Kind.String(),
			Document: d.Document,
			Path:     d.Path,
			Related:  d.Related,
			Message:  d.Error(),
		})
	}
	return out
}
