// SPDX-License-Identifier: MPL-2.0

// Package live owns the published command tree and rebuilds it on reload.
//
// A reload parses every document of the source, accumulates them in a fresh
// draft, resolves aliases and redirects, attaches a snapshot of the handler
// bindings and finally swaps one pointer. Readers call Current and never
// block; they see either the previous tree or the new one in full. Reloads
// are serialized. A failed reload leaves the previous tree published.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cmdtree/cmdtree/internal/binding"
	"github.com/cmdtree/cmdtree/internal/registry"
	"github.com/cmdtree/cmdtree/internal/resolver"
	"github.com/cmdtree/cmdtree/pkg/cmddoc"
	"github.com/cmdtree/cmdtree/pkg/cmdtree"

	"golang.org/x/sync/errgroup"
)

const (
	resultSuccess  = "success"
	resultRejected = "rejected"
	resultError    = "error"
)

// ErrNoSource is returned by New when no document source is given.
var ErrNoSource = errors.New("live: no document source")

type (
	// Source supplies the complete document batch for one reload.
	Source interface {
		// Name describes the source in logs, e.g. "dir:./commands".
		Name() string
		// Load returns every current document. It is called once per reload.
		Load(ctx context.Context) ([]cmddoc.Input, error)
	}

	// Manager holds the live tree.
	Manager struct {
		source   Source
		parser   *cmddoc.Parser
		resolver *resolver.Resolver
		bindings *binding.Bindings
		logger   *slog.Logger
		metrics  *Metrics
		workers  int
		now      func() time.Time

		current atomic.Pointer[cmdtree.Tree]

		// reloadMu serializes Reload and Refresh and guards the fields below.
		reloadMu   sync.Mutex
		generation uint64
		resolved   *resolver.Result
		documents  int

		listenersMu sync.Mutex
		listeners   map[int]func(*Report)
		nextID      int
	}

	// Option configures a Manager.
	Option func(*Manager)

	// Report describes one reload or refresh attempt.
	Report struct {
		// Generation of the published tree; unchanged on failure.
		Generation uint64
		// Documents is the number of documents in the batch.
		Documents int
		// Nodes is the node count of the new tree, excluding the root.
		Nodes int
		// Digest of the new tree. Equal digests mean structurally identical trees.
		Digest string
		// Changed is false when the new tree is structurally identical to
		// the one it replaced.
		Changed bool
		// Unbound lists executable paths of the new tree without a handler.
		Unbound []string
		// Duration of the attempt.
		Duration time.Duration
		// Diagnostics of a rejected batch.
		Diagnostics []*cmdtree.Error
		// Err is nil when the tree was swapped.
		Err error
	}
)

// Result classifies the report for metrics and logs: "success", "rejected"
// when the documents are invalid, or "error" for anything else.
func (r *Report) Result() string {
	switch {
	case r.Err == nil:
		return resultSuccess
	case len(r.Diagnostics) > 0:
		return resultRejected
	default:
		return resultError
	}
}

// WithParser sets the document parser.
func WithParser(p *cmddoc.Parser) Option {
	return func(m *Manager) { m.parser = p }
}

// WithResolver sets the resolver.
func WithResolver(r *resolver.Resolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// WithBindings shares a binding table with the host. Without it the manager
// creates its own, reachable through Bindings.
func WithBindings(b *binding.Bindings) Option {
	return func(m *Manager) { m.bindings = b }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records reload outcomes.
func WithMetrics(mt *Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithParseWorkers bounds how many documents are parsed concurrently.
// Values below 1 mean GOMAXPROCS.
func WithParseWorkers(n int) Option {
	return func(m *Manager) { m.workers = n }
}

// WithClock overrides the time source used for build stamps and durations.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager publishing the empty tree until the first
// successful Reload.
func New(src Source, opts ...Option) (*Manager, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	m := &Manager{
		source:    src,
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		listeners: make(map[int]func(*Report)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.parser == nil {
		m.parser = cmddoc.NewParser()
	}
	if m.resolver == nil {
		m.resolver = resolver.New(resolver.WithLogger(m.logger))
	}
	if m.bindings == nil {
		m.bindings = binding.New()
	}
	if m.workers < 1 {
		m.workers = runtime.GOMAXPROCS(0)
	}
	m.metrics.init()
	m.current.Store(cmdtree.Empty())
	return m, nil
}

// Current returns the published tree. It never blocks and never returns nil.
func (m *Manager) Current() *cmdtree.Tree { return m.current.Load() }

// Bindings returns the handler and modifier tables used for every build.
func (m *Manager) Bindings() *binding.Bindings { return m.bindings }

// Source returns the document source.
func (m *Manager) Source() Source { return m.source }

// OnReload registers fn to be called after every reload or refresh attempt,
// successful or not. Calls happen on the reloading goroutine after the swap.
// The returned function removes the listener.
func (m *Manager) OnReload(fn func(*Report)) (cancel func()) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()
		delete(m.listeners, id)
	}
}

// Reload rebuilds the tree from the source and publishes it. On failure the
// previous tree stays live and the returned error is either a
// *cmdtree.ReloadError listing every diagnostic, a source error, or the
// context error when ctx ended before the swap.
func (m *Manager) Reload(ctx context.Context) (*Report, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	start := m.now()
	report := &Report{Generation: m.generation}

	inputs, err := m.source.Load(ctx)
	if err != nil {
		return m.finish(report, start, fmt.Errorf("load documents from %s: %w", m.source.Name(), err))
	}
	report.Documents = len(inputs)

	res, err := m.compile(ctx, inputs)
	if err != nil {
		return m.finish(report, start, err)
	}
	m.logger.Debug("documents resolved", "source", m.source.Name(), "documents", len(inputs), "aliases", len(res.Aliases))
	return m.publish(ctx, report, start, res, len(inputs))
}

// Refresh rebuilds the published structure with the current bindings
// without reading the source. Use it after changing bindings when no
// document changed. Before the first successful reload it is a Reload.
func (m *Manager) Refresh(ctx context.Context) (*Report, error) {
	m.reloadMu.Lock()
	if m.resolved == nil {
		m.reloadMu.Unlock()
		return m.Reload(ctx)
	}
	defer m.reloadMu.Unlock()

	start := m.now()
	report := &Report{Generation: m.generation, Documents: m.documents}
	return m.publish(ctx, report, start, m.resolved, m.documents)
}

// Generation returns the generation of the published tree.
func (m *Manager) Generation() uint64 { return m.Current().Generation() }

func (m *Manager) compile(ctx context.Context, inputs []cmddoc.Input) (*resolver.Result, error) {
	docs, diags, err := m.parseAll(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if len(diags) > 0 {
		return nil, cmdtree.NewReloadError(diags)
	}

	draft := registry.New()
	for _, doc := range docs {
		diags = append(diags, draft.Add(doc)...)
	}
	if len(diags) > 0 {
		return nil, cmdtree.NewReloadError(diags)
	}
	return m.resolver.Resolve(draft)
}

// parseAll parses inputs concurrently. Per-document failures are collected,
// so one malformed document never hides another. The returned documents keep
// input order.
func (m *Manager) parseAll(ctx context.Context, inputs []cmddoc.Input) ([]*cmddoc.Document, []*cmdtree.Error, error) {
	docs := make([]*cmddoc.Document, len(inputs))
	errs := make([]error, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i], errs[i] = m.parser.Parse(in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var diags []*cmdtree.Error
	seen := make(map[string]bool, len(inputs))
	for i, err := range errs {
		id := inputs[i].ID
		if seen[id] {
			diags = append(diags, cmdtree.NewError(cmdtree.MalformedDocument, id, "",
				errors.New("document id appears twice in the batch")))
			continue
		}
		seen[id] = true
		if err == nil {
			continue
		}
		var ce *cmdtree.Error
		if errors.As(err, &ce) {
			diags = append(diags, ce)
		} else {
			diags = append(diags, cmdtree.NewError(cmdtree.MalformedDocument, id, "", err))
		}
	}
	slices.SortStableFunc(diags, func(a, b *cmdtree.Error) int {
		return strings.Compare(a.Document, b.Document)
	})
	return docs, diags, nil
}

func (m *Manager) publish(ctx context.Context, report *Report, start time.Time, res *resolver.Result, documents int) (*Report, error) {
	gen := m.generation + 1
	tree, err := cmdtree.Build(res.Root,
		cmdtree.WithHandlers(m.bindings.Snapshot()),
		cmdtree.WithGeneration(gen),
		cmdtree.WithBuiltAt(start))
	if err != nil {
		return m.finish(report, start, err)
	}
	if err := ctx.Err(); err != nil {
		return m.finish(report, start, fmt.Errorf("reload abandoned before swap: %w", err))
	}

	prev := m.current.Swap(tree)
	m.generation = gen
	m.resolved = res
	m.documents = documents

	report.Generation = gen
	report.Nodes = tree.Len()
	report.Digest = tree.Digest()
	report.Changed = prev.Digest() != tree.Digest()
	report.Unbound = tree.Unbound()
	return m.finish(report, start, nil)
}

func (m *Manager) finish(report *Report, start time.Time, err error) (*Report, error) {
	report.Duration = m.now().Sub(start)
	report.Err = err
	report.Diagnostics = cmdtree.Diagnostics(err)

	switch {
	case err == nil:
		m.logger.Info("command tree published",
			"generation", report.Generation,
			"nodes", report.Nodes,
			"changed", report.Changed,
			"unbound", len(report.Unbound),
			"duration", report.Duration)
	case len(report.Diagnostics) > 0:
		for _, d := range report.Diagnostics {
			m.logger.Warn("document rejected", "kind", d.Kind, "document", d.Document, "path", d.Path, "err", d)
		}
		m.logger.Warn("reload rejected, keeping previous tree",
			"generation", report.Generation, "diagnostics", len(report.Diagnostics))
	default:
		m.logger.Error("reload failed, keeping previous tree", "generation", report.Generation, "err", err)
	}

	m.metrics.observe(report)
	m.notify(report)
	return report, err
}

func (m *Manager) notify(report *Report) {
	m.listenersMu.Lock()
	fns := make([]func(*Report), 0, len(m.listeners))
	for _, id := range slices.Sorted(maps.Keys(m.listeners)) {
		fns = append(fns, m.listeners[id])
	}
	m.listenersMu.Unlock()

	for _, fn := range fns {
		fn(report)
	}
}
