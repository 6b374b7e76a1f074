// SPDX-License-Identifier: MPL-2.0

// Package dispatch parses command input against the live tree and runs the
// bound handlers.
//
// Input is matched node by node, separated by single spaces. At every node
// literal children are tried before argument children; an argument child
// matches when its type parses a value. When a later token fails to match,
// the next alternative is tried, so the first complete match in that order
// wins. A node carrying a redirect continues matching at the redirect target
// when more input follows, and forwards execution to it when the input ends
// on the redirect node itself.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

// maxForwards bounds how many redirects execution may follow once the
// input has been consumed.
const maxForwards = 64

type (
	// TreeSource supplies the tree each dispatch runs against. The live
	// manager implements it.
	TreeSource interface {
		Current() *cmdtree.Tree
	}

	// Modifiers resolves redirect modifier ids. The binding table
	// implements it.
	Modifiers interface {
		Modifier(id string) (cmdtree.Modifier, bool)
	}

	// Level is the simplest Source: a bare permission level.
	Level int

	// Dispatcher executes command input. It is safe for concurrent use.
	Dispatcher struct {
		trees     TreeSource
		modifiers Modifiers
		types     *Types
		logger    *slog.Logger
		metrics   *Metrics
		now       func() time.Time
	}

	// Option configures a Dispatcher.
	Option func(*Dispatcher)

	// Segment is the part of a parse between two redirects.
	Segment struct {
		// Nodes are the matched nodes in input order.
		Nodes []*cmdtree.Node
		// Args holds the parsed argument values of this segment.
		Args map[string]any
		// Redirect is set when matching continued at a redirect target.
		Redirect *cmdtree.Redirect
	}

	// Parse is the result of matching input against a tree.
	Parse struct {
		Input    string
		Tree     *cmdtree.Tree
		Segments []*Segment
	}

	// Result describes one execution.
	Result struct {
		// Value is the handler result; for forked execution the sum over
		// successful runs.
		Value int
		// Path is the path of the executed node.
		Path string
		// Generation of the tree the input ran against.
		Generation uint64
		// Forked is true when a forking redirect was passed.
		Forked bool
		// Runs is the number of handler invocations.
		Runs int
		// Failures counts failed invocations of a forked execution.
		Failures int
	}

	fixedTree struct{ tree *cmdtree.Tree }
)

// PermissionLevel implements cmdtree.Source.
func (l Level) PermissionLevel() int { return int(l) }

// Fixed returns a TreeSource that always yields tree.
func Fixed(tree *cmdtree.Tree) TreeSource { return fixedTree{tree: tree} }

func (f fixedTree) Current() *cmdtree.Tree { return f.tree }

// WithModifiers sets the modifier lookup. Without it every redirect that
// names a modifier fails with ErrUnknownModifier.
func WithModifiers(m Modifiers) Option {
	return func(d *Dispatcher) { d.modifiers = m }
}

// WithTypes replaces the built-in argument types.
func WithTypes(t *Types) Option {
	return func(d *Dispatcher) { d.types = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records dispatch outcomes.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a Dispatcher reading trees from trees.
func New(trees TreeSource, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		trees:  trees,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.types == nil {
		d.types = NewTypes()
	}
	return d
}

// Types returns the argument type registry.
func (d *Dispatcher) Types() *Types { return d.types }

// Node returns the node the parse ended on.
func (p *Parse) Node() *cmdtree.Node {
	last := p.Segments[len(p.Segments)-1]
	return last.Nodes[len(last.Nodes)-1]
}

// Args merges the arguments of every segment; later segments win.
func (p *Parse) Args() map[string]any {
	out := make(map[string]any)
	for _, s := range p.Segments {
		maps.Copy(out, s.Args)
	}
	return out
}

// Parse matches input against tree as seen by src.
func (d *Dispatcher) Parse(tree *cmdtree.Tree, src cmdtree.Source, input string) (*Parse, error) {
	if input == "" {
		return nil, &SyntaxError{Err: ErrUnknownCommand, Input: input, Reason: "empty input"}
	}
	p := &parser{types: d.types, input: input, level: src.PermissionLevel()}
	segs, err := p.descend(tree.Root(), 0, false, &Segment{Args: map[string]any{}}, nil)
	if err != nil {
		return nil, err
	}
	return &Parse{Input: input, Tree: tree, Segments: segs}, nil
}

// Execute parses input against the current tree and runs it.
func (d *Dispatcher) Execute(ctx context.Context, src cmdtree.Source, input string) (*Result, error) {
	start := d.now()
	tree := d.trees.Current()
	res, err := d.execute(ctx, tree, src, input)
	d.metrics.observe(err, d.now().Sub(start))
	if err != nil {
		d.logger.Debug("dispatch failed", "input", input, "generation", tree.Generation(), "err", err)
	} else {
		d.logger.Debug("dispatched", "input", input, "path", res.Path, "value", res.Value, "runs", res.Runs)
	}
	return res, err
}

func (d *Dispatcher) execute(ctx context.Context, tree *cmdtree.Tree, src cmdtree.Source, input string) (*Result, error) {
	parse, err := d.Parse(tree, src, input)
	if err != nil {
		return nil, err
	}
	res := &Result{Generation: tree.Generation()}

	sources := []cmdtree.Source{src}
	last := len(parse.Segments) - 1
	for _, seg := range parse.Segments[:last] {
		origin := seg.Nodes[len(seg.Nodes)-1]
		sources, err = d.redirect(ctx, origin, seg.Redirect, seg.Args, input, sources, res)
		if err != nil {
			return nil, err
		}
	}

	final := parse.Segments[last]
	node := final.Nodes[len(final.Nodes)-1]
	args := final.Args
	for hops := 0; !node.Executable() && node.Redirect() != nil; hops++ {
		if hops >= maxForwards {
			return nil, fmt.Errorf("%w: %q forwards more than %d times", ErrRedirectLoop, node.Path(), maxForwards)
		}
		sources, err = d.redirect(ctx, node, node.Redirect(), args, input, sources, res)
		if err != nil {
			return nil, err
		}
		node = node.Redirect().Target()
		args = map[string]any{}
	}

	if !node.Executable() {
		return nil, &SyntaxError{Err: ErrIncompleteCommand, Input: input, Cursor: len(input),
			Reason: fmt.Sprintf("%q is not executable", node.Path())}
	}
	if !node.HasHandler() {
		return nil, cmdtree.NewError(cmdtree.UnboundExecutable, "", node.Path(),
			fmt.Errorf("no handler bound to %q", node.HandlerPath()))
	}

	res.Path = node.Path()
	return res, d.run(ctx, node, args, input, sources, res)
}

// redirect applies the modifier of r to every source. A forking redirect
// marks the execution as forked: later failures of single sources are
// tolerated.
func (d *Dispatcher) redirect(ctx context.Context, origin *cmdtree.Node, r *cmdtree.Redirect, args map[string]any,
	input string, sources []cmdtree.Source, res *Result,
) ([]cmdtree.Source, error) {
	if r.Fork() {
		res.Forked = true
	}
	if r.Modifier() == "" {
		return sources, nil
	}
	var mod cmdtree.Modifier
	ok := false
	if d.modifiers != nil {
		mod, ok = d.modifiers.Modifier(r.Modifier())
	}
	if !ok {
		return nil, &UnknownModifierError{Path: origin.Path(), Modifier: r.Modifier()}
	}

	var out []cmdtree.Source
	var errs []error
	for _, src := range sources {
		derived, err := mod.Modify(ctx, &cmdtree.Invocation{Source: src, Input: input, Path: origin.Path(), Args: args})
		if err != nil {
			if !res.Forked {
				return nil, fmt.Errorf("redirect at %q: modifier %q: %w", origin.Path(), r.Modifier(), err)
			}
			errs = append(errs, err)
			continue
		}
		if !r.Fork() && len(derived) != 1 {
			return nil, &RedirectCardinalityError{Path: origin.Path(), Modifier: r.Modifier(), Got: len(derived)}
		}
		out = append(out, derived...)
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// run executes node once per source. Unforked execution has exactly one
// source and returns its outcome. Forked execution succeeds when at least
// one run succeeds, or when no source is left.
func (d *Dispatcher) run(ctx context.Context, node *cmdtree.Node, args map[string]any, input string,
	sources []cmdtree.Source, res *Result,
) error {
	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Runs++
		v, err := node.Handler().Run(ctx, &cmdtree.Invocation{
			Source: src,
			Input:  input,
			Path:   node.Path(),
			Args:   maps.Clone(args),
		})
		if err != nil {
			if !res.Forked {
				return err
			}
			res.Failures++
			errs = append(errs, err)
			d.logger.Debug("forked run failed", "path", node.Path(), "err", err)
			continue
		}
		res.Value += v
	}
	if res.Forked && res.Failures > 0 && res.Failures == res.Runs {
		return errors.Join(errs...)
	}
	return nil
}
