// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

type parser struct {
	types *Types
	input string
	level int
}

// descend matches the input from pos against the children of node. seg is
// the segment node belongs to and done holds the finished segments before
// it. The returned error is the one that got furthest into the input.
func (p *parser) descend(node *cmdtree.Node, pos int, needSep bool, seg *Segment, done []*Segment) ([]*Segment, error) {
	if pos == len(p.input) {
		return append(done, seg), nil
	}
	if needSep {
		if p.input[pos] != Separator {
			return nil, p.fail(ErrUnknownCommand, pos, "expected whitespace to end one argument")
		}
		pos++
		if pos == len(p.input) {
			return nil, p.fail(ErrIncompleteCommand, pos, "trailing whitespace")
		}
	}

	var best error
	keep := func(err error) {
		best = further(best, err)
	}

	for _, child := range p.candidates(node, pos) {
		if child.err != nil {
			keep(child.err)
			continue
		}
		if !child.node.Permits(p.level) {
			keep(p.fail(ErrPermissionDenied, pos, fmt.Sprintf("%q requires level %d", child.node.Path(), levelOf(child.node))))
			continue
		}

		next := &Segment{
			Nodes: append(slices.Clone(seg.Nodes), child.node),
			Args:  maps.Clone(seg.Args),
		}
		if child.node.Kind() == cmdtree.KindArgument {
			next.Args[child.node.Name()] = child.value
		}

		segs, err := p.descend(child.node, child.end, true, next, done)
		if err == nil {
			return segs, nil
		}
		keep(err)

		if r := child.node.Redirect(); r != nil && child.end < len(p.input) {
			next.Redirect = r
			segs, err := p.descend(r.Target(), child.end, true, &Segment{Args: map[string]any{}}, append(slices.Clone(done), next))
			if err == nil {
				return segs, nil
			}
			keep(err)
		}
	}

	if best == nil {
		best = p.fail(ErrUnknownCommand, pos, "")
	}
	return nil, best
}

type candidate struct {
	node  *cmdtree.Node
	value any
	end   int
	err   error
}

// candidates lists the children of node that match at pos: the literal
// named by the next token first, then every argument in name order.
func (p *parser) candidates(node *cmdtree.Node, pos int) []candidate {
	var out []candidate

	word := NewReader(p.input, pos).ReadUnquoted()
	if lit, ok := node.Child(word); ok && lit.Kind() == cmdtree.KindLiteral {
		out = append(out, candidate{node: lit, end: pos + len(word)})
	}

	for _, arg := range node.Arguments() {
		at, err := p.types.New(arg)
		if err != nil {
			out = append(out, candidate{node: arg, err: p.fail(ErrUnknownArgumentType, pos, err.Error())})
			continue
		}
		r := NewReader(p.input, pos)
		v, err := at.Parse(r)
		if err != nil {
			out = append(out, candidate{node: arg, err: p.fail(ErrInvalidArgument, pos, fmt.Sprintf("%s: %v", arg.Name(), err))})
			continue
		}
		if r.Cursor() == pos {
			out = append(out, candidate{node: arg, err: p.fail(ErrInvalidArgument, pos, arg.Name()+": expected value")})
			continue
		}
		out = append(out, candidate{node: arg, value: v, end: r.Cursor()})
	}
	return out
}

func (p *parser) fail(sentinel error, pos int, reason string) *SyntaxError {
	return &SyntaxError{Err: sentinel, Input: p.input, Cursor: pos, Reason: reason}
}

// further prefers the error positioned later in the input. On a tie the
// more specific error wins over a plain unknown command.
func further(a, b error) error {
	var sa, sb *SyntaxError
	if !errors.As(a, &sa) {
		return b
	}
	if !errors.As(b, &sb) {
		return a
	}
	if sb.Cursor > sa.Cursor || sb.Cursor == sa.Cursor && errors.Is(sa, ErrUnknownCommand) && !errors.Is(sb, ErrUnknownCommand) {
		return b
	}
	return a
}

func levelOf(n *cmdtree.Node) int {
	l, _ := n.Level()
	return l
}
