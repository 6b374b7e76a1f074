// SPDX-License-Identifier: MPL-2.0

package cmddoc

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

// ErrBuilderState is returned when builder calls are made in an order that
// has no meaning, such as Pop with nothing open.
var ErrBuilderState = errors.New("invalid builder call")

// Builder writes command documents programmatically.
//
//	b := cmddoc.NewBuilder("testmod")
//	b.Command("json_test").
//		Literal("literal_child").Executable().Pop().
//		Argument("integer_child", "brigadier:integer").
//		Param("min", 0).Param("max", 100).Level(cmddoc.LevelAdmins).Executable()
//	b.Command("triple_literal").Redirect("json_test/literal_child").Modifier().Forks()
//	b.Alias("alias_test", "json_test")
//	data, err := b.JSON()
//
// The first error is sticky and reported by Err, JSON, CUE and Document.
type Builder struct {
	doc   rawDocument
	stack []*rawNode
	err   error
}

// NewBuilder starts a document in the given namespace. An empty namespace
// leaves it to the parser default.
func NewBuilder(namespace string) *Builder {
	return &Builder{doc: rawDocument{Namespace: namespace}}
}

// Mount places every command of the document under path.
func (b *Builder) Mount(path string) *Builder {
	if b.err == nil {
		if err := cmdtree.ValidatePath(path); err != nil {
			b.err = err
		}
		b.doc.Mount = path
	}
	return b
}

// Command starts a new top-level literal and makes it current.
func (b *Builder) Command(name string) *Builder {
	if b.err != nil {
		return b
	}
	if err := cmdtree.ValidateSegment(name); err != nil {
		b.err = err
		return b
	}
	if b.doc.Commands == nil {
		b.doc.Commands = make(map[string]*rawNode)
	}
	if _, dup := b.doc.Commands[name]; dup {
		b.err = fmt.Errorf("%w: command %q declared twice", ErrBuilderState, name)
		return b
	}
	n := &rawNode{}
	b.doc.Commands[name] = n
	b.stack = []*rawNode{n}
	return b
}

// Literal adds a literal child to the current node and makes it current.
func (b *Builder) Literal(name string) *Builder {
	return b.child(name, "")
}

// Argument adds a typed argument child to the current node and makes it current.
func (b *Builder) Argument(name, typ string) *Builder {
	if typ == "" {
		b.setErr(fmt.Errorf("%w: argument %q needs a type", ErrBuilderState, name))
		return b
	}
	return b.child(name, typ)
}

func (b *Builder) child(name, typ string) *Builder {
	cur := b.current("add child " + name)
	if cur == nil {
		return b
	}
	if err := cmdtree.ValidateSegment(name); err != nil {
		b.err = err
		return b
	}
	if cur.Arguments == nil {
		cur.Arguments = make(map[string]*rawNode)
	}
	if _, dup := cur.Arguments[name]; dup {
		b.err = fmt.Errorf("%w: child %q declared twice", ErrBuilderState, name)
		return b
	}
	n := &rawNode{Type: typ}
	cur.Arguments[name] = n
	b.stack = append(b.stack, n)
	return b
}

// Type sets the argument type of the current node.
func (b *Builder) Type(typ string) *Builder {
	if cur := b.current("set type"); cur != nil {
		cur.Type = typ
	}
	return b
}

// Param sets an argument type parameter on the current node.
func (b *Builder) Param(key string, value any) *Builder {
	if cur := b.current("set parameter " + key); cur != nil {
		if cur.Parameters == nil {
			cur.Parameters = make(map[string]any)
		}
		cur.Parameters[key] = value
	}
	return b
}

// Level sets the required permission level of the current node.
func (b *Builder) Level(l Level) *Builder {
	if cur := b.current("set level"); cur != nil {
		if l < 0 {
			b.err = &InvalidLevelError{Value: int(l)}
			return b
		}
		cur.Level = l.encode()
	}
	return b
}

// Executable marks the current node executable under its own path.
func (b *Builder) Executable() *Builder {
	if cur := b.current("set executable"); cur != nil {
		cur.Executable = true
	}
	return b
}

// ExecutableAs marks the current node executable, bound to the handler of
// another path.
func (b *Builder) ExecutableAs(path string) *Builder {
	if cur := b.current("set executable"); cur != nil {
		cur.Executable = path
	}
	return b
}

// Redirect forwards the current node to target.
func (b *Builder) Redirect(target string) *Builder {
	if cur := b.current("set redirect"); cur != nil {
		cur.Redirect = target
	}
	return b
}

// Modifier applies the modifier registered under the current node's own path.
func (b *Builder) Modifier() *Builder {
	return b.redirectField("modifier", true)
}

// ModifierID applies the modifier registered under id.
func (b *Builder) ModifierID(id string) *Builder {
	return b.redirectField("modifier", id)
}

// Forks makes the current redirect fork over modifier results.
func (b *Builder) Forks() *Builder {
	return b.redirectField("forks", true)
}

// redirectField upgrades a string redirect to its object form and sets key.
func (b *Builder) redirectField(key string, value any) *Builder {
	cur := b.current("set redirect " + key)
	if cur == nil {
		return b
	}
	switch r := cur.Redirect.(type) {
	case string:
		cur.Redirect = map[string]any{"target": r, key: value}
	case map[string]any:
		r[key] = value
	default:
		b.err = fmt.Errorf("%w: %s requires a redirect", ErrBuilderState, key)
	}
	return b
}

// Pop makes the parent of the current node current.
func (b *Builder) Pop() *Builder {
	if b.err != nil {
		return b
	}
	if len(b.stack) == 0 {
		b.err = fmt.Errorf("%w: pop with no open node", ErrBuilderState)
		return b
	}
	b.stack = b.stack[:len(b.stack)-1]
	return b
}

// Alias declares name as a copy of the subtree at target.
func (b *Builder) Alias(name, target string) *Builder {
	if b.err != nil {
		return b
	}
	if b.doc.Aliases == nil {
		b.doc.Aliases = make(map[string]string)
	}
	if _, dup := b.doc.Aliases[name]; dup {
		b.err = fmt.Errorf("%w: alias %q declared twice", ErrBuilderState, name)
		return b
	}
	b.doc.Aliases[name] = target
	return b
}

// Err returns the first error recorded by the builder.
func (b *Builder) Err() error { return b.err }

// JSON renders the document as indented JSON.
func (b *Builder) JSON() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	data, err := json.MarshalIndent(b.doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(data, '\n'), nil
}

// CUE renders the document as formatted CUE.
func (b *Builder) CUE() ([]byte, error) {
	data, err := b.JSON()
	if err != nil {
		return nil, err
	}
	// Round-trip through JSON so omitempty shapes the output.
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	v := cuecontext.New().Encode(generic)
	if v.Err() != nil {
		return nil, fmt.Errorf("encode document: %w", v.Err())
	}
	out, err := format.Node(v.Syntax())
	if err != nil {
		return nil, fmt.Errorf("format document: %w", err)
	}
	return append(out, '\n'), nil
}

// Document parses the built document with p under the given id. A nil p
// uses default options.
func (b *Builder) Document(p *Parser, id string) (*Document, error) {
	data, err := b.JSON()
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = NewParser()
	}
	return p.Parse(Input{ID: id, Format: FormatJSON, Data: data})
}

func (b *Builder) current(op string) *rawNode {
	if b.err != nil {
		return nil
	}
	if len(b.stack) == 0 {
		b.err = fmt.Errorf("%w: %s with no open node", ErrBuilderState, op)
		return nil
	}
	return b.stack[len(b.stack)-1]
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}
