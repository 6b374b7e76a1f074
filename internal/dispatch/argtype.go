// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"

	"github.com/mitchellh/mapstructure"
)

// Built-in argument type identifiers.
const (
	TypeBool    = "brigadier:bool"
	TypeInteger = "brigadier:integer"
	TypeLong    = "brigadier:long"
	TypeFloat   = "brigadier:float"
	TypeDouble  = "brigadier:double"
	TypeString  = "brigadier:string"
)

// String argument flavours selected by the "type" parameter.
const (
	StringWord   = "word"
	StringPhrase = "phrase"
	StringGreedy = "greedy"
)

type (
	// ArgumentType parses one argument value from the reader. On error the
	// reader position is irrelevant; the dispatcher restores it.
	ArgumentType interface {
		Parse(r *Reader) (any, error)
	}

	// ArgumentTypeFunc adapts a function to ArgumentType.
	ArgumentTypeFunc func(r *Reader) (any, error)

	// Factory builds an ArgumentType from a node's parameters.
	Factory func(params map[string]any) (ArgumentType, error)

	// Types maps argument type identifiers to factories.
	Types struct {
		mu        sync.RWMutex
		factories map[string]Factory
	}

	rangeParams[T int64 | float64] struct {
		Min *T `mapstructure:"min"`
		Max *T `mapstructure:"max"`
	}

	stringParams struct {
		Type string `mapstructure:"type"`
	}

	intType struct {
		min, max int64
		bits     int
	}

	floatType struct {
		min, max float64
		bits     int
	}

	stringType struct {
		kind string
	}
)

// Parse calls f.
func (f ArgumentTypeFunc) Parse(r *Reader) (any, error) { return f(r) }

// NewTypes returns a registry holding the built-in brigadier types.
func NewTypes() *Types {
	t := &Types{factories: make(map[string]Factory)}
	t.factories[TypeBool] = newBoolType
	t.factories[TypeInteger] = intFactory(32)
	t.factories[TypeLong] = intFactory(64)
	t.factories[TypeFloat] = floatFactory(32)
	t.factories[TypeDouble] = floatFactory(64)
	t.factories[TypeString] = newStringType
	return t
}

// Register adds or replaces a factory.
func (t *Types) Register(id string, f Factory) error {
	if id == "" {
		return errors.New("argument type id is empty")
	}
	if f == nil {
		return fmt.Errorf("argument type %q: nil factory", id)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factories[id] = f
	return nil
}

// IDs lists the registered type identifiers in sorted order.
func (t *Types) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.factories))
}

// New instantiates the type of an argument node.
func (t *Types) New(n *cmdtree.Node) (ArgumentType, error) {
	t.mu.RLock()
	f, ok := t.factories[n.ArgumentType()]
	t.mu.RUnlock()
	if !ok {
		return nil, &ArgumentTypeError{Path: n.Path(), Type: n.ArgumentType(), Err: ErrUnknownArgumentType}
	}
	at, err := f(n.Parameters())
	if err != nil {
		return nil, &ArgumentTypeError{Path: n.Path(), Type: n.ArgumentType(), Err: err}
	}
	return at, nil
}

// Check instantiates every argument type of tree and returns one error per
// node that cannot be built. Such nodes never match at dispatch time.
func (t *Types) Check(tree *cmdtree.Tree) []error {
	var errs []error
	tree.Walk(func(n *cmdtree.Node) bool {
		if n.Kind() == cmdtree.KindArgument {
			if _, err := t.New(n); err != nil {
				errs = append(errs, err)
			}
		}
		return true
	})
	return errs
}

func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("parameters: %w", err)
	}
	return nil
}

func newBoolType(params map[string]any) (ArgumentType, error) {
	if err := decodeParams(params, &struct{}{}); err != nil {
		return nil, err
	}
	return ArgumentTypeFunc(func(r *Reader) (any, error) {
		tok := r.ReadUnquoted()
		switch tok {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, fmt.Errorf("expected true or false, got %q", tok)
		}
	}), nil
}

func intFactory(bits int) Factory {
	return func(params map[string]any) (ArgumentType, error) {
		lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
		if bits == 32 {
			lo, hi = math.MinInt32, math.MaxInt32
		}
		var p rangeParams[int64]
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if p.Min != nil {
			lo = *p.Min
		}
		if p.Max != nil {
			hi = *p.Max
		}
		if lo > hi {
			return nil, fmt.Errorf("min %d is greater than max %d", lo, hi)
		}
		return &intType{min: lo, max: hi, bits: bits}, nil
	}
}

func (t *intType) Parse(r *Reader) (any, error) {
	tok := r.ReadUnquoted()
	v, err := strconv.ParseInt(tok, 10, t.bits)
	if err != nil {
		return nil, fmt.Errorf("expected integer, got %q", tok)
	}
	if v < t.min {
		return nil, fmt.Errorf("integer must not be less than %d, found %d", t.min, v)
	}
	if v > t.max {
		return nil, fmt.Errorf("integer must not be more than %d, found %d", t.max, v)
	}
	if t.bits == 32 {
		return int(v), nil
	}
	return v, nil
}

func floatFactory(bits int) Factory {
	return func(params map[string]any) (ArgumentType, error) {
		lo, hi := -math.MaxFloat64, math.MaxFloat64
		if bits == 32 {
			lo, hi = -math.MaxFloat32, math.MaxFloat32
		}
		var p rangeParams[float64]
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if p.Min != nil {
			lo = *p.Min
		}
		if p.Max != nil {
			hi = *p.Max
		}
		if lo > hi {
			return nil, fmt.Errorf("min %g is greater than max %g", lo, hi)
		}
		return &floatType{min: lo, max: hi, bits: bits}, nil
	}
}

func (t *floatType) Parse(r *Reader) (any, error) {
	tok := r.ReadUnquoted()
	v, err := strconv.ParseFloat(tok, t.bits)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("expected number, got %q", tok)
	}
	if v < t.min {
		return nil, fmt.Errorf("number must not be less than %g, found %g", t.min, v)
	}
	if v > t.max {
		return nil, fmt.Errorf("number must not be more than %g, found %g", t.max, v)
	}
	if t.bits == 32 {
		return float32(v), nil
	}
	return v, nil
}

func newStringType(params map[string]any) (ArgumentType, error) {
	p := stringParams{Type: StringGreedy}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	switch p.Type {
	case StringWord, StringPhrase, StringGreedy:
		return &stringType{kind: p.Type}, nil
	default:
		return nil, fmt.Errorf("unknown string type %q (want word, phrase or greedy)", p.Type)
	}
}

func (t *stringType) Parse(r *Reader) (any, error) {
	switch t.kind {
	case StringWord:
		tok := r.ReadUnquoted()
		if tok == "" {
			return nil, errors.New("expected word")
		}
		for i := range len(tok) {
			if !isWordByte(tok[i]) {
				return nil, fmt.Errorf("invalid character %q in word", tok[i])
			}
		}
		return tok, nil
	case StringPhrase:
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		rest := r.ReadRest()
		if rest == "" {
			return nil, errors.New("expected text")
		}
		return rest, nil
	}
}

func isWordByte(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c == '_' || c == '-' || c == '.' || c == '+'
}
