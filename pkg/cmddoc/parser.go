// SPDX-License-Identifier: MPL-2.0

package cmddoc

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"
	"github.com/cmdtree/cmdtree/pkg/cueutil"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	schemaPath = "#Document"

	// namespaceSeparator separates a modifier's namespace from its path.
	namespaceSeparator = ":"
)

//go:embed schema.cue
var schema []byte

type (
	// Parser turns inputs into Documents. It holds no per-document state and
	// is safe for concurrent use.
	Parser struct {
		namespace   string
		maxFileSize int64
	}

	// Option configures a Parser.
	Option func(*Parser)
)

// WithDefaultNamespace sets the namespace used for documents that do not
// declare one. It qualifies modifier ids.
func WithDefaultNamespace(ns string) Option {
	return func(p *Parser) { p.namespace = ns }
}

// WithMaxFileSize limits the size of a single document.
func WithMaxFileSize(n int64) Option {
	return func(p *Parser) { p.maxFileSize = n }
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{maxFileSize: cueutil.DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses a document with default options.
func Parse(id string, data []byte) (*Document, error) {
	return NewParser().Parse(Input{ID: id, Data: data})
}

// Parse validates one document against the schema and converts it into
// draft fragments. Any failure is a *cmdtree.Error of kind MalformedDocument
// attributed to in.ID; other documents are never consulted.
func (p *Parser) Parse(in Input) (*Document, error) {
	format := in.Format
	if format == "" {
		f, err := FormatFromPath(in.ID)
		if err != nil {
			return nil, cmdtree.NewError(cmdtree.MalformedDocument, in.ID, "", err)
		}
		format = f
	}

	raw, err := p.decode(in.ID, format, in.Data)
	if err != nil {
		return nil, malformed(in.ID, err)
	}
	return p.convert(in.ID, raw)
}

func (p *Parser) decode(id string, format Format, data []byte) (*rawDocument, error) {
	opts := []cueutil.Option{cueutil.WithFilename(id), cueutil.WithMaxFileSize(p.maxFileSize)}

	switch format {
	case FormatCUE, FormatJSON:
		if len(strings.TrimSpace(string(data))) == 0 {
			return &rawDocument{}, nil
		}
		res, err := cueutil.ParseAndDecode[rawDocument](schema, data, schemaPath, opts...)
		if err != nil {
			return nil, err
		}
		return res.Value, nil

	case FormatYAML, FormatTOML:
		if err := cueutil.CheckFileSize(data, p.maxFileSize, id); err != nil {
			return nil, err
		}
		generic := make(map[string]any)
		if format == FormatYAML {
			if err := yaml.Unmarshal(data, &generic); err != nil {
				return nil, fmt.Errorf("%s: %w", id, err)
			}
		} else {
			if err := toml.Unmarshal(data, &generic); err != nil {
				return nil, fmt.Errorf("%s: %w", id, err)
			}
		}
		if generic == nil {
			generic = make(map[string]any)
		}
		res, err := cueutil.EncodeAndDecode[rawDocument](schema, generic, schemaPath, opts...)
		if err != nil {
			return nil, err
		}
		return res.Value, nil

	default:
		return nil, &UnknownFormatError{ID: id}
	}
}

func (p *Parser) convert(id string, raw *rawDocument) (*Document, error) {
	doc := &Document{
		ID:        id,
		Namespace: raw.Namespace,
		Mount:     raw.Mount,
		Commands:  make(map[string]*cmdtree.Spec, len(raw.Commands)),
	}
	if doc.Namespace == "" {
		doc.Namespace = p.namespace
	}
	if doc.Mount != "" {
		if err := cmdtree.ValidatePath(doc.Mount); err != nil {
			return nil, cmdtree.NewError(cmdtree.MalformedDocument, id, doc.Mount, err)
		}
	}

	c := converter{doc: doc}
	for _, name := range sortedKeys(raw.Commands) {
		spec, err := c.node(cmdtree.Join(doc.Mount, name), name, raw.Commands[name])
		if err != nil {
			return nil, err
		}
		doc.Commands[name] = spec
	}

	for _, aliasPath := range sortedKeys(raw.Aliases) {
		target := raw.Aliases[aliasPath]
		if err := cmdtree.ValidatePath(aliasPath); err != nil {
			return nil, cmdtree.NewError(cmdtree.MalformedDocument, id, aliasPath, err)
		}
		if err := cmdtree.ValidatePath(target); err != nil {
			return nil, cmdtree.NewError(cmdtree.MalformedDocument, id, aliasPath, fmt.Errorf("alias target: %w", err))
		}
		doc.Aliases = append(doc.Aliases, cmdtree.AliasSpec{Path: aliasPath, Target: target, Document: id})
	}

	return doc, nil
}

type converter struct {
	doc *Document
}

func (c converter) fail(path string, format string, args ...any) error {
	return cmdtree.NewError(cmdtree.MalformedDocument, c.doc.ID, path, fmt.Errorf(format, args...))
}

func (c converter) node(path, name string, raw *rawNode) (*cmdtree.Spec, error) {
	if err := cmdtree.ValidateSegment(name); err != nil {
		return nil, cmdtree.NewError(cmdtree.MalformedDocument, c.doc.ID, path, err)
	}
	if raw == nil {
		raw = &rawNode{}
	}

	spec := &cmdtree.Spec{Name: name, Kind: cmdtree.KindLiteral}
	if raw.Type != "" {
		spec.Kind = cmdtree.KindArgument
		spec.ArgumentType = raw.Type
		spec.Parameters = raw.Parameters
	} else if len(raw.Parameters) > 0 {
		return nil, c.fail(path, "parameters require an argument type")
	}

	if raw.Level != nil {
		lvl, err := ParseLevel(raw.Level)
		if err != nil {
			return nil, cmdtree.NewError(cmdtree.MalformedDocument, c.doc.ID, path, err)
		}
		v := int(lvl)
		spec.Level = &v
	}

	switch ex := raw.Executable.(type) {
	case nil:
	case bool:
		spec.Executable = ex
	case string:
		if err := cmdtree.ValidatePath(ex); err != nil {
			return nil, cmdtree.NewError(cmdtree.MalformedDocument, c.doc.ID, path, fmt.Errorf("executable: %w", err))
		}
		spec.Executable = true
		if ex != path {
			spec.HandlerPath = ex
		}
	default:
		return nil, c.fail(path, "executable must be a boolean or a path, got %T", raw.Executable)
	}

	if raw.Redirect != nil {
		r, err := c.redirect(path, raw.Redirect)
		if err != nil {
			return nil, err
		}
		spec.Redirect = r
	}

	for _, childName := range sortedKeys(raw.Arguments) {
		cs, err := c.node(cmdtree.Join(path, childName), childName, raw.Arguments[childName])
		if err != nil {
			return nil, err
		}
		spec.AddChild(cs)
	}
	return spec, nil
}

func (c converter) redirect(path string, v any) (*cmdtree.RedirectSpec, error) {
	var r cmdtree.RedirectSpec
	switch t := v.(type) {
	case string:
		r.Target = t
	case map[string]any:
		target, _ := t["target"].(string)
		r.Target = target
		if forks, ok := t["forks"]; ok {
			b, isBool := forks.(bool)
			if !isBool {
				return nil, c.fail(path, "redirect.forks must be a boolean, got %T", forks)
			}
			r.Fork = b
		}
		switch m := t["modifier"].(type) {
		case nil:
		case bool:
			if m {
				r.Modifier = c.qualify(path)
			}
		case string:
			r.Modifier = c.qualify(m)
		default:
			return nil, c.fail(path, "redirect.modifier must be a boolean or an id, got %T", m)
		}
	default:
		return nil, c.fail(path, "redirect must be a path or an object, got %T", v)
	}
	if err := cmdtree.ValidatePath(r.Target); err != nil {
		return nil, cmdtree.NewError(cmdtree.MalformedDocument, c.doc.ID, path, fmt.Errorf("redirect target: %w", err))
	}
	return &r, nil
}

// qualify prefixes a modifier id with the document namespace unless it
// already names one.
func (c converter) qualify(id string) string {
	if strings.Contains(id, namespaceSeparator) || c.doc.Namespace == "" {
		return id
	}
	return c.doc.Namespace + namespaceSeparator + id
}

// malformed converts a decoding failure into a MalformedDocument diagnostic,
// translating the schema path into a command path when it points at a node.
func malformed(id string, err error) error {
	path := ""
	var de *cueutil.DecodeError
	if errors.As(err, &de) {
		path = commandPath(de.FirstPath())
	}
	return cmdtree.NewError(cmdtree.MalformedDocument, id, path, err)
}

// commandPath maps "commands.a.arguments.b.level" to "a/b". Paths outside
// the commands tree map to "".
func commandPath(cuePath string) string {
	parts := strings.Split(cuePath, ".")
	if len(parts) < 2 || parts[0] != "commands" {
		return ""
	}
	segs := []string{parts[1]}
	for i := 2; i+1 < len(parts) && parts[i] == "arguments"; i += 2 {
		segs = append(segs, parts[i+1])
	}
	return cmdtree.Join(segs...)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
