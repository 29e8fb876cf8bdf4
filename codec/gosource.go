package codec

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/fatturatools/modello"
)

// ErrFormatterUnavailable signals that the external pretty-printer (gofmt)
// cannot be found. It is non-fatal: Write falls back to the unformatted
// single-expression output.
var ErrFormatterUnavailable = errors.New("codec: gofmt is not available")

// GoSource renders a Model as a constructor expression reproducing its
// values, e.g.
//
//	fattura.DettaglioLinee{numero_linea: 1, quantita: "10.00"}
//
// Loadable output is guaranteed to parse back into an equal Model via
// go/parser and the registry; it skips the external formatter so the round
// trip never depends on the host toolchain. Non-loadable output may be piped
// through gofmt unless the Unformatted flag is set.
type GoSource struct {
	reg         *modello.Registry
	namespace   string
	unformatted bool
	loadable    bool
	logger      hclog.Logger
}

// NewGoSource builds the source-expression codec over a schema registry.
func NewGoSource(reg *modello.Registry) *GoSource {
	return &GoSource{reg: reg, logger: hclog.NewNullLogger()}
}

// WithNamespace returns a copy prefixing constructor names with ns.
func (c *GoSource) WithNamespace(ns string) *GoSource {
	c2 := *c
	c2.namespace = ns
	return &c2
}

// Unformatted returns a copy that never invokes the external formatter.
func (c *GoSource) Unformatted() *GoSource {
	c2 := *c
	c2.unformatted = true
	return &c2
}

// Loadable returns a copy producing round-trip-capable output.
func (c *GoSource) Loadable() *GoSource {
	c2 := *c
	c2.loadable = true
	return &c2
}

// WithLogger returns a copy logging formatter fallbacks to l.
func (c *GoSource) WithLogger(l hclog.Logger) *GoSource {
	c2 := *c
	c2.logger = l
	return &c2
}

func (c *GoSource) Binary() bool         { return false }
func (c *GoSource) Extensions() []string { return []string{"go"} }

func (c *GoSource) Write(m *modello.Model, w io.Writer) error {
	src := c.renderModel(m)
	if !c.loadable && !c.unformatted {
		formatted, err := gofmtExpr(src)
		switch {
		case err == nil:
			src = formatted
		case errors.Is(err, ErrFormatterUnavailable):
			c.logger.Debug("gofmt unavailable, writing unformatted source")
		default:
			c.logger.Warn("gofmt failed, writing unformatted source", "error", err)
		}
	}
	_, err := io.WriteString(w, src+"\n")
	return err
}

func (c *GoSource) renderModel(m *modello.Model) string {
	name := m.Schema().Name()
	if c.namespace != "" {
		name = c.namespace + "." + name
	}
	var parts []string
	for _, f := range m.Schema().Fields() {
		v := m.Get(f.Name())
		if !f.HasValue(v) {
			continue
		}
		parts = append(parts, f.Name()+": "+c.renderValue(f, v))
	}
	return name + "{" + strings.Join(parts, ", ") + "}"
}

func (c *GoSource) renderValue(f modello.Field, v any) string {
	switch f.Kind() {
	case modello.KindModel:
		return c.renderModel(v.(*modello.Model))
	case modello.KindList:
		elem := f.Elem()
		items := v.([]any)
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if !elem.HasValue(item) {
				parts = append(parts, "nil")
				continue
			}
			parts = append(parts, c.renderValue(elem, item))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case modello.KindInteger:
		return f.Text(v)
	default:
		return strconv.Quote(f.Text(v))
	}
}

func (c *GoSource) Load(r io.Reader) (*modello.Model, modello.Issues, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	expr, err := parser.ParseExpr(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, nil, &modello.ParseError{Message: "invalid source expression: " + err.Error()}
	}
	m, err := c.decodeModel(expr)
	if err != nil {
		return nil, nil, err
	}
	return m, nil, nil
}

func (c *GoSource) decodeModel(expr ast.Expr) (*modello.Model, error) {
	lit, ok := expr.(*ast.CompositeLit)
	if !ok {
		return nil, &modello.ParseError{Message: fmt.Sprintf("expected a constructor expression, found %T", expr)}
	}
	name, err := constructorName(lit.Type)
	if err != nil {
		return nil, err
	}
	schema, ok := c.reg.Lookup(name)
	if !ok {
		return nil, &modello.SchemaMismatchError{Message: "unknown constructor " + name}
	}
	return c.decodeInto(schema, lit)
}

func (c *GoSource) decodeInto(s *modello.Schema, lit *ast.CompositeLit) (*modello.Model, error) {
	m, err := s.New()
	if err != nil {
		return nil, err
	}
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			return nil, &modello.ParseError{Message: s.Name() + " constructor values must be keyed by field name"}
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			return nil, &modello.ParseError{Message: s.Name() + " constructor keys must be identifiers"}
		}
		f, ok := s.Field(key.Name)
		if !ok {
			return nil, &modello.SchemaMismatchError{Message: fmt.Sprintf("schema %s has no field %s", s.Name(), key.Name)}
		}
		v, err := c.decodeValue(f, kv.Value)
		if err != nil {
			return nil, modello.AtPath(err, modello.Path(f.Name()))
		}
		if err := m.Set(f.Name(), v); err != nil {
			return nil, modello.AtPath(err, modello.Path(f.Name()))
		}
	}
	return m, nil
}

func (c *GoSource) decodeValue(f modello.Field, expr ast.Expr) (any, error) {
	switch f.Kind() {
	case modello.KindModel:
		child, err := c.decodeNested(f.Schema(), expr)
		if err != nil {
			return nil, err
		}
		return child, nil
	case modello.KindList:
		lit, ok := expr.(*ast.CompositeLit)
		if !ok {
			return nil, &modello.ParseError{Message: fmt.Sprintf("field %s expects a sequence literal", f.Name())}
		}
		items := make([]any, 0, len(lit.Elts))
		for i, elt := range lit.Elts {
			item, err := c.decodeValue(f.Elem(), elt)
			if err != nil {
				return nil, modello.AtPath(err, modello.Path("").Index(i))
			}
			items = append(items, item)
		}
		return items, nil
	default:
		return decodeLiteral(f, expr)
	}
}

// decodeNested resolves a composite value: its literal must name the field's
// own schema.
func (c *GoSource) decodeNested(s *modello.Schema, expr ast.Expr) (*modello.Model, error) {
	lit, ok := expr.(*ast.CompositeLit)
	if !ok {
		return nil, &modello.ParseError{Message: fmt.Sprintf("expected a %s constructor, found %T", s.Name(), expr)}
	}
	if lit.Type != nil {
		name, err := constructorName(lit.Type)
		if err != nil {
			return nil, err
		}
		if name != s.Name() {
			return nil, &modello.SchemaMismatchError{Message: fmt.Sprintf("expected a %s constructor, found %s", s.Name(), name)}
		}
	}
	return c.decodeInto(s, lit)
}

func decodeLiteral(f modello.Field, expr ast.Expr) (any, error) {
	switch e := expr.(type) {
	case *ast.Ident:
		if e.Name == "nil" {
			return nil, nil
		}
	case *ast.BasicLit:
		switch e.Kind {
		case token.STRING:
			s, err := strconv.Unquote(e.Value)
			if err != nil {
				return nil, &modello.ParseError{Value: e.Value, Message: "malformed string literal"}
			}
			return f.Parse(s)
		case token.INT, token.FLOAT:
			return f.Parse(e.Value)
		}
	case *ast.UnaryExpr:
		if lit, ok := e.X.(*ast.BasicLit); ok && e.Op == token.SUB &&
			(lit.Kind == token.INT || lit.Kind == token.FLOAT) {
			return f.Parse("-" + lit.Value)
		}
	}
	return nil, &modello.ParseError{Message: fmt.Sprintf("field %s expects a literal value", f.Name())}
}

func constructorName(expr ast.Expr) (string, error) {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name, nil
	case *ast.SelectorExpr:
		return t.Sel.Name, nil
	default:
		return "", &modello.ParseError{Message: fmt.Sprintf("constructor name must be an identifier, found %T", expr)}
	}
}

// gofmtExpr pipes the expression through the external gofmt binary wrapped
// in a throwaway declaration, then strips the wrapper.
func gofmtExpr(src string) (string, error) {
	path, err := exec.LookPath("gofmt")
	if err != nil {
		return "", ErrFormatterUnavailable
	}
	cmd := exec.Command(path)
	cmd.Stdin = strings.NewReader("package p\n\nvar _ = " + src + "\n")
	var out, errbuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errbuf
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("codec: gofmt: %v: %s", err, errbuf.String())
	}
	formatted := out.String()
	i := strings.Index(formatted, "var _ = ")
	if i < 0 {
		return "", fmt.Errorf("codec: unexpected gofmt output")
	}
	return strings.TrimRight(formatted[i+len("var _ = "):], "\n"), nil
}
