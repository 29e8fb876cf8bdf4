package modello

import "fmt"

// Rule is a schema-level cross-field check. It runs after the per-field
// constraints with the model's own path prefix and appends advisories or
// errors to the report; it never mutates the model.
type Rule func(m *Model, p Path, r *Report)

// Attr is a root-element markup attribute derived from the document being
// written. Attributes are write-only: loads tolerate and ignore them.
type Attr struct {
	Name  string
	Value func(m *Model) string
}

// Schema is the ordered, named sequence of Field declarations for one Model
// type. Build it once at startup with NewSchema and treat it as read-only
// afterwards; Models reference their Schema by pointer identity.
type Schema struct {
	name   string
	fields []Field
	index  map[string]int
	rules  []Rule
	attrs  []Attr
}

// NewSchema builds a schema descriptor. The root element name and the field
// declaration order are canonical for every representation. Duplicate or
// empty field names are programmer errors and panic.
func NewSchema(name string, fields ...Field) *Schema {
	if name == "" {
		panic("modello: schema name must not be empty")
	}
	s := &Schema{name: name, fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		if f.Name() == "" {
			panic("modello: schema " + name + " declares a field with no name")
		}
		if _, dup := s.index[f.Name()]; dup {
			panic("modello: schema " + name + " declares field " + f.Name() + " twice")
		}
		s.index[f.Name()] = i
	}
	return s
}

// Rule attaches a cross-field check. Call at startup only, like NewSchema.
func (s *Schema) Rule(fn Rule) *Schema {
	s.rules = append(s.rules, fn)
	return s
}

// Attr attaches a root markup attribute. Call at startup only.
func (s *Schema) Attr(name string, value func(m *Model) string) *Schema {
	s.attrs = append(s.attrs, Attr{Name: name, Value: value})
	return s
}

// Name returns the schema's root element name.
func (s *Schema) Name() string { return s.name }

// Fields returns the declared fields in declaration order. The slice is
// shared: callers must not modify it.
func (s *Schema) Fields() []Field { return s.fields }

// Field looks a declaration up by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.fields[i], true
}

// Attrs returns the declared root attributes.
func (s *Schema) Attrs() []Attr { return s.attrs }

// New constructs a Model from positional raw values matched to fields in
// declaration order. Each value goes through its field's Parse; fields left
// out hold their construction default or the empty sentinel.
func (s *Schema) New(args ...any) (*Model, error) {
	if len(args) > len(s.fields) {
		return nil, fmt.Errorf("modello: %s takes at most %d values, got %d", s.name, len(s.fields), len(args))
	}
	m := s.empty()
	for i, raw := range args {
		if raw == nil {
			continue
		}
		v, err := s.fields[i].Parse(raw)
		if err != nil {
			return nil, AtPath(err, Path(s.fields[i].Name()))
		}
		m.values[i] = v
	}
	return m, nil
}

// MustNew is New for statically known values; it panics on a parse failure.
func (s *Schema) MustNew(args ...any) *Model {
	m, err := s.New(args...)
	if err != nil {
		panic(err)
	}
	return m
}

// FromMap constructs a Model from named raw values. Unknown names are
// rejected; every raw value goes through its field's Parse.
func (s *Schema) FromMap(values map[string]any) (*Model, error) {
	m := s.empty()
	for name, raw := range values {
		i, ok := s.index[name]
		if !ok {
			return nil, mismatchf("schema %s has no field %s", s.name, name)
		}
		if raw == nil {
			continue
		}
		v, err := s.fields[i].Parse(raw)
		if err != nil {
			return nil, AtPath(err, Path(name))
		}
		m.values[i] = v
	}
	return m, nil
}

// FromTransport rebuilds a Model from a transport value: a *TransportMap or
// a plain map[string]any keyed by field name.
func (s *Schema) FromTransport(v any) (*Model, error) {
	switch tv := v.(type) {
	case *TransportMap:
		return s.FromMap(tv.Flatten())
	case map[string]any:
		return s.FromMap(tv)
	default:
		return nil, mismatchf("%T is not a transport mapping for schema %s", v, s.name)
	}
}

// empty returns a Model holding each field's construction default.
func (s *Schema) empty() *Model {
	m := &Model{schema: s, values: make([]any, len(s.fields))}
	for i, f := range s.fields {
		m.values[i] = f.ConstructDefault()
	}
	return m
}

// Registry maps root element names to schemas. Codecs that must detect the
// document type take an explicit Registry value; there is no process-wide
// table.
type Registry struct {
	byName map[string]*Schema
}

// NewRegistry builds a registry over the given root schemas.
func NewRegistry(schemas ...*Schema) *Registry {
	r := &Registry{byName: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		r.Register(s)
	}
	return r
}

// Register adds a schema; registering two schemas under one root name is a
// programmer error and panics.
func (r *Registry) Register(s *Schema) {
	if prev, ok := r.byName[s.Name()]; ok && prev != s {
		panic("modello: registry already maps root " + s.Name())
	}
	r.byName[s.Name()] = s
}

// Lookup resolves a root element name.
func (r *Registry) Lookup(root string) (*Schema, bool) {
	s, ok := r.byName[root]
	return s, ok
}
