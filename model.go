package modello

import (
	"fmt"
	"strings"
)

// Model is one instance of a schema: one value (or the nil empty sentinel)
// per declared field. It is a value type: Equal compares all field values
// recursively, and composite children are exclusively owned.
type Model struct {
	schema *Schema
	values []any
}

// Schema returns the descriptor this model instantiates.
func (m *Model) Schema() *Schema { return m.schema }

// Get returns the value of the named field, nil when empty. An unknown field
// name is a programmer error and panics.
func (m *Model) Get(name string) any {
	i, ok := m.schema.index[name]
	if !ok {
		panic("modello: schema " + m.schema.name + " has no field " + name)
	}
	return m.values[i]
}

// Set stores an already-typed value. It re-checks the declared value kind
// and rejects mismatches, but runs no constraint validation; that is the
// Validator's job. Composite and repeated values are copied on the way in.
func (m *Model) Set(name string, v any) error {
	i, ok := m.schema.index[name]
	if !ok {
		panic("modello: schema " + m.schema.name + " has no field " + name)
	}
	f := m.schema.fields[i]
	if err := f.Check(v); err != nil {
		return err
	}
	m.values[i] = ownValue(f, v)
	return nil
}

// Update applies a partial patch of named raw values, each routed through
// its field's Parse. Fields not mentioned are left untouched.
func (m *Model) Update(values map[string]any) error {
	for name, raw := range values {
		i, ok := m.schema.index[name]
		if !ok {
			return mismatchf("schema %s has no field %s", m.schema.name, name)
		}
		if raw == nil {
			m.values[i] = nil
			continue
		}
		v, err := m.schema.fields[i].Parse(raw)
		if err != nil {
			return AtPath(err, Path(name))
		}
		m.values[i] = v
	}
	return nil
}

// HasValue reports whether any field holds a value.
func (m *Model) HasValue() bool {
	for i, f := range m.schema.fields {
		if f.HasValue(m.values[i]) {
			return true
		}
	}
	return false
}

// Equal reports recursive structural equality. A nil or all-empty model of
// the same schema equals another all-empty one; differing schemas are never
// equal. Decimal values compare numerically.
func (m *Model) Equal(other *Model) bool {
	if other == nil {
		return !m.HasValue()
	}
	if m.schema != other.schema {
		return false
	}
	for i, f := range m.schema.fields {
		a, b := m.values[i], other.values[i]
		hasA, hasB := f.HasValue(a), f.HasValue(b)
		if hasA != hasB {
			return false
		}
		if hasA && !f.equalValue(a, b) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (m *Model) Clone() *Model {
	out := &Model{schema: m.schema, values: make([]any, len(m.values))}
	for i, f := range m.schema.fields {
		out.values[i] = ownValue(f, m.values[i])
	}
	return out
}

// ToTransport renders the model as the codec-agnostic transport form:
// an ordered mapping keyed by field name, sequences for repeated fields, and
// strings for decimal and date values. Empty fields are omitted.
func (m *Model) ToTransport() *TransportMap {
	out := NewTransportMap()
	for i, f := range m.schema.fields {
		if !f.HasValue(m.values[i]) {
			continue
		}
		out.Set(f.Name(), f.Transport(m.values[i]))
	}
	return out
}

// String renders the model for debugging as SchemaName(field=..., ...).
func (m *Model) String() string {
	var b strings.Builder
	b.WriteString(m.schema.name)
	b.WriteByte('(')
	first := true
	for i, f := range m.schema.fields {
		if !f.HasValue(m.values[i]) {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%s=%s", f.Name(), f.Text(m.values[i]))
	}
	b.WriteByte(')')
	return b.String()
}

// validateInto runs field constraints in declaration order, then the
// schema's cross-field rules, all under prefix p.
func (m *Model) validateInto(p Path, r *Report) {
	for i, f := range m.schema.fields {
		f.validateValue(m.values[i], p.Field(f.Name()), r)
	}
	for _, rule := range m.schema.rules {
		rule(m, p, r)
	}
}

// diffInto compares field by field in declaration order under prefix p.
func (m *Model) diffInto(rec *diffRecorder, p Path, other *Model) {
	for i, f := range m.schema.fields {
		f.diffValue(rec, p.Field(f.Name()), m.values[i], other.values[i])
	}
}

// ownValue copies composite and repeated values so no two models share
// mutable state.
func ownValue(f Field, v any) any {
	if v == nil {
		return nil
	}
	switch f.Kind() {
	case KindModel:
		return v.(*Model).Clone()
	case KindList:
		return copyList(f.Elem(), v.([]any))
	case KindBytes:
		return append([]byte(nil), v.([]byte)...)
	default:
		return v
	}
}
