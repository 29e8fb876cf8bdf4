package modello

import "fmt"

// ---- composite ----

type modelField struct {
	base
	schema *Schema
}

// Nested declares a composite field whose value is a Model of the given
// schema. The child value is exclusively owned: ingested models are copied.
func Nested(name string, s *Schema, opts ...Option) Field {
	fo := newFieldOptions(opts)
	f := &modelField{base: newBase(name, fo), schema: s}
	f.def = mustParseDefault(f, fo.def)
	return f
}

func (f *modelField) Kind() Kind      { return KindModel }
func (f *modelField) Schema() *Schema { return f.schema }

func (f *modelField) Parse(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case *Model:
		if v.schema != f.schema {
			return nil, parseErrorf(raw, "field %s holds %s models, not %s", f.name, f.schema.name, v.schema.name)
		}
		return v.Clone(), nil
	case map[string]any:
		m, err := f.schema.FromMap(v)
		if err != nil {
			return nil, err
		}
		return m, nil
	case *TransportMap:
		m, err := f.schema.FromTransport(v)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, parseErrorf(raw, "'%v' cannot be converted to a %s model", raw, f.schema.name)
	}
}

func (f *modelField) Check(v any) error {
	if v == nil {
		return nil
	}
	m, ok := v.(*Model)
	if !ok {
		return parseErrorf(v, "field %s holds *Model values, not %T", f.name, v)
	}
	if m.schema != f.schema {
		return parseErrorf(v, "field %s holds %s models, not %s", f.name, f.schema.name, m.schema.name)
	}
	return nil
}

// ConstructDefault initializes composite slots with an empty child model, so
// dotted assignment into fresh models works without nil checks.
func (f *modelField) ConstructDefault() any {
	if f.def != nil {
		return f.def.(*Model).Clone()
	}
	return f.schema.empty()
}

func (f *modelField) HasValue(v any) bool {
	m, ok := v.(*Model)
	return ok && m.HasValue()
}

func (f *modelField) Text(v any) string { return v.(*Model).String() }

func (f *modelField) Transport(v any) any { return v.(*Model).ToTransport() }

func (f *modelField) equalValue(a, b any) bool { return a.(*Model).Equal(b.(*Model)) }

func (f *modelField) validateValue(v any, p Path, r *Report) {
	if !requireValue(f, v, p, r) {
		return
	}
	v.(*Model).validateInto(p, r)
}

func (f *modelField) diffValue(rec *diffRecorder, p Path, first, second any) {
	hasFirst, hasSecond := f.HasValue(first), f.HasValue(second)
	switch {
	case !hasFirst && !hasSecond:
	case hasFirst && !hasSecond:
		rec.onlyFirst(p, f.Text(first))
	case !hasFirst && hasSecond:
		rec.onlySecond(p, f.Text(second))
	default:
		first.(*Model).diffInto(rec, p, second.(*Model))
	}
}

// ---- repeated ----

type listField struct {
	base
	elem     Field
	minItems int
	maxItems int
}

// List declares a repeated field holding an ordered sequence of one inner
// field kind. The element field shares the markup tag of the list, so each
// item renders as one sibling element. Min/max item counts are enforced by
// the Validator, never by Parse.
func List(name string, elem Field, opts ...Option) Field {
	fo := newFieldOptions(opts)
	f := &listField{base: newBase(name, fo), elem: elem, minItems: fo.minItems, maxItems: fo.maxItems}
	elem.setTag(f.tag)
	f.def = mustParseDefault(f, fo.def)
	return f
}

// NestedList declares a repeated composite field.
func NestedList(name string, s *Schema, opts ...Option) Field {
	return List(name, Nested(name, s), opts...)
}

func (f *listField) Kind() Kind       { return KindList }
func (f *listField) Multivalue() bool { return true }
func (f *listField) Elem() Field      { return f.elem }
func (f *listField) Schema() *Schema  { return f.elem.Schema() }

func (f *listField) Parse(raw any) (any, error) {
	var items []any
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case TransportList:
		items = v
	default:
		return nil, parseErrorf(raw, "'%v' is not a sequence", raw)
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		parsed, err := f.elem.Parse(item)
		if err != nil {
			return nil, AtPath(err, Path("").Index(i))
		}
		out = append(out, parsed)
	}
	// Trailing empty elements beyond the declared minimum carry no content
	// in any representation; drop them so round trips stay stable.
	for len(out) > f.minItems && !f.elem.HasValue(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *listField) Check(v any) error {
	if v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return parseErrorf(v, "field %s holds []any sequences, not %T", f.name, v)
	}
	for _, item := range items {
		if err := f.elem.Check(item); err != nil {
			return err
		}
	}
	return nil
}

func (f *listField) ConstructDefault() any {
	if f.def != nil {
		return copyList(f.elem, f.def.([]any))
	}
	if f.minItems <= 0 {
		return nil
	}
	out := make([]any, f.minItems)
	for i := range out {
		out[i] = f.elem.ConstructDefault()
	}
	return out
}

func (f *listField) HasValue(v any) bool {
	items, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if f.elem.HasValue(item) {
			return true
		}
	}
	return false
}

func (f *listField) Text(v any) string {
	items := v.([]any)
	return fmt.Sprintf("%d elements", len(items))
}

func (f *listField) Transport(v any) any {
	items := v.([]any)
	out := make(TransportList, 0, len(items))
	for _, item := range items {
		if f.elem.HasValue(item) {
			out = append(out, f.elem.Transport(item))
		} else {
			out = append(out, nil)
		}
	}
	return out
}

func (f *listField) equalValue(a, b any) bool {
	first, second := a.([]any), b.([]any)
	if len(first) != len(second) {
		return false
	}
	for i := range first {
		hasFirst, hasSecond := f.elem.HasValue(first[i]), f.elem.HasValue(second[i])
		if hasFirst != hasSecond {
			return false
		}
		if hasFirst && !f.elem.equalValue(first[i], second[i]) {
			return false
		}
	}
	return true
}

func (f *listField) validateValue(v any, p Path, r *Report) {
	if !requireValue(f, v, p, r) {
		return
	}
	items := v.([]any)
	if f.minItems > 0 && len(items) < f.minItems {
		r.AddError(p, CodeTooShort, fmt.Sprintf("list must have at least %d elements, but has only %d", f.minItems, len(items)))
	}
	if f.maxItems >= 0 && len(items) > f.maxItems {
		r.AddError(p, CodeTooLong, fmt.Sprintf("list must have at most %d elements, but has %d", f.maxItems, len(items)))
	}
	for i, item := range items {
		f.elem.validateValue(item, p.Index(i), r)
	}
}

func (f *listField) diffValue(rec *diffRecorder, p Path, first, second any) {
	hasFirst, hasSecond := f.HasValue(first), f.HasValue(second)
	switch {
	case !hasFirst && !hasSecond:
		return
	case hasFirst && !hasSecond:
		rec.onlyFirst(p, f.Text(first))
		return
	case !hasFirst && hasSecond:
		rec.onlySecond(p, f.Text(second))
		return
	}
	a, b := first.([]any), second.([]any)
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	// Positional comparison only: no reordering or best-match alignment.
	for i := 0; i < n; i++ {
		f.elem.diffValue(rec, p.Index(i), a[i], b[i])
	}
	if len(a) != len(b) {
		rec.extra(p, len(a), len(b))
	}
}

func copyList(elem Field, items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = ownValue(elem, item)
	}
	return out
}
