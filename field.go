package modello

import (
	"regexp"
	"strings"
	"time"
)

// Kind enumerates the closed set of field variants. Traversal code dispatches
// on Kind instead of probing for optional interfaces.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindDecimal
	KindDate
	KindDateTime
	KindBytes
	KindModel
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindBytes:
		return "bytes"
	case KindModel:
		return "model"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Field describes one typed slot of a schema. It carries the declaration
// (name, tag, constraints) and the per-kind behavior; it never holds a value.
//
// The unexported traversal methods keep the set of field kinds closed: only
// this package can implement Field.
type Field interface {
	// Name is the declared field name (snake_case by convention).
	Name() string
	// Tag is the markup element name; derived from Name unless overridden.
	Tag() string
	// Kind identifies the variant for dispatch.
	Kind() Kind
	// Required reports whether the Validator flags an empty value.
	Required() bool
	// Multivalue reports whether the field holds an ordered sequence.
	Multivalue() bool

	// Parse coerces raw external input into the field's value type. It is
	// the only place type coercion happens; it returns *ParseError when the
	// raw value cannot be converted.
	Parse(raw any) (any, error)
	// Check verifies that v already is of the declared value kind, without
	// coercion and without running constraint validation.
	Check(v any) error
	// HasValue reports whether v is set (not the empty sentinel).
	HasValue(v any) bool
	// ConstructDefault is the value a freshly constructed Model holds when
	// the field was not given one.
	ConstructDefault() any
	// HasDefault reports whether the declaration carries an explicit Default,
	// as opposed to the construction default every field has.
	HasDefault() bool
	// Text renders v in its canonical text form (markup element text,
	// transport string form for decimals and dates).
	Text(v any) string
	// Transport renders v in the codec-agnostic transport form.
	Transport(v any) any

	// Elem returns the element field of a repeated field, nil otherwise.
	Elem() Field
	// Schema returns the child schema of a composite field, nil otherwise.
	Schema() *Schema

	// validateValue reports required/constraint issues for the value whose
	// full path is p, recursing into composite and repeated values.
	validateValue(v any, p Path, r *Report)
	// diffValue records differences between two values at full path p.
	diffValue(rec *diffRecorder, p Path, first, second any)
	// equalValue compares two raw values of this field's kind.
	equalValue(a, b any) bool

	setTag(tag string)
}

// Option configures a field declaration at schema construction time.
type Option func(*fieldOptions)

type fieldOptions struct {
	tag      string
	optional bool
	def      any
	choices  []any
	minLen   int
	maxLen   int
	pattern  *regexp.Regexp
	decimals int
	hasDec   bool
	minItems int
	maxItems int
	loc      *time.Location
}

func newFieldOptions(opts []Option) fieldOptions {
	fo := fieldOptions{minLen: -1, maxLen: -1, maxItems: -1}
	for _, o := range opts {
		o(&fo)
	}
	return fo
}

// Tag overrides the derived markup element name.
func Tag(tag string) Option { return func(o *fieldOptions) { o.tag = tag } }

// Optional marks the field as allowed to be empty.
func Optional() Option { return func(o *fieldOptions) { o.optional = true } }

// Default declares the value used when construction receives none. The raw
// value goes through the field's Parse at schema build time.
func Default(v any) Option { return func(o *fieldOptions) { o.def = v } }

// Choices restricts the field to a fixed value set, checked by the Validator.
func Choices(vals ...any) Option {
	return func(o *fieldOptions) { o.choices = append(o.choices, vals...) }
}

// Length fixes the exact text length of a string field.
func Length(n int) Option {
	return func(o *fieldOptions) { o.minLen, o.maxLen = n, n }
}

// MinLen sets the minimum text length of a string field.
func MinLen(n int) Option { return func(o *fieldOptions) { o.minLen = n } }

// MaxLen sets the maximum rendered length: characters for string fields,
// digits for integer fields, rendered characters for decimal fields.
func MaxLen(n int) Option { return func(o *fieldOptions) { o.maxLen = n } }

// Pattern constrains a string field to match an anchored regular expression.
// It panics on an invalid expression; schemas are built once at startup.
func Pattern(expr string) Option {
	re := regexp.MustCompile(expr)
	return func(o *fieldOptions) { o.pattern = re }
}

// Decimals sets how many decimal places a decimal field renders with. The
// default is two.
func Decimals(n int) Option {
	return func(o *fieldOptions) { o.decimals, o.hasDec = n, true }
}

// MinItems sets the minimum element count of a repeated field, enforced by
// the Validator rather than by Parse.
func MinItems(n int) Option { return func(o *fieldOptions) { o.minItems = n } }

// MaxItems sets the maximum element count of a repeated field.
func MaxItems(n int) Option { return func(o *fieldOptions) { o.maxItems = n } }

// Location sets the zone applied to datetime text without an offset.
func Location(loc *time.Location) Option {
	return func(o *fieldOptions) { o.loc = loc }
}

// tagFromName derives a markup element name from a snake_case field name:
// "codice_destinatario" becomes "CodiceDestinatario".
func tagFromName(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// base carries the declaration shared by every field kind.
type base struct {
	name     string
	tag      string
	optional bool
	def      any
}

func newBase(name string, fo fieldOptions) base {
	tag := fo.tag
	if tag == "" {
		tag = tagFromName(name)
	}
	return base{name: name, tag: tag, optional: fo.optional}
}

func (b *base) Name() string     { return b.name }
func (b *base) Tag() string      { return b.tag }
func (b *base) Required() bool   { return !b.optional }
func (b *base) Multivalue() bool { return false }
func (b *base) Elem() Field      { return nil }
func (b *base) Schema() *Schema  { return nil }

func (b *base) ConstructDefault() any { return b.def }
func (b *base) HasDefault() bool      { return b.def != nil }
func (b *base) HasValue(v any) bool   { return v != nil }

func (b *base) setTag(tag string) { b.tag = tag }

// requireValue reports the shared required-but-empty error; it returns true
// when there is a value to run constraints against.
func requireValue(f Field, v any, p Path, r *Report) bool {
	if f.HasValue(v) {
		return true
	}
	if f.Required() {
		r.AddError(p, CodeRequired, "missing value")
	}
	return false
}

// mustParseDefault parses a declared default at schema build time.
func mustParseDefault(f Field, raw any) any {
	if raw == nil {
		return nil
	}
	v, err := f.Parse(raw)
	if err != nil {
		panic("modello: invalid default for field " + f.Name() + ": " + err.Error())
	}
	return v
}
