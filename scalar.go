package modello

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// parseChoices canonicalizes a declared value set into text form at schema
// build time, so membership checks are insensitive to input spelling.
func parseChoices(f Field, raw []any) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		v, err := f.Parse(c)
		if err != nil {
			panic("modello: invalid choice for field " + f.Name() + ": " + err.Error())
		}
		out = append(out, f.Text(v))
	}
	return out
}

func checkChoices(f Field, choices []string, v any, p Path, r *Report) {
	if len(choices) == 0 {
		return
	}
	text := f.Text(v)
	for _, c := range choices {
		if c == text {
			return
		}
	}
	r.AddError(p, CodeInvalidEnum, fmt.Sprintf("'%s' is not a valid choice for this field", text))
}

// diffScalar implements the shared presence logic of scalar comparisons.
func diffScalar(f Field, rec *diffRecorder, p Path, first, second any) {
	hasFirst, hasSecond := f.HasValue(first), f.HasValue(second)
	switch {
	case !hasFirst && !hasSecond:
	case hasFirst && !hasSecond:
		rec.onlyFirst(p, f.Text(first))
	case !hasFirst && hasSecond:
		rec.onlySecond(p, f.Text(second))
	case !f.equalValue(first, second):
		rec.changed(p, f.Text(first), f.Text(second))
	}
}

// ---- string ----

type stringField struct {
	base
	minLen  int
	maxLen  int
	pattern *regexp.Regexp
	choices []string
}

// String declares a text field. Length bounds, a pattern and a choice set are
// Validator-enforced constraints.
func String(name string, opts ...Option) Field {
	fo := newFieldOptions(opts)
	f := &stringField{base: newBase(name, fo), minLen: fo.minLen, maxLen: fo.maxLen, pattern: fo.pattern}
	f.choices = parseChoices(f, fo.choices)
	f.def = mustParseDefault(f, fo.def)
	return f
}

func (f *stringField) Kind() Kind { return KindString }

func (f *stringField) Parse(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return nil, parseErrorf(raw, "'%v' is not a string", raw)
	}
}

func (f *stringField) Check(v any) error {
	if v == nil {
		return nil
	}
	if _, ok := v.(string); !ok {
		return parseErrorf(v, "field %s holds string values, not %T", f.name, v)
	}
	return nil
}

func (f *stringField) Text(v any) string        { s, _ := v.(string); return s }
func (f *stringField) Transport(v any) any      { return v }
func (f *stringField) equalValue(a, b any) bool { return a.(string) == b.(string) }

func (f *stringField) validateValue(v any, p Path, r *Report) {
	if !requireValue(f, v, p, r) {
		return
	}
	s := v.(string)
	if f.minLen >= 0 && len([]rune(s)) < f.minLen {
		r.AddError(p, CodeTooShort, fmt.Sprintf("'%s' should be at least %d characters long", s, f.minLen))
	}
	if f.maxLen >= 0 && len([]rune(s)) > f.maxLen {
		r.AddError(p, CodeTooLong, fmt.Sprintf("'%s' should be no more than %d characters long", s, f.maxLen))
	}
	if f.pattern != nil && !f.pattern.MatchString(s) {
		r.AddError(p, CodePattern, fmt.Sprintf("'%s' does not match %s", s, f.pattern))
	}
	checkChoices(f, f.choices, v, p, r)
}

func (f *stringField) diffValue(rec *diffRecorder, p Path, first, second any) {
	diffScalar(f, rec, p, first, second)
}

// ---- integer ----

type integerField struct {
	base
	maxLen  int
	choices []string
}

// Integer declares a whole-number field. MaxLen bounds the digit count.
func Integer(name string, opts ...Option) Field {
	fo := newFieldOptions(opts)
	f := &integerField{base: newBase(name, fo), maxLen: fo.maxLen}
	f.choices = parseChoices(f, fo.choices)
	f.def = mustParseDefault(f, fo.def)
	return f
}

func (f *integerField) Kind() Kind { return KindInteger }

func (f *integerField) Parse(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, parseErrorf(raw, "'%s' cannot be converted to an integer", v.String())
		}
		return n, nil
	case float64:
		n := int64(v)
		if float64(n) != v {
			return nil, parseErrorf(raw, "'%v' cannot be converted to an integer", v)
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, parseErrorf(raw, "'%s' cannot be converted to an integer", v)
		}
		return n, nil
	default:
		return nil, parseErrorf(raw, "'%v' cannot be converted to an integer", raw)
	}
}

func (f *integerField) Check(v any) error {
	if v == nil {
		return nil
	}
	if _, ok := v.(int64); !ok {
		return parseErrorf(v, "field %s holds int64 values, not %T", f.name, v)
	}
	return nil
}

func (f *integerField) Text(v any) string        { return strconv.FormatInt(v.(int64), 10) }
func (f *integerField) Transport(v any) any      { return v }
func (f *integerField) equalValue(a, b any) bool { return a.(int64) == b.(int64) }

func (f *integerField) validateValue(v any, p Path, r *Report) {
	if !requireValue(f, v, p, r) {
		return
	}
	if f.maxLen >= 0 && len(f.Text(v)) > f.maxLen {
		r.AddError(p, CodeTooLong, fmt.Sprintf("'%s' should be no more than %d digits long", f.Text(v), f.maxLen))
	}
	checkChoices(f, f.choices, v, p, r)
}

func (f *integerField) diffValue(rec *diffRecorder, p Path, first, second any) {
	diffScalar(f, rec, p, first, second)
}

// ---- decimal ----

type decimalField struct {
	base
	maxLen   int
	decimals int
	choices  []string
}

// Decimal declares an exact-precision numeric field backed by
// shopspring/decimal. Decimals fixes the rendered decimal places (two unless
// overridden); MaxLen bounds the rendered digit count. Comparisons are
// numeric: trailing zeros beyond the declared places are insignificant.
func Decimal(name string, opts ...Option) Field {
	fo := newFieldOptions(opts)
	decimals := 2
	if fo.hasDec {
		decimals = fo.decimals
	}
	f := &decimalField{base: newBase(name, fo), maxLen: fo.maxLen, decimals: decimals}
	f.choices = parseChoices(f, fo.choices)
	f.def = mustParseDefault(f, fo.def)
	return f
}

func (f *decimalField) Kind() Kind { return KindDecimal }

func (f *decimalField) Parse(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, parseErrorf(raw, "'%s' cannot be converted to a decimal", v)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return nil, parseErrorf(raw, "'%s' cannot be converted to a decimal", v.String())
		}
		return d, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return nil, parseErrorf(raw, "'%v' cannot be converted to a decimal", raw)
	}
}

func (f *decimalField) Check(v any) error {
	if v == nil {
		return nil
	}
	if _, ok := v.(decimal.Decimal); !ok {
		return parseErrorf(v, "field %s holds decimal values, not %T", f.name, v)
	}
	return nil
}

func (f *decimalField) Text(v any) string {
	return v.(decimal.Decimal).StringFixed(int32(f.decimals))
}

func (f *decimalField) Transport(v any) any { return f.Text(v) }

func (f *decimalField) equalValue(a, b any) bool {
	return a.(decimal.Decimal).Equal(b.(decimal.Decimal))
}

func (f *decimalField) validateValue(v any, p Path, r *Report) {
	if !requireValue(f, v, p, r) {
		return
	}
	if f.maxLen >= 0 {
		text := f.Text(v)
		if len(text) > f.maxLen {
			r.AddError(p, CodeTooLong, fmt.Sprintf("'%s' should be no more than %d digits long", text, f.maxLen))
		}
	}
	checkChoices(f, f.choices, v, p, r)
}

func (f *decimalField) diffValue(rec *diffRecorder, p Path, first, second any) {
	diffScalar(f, rec, p, first, second)
}

// ---- date ----

var reDatePrefix = regexp.MustCompile(`^\s*(\d{4})-(\d{1,2})-(\d{1,2})`)

type dateField struct {
	base
	choices []string
}

// Date declares an ISO 8601 calendar-date field. Values normalize to
// midnight UTC; text forms only need to begin with YYYY-mm-dd.
func Date(name string, opts ...Option) Field {
	fo := newFieldOptions(opts)
	f := &dateField{base: newBase(name, fo)}
	f.choices = parseChoices(f, fo.choices)
	f.def = mustParseDefault(f, fo.def)
	return f
}

func (f *dateField) Kind() Kind { return KindDate }

func (f *dateField) Parse(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC), nil
	case string:
		m := reDatePrefix.FindStringSubmatch(v)
		if m == nil {
			return nil, parseErrorf(raw, "date '%s' does not begin with YYYY-mm-dd", v)
		}
		t, err := time.Parse("2006-1-2", m[1]+"-"+m[2]+"-"+m[3])
		if err != nil {
			return nil, parseErrorf(raw, "date '%s' is not a valid calendar date", v)
		}
		return t, nil
	default:
		return nil, parseErrorf(raw, "'%v' cannot be converted to a date", raw)
	}
}

func (f *dateField) Check(v any) error {
	if v == nil {
		return nil
	}
	if _, ok := v.(time.Time); !ok {
		return parseErrorf(v, "field %s holds time.Time values, not %T", f.name, v)
	}
	return nil
}

func (f *dateField) Text(v any) string   { return v.(time.Time).Format("2006-01-02") }
func (f *dateField) Transport(v any) any { return f.Text(v) }

func (f *dateField) equalValue(a, b any) bool { return a.(time.Time).Equal(b.(time.Time)) }

func (f *dateField) validateValue(v any, p Path, r *Report) {
	if !requireValue(f, v, p, r) {
		return
	}
	checkChoices(f, f.choices, v, p, r)
}

func (f *dateField) diffValue(rec *diffRecorder, p Path, first, second any) {
	diffScalar(f, rec, p, first, second)
}

// ---- datetime ----

type dateTimeField struct {
	base
	loc *time.Location
}

// DateTime declares an ISO 8601 timestamp field. Text forms without an
// offset get the field's Location applied (time.Local unless configured).
func DateTime(name string, opts ...Option) Field {
	fo := newFieldOptions(opts)
	loc := fo.loc
	if loc == nil {
		loc = time.Local
	}
	f := &dateTimeField{base: newBase(name, fo), loc: loc}
	f.def = mustParseDefault(f, fo.def)
	return f
}

func (f *dateTimeField) Kind() Kind { return KindDateTime }

func (f *dateTimeField) Parse(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v, nil
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, nil
		}
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", v, f.loc); err == nil {
			return t, nil
		}
		if t, err := time.ParseInLocation("2006-01-02", v, f.loc); err == nil {
			return t, nil
		}
		return nil, parseErrorf(raw, "'%s' is not an ISO 8601 timestamp", v)
	default:
		return nil, parseErrorf(raw, "'%v' cannot be converted to a timestamp", raw)
	}
}

func (f *dateTimeField) Check(v any) error {
	if v == nil {
		return nil
	}
	if _, ok := v.(time.Time); !ok {
		return parseErrorf(v, "field %s holds time.Time values, not %T", f.name, v)
	}
	return nil
}

func (f *dateTimeField) Text(v any) string   { return v.(time.Time).Format(time.RFC3339) }
func (f *dateTimeField) Transport(v any) any { return f.Text(v) }

func (f *dateTimeField) equalValue(a, b any) bool { return a.(time.Time).Equal(b.(time.Time)) }

func (f *dateTimeField) validateValue(v any, p Path, r *Report) {
	requireValue(f, v, p, r)
}

func (f *dateTimeField) diffValue(rec *diffRecorder, p Path, first, second any) {
	diffScalar(f, rec, p, first, second)
}

// ---- bytes ----

type bytesField struct {
	base
}

// Bytes declares a binary field carried as base64 text in every
// representation.
func Bytes(name string, opts ...Option) Field {
	fo := newFieldOptions(opts)
	f := &bytesField{base: newBase(name, fo)}
	f.def = mustParseDefault(f, fo.def)
	return f
}

func (f *bytesField) Kind() Kind { return KindBytes }

func (f *bytesField) Parse(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, parseErrorf(raw, "'%s' is not valid base64 text", v)
		}
		return b, nil
	default:
		return nil, parseErrorf(raw, "'%v' is not a byte string", raw)
	}
}

func (f *bytesField) Check(v any) error {
	if v == nil {
		return nil
	}
	if _, ok := v.([]byte); !ok {
		return parseErrorf(v, "field %s holds []byte values, not %T", f.name, v)
	}
	return nil
}

func (f *bytesField) Text(v any) string {
	return base64.StdEncoding.EncodeToString(v.([]byte))
}

func (f *bytesField) Transport(v any) any { return f.Text(v) }

func (f *bytesField) equalValue(a, b any) bool { return bytes.Equal(a.([]byte), b.([]byte)) }

func (f *bytesField) validateValue(v any, p Path, r *Report) {
	requireValue(f, v, p, r)
}

func (f *bytesField) diffValue(rec *diffRecorder, p Path, first, second any) {
	diffScalar(f, rec, p, first, second)
}
