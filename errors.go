package modello

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeRequired     = "required"
	CodeInvalidType  = "invalid_type"
	CodeTooShort     = "too_short"
	CodeTooLong      = "too_long"
	CodePattern      = "pattern"
	CodeInvalidEnum  = "invalid_enum"
	CodeParseError   = "parse_error"
	CodeUnknownKey   = "unknown_key"
	CodeBusinessRule = "business_rule"
)

// Issue is a single path-qualified validation or load annotation.
type Issue struct {
	Path    Path
	Code    string
	Message string
}

// String renders the issue the way reports print it: "path: [code] message".
// Issues carrying one of the generic codes above omit the code part, so that
// domain rule codes (e.g. "00426") stand out.
func (i Issue) String() string {
	switch i.Code {
	case "", CodeRequired, CodeInvalidType, CodeTooShort, CodeTooLong,
		CodePattern, CodeInvalidEnum, CodeParseError, CodeUnknownKey,
		CodeBusinessRule:
		return fmt.Sprintf("%s: %s", i.Path, i.Message)
	default:
		return fmt.Sprintf("%s: [%s] %s", i.Path, i.Code, i.Message)
	}
}

// Issues is a collection of annotations that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	lim := len(iss)
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", iss[i].Code, iss[i].Path)
	}
	if len(iss) > lim {
		fmt.Fprintf(b, "; ... (total %d)", len(iss))
	}
	return b.String()
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// ParseError reports a raw value that cannot be coerced to a field's declared
// value kind. It aborts the load that produced it.
type ParseError struct {
	Path    Path
	Value   any
	Message string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("modello: parse: %s", e.Message)
	}
	return fmt.Sprintf("modello: parse %s: %s", e.Path, e.Message)
}

func parseErrorf(value any, format string, args ...any) *ParseError {
	return &ParseError{Value: value, Message: fmt.Sprintf(format, args...)}
}

// AtPath prepends path context to a load error produced below it. Errors of
// other types pass through unmodified.
func AtPath(err error, p Path) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Path = p.join(pe.Path)
		return pe
	}
	var sme *SchemaMismatchError
	if errors.As(err, &sme) {
		sme.Path = p.join(sme.Path)
		return sme
	}
	return err
}

// SchemaMismatchError reports input whose structure cannot be reconciled with
// the schema: a required field's representation is absent, or the root does
// not name a registered schema.
type SchemaMismatchError struct {
	Path    Path
	Message string
}

func (e *SchemaMismatchError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("modello: schema mismatch: %s", e.Message)
	}
	return fmt.Sprintf("modello: schema mismatch at %s: %s", e.Path, e.Message)
}

func mismatchf(format string, args ...any) *SchemaMismatchError {
	return &SchemaMismatchError{Message: fmt.Sprintf(format, args...)}
}
