package modello

// Report is the outcome of validating a Model tree: two ordered sequences of
// path-qualified annotations. Validation never fails; a structurally
// incomplete model still produces a complete report.
type Report struct {
	Warnings Issues
	Errors   Issues
}

// AddError appends a validation error.
func (r *Report) AddError(p Path, code, msg string) {
	r.Errors = append(r.Errors, Issue{Path: p, Code: code, Message: msg})
}

// AddWarning appends an advisory.
func (r *Report) AddWarning(p Path, code, msg string) {
	r.Warnings = append(r.Warnings, Issue{Path: p, Code: code, Message: msg})
}

// Valid reports whether the report carries no errors.
func (r *Report) Valid() bool { return len(r.Errors) == 0 }

// Validate walks the model's fields in declaration order, collecting
// required-but-empty and constraint violations plus the schemas' cross-field
// rule findings. It never mutates the tree it inspects.
func Validate(m *Model) *Report {
	r := &Report{}
	m.validateInto("", r)
	return r
}
