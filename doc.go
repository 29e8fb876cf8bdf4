// Package modello is a declarative document framework: a schema is declared
// once as an ordered set of typed field descriptors, and the framework
// derives parsing, rendering, validation and structural comparison from it.
//
//   - Field descriptors (String/Integer/Decimal/Date/DateTime/Bytes/Nested/List)
//     form a closed set of kinds, each owning parse/serialize/validate/diff
//     behavior for one value kind
//   - Schema is the immutable, ordered field sequence of one Model type;
//     Registry maps root element names to schemas without global state
//   - Model is the value container: construction goes through each field's
//     Parse, accessors re-check the declared kind, equality is recursive
//   - Validate produces a non-fatal report (warnings + errors) with dotted,
//     indexed paths; it never raises past a successful load
//   - Compare produces path-qualified differences with numeric normalization
//     for decimal fields
//
// Format codecs (XML, JSON, YAML, Go source expressions) live under codec/;
// a concrete Italian electronic-invoice catalog lives under fattura/.
//
// Typical usage:
//
//	m, err := fattura.FatturaElettronica.FromMap(values)
//	rep := modello.Validate(m)
//	for _, d := range modello.Compare(m, other) { fmt.Println(d) }
package modello
