package modello

import "strconv"

// Path locates a value inside a Model tree. Segments are field names joined
// by dots; repeated-field elements append their zero-based index as a
// segment of its own, e.g. "body.0.dettaglio_linee.0.unita_misura".
// Validation reports and differences share this grammar.
type Path string

// Field returns the path of a child field.
func (p Path) Field(name string) Path {
	if p == "" {
		return Path(name)
	}
	return p + "." + Path(name)
}

// Index returns the path of a repeated-field element.
func (p Path) Index(i int) Path {
	if p == "" {
		return Path(strconv.Itoa(i))
	}
	return p + "." + Path(strconv.Itoa(i))
}

func (p Path) String() string { return string(p) }

// join concatenates an already-built relative path under p.
func (p Path) join(child Path) Path {
	if child == "" {
		return p
	}
	if p == "" {
		return child
	}
	return p + "." + child
}
