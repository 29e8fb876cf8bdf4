package codec

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/fatturatools/modello"
)

// XML converts between Models and the fixed-element-hierarchy markup form.
// Element names come from the declared field tags, nesting follows field
// declaration order, repeated fields render one sibling element per item,
// and optional-and-empty fields are omitted. The registry resolves the root
// element name to the schema to instantiate.
type XML struct {
	reg *modello.Registry
}

// NewXML builds the markup codec over an explicit schema registry.
func NewXML(reg *modello.Registry) *XML {
	return &XML{reg: reg}
}

func (c *XML) Binary() bool         { return true }
func (c *XML) Extensions() []string { return []string{"xml"} }

func (c *XML) Write(m *modello.Model, w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	start := xml.StartElement{Name: xml.Name{Local: m.Schema().Name()}}
	for _, a := range m.Schema().Attrs() {
		if val := a.Value(m); val != "" {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: val})
		}
	}
	if err := writeModelXML(enc, m, start); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n"))
	return err
}

func writeModelXML(enc *xml.Encoder, m *modello.Model, start xml.StartElement) error {
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, f := range m.Schema().Fields() {
		v := m.Get(f.Name())
		if !f.HasValue(v) {
			continue
		}
		if err := writeFieldXML(enc, f, v); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

func writeFieldXML(enc *xml.Encoder, f modello.Field, v any) error {
	switch f.Kind() {
	case modello.KindModel:
		return writeModelXML(enc, v.(*modello.Model), xml.StartElement{Name: xml.Name{Local: f.Tag()}})
	case modello.KindList:
		elem := f.Elem()
		for _, item := range v.([]any) {
			if !elem.HasValue(item) {
				continue
			}
			if err := writeFieldXML(enc, elem, item); err != nil {
				return err
			}
		}
		return nil
	default:
		name := xml.Name{Local: f.Tag()}
		if err := enc.EncodeToken(xml.StartElement{Name: name}); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.CharData(f.Text(v))); err != nil {
			return err
		}
		return enc.EncodeToken(xml.EndElement{Name: name})
	}
}

func (c *XML) Load(r io.Reader) (*modello.Model, modello.Issues, error) {
	dec := xml.NewDecoder(r)
	var root xml.StartElement
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			root = start
			break
		}
	}
	schema, ok := c.reg.Lookup(root.Name.Local)
	if !ok {
		return nil, nil, &modello.SchemaMismatchError{
			Message: fmt.Sprintf("no schema registered for root element %s", root.Name.Local),
		}
	}
	var warns modello.Issues
	m, err := readModelXML(dec, schema, root, "", &warns)
	if err != nil {
		return nil, nil, err
	}
	return m, warns, nil
}

func readModelXML(dec *xml.Decoder, s *modello.Schema, start xml.StartElement, p modello.Path, warns *modello.Issues) (*modello.Model, error) {
	fields := s.Fields()
	tagIndex := make(map[string]int, len(fields))
	for i, f := range fields {
		tagIndex[f.Tag()] = i
	}
	values := make([]any, len(fields))

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return assembleModelXML(s, values, p)
		case xml.StartElement:
			i, ok := tagIndex[t.Name.Local]
			if !ok {
				// Unrecognized content is a warning, never fatal.
				*warns = append(*warns, modello.Issue{
					Path: p, Code: modello.CodeUnknownKey,
					Message: fmt.Sprintf("unexpected element %s in %s", t.Name.Local, start.Name.Local),
				})
				if err := dec.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			f := fields[i]
			fp := p.Field(f.Name())
			switch f.Kind() {
			case modello.KindModel:
				if values[i] != nil {
					return nil, &modello.SchemaMismatchError{Path: fp, Message: "element appears more than once"}
				}
				child, err := readModelXML(dec, f.Schema(), t, fp, warns)
				if err != nil {
					return nil, err
				}
				values[i] = child
			case modello.KindList:
				items, _ := values[i].([]any)
				item, err := readListItemXML(dec, f.Elem(), t, fp.Index(len(items)), warns)
				if err != nil {
					return nil, err
				}
				values[i] = append(items, item)
			default:
				if values[i] != nil {
					return nil, &modello.SchemaMismatchError{Path: fp, Message: "element appears more than once"}
				}
				text, err := readElementText(dec, t.Name)
				if err != nil {
					return nil, modello.AtPath(err, fp)
				}
				v, err := f.Parse(text)
				if err != nil {
					return nil, modello.AtPath(err, fp)
				}
				values[i] = v
			}
		}
	}
}

func readListItemXML(dec *xml.Decoder, elem modello.Field, start xml.StartElement, p modello.Path, warns *modello.Issues) (any, error) {
	if elem.Kind() == modello.KindModel {
		return readModelXML(dec, elem.Schema(), start, p, warns)
	}
	text, err := readElementText(dec, start.Name)
	if err != nil {
		return nil, modello.AtPath(err, p)
	}
	v, err := elem.Parse(text)
	if err != nil {
		return nil, modello.AtPath(err, p)
	}
	return v, nil
}

// readElementText consumes tokens until the matching end element, collecting
// character data. Child elements inside a scalar element are a structural
// error.
func readElementText(dec *xml.Decoder, name xml.Name) (string, error) {
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			return strings.TrimSpace(b.String()), nil
		case xml.StartElement:
			return "", &modello.SchemaMismatchError{
				Message: fmt.Sprintf("element %s holds text, found child element %s", name.Local, t.Name.Local),
			}
		}
	}
}

// assembleModelXML applies required/default rules and builds the final model.
// A required field whose element was absent and that declares no default
// makes the whole load fail.
func assembleModelXML(s *modello.Schema, values []any, p modello.Path) (*modello.Model, error) {
	m, err := s.New()
	if err != nil {
		return nil, err
	}
	for i, f := range s.Fields() {
		if values[i] == nil {
			if f.Required() && !f.HasDefault() {
				return nil, &modello.SchemaMismatchError{
					Path:    p.Field(f.Name()),
					Message: fmt.Sprintf("required element %s missing", f.Tag()),
				}
			}
			continue
		}
		v := values[i]
		if f.Kind() == modello.KindList {
			// Route the accumulated items through Parse for the trailing
			// empty-element trim.
			v, err = f.Parse(v)
			if err != nil {
				return nil, modello.AtPath(err, p.Field(f.Name()))
			}
		}
		if err := m.Set(f.Name(), v); err != nil {
			return nil, modello.AtPath(err, p.Field(f.Name()))
		}
	}
	return m, nil
}
