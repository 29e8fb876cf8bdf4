package codec

import (
	"io"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/fatturatools/modello"
)

// JSON converts between Models and JSON transport documents. Keys follow
// field declaration order; decimal and date values travel as strings. The
// default rendering indents one space per nesting level.
type JSON struct {
	schema  *modello.Schema
	indent  int
	compact bool
}

// NewJSON builds the JSON codec for one schema.
func NewJSON(s *modello.Schema) *JSON {
	return &JSON{schema: s, indent: 1}
}

// WithIndent returns a copy rendering with n spaces per nesting level.
func (c *JSON) WithIndent(n int) *JSON {
	c2 := *c
	c2.indent = n
	c2.compact = false
	return &c2
}

// Compact returns a copy rendering each document as one undecorated line,
// with no inserted whitespace. Useful to emit one document per line.
func (c *JSON) Compact() *JSON {
	c2 := *c
	c2.compact = true
	return &c2
}

func (c *JSON) Binary() bool         { return false }
func (c *JSON) Extensions() []string { return []string{"json"} }

func (c *JSON) Write(m *modello.Model, w io.Writer) error {
	t := m.ToTransport()
	var out []byte
	var err error
	if c.compact {
		out, err = json.Marshal(t)
	} else {
		out, err = json.MarshalIndent(t, "", strings.Repeat(" ", c.indent))
	}
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}

func (c *JSON) Load(r io.Reader) (*modello.Model, modello.Issues, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, &modello.ParseError{Value: nil, Message: "invalid JSON document: " + err.Error()}
	}
	m, err := c.schema.FromMap(raw)
	if err != nil {
		return nil, nil, err
	}
	return m, nil, nil
}
