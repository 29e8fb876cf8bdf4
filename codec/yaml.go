package codec

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/fatturatools/modello"
)

// YAML converts between Models and YAML transport documents. Key order
// follows field declaration order via the transport mapping's ordered
// marshalling.
type YAML struct {
	schema *modello.Schema
}

// NewYAML builds the YAML codec for one schema.
func NewYAML(s *modello.Schema) *YAML {
	return &YAML{schema: s}
}

func (c *YAML) Binary() bool         { return false }
func (c *YAML) Extensions() []string { return []string{"yaml", "yml"} }

func (c *YAML) Write(m *modello.Model, w io.Writer) error {
	if _, err := io.WriteString(w, "---\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m.ToTransport()); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func (c *YAML) Load(r io.Reader) (*modello.Model, modello.Issues, error) {
	dec := yaml.NewDecoder(r)
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, &modello.ParseError{Value: nil, Message: "invalid YAML document: " + err.Error()}
	}
	m, err := c.schema.FromMap(raw)
	if err != nil {
		return nil, nil, err
	}
	return m, nil, nil
}
