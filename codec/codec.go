// Package codec provides the bidirectional converters between a Model and
// its external representations: structured markup (XML), interchange
// transport documents (JSON, YAML), and a loadable Go source-expression
// form. Every codec is an explicit value built over caller-supplied schemas
// or registries; there is no process-wide codec table.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatturatools/modello"
)

// Codec converts between a Model and one external representation.
//
// Load either produces a complete Model or fails: a SchemaMismatch or
// ParseError aborts the whole load. The returned Issues carry non-fatal load
// warnings (e.g. unrecognized markup elements). Write renders any model,
// independent of how it was built.
//
// Binary reports whether the codec's source and sink carry bytes rather than
// text; callers opening files or buffers must match the mode.
type Codec interface {
	Load(r io.Reader) (*modello.Model, modello.Issues, error)
	Write(m *modello.Model, w io.Writer) error
	Binary() bool
	Extensions() []string
}

// Save writes a model to a file, creating or truncating it. I/O failures
// propagate unmodified.
func Save(c Codec, m *modello.Model, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Write(m, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadPath loads a model from a file. I/O failures propagate unmodified.
func LoadPath(c Codec, path string) (*modello.Model, modello.Issues, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return c.Load(f)
}

// Set is a collection of codecs looked up by file extension.
type Set struct {
	codecs []Codec
}

// NewSet builds a set over the given codecs, in lookup precedence order.
func NewSet(codecs ...Codec) *Set {
	return &Set{codecs: codecs}
}

// ForPath resolves the codec handling the extension of path.
func (s *Set) ForPath(path string) (Codec, bool) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 || i == len(path)-1 {
		return nil, false
	}
	ext := strings.ToLower(path[i+1:])
	for _, c := range s.codecs {
		for _, e := range c.Extensions() {
			if e == ext {
				return c, true
			}
		}
	}
	return nil, false
}

// Unwrapper extracts the payload from a cryptographic signature container.
// Implementations live outside this module; the signed codec only requires
// that unwrapping happens before the markup codec sees the bytes.
type Unwrapper interface {
	Unwrap(data []byte) ([]byte, error)
}

// Signed is a load-only codec for signature-wrapped documents: it unwraps
// the container and hands the payload to the inner codec.
type Signed struct {
	inner  Codec
	unwrap Unwrapper
}

// NewSigned wraps inner behind the given container unwrapper.
func NewSigned(inner Codec, u Unwrapper) *Signed {
	return &Signed{inner: inner, unwrap: u}
}

func (c *Signed) Binary() bool         { return true }
func (c *Signed) Extensions() []string { return []string{"p7m"} }

func (c *Signed) Load(r io.Reader) (*modello.Model, modello.Issues, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	payload, err := c.unwrap.Unwrap(data)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: cannot unwrap signature container: %w", err)
	}
	return c.inner.Load(bytes.NewReader(payload))
}

func (c *Signed) Write(m *modello.Model, w io.Writer) error {
	return fmt.Errorf("codec: signed container codec is load-only")
}
