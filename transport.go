package modello

import (
	"bytes"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// TransportList is an ordered sequence inside a transport value.
type TransportList []any

// TransportMap is the mapping node of the transport form. It keeps key order
// (field declaration order), which plain Go maps would lose, so interchange
// codecs can emit keys in the canonical order.
//
// Leaf values are string, int64, bool, TransportList or *TransportMap;
// decimals and dates travel as strings to avoid precision loss.
type TransportMap struct {
	keys   []string
	values map[string]any
}

// NewTransportMap returns an empty ordered mapping.
func NewTransportMap() *TransportMap {
	return &TransportMap{values: make(map[string]any)}
}

// Set stores a value, appending the key on first use.
func (t *TransportMap) Set(key string, v any) {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = v
}

// Get returns the value stored under key.
func (t *TransportMap) Get(key string) (any, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Keys returns the keys in insertion order. The slice is shared: callers
// must not modify it.
func (t *TransportMap) Keys() []string { return t.keys }

// Len returns the number of keys.
func (t *TransportMap) Len() int { return len(t.keys) }

// Flatten converts to a plain map for order-insensitive consumers.
func (t *TransportMap) Flatten() map[string]any {
	out := make(map[string]any, len(t.keys))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// Equal compares two transport values structurally, independent of the
// textual rendering (indentation, quoting).
func (t *TransportMap) Equal(other *TransportMap) bool {
	if other == nil || len(t.keys) != len(other.keys) {
		return false
	}
	for i, k := range t.keys {
		if other.keys[i] != k {
			return false
		}
		if !transportEqual(t.values[k], other.values[k]) {
			return false
		}
	}
	return true
}

func transportEqual(a, b any) bool {
	switch av := a.(type) {
	case *TransportMap:
		bv, ok := b.(*TransportMap)
		return ok && av.Equal(bv)
	case TransportList:
		bv, ok := b.(TransportList)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !transportEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// MarshalJSON emits the mapping with keys in insertion order. Leaf encoding
// is delegated to goccy/go-json.
func (t *TransportMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(t.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML emits an ordered mapping node, so YAML output follows field
// declaration order like every other representation.
func (t *TransportMap) MarshalYAML() (any, error) {
	return transportYAMLNode(t)
}

func transportYAMLNode(v any) (*yaml.Node, error) {
	switch tv := v.(type) {
	case *TransportMap:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range tv.keys {
			child, err := transportYAMLNode(tv.values[k])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				child)
		}
		return node, nil
	case TransportList:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range tv {
			child, err := transportYAMLNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case string:
		// Tagging strings keeps numeric-looking decimal text quoted.
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: tv}, nil
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(tv, 10)}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(tv)}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		return nil, fmt.Errorf("modello: %T is not a transport value", v)
	}
}
