// Package schema holds the canonical table of layout constants and enum
// values shared by every language binding of the message envelope.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"
)

//go:embed msg_ids.yaml
var defaultTable []byte

var ErrSchema = errors.New("invalid message schema")

// Entry is a named integer: a layout constant or an enum member.
type Entry struct {
	Name  string
	Value int
}

type Enum struct {
	Name    string
	Members []Entry
}

// Schema keeps constants and enums in declaration order.
type Schema struct {
	Constants []Entry
	Enums     []Enum
}

// Default parses the embedded table.
func Default() (*Schema, error) {
	return Parse(defaultTable)
}

// Load parses a table read from r.
func Load(r io.Reader) (*Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a table. Top-level scalars become constants and top-level
// sequences of single-entry maps become enums.
func Parse(data []byte) (*Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrSchema)
	}

	s := &Schema{}
	seen := make(map[string]bool)
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		name, val := root.Content[i].Value, root.Content[i+1]
		if seen[name] {
			return nil, fmt.Errorf("%w: %s declared twice", ErrSchema, name)
		}
		seen[name] = true

		switch val.Kind {
		case yaml.ScalarNode:
			v, err := decodeValue(name, val)
			if err != nil {
				return nil, err
			}
			s.Constants = append(s.Constants, Entry{Name: name, Value: v})
		case yaml.SequenceNode:
			e, err := decodeEnum(name, val)
			if err != nil {
				return nil, err
			}
			s.Enums = append(s.Enums, e)
		default:
			return nil, fmt.Errorf("%w: %s (line %d) is neither a constant nor an enum", ErrSchema, name, val.Line)
		}
	}
	return s, nil
}

func decodeEnum(name string, seq *yaml.Node) (Enum, error) {
	e := Enum{Name: name}
	names := make(map[string]bool)
	values := make(map[int]string)
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return Enum{}, fmt.Errorf("%w: %s (line %d): members are single `NAME: value` entries", ErrSchema, name, item.Line)
		}
		member := item.Content[0].Value
		v, err := decodeValue(name+"."+member, item.Content[1])
		if err != nil {
			return Enum{}, err
		}
		if v > math.MaxUint16 {
			return Enum{}, fmt.Errorf("%w: %s.%s = %d does not fit 16 bits", ErrSchema, name, member, v)
		}
		if names[member] {
			return Enum{}, fmt.Errorf("%w: %s.%s declared twice", ErrSchema, name, member)
		}
		if prev, ok := values[v]; ok {
			return Enum{}, fmt.Errorf("%w: %s.%s reuses value %d of %s", ErrSchema, name, member, v, prev)
		}
		names[member] = true
		values[v] = member
		e.Members = append(e.Members, Entry{Name: member, Value: v})
	}
	return e, nil
}

func decodeValue(name string, n *yaml.Node) (int, error) {
	var v int
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!int" {
		return 0, fmt.Errorf("%w: %s (line %d) must be an integer", ErrSchema, name, n.Line)
	}
	if err := n.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrSchema, name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s is negative", ErrSchema, name)
	}
	return v, nil
}

// Constant looks up a layout constant by name.
func (s *Schema) Constant(name string) (int, bool) {
	for _, c := range s.Constants {
		if c.Name == name {
			return c.Value, true
		}
	}
	return 0, false
}

// Enum looks up an enum table by name.
func (s *Schema) Enum(name string) (Enum, bool) {
	for _, e := range s.Enums {
		if e.Name == name {
			return e, true
		}
	}
	return Enum{}, false
}
