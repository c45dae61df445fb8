package semconv

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// AttributeType is the closed union of types a registry attribute can
// declare: a primitive-or-array type, a template type, or an enum type.
type AttributeType interface {
	attributeType()
}

// PrimitiveOrArrayType is a primitive or array-of-primitive attribute type.
type PrimitiveOrArrayType string

const (
	TypeBoolean  PrimitiveOrArrayType = "boolean"
	TypeInt      PrimitiveOrArrayType = "int"
	TypeDouble   PrimitiveOrArrayType = "double"
	TypeString   PrimitiveOrArrayType = "string"
	TypeBooleans PrimitiveOrArrayType = "boolean[]"
	TypeInts     PrimitiveOrArrayType = "int[]"
	TypeDoubles  PrimitiveOrArrayType = "double[]"
	TypeStrings  PrimitiveOrArrayType = "string[]"
	TypeAny      PrimitiveOrArrayType = "any"
)

func (PrimitiveOrArrayType) attributeType() {}

func (t PrimitiveOrArrayType) String() string { return string(t) }

// IsCompatibleWith reports whether an observed value of type t is acceptable
// where expected is declared. The relation is directional
// (observed-acceptable-for-expected); "any" on either side is compatible
// with everything.
func (t PrimitiveOrArrayType) IsCompatibleWith(expected PrimitiveOrArrayType) bool {
	return t == TypeAny || expected == TypeAny || t == expected
}

var primitiveOrArrayTypes = map[PrimitiveOrArrayType]struct{}{
	TypeBoolean:  {},
	TypeInt:      {},
	TypeDouble:   {},
	TypeString:   {},
	TypeBooleans: {},
	TypeInts:     {},
	TypeDoubles:  {},
	TypeStrings:  {},
	TypeAny:      {},
}

// ParsePrimitiveOrArrayType validates the string form of a primitive-or-array type.
func ParsePrimitiveOrArrayType(s string) (PrimitiveOrArrayType, error) {
	t := PrimitiveOrArrayType(s)
	if _, ok := primitiveOrArrayTypes[t]; !ok {
		return "", fmt.Errorf("unknown attribute type %q", s)
	}
	return t, nil
}

// TemplateType is a template attribute type such as "template[string]". A
// template always reduces to exactly one primitive-or-array type for
// compatibility checks.
type TemplateType struct {
	Of PrimitiveOrArrayType
}

func (TemplateType) attributeType() {}

func (t TemplateType) String() string { return "template[" + string(t.Of) + "]" }

// MarshalJSON encodes the template in its registry string form.
func (t TemplateType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// EnumType is a named set of allowed values, each an int- or string-typed literal.
type EnumType struct {
	Members []EnumMember `json:"members"`
}

func (EnumType) attributeType() {}

// EnumMember is one allowed value of an enum attribute type.
type EnumMember struct {
	ID         string      `json:"id" yaml:"id"`
	Value      any         `json:"value" yaml:"-"`
	Brief      string      `json:"brief,omitempty" yaml:"brief"`
	Note       string      `json:"note,omitempty" yaml:"note"`
	Stability  Stability   `json:"stability,omitempty" yaml:"stability"`
	Deprecated *Deprecated `json:"deprecated,omitempty" yaml:"deprecated"`
}

// UnmarshalYAML decodes a member, constraining the literal value to int or string.
func (m *EnumMember) UnmarshalYAML(node *yaml.Node) error {
	type plain EnumMember
	var raw struct {
		plain `yaml:",inline"`
		Value yaml.Node `yaml:"value"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*m = EnumMember(raw.plain)

	value, err := decodeEnumValue(&raw.Value)
	if err != nil {
		return fmt.Errorf("enum member %q: %w", m.ID, err)
	}
	m.Value = value
	return nil
}

func decodeEnumValue(node *yaml.Node) (any, error) {
	if node.Kind == 0 {
		return nil, fmt.Errorf("missing value")
	}
	var i int64
	if err := node.Decode(&i); err == nil {
		return i, nil
	}
	var s string
	if err := node.Decode(&s); err == nil {
		return s, nil
	}
	return nil, fmt.Errorf("value must be an int or string literal")
}

// parseAttributeType decodes the registry YAML form of an attribute type: a
// scalar primitive/template name, or a mapping with a members list for enums.
func parseAttributeType(node *yaml.Node) (AttributeType, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, err
		}
		if inner, ok := strings.CutPrefix(s, "template["); ok {
			inner, ok = strings.CutSuffix(inner, "]")
			if !ok {
				return nil, fmt.Errorf("malformed template type %q", s)
			}
			of, err := ParsePrimitiveOrArrayType(inner)
			if err != nil {
				return nil, fmt.Errorf("malformed template type %q: %w", s, err)
			}
			return TemplateType{Of: of}, nil
		}
		return ParsePrimitiveOrArrayType(s)
	case yaml.MappingNode:
		var enum struct {
			Members []EnumMember `yaml:"members"`
		}
		if err := node.Decode(&enum); err != nil {
			return nil, err
		}
		if len(enum.Members) == 0 {
			return nil, fmt.Errorf("enum type declares no members")
		}
		return EnumType{Members: enum.Members}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type node")
	}
}
