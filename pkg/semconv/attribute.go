package semconv

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Attribute is one resolved semantic-convention attribute definition.
// Matched attributes are shared read-only across every advisor invoked for a
// sample; advisors never mutate them.
type Attribute struct {
	Name             string           `json:"name"`
	Type             AttributeType    `json:"type"`
	Brief            string           `json:"brief,omitempty"`
	Note             string           `json:"note,omitempty"`
	RequirementLevel RequirementLevel `json:"requirement_level"`
	Stability        Stability        `json:"stability,omitempty"`
	Deprecated       *Deprecated      `json:"deprecated,omitempty"`
	Examples         []any            `json:"examples,omitempty"`
}

// UnmarshalYAML decodes an attribute definition, resolving the type union
// from its YAML form. A missing requirement_level defaults to recommended.
func (a *Attribute) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name             string           `yaml:"name"`
		Type             yaml.Node        `yaml:"type"`
		Brief            string           `yaml:"brief"`
		Note             string           `yaml:"note"`
		RequirementLevel RequirementLevel `yaml:"requirement_level"`
		Stability        Stability        `yaml:"stability"`
		Deprecated       *Deprecated      `yaml:"deprecated"`
		Examples         []any            `yaml:"examples"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Name == "" {
		return fmt.Errorf("attribute definition is missing a name")
	}

	*a = Attribute{
		Name:             raw.Name,
		Brief:            raw.Brief,
		Note:             raw.Note,
		RequirementLevel: raw.RequirementLevel,
		Stability:        raw.Stability,
		Deprecated:       raw.Deprecated,
		Examples:         raw.Examples,
	}

	if raw.Type.Kind == 0 {
		// Untyped registry entries behave as "any" for compatibility checks.
		a.Type = TypeAny
		return nil
	}
	attrType, err := parseAttributeType(&raw.Type)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", raw.Name, err)
	}
	a.Type = attrType
	return nil
}

// IsTemplate reports whether the attribute declares a template type.
func (a *Attribute) IsTemplate() bool {
	_, ok := a.Type.(TemplateType)
	return ok
}
