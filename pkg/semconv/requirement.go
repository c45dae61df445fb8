package semconv

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RequirementKind enumerates the four requirement levels an attribute can
// declare. The zero value is Recommended, the registry default when no level
// is spelled out.
type RequirementKind int

const (
	RequirementRecommended RequirementKind = iota
	RequirementRequired
	RequirementOptIn
	RequirementConditionallyRequired
)

// RequirementLevel is the declared necessity of an attribute within its
// group. Text carries the recommendation or condition wording when the
// registry provides one; it is empty for the basic forms.
type RequirementLevel struct {
	Kind RequirementKind
	Text string
}

func (r RequirementLevel) String() string {
	switch r.Kind {
	case RequirementRequired:
		return "required"
	case RequirementRecommended:
		return "recommended"
	case RequirementOptIn:
		return "opt_in"
	case RequirementConditionallyRequired:
		return "conditionally_required"
	}
	return fmt.Sprintf("requirement(%d)", int(r.Kind))
}

// UnmarshalYAML accepts the bare string forms ("required", "recommended",
// "opt_in") and the worded mapping forms ({recommended: ...}, {opt_in: ...},
// {conditionally_required: ...}).
func (r *RequirementLevel) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		switch s {
		case "required":
			*r = RequirementLevel{Kind: RequirementRequired}
		case "recommended":
			*r = RequirementLevel{Kind: RequirementRecommended}
		case "opt_in":
			*r = RequirementLevel{Kind: RequirementOptIn}
		default:
			return fmt.Errorf("unknown requirement level %q", s)
		}
		return nil
	case yaml.MappingNode:
		var worded map[string]string
		if err := node.Decode(&worded); err != nil {
			return err
		}
		if len(worded) != 1 {
			return fmt.Errorf("requirement level mapping must carry exactly one key")
		}
		for key, text := range worded {
			switch key {
			case "recommended":
				*r = RequirementLevel{Kind: RequirementRecommended, Text: text}
			case "opt_in":
				*r = RequirementLevel{Kind: RequirementOptIn, Text: text}
			case "conditionally_required":
				*r = RequirementLevel{Kind: RequirementConditionallyRequired, Text: text}
			default:
				return fmt.Errorf("unknown requirement level %q", key)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported requirement level node")
	}
}

// MarshalJSON mirrors the YAML shape: a bare string for basic levels, a
// single-key object for worded ones.
func (r RequirementLevel) MarshalJSON() ([]byte, error) {
	if r.Text == "" && r.Kind != RequirementConditionallyRequired {
		return json.Marshal(r.String())
	}
	return json.Marshal(map[string]string{r.String(): r.Text})
}
