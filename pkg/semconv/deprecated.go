package semconv

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Deprecation reason classifications surfaced in advice values.
const (
	DeprecatedRenamed       = "renamed"
	DeprecatedObsoleted     = "obsoleted"
	DeprecatedUncategorized = "uncategorized"
)

// Deprecated records a deprecation marker on a registry attribute or group.
type Deprecated struct {
	Reason    string `yaml:"reason" json:"reason"`
	RenamedTo string `yaml:"renamed_to,omitempty" json:"renamed_to,omitempty"`
	Note      string `yaml:"note,omitempty" json:"note,omitempty"`
}

// UnmarshalYAML accepts the structured mapping form and the legacy bare
// string form; the latter folds into an uncategorized marker carrying the
// string as its note.
func (d *Deprecated) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var note string
		if err := node.Decode(&note); err != nil {
			return err
		}
		*d = Deprecated{Reason: DeprecatedUncategorized, Note: note}
		return nil
	}
	type plain Deprecated
	var raw plain
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*d = Deprecated(raw)
	return nil
}

// Classification folds the marker into one of renamed, obsoleted or
// uncategorized; markers lacking a structured reason are uncategorized.
func (d *Deprecated) Classification() string {
	switch d.Reason {
	case DeprecatedRenamed:
		return DeprecatedRenamed
	case DeprecatedObsoleted:
		return DeprecatedObsoleted
	default:
		return DeprecatedUncategorized
	}
}

// Describe renders the marker as a human-readable sentence, preferring the
// registry-authored note when one exists.
func (d *Deprecated) Describe() string {
	if d.Note != "" {
		return d.Note
	}
	switch d.Classification() {
	case DeprecatedRenamed:
		if d.RenamedTo != "" {
			return fmt.Sprintf("Replaced by `%s`.", d.RenamedTo)
		}
		return "Renamed."
	case DeprecatedObsoleted:
		return "Obsoleted."
	default:
		return "Deprecated."
	}
}
