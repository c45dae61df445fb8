// Package advice defines the advisory result model shared by every advisor:
// a single finding with a stable type identifier, an offending or expected
// value, a human-readable message, and an ordered severity level.
package advice

import (
	"encoding/json"
	"fmt"
)

// Level ranks the severity of an advice item. Levels are ordered:
// Information < Improvement < Violation.
type Level int

const (
	// LevelInformation carries context the operator may act on, no action required.
	LevelInformation Level = iota
	// LevelImprovement suggests a change that would improve the telemetry.
	LevelImprovement
	// LevelViolation marks a breach of the semantic conventions.
	LevelViolation
)

var levelNames = map[Level]string{
	LevelInformation: "information",
	LevelImprovement: "improvement",
	LevelViolation:   "violation",
}

// ParseLevel converts the wire form of a level back to its Level value.
func ParseLevel(s string) (Level, error) {
	for level, name := range levelNames {
		if name == s {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown advice level %q", s)
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// MarshalJSON encodes the level as its lowercase wire string.
func (l Level) MarshalJSON() ([]byte, error) {
	name, ok := levelNames[l]
	if !ok {
		return nil, fmt.Errorf("unknown advice level %d", int(l))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes the lowercase wire string into a Level.
func (l *Level) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// Advice is a single finding produced by an advisor for one sample. Values
// are constructed fresh per check invocation and never mutated afterwards;
// ownership passes to the caller that aggregates results.
type Advice struct {
	// AdviceType is a short stable identifier, e.g. "type_mismatch".
	AdviceType string `json:"advice_type"`
	// Value carries the offending or expected value as a JSON-compatible value.
	Value any `json:"value"`
	// Message is a human-readable explanation of the finding.
	Message string `json:"message"`
	// AdviceLevel is the severity of the finding.
	AdviceLevel Level `json:"advice_level"`
}

// Highest returns the highest severity present in items. The second return
// is false when items is empty.
func Highest(items []Advice) (Level, bool) {
	if len(items) == 0 {
		return 0, false
	}
	highest := items[0].AdviceLevel
	for _, item := range items[1:] {
		if item.AdviceLevel > highest {
			highest = item.AdviceLevel
		}
	}
	return highest, true
}
