package sample

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/polisai/semcheck/pkg/semconv"
)

// Instrument is the observed instrument of a metric sample: either one of
// the instruments the conventions support, or the raw name of an
// unsupported one.
type Instrument struct {
	kind semconv.Instrument
	raw  string
}

// SupportedInstrument wraps a convention-defined instrument kind.
func SupportedInstrument(kind semconv.Instrument) Instrument {
	return Instrument{kind: kind}
}

// UnsupportedInstrument records an instrument name outside the conventions.
func UnsupportedInstrument(raw string) Instrument {
	return Instrument{raw: raw}
}

// ParseInstrument classifies an observed instrument name.
func ParseInstrument(name string) Instrument {
	if kind, ok := semconv.ParseInstrument(name); ok {
		return SupportedInstrument(kind)
	}
	return UnsupportedInstrument(name)
}

// Kind returns the supported instrument kind; ok is false for unsupported
// instruments.
func (i Instrument) Kind() (semconv.Instrument, bool) {
	return i.kind, i.kind != ""
}

func (i Instrument) String() string {
	if i.kind != "" {
		return string(i.kind)
	}
	return i.raw
}

// MarshalJSON encodes the instrument as its observed name.
func (i Instrument) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON decodes an observed instrument name, classifying it.
func (i *Instrument) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*i = ParseInstrument(name)
	return nil
}

// UnmarshalYAML decodes an observed instrument name from a sample document.
func (i *Instrument) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	*i = ParseInstrument(name)
	return nil
}
