package semconv

import "fmt"

// Instrument enumerates the metric instruments the conventions define.
type Instrument string

const (
	InstrumentCounter       Instrument = "counter"
	InstrumentUpDownCounter Instrument = "updowncounter"
	InstrumentGauge         Instrument = "gauge"
	InstrumentHistogram     Instrument = "histogram"
)

func (i Instrument) String() string { return string(i) }

// ParseInstrument classifies an instrument name, reporting whether it is one
// the conventions support.
func ParseInstrument(name string) (Instrument, bool) {
	switch Instrument(name) {
	case InstrumentCounter, InstrumentUpDownCounter, InstrumentGauge, InstrumentHistogram:
		return Instrument(name), true
	default:
		return "", false
	}
}

// Group is one resolved semantic-convention group definition. For metric
// groups, MetricName, Instrument and Unit describe the expected shape of the
// signal; Attributes lists the definitions the group resolves to, in
// registry order.
type Group struct {
	ID         string      `json:"id" yaml:"id"`
	Type       string      `json:"type" yaml:"type"`
	Brief      string      `json:"brief,omitempty" yaml:"brief"`
	Note       string      `json:"note,omitempty" yaml:"note"`
	MetricName string      `json:"metric_name,omitempty" yaml:"metric_name"`
	Instrument Instrument  `json:"instrument,omitempty" yaml:"instrument"`
	Unit       string      `json:"unit,omitempty" yaml:"unit"`
	Stability  Stability   `json:"stability,omitempty" yaml:"stability"`
	Deprecated *Deprecated `json:"deprecated,omitempty" yaml:"deprecated"`
	Attributes []Attribute `json:"attributes,omitempty" yaml:"attributes"`
}

// Validate checks the fields live checking relies on.
func (g *Group) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("group definition is missing an id")
	}
	if g.Instrument != "" {
		if _, ok := ParseInstrument(string(g.Instrument)); !ok {
			return fmt.Errorf("group %q: unknown instrument %q", g.ID, g.Instrument)
		}
	}
	return nil
}
