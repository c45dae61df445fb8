// Package sample defines the closed set of telemetry units a live check can
// evaluate: attributes, metrics, and metric data points. Samples are
// read-only inputs to advisors; the live-check result slot on each sample is
// owned by the surrounding session.
package sample

import (
	"github.com/polisai/semcheck/pkg/advice"
	"github.com/polisai/semcheck/pkg/semconv"
)

// Sample is one observed telemetry unit. The union is closed: the only
// implementations are Attribute, Metric, NumberDataPoint and
// HistogramDataPoint in this package.
type Sample interface {
	sealed()
}

// DataPoint is the subset of sample kinds that can nest under a metric.
type DataPoint interface {
	Sample
	dataPoint()
}

// Result aggregates the advice the session attached to one sample.
type Result struct {
	AllAdvice    []advice.Advice `json:"all_advice"`
	HighestLevel *advice.Level   `json:"highest_advice_level,omitempty"`
}

// NewResult builds a result from the advice collected for a sample.
func NewResult(items []advice.Advice) *Result {
	res := &Result{AllAdvice: items}
	if highest, ok := advice.Highest(items); ok {
		res.HighestLevel = &highest
	}
	return res
}

// Attribute is an observed attribute sample. Value and Type are optional:
// ingestion may only know the name.
type Attribute struct {
	Name   string                        `json:"name" yaml:"name"`
	Value  any                           `json:"value,omitempty" yaml:"value"`
	Type   *semconv.PrimitiveOrArrayType `json:"type,omitempty" yaml:"type"`
	Result *Result                       `json:"live_check_result,omitempty" yaml:"-"`
}

func (*Attribute) sealed() {}

// Metric is an observed metric sample with its nested data points.
type Metric struct {
	Name       string      `json:"name" yaml:"name"`
	Instrument Instrument  `json:"instrument" yaml:"instrument"`
	Unit       string      `json:"unit" yaml:"unit"`
	DataPoints []DataPoint `json:"data_points,omitempty" yaml:"-"`
	Result     *Result     `json:"live_check_result,omitempty" yaml:"-"`
}

func (*Metric) sealed() {}

// NumberDataPoint is one observed number data point of a metric.
type NumberDataPoint struct {
	Value      float64     `json:"value" yaml:"value"`
	Attributes []Attribute `json:"attributes,omitempty" yaml:"attributes"`
	Result     *Result     `json:"live_check_result,omitempty" yaml:"-"`
}

func (*NumberDataPoint) sealed()    {}
func (*NumberDataPoint) dataPoint() {}

// HistogramDataPoint is one observed histogram data point of a metric.
type HistogramDataPoint struct {
	Count      uint64      `json:"count" yaml:"count"`
	Sum        float64     `json:"sum,omitempty" yaml:"sum"`
	Attributes []Attribute `json:"attributes,omitempty" yaml:"attributes"`
	Result     *Result     `json:"live_check_result,omitempty" yaml:"-"`
}

func (*HistogramDataPoint) sealed()    {}
func (*HistogramDataPoint) dataPoint() {}

// Tag returns the wire tag naming a sample's kind, used for the tagged JSON
// form fed to policy evaluation.
func Tag(s Sample) string {
	switch s.(type) {
	case *Attribute:
		return "attribute"
	case *Metric:
		return "metric"
	case *NumberDataPoint:
		return "number_data_point"
	case *HistogramDataPoint:
		return "histogram_data_point"
	}
	return ""
}

// SetResult attaches the session-owned live-check result to a sample.
func SetResult(s Sample, res *Result) {
	switch typed := s.(type) {
	case *Attribute:
		typed.Result = res
	case *Metric:
		typed.Result = res
	case *NumberDataPoint:
		typed.Result = res
	case *HistogramDataPoint:
		typed.Result = res
	}
}
