// Package ingest converts external sample representations into the closed
// sample union the checker evaluates: plain-text attribute lines, JSON/YAML
// sample documents, and OTLP metric exports received over gRPC.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/polisai/semcheck/pkg/sample"
	"github.com/polisai/semcheck/pkg/semconv"
)

// Supported input formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ReadSamples parses the given format from r into samples.
func ReadSamples(r io.Reader, format string) ([]sample.Sample, error) {
	switch format {
	case FormatText:
		return readTextSamples(r)
	case FormatJSON, FormatYAML:
		return readDocumentSamples(r)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

// readTextSamples reads one attribute per line: a bare name, or name=value
// where value is a JSON literal (a bare word falls back to a string). Types
// are inferred from values. Blank lines and # comments are skipped.
func readTextSamples(r io.Reader) ([]sample.Sample, error) {
	var samples []sample.Sample
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, rawValue, hasValue := strings.Cut(line, "=")
		attr := &sample.Attribute{Name: strings.TrimSpace(name)}
		if hasValue {
			var value any
			if err := json.Unmarshal([]byte(rawValue), &value); err != nil {
				value = strings.TrimSpace(rawValue)
			}
			attr.Value = value
			attr.Type = sample.InferType(value)
		}
		samples = append(samples, attr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	return samples, nil
}

// Document shapes for JSON/YAML sample files. YAML is a superset of JSON, so
// one decoder covers both formats.
type sampleDoc struct {
	Attribute *attributeDoc `yaml:"attribute"`
	Metric    *metricDoc    `yaml:"metric"`
}

type attributeDoc struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
	Type  string `yaml:"type"`
}

type metricDoc struct {
	Name       string         `yaml:"name"`
	Instrument string         `yaml:"instrument"`
	Unit       string         `yaml:"unit"`
	DataPoints []dataPointDoc `yaml:"data_points"`
}

type dataPointDoc struct {
	NumberDataPoint    *numberDataPointDoc    `yaml:"number_data_point"`
	HistogramDataPoint *histogramDataPointDoc `yaml:"histogram_data_point"`
}

type numberDataPointDoc struct {
	Value      float64        `yaml:"value"`
	Attributes []attributeDoc `yaml:"attributes"`
}

type histogramDataPointDoc struct {
	Count      uint64         `yaml:"count"`
	Sum        float64        `yaml:"sum"`
	Attributes []attributeDoc `yaml:"attributes"`
}

func readDocumentSamples(r io.Reader) ([]sample.Sample, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	var docs []sampleDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse samples: %w", err)
	}

	samples := make([]sample.Sample, 0, len(docs))
	for i, doc := range docs {
		converted, err := doc.toSample()
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		samples = append(samples, converted)
	}
	return samples, nil
}

func (d sampleDoc) toSample() (sample.Sample, error) {
	switch {
	case d.Attribute != nil && d.Metric != nil:
		return nil, fmt.Errorf("document declares more than one sample kind")
	case d.Attribute != nil:
		return d.Attribute.toSample()
	case d.Metric != nil:
		return d.Metric.toSample()
	default:
		return nil, fmt.Errorf("document declares no sample kind")
	}
}

func (d *attributeDoc) toSample() (*sample.Attribute, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("attribute sample is missing a name")
	}
	attr := &sample.Attribute{Name: d.Name, Value: d.Value}
	if d.Type != "" {
		observed, err := semconv.ParsePrimitiveOrArrayType(d.Type)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", d.Name, err)
		}
		attr.Type = &observed
	} else {
		attr.Type = sample.InferType(d.Value)
	}
	return attr, nil
}

func (d *metricDoc) toSample() (*sample.Metric, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("metric sample is missing a name")
	}
	metric := &sample.Metric{
		Name:       d.Name,
		Instrument: sample.ParseInstrument(d.Instrument),
		Unit:       d.Unit,
	}
	for i, point := range d.DataPoints {
		converted, err := point.toDataPoint()
		if err != nil {
			return nil, fmt.Errorf("metric %q data point %d: %w", d.Name, i, err)
		}
		metric.DataPoints = append(metric.DataPoints, converted)
	}
	return metric, nil
}

func (d dataPointDoc) toDataPoint() (sample.DataPoint, error) {
	switch {
	case d.NumberDataPoint != nil && d.HistogramDataPoint != nil:
		return nil, fmt.Errorf("document declares more than one data point kind")
	case d.NumberDataPoint != nil:
		attrs, err := attributeList(d.NumberDataPoint.Attributes)
		if err != nil {
			return nil, err
		}
		return &sample.NumberDataPoint{Value: d.NumberDataPoint.Value, Attributes: attrs}, nil
	case d.HistogramDataPoint != nil:
		attrs, err := attributeList(d.HistogramDataPoint.Attributes)
		if err != nil {
			return nil, err
		}
		return &sample.HistogramDataPoint{
			Count:      d.HistogramDataPoint.Count,
			Sum:        d.HistogramDataPoint.Sum,
			Attributes: attrs,
		}, nil
	default:
		return nil, fmt.Errorf("document declares no data point kind")
	}
}

func attributeList(docs []attributeDoc) ([]sample.Attribute, error) {
	attrs := make([]sample.Attribute, 0, len(docs))
	for i := range docs {
		attr, err := docs[i].toSample()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, *attr)
	}
	return attrs, nil
}
