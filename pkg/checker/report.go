package checker

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/polisai/semcheck/pkg/advice"
	"github.com/polisai/semcheck/pkg/sample"
	"github.com/polisai/semcheck/pkg/semconv"
)

// Statistics aggregates advice across every sample a session evaluated.
type Statistics struct {
	TotalSamples       int            `json:"total_samples"`
	TotalAdvisories    int            `json:"total_advisories"`
	NoAdviceCount      int            `json:"no_advice_count"`
	AdviceLevelCounts  map[string]int `json:"advice_level_counts"`
	HighestLevelCounts map[string]int `json:"highest_advice_level_counts"`
	AdviceTypeCounts   map[string]int `json:"advice_type_counts"`

	// Coverage fractions are populated by Finalize.
	RegistryAttributeCoverage float64 `json:"registry_attribute_coverage"`
	RegistryMetricCoverage    float64 `json:"registry_metric_coverage"`

	seenAttributes map[string]struct{}
	seenMetrics    map[string]struct{}
}

func newStatistics() *Statistics {
	return &Statistics{
		AdviceLevelCounts:  make(map[string]int),
		HighestLevelCounts: make(map[string]int),
		AdviceTypeCounts:   make(map[string]int),
		seenAttributes:     make(map[string]struct{}),
		seenMetrics:        make(map[string]struct{}),
	}
}

func (s *Statistics) observe(smp sample.Sample, attr *semconv.Attribute, group *semconv.Group, items []advice.Advice) {
	s.TotalSamples++
	s.TotalAdvisories += len(items)

	if len(items) == 0 {
		s.NoAdviceCount++
	}
	for _, item := range items {
		s.AdviceLevelCounts[item.AdviceLevel.String()]++
		s.AdviceTypeCounts[item.AdviceType]++
	}
	if highest, ok := advice.Highest(items); ok {
		s.HighestLevelCounts[highest.String()]++
	}

	if attr != nil {
		s.seenAttributes[attr.Name] = struct{}{}
	}
	if group != nil && group.MetricName != "" {
		if _, isMetric := smp.(*sample.Metric); isMetric {
			s.seenMetrics[group.MetricName] = struct{}{}
		}
	}
}

// Finalize computes registry coverage against the session registry.
func (s *Statistics) Finalize(registry *semconv.Registry) {
	if total := registry.AttributeCount(); total > 0 {
		s.RegistryAttributeCoverage = float64(len(s.seenAttributes)) / float64(total)
	}
	if total := registry.MetricCount(); total > 0 {
		s.RegistryMetricCoverage = float64(len(s.seenMetrics)) / float64(total)
	}
}

// ViolationCount reports how many violation-level advice items were emitted.
func (s *Statistics) ViolationCount() int {
	return s.AdviceLevelCounts[advice.LevelViolation.String()]
}

// Report collects the checked samples of one run together with the session
// statistics and a unique run identifier.
type Report struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Samples    []sample.Sample `json:"samples"`
	Statistics *Statistics     `json:"statistics"`
}

// NewReport starts a report for one run.
func NewReport() *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// Add appends a checked sample to the report.
func (r *Report) Add(s sample.Sample) {
	r.Samples = append(r.Samples, s)
}

// Finish stamps the end time and attaches finalized statistics.
func (r *Report) Finish(stats *Statistics) {
	r.FinishedAt = time.Now().UTC()
	r.Statistics = stats
}

// HasViolations reports whether any violation-level advice was emitted.
func (r *Report) HasViolations() bool {
	return r.Statistics != nil && r.Statistics.ViolationCount() > 0
}

// WriteJSON renders the report as an indented JSON document.
func (r *Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// WriteText renders a human-readable summary: one block per sample carrying
// advice, then the aggregate statistics.
func (r *Report) WriteText(w io.Writer) error {
	for _, s := range r.Samples {
		if err := writeSampleText(w, s, ""); err != nil {
			return err
		}
	}

	stats := r.Statistics
	if stats == nil {
		return nil
	}
	_, err := fmt.Fprintf(w,
		"\nrun %s: %d samples, %d advisories (%d violation, %d improvement, %d information), %d clean\n",
		r.RunID,
		stats.TotalSamples,
		stats.TotalAdvisories,
		stats.AdviceLevelCounts[advice.LevelViolation.String()],
		stats.AdviceLevelCounts[advice.LevelImprovement.String()],
		stats.AdviceLevelCounts[advice.LevelInformation.String()],
		stats.NoAdviceCount,
	)
	return err
}

func writeSampleText(w io.Writer, s sample.Sample, indent string) error {
	result := sampleResult(s)
	if result != nil && len(result.AllAdvice) > 0 {
		if _, err := fmt.Fprintf(w, "%s%s %q\n", indent, sample.Tag(s), sampleLabel(s)); err != nil {
			return err
		}
		for _, item := range result.AllAdvice {
			if _, err := fmt.Fprintf(w, "%s  [%s] %s: %s (%v)\n", indent, item.AdviceLevel, item.AdviceType, item.Message, item.Value); err != nil {
				return err
			}
		}
	}

	if metric, ok := s.(*sample.Metric); ok {
		for _, point := range metric.DataPoints {
			if err := writeSampleText(w, point, indent+"  "); err != nil {
				return err
			}
		}
	}
	return nil
}

func sampleResult(s sample.Sample) *sample.Result {
	switch typed := s.(type) {
	case *sample.Attribute:
		return typed.Result
	case *sample.Metric:
		return typed.Result
	case *sample.NumberDataPoint:
		return typed.Result
	case *sample.HistogramDataPoint:
		return typed.Result
	}
	return nil
}
