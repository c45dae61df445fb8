package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/semcheck/pkg/advice"
	"github.com/polisai/semcheck/pkg/sample"
	"github.com/polisai/semcheck/pkg/semconv"
)

func testRegistry(t *testing.T) *semconv.Registry {
	t.Helper()
	registry, err := semconv.NewRegistry([]*semconv.Group{
		{
			ID:   "registry.server",
			Type: "attribute_group",
			Attributes: []semconv.Attribute{
				{Name: "server.address", Type: semconv.TypeString, Stability: semconv.StabilityStable},
				{
					Name:      "server.socket.address",
					Type:      semconv.TypeString,
					Stability: semconv.StabilityStable,
					Deprecated: &semconv.Deprecated{
						Reason:    semconv.DeprecatedRenamed,
						RenamedTo: "network.peer.address",
					},
				},
			},
		},
		{
			ID:         "metric.app.request.duration",
			Type:       "metric",
			MetricName: "app.request.duration",
			Instrument: semconv.InstrumentHistogram,
			Unit:       "s",
			Stability:  semconv.StabilityStable,
			Attributes: []semconv.Attribute{
				{
					Name:             "server.address",
					Type:             semconv.TypeString,
					Stability:        semconv.StabilityStable,
					RequirementLevel: semconv.RequirementLevel{Kind: semconv.RequirementRequired},
				},
			},
		},
	})
	require.NoError(t, err)
	return registry
}

func newStructuralChecker(t *testing.T) *LiveChecker {
	t.Helper()
	lc, err := New(context.Background(), Options{Registry: testRegistry(t), DisablePolicy: true})
	require.NoError(t, err)
	return lc
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestCheckSampleCleanAttribute(t *testing.T) {
	lc := newStructuralChecker(t)

	attr := &sample.Attribute{Name: "server.address", Value: "localhost", Type: sample.InferType("localhost")}
	require.NoError(t, lc.CheckSample(context.Background(), attr))

	require.NotNil(t, attr.Result)
	assert.Empty(t, attr.Result.AllAdvice)
	assert.Nil(t, attr.Result.HighestLevel)
	assert.Equal(t, 1, lc.Statistics().NoAdviceCount)
}

func TestCheckSampleDeprecatedAttribute(t *testing.T) {
	lc := newStructuralChecker(t)

	attr := &sample.Attribute{Name: "server.socket.address", Value: "10.0.0.1", Type: sample.InferType("10.0.0.1")}
	require.NoError(t, lc.CheckSample(context.Background(), attr))

	require.NotNil(t, attr.Result)
	require.Len(t, attr.Result.AllAdvice, 1)
	assert.Equal(t, "deprecated", attr.Result.AllAdvice[0].AdviceType)
	assert.Equal(t, "Replaced by `network.peer.address`.", attr.Result.AllAdvice[0].Message)
	require.NotNil(t, attr.Result.HighestLevel)
	assert.Equal(t, advice.LevelViolation, *attr.Result.HighestLevel)
}

func TestCheckSampleMetricWithDataPoints(t *testing.T) {
	lc := newStructuralChecker(t)

	metric := &sample.Metric{
		Name:       "app.request.duration",
		Instrument: sample.SupportedInstrument(semconv.InstrumentCounter),
		Unit:       "ms",
		DataPoints: []sample.DataPoint{
			&sample.NumberDataPoint{Value: 0.25},
			&sample.NumberDataPoint{Value: 0.5, Attributes: []sample.Attribute{{Name: "server.address"}}},
		},
	}
	require.NoError(t, lc.CheckSample(context.Background(), metric))

	require.NotNil(t, metric.Result)
	require.Len(t, metric.Result.AllAdvice, 2)
	assert.ElementsMatch(t,
		[]string{"instrument_mismatch", "unit_mismatch"},
		[]string{metric.Result.AllAdvice[0].AdviceType, metric.Result.AllAdvice[1].AdviceType})

	// Data points are evaluated under the parent metric's group match.
	first := metric.DataPoints[0].(*sample.NumberDataPoint)
	require.NotNil(t, first.Result)
	require.Len(t, first.Result.AllAdvice, 1)
	assert.Equal(t, "required_attribute_not_present", first.Result.AllAdvice[0].AdviceType)

	second := metric.DataPoints[1].(*sample.NumberDataPoint)
	require.NotNil(t, second.Result)
	assert.Empty(t, second.Result.AllAdvice)

	// The metric and both data points each count as a sample.
	assert.Equal(t, 3, lc.Statistics().TotalSamples)
}

func TestCheckSampleWithDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	lc, err := New(ctx, Options{Registry: testRegistry(t)})
	require.NoError(t, err)

	known := &sample.Attribute{Name: "server.address", Value: "localhost", Type: sample.InferType("localhost")}
	require.NoError(t, lc.CheckSample(ctx, known))
	require.NotNil(t, known.Result)
	assert.Empty(t, known.Result.AllAdvice)

	unknown := &sample.Attribute{Name: "custom.thing", Value: true, Type: sample.InferType(true)}
	require.NoError(t, lc.CheckSample(ctx, unknown))
	require.NotNil(t, unknown.Result)
	require.Len(t, unknown.Result.AllAdvice, 1)
	assert.Equal(t, "missing_attribute", unknown.Result.AllAdvice[0].AdviceType)
	assert.Equal(t, advice.LevelViolation, unknown.Result.AllAdvice[0].AdviceLevel)
}

func TestSessionContextJSON(t *testing.T) {
	lc := newStructuralChecker(t)

	encoded, err := json.Marshal(lc)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(encoded, &doc))
	registry, ok := doc["registry"].(map[string]any)
	require.True(t, ok)
	groups, ok := registry["groups"].([]any)
	require.True(t, ok)
	assert.Len(t, groups, 2)
}

type fixedAdvisor struct {
	item advice.Advice
}

func (a fixedAdvisor) Advise(context.Context, sample.Sample, *semconv.Attribute, *semconv.Group) ([]advice.Advice, error) {
	return []advice.Advice{a.item}, nil
}

func TestAddAdvisor(t *testing.T) {
	lc := newStructuralChecker(t)
	lc.AddAdvisor(fixedAdvisor{item: advice.Advice{
		AdviceType:  "custom_check",
		Message:     "Always flagged",
		AdviceLevel: advice.LevelInformation,
	}})

	attr := &sample.Attribute{Name: "server.address"}
	require.NoError(t, lc.CheckSample(context.Background(), attr))
	require.NotNil(t, attr.Result)
	require.Len(t, attr.Result.AllAdvice, 1)
	assert.Equal(t, "custom_check", attr.Result.AllAdvice[0].AdviceType)
}

type failingAdvisor struct{}

func (failingAdvisor) Advise(context.Context, sample.Sample, *semconv.Attribute, *semconv.Group) ([]advice.Advice, error) {
	return nil, errors.New("engine exploded")
}

func TestCheckSampleAdvisorError(t *testing.T) {
	lc := newStructuralChecker(t)
	lc.AddAdvisor(failingAdvisor{})

	err := lc.CheckSample(context.Background(), &sample.Attribute{Name: "server.address"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sample "server.address"`)
}

func TestStatisticsAggregation(t *testing.T) {
	lc := newStructuralChecker(t)
	ctx := context.Background()

	require.NoError(t, lc.CheckSample(ctx, &sample.Attribute{Name: "server.address", Value: "localhost", Type: sample.InferType("localhost")}))
	require.NoError(t, lc.CheckSample(ctx, &sample.Attribute{Name: "server.socket.address", Value: "10.0.0.1", Type: sample.InferType("10.0.0.1")}))
	require.NoError(t, lc.CheckSample(ctx, &sample.Metric{
		Name:       "app.request.duration",
		Instrument: sample.SupportedInstrument(semconv.InstrumentHistogram),
		Unit:       "s",
	}))

	stats := lc.Statistics()
	stats.Finalize(lc.Registry())

	assert.Equal(t, 3, stats.TotalSamples)
	assert.Equal(t, 1, stats.TotalAdvisories)
	assert.Equal(t, 2, stats.NoAdviceCount)
	assert.Equal(t, 1, stats.ViolationCount())
	assert.Equal(t, 1, stats.HighestLevelCounts[advice.LevelViolation.String()])
	assert.Equal(t, 1, stats.AdviceTypeCounts["deprecated"])

	// Both distinct registry attributes and the only metric were exercised.
	assert.InDelta(t, 1.0, stats.RegistryAttributeCoverage, 1e-9)
	assert.InDelta(t, 1.0, stats.RegistryMetricCoverage, 1e-9)
}

func TestReport(t *testing.T) {
	lc := newStructuralChecker(t)
	ctx := context.Background()

	report := NewReport()
	assert.NotEmpty(t, report.RunID)

	attr := &sample.Attribute{Name: "server.socket.address", Value: "10.0.0.1", Type: sample.InferType("10.0.0.1")}
	require.NoError(t, lc.CheckSample(ctx, attr))
	report.Add(attr)

	stats := lc.Statistics()
	stats.Finalize(lc.Registry())
	report.Finish(stats)

	assert.True(t, report.HasViolations())
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	var jsonOut bytes.Buffer
	require.NoError(t, report.WriteJSON(&jsonOut))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(jsonOut.Bytes(), &doc))
	assert.Equal(t, report.RunID, doc["run_id"])

	var textOut bytes.Buffer
	require.NoError(t, report.WriteText(&textOut))
	assert.Contains(t, textOut.String(), `attribute "server.socket.address"`)
	assert.Contains(t, textOut.String(), "1 violation")
}

func TestReportWithoutViolations(t *testing.T) {
	report := NewReport()
	report.Finish(newStatistics())
	assert.False(t, report.HasViolations())
}
