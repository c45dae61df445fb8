// Package checker drives a live-check session: it matches samples to their
// resolved registry entries, invokes the ordered advisor pipeline, attaches
// results to samples and aggregates statistics across the input stream.
package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/polisai/semcheck/pkg/advice"
	"github.com/polisai/semcheck/pkg/advisor"
	"github.com/polisai/semcheck/pkg/sample"
	"github.com/polisai/semcheck/pkg/semconv"
	"github.com/polisai/semcheck/pkg/telemetry"
)

// Options configure a live-check session.
type Options struct {
	Registry *semconv.Registry
	// PolicyDir and PreprocessorPath configure the policy advisor; empty
	// values select the embedded defaults.
	PolicyDir        string
	PreprocessorPath string
	// DisablePolicy skips policy advisor initialization entirely.
	DisablePolicy bool
}

// LiveChecker owns one live-check session. Advisors run synchronously and
// sequentially per sample; the policy advisor's engine state makes a
// LiveChecker single-goroutine property of its owner.
type LiveChecker struct {
	registry *semconv.Registry
	advisors []advisor.Advisor
	stats    *Statistics
}

// New builds a session with the structural advisors followed by the policy
// advisor. A policy initialization failure aborts the session before any
// sample is processed.
func New(ctx context.Context, opts Options) (*LiveChecker, error) {
	if opts.Registry == nil {
		return nil, errors.New("live checker requires a registry")
	}
	lc := &LiveChecker{
		registry: opts.Registry,
		advisors: []advisor.Advisor{
			advisor.DeprecationAdvisor{},
			advisor.StabilityAdvisor{},
			advisor.TypeAdvisor{},
			advisor.EnumAdvisor{},
		},
		stats: newStatistics(),
	}

	if !opts.DisablePolicy {
		policy, err := advisor.NewPolicyAdvisor(ctx, lc, advisor.PolicyOptions{
			PolicyDir:        opts.PolicyDir,
			PreprocessorPath: opts.PreprocessorPath,
		})
		if err != nil {
			return nil, err
		}
		lc.advisors = append(lc.advisors, policy)
	}

	return lc, nil
}

// AddAdvisor appends an advisor to the pipeline. Policy-only advisors can be
// added this way without touching the structural ones.
func (c *LiveChecker) AddAdvisor(a advisor.Advisor) {
	c.advisors = append(c.advisors, a)
}

// Registry returns the session's resolved registry.
func (c *LiveChecker) Registry() *semconv.Registry { return c.registry }

// Statistics returns the running aggregate for this session.
func (c *LiveChecker) Statistics() *Statistics { return c.stats }

// MarshalJSON serializes the session context handed to the policy
// preprocessing filter.
func (c *LiveChecker) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Registry *semconv.Registry `json:"registry"`
	}{Registry: c.registry})
}

// CheckSample matches one sample against the registry, runs every advisor
// over it and attaches the aggregated result. Metric data points are checked
// under their parent metric's group match. A policy evaluation failure
// aborts this sample only; the error names the sample it belongs to.
func (c *LiveChecker) CheckSample(ctx context.Context, s sample.Sample) error {
	var attr *semconv.Attribute
	var group *semconv.Group
	switch typed := s.(type) {
	case *sample.Attribute:
		attr = c.registry.FindAttribute(typed.Name)
	case *sample.Metric:
		group = c.registry.FindMetric(typed.Name)
	}

	if err := c.evaluate(ctx, s, attr, group); err != nil {
		return err
	}

	if metric, ok := s.(*sample.Metric); ok {
		for _, point := range metric.DataPoints {
			if err := c.evaluate(ctx, point, nil, group); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *LiveChecker) evaluate(ctx context.Context, s sample.Sample, attr *semconv.Attribute, group *semconv.Group) error {
	var all []advice.Advice
	for _, adv := range c.advisors {
		items, err := adv.Advise(ctx, s, attr, group)
		if err != nil {
			telemetry.RecordPolicyFailure()
			return fmt.Errorf("sample %q: %w", sampleLabel(s), err)
		}
		all = append(all, items...)
	}

	sample.SetResult(s, sample.NewResult(all))
	c.stats.observe(s, attr, group, all)

	telemetry.RecordSample(sample.Tag(s))
	for _, item := range all {
		telemetry.RecordAdvice(item)
	}
	return nil
}

func sampleLabel(s sample.Sample) string {
	switch typed := s.(type) {
	case *sample.Attribute:
		return typed.Name
	case *sample.Metric:
		return typed.Name
	case *sample.NumberDataPoint:
		return "number_data_point"
	case *sample.HistogramDataPoint:
		return "histogram_data_point"
	}
	return "unknown"
}
