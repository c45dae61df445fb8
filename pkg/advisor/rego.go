package advisor

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/polisai/semcheck/pkg/advice"
	"github.com/polisai/semcheck/pkg/sample"
	"github.com/polisai/semcheck/pkg/semconv"
)

// DefaultPolicyPath is the logical path of the embedded default live-check
// policy, used verbatim in error messages.
const DefaultPolicyPath = "defaults/policies/live_check_advice/otel.rego"

//go:embed defaults/policies/live_check_advice/otel.rego
var defaultPolicySource string

//go:embed defaults/jq/advice.jq
var defaultPreprocessor string

// PolicyOptions configure a PolicyAdvisor.
type PolicyOptions struct {
	// PolicyDir loads every *.rego file from the directory. Empty selects
	// the embedded default policy. A directory matching zero files loads
	// zero policies; it does not fall back to the embedded default.
	PolicyDir string
	// PreprocessorPath loads the jq filter that reduces the serialized
	// session context to the reference data registered with the engine.
	// Empty selects the embedded default filter.
	PreprocessorPath string
}

// PolicyAdvisor evaluates operator-authored Rego policies over each sample,
// giving registry maintainers a way to add checks without recompiling.
//
// The wrapped engine holds mutable state (loaded rules, registered data,
// last-set input) for the lifetime of the live-check session; a
// PolicyAdvisor must not be shared across goroutines without external
// serialization.
type PolicyAdvisor struct {
	engine *policyEngine
}

// NewPolicyAdvisor initializes the policy engine: rules first, then the
// preprocessing filter, then the session context reduced through the filter
// and registered as static data. Any failure aborts initialization; partial
// engine state is never reused.
//
// sessionContext is the full live-check session state; it must serialize to
// JSON.
func NewPolicyAdvisor(ctx context.Context, sessionContext any, opts PolicyOptions) (*PolicyAdvisor, error) {
	engine := newPolicyEngine()

	if opts.PolicyDir != "" {
		if err := engine.AddPolicies(opts.PolicyDir, "*.rego"); err != nil {
			return nil, advisoryError(err)
		}
	} else {
		if err := engine.AddPolicy(DefaultPolicyPath, defaultPolicySource); err != nil {
			return nil, advisoryError(err)
		}
	}

	filter := defaultPreprocessor
	if opts.PreprocessorPath != "" {
		//nolint:gosec // Filter path is supplied by the operator.
		source, err := os.ReadFile(opts.PreprocessorPath)
		if err != nil {
			return nil, advisoryError(err)
		}
		filter = string(source)
	}

	contextDoc, err := toJSONValue(sessionContext)
	if err != nil {
		return nil, advisoryError(fmt.Errorf("serialize session context: %w", err))
	}
	referenceData, err := applyFilter(filter, contextDoc)
	if err != nil {
		return nil, advisoryError(err)
	}
	if err := engine.AddData(referenceData); err != nil {
		return nil, advisoryError(err)
	}

	return &PolicyAdvisor{engine: engine}, nil
}

// policyInput is the per-call evaluation input record.
type policyInput struct {
	Sample            map[string]any     `json:"sample"`
	RegistryAttribute *semconv.Attribute `json:"registry_attribute,omitempty"`
	RegistryGroup     *semconv.Group     `json:"registry_group,omitempty"`
}

// Advise replaces the engine input with the sample and its matches, runs the
// live-check-advice stage and projects findings tagged as advice back into
// advice items, preserving emission order.
func (a *PolicyAdvisor) Advise(ctx context.Context, s sample.Sample, attr *semconv.Attribute, group *semconv.Group) ([]advice.Advice, error) {
	input, err := toJSONValue(policyInput{
		Sample:            map[string]any{sample.Tag(s): s},
		RegistryAttribute: attr,
		RegistryGroup:     group,
	})
	if err != nil {
		return nil, advisoryError(fmt.Errorf("serialize policy input: %w", err))
	}

	a.engine.SetInput(input)
	findings, err := a.engine.Check(ctx, StageLiveCheckAdvice)
	if err != nil {
		return nil, advisoryError(err)
	}

	var items []advice.Advice
	for _, f := range findings {
		if f.Type != findingKindAdvice {
			continue
		}
		items = append(items, advice.Advice{
			AdviceType:  f.AdviceType,
			Value:       f.Value,
			Message:     f.Message,
			AdviceLevel: f.AdviceLevel,
		})
	}
	return items, nil
}

// toJSONValue round-trips a value through encoding/json so the engine only
// ever sees plain JSON-compatible values.
func toJSONValue(value any) (any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
