package advisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/semcheck/pkg/advice"
	"github.com/polisai/semcheck/pkg/sample"
	"github.com/polisai/semcheck/pkg/semconv"
)

// testSessionContext mirrors the shape the default advice.jq preprocessor
// reduces: a registry with groups of named attributes.
func testSessionContext() map[string]any {
	return map[string]any{
		"registry": map[string]any{
			"groups": []any{
				map[string]any{
					"id": "registry.http",
					"attributes": []any{
						map[string]any{"name": "http.request.method"},
						map[string]any{"name": "server.address"},
					},
				},
				map[string]any{
					"id":          "metric.http.server.request.duration",
					"metric_name": "http.server.request.duration",
				},
			},
		},
	}
}

func adviceTypes(items []advice.Advice) []string {
	types := make([]string, 0, len(items))
	for _, item := range items {
		types = append(types, item.AdviceType)
	}
	return types
}

func TestPolicyAdvisorDefaultMissingAttribute(t *testing.T) {
	ctx := context.Background()
	adv, err := NewPolicyAdvisor(ctx, testSessionContext(), PolicyOptions{})
	require.NoError(t, err)

	items, err := adv.Advise(ctx, &sample.Attribute{Name: "custom.thing"}, nil, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "missing_attribute", items[0].AdviceType)
	assert.Equal(t, "custom.thing", items[0].Value)
	assert.Equal(t, "Does not exist in the registry", items[0].Message)
	assert.Equal(t, advice.LevelViolation, items[0].AdviceLevel)
}

func TestPolicyAdvisorDefaultMatchedAttributeIsClean(t *testing.T) {
	ctx := context.Background()
	adv, err := NewPolicyAdvisor(ctx, testSessionContext(), PolicyOptions{})
	require.NoError(t, err)

	attr := &semconv.Attribute{Name: "server.address", Type: semconv.TypeString}
	items, err := adv.Advise(ctx, &sample.Attribute{Name: "server.address"}, attr, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPolicyAdvisorDefaultIllegalNamespace(t *testing.T) {
	ctx := context.Background()
	adv, err := NewPolicyAdvisor(ctx, testSessionContext(), PolicyOptions{})
	require.NoError(t, err)

	items, err := adv.Advise(ctx, &sample.Attribute{Name: "server.hostname"}, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"missing_attribute", "illegal_namespace"},
		adviceTypes(items))
	for _, item := range items {
		if item.AdviceType == "illegal_namespace" {
			assert.Equal(t, "server", item.Value)
			assert.Equal(t, advice.LevelViolation, item.AdviceLevel)
		}
	}
}

func TestPolicyAdvisorDefaultInvalidFormat(t *testing.T) {
	ctx := context.Background()
	adv, err := NewPolicyAdvisor(ctx, testSessionContext(), PolicyOptions{})
	require.NoError(t, err)

	items, err := adv.Advise(ctx, &sample.Attribute{Name: "Custom.Thing"}, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"missing_attribute", "invalid_format"},
		adviceTypes(items))
}

func TestPolicyAdvisorDefaultIgnoresNonAttributeSamples(t *testing.T) {
	ctx := context.Background()
	adv, err := NewPolicyAdvisor(ctx, testSessionContext(), PolicyOptions{})
	require.NoError(t, err)

	items, err := adv.Advise(ctx, &sample.Metric{Name: "custom.duration"}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPolicyAdvisorCustomPolicyDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	policy := `package live_check_advice

deny contains finding if {
	input.sample.attribute.name == "forbidden.attr"
	finding := {
		"type": "advice",
		"advice_type": "forbidden_name",
		"advice_level": "violation",
		"value": input.sample.attribute.name,
		"message": "Name is on the deny list",
	}
}

# Findings not tagged as advice are dropped by the advisor.
deny contains finding if {
	input.sample.attribute.name == "forbidden.attr"
	finding := {"type": "audit", "note": "seen"}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.rego"), []byte(policy), 0o600))

	adv, err := NewPolicyAdvisor(ctx, testSessionContext(), PolicyOptions{PolicyDir: dir})
	require.NoError(t, err)

	items, err := adv.Advise(ctx, &sample.Attribute{Name: "forbidden.attr"}, nil, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "forbidden_name", items[0].AdviceType)
	assert.Equal(t, advice.LevelViolation, items[0].AdviceLevel)

	// The embedded default rules are not loaded alongside a custom directory.
	items, err = adv.Advise(ctx, &sample.Attribute{Name: "custom.thing"}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPolicyAdvisorEmptyPolicyDir(t *testing.T) {
	ctx := context.Background()

	// A directory matching zero rule files initializes an engine with no
	// modules; it does not fall back to the embedded default policy.
	adv, err := NewPolicyAdvisor(ctx, testSessionContext(), PolicyOptions{PolicyDir: t.TempDir()})
	require.NoError(t, err)

	items, err := adv.Advise(ctx, &sample.Attribute{Name: "custom.thing"}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPolicyAdvisorMalformedPolicy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.rego"), []byte("package live_check_advice\n\ndeny contains {"), 0o600))

	_, err := NewPolicyAdvisor(ctx, testSessionContext(), PolicyOptions{PolicyDir: dir})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAdvisory)
}

func TestPolicyAdvisorCustomPreprocessor(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	filterPath := filepath.Join(dir, "context.jq")
	require.NoError(t, os.WriteFile(filterPath, []byte(`{registry_attribute_names: .allowed, registry_namespaces: []}`), 0o600))

	sessionContext := map[string]any{"allowed": []any{"app.custom"}}
	adv, err := NewPolicyAdvisor(ctx, sessionContext, PolicyOptions{PreprocessorPath: filterPath})
	require.NoError(t, err)

	items, err := adv.Advise(ctx, &sample.Attribute{Name: "app.custom"}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = adv.Advise(ctx, &sample.Attribute{Name: "app.other"}, nil, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "missing_attribute", items[0].AdviceType)
}

func TestPolicyAdvisorMissingPreprocessorFile(t *testing.T) {
	ctx := context.Background()
	_, err := NewPolicyAdvisor(ctx, testSessionContext(), PolicyOptions{
		PreprocessorPath: filepath.Join(t.TempDir(), "absent.jq"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAdvisory)
}

func TestPolicyAdvisorRejectsNonObjectReferenceData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	filterPath := filepath.Join(dir, "scalar.jq")
	require.NoError(t, os.WriteFile(filterPath, []byte(`"not an object"`), 0o600))

	_, err := NewPolicyAdvisor(ctx, testSessionContext(), PolicyOptions{PreprocessorPath: filterPath})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAdvisory)
}

func TestApplyFilter(t *testing.T) {
	out, err := applyFilter(`{names: [.groups[].name]}`, map[string]any{
		"groups": []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"names": []any{"a", "b"}}, out)

	_, err = applyFilter(`{broken`, map[string]any{})
	assert.Error(t, err)
}

func TestPolicyEngineStageWithoutRules(t *testing.T) {
	ctx := context.Background()
	engine := newPolicyEngine()
	require.NoError(t, engine.AddData(map[string]any{}))

	findings, err := engine.Check(ctx, StageLiveCheckAdvice)
	require.NoError(t, err)
	assert.Empty(t, findings)
}
