package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/ast"
	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/rego"
	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/storage"
	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/storage/inmem"

	"github.com/polisai/semcheck/pkg/advice"
)

// StageLiveCheckAdvice is the policy stage evaluated per sample.
const StageLiveCheckAdvice = "live_check_advice"

// finding is one raw result emitted by a policy stage. Stages can emit
// finding kinds other than advice; the policy advisor keeps only entries
// tagged "advice".
type finding struct {
	Type        string       `json:"type"`
	AdviceType  string       `json:"advice_type"`
	Value       any          `json:"value"`
	Message     string       `json:"message"`
	AdviceLevel advice.Level `json:"advice_level"`
}

const findingKindAdvice = "advice"

// policyEngine wraps an embedded OPA instance behind the narrow surface the
// policy advisor needs: load rules, register static data, replace the
// current input, evaluate a stage. The engine is stateful and not safe for
// concurrent use; owners serialize calls to it.
type policyEngine struct {
	modules     map[string]string
	moduleOrder []string
	parsed      map[string]*ast.Module
	store       storage.Store
	queries     map[string]*rego.PreparedEvalQuery
	input       any
}

func newPolicyEngine() *policyEngine {
	return &policyEngine{
		modules: make(map[string]string),
		parsed:  make(map[string]*ast.Module),
		queries: make(map[string]*rego.PreparedEvalQuery),
	}
}

// AddPolicy parses and registers one rego module under the given name. The
// name is used verbatim in parse error messages.
func (e *policyEngine) AddPolicy(name, source string) error {
	module, err := ast.ParseModuleWithOpts(name, source, ast.ParserOptions{RegoVersion: ast.RegoV1})
	if err != nil {
		return fmt.Errorf("parse rego module %q: %w", name, err)
	}
	if _, exists := e.modules[name]; !exists {
		e.moduleOrder = append(e.moduleOrder, name)
	}
	e.modules[name] = source
	e.parsed[name] = module
	sort.Strings(e.moduleOrder)
	return nil
}

// AddPolicies registers every file in dir matching the glob pattern. A
// directory whose glob matches zero files is not an error: the engine simply
// carries no modules from it.
func (e *policyEngine) AddPolicies(dir, pattern string) error {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("glob %s in %s: %w", pattern, dir, err)
	}
	sort.Strings(matches)
	for _, path := range matches {
		//nolint:gosec // Policy paths come from the operator-configured directory.
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read policy %s: %w", path, err)
		}
		if err := e.AddPolicy(path, string(source)); err != nil {
			return err
		}
	}
	return nil
}

// AddData registers a JSON object as static data available to all
// subsequent evaluations under the data document root.
func (e *policyEngine) AddData(value any) error {
	object, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("reference data must be a JSON object, got %T", value)
	}
	e.store = inmem.NewFromObject(object)
	// Data changed; prepared queries bound to the old store are stale.
	e.queries = make(map[string]*rego.PreparedEvalQuery)
	return nil
}

// SetInput replaces the engine's current input, carried into the next
// evaluation only.
func (e *policyEngine) SetInput(value any) {
	e.input = value
}

// Check evaluates the named stage against the current input and returns its
// raw findings in emission order.
func (e *policyEngine) Check(ctx context.Context, stage string) ([]finding, error) {
	prepared, err := e.getPreparedQuery(ctx, stage)
	if err != nil {
		return nil, fmt.Errorf("compile rego modules: %w", err)
	}

	results, err := prepared.Eval(ctx, rego.EvalInput(e.input))
	if err != nil {
		return nil, fmt.Errorf("evaluate stage %s: %w", stage, err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	raw, ok := results[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, fmt.Errorf("stage %s: unexpected result type %T", stage, results[0].Expressions[0].Value)
	}

	findings := make([]finding, 0, len(raw))
	for _, entry := range raw {
		encoded, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("stage %s: encode finding: %w", stage, err)
		}
		var f finding
		if err := json.Unmarshal(encoded, &f); err != nil {
			return nil, fmt.Errorf("stage %s: decode finding: %w", stage, err)
		}
		findings = append(findings, f)
	}
	return findings, nil
}

func (e *policyEngine) getPreparedQuery(ctx context.Context, stage string) (*rego.PreparedEvalQuery, error) {
	if prepared, ok := e.queries[stage]; ok {
		return prepared, nil
	}

	query := "data." + strings.ReplaceAll(stage, "/", ".") + ".deny"

	opts := make([]func(*rego.Rego), 0, len(e.parsed)+2)
	opts = append(opts, rego.Query(query))
	for _, name := range e.moduleOrder {
		opts = append(opts, rego.ParsedModule(e.parsed[name]))
	}
	if e.store != nil {
		opts = append(opts, rego.Store(e.store))
	}

	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}

	e.queries[stage] = &prepared
	return &prepared, nil
}
