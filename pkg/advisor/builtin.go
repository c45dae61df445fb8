package advisor

import (
	"context"
	"fmt"

	"github.com/polisai/semcheck/pkg/advice"
	"github.com/polisai/semcheck/pkg/sample"
	"github.com/polisai/semcheck/pkg/semconv"
)

// DeprecationAdvisor flags samples that match a deprecated registry entry.
type DeprecationAdvisor struct{}

// Advise emits one violation when the matched attribute (for attribute
// samples) or group (for metric samples) carries a deprecation marker.
func (DeprecationAdvisor) Advise(_ context.Context, s sample.Sample, attr *semconv.Attribute, group *semconv.Group) ([]advice.Advice, error) {
	var deprecated *semconv.Deprecated
	switch s.(type) {
	case *sample.Attribute:
		if attr != nil {
			deprecated = attr.Deprecated
		}
	case *sample.Metric:
		if group != nil {
			deprecated = group.Deprecated
		}
	}
	if deprecated == nil {
		return nil, nil
	}
	return []advice.Advice{{
		AdviceType:  "deprecated",
		Value:       deprecated.Classification(),
		Message:     deprecated.Describe(),
		AdviceLevel: advice.LevelViolation,
	}}, nil
}

// StabilityAdvisor flags samples whose matched entry declares a stability
// level other than stable. Entries declaring no stability produce no finding.
type StabilityAdvisor struct{}

func (StabilityAdvisor) Advise(_ context.Context, s sample.Sample, attr *semconv.Attribute, group *semconv.Group) ([]advice.Advice, error) {
	var stability semconv.Stability
	switch s.(type) {
	case *sample.Attribute:
		if attr != nil {
			stability = attr.Stability
		}
	case *sample.Metric:
		if group != nil {
			stability = group.Stability
		}
	}
	if stability == "" || stability == semconv.StabilityStable {
		return nil, nil
	}
	return []advice.Advice{{
		AdviceType:  "stability",
		Value:       stability.String(),
		Message:     "Is not stable",
		AdviceLevel: advice.LevelImprovement,
	}}, nil
}

// TypeAdvisor checks observed types, instruments and units against the
// matched registry entry, and attribute presence on data points.
type TypeAdvisor struct{}

func (TypeAdvisor) Advise(_ context.Context, s sample.Sample, attr *semconv.Attribute, group *semconv.Group) ([]advice.Advice, error) {
	switch typed := s.(type) {
	case *sample.Attribute:
		if attr == nil || typed.Type == nil {
			return nil, nil
		}
		return adviseAttributeType(attr, *typed.Type), nil
	case *sample.Metric:
		if group == nil {
			return nil, nil
		}
		return adviseMetricShape(group, typed), nil
	case *sample.NumberDataPoint:
		if group == nil {
			return nil, nil
		}
		return checkAttributes(group.Attributes, typed.Attributes), nil
	case *sample.HistogramDataPoint:
		if group == nil {
			return nil, nil
		}
		return checkAttributes(group.Attributes, typed.Attributes), nil
	}
	return nil, nil
}

func adviseAttributeType(attr *semconv.Attribute, observed semconv.PrimitiveOrArrayType) []advice.Advice {
	var expected semconv.PrimitiveOrArrayType
	switch declared := attr.Type.(type) {
	case semconv.PrimitiveOrArrayType:
		expected = declared
	case semconv.TemplateType:
		expected = declared.Of
	case semconv.EnumType:
		// Enum variants can be either string or int; value correctness is
		// the enum advisor's job.
		if observed != semconv.TypeString && observed != semconv.TypeInt {
			return []advice.Advice{{
				AdviceType:  "type_mismatch",
				Value:       observed.String(),
				Message:     "Type should be `string` or `int`",
				AdviceLevel: advice.LevelViolation,
			}}
		}
		return nil
	}

	if observed.IsCompatibleWith(expected) {
		return nil
	}
	return []advice.Advice{{
		AdviceType:  "type_mismatch",
		Value:       observed.String(),
		Message:     fmt.Sprintf("Type should be `%s`", expected),
		AdviceLevel: advice.LevelViolation,
	}}
}

func adviseMetricShape(group *semconv.Group, metric *sample.Metric) []advice.Advice {
	var items []advice.Advice

	if kind, supported := metric.Instrument.Kind(); !supported {
		items = append(items, advice.Advice{
			AdviceType:  "unsupported_instrument",
			Value:       metric.Instrument.String(),
			Message:     "Instrument is not supported",
			AdviceLevel: advice.LevelViolation,
		})
	} else if group.Instrument != "" && group.Instrument != kind {
		items = append(items, advice.Advice{
			AdviceType:  "instrument_mismatch",
			Value:       kind.String(),
			Message:     fmt.Sprintf("Instrument should be `%s`", group.Instrument),
			AdviceLevel: advice.LevelViolation,
		})
	}

	if group.Unit != "" && group.Unit != metric.Unit {
		items = append(items, advice.Advice{
			AdviceType:  "unit_mismatch",
			Value:       metric.Unit,
			Message:     fmt.Sprintf("Unit should be `%s`", group.Unit),
			AdviceLevel: advice.LevelViolation,
		})
	}

	return items
}

// checkAttributes compares a group's attribute definitions against an
// observed attribute set and reports the missing ones, advice type and
// severity keyed by requirement level:
//
//	| Requirement level      | Advice level |
//	|------------------------|--------------|
//	| Required               | Violation    |
//	| Recommended            | Improvement  |
//	| Opt-In                 | Information  |
//	| Conditionally Required | Information  |
//
// Attributes present in the observed set produce no advice here; their value
// and type correctness is checked elsewhere. Output order follows the
// definition list.
func checkAttributes(defs []semconv.Attribute, observed []sample.Attribute) []advice.Advice {
	present := make(map[string]struct{}, len(observed))
	for _, attr := range observed {
		present[attr.Name] = struct{}{}
	}

	var items []advice.Advice
	for _, def := range defs {
		if _, ok := present[def.Name]; ok {
			continue
		}

		var adviceType, message string
		var level advice.Level
		switch def.RequirementLevel.Kind {
		case semconv.RequirementRequired:
			adviceType = "required_attribute_not_present"
			level = advice.LevelViolation
			message = "Required attribute is not present"
		case semconv.RequirementRecommended:
			adviceType = "recommended_attribute_not_present"
			level = advice.LevelImprovement
			message = "Recommended attribute is not present"
		case semconv.RequirementOptIn:
			adviceType = "opt_in_attribute_not_present"
			level = advice.LevelInformation
			message = "Opt-in attribute is not present"
		case semconv.RequirementConditionallyRequired:
			adviceType = "conditionally_required_attribute_not_present"
			level = advice.LevelInformation
			message = "Conditionally required attribute is not present"
		}

		items = append(items, advice.Advice{
			AdviceType:  adviceType,
			Value:       def.Name,
			Message:     message,
			AdviceLevel: level,
		})
	}
	return items
}

// EnumAdvisor reports observed values that are not defined variants of an
// enum-typed attribute.
type EnumAdvisor struct{}

func (EnumAdvisor) Advise(_ context.Context, s sample.Sample, attr *semconv.Attribute, _ *semconv.Group) ([]advice.Advice, error) {
	observed, ok := s.(*sample.Attribute)
	if !ok || attr == nil || observed.Value == nil || observed.Type == nil {
		return nil, nil
	}
	enum, ok := attr.Type.(semconv.EnumType)
	if !ok {
		return nil, nil
	}

	for _, member := range enum.Members {
		switch *observed.Type {
		case semconv.TypeInt:
			value, observedInt := asInt64(observed.Value)
			memberValue, memberInt := asInt64(member.Value)
			if observedInt && memberInt && memberValue == value {
				return nil, nil
			}
		case semconv.TypeString:
			if value, ok := observed.Value.(string); ok {
				if text, isString := member.Value.(string); isString && text == value {
					return nil, nil
				}
			}
		default:
			// The type advisor reports the mismatch for any other type.
			return nil, nil
		}
	}

	return []advice.Advice{{
		AdviceType:  "undefined_enum_variant",
		Value:       observed.Value,
		Message:     "Is not a defined variant",
		AdviceLevel: advice.LevelInformation,
	}}, nil
}

func asInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case float64:
		if typed == float64(int64(typed)) {
			return int64(typed), true
		}
	}
	return 0, false
}
