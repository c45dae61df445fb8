package sample

import (
	"encoding/json"
	"math"

	"github.com/polisai/semcheck/pkg/semconv"
)

// InferType derives the observed primitive-or-array type of a JSON-decoded
// attribute value. Integral float64 values infer as int, matching how JSON
// numbers arrive from decoding. Nil and unrecognized values infer no type.
func InferType(value any) *semconv.PrimitiveOrArrayType {
	switch typed := value.(type) {
	case nil:
		return nil
	case bool:
		return typeRef(semconv.TypeBoolean)
	case string:
		return typeRef(semconv.TypeString)
	case int, int32, int64:
		return typeRef(semconv.TypeInt)
	case float64:
		if typed == math.Trunc(typed) && !math.IsInf(typed, 0) {
			return typeRef(semconv.TypeInt)
		}
		return typeRef(semconv.TypeDouble)
	case json.Number:
		if _, err := typed.Int64(); err == nil {
			return typeRef(semconv.TypeInt)
		}
		return typeRef(semconv.TypeDouble)
	case []any:
		return inferArrayType(typed)
	}
	return nil
}

func inferArrayType(values []any) *semconv.PrimitiveOrArrayType {
	if len(values) == 0 {
		return nil
	}
	elem := InferType(values[0])
	if elem == nil {
		return nil
	}
	switch *elem {
	case semconv.TypeBoolean:
		return typeRef(semconv.TypeBooleans)
	case semconv.TypeInt:
		return typeRef(semconv.TypeInts)
	case semconv.TypeDouble:
		return typeRef(semconv.TypeDoubles)
	case semconv.TypeString:
		return typeRef(semconv.TypeStrings)
	}
	return nil
}

func typeRef(t semconv.PrimitiveOrArrayType) *semconv.PrimitiveOrArrayType {
	return &t
}
