package advisor

import (
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// applyFilter compiles a jq filter program and applies it to input,
// returning the filter's first output. Inputs and outputs are plain
// JSON-decoded values.
func applyFilter(filter string, input any) (any, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	iter := code.Run(input)
	value, ok := iter.Next()
	if !ok {
		return nil, errors.New("filter produced no output")
	}
	if err, failed := value.(error); failed {
		return nil, fmt.Errorf("execute filter: %w", err)
	}
	return value, nil
}
