// Package advisor implements the live-check advisory pipeline: one Advisor
// interface through which the built-in structural checks and the Rego policy
// check are invoked uniformly over a sample and its matched registry entry.
package advisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/polisai/semcheck/pkg/advice"
	"github.com/polisai/semcheck/pkg/sample"
	"github.com/polisai/semcheck/pkg/semconv"
)

// Advisor is a single check over one sample and its registry match.
//
// Implementations must not mutate the sample or the matched registry
// entries, must return an empty list (not an error) when no opinion applies,
// and must return an error only for infrastructure failures, never to signal
// "no finding". Matched entries are shared read-only pointers; either or
// both may be nil when the session found no match.
type Advisor interface {
	Advise(ctx context.Context, s sample.Sample, attr *semconv.Attribute, group *semconv.Group) ([]advice.Advice, error)
}

// ErrAdvisory tags every fallible operation in the advisory layer. Callers
// match it with errors.Is; the wrapped text carries the underlying engine,
// filter or I/O failure.
var ErrAdvisory = errors.New("advisory error")

func advisoryError(err error) error {
	return fmt.Errorf("%w: %s", ErrAdvisory, err)
}
