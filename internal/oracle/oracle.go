// Package oracle asks a language model whether a column name is a semantic alias of one of the
// canonical features already registered, and validates the answer.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

// NoMatch is the sentinel response meaning "no candidate matches; the feature is new".
const NoMatch = "NAN"

var (
	// ErrContractViolation is returned when the model answers with something that is neither a
	// candidate name nor NoMatch.
	ErrContractViolation = errors.New("oracle contract violation")
	// ErrOracleUnavailable is returned when the model endpoint cannot be reached or errors.
	ErrOracleUnavailable = errors.New("oracle unavailable")
)

// Oracle classifies a target feature against candidate canonical names. It returns the raw
// model answer; use Resolve to validate it.
type Oracle interface {
	Classify(ctx context.Context, target string, values []string, candidates []string) (string, error)
}

// Reminder is implemented by oracles that can repeat a request with an extra instruction
// appended to the user message.
type Reminder interface {
	ClassifyWithReminder(ctx context.Context, target string, values []string, candidates []string, reminder string) (string, error)
}

// ContractViolationError carries the offending raw response.
type ContractViolationError struct {
	Raw string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("%s: response %q is not a candidate name or %s", ErrContractViolation, e.Raw, NoMatch)
}

// Is makes errors.Is(err, ErrContractViolation) succeed.
func (e *ContractViolationError) Is(target error) bool {
	return target == ErrContractViolation
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOracleUnavailable, fmt.Sprintf(format, args...))
}
