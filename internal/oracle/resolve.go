package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Policy decides what Resolve does with a malformed answer.
type Policy string

const (
	// PolicyFail returns the contract violation to the caller.
	PolicyFail Policy = "fail"
	// PolicyNoMatch treats a malformed answer as NoMatch.
	PolicyNoMatch Policy = "no_match"
	// PolicyRetry asks once more with a stricter reminder and fails if that answer is malformed too.
	PolicyRetry Policy = "retry"
)

// ParsePolicy parses a policy name; "" is PolicyFail.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFail:
		return PolicyFail, nil
	case PolicyNoMatch, PolicyRetry:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown oracle violation policy %q (supported: fail, no_match, retry)", s)
	}
}

// Verdict is a validated oracle answer.
type Verdict struct {
	// Name is the matched candidate, or NoMatch.
	Name string
	// Raw is the unmodified model output ("" when the model was not consulted).
	Raw string
	// Coerced is set when a malformed answer was turned into NoMatch by PolicyNoMatch.
	Coerced bool
}

// IsNoMatch reports whether the verdict is the sentinel.
func (v Verdict) IsNoMatch() bool { return v.Name == NoMatch }

// Validate trims surrounding whitespace from raw and checks it is exactly one of candidates or
// NoMatch. Any other answer, including a blank one, is a *ContractViolationError.
func Validate(raw string, candidates []string) (string, error) {
	answer := strings.TrimSpace(raw)
	if answer == NoMatch {
		return NoMatch, nil
	}
	if answer == "" {
		return "", &ContractViolationError{Raw: raw}
	}
	for _, c := range candidates {
		if answer == c {
			return c, nil
		}
	}
	return "", &ContractViolationError{Raw: raw}
}

// Resolve asks o to classify target and validates the answer under policy. An empty candidate
// list resolves to NoMatch without consulting the model.
func Resolve(ctx context.Context, o Oracle, target string, values []string, candidates []string, policy Policy) (Verdict, error) {
	if len(candidates) == 0 {
		return Verdict{Name: NoMatch}, nil
	}
	raw, err := o.Classify(ctx, target, values, candidates)
	if err != nil {
		return Verdict{}, err
	}
	name, err := Validate(raw, candidates)
	if err == nil {
		return Verdict{Name: name, Raw: raw}, nil
	}

	switch policy {
	case PolicyNoMatch:
		return Verdict{Name: NoMatch, Raw: raw, Coerced: true}, nil
	case PolicyRetry:
		if r, ok := o.(Reminder); ok {
			raw, err = r.ClassifyWithReminder(ctx, target, values, candidates, strictReminder)
		} else {
			raw, err = o.Classify(ctx, target, values, candidates)
		}
		if err != nil {
			return Verdict{}, err
		}
		name, err = Validate(raw, candidates)
		if err != nil {
			return Verdict{Raw: raw}, err
		}
		return Verdict{Name: name, Raw: raw}, nil
	default:
		return Verdict{Raw: raw}, err
	}
}

// IsContractViolation reports whether err is a contract violation and returns the raw answer.
func IsContractViolation(err error) (string, bool) {
	var cv *ContractViolationError
	if errors.As(err, &cv) {
		return cv.Raw, true
	}
	return "", errors.Is(err, ErrContractViolation)
}
