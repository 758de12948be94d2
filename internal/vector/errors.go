package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexUnavailable is returned when the backing store cannot be reached or fails.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrDimensionMismatch matches any *DimensionMismatchError via errors.Is.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrCollectionNotFound is returned for operations on a collection that was never created.
	ErrCollectionNotFound = errors.New("collection not found")
)

// DimensionMismatchError reports a vector or collection whose dimension differs from the one expected.
type DimensionMismatchError struct {
	Collection string
	Expected   int
	Actual     int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("collection %q: vector dimension mismatch: got %d, expected %d", e.Collection, e.Actual, e.Expected)
}

// Is makes errors.Is(err, ErrDimensionMismatch) succeed.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

func checkDim(collection string, expected int, v []float32) error {
	if len(v) != expected {
		return &DimensionMismatchError{Collection: collection, Expected: expected, Actual: len(v)}
	}
	return nil
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIndexUnavailable, fmt.Sprintf(format, args...))
}
