// Package embedding maps feature names to fixed-dimensionality vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddingUnavailable is returned when the backing model cannot be reached or fails to encode.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// unavailable wraps cause with ErrEmbeddingUnavailable.
func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEmbeddingUnavailable, fmt.Sprintf(format, args...))
}

// CheckDimensions returns ErrEmbeddingUnavailable when v does not have exactly want components.
func CheckDimensions(v []float32, want int) error {
	if len(v) != want {
		return unavailable("model returned %d dimensions, expected %d", len(v), want)
	}
	return nil
}
