package oracle

import "context"

// StaticOracle never reports an alias, so every feature that misses the similarity shortcut is
// registered as new. Useful for offline runs.
type StaticOracle struct{}

// Classify always returns NoMatch.
func (StaticOracle) Classify(context.Context, string, []string, []string) (string, error) {
	return NoMatch, nil
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, target string, values []string, candidates []string) (string, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, target string, values []string, candidates []string) (string, error) {
	return f(ctx, target, values, candidates)
}
