package models

import "time"

// Decision paths.
const (
	// PathSimilarity: the nearest canonical feature scored above the threshold.
	PathSimilarity = "similarity"
	// PathOracleNew: the oracle found no match and the feature was registered.
	PathOracleNew = "oracle_new"
	// PathOracleAlias: the oracle named an existing canonical feature.
	PathOracleAlias = "oracle_alias"
)

// Decision is the outcome of canonicalizing one feature name.
type Decision struct {
	// Added is true only when the feature was registered as new.
	Added bool `json:"added"`
	// Name is the canonical name: the input itself when Added, otherwise an existing feature.
	Name string `json:"name"`
	// Input is the feature name that was submitted.
	Input string `json:"input"`
	Path  string `json:"path"`
	// Score is the best similarity seen (0 for an empty registry).
	Score float64 `json:"score"`

	Registry  string    `json:"registry,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Renamed reports whether callers should rename Input to Name.
func (d Decision) Renamed() bool {
	return !d.Added && d.Name != d.Input
}
