// Package vector stores canonical feature embeddings in named collections and answers
// nearest-neighbour queries over them.
package vector

import "context"

// PayloadKey is the payload field that carries a point's canonical name.
const PayloadKey = "col"

// Point is one stored vector. Name is the canonical feature name the vector belongs to.
type Point struct {
	ID     string
	Vector []float32
	Name   string
}

// Match is a single search hit. Score is cosine similarity.
type Match struct {
	ID    string
	Name  string
	Score float64
}

// Store is the vector database boundary. Collections are addressed by name; a collection has a
// fixed dimension chosen at creation. Implementations must not retry internally.
type Store interface {
	// EnsureCollection creates the collection if it does not exist. An existing collection with a
	// different dimension yields a *DimensionMismatchError.
	EnsureCollection(ctx context.Context, name string, dim int) error
	// Upsert inserts points, overwriting any point with the same ID.
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns up to limit matches ordered by descending score.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Match, error)
	// Scroll returns a page of points starting at offset ("" for the first page) and the offset
	// of the next page, which is "" once the collection is exhausted.
	Scroll(ctx context.Context, collection string, limit int, offset string) ([]Point, string, error)
	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)
	Close() error
}
