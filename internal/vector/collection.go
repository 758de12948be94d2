package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const (
	// DefaultBatchSize is the upsert chunk size used when none is given.
	DefaultBatchSize = 100
	// DefaultPageSize is the scroll page size used when none is given.
	DefaultPageSize = 100
)

// PointID derives the point ID of a canonical name: a UUIDv5 in the DNS namespace. The same
// name always maps to the same point, so re-registering a name overwrites rather than duplicates.
func PointID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name)).String()
}

// Collection is a handle on one named registry of canonical features.
type Collection struct {
	store Store
	name  string
	dim   int
}

// OpenCollection ensures the named collection exists with dimension dim and returns a handle.
func OpenCollection(ctx context.Context, store Store, name string, dim int) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if err := store.EnsureCollection(ctx, name, dim); err != nil {
		return nil, fmt.Errorf("ensure collection %q: %w", name, err)
	}
	return &Collection{store: store, name: name, dim: dim}, nil
}

// Name returns the registry name.
func (c *Collection) Name() string { return c.name }

// Dimensions returns the vector dimension of the registry.
func (c *Collection) Dimensions() int { return c.dim }

// UpsertOne stores vec for the canonical name under id.
func (c *Collection) UpsertOne(ctx context.Context, id string, vec []float32, name string) error {
	if err := checkDim(c.name, c.dim, vec); err != nil {
		return err
	}
	return c.store.Upsert(ctx, c.name, []Point{{ID: id, Vector: vec, Name: name}})
}

// UpsertBatch stores points in chunks of batchSize (DefaultBatchSize when <= 0).
func (c *Collection) UpsertBatch(ctx context.Context, points []Point, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	for _, p := range points {
		if err := checkDim(c.name, c.dim, p.Vector); err != nil {
			return err
		}
	}
	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := c.store.Upsert(ctx, c.name, points[start:end]); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Nearest returns up to k matches ordered by descending score.
func (c *Collection) Nearest(ctx context.Context, vec []float32, k int) ([]Match, error) {
	if err := checkDim(c.name, c.dim, vec); err != nil {
		return nil, err
	}
	return c.store.Search(ctx, c.name, vec, k)
}

// ScrollAll returns every canonical name, paging pageSize points at a time until the store
// reports no next cursor. Points without a name are skipped.
func (c *Collection) ScrollAll(ctx context.Context, pageSize int) ([]string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var (
		names  []string
		offset string
		seen   = make(map[string]bool)
	)
	for {
		points, next, err := c.store.Scroll(ctx, c.name, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("scroll %q: %w", c.name, err)
		}
		for _, p := range points {
			if p.Name == "" {
				continue
			}
			names = append(names, p.Name)
		}
		if next == "" {
			return names, nil
		}
		if seen[next] {
			return nil, unavailable("scroll %q: cursor %s repeated", c.name, next)
		}
		seen[next] = true
		offset = next
	}
}

// Names returns every canonical name with the default page size.
func (c *Collection) Names(ctx context.Context) ([]string, error) {
	return c.ScrollAll(ctx, DefaultPageSize)
}

// Count returns the number of canonical features in the registry.
func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx, c.name)
}
