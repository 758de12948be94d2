package vector

import (
	"context"
	"sort"
	"sync"
)

// Catalog opens registries by name on one store and caches the handles.
type Catalog struct {
	store Store
	dim   int

	mu   sync.Mutex
	open map[string]*Collection
}

// NewCatalog returns a catalog whose registries all use dimension dim.
func NewCatalog(store Store, dim int) *Catalog {
	return &Catalog{store: store, dim: dim, open: make(map[string]*Collection)}
}

// Open returns the named registry, creating it on first use.
func (c *Catalog) Open(ctx context.Context, name string) (*Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if coll, ok := c.open[name]; ok {
		return coll, nil
	}
	coll, err := OpenCollection(ctx, c.store, name, c.dim)
	if err != nil {
		return nil, err
	}
	c.open[name] = coll
	return coll, nil
}

// Opened returns the names of registries opened so far, sorted.
func (c *Catalog) Opened() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.open))
	for name := range c.open {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dimensions returns the vector dimension of every registry in the catalog.
func (c *Catalog) Dimensions() int { return c.dim }

// Store returns the underlying store.
func (c *Catalog) Store() Store { return c.store }
