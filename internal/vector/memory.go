package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store using brute-force cosine search. Vectors are normalized on
// insert so search is a plain inner product. When created with a path, the contents are loaded
// from it and written back on Close.
type MemoryStore struct {
	path        string
	collections map[string]*memCollection
	mu          sync.RWMutex
}

type memCollection struct {
	dim    int
	points map[string]Point
	ids    []string // sorted; scroll order
}

// NewMemoryStore creates a MemoryStore. A non-empty path is loaded if it exists and saved on Close.
func NewMemoryStore(path string) (*MemoryStore, error) {
	m := &MemoryStore{path: path, collections: make(map[string]*memCollection)}
	if err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureCollection creates the collection if missing.
func (m *MemoryStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		if c.dim != dim {
			return &DimensionMismatchError{Collection: name, Expected: c.dim, Actual: dim}
		}
		return nil
	}
	m.collections[name] = &memCollection{dim: dim, points: make(map[string]Point)}
	return nil
}

func (m *MemoryStore) collection(name string) (*memCollection, error) {
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

// Upsert stores points, replacing existing points with the same ID.
func (m *MemoryStore) Upsert(ctx context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		if err := checkDim(collection, c.dim, p.Vector); err != nil {
			return err
		}
	}
	for _, p := range points {
		if _, exists := c.points[p.ID]; !exists {
			i := sort.SearchStrings(c.ids, p.ID)
			c.ids = append(c.ids, "")
			copy(c.ids[i+1:], c.ids[i:])
			c.ids[i] = p.ID
		}
		c.points[p.ID] = Point{ID: p.ID, Vector: normalized(p.Vector), Name: p.Name}
	}
	return nil
}

// Search returns the top-limit points by cosine similarity. Ties are broken by ID.
func (m *MemoryStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	if err := checkDim(collection, c.dim, vector); err != nil {
		return nil, err
	}
	if limit <= 0 || len(c.ids) == 0 {
		return []Match{}, nil
	}
	query := normalized(vector)
	matches := make([]Match, 0, len(c.ids))
	for _, id := range c.ids {
		p := c.points[id]
		matches = append(matches, Match{ID: id, Name: p.Name, Score: InnerProduct(query, p.Vector)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > len(matches) {
		limit = len(matches)
	}
	return matches[:limit], nil
}

// Scroll pages through points in ID order. offset is the first ID of the page.
func (m *MemoryStore) Scroll(ctx context.Context, collection string, limit int, offset string) ([]Point, string, error) {
	if limit <= 0 {
		return nil, "", fmt.Errorf("limit must be positive")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, "", err
	}
	start := 0
	if offset != "" {
		start = sort.SearchStrings(c.ids, offset)
	}
	end := start + limit
	next := ""
	if end < len(c.ids) {
		next = c.ids[end]
	} else {
		end = len(c.ids)
	}
	page := make([]Point, 0, end-start)
	for _, id := range c.ids[start:end] {
		page = append(page, c.points[id])
	}
	return page, next, nil
}

// Count returns the number of points in the collection.
func (m *MemoryStore) Count(ctx context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return 0, err
	}
	return len(c.ids), nil
}

// Dimensions returns the dimension of a collection, or 0 when it does not exist.
func (m *MemoryStore) Dimensions(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[collection]; ok {
		return c.dim
	}
	return 0
}

// Save writes every collection to path. Format: collection count (4), then per collection
// name, dimension (4), point count (4), and per point id, name, vector (dimension*4 bytes).
// Strings are a 4-byte length followed by the bytes.
func (m *MemoryStore) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(names))); err != nil {
		return fmt.Errorf("write collection count: %w", err)
	}
	for _, name := range names {
		c := m.collections[name]
		if err := writeString(w, name); err != nil {
			return fmt.Errorf("write collection name: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(c.dim)); err != nil {
			return fmt.Errorf("write dimensions: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(c.ids))); err != nil {
			return fmt.Errorf("write count: %w", err)
		}
		for _, id := range c.ids {
			p := c.points[id]
			if err := writeString(w, id); err != nil {
				return fmt.Errorf("write id: %w", err)
			}
			if err := writeString(w, p.Name); err != nil {
				return fmt.Errorf("write name: %w", err)
			}
			if _, err := w.Write(float32SliceToBytes(p.Vector)); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	return nil
}

// Load replaces the in-memory contents with the snapshot at path. A missing file is not an error.
func (m *MemoryStore) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("read collection count: %w", err)
	}
	collections := make(map[string]*memCollection, count)
	for i := uint32(0); i < count; i++ {
		name, err := readString(r)
		if err != nil {
			return fmt.Errorf("read collection name: %w", err)
		}
		var dim, n uint32
		if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
			return fmt.Errorf("read dimensions: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return fmt.Errorf("read count: %w", err)
		}
		c := &memCollection{dim: int(dim), points: make(map[string]Point, n), ids: make([]string, 0, n)}
		buf := make([]byte, int(dim)*4)
		for j := uint32(0); j < n; j++ {
			id, err := readString(r)
			if err != nil {
				return fmt.Errorf("read id: %w", err)
			}
			pointName, err := readString(r)
			if err != nil {
				return fmt.Errorf("read name: %w", err)
			}
			if _, err := io.ReadFull(r, buf); err != nil {
				return fmt.Errorf("read vector: %w", err)
			}
			c.points[id] = Point{ID: id, Name: pointName, Vector: bytesToFloat32Slice(buf)}
			c.ids = append(c.ids, id)
		}
		sort.Strings(c.ids)
		collections[name] = c
	}

	m.mu.Lock()
	m.collections = collections
	m.mu.Unlock()
	return nil
}

// Close saves the snapshot when the store was created with a path.
func (m *MemoryStore) Close() error {
	return m.Save(m.path)
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
