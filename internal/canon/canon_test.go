package canon

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/schemalign/internal/embedding"
	"github.com/hyperjump/schemalign/internal/models"
	"github.com/hyperjump/schemalign/internal/oracle"
	"github.com/hyperjump/schemalign/internal/vector"
)

// tableEmbedder returns fixed vectors per name.
type tableEmbedder struct {
	dims    int
	vectors map[string][]float32
}

func (e *tableEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := e.vectors[text]
	if !ok {
		return nil, fmt.Errorf("%w: no vector for %q", embedding.ErrEmbeddingUnavailable, text)
	}
	return v, nil
}

func (e *tableEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *tableEmbedder) Dimensions() int { return e.dims }
func (e *tableEmbedder) Close() error    { return nil }

// fakeOracle answers from a table keyed by target and records every call.
type fakeOracle struct {
	mu      sync.Mutex
	answers map[string]string
	calls   []oracleCall
}

type oracleCall struct {
	target     string
	values     []string
	candidates []string
}

func (o *fakeOracle) Classify(_ context.Context, target string, values, candidates []string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, oracleCall{target: target, values: values, candidates: append([]string(nil), candidates...)})
	if a, ok := o.answers[target]; ok {
		return a, nil
	}
	return oracle.NoMatch, nil
}

func (o *fakeOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

// unit returns v scaled to length 1, with the last component filling the remainder.
func unit(xs ...float32) []float32 {
	var sum float64
	for _, x := range xs {
		sum += float64(x) * float64(x)
	}
	return append(xs, float32(math.Sqrt(math.Max(0, 1-sum))))
}

// Vectors are 3-d: age ~ x axis, income ~ y axis.
func scenarioEmbedder() *tableEmbedder {
	return &tableEmbedder{dims: 3, vectors: map[string][]float32{
		"age":       {1, 0, 0},
		"income":    {0, 1, 0},
		"Age_Years": unit(0.92, 0),
		"zipcode":   unit(0.40, 0.30),
		"Revenue":   unit(0.30, 0.50),
	}}
}

func newRegistry(t *testing.T, names ...string) (*vector.Collection, *tableEmbedder) {
	t.Helper()
	ctx := context.Background()
	store, err := vector.NewMemoryStore("")
	require.NoError(t, err)
	emb := scenarioEmbedder()
	reg, err := vector.OpenCollection(ctx, store, "features", emb.dims)
	require.NoError(t, err)
	for _, n := range names {
		require.NoError(t, reg.UpsertOne(ctx, vector.PointID(n), emb.vectors[n], n))
	}
	return reg, emb
}

func count(t *testing.T, reg *vector.Collection) int {
	t.Helper()
	n, err := reg.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestSmartLoad_EmptyRegistryRegistersFirstFeature(t *testing.T) {
	reg, emb := newRegistry(t)
	orc := &fakeOracle{}
	c := New(emb, orc)

	d, err := c.SmartLoad(context.Background(), reg, "age", []string{"12", "13"})
	require.NoError(t, err)
	assert.True(t, d.Added)
	assert.Equal(t, "age", d.Name)
	assert.Equal(t, models.PathOracleNew, d.Path)
	assert.Equal(t, 1, count(t, reg))
	assert.Equal(t, 0, orc.callCount(), "empty candidate list resolves without the model")
}

func TestSmartLoad_SimilarityShortcut(t *testing.T) {
	reg, emb := newRegistry(t, "age")
	orc := &fakeOracle{}
	c := New(emb, orc)

	d, err := c.SmartLoad(context.Background(), reg, "Age_Years", nil)
	require.NoError(t, err)
	assert.False(t, d.Added)
	assert.Equal(t, "age", d.Name)
	assert.Equal(t, models.PathSimilarity, d.Path)
	assert.InDelta(t, 0.92, d.Score, 1e-5)
	assert.True(t, d.Renamed())
	assert.Equal(t, 0, orc.callCount())
	assert.Equal(t, 1, count(t, reg))
}

func TestSmartLoad_OracleNoMatchRegisters(t *testing.T) {
	reg, emb := newRegistry(t, "age", "income")
	orc := &fakeOracle{}
	c := New(emb, orc)

	d, err := c.SmartLoad(context.Background(), reg, "zipcode", []string{"10001"})
	require.NoError(t, err)
	assert.True(t, d.Added)
	assert.Equal(t, "zipcode", d.Name)
	assert.InDelta(t, 0.40, d.Score, 1e-5)
	assert.Equal(t, 3, count(t, reg))

	require.Equal(t, 1, orc.callCount())
	assert.ElementsMatch(t, []string{"age", "income"}, orc.calls[0].candidates)
	assert.Equal(t, []string{"10001"}, orc.calls[0].values)
}

func TestSmartLoad_OracleAliasDoesNotMutate(t *testing.T) {
	reg, emb := newRegistry(t, "age", "income")
	orc := &fakeOracle{answers: map[string]string{"Revenue": "income"}}
	c := New(emb, orc)
	ctx := context.Background()

	d, err := c.SmartLoad(ctx, reg, "Revenue", nil)
	require.NoError(t, err)
	assert.False(t, d.Added)
	assert.Equal(t, "income", d.Name)
	assert.Equal(t, models.PathOracleAlias, d.Path)
	assert.Equal(t, 2, count(t, reg))

	names, err := reg.Names(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, "Revenue")

	// Aliases are not memorized: the same input consults the oracle again.
	_, err = c.SmartLoad(ctx, reg, "Revenue", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, orc.callCount())
}

func TestSmartLoad_Idempotent(t *testing.T) {
	reg, emb := newRegistry(t)
	c := New(emb, &fakeOracle{})
	ctx := context.Background()

	first, err := c.SmartLoad(ctx, reg, "age", nil)
	require.NoError(t, err)
	assert.True(t, first.Added)

	second, err := c.SmartLoad(ctx, reg, "age", nil)
	require.NoError(t, err)
	assert.False(t, second.Added)
	assert.Equal(t, "age", second.Name)
	assert.False(t, second.Renamed())
	assert.Equal(t, 1, count(t, reg))
}

func TestSmartLoad_ScoreEqualToThresholdUsesOracle(t *testing.T) {
	reg, emb := newRegistry(t, "age")
	ctx := context.Background()
	hits, err := reg.Nearest(ctx, emb.vectors["Age_Years"], 1)
	require.NoError(t, err)

	orc := &fakeOracle{answers: map[string]string{"Age_Years": "age"}}
	c := New(emb, orc, WithThreshold(hits[0].Score))
	d, err := c.SmartLoad(ctx, reg, "Age_Years", nil)
	require.NoError(t, err)
	assert.Equal(t, models.PathOracleAlias, d.Path)
	assert.Equal(t, 1, orc.callCount())
}

func TestSmartLoad_ContractViolation(t *testing.T) {
	reg, emb := newRegistry(t, "age", "income")
	ctx := context.Background()

	orc := &fakeOracle{answers: map[string]string{"zipcode": "zip code"}}
	_, err := New(emb, orc).SmartLoad(ctx, reg, "zipcode", nil)
	assert.ErrorIs(t, err, oracle.ErrContractViolation)
	assert.Equal(t, 2, count(t, reg))

	d, err := New(emb, orc, WithViolationPolicy(oracle.PolicyNoMatch)).SmartLoad(ctx, reg, "zipcode", nil)
	require.NoError(t, err)
	assert.True(t, d.Added)
	assert.Equal(t, 3, count(t, reg))
}

func TestSmartLoad_Errors(t *testing.T) {
	reg, emb := newRegistry(t)
	c := New(emb, &fakeOracle{})
	ctx := context.Background()

	_, err := c.SmartLoad(ctx, reg, "  ", nil)
	assert.ErrorIs(t, err, ErrInvalidFeature)

	_, err = c.SmartLoad(ctx, reg, "unknown", nil)
	assert.ErrorIs(t, err, embedding.ErrEmbeddingUnavailable)

	emb.vectors["wide"] = []float32{1, 0, 0, 0}
	_, err = c.SmartLoad(ctx, reg, "wide", nil)
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
	assert.Equal(t, 0, count(t, reg))
}

type sliceRecorder struct {
	mu        sync.Mutex
	decisions []models.Decision
}

func (r *sliceRecorder) RecordDecision(_ context.Context, d models.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
	return nil
}

func TestSmartLoad_RecordsDecisions(t *testing.T) {
	reg, emb := newRegistry(t)
	rec := &sliceRecorder{}
	c := New(emb, &fakeOracle{}, WithRecorder(rec))
	ctx := context.Background()

	_, _ = c.SmartLoad(ctx, reg, "age", nil)
	_, _ = c.SmartLoad(ctx, reg, "Age_Years", nil)

	require.Len(t, rec.decisions, 2)
	assert.Equal(t, "features", rec.decisions[0].Registry)
	assert.Equal(t, models.PathOracleNew, rec.decisions[0].Path)
	assert.Equal(t, models.PathSimilarity, rec.decisions[1].Path)
	assert.False(t, rec.decisions[1].CreatedAt.IsZero())
}

func TestSmartLoad_ConcurrentNearDuplicatesRegisterOnce(t *testing.T) {
	ctx := context.Background()
	emb := &tableEmbedder{dims: 3, vectors: map[string][]float32{}}
	for i := 0; i < 16; i++ {
		emb.vectors[fmt.Sprintf("student_id_%d", i)] = unit(0.999, float32(i)*0.001)
	}
	store, err := vector.NewMemoryStore("")
	require.NoError(t, err)
	reg, err := vector.OpenCollection(ctx, store, "features", 3)
	require.NoError(t, err)
	c := New(emb, oracle.StaticOracle{})

	var wg sync.WaitGroup
	added := make(chan string, 16)
	for name := range emb.vectors {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			d, err := c.SmartLoad(ctx, reg, name, nil)
			assert.NoError(t, err)
			if d.Added {
				added <- name
			}
		}(name)
	}
	wg.Wait()
	close(added)

	assert.Len(t, added, 1)
	assert.Equal(t, 1, count(t, reg))
}
