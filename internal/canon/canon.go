// Package canon decides, for each incoming column name, whether it duplicates, aliases, or adds
// a canonical feature in a registry, and rewrites table headers accordingly.
package canon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/schemalign/internal/embedding"
	"github.com/hyperjump/schemalign/internal/lock"
	"github.com/hyperjump/schemalign/internal/models"
	"github.com/hyperjump/schemalign/internal/oracle"
	"github.com/hyperjump/schemalign/internal/vector"
)

// DefaultThreshold is the similarity a nearest match must exceed to be taken without the oracle.
const DefaultThreshold = 0.8

// ErrInvalidFeature is returned for an empty feature name.
var ErrInvalidFeature = errors.New("invalid feature name")

// Recorder receives every decision, e.g. for an audit log. Recorder failures are logged and
// do not fail the classification.
type Recorder interface {
	RecordDecision(ctx context.Context, d models.Decision) error
}

// Canonicalizer resolves feature names against a registry.
type Canonicalizer struct {
	embedder   embedding.Embedder
	oracle     oracle.Oracle
	locker     lock.Locker
	threshold  float64
	pageSize   int
	batchSize  int
	policy     oracle.Policy
	failure    FailurePolicy
	sampleSize int
	recorder   Recorder
	logger     *zap.Logger
}

// Option configures a Canonicalizer.
type Option func(*Canonicalizer)

// WithThreshold sets the similarity cutoff. Scores equal to it go to the oracle.
func WithThreshold(t float64) Option {
	return func(c *Canonicalizer) { c.threshold = t }
}

// WithPageSize sets the scroll page size used to list candidates.
func WithPageSize(n int) Option {
	return func(c *Canonicalizer) { c.pageSize = n }
}

// WithBatchSize sets the upsert chunk size.
func WithBatchSize(n int) Option {
	return func(c *Canonicalizer) { c.batchSize = n }
}

// WithViolationPolicy sets how malformed oracle answers are handled.
func WithViolationPolicy(p oracle.Policy) Option {
	return func(c *Canonicalizer) { c.policy = p }
}

// WithFailurePolicy sets how ProcessTable handles a column that cannot be classified.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(c *Canonicalizer) { c.failure = p }
}

// WithSampleSize caps how many column values ProcessTable passes to the oracle.
func WithSampleSize(n int) Option {
	return func(c *Canonicalizer) { c.sampleSize = n }
}

// WithRecorder sets the decision recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Canonicalizer) { c.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Canonicalizer) { c.logger = l }
}

// WithLocker replaces the default in-process locker.
func WithLocker(l lock.Locker) Option {
	return func(c *Canonicalizer) { c.locker = l }
}

// New returns a Canonicalizer using emb for vectors and orc for ambiguous names.
func New(emb embedding.Embedder, orc oracle.Oracle, opts ...Option) *Canonicalizer {
	c := &Canonicalizer{
		embedder:   emb,
		oracle:     orc,
		threshold:  DefaultThreshold,
		pageSize:   vector.DefaultPageSize,
		batchSize:  vector.DefaultBatchSize,
		policy:     oracle.PolicyFail,
		failure:    FailureAbort,
		sampleSize: 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.locker == nil {
		c.locker = lock.NewLocal()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Threshold returns the configured similarity cutoff.
func (c *Canonicalizer) Threshold() float64 { return c.threshold }

// SmartLoad resolves featureName against registry:
//  1. embed the name;
//  2. if the nearest canonical feature scores strictly above the threshold, reuse it;
//  3. otherwise ask the oracle with every canonical name as a candidate;
//  4. on NoMatch register the name, otherwise return the oracle's alias without storing it.
//
// The search-to-upsert sequence holds the registry lock, so concurrent submissions of similar
// new names register once.
func (c *Canonicalizer) SmartLoad(ctx context.Context, registry *vector.Collection, featureName string, values []string) (models.Decision, error) {
	if strings.TrimSpace(featureName) == "" {
		return models.Decision{}, ErrInvalidFeature
	}
	vec, err := c.embedder.Embed(ctx, featureName)
	if err != nil {
		return models.Decision{}, fmt.Errorf("embed %q: %w", featureName, err)
	}

	unlock, err := c.locker.Lock(ctx, registry.Name())
	if err != nil {
		return models.Decision{}, fmt.Errorf("lock registry %q: %w", registry.Name(), err)
	}
	defer unlock()

	d, err := c.decide(ctx, registry, featureName, values, vec)
	if err != nil {
		c.logger.Warn("canonicalization failed",
			zap.String("registry", registry.Name()),
			zap.String("feature", featureName),
			zap.Error(err))
		return models.Decision{}, err
	}
	d.Registry = registry.Name()
	d.CreatedAt = time.Now()

	c.logger.Debug("feature resolved",
		zap.String("registry", d.Registry),
		zap.String("feature", featureName),
		zap.String("resolved", d.Name),
		zap.String("path", d.Path),
		zap.Float64("score", d.Score),
		zap.Bool("added", d.Added))
	if c.recorder != nil {
		if err := c.recorder.RecordDecision(ctx, d); err != nil {
			c.logger.Warn("failed to record decision", zap.String("feature", featureName), zap.Error(err))
		}
	}
	return d, nil
}

func (c *Canonicalizer) decide(ctx context.Context, registry *vector.Collection, featureName string, values []string, vec []float32) (models.Decision, error) {
	hits, err := registry.Nearest(ctx, vec, 1)
	if err != nil {
		return models.Decision{}, fmt.Errorf("nearest: %w", err)
	}
	var score float64
	if len(hits) > 0 {
		score = hits[0].Score
		if score > c.threshold {
			return models.Decision{Added: false, Name: hits[0].Name, Input: featureName, Path: models.PathSimilarity, Score: score}, nil
		}
	}

	candidates, err := registry.ScrollAll(ctx, c.pageSize)
	if err != nil {
		return models.Decision{}, fmt.Errorf("list candidates: %w", err)
	}
	verdict, err := oracle.Resolve(ctx, c.oracle, featureName, values, candidates, c.policy)
	if err != nil {
		return models.Decision{}, fmt.Errorf("classify %q: %w", featureName, err)
	}
	if verdict.Coerced {
		c.logger.Warn("malformed oracle answer treated as no match",
			zap.String("feature", featureName), zap.String("answer", verdict.Raw))
	}

	if verdict.IsNoMatch() {
		point := vector.Point{ID: vector.PointID(featureName), Vector: vec, Name: featureName}
		if err := registry.UpsertBatch(ctx, []vector.Point{point}, c.batchSize); err != nil {
			return models.Decision{}, fmt.Errorf("register %q: %w", featureName, err)
		}
		return models.Decision{Added: true, Name: featureName, Input: featureName, Path: models.PathOracleNew, Score: score}, nil
	}
	return models.Decision{Added: false, Name: verdict.Name, Input: featureName, Path: models.PathOracleAlias, Score: score}, nil
}
