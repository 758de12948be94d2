// Package ingest reads tables from files or uploads, canonicalizes their headers against a
// feature registry, and persists the resulting records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/schemalign/internal/canon"
	"github.com/hyperjump/schemalign/internal/fileid"
	"github.com/hyperjump/schemalign/internal/models"
	"github.com/hyperjump/schemalign/internal/storage"
	"github.com/hyperjump/schemalign/internal/table"
	"github.com/hyperjump/schemalign/internal/vector"
)

// DefaultConcurrency is the number of files IngestDirectory processes at once when none is given.
const DefaultConcurrency = 4

// ErrInvalidMetadata is returned when the provenance metadata is incomplete.
var ErrInvalidMetadata = errors.New("invalid metadata")

// Pipeline turns tables into canonicalized records.
type Pipeline struct {
	canon    *canon.Canonicalizer
	catalog  *vector.Catalog
	registry string
	sink     storage.Sink
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for debug output (file ingested, file skipped, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the ingestion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New returns a pipeline that canonicalizes against the named registry of catalog and saves
// records to sink.
func New(c *canon.Canonicalizer, catalog *vector.Catalog, registry string, sink storage.Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		canon:    c,
		catalog:  catalog,
		registry: registry,
		sink:     sink,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the name of the registry the pipeline canonicalizes against.
func (p *Pipeline) Registry() string { return p.registry }

// ForRegistry returns a copy of p that uses the named registry; "" keeps the current one.
func (p *Pipeline) ForRegistry(name string) *Pipeline {
	if name == "" || name == p.registry {
		return p
	}
	cp := *p
	cp.registry = name
	return &cp
}

// Result is the outcome of ingesting one table.
type Result struct {
	Record *models.Record `json:"record,omitempty"`
	Report *canon.Report  `json:"report,omitempty"`
	// Skipped is set when the source file was unchanged since it was last ingested.
	Skipped bool   `json:"skipped,omitempty"`
	Path    string `json:"path,omitempty"`
}

// IngestFile reads the table at path and ingests it. The record ID is derived from the absolute
// path, so re-ingesting a file replaces its record. Files whose modification time and size match
// the stored record are skipped when the sink can report them.
func (p *Pipeline) IngestFile(ctx context.Context, path string, meta models.Metadata) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if !table.Supported(absPath) {
		return nil, fmt.Errorf("%w: %s", table.ErrUnsupportedFormat, filepath.Ext(absPath))
	}
	meta, err = p.stamp(meta)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	id := fileid.PathID(absPath)
	if p.unchanged(ctx, id, info) {
		p.logger.Debug("ingest skipping unchanged file", zap.String("path", absPath))
		return &Result{Skipped: true, Path: absPath}, nil
	}

	t, err := table.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	rec := &models.Record{
		ID:            id,
		Filename:      filepath.Base(absPath),
		Metadata:      meta,
		SourceModTime: info.ModTime(),
		SourceSize:    info.Size(),
	}
	res, err := p.process(ctx, rec, t)
	if err != nil {
		return nil, err
	}
	res.Path = absPath
	p.logger.Debug("ingest file done",
		zap.String("path", absPath),
		zap.String("record", id),
		zap.Int("renamed", len(res.Report.Renames)))
	return res, nil
}

// IngestBytes ingests an uploaded table. The format is taken from the filename's extension.
func (p *Pipeline) IngestBytes(ctx context.Context, filename string, content []byte, meta models.Metadata) (*Result, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	meta, err := p.stamp(meta)
	if err != nil {
		return nil, err
	}
	t, err := table.ReadBytes(content, filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	rec := &models.Record{
		ID:       fileid.ContentID(filename, content),
		Filename: filepath.Base(filename),
		Metadata: meta,
	}
	return p.process(ctx, rec, t)
}

// IngestDirectory walks dir recursively and ingests every file with a supported table extension,
// running up to concurrency files at once. All files share meta, including its ingestion time.
// Returns the number of files ingested or skipped and the first error encountered, if any.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string, meta models.Metadata, concurrency int) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	meta, err = p.stamp(meta)
	if err != nil {
		return 0, err
	}

	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !table.Supported(path) {
			return nil
		}
		// Resolve symlinks so only regular files are ingested.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	var n atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, path := range paths {
		g.Go(func() error {
			if _, err := p.IngestFile(gctx, path, meta); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			n.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(n.Load()), err
}

func (p *Pipeline) process(ctx context.Context, rec *models.Record, t *table.Table) (*Result, error) {
	registry, err := p.catalog.Open(ctx, p.registry)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	out, report, err := p.canon.ProcessTable(ctx, registry, t)
	if err != nil {
		return nil, err
	}
	rec.Registry = registry.Name()
	rec.Columns = out.Columns
	rec.Rows = out.Rows
	rec.Renames = report.Renames
	if err := p.sink.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	return &Result{Record: rec, Report: report}, nil
}

// stamp fills in the ingestion time and validates meta.
func (p *Pipeline) stamp(meta models.Metadata) (models.Metadata, error) {
	if meta.IngestionTime.IsZero() {
		meta.IngestionTime = p.now().UTC()
	}
	if err := meta.Validate(); err != nil {
		return meta, errors.Join(ErrInvalidMetadata, err)
	}
	return meta, nil
}

// unchanged reports whether the sink already holds this file version. Lookup errors are logged
// and treated as changed.
func (p *Pipeline) unchanged(ctx context.Context, id string, info os.FileInfo) bool {
	lookup, ok := p.sink.(storage.VersionLookup)
	if !ok {
		return false
	}
	prev, found, err := lookup.SourceVersion(ctx, id)
	if err != nil {
		p.logger.Debug("ingest version lookup failed", zap.String("record", id), zap.Error(err))
		return false
	}
	if !found {
		return false
	}
	return prev.SourceSize == info.Size() && prev.SourceModTime.UnixNano() == info.ModTime().UnixNano()
}
