package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/schemalign/internal/models"
)

// Multi fans a record out to several sinks. Every sink is attempted; failures are joined.
type Multi []Sink

// Save writes rec to every sink.
func (m Multi) Save(ctx context.Context, rec *models.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SourceVersion asks the first sink that can answer.
func (m Multi) SourceVersion(ctx context.Context, id string) (*models.Record, bool, error) {
	for _, s := range m {
		if v, ok := s.(VersionLookup); ok {
			return v.SourceVersion(ctx, id)
		}
	}
	return nil, false, nil
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
