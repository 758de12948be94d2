// Package storage persists canonicalized records and the decision audit log.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/schemalign/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Sink receives finished records. Saving a record with an existing ID replaces it.
type Sink interface {
	Save(ctx context.Context, rec *models.Record) error
	Close() error
}

// VersionLookup is implemented by sinks that can report the source version of a stored record,
// letting ingestion skip unchanged files.
type VersionLookup interface {
	SourceVersion(ctx context.Context, id string) (rec *models.Record, found bool, err error)
}
