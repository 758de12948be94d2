// Package models defines core data structures for ingested records, canonicalization
// decisions, and API requests.
package models

import (
	"fmt"
	"time"
)

// Metadata describes where an uploaded table came from.
type Metadata struct {
	Region        string    `json:"region" bson:"region"`
	School        string    `json:"school" bson:"school"`
	Activity      string    `json:"activity" bson:"activity"`
	IngestionTime time.Time `json:"ingestion_time" bson:"ingestion_time"`
}

// Validate requires every field to be set.
func (m Metadata) Validate() error {
	switch {
	case m.Region == "":
		return fmt.Errorf("region is required")
	case m.School == "":
		return fmt.Errorf("school is required")
	case m.Activity == "":
		return fmt.Errorf("activity is required")
	case m.IngestionTime.IsZero():
		return fmt.Errorf("ingestion time is required")
	}
	return nil
}

// Record is a canonicalized table together with its provenance.
type Record struct {
	ID       string     `json:"id"`
	Filename string     `json:"filename"`
	Registry string     `json:"registry"`
	Metadata Metadata   `json:"metadata"`
	Columns  []string   `json:"columns"`
	Rows     [][]string `json:"rows"`
	// Renames maps original column names to the canonical names they were replaced with.
	Renames map[string]string `json:"renames,omitempty"`
	// SourceModTime and SourceSize identify the source file version for change detection.
	SourceModTime time.Time `json:"source_mod_time,omitempty"`
	SourceSize    int64     `json:"source_size,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks the record can be persisted.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if r.Filename == "" {
		return fmt.Errorf("filename is required")
	}
	if err := r.Metadata.Validate(); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(r.Columns))
		}
	}
	return nil
}
