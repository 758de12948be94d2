package models

import "fmt"

// ClassifyRequest asks for the canonical name of one feature.
type ClassifyRequest struct {
	Name   string   `json:"name"`
	Values []string `json:"values,omitempty"`
}

// Validate rejects an empty or whitespace-only name.
func (r *ClassifyRequest) Validate() error {
	if len(r.Name) == 0 {
		return fmt.Errorf("name cannot be empty")
	}
	for _, c := range r.Name {
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return nil
		}
	}
	return fmt.Errorf("name cannot be blank")
}

// DecisionFilter narrows a decision listing.
type DecisionFilter struct {
	Registry string
	Limit    int
	Offset   int
}

// Normalize applies the default limit of 50 and caps it at 1000.
func (f *DecisionFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
