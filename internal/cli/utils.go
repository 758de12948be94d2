// Package cli provides output formatting for the schemalign command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/schemalign/internal/ingest"
	"github.com/hyperjump/schemalign/internal/keyword"
	"github.com/hyperjump/schemalign/internal/models"
	"github.com/hyperjump/schemalign/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat parses a format name; "" is OutputText.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json)", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// DescribeDecision renders one decision as a single line.
func DescribeDecision(d models.Decision) string {
	switch {
	case d.Added:
		return fmt.Sprintf("%s: registered as new feature (%s, score %.4f)", d.Input, d.Path, d.Score)
	case d.Renamed():
		return fmt.Sprintf("%s -> %s (%s, score %.4f)", d.Input, d.Name, d.Path, d.Score)
	default:
		return fmt.Sprintf("%s: already canonical (%s, score %.4f)", d.Input, d.Path, d.Score)
	}
}

// WriteDecision writes one decision.
func WriteDecision(w io.Writer, d models.Decision, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, d)
	}
	_, err := fmt.Fprintln(w, DescribeDecision(d))
	return err
}

// WriteFeatures writes the canonical names of a registry, sorted in text mode.
func WriteFeatures(w io.Writer, registry string, names []string, format OutputFormat) error {
	if names == nil {
		names = []string{}
	}
	if format == OutputJSON {
		return WriteJSON(w, map[string]interface{}{"registry": registry, "features": names, "count": len(names)})
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	fmt.Fprintf(w, "%d features in %q\n", len(sorted), registry)
	for _, n := range sorted {
		fmt.Fprintf(w, "  %s\n", n)
	}
	return nil
}

// WriteSearchHits writes feature search hits in rank order.
func WriteSearchHits(w io.Writer, registry, query string, hits []keyword.Hit, format OutputFormat) error {
	if hits == nil {
		hits = []keyword.Hit{}
	}
	if format == OutputJSON {
		return WriteJSON(w, map[string]interface{}{"registry": registry, "query": query, "hits": hits})
	}
	if len(hits) == 0 {
		_, err := fmt.Fprintf(w, "No features in %q match %q\n", registry, query)
		return err
	}
	for _, h := range hits {
		fmt.Fprintf(w, "%-32s %.3f\n", h.Name, h.Score)
	}
	return nil
}

// WriteCount writes the size of a registry.
func WriteCount(w io.Writer, registry string, n int, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, map[string]interface{}{"registry": registry, "count": n})
	}
	_, err := fmt.Fprintln(w, n)
	return err
}

// WriteDecisions writes an audit log listing, newest first.
func WriteDecisions(w io.Writer, decisions []models.Decision, format OutputFormat) error {
	if decisions == nil {
		decisions = []models.Decision{}
	}
	if format == OutputJSON {
		return WriteJSON(w, map[string]interface{}{"decisions": decisions})
	}
	if len(decisions) == 0 {
		_, err := fmt.Fprintln(w, "No decisions recorded.")
		return err
	}
	for _, d := range decisions {
		fmt.Fprintf(w, "%s  [%s] %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"), d.Registry, DescribeDecision(d))
	}
	return nil
}

// WriteIngestResults writes the outcome of ingesting one or more files.
func WriteIngestResults(w io.Writer, results []*ingest.Result, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, map[string]interface{}{"results": results})
	}
	for _, res := range results {
		writeIngestResultText(w, res)
	}
	return nil
}

func writeIngestResultText(w io.Writer, res *ingest.Result) {
	if res.Skipped {
		fmt.Fprintf(w, "%s: unchanged, skipped\n", res.Path)
		return
	}
	name := res.Path
	if name == "" && res.Record != nil {
		name = res.Record.Filename
	}
	rec := res.Record
	fmt.Fprintf(w, "%s -> record %s (%d columns, %d rows, registry %q)\n",
		name, rec.ID, len(rec.Columns), len(rec.Rows), rec.Registry)
	if res.Report == nil {
		return
	}
	for _, d := range res.Report.Decisions {
		fmt.Fprintf(w, "  %s\n", DescribeDecision(d))
	}
	for _, c := range res.Report.Collisions {
		fmt.Fprintf(w, "  ! %s not renamed: %q already present\n", c.Column, c.Target)
	}
	for _, f := range res.Report.Failures {
		fmt.Fprintf(w, "  ! %s failed: %s\n", f.Column, utils.Truncate(f.Error, 200))
	}
}
