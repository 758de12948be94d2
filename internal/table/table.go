// Package table reads tabular files into a header plus string rows.
package table

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for file extensions without a reader.
	ErrUnsupportedFormat = errors.New("unsupported table format")
	// ErrEmptyTable is returned when a file has no header row.
	ErrEmptyTable = errors.New("table has no columns")
)

// Table is a rectangular grid of string cells with named columns. Every row has exactly
// len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New builds a table, normalizing header names and padding or truncating rows to the header width.
// Blank header cells become "column_N"; repeated names get the first free ".N" suffix.
func New(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, ErrEmptyTable
	}
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n, dup := seen[name]; dup {
			base := name
			for {
				n++
				name = fmt.Sprintf("%s.%d", base, n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[base] = n
		}
		seen[name] = 0
		columns[i] = name
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := make([]string, len(columns))
		copy(row, r)
		out = append(out, row)
	}
	return &Table{Columns: columns, Rows: out}, nil
}

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.Columns) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns every value of column i.
func (t *Table) Column(i int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Sample returns up to n non-empty values of column i in row order (all when n <= 0).
func (t *Table) Sample(i, n int) []string {
	var out []string
	for _, row := range t.Rows {
		if strings.TrimSpace(row[i]) == "" {
			continue
		}
		out = append(out, row[i])
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// Rename returns a copy of t with columns renamed by renames (old name to new name). Columns not
// in the map keep their names; rows are shared with t.
func (t *Table) Rename(renames map[string]string) *Table {
	columns := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if to, ok := renames[c]; ok {
			columns[i] = to
		} else {
			columns[i] = c
		}
	}
	return &Table{Columns: columns, Rows: t.Rows}
}

// Records returns each row as a column-name to value map.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for r, row := range t.Rows {
		m := make(map[string]string, len(t.Columns))
		for i, c := range t.Columns {
			m[c] = row[i]
		}
		out[r] = m
	}
	return out
}
