package table

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind names a supported table format.
type Kind string

const (
	KindCSV  Kind = "csv"
	KindXLSX Kind = "xlsx"
	KindJSON Kind = "json"
)

// Reader parses file content into a Table.
type Reader interface {
	Read(content []byte) (*Table, error)
}

var readers = map[string]Reader{
	".csv":  CSVReader{},
	".xlsx": ExcelReader{},
	".json": JSONReader{},
}

// ReaderFor returns the reader for a file extension (with or without the leading dot, any case).
func ReaderFor(ext string) (Reader, error) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r, ok := readers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return r, nil
}

// Supported reports whether path has a table extension.
func Supported(path string) bool {
	_, err := ReaderFor(filepath.Ext(path))
	return err == nil
}

// Extensions lists the supported extensions in sorted order.
func Extensions() []string {
	out := make([]string, 0, len(readers))
	for ext := range readers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ReadBytes parses content using the reader for ext.
func ReadBytes(content []byte, ext string) (*Table, error) {
	r, err := ReaderFor(ext)
	if err != nil {
		return nil, err
	}
	return r.Read(content)
}

// ReadFile reads and parses the table at path, choosing the reader by extension.
func ReadFile(path string) (*Table, error) {
	r, err := ReaderFor(filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	t, err := r.Read(content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return t, nil
}
