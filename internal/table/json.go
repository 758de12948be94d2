package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// JSONReader reads either an array of records ([{"a":1},{"a":2}]) or an object of column
// arrays ({"a":[1,2]}). Column order follows first appearance in the document.
type JSONReader struct{}

// Read parses JSON content.
func (JSONReader) Read(content []byte) (*Table, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(content, []byte("\ufeff")))
	if len(trimmed) == 0 {
		return nil, ErrEmptyTable
	}
	switch trimmed[0] {
	case '[':
		return readRecords(trimmed)
	case '{':
		return readColumns(trimmed)
	default:
		return nil, fmt.Errorf("JSON table must be an array or an object")
	}
}

func readRecords(content []byte) (*Table, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(content, &items); err != nil {
		return nil, fmt.Errorf("decode JSON records: %w", err)
	}
	var header []string
	index := make(map[string]int)
	records := make([]map[string]json.RawMessage, 0, len(items))
	for i, item := range items {
		keys, values, err := decodeObject(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(header)
				header = append(header, k)
			}
		}
		records = append(records, values)
	}
	rows := make([][]string, len(records))
	for r, rec := range records {
		row := make([]string, len(header))
		for k, v := range rec {
			row[index[k]] = cell(v)
		}
		rows[r] = row
	}
	return New(header, rows)
}

func readColumns(content []byte) (*Table, error) {
	keys, values, err := decodeObject(content)
	if err != nil {
		return nil, err
	}
	columns := make([][]json.RawMessage, len(keys))
	height := 0
	for i, k := range keys {
		var col []json.RawMessage
		if err := json.Unmarshal(values[k], &col); err != nil {
			// {"a": {"0": 1, "1": 2}} is the index-keyed column layout.
			ik, iv, objErr := decodeObject(values[k])
			if objErr != nil {
				return nil, fmt.Errorf("column %q: expected an array or object", k)
			}
			for _, key := range ik {
				col = append(col, iv[key])
			}
		}
		columns[i] = col
		if len(col) > height {
			height = len(col)
		}
	}
	rows := make([][]string, height)
	for r := range rows {
		row := make([]string, len(keys))
		for c, col := range columns {
			if r < len(col) {
				row[c] = cell(col[r])
			}
		}
		rows[r] = row
	}
	return New(keys, rows)
}

// decodeObject returns an object's keys in document order and their raw values.
func decodeObject(raw []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("decode JSON object: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected a JSON object")
	}
	var keys []string
	values := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("decode JSON key: %w", err)
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("decode JSON value for %q: %w", key, err)
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = v
	}
	return keys, values, nil
}

// cell renders a JSON value as a table cell: strings unquoted, null empty, anything else compact JSON.
func cell(v json.RawMessage) string {
	s := strings.TrimSpace(string(v))
	switch {
	case s == "" || s == "null":
		return ""
	case s[0] == '"':
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			return str
		}
		return s
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err == nil {
			return buf.String()
		}
		return s
	}
}
