package table

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExcelReader reads the first sheet of an .xlsx workbook; its first row is the header.
type ExcelReader struct{}

// Read parses xlsx content.
func (ExcelReader) Read(content []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}
	return New(rows[0], rows[1:])
}
