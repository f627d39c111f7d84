package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the worksheet to read.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads a worksheet whose first row is the header and returns the
// remaining non-empty rows keyed by normalized header.
func ReadXLSX(path string, opts XLSXOptions) ([]Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	return readWorkbook(f, opts)
}

// ReadXLSXBytes is ReadXLSX for an in-memory workbook.
func ReadXLSXBytes(data []byte, opts XLSXOptions) ([]Row, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open binary")
	}
	return readWorkbook(f, opts)
}

func readWorkbook(f *xlsx.File, opts XLSXOptions) ([]Row, error) {
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var (
		header []string
		rows   []Row
	)
	for _, r := range sheet.Rows {
		cells := rowToStrings(r)
		if header == nil {
			header = make([]string, len(cells))
			for i, h := range cells {
				header[i] = NormalizeHeader(h)
			}
			continue
		}
		if row := toRow(header, cells); row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
