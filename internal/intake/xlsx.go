package intake

import (
	"bytes"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"github.com/raulbatres90/challenge-estudiantes/internal/core"
)

// parseXLSX reads the first sheet of a workbook. Number cells keep their
// numeric type; everything else is text.
func parseXLSX(data []byte) (core.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return core.Dataset{}, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return core.Dataset{}, ErrEmptyFile
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return core.Dataset{}, errors.Wrapf(err, "read sheet %q", sheet)
	}

	var (
		ds     core.Dataset
		header headerIndex
	)

	for i, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		line := i + 1

		if header == nil {
			header, ds.Columns = buildHeader(row)
			continue
		}

		cells := make(map[string]core.Cell, len(header))
		for col, name := range header {
			if col >= len(row) {
				continue
			}
			cell, err := xlsxCell(f, sheet, col+1, line, row[col])
			if err != nil {
				return core.Dataset{}, err
			}
			cells[name] = cell
		}
		ds.Rows = append(ds.Rows, core.RawRow{Line: line, Cells: cells})
	}

	if header == nil {
		return core.Dataset{}, ErrEmptyFile
	}
	return ds, nil
}

// xlsxCell types a raw cell value. Numbers are stored without a type
// attribute, so an untyped cell whose value parses as a float is a number.
func xlsxCell(f *excelize.File, sheet string, col, row int, raw string) (core.Cell, error) {
	if raw == "" {
		return core.TextCell(""), nil
	}

	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return core.Cell{}, errors.Wrap(err, "cell name")
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return core.Cell{}, errors.Wrapf(err, "cell type %s", axis)
	}

	switch typ {
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return core.NumberCell(v), nil
		}
	}
	return core.TextCell(raw), nil
}
