package intake

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/go-faster/errors"

	"github.com/raulbatres90/challenge-estudiantes/internal/core"
)

// parseCSV reads a delimited text file. The first non-blank record is the
// header. Every cell comes back as text; numeric coercion happens during
// validation.
func parseCSV(data []byte) (core.Dataset, error) {
	text, err := decodeText(data)
	if err != nil {
		return core.Dataset{}, errors.Wrap(err, "decode csv")
	}

	r := csv.NewReader(NewBOMSkippingReader(bytes.NewReader(text)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		ds     core.Dataset
		header headerIndex
	)

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return core.Dataset{}, errors.Wrap(err, "parse csv")
		}
		if isEmptyRow(record) {
			continue
		}

		if header == nil {
			header, ds.Columns = buildHeader(record)
			continue
		}

		line, _ := r.FieldPos(0)
		ds.Rows = append(ds.Rows, csvRow(record, header, line))
	}

	if header == nil {
		return core.Dataset{}, ErrEmptyFile
	}
	return ds, nil
}

func csvRow(record []string, header headerIndex, line int) core.RawRow {
	cells := make(map[string]core.Cell, len(header))
	for i, col := range header {
		if i < len(record) {
			cells[col] = core.TextCell(record[i])
		}
	}
	return core.RawRow{Line: line, Cells: cells}
}
