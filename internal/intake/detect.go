package intake

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
)

const (
	mimeXLSX   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeXLS    = "application/vnd.ms-excel"
	mimeOLE    = "application/x-ole-storage"
	mimeText   = "text/plain"
	mimeZip    = "application/zip"
	extCSV     = ".csv"
	extXLSX    = ".xlsx"
	extXLS     = ".xls"
	sniffLimit = 3072
)

// Detect works out the format of data. The content wins over the file
// name; the extension only decides when the content is ambiguous.
func Detect(name string, data []byte) (Format, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return 0, ErrEmptyFile
	}

	sniff := data
	if len(sniff) > sniffLimit {
		sniff = sniff[:sniffLimit]
	}
	mt := mimetype.Detect(sniff)
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case isA(mt, mimeXLSX):
		return FormatXLSX, nil
	case isA(mt, mimeXLS), isA(mt, mimeOLE):
		return 0, errors.Wrap(ErrUnsupportedType, "legacy .xls workbooks must be saved as .xlsx")
	case isA(mt, mimeZip) && ext == extXLSX:
		// Some writers order the zip entries so that sniffing cannot see the workbook.
		return FormatXLSX, nil
	case isA(mt, mimeText):
		return FormatCSV, nil
	}

	switch ext {
	case extCSV:
		return FormatCSV, nil
	case extXLSX:
		return FormatXLSX, nil
	case extXLS:
		return 0, errors.Wrap(ErrUnsupportedType, "legacy .xls workbooks must be saved as .xlsx")
	}
	return 0, errors.Wrapf(ErrUnsupportedType, "%s (%s)", ext, mt.String())
}

func isA(mt *mimetype.MIME, expected string) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(expected) {
			return true
		}
	}
	return false
}
