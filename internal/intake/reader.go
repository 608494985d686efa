package intake

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
// The BOM is commonly added by Windows programs.
type BOMSkippingReader struct {
	reader  io.Reader
	checked bool
	pending []byte
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		var head [3]byte
		n, err := io.ReadFull(r.reader, head[:])
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return 0, err
		}
		if n < 3 || !bytes.Equal(head[:], utf8BOM) {
			r.pending = append(r.pending, head[:n]...)
		}
	}

	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}

	return r.reader.Read(p)
}

// decodeText returns data as UTF-8. Content that is not valid UTF-8 is
// taken to be Windows-1252, the encoding spreadsheet tools on Windows use
// when exporting CSV.
func decodeText(data []byte) ([]byte, error) {
	body := bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(body) {
		return data, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(body)
}
