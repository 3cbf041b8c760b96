package xlsx2csv

import (
	"bytes"
	"io"
	"strings"
)

// Writer serializes assembled rows as delimited text. Each row is written to
// the underlying stream as soon as it is produced; whole sheets are never
// buffered, so a consumer that stops reading is noticed promptly.
type Writer struct {
	w              io.Writer
	delimiter      rune
	lineTerminator string
	sheetDelimiter string
	quoting        Quoting
	buf            bytes.Buffer
}

// NewWriter builds a writer from the run configuration.
func NewWriter(w io.Writer, opts *Options) *Writer {
	return &Writer{
		w:              w,
		delimiter:      opts.Delimiter,
		lineTerminator: opts.LineTerminator,
		sheetDelimiter: opts.SheetDelimiter,
		quoting:        opts.Quoting,
	}
}

// WriteRow emits one row. Rows may be ragged; no padding is added.
func (cw *Writer) WriteRow(fields []Field) error {
	cw.buf.Reset()
	for i, f := range fields {
		if i > 0 {
			cw.buf.WriteRune(cw.delimiter)
		}
		cw.writeField(f)
	}
	cw.buf.WriteString(cw.lineTerminator)
	_, err := cw.w.Write(cw.buf.Bytes())
	return err
}

// SheetBreak writes the configured separator line between consecutive
// sheets. A run configured without a separator writes nothing.
func (cw *Writer) SheetBreak() error {
	if cw.sheetDelimiter == "" {
		return nil
	}
	_, err := io.WriteString(cw.w, cw.sheetDelimiter+cw.lineTerminator)
	return err
}

func (cw *Writer) writeField(f Field) {
	if !cw.needsQuote(f) {
		cw.buf.WriteString(f.Text)
		return
	}
	cw.buf.WriteByte('"')
	cw.buf.WriteString(strings.ReplaceAll(f.Text, `"`, `""`))
	cw.buf.WriteByte('"')
}

func (cw *Writer) needsQuote(f Field) bool {
	switch cw.quoting {
	case QuoteAll:
		return true
	case QuoteNonNumeric:
		return !f.Numeric
	case QuoteMinimal:
		return strings.ContainsRune(f.Text, cw.delimiter) || strings.ContainsAny(f.Text, "\"\r\n")
	default: // QuoteNone
		return false
	}
}
