package xlsx2csv

import (
	"fmt"
	"io"
	"syscall"

	"github.com/pkg/errors"
)

// Error taxonomy for a conversion run. All of these abort the run except
// ErrUnknownCellType (a diagnostic unless Options.Strict is set) and
// ErrOutputClosed (a clean shutdown, reported as success).
var (
	// ErrArchiveCorrupt indicates the container's central directory or
	// signature is invalid.
	ErrArchiveCorrupt = errors.New("archive corrupt")

	// ErrEntryMissing indicates a required part is absent from the container.
	ErrEntryMissing = errors.New("entry missing")

	// ErrMalformedSharedStrings indicates the shared-string part is
	// structurally invalid XML.
	ErrMalformedSharedStrings = errors.New("malformed shared strings")

	// ErrMalformedSheetXML indicates a sheet part is structurally invalid.
	ErrMalformedSheetXML = errors.New("malformed sheet xml")

	// ErrUnknownCellType indicates an unrecognized cell type code.
	ErrUnknownCellType = errors.New("unknown cell type")

	// ErrFormat indicates a bad override format string or a shared-string
	// index out of range.
	ErrFormat = errors.New("format error")

	// ErrSelection indicates an explicitly named sheet or id does not exist.
	ErrSelection = errors.New("sheet selection error")

	// ErrOutputClosed indicates the consumer closed the output stream.
	ErrOutputClosed = errors.New("output closed")
)

// SheetError attaches sheet/cell context to an error so an operator can
// locate the offending cell. Row and Col are 0-based; -1 when unknown.
type SheetError struct {
	Sheet string
	Row   int
	Col   int
	Err   error
}

func (e *SheetError) Error() string {
	if e.Row >= 0 && e.Col >= 0 {
		return fmt.Sprintf("sheet %q cell %s: %v", e.Sheet, CellName(e.Row, e.Col), e.Err)
	}
	if e.Row >= 0 {
		return fmt.Sprintf("sheet %q row %d: %v", e.Sheet, e.Row+1, e.Err)
	}
	return fmt.Sprintf("sheet %q: %v", e.Sheet, e.Err)
}

func (e *SheetError) Unwrap() error {
	return e.Err
}

func sheetError(sheet string, row, col int, err error) error {
	if err == nil {
		return nil
	}
	return &SheetError{Sheet: sheet, Row: row, Col: col, Err: err}
}

// IsOutputClosed reports whether err means the downstream consumer went away.
// A run that ends this way terminates with the same success indication as
// normal completion.
func IsOutputClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrOutputClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrClosedPipe)
}
