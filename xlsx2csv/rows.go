package xlsx2csv

import (
	"io"
)

// eventSource is the pull contract RowAssembler consumes; SheetParser
// satisfies it.
type eventSource interface {
	Next() (Event, error)
}

// RowAssembler reconstructs dense rows from one sheet's sparse cell events:
// skipped columns become empty fields, skipped row indices become fully
// empty rows, merge regions propagate their top-left value, and the
// configured row/column filters are applied. Rows are produced lazily, one
// per Next call, in increasing row order.
type RowAssembler struct {
	src    eventSource
	format func(CellEvent) (Field, error)
	sheet  string
	merges []MergeRegion
	opts   *Options

	maxCol      int // highest column seen so far across the sheet
	lastEmitted int // last row index handed to the queue
	queue       [][]Field

	building bool
	rowIndex int
	hidden   bool
	cells    []Field

	mergeValues []Field
}

// NewRowAssembler wires an event source to a field formatter. merges should
// be nil unless merge-cell propagation is enabled.
func NewRowAssembler(src eventSource, format func(CellEvent) (Field, error), sheet string, merges []MergeRegion, opts *Options) *RowAssembler {
	ra := &RowAssembler{
		src:         src,
		format:      format,
		sheet:       sheet,
		merges:      merges,
		opts:        opts,
		maxCol:      -1,
		lastEmitted: -1,
		mergeValues: make([]Field, len(merges)),
	}
	// Regions widen the dense row extent even before any cell event reaches
	// their columns.
	for _, m := range merges {
		if m.LastCol > ra.maxCol {
			ra.maxCol = m.LastCol
		}
	}
	return ra
}

// Next returns the next assembled row, or io.EOF when the sheet is done.
// Rows within one sheet may have different lengths when trailing-column
// trimming is enabled.
func (ra *RowAssembler) Next() ([]Field, error) {
	for {
		if len(ra.queue) > 0 {
			row := ra.queue[0]
			ra.queue = ra.queue[1:]
			return row, nil
		}
		ev, err := ra.src.Next()
		if err == io.EOF {
			if ra.building {
				ra.finishRow()
				continue
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		switch ev.Type {
		case EventRowStart:
			ra.startRow(ev)
		case EventCell:
			if err := ra.placeCell(ev.Cell); err != nil {
				return nil, err
			}
		case EventRowEnd:
			ra.finishRow()
		}
	}
}

func (ra *RowAssembler) startRow(ev Event) {
	// Row indices skipped in the document still produce one fully empty row
	// each, subject to merge fill and the empty-row filter.
	for gap := ra.lastEmitted + 1; gap < ev.RowIndex; gap++ {
		ra.enqueue(gap, nil)
	}
	ra.building = true
	ra.rowIndex = ev.RowIndex
	ra.hidden = ev.Hidden
	ra.cells = ra.cells[:0]
}

func (ra *RowAssembler) placeCell(cell CellEvent) error {
	field, err := ra.format(cell)
	if err != nil {
		return sheetError(ra.sheet, cell.Row, cell.Col, err)
	}
	for len(ra.cells) <= cell.Col {
		ra.cells = append(ra.cells, Field{})
	}
	ra.cells[cell.Col] = field
	if cell.Col > ra.maxCol {
		ra.maxCol = cell.Col
	}
	for i, m := range ra.merges {
		if cell.Row == m.FirstRow && cell.Col == m.FirstCol {
			ra.mergeValues[i] = field
		}
	}
	return nil
}

func (ra *RowAssembler) finishRow() {
	ra.building = false
	if ra.hidden && !ra.opts.IncludeHiddenRows {
		ra.lastEmitted = ra.rowIndex
		return
	}
	ra.enqueue(ra.rowIndex, ra.cells)
	ra.cells = nil
}

// enqueue densifies, merge-fills and filters one row. cells may be nil for a
// synthesized empty row.
func (ra *RowAssembler) enqueue(index int, cells []Field) {
	ra.lastEmitted = index
	row := make([]Field, ra.maxCol+1)
	copy(row, cells)

	for i, m := range ra.merges {
		if index < m.FirstRow || index > m.LastRow {
			continue
		}
		for col := m.FirstCol; col <= m.LastCol && col < len(row); col++ {
			if index == m.FirstRow && col == m.FirstCol {
				continue
			}
			if row[col].Text == "" {
				row[col] = ra.mergeValues[i]
			}
		}
	}

	if ra.opts.SkipEmptyRows && rowEmpty(row) {
		return
	}
	if ra.opts.SkipTrailingEmptyColumns {
		for len(row) > 0 && row[len(row)-1].Text == "" {
			row = row[:len(row)-1]
		}
	}
	ra.queue = append(ra.queue, row)
}

func rowEmpty(row []Field) bool {
	for _, f := range row {
		if f.Text != "" {
			return false
		}
	}
	return true
}
