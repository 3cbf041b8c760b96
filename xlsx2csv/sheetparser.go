package xlsx2csv

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CellKind classifies a cell's raw value.
type CellKind int

const (
	KindNumber CellKind = iota
	KindSharedString
	KindInlineString
	KindFormulaString // formula result cached as text (type code "str")
	KindBool
	KindError
	KindDate // ISO-8601 literal (type code "d")
	KindEmpty
)

// CellEvent is one parsed cell: 0-based coordinates, the raw value text as
// it appears in the document, and the style id (-1 when absent). Numbers are
// not parsed to floating point here; the formatter decides representation.
type CellEvent struct {
	Row, Col int
	Kind     CellKind
	Value    string
	Style    int
}

// EventType discriminates the parser's event stream.
type EventType int

const (
	// EventRowStart opens a row; RowIndex carries the declared 0-based index
	// and Hidden the row's visibility flag.
	EventRowStart EventType = iota
	// EventCell carries one CellEvent.
	EventCell
	// EventRowEnd closes the current row.
	EventRowEnd
)

// Event is one element of a sheet's pull-parsed event sequence.
type Event struct {
	Type     EventType
	RowIndex int
	Hidden   bool
	Cell     CellEvent
}

// SheetParser pull-parses one sheet part into cell events and row
// boundaries, in document order, without building a tree. The sequence is a
// single forward pass; Next suspends only on underlying reads and returns
// io.EOF when the sheet data is exhausted.
type SheetParser struct {
	dec    *xml.Decoder
	sheet  string
	strict bool
	log    *logrus.Logger

	inSheetData bool
	inRow       bool
	rowIndex    int
	lastCol     int
	queued      []Event

	// current cell state
	inCell     bool
	inValue    bool
	inInline   bool
	inText     bool
	phonetic   int
	cell       CellEvent
	cellBuf    []byte
	warnedType map[string]bool
}

// NewSheetParser wraps one sheet part's byte stream. sheet is used in error
// and diagnostic context only.
func NewSheetParser(r io.Reader, sheet string, opts *Options) *SheetParser {
	return &SheetParser{
		dec:        xml.NewDecoder(r),
		sheet:      sheet,
		strict:     opts.Strict,
		log:        opts.logger(),
		rowIndex:   -1,
		lastCol:    -1,
		warnedType: map[string]bool{},
	}
}

// Next returns the next event, or io.EOF at the end of the sheet data.
func (p *SheetParser) Next() (Event, error) {
	for {
		if len(p.queued) > 0 {
			ev := p.queued[0]
			p.queued = p.queued[1:]
			return ev, nil
		}
		tok, err := p.dec.Token()
		if err == io.EOF {
			if p.inRow || p.inCell {
				return Event{}, sheetError(p.sheet, p.rowIndex, -1,
					errors.Wrap(ErrMalformedSheetXML, "truncated sheet data"))
			}
			return Event{}, io.EOF
		}
		if err != nil {
			return Event{}, sheetError(p.sheet, p.rowIndex, -1,
				errors.Wrap(ErrMalformedSheetXML, err.Error()))
		}
		if err := p.handle(tok); err != nil {
			return Event{}, err
		}
	}
}

func (p *SheetParser) handle(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		switch t.Name.Local {
		case "sheetData":
			p.inSheetData = true
		case "row":
			if !p.inSheetData {
				return nil
			}
			return p.startRow(t)
		case "c":
			if !p.inRow {
				return nil
			}
			return p.startCell(t)
		case "v":
			if p.inCell {
				p.inValue = true
			}
		case "is":
			if p.inCell {
				p.inInline = true
			}
		case "t":
			if p.inInline {
				p.inText = true
			}
		case "rPh":
			p.phonetic++
		}
	case xml.EndElement:
		switch t.Name.Local {
		case "sheetData":
			p.inSheetData = false
		case "row":
			if p.inRow {
				p.inRow = false
				p.queued = append(p.queued, Event{Type: EventRowEnd, RowIndex: p.rowIndex})
			}
		case "c":
			if p.inCell {
				p.endCell()
			}
		case "v":
			p.inValue = false
		case "is":
			p.inInline = false
		case "t":
			p.inText = false
		case "rPh":
			if p.phonetic > 0 {
				p.phonetic--
			}
		}
	case xml.CharData:
		if p.inCell && (p.inValue || (p.inInline && p.inText)) && p.phonetic == 0 {
			p.cellBuf = append(p.cellBuf, t...)
		}
	}
	return nil
}

func (p *SheetParser) startRow(t xml.StartElement) error {
	index := p.rowIndex + 1
	hidden := false
	for _, attr := range t.Attr {
		switch attr.Name.Local {
		case "r":
			n, err := strconv.Atoi(attr.Value)
			if err != nil || n < 1 {
				return sheetError(p.sheet, p.rowIndex, -1,
					errors.Wrapf(ErrMalformedSheetXML, "bad row reference %q", attr.Value))
			}
			index = n - 1
		case "hidden":
			hidden = xmlBool(attr.Value)
		}
	}
	if index < p.rowIndex {
		return sheetError(p.sheet, index, -1,
			errors.Wrap(ErrMalformedSheetXML, "row indices out of order"))
	}
	p.rowIndex = index
	p.lastCol = -1
	p.inRow = true
	p.queued = append(p.queued, Event{Type: EventRowStart, RowIndex: index, Hidden: hidden})
	return nil
}

func (p *SheetParser) startCell(t xml.StartElement) error {
	p.inCell = true
	p.inValue = false
	p.inInline = false
	p.inText = false
	p.cellBuf = p.cellBuf[:0]
	p.cell = CellEvent{Row: p.rowIndex, Col: p.lastCol + 1, Kind: KindNumber, Style: -1}

	for _, attr := range t.Attr {
		switch attr.Name.Local {
		case "r":
			row, col, err := ParseCellRef(attr.Value)
			if err != nil {
				return sheetError(p.sheet, p.rowIndex, -1, err)
			}
			p.cell.Row, p.cell.Col = row, col
		case "t":
			kind, ok := cellKindFromCode(attr.Value)
			if !ok {
				if p.strict {
					return sheetError(p.sheet, p.rowIndex, p.cell.Col,
						errors.Wrap(ErrUnknownCellType, attr.Value))
				}
				if !p.warnedType[attr.Value] {
					p.warnedType[attr.Value] = true
					p.log.WithFields(logrus.Fields{
						"sheet": p.sheet,
						"type":  attr.Value,
					}).Warn("unknown cell type, treating value as text")
				}
				kind = KindInlineString
			}
			p.cell.Kind = kind
		case "s":
			if n, err := strconv.Atoi(attr.Value); err == nil {
				p.cell.Style = n
			}
		}
	}
	// Within one row, column references never decrease in document order. A
	// repeated reference is allowed; the later cell overwrites the earlier.
	if p.cell.Col < p.lastCol {
		return sheetError(p.sheet, p.rowIndex, p.cell.Col,
			errors.Wrap(ErrMalformedSheetXML, "cell references out of order"))
	}
	return nil
}

func (p *SheetParser) endCell() {
	p.inCell = false
	p.cell.Value = string(p.cellBuf)
	if p.cell.Value == "" && p.cell.Kind == KindNumber {
		p.cell.Kind = KindEmpty
	}
	p.lastCol = p.cell.Col
	p.queued = append(p.queued, Event{Type: EventCell, RowIndex: p.rowIndex, Cell: p.cell})
}

func cellKindFromCode(code string) (CellKind, bool) {
	switch code {
	case "", "n":
		return KindNumber, true
	case "s":
		return KindSharedString, true
	case "inlineStr":
		return KindInlineString, true
	case "str":
		return KindFormulaString, true
	case "b":
		return KindBool, true
	case "e":
		return KindError, true
	case "d":
		return KindDate, true
	default:
		return KindNumber, false
	}
}

// ParseCellRef parses a compact alphanumeric coordinate like "BC23" into
// 0-based row and column indices.
func ParseCellRef(ref string) (row, col int, err error) {
	i := 0
	for i < len(ref) {
		c := ref[i]
		if c >= 'A' && c <= 'Z' {
			col = col*26 + int(c-'A') + 1
		} else if c >= 'a' && c <= 'z' {
			col = col*26 + int(c-'a') + 1
		} else {
			break
		}
		i++
	}
	if i == 0 || i == len(ref) {
		return 0, 0, errors.Wrapf(ErrMalformedSheetXML, "bad cell reference %q", ref)
	}
	n, convErr := strconv.Atoi(ref[i:])
	if convErr != nil || n < 1 {
		return 0, 0, errors.Wrapf(ErrMalformedSheetXML, "bad cell reference %q", ref)
	}
	return n - 1, col - 1, nil
}

// CellName renders 0-based coordinates back into the compact form, e.g.
// (0, 0) -> "A1".
func CellName(row, col int) string {
	var letters []byte
	c := col + 1
	for c > 0 {
		c--
		letters = append([]byte{byte('A' + c%26)}, letters...)
		c /= 26
	}
	return string(letters) + strconv.Itoa(row+1)
}

// MergeRegion is a rectangular cell range sharing the top-left cell's value.
// Coordinates are 0-based and inclusive.
type MergeRegion struct {
	FirstRow, FirstCol int
	LastRow, LastCol   int
}

// Contains reports whether the region spans the given cell.
func (m MergeRegion) Contains(row, col int) bool {
	return row >= m.FirstRow && row <= m.LastRow && col >= m.FirstCol && col <= m.LastCol
}

// sheetMeta is the part of a sheet that lives after its row data in the XML:
// merge regions and hyperlink references. It is gathered in a cheap pre-scan
// pass so row assembly can consult it while streaming.
type sheetMeta struct {
	merges []MergeRegion
	links  []hyperlinkRef
}

type hyperlinkRef struct {
	firstRow, firstCol int
	lastRow, lastCol   int
	relID              string
	location           string
	display            string
}

// scanSheetMeta reads one sheet part for mergeCell and hyperlink elements,
// ignoring the row data.
func scanSheetMeta(r io.Reader, sheet string) (*sheetMeta, error) {
	meta := &sheetMeta{}
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return meta, nil
		}
		if err != nil {
			return nil, sheetError(sheet, -1, -1, errors.Wrap(ErrMalformedSheetXML, err.Error()))
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "mergeCell":
			for _, attr := range start.Attr {
				if attr.Name.Local != "ref" {
					continue
				}
				region, err := parseRangeRef(attr.Value)
				if err != nil {
					return nil, sheetError(sheet, -1, -1, err)
				}
				meta.merges = append(meta.merges, region)
			}
		case "hyperlink":
			link := hyperlinkRef{}
			var ref string
			for _, attr := range start.Attr {
				switch attr.Name.Local {
				case "ref":
					ref = attr.Value
				case "id": // r:id
					link.relID = attr.Value
				case "location":
					link.location = attr.Value
				case "display":
					link.display = attr.Value
				}
			}
			if ref == "" {
				continue
			}
			region, err := parseRangeRef(ref)
			if err != nil {
				return nil, sheetError(sheet, -1, -1, err)
			}
			link.firstRow, link.firstCol = region.FirstRow, region.FirstCol
			link.lastRow, link.lastCol = region.LastRow, region.LastCol
			meta.links = append(meta.links, link)
		}
	}
}

// parseRangeRef parses "A1" or "A1:C3" into an inclusive region.
func parseRangeRef(ref string) (MergeRegion, error) {
	first, last, found := strings.Cut(ref, ":")
	r1, c1, err := ParseCellRef(first)
	if err != nil {
		return MergeRegion{}, err
	}
	if !found {
		return MergeRegion{FirstRow: r1, FirstCol: c1, LastRow: r1, LastCol: c1}, nil
	}
	r2, c2, err := ParseCellRef(last)
	if err != nil {
		return MergeRegion{}, err
	}
	return MergeRegion{FirstRow: r1, FirstCol: c1, LastRow: r2, LastCol: c2}, nil
}
