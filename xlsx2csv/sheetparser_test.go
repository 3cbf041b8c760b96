package xlsx2csv

import (
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func collectEvents(t *testing.T, doc string, opts *Options) []Event {
	t.Helper()
	p := NewSheetParser(strings.NewReader(doc), "test", opts)
	var events []Event
	for {
		ev, err := p.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		events = append(events, ev)
	}
}

func TestSheetParserEvents(t *testing.T) {
	const doc = `<?xml version="1.0"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheetFormatPr defaultRowHeight="15"/>
  <sheetData>
    <row r="1">
      <c r="A1" t="s"><v>0</v></c>
      <c r="C1" s="2"><v>3.14</v></c>
      <c r="D1"/>
    </row>
    <row r="3" hidden="1">
      <c r="B3" t="inlineStr"><is><r><t>in</t></r><r><t>line</t></r></is></c>
      <c r="C3" t="b"><v>1</v></c>
      <c r="D3" t="e"><v>#DIV/0!</v></c>
    </row>
  </sheetData>
  <mergeCells count="1"><mergeCell ref="A1:B2"/></mergeCells>
</worksheet>`
	opts := DefaultOptions()
	events := collectEvents(t, doc, &opts)

	want := []Event{
		{Type: EventRowStart, RowIndex: 0},
		{Type: EventCell, RowIndex: 0, Cell: CellEvent{Row: 0, Col: 0, Kind: KindSharedString, Value: "0", Style: -1}},
		{Type: EventCell, RowIndex: 0, Cell: CellEvent{Row: 0, Col: 2, Kind: KindNumber, Value: "3.14", Style: 2}},
		{Type: EventCell, RowIndex: 0, Cell: CellEvent{Row: 0, Col: 3, Kind: KindEmpty, Style: -1}},
		{Type: EventRowEnd, RowIndex: 0},
		{Type: EventRowStart, RowIndex: 2, Hidden: true},
		{Type: EventCell, RowIndex: 2, Cell: CellEvent{Row: 2, Col: 1, Kind: KindInlineString, Value: "inline", Style: -1}},
		{Type: EventCell, RowIndex: 2, Cell: CellEvent{Row: 2, Col: 2, Kind: KindBool, Value: "1", Style: -1}},
		{Type: EventCell, RowIndex: 2, Cell: CellEvent{Row: 2, Col: 3, Kind: KindError, Value: "#DIV/0!", Style: -1}},
		{Type: EventRowEnd, RowIndex: 2},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, w := range want {
		if events[i] != w {
			t.Errorf("event %d = %+v, want %+v", i, events[i], w)
		}
	}
}

// A prefixed producer must parse identically to an unprefixed one.
func TestSheetParserPrefixed(t *testing.T) {
	const doc = `<x:worksheet xmlns:x="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <x:sheetData>
    <x:row r="1"><x:c r="A1"><x:v>7</x:v></x:c></x:row>
  </x:sheetData>
</x:worksheet>`
	opts := DefaultOptions()
	events := collectEvents(t, doc, &opts)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	cell := events[1].Cell
	if cell.Kind != KindNumber || cell.Value != "7" || cell.Row != 0 || cell.Col != 0 {
		t.Errorf("cell = %+v", cell)
	}
}

// Cells without coordinates take the next column; rows without indices take
// the next row.
func TestSheetParserImplicitRefs(t *testing.T) {
	const doc = `<worksheet><sheetData>
  <row><c><v>1</v></c><c><v>2</v></c></row>
  <row><c><v>3</v></c></row>
</sheetData></worksheet>`
	opts := DefaultOptions()
	events := collectEvents(t, doc, &opts)
	coords := [][2]int{}
	for _, ev := range events {
		if ev.Type == EventCell {
			coords = append(coords, [2]int{ev.Cell.Row, ev.Cell.Col})
		}
	}
	want := [][2]int{{0, 0}, {0, 1}, {1, 0}}
	if len(coords) != len(want) {
		t.Fatalf("coords = %v, want %v", coords, want)
	}
	for i := range want {
		if coords[i] != want[i] {
			t.Errorf("cell %d at %v, want %v", i, coords[i], want[i])
		}
	}
}

func TestSheetParserOutOfOrderCells(t *testing.T) {
	const doc = `<worksheet><sheetData>
  <row r="1"><c r="B1"><v>2</v></c><c r="A1"><v>1</v></c></row>
</sheetData></worksheet>`
	opts := DefaultOptions()
	p := NewSheetParser(strings.NewReader(doc), "test", &opts)
	var err error
	for err == nil {
		_, err = p.Next()
	}
	if !errors.Is(err, ErrMalformedSheetXML) {
		t.Errorf("err = %v, want ErrMalformedSheetXML", err)
	}
}

// Column references may repeat; only a decrease is malformed. Both cells are
// emitted and the assembler lets the later one win.
func TestSheetParserRepeatedCellRef(t *testing.T) {
	const doc = `<worksheet><sheetData>
  <row r="1"><c r="A1"><v>1</v></c><c r="A1"><v>2</v></c></row>
</sheetData></worksheet>`
	opts := DefaultOptions()
	events := collectEvents(t, doc, &opts)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events), events)
	}
	first, second := events[1].Cell, events[2].Cell
	if first.Col != 0 || first.Value != "1" {
		t.Errorf("first cell = %+v", first)
	}
	if second.Col != 0 || second.Value != "2" {
		t.Errorf("second cell = %+v", second)
	}
}

func TestSheetParserTruncated(t *testing.T) {
	const doc = `<worksheet><sheetData><row r="1"><c r="A1"><v>1`
	opts := DefaultOptions()
	p := NewSheetParser(strings.NewReader(doc), "test", &opts)
	var err error
	for err == nil {
		_, err = p.Next()
	}
	if !errors.Is(err, ErrMalformedSheetXML) {
		t.Errorf("err = %v, want ErrMalformedSheetXML", err)
	}
}

func TestSheetParserUnknownCellType(t *testing.T) {
	const doc = `<worksheet><sheetData>
  <row r="1"><c r="A1" t="wat"><v>x</v></c></row>
</sheetData></worksheet>`

	opts := DefaultOptions()
	events := collectEvents(t, doc, &opts)
	if events[1].Cell.Kind != KindInlineString || events[1].Cell.Value != "x" {
		t.Errorf("lenient cell = %+v, want raw text fallback", events[1].Cell)
	}

	strict := DefaultOptions()
	strict.Strict = true
	p := NewSheetParser(strings.NewReader(doc), "test", &strict)
	var err error
	for err == nil {
		_, err = p.Next()
	}
	if !errors.Is(err, ErrUnknownCellType) {
		t.Errorf("strict err = %v, want ErrUnknownCellType", err)
	}
}

func TestParseCellRef(t *testing.T) {
	tests := []struct {
		ref      string
		row, col int
		wantErr  bool
	}{
		{"A1", 0, 0, false},
		{"B3", 2, 1, false},
		{"Z1", 0, 25, false},
		{"AA1", 0, 26, false},
		{"BC23", 22, 54, false},
		{"XFD1048576", 1048575, 16383, false},
		{"", 0, 0, true},
		{"123", 0, 0, true},
		{"ABC", 0, 0, true},
		{"A0", 0, 0, true},
	}
	for _, tt := range tests {
		row, col, err := ParseCellRef(tt.ref)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCellRef(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			continue
		}
		if err == nil && (row != tt.row || col != tt.col) {
			t.Errorf("ParseCellRef(%q) = (%d, %d), want (%d, %d)", tt.ref, row, col, tt.row, tt.col)
		}
	}
}

func TestCellName(t *testing.T) {
	tests := []struct {
		row, col int
		want     string
	}{
		{0, 0, "A1"},
		{2, 1, "B3"},
		{0, 26, "AA1"},
		{22, 54, "BC23"},
	}
	for _, tt := range tests {
		if got := CellName(tt.row, tt.col); got != tt.want {
			t.Errorf("CellName(%d, %d) = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}
}

func TestScanSheetMeta(t *testing.T) {
	const doc = `<worksheet>
  <sheetData><row r="1"><c r="A1"><v>1</v></c></row></sheetData>
  <mergeCells count="2">
    <mergeCell ref="A1:B2"/>
    <mergeCell ref="D4:D6"/>
  </mergeCells>
  <hyperlinks>
    <hyperlink ref="A1" r:id="rId1"/>
    <hyperlink ref="C3" location="Sheet2!A1" display="jump"/>
  </hyperlinks>
</worksheet>`
	meta, err := scanSheetMeta(strings.NewReader(doc), "test")
	if err != nil {
		t.Fatalf("scanSheetMeta: %v", err)
	}
	wantMerges := []MergeRegion{
		{FirstRow: 0, FirstCol: 0, LastRow: 1, LastCol: 1},
		{FirstRow: 3, FirstCol: 3, LastRow: 5, LastCol: 3},
	}
	if len(meta.merges) != len(wantMerges) {
		t.Fatalf("merges = %+v", meta.merges)
	}
	for i, w := range wantMerges {
		if meta.merges[i] != w {
			t.Errorf("merge %d = %+v, want %+v", i, meta.merges[i], w)
		}
	}
	if len(meta.links) != 2 {
		t.Fatalf("links = %+v", meta.links)
	}
	if meta.links[0].relID != "rId1" || meta.links[1].location != "Sheet2!A1" {
		t.Errorf("links = %+v", meta.links)
	}
}
