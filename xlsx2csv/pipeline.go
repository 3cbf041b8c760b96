// Package xlsx2csv streams xlsx workbooks into delimited text without
// materializing whole sheets. The pipeline is single-pass and pull-driven:
// each selected sheet's part is decompressed once, its XML is pull-parsed
// into cell events, rows are assembled and formatted one at a time, and
// every row is written before the next is produced. Peak memory is one row
// plus the shared-string table plus one sheet's merge-region list.
package xlsx2csv

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Convert streams the container behind r to out under the given
// configuration. A consumer that closes its end of out mid-run terminates
// the conversion cleanly: Convert returns nil, exactly as on normal
// completion. Any other error aborts the run; because rows are flushed as
// they are produced, an aborted run may leave a validly-formed prefix on
// out.
func Convert(r io.ReaderAt, size int64, out io.Writer, opts Options) error {
	log := opts.logger()

	archive, err := OpenArchive(r, size)
	if err != nil {
		return err
	}
	workbook, err := LoadWorkbook(archive)
	if err != nil {
		return err
	}
	shared, err := loadSharedStringsPart(archive)
	if err != nil {
		return err
	}
	styles, err := loadStylesPart(archive)
	if err != nil {
		return err
	}

	// Selection is resolved up front so an unknown explicit sheet fails
	// before any output is produced.
	sheets, err := SelectSheets(workbook, &opts)
	if err != nil {
		return err
	}

	out, finish, err := encodeOutput(out, opts.OutputEncoding)
	if err != nil {
		return err
	}

	writer := NewWriter(out, &opts)
	for i, sheet := range sheets {
		if i > 0 {
			if err := writer.SheetBreak(); err != nil {
				if IsOutputClosed(err) {
					return nil
				}
				return err
			}
		}
		log.WithFields(logrus.Fields{"sheet": sheet.Name, "part": sheet.Path}).
			Debug("converting sheet")
		if err := convertSheet(archive, sheet, shared, styles, workbook.Datemode(), writer, &opts); err != nil {
			if IsOutputClosed(err) {
				return nil
			}
			return err
		}
	}
	if err := finish(); err != nil && !IsOutputClosed(err) {
		return err
	}
	return nil
}

// ConvertFile opens path (or standard input when path is "-", buffered in
// full first) and streams it to out.
func ConvertFile(path string, out io.Writer, opts Options) error {
	if path == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		return Convert(bytes.NewReader(content), int64(len(content)), out, opts)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return Convert(f, info.Size(), out, opts)
}

func loadSharedStringsPart(a *Archive) (*SharedStrings, error) {
	if !a.Has(sharedStringsPart) {
		return &SharedStrings{}, nil
	}
	rc, err := a.Open(sharedStringsPart)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return LoadSharedStrings(rc)
}

func loadStylesPart(a *Archive) (*Styles, error) {
	if !a.Has(stylesPart) {
		return emptyStyles(), nil
	}
	rc, err := a.Open(stylesPart)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return LoadStyles(rc)
}

func convertSheet(a *Archive, sheet SheetDescriptor, shared *SharedStrings, styles *Styles, datemode int, writer *Writer, opts *Options) error {
	var merges []MergeRegion
	var links map[[2]int]string
	if opts.MergeCells || opts.Hyperlinks {
		meta, err := loadSheetMeta(a, sheet)
		if err != nil {
			return err
		}
		if opts.MergeCells {
			merges = meta.merges
		}
		if opts.Hyperlinks {
			links, err = resolveHyperlinks(a, sheet, meta.links)
			if err != nil {
				return err
			}
		}
	}

	rc, err := a.Open(sheet.Path)
	if err != nil {
		return sheetError(sheet.Name, -1, -1, err)
	}
	defer rc.Close()

	formatter := NewFormatter(shared, styles, datemode, links, opts)
	parser := NewSheetParser(rc, sheet.Name, opts)
	assembler := NewRowAssembler(parser, formatter.Format, sheet.Name, merges, opts)

	for {
		row, err := assembler.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := writer.WriteRow(row); err != nil {
			return err
		}
	}
}

// loadSheetMeta pre-scans a sheet part for the metadata that follows its row
// data in the XML (merge regions, hyperlinks). The part is decompressed a
// second time by the streaming pass; this trades a little CPU for never
// holding row data in memory.
func loadSheetMeta(a *Archive, sheet SheetDescriptor) (*sheetMeta, error) {
	rc, err := a.Open(sheet.Path)
	if err != nil {
		return nil, sheetError(sheet.Name, -1, -1, err)
	}
	defer rc.Close()
	return scanSheetMeta(rc, sheet.Name)
}

// resolveHyperlinks binds hyperlink references to their targets via the
// sheet's relationship part, expanding ranges to per-cell entries. External
// targets win over in-document locations.
func resolveHyperlinks(a *Archive, sheet SheetDescriptor, refs []hyperlinkRef) (map[[2]int]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	rels, err := loadRelationships(a, sheetRelsPath(sheet.Path))
	if err != nil {
		return nil, err
	}
	links := make(map[[2]int]string)
	for _, ref := range refs {
		target := rels[ref.relID]
		if target == "" {
			target = ref.location
		}
		if target == "" {
			target = ref.display
		}
		if target == "" {
			continue
		}
		for row := ref.firstRow; row <= ref.lastRow; row++ {
			for col := ref.firstCol; col <= ref.lastCol; col++ {
				links[[2]int{row, col}] = target
			}
		}
	}
	return links, nil
}

// encodeOutput wraps out in a transcoder when a non-UTF-8 output encoding is
// configured. finish flushes any partial sequences held by the transcoder.
func encodeOutput(out io.Writer, name string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return out, noop, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrFormat, "unknown output encoding %q", name)
	}
	tw := transform.NewWriter(out, enc.NewEncoder())
	return tw, tw.Close, nil
}
