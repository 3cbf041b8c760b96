package xlsx2csv

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	workbookPart      = "xl/workbook.xml"
	workbookRelsPart  = "xl/_rels/workbook.xml.rels"
	sharedStringsPart = "xl/sharedStrings.xml"
	stylesPart        = "xl/styles.xml"
)

// SheetDescriptor identifies one physical sheet of the workbook. ID is the
// sheet's 1-based position in declaration order, which is what the numeric
// selection criterion counts.
type SheetDescriptor struct {
	ID     int
	Name   string
	Hidden bool
	Path   string
}

// Workbook is the parsed sheet catalog plus the workbook-level date epoch
// declaration. Immutable after load.
type Workbook struct {
	Sheets []SheetDescriptor

	// Date1904 reports the 1904 date system was in force when the file was
	// saved; the default is the 1900 system.
	Date1904 bool
}

// Datemode returns the epoch in the encoding the serial-date conversion
// takes: 0 for the 1900 system, 1 for the 1904 system.
func (wb *Workbook) Datemode() int {
	if wb.Date1904 {
		return 1
	}
	return 0
}

// LoadWorkbook parses the workbook manifest and its relationships, binding
// each declared sheet to its part path. Element and attribute matching is by
// local name so any namespace prefix alias works.
func LoadWorkbook(a *Archive) (*Workbook, error) {
	rels, err := loadRelationships(a, workbookRelsPart)
	if err != nil {
		return nil, err
	}

	rc, err := a.Open(workbookPart)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	wb := &Workbook{}
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedSheetXML, "%s: %v", workbookPart, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "workbookPr":
			for _, attr := range start.Attr {
				if attr.Name.Local == "date1904" {
					wb.Date1904 = xmlBool(attr.Value)
				}
			}
		case "sheet":
			var name, relID, state string
			for _, attr := range start.Attr {
				switch attr.Name.Local {
				case "name":
					name = attr.Value
				case "id": // r:id, prefix-independent
					relID = attr.Value
				case "state":
					state = attr.Value
				}
			}
			target, ok := rels[relID]
			if !ok {
				continue
			}
			wb.Sheets = append(wb.Sheets, SheetDescriptor{
				ID:     len(wb.Sheets) + 1,
				Name:   name,
				Hidden: state == "hidden" || state == "veryHidden",
				Path:   normalizeSheetPath(target),
			})
		}
	}
	return wb, nil
}

// loadRelationships parses one .rels part into an id-to-target map. An
// absent part yields an empty map.
func loadRelationships(a *Archive, part string) (map[string]string, error) {
	rels := map[string]string{}
	rc, err := a.Open(part)
	if err != nil {
		if errors.Is(err, ErrEntryMissing) {
			return rels, nil
		}
		return nil, err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedSheetXML, "%s: %v", part, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "Id":
				id = attr.Value
			case "Target":
				target = attr.Value
			}
		}
		if id != "" && target != "" {
			rels[id] = target
		}
	}
	return rels, nil
}

// normalizeSheetPath resolves a workbook-relative relationship target to a
// container part path.
func normalizeSheetPath(target string) string {
	cleaned := normalizePartPath(target)
	if strings.HasPrefix(cleaned, "xl/") {
		return cleaned
	}
	return "xl/" + cleaned
}

// sheetRelsPath returns the .rels part path for a sheet part, e.g.
// xl/worksheets/sheet1.xml -> xl/worksheets/_rels/sheet1.xml.rels.
func sheetRelsPath(sheetPath string) string {
	i := strings.LastIndex(sheetPath, "/")
	if i < 0 {
		return "_rels/" + sheetPath + ".rels"
	}
	return sheetPath[:i] + "/_rels/" + sheetPath[i+1:] + ".rels"
}

func xmlBool(v string) bool {
	return v == "1" || v == "true"
}
