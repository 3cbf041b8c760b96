package xlsx2csv

import (
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// formatClass is the value-formatting category a cell style resolves to.
type formatClass int

const (
	formatNumber formatClass = iota
	formatDate
	formatTime
)

// Styles maps a cell's style id to the number-format category that decides
// whether its numeric value is a date or time serial. Immutable after load.
type Styles struct {
	cellFormats []int          // style id -> numFmtId
	custom      map[int]string // numFmtId -> format code
	classes     map[int]formatClass
}

// LoadStyles parses the styles part. Only the cellXfs table and custom
// number formats are read; fonts, fills and borders are irrelevant to value
// conversion.
func LoadStyles(r io.Reader) (*Styles, error) {
	s := &Styles{custom: map[int]string{}, classes: map[int]formatClass{}}
	dec := xml.NewDecoder(r)
	inCellXfs := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedSheetXML, "styles: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "cellXfs":
				inCellXfs = true
			case "xf":
				if !inCellXfs {
					continue
				}
				numFmt := 0
				for _, attr := range t.Attr {
					if attr.Name.Local == "numFmtId" {
						numFmt, _ = strconv.Atoi(attr.Value)
					}
				}
				s.cellFormats = append(s.cellFormats, numFmt)
			case "numFmt":
				var id int
				var code string
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "numFmtId":
						id, _ = strconv.Atoi(attr.Value)
					case "formatCode":
						code = attr.Value
					}
				}
				s.custom[id] = code
			}
		case xml.EndElement:
			if t.Name.Local == "cellXfs" {
				inCellXfs = false
			}
		}
	}
	for id, code := range s.custom {
		s.classes[id] = classifyFormatCode(code)
	}
	return s, nil
}

// emptyStyles is used when the styles part is absent.
func emptyStyles() *Styles {
	return &Styles{custom: map[int]string{}, classes: map[int]formatClass{}}
}

// CellFormat resolves a cell's style id to a formatting category. Style ids
// out of range (including -1 for "no style") are plain numbers.
func (s *Styles) CellFormat(styleID int) formatClass {
	if styleID < 0 || styleID >= len(s.cellFormats) {
		return formatNumber
	}
	numFmt := s.cellFormats[styleID]
	if class, ok := builtinFormatClasses[numFmt]; ok {
		return class
	}
	if class, ok := s.classes[numFmt]; ok {
		return class
	}
	return formatNumber
}

// builtinFormatClasses covers the implied number formats of the spreadsheet
// format-code conventions; ids without an entry are general/numeric.
var builtinFormatClasses = map[int]formatClass{
	14: formatDate, 15: formatDate, 16: formatDate, 17: formatDate,
	18: formatTime, 19: formatTime, 20: formatTime, 21: formatTime,
	22: formatDate, // date + time
	27: formatDate, 30: formatDate, 36: formatDate,
	45: formatTime, 46: formatTime, 47: formatTime,
	50: formatDate, 57: formatDate, 58: formatDate,
}

var bracketedSection = regexp.MustCompile(`\[.*?\]`)

var nonDateCodes = map[string]bool{
	"0.00E+00": true,
	"##0.0E+0": true,
	"General":  true,
	"GENERAL":  true,
	"general":  true,
	"@":        true,
}

// classifyFormatCode decides whether a custom format code renders dates,
// times or plain numbers.
//
// Heuristics: ignore "quoted text" and [bracketed sections], skip the char
// after a backslash, underscore or asterisk, then look for date letters
// (ymd) and time letters (hs) against number placeholders (0 # ?). A code
// with date or time letters and no number placeholders is a date format; one
// whose only such letters are hms is a time format.
func classifyFormatCode(code string) formatClass {
	var reduced strings.Builder
	state := 0
	for _, c := range code {
		switch state {
		case 0:
			switch {
			case c == '"':
				state = 1
			case c == '\\' || c == '_' || c == '*':
				state = 2
			case strings.ContainsRune("$-+/():, ", c):
				// skip punctuation
			default:
				reduced.WriteRune(c)
			}
		case 1:
			if c == '"' {
				state = 0
			}
		case 2:
			state = 0
		}
	}
	fmtCode := bracketedSection.ReplaceAllString(reduced.String(), "")
	if nonDateCodes[fmtCode] {
		return formatNumber
	}

	dateCount, timeCount, numCount := 0, 0, 0
	for _, c := range fmtCode {
		switch c {
		case 'y', 'Y', 'd', 'D':
			dateCount++
		case 'h', 'H', 's', 'S':
			timeCount++
		case 'm', 'M':
			// month or minute, resolved below
		case '0', '#', '?':
			numCount++
		}
	}
	if numCount > 0 || (dateCount == 0 && timeCount == 0 && !strings.ContainsAny(fmtCode, "mM")) {
		return formatNumber
	}
	if dateCount > 0 {
		return formatDate
	}
	if timeCount > 0 {
		return formatTime
	}
	// Only m/M remained; a bare month run has no way to distinguish itself
	// from minutes, so treat it as a date.
	return formatDate
}
