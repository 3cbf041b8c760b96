package xlsx2csv

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// SharedStrings is the workbook's deduplicated string table, loaded eagerly
// and in full because any sheet may reference any index at any time. It is
// immutable after load and safe to share across sheets.
type SharedStrings struct {
	entries []string
}

// LoadSharedStrings parses the shared-string part. Rich-text runs within one
// entry are concatenated into a single plain string; phonetic (rPh) runs are
// dropped.
func LoadSharedStrings(r io.Reader) (*SharedStrings, error) {
	dec := xml.NewDecoder(r)
	ss := &SharedStrings{}

	var current []byte
	inString := false
	inText := false
	phonetic := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(ErrMalformedSharedStrings, err.Error())
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sst":
				for _, a := range t.Attr {
					if a.Name.Local == "uniqueCount" {
						if n, err := strconv.Atoi(a.Value); err == nil && n >= 0 {
							ss.entries = make([]string, 0, n)
						}
					}
				}
			case "si":
				current = current[:0]
				inString = true
			case "t":
				inText = true
			case "rPh":
				phonetic++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				if inString {
					ss.entries = append(ss.entries, string(current))
				}
				inString = false
			case "t":
				inText = false
			case "rPh":
				if phonetic > 0 {
					phonetic--
				}
			}
		case xml.CharData:
			if inString && inText && phonetic == 0 {
				current = append(current, t...)
			}
		}
	}
	if inString {
		return nil, errors.Wrap(ErrMalformedSharedStrings, "truncated string entry")
	}
	return ss, nil
}

// Get returns the entry at index i.
func (s *SharedStrings) Get(i int) (string, bool) {
	if i < 0 || i >= len(s.entries) {
		return "", false
	}
	return s.entries[i], true
}

// Len returns the number of entries.
func (s *SharedStrings) Len() int {
	return len(s.entries)
}
