package xlsx2csv

import (
	"regexp"

	"github.com/pkg/errors"
)

// SelectSheets filters the catalog against the run's criteria and returns
// the sheets to stream, in declaration order.
//
// Precedence: an explicit name, then an explicit 1-based id, both validated
// against the catalog; otherwise the include/exclude patterns filter the
// whole catalog, hidden sheets are dropped when configured, and absent any
// criteria every sheet is selected. Zero sheets matching the patterns is a
// valid, empty selection; an unknown explicit name or id is ErrSelection.
func SelectSheets(wb *Workbook, opts *Options) ([]SheetDescriptor, error) {
	if opts.SheetName != "" {
		for _, sheet := range wb.Sheets {
			if sheet.Name == opts.SheetName {
				return []SheetDescriptor{sheet}, nil
			}
		}
		return nil, errors.Wrapf(ErrSelection, "no sheet named %q", opts.SheetName)
	}

	if opts.SheetID > 0 {
		if opts.SheetID > len(wb.Sheets) {
			return nil, errors.Wrapf(ErrSelection, "sheet id %d out of range (1-%d)", opts.SheetID, len(wb.Sheets))
		}
		return []SheetDescriptor{wb.Sheets[opts.SheetID-1]}, nil
	}

	// Without the all-sheets flag the run converts the first sheet only.
	if !opts.AllSheets {
		if len(wb.Sheets) == 0 {
			return nil, nil
		}
		return []SheetDescriptor{wb.Sheets[0]}, nil
	}

	var selected []SheetDescriptor
	for _, sheet := range wb.Sheets {
		if opts.ExcludeHiddenSheets && sheet.Hidden {
			continue
		}
		if !matchPatterns(sheet.Name, opts.IncludePatterns, opts.ExcludePatterns) {
			continue
		}
		selected = append(selected, sheet)
	}
	return selected, nil
}

func matchPatterns(name string, include, exclude []*regexp.Regexp) bool {
	if len(include) > 0 {
		matched := false
		for _, re := range include {
			if re.MatchString(name) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, re := range exclude {
		if re.MatchString(name) {
			return false
		}
	}
	return true
}
