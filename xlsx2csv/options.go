package xlsx2csv

import (
	"io"
	"regexp"

	"github.com/sirupsen/logrus"
)

// Quoting selects a CSV field quoting policy.
type Quoting int

const (
	// QuoteNone never quotes. Fields containing the delimiter or a line
	// break are emitted as-is; ambiguity is an accepted limitation unless
	// escape mode is enabled.
	QuoteNone Quoting = iota

	// QuoteMinimal quotes only fields containing the delimiter, the quote
	// character or a line break.
	QuoteMinimal

	// QuoteNonNumeric quotes every field that is not a plain number.
	QuoteNonNumeric

	// QuoteAll quotes every field.
	QuoteAll
)

// FormatKind names a value-formatting special case that --ignore-formats can
// suppress. Ignoring a kind renders the affected cells as plain numbers,
// regardless of an override format being supplied.
type FormatKind string

const (
	FormatDate  FormatKind = "date"
	FormatTime  FormatKind = "time"
	FormatFloat FormatKind = "float"
)

// DefaultSheetDelimiter is the line written between consecutive sheets when
// the caller does not configure one.
const DefaultSheetDelimiter = "--------"

// Options is the fully-populated configuration for one conversion run. The
// core is a pure function of (container, Options); there is no package-level
// state. Construct via DefaultOptions and override fields as needed.
type Options struct {
	// Sheet selection. SheetName, when non-empty, takes precedence; then
	// SheetID (1-based) when positive. Otherwise AllSheets selects the whole
	// catalog, filtered by the patterns and the hidden-sheet flag. An
	// explicitly named or numbered sheet that does not exist is ErrSelection.
	SheetName           string
	SheetID             int
	AllSheets           bool
	IncludePatterns     []*regexp.Regexp
	ExcludePatterns     []*regexp.Regexp
	ExcludeHiddenSheets bool

	// Output shape.
	Delimiter      rune
	LineTerminator string
	SheetDelimiter string
	Quoting        Quoting

	// Row filtering.
	SkipEmptyRows            bool
	SkipTrailingEmptyColumns bool
	IncludeHiddenRows        bool

	// Value handling.
	MergeCells   bool   // propagate a merge region's top-left value
	Hyperlinks   bool   // append resolved targets as "value (target)"
	Escape       bool   // backslash-escape \r \n \t in field values
	NoLineBreaks bool   // replace \r \n \t with a single space
	DateFormat   string // strftime-style, e.g. %Y-%m-%d
	TimeFormat   string // strftime-style, e.g. %H:%M:%S
	FloatFormat  string // printf-style, e.g. %.15f
	SciFloat     bool   // re-render scientific notation as plain floats
	IgnoreFormats map[FormatKind]bool

	// OutputEncoding transcodes the output stream when it is neither empty
	// nor utf-8. Encoding names are resolved with the WHATWG index.
	OutputEncoding string

	// Strict escalates unknown cell type codes from a diagnostic to a fatal
	// error.
	Strict bool

	// Logger receives recoverable diagnostics. Nil discards them.
	Logger *logrus.Logger
}

// DefaultOptions returns the defaults: all sheets, comma-delimited, minimal
// quoting, newline terminator, the standard sheet separator, no filtering.
func DefaultOptions() Options {
	return Options{
		AllSheets:      true,
		Delimiter:      ',',
		LineTerminator: "\n",
		SheetDelimiter: DefaultSheetDelimiter,
		Quoting:        QuoteMinimal,
		IgnoreFormats:  map[FormatKind]bool{},
	}
}

func (o *Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (o *Options) ignored(kind FormatKind) bool {
	return o.IgnoreFormats[kind]
}
