package xlsx2csv

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Field is one formatted output value. Numeric marks values the nonnumeric
// quoting policy leaves unquoted.
type Field struct {
	Text    string
	Numeric bool
}

// Formatter converts raw cell events into their final textual
// representation. It consults the shared-string table and style table as
// read-only side tables and never mutates them.
type Formatter struct {
	shared   *SharedStrings
	styles   *Styles
	datemode int
	links    map[[2]int]string // (row, col) -> resolved target
	opts     *Options
}

// NewFormatter builds a formatter for one sheet. links may be nil when
// hyperlink augmentation is disabled.
func NewFormatter(shared *SharedStrings, styles *Styles, datemode int, links map[[2]int]string, opts *Options) *Formatter {
	return &Formatter{shared: shared, styles: styles, datemode: datemode, links: links, opts: opts}
}

// Format resolves one cell event. The returned error is fatal (shared-string
// index out of range, bad override format).
func (f *Formatter) Format(ev CellEvent) (Field, error) {
	var field Field
	switch ev.Kind {
	case KindEmpty:
		// keep the empty field
	case KindSharedString:
		// A reference that is not an index at all (an empty or garbled
		// payload) passes through as text; only a real index pointing outside
		// the table is fatal.
		idx, err := strconv.Atoi(strings.TrimSpace(ev.Value))
		if err != nil {
			field.Text = ev.Value
			break
		}
		text, ok := f.shared.Get(idx)
		if !ok {
			return Field{}, errors.Wrapf(ErrFormat, "shared string index %d out of range (table has %d)", idx, f.shared.Len())
		}
		field.Text = text
	case KindInlineString, KindFormulaString, KindError, KindDate:
		field.Text = ev.Value
	case KindBool:
		switch strings.TrimSpace(ev.Value) {
		case "1":
			field.Text = "true"
		case "0":
			field.Text = "false"
		default:
			field.Text = ev.Value
		}
	case KindNumber:
		var err error
		field, err = f.formatNumber(ev)
		if err != nil {
			return Field{}, err
		}
	default:
		field.Text = ev.Value
	}

	if f.links != nil {
		if target, ok := f.links[[2]int{ev.Row, ev.Col}]; ok && target != "" {
			if field.Text == "" {
				field.Text = target
			} else {
				field.Text = field.Text + " (" + target + ")"
			}
			field.Numeric = false
		}
	}

	if f.opts.NoLineBreaks {
		field.Text = lineBreakReplacer.Replace(field.Text)
	} else if f.opts.Escape {
		field.Text = escapeReplacer.Replace(field.Text)
	}
	return field, nil
}

var (
	lineBreakReplacer = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	escapeReplacer    = strings.NewReplacer("\r", "\\r", "\n", "\\n", "\t", "\\t")
)

func (f *Formatter) formatNumber(ev CellEvent) (Field, error) {
	switch f.styles.CellFormat(ev.Style) {
	case formatDate:
		if !f.opts.ignored(FormatDate) {
			if text, ok := f.formatSerial(ev.Value, false); ok {
				return Field{Text: text}, nil
			}
		}
	case formatTime:
		if !f.opts.ignored(FormatTime) {
			if text, ok := f.formatSerial(ev.Value, true); ok {
				return Field{Text: text}, nil
			}
		}
	}
	return f.formatFloat(ev.Value)
}

// formatSerial renders a serial day-count as a date or time. It reports
// false when the value is not a renderable serial, in which case the caller
// falls back to plain number rendering.
func (f *Formatter) formatSerial(raw string, asTime bool) (string, bool) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", false
	}
	t, ok := serialToTime(serial, f.datemode)
	if !ok {
		return "", false
	}
	if asTime || serial < 1 {
		if f.opts.TimeFormat != "" {
			return strftime(t, f.opts.TimeFormat), true
		}
		return t.Format("15:04:05"), true
	}
	if f.opts.DateFormat != "" {
		return strftime(t, f.opts.DateFormat), true
	}
	if serial != math.Floor(serial) {
		return t.Format("2006-01-02 15:04:05"), true
	}
	return t.Format("2006-01-02"), true
}

func (f *Formatter) formatFloat(raw string) (Field, error) {
	text := raw
	if f.opts.ignored(FormatFloat) {
		return Field{Text: text, Numeric: true}, nil
	}
	if f.opts.SciFloat && strings.ContainsAny(text, "eE") {
		if v, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			text = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	if f.opts.FloatFormat != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err == nil {
			formatted := fmt.Sprintf(f.opts.FloatFormat, v)
			if strings.Contains(formatted, "%!") {
				return Field{}, errors.Wrapf(ErrFormat, "bad float format %q", f.opts.FloatFormat)
			}
			text = formatted
		}
	}
	return Field{Text: text, Numeric: true}, nil
}

// strftime renders t using a strftime-style format. Unsupported directives
// pass through verbatim.
func strftime(t time.Time, format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			b.WriteByte(format[i])
			continue
		}
		i++
		switch format[i] {
		case '%':
			b.WriteByte('%')
		case 'Y':
			b.WriteString(t.Format("2006"))
		case 'y':
			b.WriteString(t.Format("06"))
		case 'm':
			b.WriteString(t.Format("01"))
		case 'd':
			b.WriteString(t.Format("02"))
		case 'H':
			b.WriteString(t.Format("15"))
		case 'M':
			b.WriteString(t.Format("04"))
		case 'S':
			b.WriteString(t.Format("05"))
		case 'b':
			b.WriteString(t.Format("Jan"))
		case 'B':
			b.WriteString(t.Format("January"))
		case 'a':
			b.WriteString(t.Format("Mon"))
		case 'A':
			b.WriteString(t.Format("Monday"))
		default:
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}
