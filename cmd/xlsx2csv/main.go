// Command xlsx2csv converts xlsx workbooks to CSV on standard output or a
// file, streaming row by row so workbooks larger than memory convert fine.
package main

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yamitzky/xlsx2csv-go/xlsx2csv"
)

var version = "dev"

type flags struct {
	all                 bool
	outputEncoding      string
	delimiter           string
	lineTerminator      string
	sheetDelimiter      string
	quoting             string
	sheetID             int
	sheetName           string
	includePatterns     []string
	excludePatterns     []string
	excludeHiddenSheets bool
	includeHiddenRows   bool
	ignoreEmpty         bool
	skipEmptyColumns    bool
	mergeCells          bool
	hyperlinks          bool
	escape              bool
	noLineBreaks        bool
	dateFormat          string
	timeFormat          string
	floatFormat         string
	sciFloat            bool
	ignoreFormats       []string
	strict              bool
	verbose             bool
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:     "xlsx2csv [flags] xlsxfile [outfile]",
		Short:   "xlsx to csv converter",
		Long:    "Convert xlsx workbooks to CSV. Use '-' as xlsxfile to read from STDIN.",
		Version: version,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(&f, args)
		},
	}

	fl := rootCmd.Flags()
	fl.BoolVarP(&f.all, "all", "a", false, "export all sheets")
	fl.StringVarP(&f.outputEncoding, "outputencoding", "c", "utf-8", "encoding of output csv")
	fl.StringVarP(&f.delimiter, "delimiter", "d", ",", "column delimiter, 'tab' or 'x09' for a tab")
	fl.StringVarP(&f.lineTerminator, "lineterminator", "l", "\\n", `line terminator, '\n' '\r\n' or '\r'`)
	fl.StringVarP(&f.sheetDelimiter, "sheetdelimiter", "p", xlsx2csv.DefaultSheetDelimiter, "sheet separator line, '' for none, 'x07' or '\\f' for form feed")
	fl.StringVarP(&f.quoting, "quoting", "q", "minimal", "field quoting: 'none' 'minimal' 'nonnumeric' or 'all'")
	fl.IntVarP(&f.sheetID, "sheet", "s", 0, "sheet number to convert (1-based)")
	fl.StringVarP(&f.sheetName, "sheetname", "n", "", "sheet name to convert")
	fl.StringArrayVarP(&f.includePatterns, "include_sheet_pattern", "I", nil, "only include sheets named matching given pattern, only effects when -a option is enabled")
	fl.StringArrayVarP(&f.excludePatterns, "exclude_sheet_pattern", "E", nil, "exclude sheets named matching given pattern, only effects when -a option is enabled")
	fl.BoolVar(&f.excludeHiddenSheets, "exclude-hidden-sheets", false, "exclude hidden sheets from the output")
	fl.BoolVar(&f.includeHiddenRows, "include-hidden-rows", false, "include hidden rows")
	fl.BoolVarP(&f.ignoreEmpty, "ignoreempty", "i", false, "skip empty lines")
	fl.BoolVar(&f.skipEmptyColumns, "skipemptycolumns", false, "skip trailing empty columns")
	fl.BoolVarP(&f.mergeCells, "merge-cells", "m", false, "merge cells")
	fl.BoolVar(&f.hyperlinks, "hyperlinks", false, "include hyperlinks")
	fl.BoolVarP(&f.escape, "escape", "e", false, `escape \r\n\t characters`)
	fl.BoolVar(&f.noLineBreaks, "no-line-breaks", false, `replace \r\n\t with space`)
	fl.StringVarP(&f.dateFormat, "dateformat", "f", "", "override date/time format (ex. %Y/%m/%d)")
	fl.StringVarP(&f.timeFormat, "timeformat", "t", "", "override time format (ex. %H/%M/%S)")
	fl.StringVar(&f.floatFormat, "floatformat", "", "override float format (ex. %.15f)")
	fl.BoolVar(&f.sciFloat, "sci-float", false, "force scientific notation to float")
	fl.StringSliceVar(&f.ignoreFormats, "ignore-formats", nil, "ignore format for specific data types: date, time, float")
	fl.BoolVar(&f.strict, "strict", false, "treat unknown cell types as fatal")
	fl.BoolVar(&f.verbose, "verbose", false, "verbose diagnostics on stderr")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(f *flags, args []string) error {
	opts, err := buildOptions(f)
	if err != nil {
		return err
	}

	inputPath := args[0]
	outputPath := "-"
	if len(args) > 1 {
		outputPath = args[1]
	}

	if outputPath == "-" {
		w := bufio.NewWriter(os.Stdout)
		if err := xlsx2csv.ConvertFile(inputPath, w, opts); err != nil {
			return err
		}
		if err := w.Flush(); err != nil && !xlsx2csv.IsOutputClosed(err) {
			return err
		}
		return nil
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	if err := xlsx2csv.ConvertFile(inputPath, w, opts); err != nil {
		return err
	}
	return w.Flush()
}

func buildOptions(f *flags) (xlsx2csv.Options, error) {
	opts := xlsx2csv.DefaultOptions()

	delimiter, err := parseDelimiter(f.delimiter)
	if err != nil {
		return opts, fmt.Errorf("invalid delimiter: %w", err)
	}
	opts.Delimiter = delimiter

	opts.LineTerminator, err = parseEscapedString(f.lineTerminator)
	if err != nil {
		return opts, fmt.Errorf("invalid line terminator: %w", err)
	}

	opts.SheetDelimiter, err = parseSheetDelimiter(f.sheetDelimiter)
	if err != nil {
		return opts, fmt.Errorf("invalid sheet delimiter: %w", err)
	}

	opts.Quoting, err = parseQuoting(f.quoting)
	if err != nil {
		return opts, err
	}

	opts.IncludePatterns, err = compilePatterns(f.includePatterns)
	if err != nil {
		return opts, fmt.Errorf("invalid include pattern: %w", err)
	}
	opts.ExcludePatterns, err = compilePatterns(f.excludePatterns)
	if err != nil {
		return opts, fmt.Errorf("invalid exclude pattern: %w", err)
	}

	for _, kind := range f.ignoreFormats {
		switch xlsx2csv.FormatKind(kind) {
		case xlsx2csv.FormatDate, xlsx2csv.FormatTime, xlsx2csv.FormatFloat:
			opts.IgnoreFormats[xlsx2csv.FormatKind(kind)] = true
		default:
			return opts, fmt.Errorf("unknown format kind %q", kind)
		}
	}

	if f.sheetName != "" && (f.all || f.sheetID > 0) {
		return opts, fmt.Errorf("cannot combine --sheetname with --sheet or --all")
	}

	opts.SheetName = f.sheetName
	opts.SheetID = f.sheetID
	opts.AllSheets = f.all

	opts.ExcludeHiddenSheets = f.excludeHiddenSheets
	opts.IncludeHiddenRows = f.includeHiddenRows
	opts.SkipEmptyRows = f.ignoreEmpty
	opts.SkipTrailingEmptyColumns = f.skipEmptyColumns
	opts.MergeCells = f.mergeCells
	opts.Hyperlinks = f.hyperlinks
	opts.Escape = f.escape
	opts.NoLineBreaks = f.noLineBreaks
	opts.DateFormat = f.dateFormat
	opts.TimeFormat = f.timeFormat
	opts.FloatFormat = f.floatFormat
	opts.SciFloat = f.sciFloat
	opts.OutputEncoding = f.outputEncoding
	opts.Strict = f.strict

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if f.verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	opts.Logger = log

	return opts, nil
}

func parseDelimiter(value string) (rune, error) {
	switch strings.ToLower(value) {
	case "tab", "x09", "\\t":
		return '\t', nil
	}
	if value == "" {
		return 0, fmt.Errorf("delimiter cannot be empty")
	}
	if strings.HasPrefix(value, "x") && len(value) == 3 {
		decoded, err := strconv.ParseUint(value[1:], 16, 8)
		if err != nil {
			return 0, err
		}
		return rune(decoded), nil
	}
	runes := []rune(value)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character: %q", value)
	}
	return runes[0], nil
}

func parseSheetDelimiter(value string) (string, error) {
	if value == "\\f" {
		return "\f", nil
	}
	if strings.HasPrefix(value, "x") && len(value) == 3 {
		decoded, err := strconv.ParseUint(value[1:], 16, 8)
		if err != nil {
			return "", err
		}
		return string([]byte{byte(decoded)}), nil
	}
	return value, nil
}

func parseEscapedString(value string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] != '\\' {
			b.WriteByte(value[i])
			continue
		}
		if i+1 >= len(value) {
			return "", fmt.Errorf("dangling escape")
		}
		i++
		switch value[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'f':
			b.WriteByte('\f')
		case '\\':
			b.WriteByte('\\')
		default:
			return "", fmt.Errorf("unknown escape \\%c", value[i])
		}
	}
	return b.String(), nil
}

func parseQuoting(value string) (xlsx2csv.Quoting, error) {
	switch strings.ToLower(value) {
	case "none":
		return xlsx2csv.QuoteNone, nil
	case "minimal":
		return xlsx2csv.QuoteMinimal, nil
	case "nonnumeric":
		return xlsx2csv.QuoteNonNumeric, nil
	case "all":
		return xlsx2csv.QuoteAll, nil
	default:
		return xlsx2csv.QuoteMinimal, fmt.Errorf("unsupported quoting: %s", value)
	}
}

func compilePatterns(values []string) ([]*regexp.Regexp, error) {
	if len(values) == 0 {
		return nil, nil
	}
	patterns := make([]*regexp.Regexp, 0, len(values))
	for _, value := range values {
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}
