package main

import (
	"testing"

	"github.com/yamitzky/xlsx2csv-go/xlsx2csv"
)

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{in: ",", want: ','},
		{in: ";", want: ';'},
		{in: "tab", want: '\t'},
		{in: "TAB", want: '\t'},
		{in: "x09", want: '\t'},
		{in: `\t`, want: '\t'},
		{in: "x1f", want: 0x1f},
		{in: "", wantErr: true},
		{in: "ab", wantErr: true},
		{in: "xzz", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseDelimiter(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseDelimiter(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDelimiter(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDelimiter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSheetDelimiter(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "--------", want: "--------"},
		{in: "", want: ""},
		{in: `\f`, want: "\f"},
		{in: "x07", want: "\x07"},
		{in: "===", want: "==="},
	}
	for _, tt := range tests {
		got, err := parseSheetDelimiter(tt.in)
		if err != nil {
			t.Errorf("parseSheetDelimiter(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSheetDelimiter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseEscapedString(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: `\n`, want: "\n"},
		{in: `\r\n`, want: "\r\n"},
		{in: `\t`, want: "\t"},
		{in: `\\`, want: `\`},
		{in: "plain", want: "plain"},
		{in: `bad\q`, wantErr: true},
		{in: `dangling\`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseEscapedString(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseEscapedString(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseEscapedString(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseEscapedString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseQuoting(t *testing.T) {
	tests := []struct {
		in      string
		want    xlsx2csv.Quoting
		wantErr bool
	}{
		{in: "none", want: xlsx2csv.QuoteNone},
		{in: "minimal", want: xlsx2csv.QuoteMinimal},
		{in: "MINIMAL", want: xlsx2csv.QuoteMinimal},
		{in: "nonnumeric", want: xlsx2csv.QuoteNonNumeric},
		{in: "all", want: xlsx2csv.QuoteAll},
		{in: "everything", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseQuoting(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseQuoting(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseQuoting(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseQuoting(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBuildOptions(t *testing.T) {
	f := &flags{
		delimiter:      "tab",
		lineTerminator: `\r\n`,
		sheetDelimiter: "--------",
		quoting:        "all",
		sheetName:      "Data",
		ignoreFormats:  []string{"date", "float"},
		outputEncoding: "utf-8",
	}
	opts, err := buildOptions(f)
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	if opts.Delimiter != '\t' {
		t.Errorf("Delimiter = %q, want tab", opts.Delimiter)
	}
	if opts.LineTerminator != "\r\n" {
		t.Errorf("LineTerminator = %q", opts.LineTerminator)
	}
	if opts.Quoting != xlsx2csv.QuoteAll {
		t.Errorf("Quoting = %d, want QuoteAll", opts.Quoting)
	}
	if opts.SheetName != "Data" {
		t.Errorf("SheetName = %q", opts.SheetName)
	}
	if !opts.IgnoreFormats[xlsx2csv.FormatDate] || !opts.IgnoreFormats[xlsx2csv.FormatFloat] {
		t.Errorf("IgnoreFormats = %v", opts.IgnoreFormats)
	}
	if opts.IgnoreFormats[xlsx2csv.FormatTime] {
		t.Errorf("time should not be ignored")
	}

	f = &flags{delimiter: ",", lineTerminator: `\n`, quoting: "minimal", sheetName: "Data", all: true}
	if _, err := buildOptions(f); err == nil {
		t.Errorf("expected conflict error for --sheetname with --all")
	}

	f = &flags{delimiter: ",", lineTerminator: `\n`, quoting: "minimal", ignoreFormats: []string{"currency"}}
	if _, err := buildOptions(f); err == nil {
		t.Errorf("expected error for unknown format kind")
	}
}
