// Package output provides output formatting utilities for CLI commands.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format represents the output format type.
type Format string

const (
	// FormatTable outputs data in a formatted table.
	FormatTable Format = "table"
	// FormatJSON outputs data as JSON.
	FormatJSON Format = "json"
	// FormatYAML outputs data as YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat parses a string into a Format, returning an error if invalid.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// Printer handles formatted output to a writer.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter creates a new Printer with the given options.
func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{
		out:    out,
		format: format,
		color:  color,
	}
}

// ColorSupported reports whether f is a terminal and NO_COLOR is unset.
func ColorSupported(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Format returns the printer's output format.
func (p *Printer) Format() Format {
	return p.format
}

// Writer returns the printer's output writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Print outputs data in the configured format.
//
// In table format, data implementing KeyValueRenderer is printed as a
// key/value block first; data implementing TableRenderer is then printed as
// a table, omitted when it has no rows and follows a key/value block. Other
// data falls back to JSON. JSON and YAML marshal data as is.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		kv, hasPairs := data.(KeyValueRenderer)
		tr, hasTable := data.(TableRenderer)
		if !hasPairs && !hasTable {
			return PrintJSON(p.out, data)
		}
		if hasPairs {
			if err := SimpleTable(p.out, kv.Pairs()); err != nil {
				return err
			}
		}
		if hasTable {
			if hasPairs {
				if len(tr.Rows()) == 0 {
					return nil
				}
				p.Println()
			}
			return PrintTable(p.out, tr)
		}
		return nil
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

// Println prints a message followed by a newline.
func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}

// Printf prints a formatted message.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Success prints a success message.
func (p *Printer) Success(msg string) {
	p.colored("32", msg)
}

// Warning prints a warning message.
func (p *Printer) Warning(msg string) {
	p.colored("33", msg)
}

func (p *Printer) colored(code, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "\033[%sm%s\033[0m\n", code, msg)
	} else {
		_, _ = fmt.Fprintln(p.out, msg)
	}
}
