package rerrors

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Formatter renders errors/warnings/info lines with the "rung ERROR"/"rung WARN"
// prefixes from the design spec's user-visible behaviour section. Colours are
// dropped when NoColor is set (non-TTY stderr or NO_COLOR env, decided by the caller).
type Formatter struct {
	NoColor bool
	Writer  io.Writer

	errColor  *color.Color
	warnColor *color.Color
	hintColor *color.Color
	dimColor  *color.Color
}

// NewFormatter creates a Formatter. When noColor is true, color.NoColor is
// forced so downstream *color.Color values degrade to plain text.
func NewFormatter(w io.Writer, noColor bool) *Formatter {
	if noColor {
		color.NoColor = true
	}
	return &Formatter{
		NoColor:   noColor,
		Writer:    w,
		errColor:  color.New(color.FgRed, color.Bold),
		warnColor: color.New(color.FgYellow, color.Bold),
		hintColor: color.New(color.FgGreen),
		dimColor:  color.New(color.FgHiBlack),
	}
}

// Error prints "rung ERROR <message>" plus any Hint.
func (f *Formatter) Error(err error) {
	var sb strings.Builder
	sb.WriteString(f.errColor.Sprint("rung ERROR"))
	sb.WriteString(" ")
	sb.WriteString(err.Error())
	sb.WriteString("\n")
	if e, ok := err.(*Error); ok && e.Hint != "" {
		sb.WriteString(f.hintColor.Sprintf("  hint: %s", e.Hint))
		sb.WriteString("\n")
	}
	fmt.Fprint(f.Writer, sb.String())
}

// Warn prints "rung WARN <message>".
func (f *Formatter) Warn(message string) {
	fmt.Fprintf(f.Writer, "%s %s\n", f.warnColor.Sprint("rung WARN"), message)
}

// Info prints a plain "rung <message>" informational line.
func (f *Formatter) Info(message string) {
	fmt.Fprintf(f.Writer, "rung %s\n", message)
}
