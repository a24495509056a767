package diagnostics

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ColorMode selects whether Render emits ANSI colour.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode maps auto, always and never.
func ParseColorMode(s string) (ColorMode, bool) {
	switch s {
	case "", "auto":
		return ColorAuto, true
	case "always":
		return ColorAlways, true
	case "never":
		return ColorNever, true
	}
	return ColorAuto, false
}

// UseColor resolves mode against f.
func UseColor(mode ColorMode, f *os.File) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if f == nil || (!isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())) {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

func severityColor(s Severity) string {
	switch s {
	case SeverityError:
		return ansiRed
	case SeverityWarning:
		return ansiYellow
	}
	return ansiCyan
}

// Render writes one line per diagnostic followed by a summary.
func Render(w io.Writer, errs []*DiagnosticError, color bool) {
	var nerr, nwarn int
	for _, e := range errs {
		switch e.Severity {
		case SeverityError:
			nerr++
		case SeverityWarning:
			nwarn++
		}
		loc := e.Pos.String()
		if e.Pos.File == "" && e.File != "" {
			loc = e.File + ":" + loc
		}
		sev := e.Severity.String()
		if color {
			sev = severityColor(e.Severity) + ansiBold + sev + ansiReset
		}
		fmt.Fprintf(w, "%s: %s[%s %s]: %s\n", loc, sev, e.Code, e.Code.Name(), e.Message)
	}
	if len(errs) > 0 {
		fmt.Fprintf(w, "%d error(s), %d warning(s)\n", nerr, nwarn)
	}
}
