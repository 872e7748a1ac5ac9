package output

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/mattn/go-isatty"

	"knockraven/port"
)

const (
	colorGreen = "\x1b[32m"
	colorReset = "\x1b[0m"
)

// colorize reports whether w is a terminal that should get ANSI colors.
func colorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PrintMatches writes the scan summary, one line per discovered sequence.
// With labeled set every knock carries its protocol, as mixed scans need.
func PrintMatches(w io.Writer, matches []port.Match, labeled bool) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matching sequences discovered.")
		return
	}
	color := colorize(w)
	fmt.Fprintf(w, "Discovered %d matching sequence(s):\n", len(matches))
	for _, m := range matches {
		line := m.String()
		if labeled {
			line = m.Labeled()
		}
		if m.Service != "" {
			line += " [" + m.Service + "]"
		}
		if color {
			line = colorGreen + line + colorReset
		}
		fmt.Fprintln(w, "  "+line)
	}
}

// PrintTable prints matches with per-knock protocols and service details.
func PrintTable(w io.Writer, matches []port.Match) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSEQUENCE\tSERVICE\tBANNER")
	for i, m := range matches {
		service := m.Service
		if service == "" {
			service = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, m.Labeled(), service, firstLine(m.Banner))
	}
	_ = tw.Flush()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\r' || r == '\n' {
			return s[:i]
		}
	}
	return s
}
