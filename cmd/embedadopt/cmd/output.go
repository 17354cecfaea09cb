package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

// setOutputWriter sets the output writer (used for testing)
func setOutputWriter(w io.Writer) {
	outputWriter = w
}

// resetOutputWriter resets output to stdout (used for testing)
func resetOutputWriter() {
	outputWriter = os.Stdout
}

// printHeader prints a formatted header
func printHeader(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := runewidth.StringWidth(title) + 4
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
	fmt.Fprintf(outputWriter, "  %s\n", color.Bold.Sprint(title))
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
}

// printSection prints a section header
func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", color.Cyan.Sprint(title))
	fmt.Fprintln(outputWriter, strings.Repeat("-", runewidth.StringWidth(title)+2))
}

// status colors an outcome word.
func status(s string) string {
	switch s {
	case "adopted", "ok", "passed":
		return color.Green.Sprint(s)
	case "noop", "skipped", "pending":
		return color.Yellow.Sprint(s)
	case "failed", "cycle":
		return color.Red.Sprint(s)
	}
	return s
}

// printTable writes rows as left-aligned columns. Widths are measured in
// terminal cells so wide characters in bundle names line up.
func printTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				if w := runewidth.StringWidth(color.ClearCode(cell)); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			pad := widths[i] - runewidth.StringWidth(color.ClearCode(cell))
			parts[i] = cell + strings.Repeat(" ", pad)
		}
		fmt.Fprintf(outputWriter, "  %s\n", strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(headers)
	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	line(seps)
	for _, row := range rows {
		line(row)
	}
}
