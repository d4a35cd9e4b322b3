package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table prints aligned columns under a bold header row
type Table struct {
	w       io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{w: w, headers: headers, noColor: noColor}
}

// AddRow appends cells; extra cells beyond the headers are dropped
func (t *Table) AddRow(cells ...string) {
	if len(cells) > len(t.headers) {
		cells = cells[:len(t.headers)]
	}
	t.rows = append(t.rows, cells)
}

// Len is the number of rows added
func (t *Table) Len() int { return len(t.rows) }

func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	bold := paint(t.noColor, color.Bold, color.FgCyan)
	gray := paint(t.noColor, color.FgHiBlack)
	last := len(t.headers) - 1

	for i, h := range t.headers {
		bold.Fprint(t.w, pad(h, widths[i], i == last))
		if i < last {
			fmt.Fprint(t.w, "  ")
		}
	}
	fmt.Fprintln(t.w)
	rules := make([]string, len(widths))
	for i, n := range widths {
		rules[i] = strings.Repeat("─", n)
	}
	gray.Fprintln(t.w, strings.Join(rules, "  "))

	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = pad(cell, widths[i], i == len(row)-1)
		}
		fmt.Fprintln(t.w, strings.Join(cells, "  "))
	}
}

func pad(s string, width int, last bool) string {
	n := utf8.RuneCountInString(s)
	if last || n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// Fields prints "key: value" lines with the keys aligned
type Fields struct {
	w       io.Writer
	keys    []string
	values  []string
	noColor bool
}

func NewFields(w io.Writer, noColor bool) *Fields {
	return &Fields{w: w, noColor: noColor}
}

func (f *Fields) Add(key, value string) {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
}

func (f *Fields) Render() {
	width := 0
	for _, k := range f.keys {
		width = max(width, utf8.RuneCountInString(k)+1)
	}
	cyan := paint(f.noColor, color.FgCyan)
	for i, k := range f.keys {
		cyan.Fprint(f.w, pad(k+":", width, false))
		fmt.Fprintf(f.w, " %s\n", f.values[i])
	}
}

// Header prints title underlined
func Header(w io.Writer, title string, noColor bool) {
	paint(noColor, color.Bold, color.FgCyan).Fprintln(w, title)
	paint(noColor, color.FgHiBlack).Fprintln(w, strings.Repeat("─", utf8.RuneCountInString(title)))
}
