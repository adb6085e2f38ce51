// Package format renders converter output as CSV, tables and JSON.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
)

// Output formats accepted by Write.
const (
	FormatTable = "table"
	FormatPlain = "plain"
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// Table is a header with rows of cells in the same order.
type Table struct {
	Header []string
	Rows   [][]string
	// Numeric marks right-aligned columns by index.
	Numeric map[int]bool
}

// Options controls table rendering.
type Options struct {
	// Width is the terminal width the table should fit in; 0 disables
	// clipping.
	Width int
	// NoHeader omits the header line of table, plain and csv output.
	NoHeader bool
}

// Write writes tbl to w in the requested format. JSON formats encode items
// instead of the table cells.
func Write[T any](w io.Writer, format string, tbl Table, items []T, opts Options) error {
	switch strings.ToLower(format) {
	case "", FormatTable:
		return writeTable(w, tbl, opts)
	case FormatPlain:
		return writePlain(w, tbl, opts)
	case FormatCSV:
		header := tbl.Header
		if opts.NoHeader {
			header = nil
		}
		return WriteCSV(w, header, tbl.Rows)
	case FormatJSON:
		return WriteJSON(w, items)
	case FormatJSONL:
		return WriteJSONL(w, items)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteJSONL writes one JSON document per item.
func WriteJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func writePlain(w io.Writer, tbl Table, opts Options) error {
	if !opts.NoHeader {
		if _, err := fmt.Fprintln(w, strings.Join(tbl.Header, "\t")); err != nil {
			return err
		}
	}
	for _, row := range tbl.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = escapeNewlines(cell)
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func escapeNewlines(text string) string {
	return strings.ReplaceAll(text, "\n", "\\n")
}

func writeTable(w io.Writer, tbl Table, opts Options) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true

	maxCell := cellLimit(len(tbl.Header), opts.Width)
	configs := make([]table.ColumnConfig, len(tbl.Header))
	for i := range tbl.Header {
		align := text.AlignLeft
		if tbl.Numeric[i] {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignCenter}
	}
	tw.SetColumnConfigs(configs)

	if !opts.NoHeader {
		header := make(table.Row, len(tbl.Header))
		for i, h := range tbl.Header {
			header[i] = h
		}
		tw.AppendHeader(header)
	}

	for _, row := range tbl.Rows {
		cells := make(table.Row, len(row))
		for i, cell := range row {
			cells[i] = Clip(escapeNewlines(cell), maxCell)
		}
		tw.AppendRow(cells)
	}

	if len(tbl.Rows) == 0 && len(tbl.Header) > 0 {
		empty := make(table.Row, len(tbl.Header))
		for i := range empty {
			empty[i] = "-"
		}
		empty[0] = "(no rows)"
		tw.AppendRow(empty)
	}

	_ = tw.Render()
	return nil
}

// cellLimit spreads the terminal width over the columns, leaving room for
// the borders and padding go-pretty draws around every cell.
func cellLimit(columns, width int) int {
	if width <= 0 || columns == 0 {
		return 0
	}
	limit := (width - 1 - 3*columns) / columns
	if limit < 8 {
		limit = 8
	}
	return limit
}

// Clip shortens s to at most limit display columns, marking the cut with an
// ellipsis. A limit of 0 disables clipping.
func Clip(s string, limit int) string {
	if limit <= 0 || runewidth.StringWidth(s) <= limit {
		return s
	}
	return runewidth.Truncate(s, limit, "…")
}
