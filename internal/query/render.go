package query

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Formats lists the accepted Render formats.
var Formats = []string{"table", "csv", "markdown", "json"}

// Render writes results in the named format. The empty format is "table".
func Render(w io.Writer, results []Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "", "table", "csv", "markdown", "md":
	default:
		return fmt.Errorf("query: unknown format %q", format)
	}

	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if format == "markdown" || format == "md" {
			fmt.Fprintf(w, "## Query\n\n```sql\n%s\n```\n\n", r.SQL)
		} else if format != "csv" {
			fmt.Fprintln(w, r.SQL)
		}
		renderOne(w, r, format)
	}
	return nil
}

func renderOne(w io.Writer, r Result, format string) {
	if len(r.Rows) == 0 && format != "csv" {
		fmt.Fprintln(w, "(0 rows)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	header := make(table.Row, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, row := range r.Rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = FormatValue(v)
		}
		t.AppendRow(tr)
	}

	switch format {
	case "csv":
		t.RenderCSV()
	case "markdown", "md":
		t.RenderMarkdown()
		fmt.Fprintln(w)
	default:
		t.SetStyle(table.StyleLight)
		t.Render()
		fmt.Fprintf(w, "(%d rows)\n", len(r.Rows))
	}
}

// FormatValue renders one cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339Nano)
	case float64:
		return fmt.Sprintf("%g", x)
	}
	return fmt.Sprintf("%v", v)
}
