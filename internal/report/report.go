// Package report renders profiling results as Markdown or HTML documents.
package report

import (
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"io"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"genoetl/internal/profile"
)

// Formats accepted by Render.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Summary carries pipeline counts for the executive summary.
type Summary struct {
	Samples   int
	Runs      int
	QCMetrics int
	Status    string
}

// Data is everything a report shows. Summary and QC are optional.
type Data struct {
	Table     string
	Generated time.Time
	Summary   *Summary
	Quality   profile.QualityReport
	QC        *profile.QCAnalysis
}

// Completeness is the share of present cells, in percent.
func (d Data) Completeness() float64 {
	if d.Quality.Cells == 0 {
		return 100
	}
	return 100 - float64(d.Quality.MissingCells)/float64(d.Quality.Cells)*100
}

// ScoreClass buckets the quality score for styling.
func (d Data) ScoreClass() string {
	switch {
	case d.Quality.Score >= 90:
		return "high"
	case d.Quality.Score >= 70:
		return "medium"
	}
	return "low"
}

var funcs = map[string]any{
	"f1":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"f2":   func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"when": func(t time.Time) string { return t.Format(time.DateTime) },
}

//go:embed report.tmpl.md
var markdownSrc string

//go:embed report.tmpl.html
var htmlSrc string

var (
	mdTmpl   = template.Must(template.New("md").Funcs(funcs).Parse(markdownSrc))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Funcs(funcs).Parse(htmlSrc))
)

// Render writes d in the named format. The empty format is Markdown.
func Render(w io.Writer, format string, d Data) error {
	if d.Generated.IsZero() {
		d.Generated = time.Now()
	}
	switch format {
	case "", FormatMarkdown, "md":
		return mdTmpl.Execute(w, d)
	case FormatHTML:
		return htmlTmpl.Execute(w, d)
	}
	return fmt.Errorf("report: unknown format %q", format)
}

// WriteFile renders d to path, creating parent directories.
func WriteFile(path, format string, d Data) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	if err := Render(f, format, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
