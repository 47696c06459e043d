package benchmark

import (
	"fmt"
	"io"
	"strings"
	"time"
)

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// Markdown renders r as the benchmark report.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("# Benchmark Results\n\n")
	fmt.Fprintf(&b, "**Test Date:** %s\n\n", r.Date.Format(time.RFC3339))

	ratio := "N/A (Parquet not yet created)"
	if r.Ratio() > 0 {
		ratio = fmt.Sprintf("%.1f×", r.Ratio())
	}
	b.WriteString("## File Sizes\n\n")
	b.WriteString("| Format | Size (MB) |\n|--------|-----------|\n")
	fmt.Fprintf(&b, "| CSV | %.2f |\n", MB(r.CSVBytes))
	fmt.Fprintf(&b, "| Parquet | %.2f |\n", MB(r.ParquetBytes))
	fmt.Fprintf(&b, "| Compression Ratio | %s |\n\n", ratio)

	fmt.Fprintf(&b, "## Query Performance (median of %d runs)\n\n", Iterations)
	b.WriteString("| Query | CSV (ms) | Parquet (ms) | Speedup |\n")
	b.WriteString("|-------|----------|--------------|---------|\n")
	for _, t := range r.Timings {
		pq, speed := "N/A", "N/A"
		if t.Parquet != nil {
			pq = fmt.Sprintf("%.1f", ms(*t.Parquet))
		}
		if s := t.Speedup(); s > 0 {
			speed = fmt.Sprintf("%.1f×", s)
		}
		fmt.Fprintf(&b, "| %s | %.1f | %s | %s |\n", t.Query, ms(t.CSV), pq, speed)
	}

	b.WriteString(`
## Conclusions

- **Parquet is columnar**: only required columns are read
- **Compression**: the ZSTD codec reduces size significantly
- **DuckDB vectorized execution**: much faster analytics on Parquet
- **Partitioning**: filtering by partition columns prunes whole directories

## Recommendation

Use Parquet + DuckDB for any genomics dataset with >1M rows or >100 MB CSV size.
`)
	return b.String()
}

// WriteMarkdown writes the report to w.
func (r *Result) WriteMarkdown(w io.Writer) error {
	_, err := io.WriteString(w, r.Markdown())
	return err
}
