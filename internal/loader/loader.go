// Package loader writes the transformed tables as a star schema: the sample
// dimension plus the run and QC fact tables, each enriched with project_id.
package loader

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/sirupsen/logrus"

	"genoetl/internal/schema"
	"genoetl/pkg/records"
)

// Artifact file names inside the output directory.
const (
	DimSamples    = "dim_samples"
	FactRuns      = "fact_runs"
	FactQCMetrics = "fact_qc_metrics"

	// HiveDefault names the partition of rows whose partition value is missing.
	HiveDefault = "__HIVE_DEFAULT_PARTITION__"
	partFile    = "part-00000.parquet"
)

// Options controls how artifacts are written.
type Options struct {
	// Compression is the parquet codec name; empty means zstd.
	Compression string
	// PartitionCols splits the fact tables into hive-style directories.
	PartitionCols []string
	Logger        logrus.FieldLogger
}

// Artifact describes one written output.
type Artifact struct {
	Table string `json:"table"`
	// Path is a file, or the dataset directory when partitioned.
	Path       string `json:"path"`
	Rows       int    `json:"rows"`
	Bytes      int64  `json:"bytes"`
	Partitions int    `json:"partitions,omitempty"`
}

// Written lists the artifacts of one load in write order.
type Written []Artifact

// Rows returns the rows written for the named artifact table.
func (w Written) Rows(table string) int {
	for _, a := range w {
		if a.Table == table {
			return a.Rows
		}
	}
	return 0
}

// Load enriches and writes the three tables under outDir. The samples, runs
// and qc_metrics tables must all be present.
func Load(ctx context.Context, tables map[string]*records.Table, outDir string, opts Options) (Written, error) {
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	for _, name := range []string{schema.TableSamples, schema.TableRuns, schema.TableQCMetrics} {
		if tables[name] == nil {
			return nil, fmt.Errorf("loader: table %s not provided", name)
		}
	}
	codec, err := Codec(opts.Compression)
	if err != nil {
		return nil, err
	}

	samples := tables[schema.TableSamples]
	runs := leftJoin(tables[schema.TableRuns], samples, "sample_id", "project_id")
	qc := leftJoin(tables[schema.TableQCMetrics], runs, "run_id", "project_id")

	for _, t := range []*records.Table{runs, qc} {
		for _, col := range opts.PartitionCols {
			if !t.Has(col) {
				return nil, fmt.Errorf("loader: partition column %q not in %s", col, t.Name)
			}
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("loader: mkdir %s: %w", outDir, err)
	}

	jobs := []struct {
		name     string
		table    *records.Table
		contract schema.Contract
		parts    []string
	}{
		{DimSamples, samples, schema.Samples, nil},
		{FactRuns, runs, schema.Runs, opts.PartitionCols},
		{FactQCMetrics, qc, schema.QCMetrics, opts.PartitionCols},
	}

	var written Written
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		a, err := writeArtifact(outDir, j.name, j.table, j.contract, j.parts, codec)
		if err != nil {
			return written, err
		}
		log.WithFields(logrus.Fields{"table": j.name, "rows": a.Rows, "path": a.Path}).Info("wrote artifact")
		written = append(written, a)
	}
	return written, nil
}

func writeArtifact(outDir, name string, t *records.Table, c schema.Contract, parts []string, codec compress.Compression) (Artifact, error) {
	file := filepath.Join(outDir, name+".parquet")
	dir := filepath.Join(outDir, name)
	for _, p := range []string{file, dir} {
		if err := os.RemoveAll(p); err != nil {
			return Artifact{}, fmt.Errorf("loader: replace %s: %w", p, err)
		}
	}
	a := Artifact{Table: name, Rows: t.Len()}
	if len(parts) == 0 {
		n, err := writeParquet(file, t, c, codec)
		if err != nil {
			return Artifact{}, err
		}
		a.Path, a.Bytes = file, n
		return a, nil
	}

	a.Path = dir
	for _, g := range partition(t, parts) {
		sub := filepath.Join(append([]string{dir}, g.dirs...)...)
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return Artifact{}, fmt.Errorf("loader: mkdir %s: %w", sub, err)
		}
		n, err := writeParquet(filepath.Join(sub, partFile), t.Select(g.rows).Without(parts...), c, codec)
		if err != nil {
			return Artifact{}, err
		}
		a.Bytes += n
		a.Partitions++
	}
	return a, nil
}

type group struct {
	dirs []string
	rows []int
}

// partition groups row indexes by their partition values, in order of first
// appearance.
func partition(t *records.Table, cols []string) []group {
	var (
		out   []group
		index = make(map[string]int)
	)
	for i := range t.Rows {
		dirs := make([]string, len(cols))
		for j, col := range cols {
			v := HiveDefault
			if c := t.Value(i, col); c != nil {
				v = url.PathEscape(text(c))
			}
			dirs[j] = col + "=" + v
		}
		key := filepath.Join(dirs...)
		n, ok := index[key]
		if !ok {
			n = len(out)
			index[key] = n
			out = append(out, group{dirs: dirs})
		}
		out[n].rows = append(out[n].rows, i)
	}
	return out
}
