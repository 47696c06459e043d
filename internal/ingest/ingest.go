// Package ingest reads the pipeline's delimited input files into
// records.Table values.
//
// Every cell is kept as the string that was read; typed interpretation is
// left to the transformer. Column names are lower-cased and trimmed, and
// three audit columns (ingested_at, source_file, row_hash) are appended to
// each table.
package ingest

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"genoetl/internal/schema"
	"genoetl/pkg/records"
)

// TimestampLayout formats the ingested_at audit column.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Options tunes ingestion. The zero value detects the separator, reads
// UTF-8 and logs through the logrus standard logger.
type Options struct {
	// Separator overrides detection when non-zero.
	Separator rune
	// Encoding names the input encoding (e.g. "utf-8", "latin1").
	Encoding string
	// Now supplies the ingestion timestamp; defaults to time.Now.
	Now func() time.Time
	// Logger receives progress and warnings.
	Logger logrus.FieldLogger
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// File reads one delimited file into a table called name.
func File(ctx context.Context, path, name string, opts Options) (*records.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sep := opts.Separator
	if sep == 0 {
		var err error
		if sep, err = DetectSeparator(path, opts.Encoding); err != nil {
			return nil, err
		}
	}
	log := opts.logger().WithFields(logrus.Fields{"table": name, "file": path})
	log.WithField("separator", fmt.Sprintf("%q", sep)).Info("ingesting")

	rc, err := openDecoded(path, opts.Encoding)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	t, err := readTable(rc, name, sep)
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: %w", path, err)
	}
	addAudit(t, opts.now().Format(TimestampLayout), filepath.Base(path))

	log.WithField("rows", t.Len()).Info("ingested")
	return t, nil
}

func readTable(r io.Reader, name string, sep rune) (*records.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("read header: empty file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := records.New(name, normalizeHeaders(header)...)

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(rec) > len(t.Columns) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, len(t.Columns), len(rec))
		}
		row := make(records.Row, len(t.Columns))
		for i, v := range rec {
			row[i] = emptyToNil(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// normalizeHeaders lower-cases and trims every column name.
func normalizeHeaders(h []string) []string {
	out := make([]string, len(h))
	for i, c := range h {
		out[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return out
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// addAudit appends the audit columns in place; t is freshly built by the
// caller and not yet shared.
func addAudit(t *records.Table, ingestedAt, source string) {
	dataCols := len(t.Columns)
	t.Columns = append(t.Columns, schema.AuditColumns...)
	for i, r := range t.Rows {
		t.Rows[i] = append(r, ingestedAt, source, RowHash(t.Columns[:dataCols], r[:dataCols]))
	}
}

// RowHash returns the hex xxh3-128 digest of a row's data cells rendered as
// "name=value" lines. Missing cells render as "name=".
func RowHash(cols []string, row records.Row) string {
	var b strings.Builder
	for i, c := range cols {
		b.WriteString(c)
		b.WriteByte('=')
		if i < len(row) && row[i] != nil {
			fmt.Fprint(&b, row[i])
		}
		b.WriteByte('\n')
	}
	sum := xxh3.HashString128(b.String()).Bytes()
	return hex.EncodeToString(sum[:])
}

// All ingests the three fixed input files found in dir. Missing files are
// logged and left out of the result; a file that exists but cannot be read
// is an error.
func All(ctx context.Context, dir string, opts Options) (map[string]*records.Table, error) {
	out := make(map[string]*records.Table, 3)
	for _, c := range schema.Contracts() {
		path := filepath.Join(dir, c.File)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				opts.logger().WithField("file", path).Warn("input file not found")
				continue
			}
			return nil, fmt.Errorf("ingest: stat %s: %w", path, err)
		}
		t, err := File(ctx, path, c.Name, opts)
		if err != nil {
			return nil, err
		}
		out[c.Name] = t
	}
	return out, nil
}
