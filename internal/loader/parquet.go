package loader

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"genoetl/internal/schema"
	"genoetl/internal/transformer/builtin"
	"genoetl/pkg/records"
)

// Codec maps a configured compression name to a parquet codec. The empty
// name is zstd.
func Codec(name string) (compress.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "zstd":
		return compress.Codecs.Zstd, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	}
	return compress.Codecs.Uncompressed, fmt.Errorf("loader: unknown compression %q", name)
}

func arrowType(k schema.Kind) arrow.DataType {
	switch k {
	case schema.KindInt:
		return arrow.PrimitiveTypes.Int64
	case schema.KindFloat:
		return arrow.PrimitiveTypes.Float64
	case schema.KindDate:
		return arrow.FixedWidthTypes.Date32
	case schema.KindBool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

// arrowSchema derives the file schema of t from its contract. Every column is
// nullable.
func arrowSchema(t *records.Table, c schema.Contract) (*arrow.Schema, []schema.Kind) {
	fields := make([]arrow.Field, len(t.Columns))
	kinds := make([]schema.Kind, len(t.Columns))
	for i, col := range t.Columns {
		kinds[i] = c.KindOf(col)
		fields[i] = arrow.Field{Name: col, Type: arrowType(kinds[i]), Nullable: true}
	}
	return arrow.NewSchema(fields, nil), kinds
}

// appendCell writes v to b. Values that do not fit the column kind are
// written as null.
func appendCell(b array.Builder, k schema.Kind, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch k {
	case schema.KindInt:
		if n, ok := builtin.ParseInt(v); ok {
			b.(*array.Int64Builder).Append(n)
			return
		}
	case schema.KindFloat:
		if f, ok := builtin.ParseFloat(v); ok {
			b.(*array.Float64Builder).Append(f)
			return
		}
	case schema.KindDate:
		if d, ok := builtin.ParseDate(v); ok {
			b.(*array.Date32Builder).Append(arrow.Date32FromTime(d))
			return
		}
	case schema.KindBool:
		if f, ok := v.(bool); ok {
			b.(*array.BooleanBuilder).Append(f)
		} else {
			b.(*array.BooleanBuilder).Append(builtin.ParseFlag(v))
		}
		return
	default:
		b.(*array.StringBuilder).Append(text(v))
		return
	}
	b.AppendNull()
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprint(t)
	}
}

// writeParquet writes t as a single-row-group parquet file and returns the
// size of the written file.
func writeParquet(path string, t *records.Table, c schema.Contract, codec compress.Compression) (int64, error) {
	sc, kinds := arrowSchema(t, c)

	b := array.NewRecordBuilder(memory.DefaultAllocator, sc)
	defer b.Release()
	for _, row := range t.Rows {
		for i := range t.Columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			appendCell(b.Field(i), kinds[i], v)
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("loader: create %s: %w", path, err)
	}
	props := parquet.NewWriterProperties(parquet.WithCompression(codec))
	w, err := pqarrow.NewFileWriter(sc, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("loader: writer %s: %w", path, err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return 0, fmt.Errorf("loader: write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("loader: close %s: %w", path, err)
	}
	// the parquet writer closes its sink; a second close is harmless
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return 0, fmt.Errorf("loader: close %s: %w", path, err)
	}
	st, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("loader: stat %s: %w", path, err)
	}
	return st.Size(), nil
}
