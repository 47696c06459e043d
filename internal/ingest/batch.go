package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrUnsupportedFile is returned by CheckFile for extensions the ingestor
// does not read.
var ErrUnsupportedFile = errors.New("ingest: unsupported file type")

var allowedExt = map[string]struct{}{".csv": {}, ".tsv": {}, ".txt": {}}

// CheckFile reports whether path looks like a readable delimited file: a
// known extension and a non-empty header line valid in the encoding.
func CheckFile(path, enc string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := allowedExt[ext]; !ok {
		return fmt.Errorf("%w: %q (expected .csv, .tsv or .txt)", ErrUnsupportedFile, ext)
	}
	rc, err := openDecoded(path, enc)
	if err != nil {
		return err
	}
	defer rc.Close()
	line, err := firstLine(rc)
	if err != nil {
		return fmt.Errorf("ingest: read header %s: %w", path, err)
	}
	if strings.TrimSpace(line) == "" {
		return fmt.Errorf("ingest: %s: empty header", path)
	}
	return nil
}

// FileResult is the outcome of one file in a batch.
type FileResult struct {
	File        string         `json:"file"`
	Path        string         `json:"path,omitempty"`
	Status      string         `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	Rows        int            `json:"rows"`
	Columns     int            `json:"columns"`
	ColumnNames []string       `json:"column_names,omitempty"`
	NullCounts  map[string]int `json:"null_counts,omitempty"`
	Size        string         `json:"size,omitempty"`
}

// BatchResult summarises a Batch call.
type BatchResult struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"successful"`
	Failed    int          `json:"failed"`
	Files     []FileResult `json:"files"`
}

// Batch copies every acceptable file in paths into targetDir and ingests the
// copy. Individual failures are recorded per file and never stop the batch;
// only an unusable targetDir is returned as an error.
func Batch(ctx context.Context, paths []string, targetDir string, opts Options) (BatchResult, error) {
	res := BatchResult{Total: len(paths)}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return res, fmt.Errorf("ingest: create %s: %w", targetDir, err)
	}
	log := opts.logger()

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		fr := FileResult{File: filepath.Base(p)}
		dst, err := processOne(ctx, p, targetDir, opts, &fr)
		if err != nil {
			log.WithFields(logrus.Fields{"file": p, "error": err}).Warn("upload rejected")
			fr.Status, fr.Reason = "failed", err.Error()
			res.Failed++
		} else {
			fr.Status, fr.Path = "success", dst
			res.Succeeded++
		}
		res.Files = append(res.Files, fr)
	}
	return res, nil
}

func processOne(ctx context.Context, src, targetDir string, opts Options, fr *FileResult) (string, error) {
	if err := CheckFile(src, opts.Encoding); err != nil {
		return "", err
	}
	dst := filepath.Join(targetDir, filepath.Base(src))
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	st, err := Stats(ctx, dst, opts)
	if err != nil {
		return "", err
	}
	fr.Rows = st.Rows
	fr.ColumnNames = st.ColumnNames
	fr.Columns = st.Columns
	fr.NullCounts = st.NullCounts
	fr.Size = st.Size
	return dst, nil
}

func copyFile(src, dst string) error {
	sa, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	da, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	if sa == da {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("ingest: open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("ingest: create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("ingest: copy %s: %w", src, err)
	}
	return out.Close()
}
