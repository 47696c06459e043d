package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// candidates are the delimiters considered by DetectSeparator, in tie-break
// order.
var candidates = []rune{',', '\t', ';'}

// DetectSeparator reads the first line of path, decoded with the named
// encoding, and returns the most frequent candidate delimiter. Equal counts
// resolve to the earliest candidate, so a line without any delimiter yields
// a comma.
func DetectSeparator(path, enc string) (rune, error) {
	rc, err := openDecoded(path, enc)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	line, err := firstLine(rc)
	if err != nil {
		return 0, fmt.Errorf("ingest: detect separator %s: %w", path, err)
	}
	return pickSeparator(line), nil
}

func pickSeparator(line string) rune {
	best, bestN := candidates[0], -1
	for _, c := range candidates {
		if n := strings.Count(line, string(c)); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

func firstLine(r io.Reader) (string, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// openDecoded opens path and returns a reader producing UTF-8 text. A
// leading byte-order mark is consumed. Bytes that are invalid for the
// encoding surface as read errors instead of being replaced.
func openDecoded(path, enc string) (io.ReadCloser, error) {
	t, err := decoderFor(enc)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	return struct {
		io.Reader
		io.Closer
	}{transform.NewReader(f, unicode.BOMOverride(t)), f}, nil
}

func decoderFor(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return encoding.UTF8Validator, nil
	}
	e, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("ingest: unknown encoding %q: %w", name, err)
	}
	return e.NewDecoder(), nil
}
