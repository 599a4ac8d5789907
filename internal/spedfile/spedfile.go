// =============================================================================
// SPED Anonymizer - SPED File Codec
// =============================================================================
//
// This module reads and writes SPED EFD text files. A SPED file is a list of
// records, one per line, with fields delimited by '|':
//
//	|0000|006|0|||01012024|31012024|EMPRESA SA|11222333000181|SP|...|
//
// The leading and trailing '|' produce an empty first and last field, so
// fields[1] is always the record code.
//
// ENCODINGS:
//   - "auto"  : each line is taken as UTF-8 when it is valid UTF-8 and
//               decoded as Windows-1252 otherwise. Files produced by the
//               official PVA program are Windows-1252; files that went
//               through other tools are often UTF-8.
//   - any IANA name (e.g. "ISO-8859-1", "WINDOWS-1252", "UTF-8")
//
// The writer encodes to one IANA encoding. Runes the target encoding cannot
// represent are replaced, never rejected.
//
// =============================================================================

package spedfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Delimiter separates record fields.
const Delimiter = "|"

// AutoEncoding selects per-line UTF-8 / Windows-1252 detection.
const AutoEncoding = "auto"

// maxLineSize bounds a single record. Real records stay far below it.
const maxLineSize = 1 << 20

const bom = "\ufeff"

// =============================================================================
// ENCODING LOOKUP
// =============================================================================

// Lookup resolves an IANA encoding name. "auto" and "" resolve to nil.
func Lookup(name string) (encoding.Encoding, error) {
	if name == "" || strings.EqualFold(name, AutoEncoding) {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("encoding %q is not supported", name)
	}
	return enc, nil
}

// =============================================================================
// READER
// =============================================================================

// Reader streams the lines of a SPED file as UTF-8 strings.
type Reader struct {
	scanner *bufio.Scanner
	decoder *encoding.Decoder
	legacy  *encoding.Decoder
	line    string
	number  int
	err     error
}

// NewReader wraps r. encodingName is "auto" or an IANA name.
func NewReader(r io.Reader, encodingName string) (*Reader, error) {
	enc, err := Lookup(encodingName)
	if err != nil {
		return nil, err
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	rd := &Reader{scanner: sc}
	if enc == nil {
		rd.legacy = charmap.Windows1252.NewDecoder()
	} else {
		rd.decoder = enc.NewDecoder()
	}
	return rd, nil
}

// Next advances to the next line. It returns false at end of input or on
// error; check Err afterwards.
func (r *Reader) Next() bool {
	if r.err != nil || !r.scanner.Scan() {
		return false
	}

	raw := strings.TrimRight(r.scanner.Text(), "\r")
	line, err := r.decode(raw)
	if err != nil {
		r.err = fmt.Errorf("line %d: %w", r.number+1, err)
		return false
	}

	r.number++
	if r.number == 1 {
		line = strings.TrimPrefix(line, bom)
	}
	r.line = line
	return true
}

func (r *Reader) decode(raw string) (string, error) {
	if r.decoder != nil {
		return r.decoder.String(raw)
	}
	if utf8.ValidString(raw) {
		return raw, nil
	}
	return r.legacy.String(raw)
}

// Line returns the current line without its terminator.
func (r *Reader) Line() string { return r.line }

// Fields returns the current line split on '|'.
func (r *Reader) Fields() []string { return Split(r.line) }

// LineNumber is the 1-based number of the current line.
func (r *Reader) LineNumber() int { return r.number }

// Err returns the first read or decode error.
func (r *Reader) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.scanner.Err()
}

// =============================================================================
// WRITER
// =============================================================================

// Writer encodes records and terminates each with '\n'.
type Writer struct {
	buf   *bufio.Writer
	enc   io.WriteCloser
	lines int
}

// NewWriter wraps w. encodingName must be an IANA name; "auto" writes UTF-8.
// Close must be called to flush; it does not close w.
func NewWriter(w io.Writer, encodingName string) (*Writer, error) {
	enc, err := Lookup(encodingName)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		enc = encoding.Nop
	}

	tw := transform.NewWriter(w, encoding.ReplaceUnsupported(enc.NewEncoder()))
	return &Writer{buf: bufio.NewWriter(tw), enc: tw}, nil
}

// WriteLine writes one line.
func (w *Writer) WriteLine(line string) error {
	if _, err := w.buf.WriteString(line); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	return nil
}

// WriteFields joins fields with '|' and writes them as one line.
func (w *Writer) WriteFields(fields []string) error {
	return w.WriteLine(Join(fields))
}

// Lines is the number of lines written so far.
func (w *Writer) Lines() int { return w.lines }

// Close flushes buffered output through the encoder.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("failed to flush encoder: %w", err)
	}
	return nil
}

// =============================================================================
// FIELD HELPERS
// =============================================================================

// Split splits a record line into fields.
func Split(line string) []string { return strings.Split(line, Delimiter) }

// Join is the inverse of Split.
func Join(fields []string) string { return strings.Join(fields, Delimiter) }

// RecordCode returns fields[1], or "" for a line with no code.
func RecordCode(line string) string {
	fields := strings.SplitN(line, Delimiter, 3)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
