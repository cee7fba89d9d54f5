package csvio

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Writer emits CSV rows, either by re-encoding a field slice under the
// configured dialect or by passing a row's raw bytes through verbatim.
type Writer struct {
	w       *bufio.Writer
	dialect Dialect
}

// NewWriter wraps w for row-at-a-time writing under dialect.
func NewWriter(w io.Writer, dialect Dialect) *Writer {
	return &Writer{w: bufio.NewWriter(w), dialect: dialect}
}

// WriteRaw emits b exactly as given, with no re-encoding. Used to pass an
// unchanged input row through to the output byte for byte.
func (w *Writer) WriteRaw(b []byte) error {
	_, err := w.w.Write(b)
	return err
}

// Write implements io.Writer by emitting p verbatim, so a Writer can
// double as the destination for free-form text such as a conflict block.
func (w *Writer) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

// WriteRow re-encodes fields under the writer's dialect and terminates the
// row with the configured line terminator.
func (w *Writer) WriteRow(fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.w.WriteByte(w.dialect.Delimiter); err != nil {
				return err
			}
		}
		if err := w.writeField(field); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(w.dialect.Term.Bytes()); err != nil {
		return err
	}
	return nil
}

func (w *Writer) writeField(field string) error {
	if !w.needsQuote(field) {
		_, err := w.w.WriteString(field)
		return err
	}
	var b strings.Builder
	b.WriteByte(w.dialect.Quote)
	for i := 0; i < len(field); i++ {
		c := field[i]
		if c == w.dialect.Quote {
			b.WriteByte(w.dialect.Quote)
		}
		b.WriteByte(c)
	}
	b.WriteByte(w.dialect.Quote)
	_, err := w.w.WriteString(b.String())
	return err
}

func (w *Writer) needsQuote(field string) bool {
	switch w.dialect.Quoting {
	case QuoteAll:
		return true
	case QuoteNone:
		return false
	case QuoteNonNumeric:
		if _, err := strconv.ParseFloat(field, 64); err == nil {
			return false
		}
		return true
	default: // QuoteMinimal
		return strings.ContainsAny(field, string(w.dialect.Delimiter)+string(w.dialect.Quote)+"\r\n")
	}
}

// Flush flushes any buffered output to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
