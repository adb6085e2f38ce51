package format

import (
	"bufio"
	"io"
	"strings"
)

// EscapeValue quotes a CSV field when it contains a comma or a double quote,
// doubling any embedded quotes.
func EscapeValue(s string) string {
	if !strings.ContainsAny(s, `,"`) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ComposeRow joins escaped fields into one CSV line without a terminator.
func ComposeRow(values ...string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = EscapeValue(v)
	}
	return strings.Join(escaped, ",")
}

// WriteCSV writes the header and rows, one line each. A nil header is
// skipped.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	bw := bufio.NewWriter(w)
	if header != nil {
		if _, err := bw.WriteString(ComposeRow(header...) + "\n"); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if _, err := bw.WriteString(ComposeRow(row...) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// CountingWriter counts the bytes written through it.
type CountingWriter struct {
	W io.Writer
	N int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.N += int64(n)
	return n, err
}
