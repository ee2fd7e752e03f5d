// Package textio opens the line-oriented files covwatch reads (GenBank,
// GFF3, FASTA, VCF, iVar TSV), plain or gzip-compressed.
package textio

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// gzipMagic is the two-byte header of a gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// Open opens path for reading, with "-" meaning standard input. Compression
// is detected from the magic bytes, not the file name, so bgzipped VCFs and
// renamed downloads both work.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return Decompress(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	rc, err := Decompress(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rc, nil
}

// Decompress wraps r in a gzip reader when r starts with the gzip magic.
// Closing the result closes r if it is an io.Closer.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read: %w", err)
	}

	src := &source{Reader: br, under: r}
	if len(head) == 2 && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		src.Reader, src.gz = gz, gz
	}
	return src, nil
}

type source struct {
	io.Reader
	gz    *gzip.Reader
	under io.Reader
}

func (s *source) Close() error {
	if s.gz != nil {
		s.gz.Close()
	}
	if s.under == os.Stdin {
		return nil
	}
	if c, ok := s.under.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// LineReader reads lines without their terminators and counts them,
// blank lines included, so parse errors can name the line.
type LineReader struct {
	r    *bufio.Reader
	line int
}

// NewLineReader creates a line reader over r.
func NewLineReader(r io.Reader) *LineReader {
	if br, ok := r.(*bufio.Reader); ok {
		return &LineReader{r: br}
	}
	return &LineReader{r: bufio.NewReader(r)}
}

// Next returns the next line with "\n" or "\r\n" stripped. A final line
// without a terminator is returned normally; io.EOF follows it.
func (l *LineReader) Next() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	l.line++
	return strings.TrimRight(line, "\r\n"), nil
}

// LineNumber returns the number of the line last returned by Next.
func (l *LineReader) LineNumber() int {
	return l.line
}
