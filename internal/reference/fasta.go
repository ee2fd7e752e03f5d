package reference

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/inodb/covwatch/internal/textio"
)

// Record is a single FASTA record.
type Record struct {
	ID       string // first whitespace-delimited token of the header
	Sequence string
}

// ParseFASTA reads the first record of a FASTA stream. The reference genome is
// a single contig, so any further records are ignored.
func ParseFASTA(r io.Reader) (Record, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var rec Record
	var seq strings.Builder
	inRecord := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			if inRecord {
				break
			}
			inRecord = true
			header := strings.TrimPrefix(line, ">")
			if fields := strings.Fields(header); len(fields) > 0 {
				rec.ID = fields[0]
			}
			continue
		}
		if !inRecord {
			return Record{}, malformed("sequence data before FASTA header")
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("scan FASTA: %w", err)
	}
	if !inRecord {
		return Record{}, malformed("no FASTA record found")
	}

	rec.Sequence = seq.String()
	return rec, nil
}

// LoadFASTA reads the first record of a FASTA file (optionally gzipped).
func LoadFASTA(path string) (Record, error) {
	f, err := textio.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()

	rec, err := ParseFASTA(f)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}
