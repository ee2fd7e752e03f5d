package vcf

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/covwatch/internal/textio"
)

// Fixed VCF columns.
const (
	colChrom = iota
	colPos
	colID
	colRef
	colAlt
	colQual
	colFilter
	colInfo
	numFixedCols
)

// Parser reads variants from a VCF file.
type Parser struct {
	src     io.Closer // nil when reading from a caller's io.Reader
	lines   *textio.LineReader
	header  []string
	contigs []string // IDs from ##contig header lines
}

// NewParser opens a VCF file, plain or gzipped, and reads its header.
// A path of "-" reads standard input.
func NewParser(path string) (*Parser, error) {
	rc, err := textio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf: %w", err)
	}
	p, err := newParser(rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	p.src = rc
	return p, nil
}

// NewParserFromReader creates a parser over an uncompressed stream.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	return newParser(r)
}

func newParser(r io.Reader) (*Parser, error) {
	p := &Parser{lines: textio.NewLineReader(r)}
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// readHeader consumes the ## meta lines and the #CHROM line.
func (p *Parser) readHeader() error {
	for {
		line, err := p.lines.Next()
		if err == io.EOF {
			return &ParseError{Line: p.lines.LineNumber(), Message: "no #CHROM header line found"}
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		switch {
		case strings.HasPrefix(line, "##"):
			p.header = append(p.header, line)
			if id, ok := contigID(line); ok {
				p.contigs = append(p.contigs, id)
			}
		case strings.HasPrefix(line, "#CHROM"):
			p.header = append(p.header, line)
			return nil
		default:
			return &ParseError{Line: p.lines.LineNumber(), Message: "expected #CHROM header line"}
		}
	}
}

// contigID extracts ID from a ##contig=<ID=...,length=...> line.
func contigID(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "##contig=<")
	if !ok {
		return "", false
	}
	rest = strings.TrimSuffix(rest, ">")
	for _, kv := range strings.Split(rest, ",") {
		if id, ok := strings.CutPrefix(kv, "ID="); ok {
			return id, true
		}
	}
	return "", false
}

// Next reads the next variant from the VCF file.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, err := p.lines.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if line != "" {
			return p.parseRecord(line)
		}
	}
}

func (p *Parser) parseRecord(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < numFixedCols {
		return nil, p.errorf("expected at least %d columns, found %d", numFixedCols, len(fields))
	}

	pos, err := strconv.ParseInt(fields[colPos], 10, 64)
	if err != nil || pos < 1 {
		return nil, p.errorf("invalid position: %s", fields[colPos])
	}

	var qual float64
	if q := fields[colQual]; q != "." {
		if qual, err = strconv.ParseFloat(q, 64); err != nil {
			return nil, p.errorf("invalid QUAL: %s", q)
		}
	}

	// Watchlists in the wild mix case; descriptors compare upper case.
	return &Variant{
		Chrom:  fields[colChrom],
		Pos:    pos,
		ID:     fields[colID],
		Ref:    strings.ToUpper(fields[colRef]),
		Alt:    strings.ToUpper(fields[colAlt]),
		Qual:   qual,
		Filter: fields[colFilter],
		Info:   parseInfo(fields[colInfo]),
	}, nil
}

func (p *Parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{Line: p.lines.LineNumber(), Message: fmt.Sprintf(format, args...)}
}

// parseInfo splits the INFO column into key=value pairs. Flags map to true.
func parseInfo(info string) map[string]any {
	result := make(map[string]any)
	if info == "." || info == "" {
		return result
	}
	for _, kv := range strings.Split(info, ";") {
		if key, value, ok := strings.Cut(kv, "="); ok {
			result[key] = value
		} else {
			result[key] = true
		}
	}
	return result
}

// SplitMultiAllelic returns one variant per ALT allele. The copies share
// the INFO map, which callers treat as read-only.
func SplitMultiAllelic(v *Variant) []*Variant {
	alts := strings.Split(v.Alt, ",")
	if len(alts) == 1 {
		return []*Variant{v}
	}
	out := make([]*Variant, len(alts))
	for i, alt := range alts {
		c := *v
		c.Alt = alt
		out[i] = &c
	}
	return out
}

// Header returns the VCF header lines.
func (p *Parser) Header() []string {
	return p.header
}

// Contigs returns the contig IDs declared in the header.
func (p *Parser) Contigs() []string {
	return p.contigs
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lines.LineNumber()
}

// Close releases the underlying file, if the parser opened one.
func (p *Parser) Close() error {
	if p.src != nil {
		return p.src.Close()
	}
	return nil
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
