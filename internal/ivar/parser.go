// Package ivar reads iVar variants.tsv files and summarizes them as
// watchlist descriptors.
package ivar

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/covwatch/internal/textio"
	"github.com/inodb/covwatch/internal/vcf"
)

// iVar variants.tsv column names
const (
	ColRegion     = "REGION"
	ColPos        = "POS"
	ColRef        = "REF"
	ColAlt        = "ALT"
	ColAltFreq    = "ALT_FREQ"
	ColTotalDP    = "TOTAL_DP"
	ColPass       = "PASS"
	ColGFFFeature = "GFF_FEATURE"
	ColRefCodon   = "REF_CODON"
	ColRefAA      = "REF_AA"
	ColAltCodon   = "ALT_CODON"
	ColAltAA      = "ALT_AA"
)

// ColumnIndices holds the indices of the iVar columns in use.
type ColumnIndices struct {
	Region     int
	Pos        int
	Ref        int
	Alt        int
	AltFreq    int
	TotalDP    int
	Pass       int
	GFFFeature int
	RefCodon   int
	RefAA      int
	AltCodon   int
	AltAA      int
}

// Row is one iVar call. Deletions are written "-XYZ" and insertions "+XYZ"
// in Alt, relative to the base at Pos.
type Row struct {
	Region     string
	Pos        int64
	Ref        string
	Alt        string
	AltFreq    float64
	TotalDP    int64
	Pass       bool
	GFFFeature string
	RefCodon   string
	RefAA      string
	AltCodon   string
	AltAA      string
	Line       int
}

// IsDeletion reports whether the row is an iVar deletion call.
func (r *Row) IsDeletion() bool {
	return strings.HasPrefix(r.Alt, "-")
}

// IsInsertion reports whether the row is an iVar insertion call.
func (r *Row) IsInsertion() bool {
	return strings.HasPrefix(r.Alt, "+")
}

// Variant converts the row to VCF allele encoding: the base at Pos becomes
// the anchor of indels.
func (r *Row) Variant() *vcf.Variant {
	v := &vcf.Variant{
		Chrom:  r.Region,
		Pos:    r.Pos,
		ID:     ".",
		Ref:    r.Ref,
		Alt:    r.Alt,
		Filter: "PASS",
		Info:   make(map[string]any),
	}
	switch {
	case r.IsDeletion():
		v.Ref = r.Ref + r.Alt[1:]
		v.Alt = r.Ref
	case r.IsInsertion():
		v.Alt = r.Ref + r.Alt[1:]
	}
	if !r.Pass {
		v.Filter = "FAIL"
	}
	if r.AltFreq > 0 {
		v.Info["AF"] = strconv.FormatFloat(r.AltFreq, 'g', -1, 64)
	}
	if r.TotalDP > 0 {
		v.Info["DP"] = strconv.FormatInt(r.TotalDP, 10)
	}
	return v
}

// Parser reads rows from an iVar variants.tsv file.
type Parser struct {
	src        io.Closer // nil when reading from a caller's io.Reader
	lines      *textio.LineReader
	columns    ColumnIndices
	headerLine string
}

// NewParser opens an iVar file, plain or gzipped, and reads its header.
// A path of "-" reads standard input.
func NewParser(path string) (*Parser, error) {
	rc, err := textio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ivar file: %w", err)
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
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseHeader reads the first non-empty line as the column header.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.lines.Next()
		if err == io.EOF {
			return p.errorf("no header line found")
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if line != "" {
			p.headerLine = line
			return p.parseColumnIndices(line)
		}
	}
}

func (p *Parser) errorf(format string, args ...any) *ParseError {
	return &ParseError{Line: p.lines.LineNumber(), Message: fmt.Sprintf(format, args...)}
}

// parseColumnIndices parses the header line to find column indices.
func (p *Parser) parseColumnIndices(headerLine string) error {
	columns := strings.Split(headerLine, "\t")

	// Initialize all indices to -1 (not found)
	p.columns = ColumnIndices{
		Region:     -1,
		Pos:        -1,
		Ref:        -1,
		Alt:        -1,
		AltFreq:    -1,
		TotalDP:    -1,
		Pass:       -1,
		GFFFeature: -1,
		RefCodon:   -1,
		RefAA:      -1,
		AltCodon:   -1,
		AltAA:      -1,
	}

	for i, col := range columns {
		switch col {
		case ColRegion:
			p.columns.Region = i
		case ColPos:
			p.columns.Pos = i
		case ColRef:
			p.columns.Ref = i
		case ColAlt:
			p.columns.Alt = i
		case ColAltFreq:
			p.columns.AltFreq = i
		case ColTotalDP:
			p.columns.TotalDP = i
		case ColPass:
			p.columns.Pass = i
		case ColGFFFeature:
			p.columns.GFFFeature = i
		case ColRefCodon:
			p.columns.RefCodon = i
		case ColRefAA:
			p.columns.RefAA = i
		case ColAltCodon:
			p.columns.AltCodon = i
		case ColAltAA:
			p.columns.AltAA = i
		}
	}

	for _, req := range []struct {
		name string
		idx  int
	}{
		{ColRegion, p.columns.Region},
		{ColPos, p.columns.Pos},
		{ColRef, p.columns.Ref},
		{ColAlt, p.columns.Alt},
	} {
		if req.idx == -1 {
			return p.errorf("required column '%s' not found in header", req.name)
		}
	}

	return nil
}

// NextRow reads the next iVar row.
// Returns nil, nil when there are no more rows.
func (p *Parser) NextRow() (*Row, error) {
	for {
		line, err := p.lines.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return p.parseLine(line)
	}
}

// Next reads the next row as a VCF-encoded variant, so the parser can be
// used wherever a vcf.VariantParser is expected.
func (p *Parser) Next() (*vcf.Variant, error) {
	row, err := p.NextRow()
	if row == nil || err != nil {
		return nil, err
	}
	return row.Variant(), nil
}

// parseLine parses a single data line into a Row.
func (p *Parser) parseLine(line string) (*Row, error) {
	fields := strings.Split(line, "\t")

	minCols := max(p.columns.Region, p.columns.Pos, p.columns.Ref, p.columns.Alt)
	if len(fields) <= minCols {
		return nil, p.errorf("expected at least %d columns, found %d", minCols+1, len(fields))
	}

	pos, err := strconv.ParseInt(fields[p.columns.Pos], 10, 64)
	if err != nil || pos < 1 {
		return nil, p.errorf("invalid position: %s", fields[p.columns.Pos])
	}

	row := &Row{
		Region: fields[p.columns.Region],
		Pos:    pos,
		Ref:    strings.ToUpper(fields[p.columns.Ref]),
		Alt:    strings.ToUpper(fields[p.columns.Alt]),
		Pass:   true,
		Line:   p.lines.LineNumber(),
	}
	if (row.IsDeletion() || row.IsInsertion()) && len(row.Alt) < 2 {
		return nil, p.errorf("indel allele %q has no bases", row.Alt)
	}

	// iVar writes NA for annotation columns outside a GFF feature.
	get := func(idx int) string {
		if idx >= 0 && idx < len(fields) && fields[idx] != "NA" {
			return fields[idx]
		}
		return ""
	}

	if s := get(p.columns.AltFreq); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 || f > 1 {
			return nil, p.errorf("invalid %s: %s", ColAltFreq, s)
		}
		row.AltFreq = f
	}
	if s := get(p.columns.TotalDP); s != "" {
		dp, err := strconv.ParseInt(s, 10, 64)
		if err != nil || dp < 0 {
			return nil, p.errorf("invalid %s: %s", ColTotalDP, s)
		}
		row.TotalDP = dp
	}
	if s := get(p.columns.Pass); s != "" {
		row.Pass = strings.EqualFold(s, "TRUE")
	}
	row.GFFFeature = get(p.columns.GFFFeature)
	row.RefCodon = get(p.columns.RefCodon)
	row.RefAA = get(p.columns.RefAA)
	row.AltCodon = get(p.columns.AltCodon)
	row.AltAA = get(p.columns.AltAA)

	return row, nil
}

// Header returns the header line.
func (p *Parser) Header() string {
	return p.headerLine
}

// Columns returns the parsed column indices.
func (p *Parser) Columns() ColumnIndices {
	return p.columns
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

// ParseError represents an error during iVar parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ivar parse error at line %d: %s", e.Line, e.Message)
}
