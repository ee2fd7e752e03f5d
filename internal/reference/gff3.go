package reference

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/inodb/covwatch/internal/textio"
)

// gffFeature represents a parsed GFF3 line.
type gffFeature struct {
	seqID       string
	featureType string
	start       int64
	end         int64
	strand      string
	attributes  map[string]string
}

// LoadGFF3 loads a reference annotation from a GFF3 file. The genome sequence
// comes from the file's ##FASTA section, or from fastaPath when it is set.
func LoadGFF3(gffPath, fastaPath string) (*Annotation, error) {
	f, err := textio.Open(gffPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var seq *Record
	if fastaPath != "" {
		rec, err := LoadFASTA(fastaPath)
		if err != nil {
			return nil, fmt.Errorf("load FASTA: %w", err)
		}
		seq = &rec
	}

	a, err := ParseGFF3(f, seq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", gffPath, err)
	}
	return a, nil
}

// ParseGFF3 builds an Annotation from the CDS rows of a GFF3 stream. Rows
// sharing an ID are the segments of one CDS. If seq is nil the sequence must
// be embedded after a ##FASTA directive.
func ParseGFF3(r io.Reader, seq *Record) (*Annotation, error) {
	reader := bufio.NewReader(r)

	var (
		genes   []*Gene
		byID    = make(map[string]*Gene)
		contig  string
		lineNum int
	)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read GFF3: %w", err)
		}
		if line == "" && err == io.EOF {
			break
		}
		lineNum++
		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "##FASTA") {
			if seq == nil {
				rec, ferr := ParseFASTA(reader)
				if ferr != nil {
					return nil, ferr
				}
				seq = &rec
			}
			break
		}
		if line != "" && !strings.HasPrefix(line, "#") {
			feat, perr := parseGFFLine(line)
			if perr != nil {
				return nil, malformed("line %d: %v", lineNum, perr)
			}
			if contig == "" {
				contig = feat.seqID
			}
			if feat.featureType == "CDS" {
				if feat.strand == "-" {
					return nil, malformed("line %d: reverse-strand CDS is not supported", lineNum)
				}
				name := gffGeneName(feat.attributes)
				if name == "" {
					return nil, malformed("line %d: CDS lacks a gene identifier", lineNum)
				}
				id := feat.attributes["ID"]
				if id == "" {
					id = name
				}
				seg := Segment{Start: feat.start, End: feat.end}
				if g, ok := byID[id]; ok {
					g.Segments = append(g.Segments, seg)
				} else {
					g := &Gene{Name: name, Product: feat.attributes["product"], Segments: []Segment{seg}}
					byID[id] = g
					genes = append(genes, g)
				}
			}
		}

		if err == io.EOF {
			break
		}
	}

	if seq == nil {
		return nil, malformed("genome sequence is absent (no ##FASTA section and no FASTA file)")
	}
	if seq.ID != "" {
		contig = seq.ID
	}
	return New(contig, seq.Sequence, genes)
}

// parseGFFLine parses the nine tab-separated GFF3 columns.
func parseGFFLine(line string) (*gffFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("expected 9 columns, found %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start: %s", fields[3])
	}
	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid end: %s", fields[4])
	}

	return &gffFeature{
		seqID:       fields[0],
		featureType: fields[2],
		start:       start,
		end:         end,
		strand:      fields[6],
		attributes:  parseGFFAttributes(fields[8]),
	}, nil
}

// parseGFFAttributes parses key=value;key=value with percent-encoded values.
func parseGFFAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)
	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(value); err == nil {
			value = unescaped
		}
		attrs[key] = value
	}
	return attrs
}

// gffGeneName picks the gene identifier of a CDS row: gene=, then Name=,
// then the Parent with its "gene-" prefix removed.
func gffGeneName(attrs map[string]string) string {
	if g := attrs["gene"]; g != "" {
		return g
	}
	if n := attrs["Name"]; n != "" {
		return n
	}
	parent, _, _ := strings.Cut(attrs["Parent"], ",")
	return strings.TrimPrefix(parent, "gene-")
}
