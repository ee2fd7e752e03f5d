// Package reference loads the reference genome and its coding sequences.
package reference

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedAnnotation is wrapped by every error returned while loading or
// validating a reference annotation.
var ErrMalformedAnnotation = errors.New("malformed annotation")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedAnnotation, fmt.Sprintf(format, args...))
}

// Annotation is an immutable reference genome with its coding sequences.
// It is safe for concurrent reads.
type Annotation struct {
	contig   string
	sequence string
	genes    map[string]*Gene
	order    []*Gene
	index    *GeneIndex
}

// New validates the given genes against the sequence and builds an Annotation.
//
// Gene names are lower-cased. A name may appear more than once only when one
// feature nests inside the other (the orf1a polyprotein inside orf1ab); the
// feature with the longer coding sequence is kept.
func New(contig, sequence string, genes []*Gene) (*Annotation, error) {
	if contig == "" {
		return nil, malformed("missing contig identifier")
	}
	seq, err := normalizeSequence(sequence)
	if err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, malformed("genome sequence for %s is absent", contig)
	}

	a := &Annotation{
		contig:   contig,
		sequence: seq,
		genes:    make(map[string]*Gene, len(genes)),
	}

	for _, g := range genes {
		name := strings.ToLower(strings.TrimSpace(g.Name))
		if name == "" {
			return nil, malformed("coding feature without a gene identifier")
		}
		if len(g.Segments) == 0 {
			return nil, malformed("gene %s has no coding interval", name)
		}
		for _, s := range g.Segments {
			if s.Start < 1 || s.Start > s.End || s.End > int64(len(seq)) {
				return nil, malformed("gene %s interval %d..%d outside genome of length %d",
					name, s.Start, s.End, len(seq))
			}
		}
		if g.CodingLength()%3 != 0 {
			return nil, malformed("gene %s coding length %d is not a multiple of 3", name, g.CodingLength())
		}

		gene := &Gene{Name: name, Product: g.Product, Segments: append([]Segment(nil), g.Segments...)}

		prev, dup := a.genes[name]
		if !dup {
			a.genes[name] = gene
			a.order = append(a.order, gene)
			continue
		}
		if !prev.nests(gene) && !gene.nests(prev) {
			return nil, malformed("conflicting intervals for gene %s: %d..%d and %d..%d",
				name, prev.Start(), prev.End(), gene.Start(), gene.End())
		}
		if gene.CodingLength() > prev.CodingLength() {
			*prev = *gene
		}
	}

	a.index = BuildGeneIndex(a.order)
	return a, nil
}

// normalizeSequence upper-cases the sequence and rejects anything that is not
// a nucleotide or IUPAC ambiguity letter.
func normalizeSequence(seq string) (string, error) {
	seq = strings.ToUpper(seq)
	for i := 0; i < len(seq); i++ {
		switch seq[i] {
		case 'A', 'C', 'G', 'T', 'N', 'R', 'Y', 'S', 'W', 'K', 'M', 'B', 'D', 'H', 'V':
		default:
			return "", malformed("invalid base %q at sequence position %d", seq[i], i+1)
		}
	}
	return seq, nil
}

// Contig returns the accession used as the contig of every output record.
func (a *Annotation) Contig() string {
	return a.contig
}

// Sequence returns the full genome sequence.
func (a *Annotation) Sequence() string {
	return a.sequence
}

// Len returns the genome length.
func (a *Annotation) Len() int64 {
	return int64(len(a.sequence))
}

// Base returns the base at a 1-based position, or 0 if out of range.
func (a *Annotation) Base(pos int64) byte {
	if pos < 1 || pos > int64(len(a.sequence)) {
		return 0
	}
	return a.sequence[pos-1]
}

// Slice returns the bases from start to end inclusive (1-based).
func (a *Annotation) Slice(start, end int64) (string, bool) {
	if start < 1 || end < start || end > int64(len(a.sequence)) {
		return "", false
	}
	return a.sequence[start-1 : end], true
}

// Gene looks a gene up by name, ignoring case.
func (a *Annotation) Gene(name string) (*Gene, bool) {
	g, ok := a.genes[strings.ToLower(name)]
	return g, ok
}

// Genes returns the genes in annotation order.
func (a *Annotation) Genes() []*Gene {
	return a.order
}

// GeneNames returns the gene names in annotation order.
func (a *Annotation) GeneNames() []string {
	names := make([]string, len(a.order))
	for i, g := range a.order {
		names[i] = g.Name
	}
	return names
}

// GenesAt returns the genes with a coding segment covering pos, in
// annotation order.
func (a *Annotation) GenesAt(pos int64) []*Gene {
	return a.index.FindOverlaps(pos)
}
