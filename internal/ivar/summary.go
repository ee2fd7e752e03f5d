package ivar

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/covwatch/internal/translate"
)

// Options filters rows before they are described.
type Options struct {
	PassOnly bool    // drop rows whose PASS column is FALSE
	MinFreq  float64 // drop rows with ALT_FREQ below this
}

// Call is a described iVar row.
type Call struct {
	Isolate  string
	Row      *Row
	Mutation string
}

// Isolate groups the mutations found in one variants.tsv file.
type Isolate struct {
	Name      string
	Mutations []string
	Calls     []Call
	Skipped   int
}

// Summarizer describes iVar rows against a reference.
type Summarizer struct {
	tr     *translate.Translator
	opts   Options
	logger *zap.Logger
}

// NewSummarizer creates a summarizer using tr for reference lookups.
func NewSummarizer(tr *translate.Translator, opts Options) *Summarizer {
	return &Summarizer{tr: tr, opts: opts, logger: zap.NewNop()}
}

// SetLogger sets the logger for warning and info messages.
func (s *Summarizer) SetLogger(l *zap.Logger) {
	s.logger = l
}

// Describe turns one row into a descriptor. Deletions become
// del:<first deleted base>:<length>; substitutions use iVar's REF_AA/ALT_AA
// when present to decide between aa: and snp: forms, with gene and codon
// taken from the reference.
func (s *Summarizer) Describe(row *Row) (string, error) {
	d, err := s.tr.Describe(row.Variant())
	if err != nil {
		return "", err
	}
	if d.Kind == translate.KindDeletion || row.RefAA == "" || row.AltAA == "" {
		return d.String(), nil
	}

	refAA, altAA := row.RefAA[0], row.AltAA[0]
	switch {
	case d.Kind == translate.KindAminoAcid && refAA == altAA:
		snp := translate.Descriptor{Kind: translate.KindSNP, Gene: d.Gene, Position: row.Pos, RefNT: row.Ref[0], AltNT: row.Alt[0]}
		return snp.String(), nil
	case d.Kind == translate.KindAminoAcid:
		d.RefAA, d.AltAA = refAA, altAA
	case d.Gene != translate.NonCoding && refAA != altAA && translate.IsAminoAcid(refAA) && translate.IsAminoAcid(altAA):
		// iVar calls a residue change the genome codon does not show, as
		// happens when the sample has a second change in the same codon.
		codon, cerr := s.codonAt(d.Gene, row.Pos)
		if cerr != nil {
			return d.String(), nil
		}
		d = translate.Descriptor{Kind: translate.KindAminoAcid, Gene: d.Gene, Position: codon, RefAA: refAA, AltAA: altAA}
	}
	return d.String(), nil
}

func (s *Summarizer) codonAt(gene string, pos int64) (int64, error) {
	g, ok := s.tr.Reference().Gene(gene)
	if !ok {
		return 0, translate.ErrUnknownGene
	}
	cds := g.GenomicToCDS(pos)
	if cds == 0 {
		return 0, translate.ErrPositionOutOfRange
	}
	return (cds-1)/3 + 1, nil
}

func (s *Summarizer) keep(row *Row) bool {
	if s.opts.PassOnly && !row.Pass {
		return false
	}
	return row.AltFreq >= s.opts.MinFreq
}

// SummarizeFile reads one variants.tsv file into an Isolate named after path.
func (s *Summarizer) SummarizeFile(path string) (*Isolate, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return s.summarize(path, p)
}

// SummarizeReader reads variants.tsv rows from r into an Isolate.
func (s *Summarizer) SummarizeReader(name string, r io.Reader) (*Isolate, error) {
	p, err := NewParserFromReader(r)
	if err != nil {
		return nil, err
	}
	return s.summarize(name, p)
}

func (s *Summarizer) summarize(name string, p *Parser) (*Isolate, error) {
	iso := &Isolate{Name: name}
	seen := make(map[string]bool)

	for {
		row, err := p.NextRow()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if row == nil {
			break
		}
		if !s.keep(row) {
			continue
		}

		mut, err := s.Describe(row)
		if err != nil {
			var te *translate.Error
			if !errors.As(err, &te) {
				return nil, err
			}
			iso.Skipped++
			s.logger.Warn("skipping ivar call",
				zap.String("isolate", name), zap.Int("line", row.Line),
				zap.Stringer("reason", te.Kind), zap.Error(err))
			continue
		}

		iso.Calls = append(iso.Calls, Call{Isolate: name, Row: row, Mutation: mut})
		// iVar repeats a call once per overlapping GFF feature.
		if !seen[mut] {
			seen[mut] = true
			iso.Mutations = append(iso.Mutations, mut)
		}
	}

	SortMutations(iso.Mutations)
	return iso, nil
}

// SummarizeFiles summarizes each distinct path, sorted by isolate name.
func (s *Summarizer) SummarizeFiles(paths []string) ([]*Isolate, error) {
	unique := make(map[string]bool, len(paths))
	var isolates []*Isolate
	for _, path := range paths {
		if unique[path] {
			continue
		}
		unique[path] = true

		iso, err := s.SummarizeFile(path)
		if err != nil {
			return nil, err
		}
		isolates = append(isolates, iso)
	}
	sort.Slice(isolates, func(i, j int) bool { return isolates[i].Name < isolates[j].Name })
	return isolates, nil
}

// SortMutations orders descriptors by their second token (gene or position)
// and then their kind, so each gene's changes group together.
func SortMutations(muts []string) {
	sort.SliceStable(muts, func(i, j int) bool {
		ai, bi := strings.Split(muts[i], ":"), strings.Split(muts[j], ":")
		a1, b1 := token(ai, 1), token(bi, 1)
		if a1 != b1 {
			return a1 < b1
		}
		return token(ai, 0) < token(bi, 0)
	})
}

func token(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// WriteSummary writes one "isolate: mutation, mutation" line per isolate.
func WriteSummary(w io.Writer, isolates []*Isolate) error {
	for _, iso := range isolates {
		if _, err := fmt.Fprintf(w, "%s: [%s]\n", iso.Name, strings.Join(iso.Mutations, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable writes every described call as a tab-separated table.
func WriteTable(w io.Writer, isolates []*Isolate) error {
	if _, err := fmt.Fprintln(w, "isolate\tREGION\tPOS\tREF\tALT\tALT_FREQ\tGFF_FEATURE\tMutation"); err != nil {
		return err
	}
	for _, iso := range isolates {
		for _, c := range iso.Calls {
			_, err := fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%g\t%s\t%s\n",
				c.Isolate, c.Row.Region, c.Row.Pos, c.Row.Ref, c.Row.Alt, c.Row.AltFreq, c.Row.GFFFeature, c.Mutation)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
