package translate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/covwatch/internal/reference"
	"github.com/inodb/covwatch/internal/vcf"
)

// Options controls conversion behavior.
type Options struct {
	// RequireCodonAligned rejects del: lengths that are not a multiple of 3.
	RequireCodonAligned bool
	// VerifySNPRef checks snp: reference bases against the genome.
	VerifySNPRef bool
	// Workers is the ConvertAll pool size; 0 means runtime.NumCPU().
	Workers int
}

// Translator converts descriptors into nucleotide variants against one
// reference annotation. It holds no mutable state after construction and is
// safe for concurrent use.
type Translator struct {
	ref    *reference.Annotation
	opts   Options
	logger *zap.Logger
}

// NewTranslator creates a translator for the given reference.
func NewTranslator(ref *reference.Annotation) *Translator {
	return &Translator{
		ref:    ref,
		logger: zap.NewNop(),
	}
}

// SetOptions replaces the conversion options.
func (t *Translator) SetOptions(opts Options) {
	t.opts = opts
}

// SetLogger sets the logger for warning and info messages.
func (t *Translator) SetLogger(l *zap.Logger) {
	t.logger = l
}

// Reference returns the annotation the translator reads from.
func (t *Translator) Reference() *reference.Annotation {
	return t.ref
}

// Candidate is one alternate codon for an amino-acid change together with
// the single-base edits that turn the reference codon into it.
type Candidate struct {
	Codon    string
	Variants []*vcf.Variant
}

// EditDistance returns the number of bases that differ from the reference codon.
func (c Candidate) EditDistance() int {
	return len(c.Variants)
}

// Result is the outcome of converting one descriptor.
type Result struct {
	Descriptor Descriptor
	Gene       string // resolved gene name, after alias mapping
	Codon      int64  // codon number within Gene, 0 for nucleotide descriptors
	RefCodon   string // reference codon for amino-acid descriptors
	// RefMismatch is set when the descriptor names a reference residue that
	// the genome does not encode. Conversion still uses the genome.
	RefMismatch bool
	Candidates  []Candidate
	Variants    []*vcf.Variant
}

// CodonsWith returns the candidate codons that include the edit v.
func (r *Result) CodonsWith(v *vcf.Variant) []string {
	var codons []string
	key := v.Key()
	for _, c := range r.Candidates {
		for _, cv := range c.Variants {
			if cv.Key() == key {
				codons = append(codons, c.Codon)
				break
			}
		}
	}
	return codons
}

// ConvertLine parses and converts one descriptor line.
func (t *Translator) ConvertLine(line string) (*Result, error) {
	d, err := ParseDescriptor(line)
	if err != nil {
		return nil, err
	}
	return t.Convert(d)
}

// Convert dispatches on the descriptor kind.
func (t *Translator) Convert(d Descriptor) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch d.Kind {
	case KindAminoAcid:
		res, err = t.convertAminoAcid(d)
	case KindDeletion:
		res, err = t.convertDeletion(d)
	case KindAminoAcidDeletion:
		res, err = t.convertAminoAcidDeletion(d)
	case KindSNP:
		res, err = t.convertSNP(d)
	default:
		err = newError(KindUnknownVariantKind, d.Raw, "unknown variant kind %d", int(d.Kind))
	}
	if err != nil {
		return nil, withDescriptor(err, d)
	}
	return res, nil
}

func withDescriptor(err error, d Descriptor) error {
	if e, ok := err.(*Error); ok && e.Descriptor == "" {
		e.Descriptor = d.Raw
		if e.Descriptor == "" {
			e.Descriptor = d.String()
		}
	}
	return err
}

// resolveGene looks up a gene, mapping the nextclade names orf1a and orf1b
// onto orf1ab when the reference only carries the joined polyprotein.
func (t *Translator) resolveGene(name string, codon int64) (*reference.Gene, int64, error) {
	if g, ok := t.ref.Gene(name); ok {
		return g, codon, nil
	}
	switch name {
	case "orf1a":
		if g, ok := t.ref.Gene("orf1ab"); ok {
			return g, codon, nil
		}
	case "orf1b":
		if g, ok := t.ref.Gene("orf1ab"); ok && len(g.Segments) > 1 {
			return g, codon + g.Segments[0].Len()/3, nil
		}
	}
	return nil, 0, newError(KindUnknownGene, "", "gene %q is not in the reference annotation", name)
}

// CodonStart returns the genomic position of the first base of a codon.
func (t *Translator) CodonStart(gene string, codon int64) (int64, error) {
	pos, err := t.CodonPositions(gene, codon)
	if err != nil {
		return 0, err
	}
	return pos[0], nil
}

// CodonPositions returns the genomic positions of the three bases of a codon.
// Across a ribosomal slippage junction they are not contiguous.
func (t *Translator) CodonPositions(gene string, codon int64) ([3]int64, error) {
	g, codon, err := t.resolveGene(gene, codon)
	if err != nil {
		return [3]int64{}, err
	}
	return codonPositions(g, codon)
}

func codonPositions(g *reference.Gene, codon int64) ([3]int64, error) {
	var pos [3]int64
	if codon < 1 || codon > g.Codons() {
		return pos, newError(KindPositionOutOfRange, "", "codon %d is outside %s (1..%d)", codon, g.Name, g.Codons())
	}
	cds := (codon-1)*3 + 1
	for i := range pos {
		pos[i] = g.CDSToGenomic(cds + int64(i))
	}
	return pos, nil
}

func (t *Translator) readCodon(pos [3]int64) string {
	var buf [3]byte
	for i, p := range pos {
		buf[i] = t.ref.Base(p)
	}
	return string(buf[:])
}

// ConvertAminoAcid returns one candidate per alternate codon.
func (t *Translator) ConvertAminoAcid(d Descriptor) ([]Candidate, error) {
	res, err := t.Convert(d)
	if err != nil {
		return nil, err
	}
	return res.Candidates, nil
}

func (t *Translator) convertAminoAcid(d Descriptor) (*Result, error) {
	g, codon, err := t.resolveGene(d.Gene, d.Position)
	if err != nil {
		return nil, err
	}
	pos, err := codonPositions(g, codon)
	if err != nil {
		return nil, err
	}

	refCodon := t.readCodon(pos)
	refAA := TranslateCodon(refCodon)
	res := &Result{
		Descriptor: d,
		Gene:       g.Name,
		Codon:      codon,
		RefCodon:   refCodon,
	}
	if d.RefAA != 0 && d.RefAA != refAA {
		res.RefMismatch = true
		t.logger.Debug("descriptor reference residue differs from genome",
			zap.String("descriptor", d.String()),
			zap.String("claimed", string(d.RefAA)),
			zap.String("actual", string(refAA)),
			zap.String("codon", refCodon))
	}
	if refAA == d.AltAA {
		return nil, newError(KindNoOpVariant, "", "reference codon %s at %s:%d already encodes %c", refCodon, g.Name, codon, d.AltAA)
	}

	for _, alt := range CodonsFor(d.AltAA) {
		c := Candidate{Codon: alt}
		for i := range 3 {
			if alt[i] == refCodon[i] {
				continue
			}
			c.Variants = append(c.Variants, &vcf.Variant{
				Chrom: t.ref.Contig(),
				Pos:   pos[i],
				ID:    ".",
				Ref:   string(refCodon[i]),
				Alt:   string(alt[i]),
			})
		}
		res.Candidates = append(res.Candidates, c)
	}
	res.Variants = Flatten(res.Candidates)
	return res, nil
}

// deletion builds the anchored VCF record for n bases starting at p.
func (t *Translator) deletion(p, n int64) (*vcf.Variant, error) {
	if p < 2 || p-1+n > t.ref.Len() {
		return nil, newError(KindPositionOutOfRange, "", "deletion %d..%d with anchor %d is outside the genome (1..%d)", p, p+n-1, p-1, t.ref.Len())
	}
	refAllele, ok := t.ref.Slice(p-1, p-1+n)
	if !ok {
		return nil, newError(KindPositionOutOfRange, "", "deletion %d..%d is outside the genome", p, p+n-1)
	}
	return &vcf.Variant{
		Chrom: t.ref.Contig(),
		Pos:   p - 1,
		ID:    ".",
		Ref:   refAllele,
		Alt:   refAllele[:1],
	}, nil
}

func (t *Translator) convertDeletion(d Descriptor) (*Result, error) {
	if t.opts.RequireCodonAligned && d.Length%3 != 0 {
		return nil, newError(KindMalformedDescriptor, "", "deletion length %d is not a whole number of codons", d.Length)
	}
	v, err := t.deletion(d.Position, d.Length)
	if err != nil {
		return nil, err
	}
	return &Result{Descriptor: d, Variants: []*vcf.Variant{v}}, nil
}

func (t *Translator) convertAminoAcidDeletion(d Descriptor) (*Result, error) {
	g, codon, err := t.resolveGene(d.Gene, d.Position)
	if err != nil {
		return nil, err
	}
	first, err := codonPositions(g, codon)
	if err != nil {
		return nil, err
	}
	last, err := codonPositions(g, codon+d.Length-1)
	if err != nil {
		return nil, err
	}

	res := &Result{Descriptor: d, Gene: g.Name, Codon: codon, RefCodon: t.readCodon(first)}
	if refAA := TranslateCodon(res.RefCodon); d.RefAA != 0 && d.RefAA != refAA {
		res.RefMismatch = true
		t.logger.Debug("descriptor reference residue differs from genome",
			zap.String("descriptor", d.String()),
			zap.String("claimed", string(d.RefAA)),
			zap.String("actual", string(refAA)))
	}

	v, err := t.deletion(first[0], last[2]-first[0]+1)
	if err != nil {
		return nil, err
	}
	res.Variants = []*vcf.Variant{v}
	return res, nil
}

func (t *Translator) convertSNP(d Descriptor) (*Result, error) {
	if t.opts.VerifySNPRef {
		base := t.ref.Base(d.Position)
		if base == 0 {
			return nil, newError(KindPositionOutOfRange, "", "position %d is outside the genome (1..%d)", d.Position, t.ref.Len())
		}
		if base != d.RefNT {
			return nil, newError(KindMalformedDescriptor, "", "reference base at %d is %c, not %c", d.Position, base, d.RefNT)
		}
	}
	return &Result{
		Descriptor: d,
		Gene:       d.Gene,
		Variants: []*vcf.Variant{{
			Chrom: t.ref.Contig(),
			Pos:   d.Position,
			ID:    ".",
			Ref:   string(d.RefNT),
			Alt:   string(d.AltNT),
		}},
	}, nil
}

// Flatten returns the distinct edits across all candidates, ordered by
// position and then alternate base.
func Flatten(cands []Candidate) []*vcf.Variant {
	seen := make(map[string]bool)
	var out []*vcf.Variant
	for _, c := range cands {
		for _, v := range c.Variants {
			key := v.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pos != out[j].Pos {
			return out[i].Pos < out[j].Pos
		}
		return out[i].Alt < out[j].Alt
	})
	return out
}

// Minimal returns the candidates needing the fewest base changes.
func Minimal(cands []Candidate) []Candidate {
	best := -1
	for _, c := range cands {
		if best < 0 || c.EditDistance() < best {
			best = c.EditDistance()
		}
	}
	var out []Candidate
	for _, c := range cands {
		if c.EditDistance() == best {
			out = append(out, c)
		}
	}
	return out
}
