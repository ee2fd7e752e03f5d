package translate

import (
	"go.uber.org/zap"

	"github.com/inodb/covwatch/internal/vcf"
)

// NonCoding is the gene token used for SNPs outside every coding region.
const NonCoding = "non-coding"

// Describe turns a nucleotide variant back into a descriptor:
//
//	deletion with anchor base         -> del:<first deleted>:<length>
//	SNP changing a residue            -> aa:<gene>:<ref><codon><alt>
//	synonymous or non-coding SNP      -> snp:<gene|non-coding>:<ref><pos><alt>
//
// Insertions and multi-base substitutions are UnsupportedVariant.
func (t *Translator) Describe(v *vcf.Variant) (Descriptor, error) {
	id := v.Key()
	switch {
	case v.IsDeletion():
		if len(v.Alt) != 1 || v.Ref[0] != v.Alt[0] {
			return Descriptor{}, newError(KindUnsupportedVariant, id, "complex deletion without a shared anchor base")
		}
		d := Descriptor{Kind: KindDeletion, Position: v.Pos + 1, Length: int64(len(v.Ref) - 1)}
		d.Raw = d.String()
		return d, nil
	case v.IsInsertion():
		return Descriptor{}, newError(KindUnsupportedVariant, id, "insertions have no descriptor form")
	case !v.IsSNV():
		return Descriptor{}, newError(KindUnsupportedVariant, id, "multi-base substitutions have no descriptor form")
	}

	refNT, altNT := v.Ref[0], v.Alt[0]
	if !IsNucleotide(refNT) || !IsNucleotide(altNT) {
		return Descriptor{}, newError(KindMalformedDescriptor, id, "alleles must be A, C, G or T")
	}
	if refNT == altNT {
		return Descriptor{}, newError(KindMalformedDescriptor, id, "reference and alternate base are both %c", refNT)
	}
	if base := t.ref.Base(v.Pos); base == 0 {
		return Descriptor{}, newError(KindPositionOutOfRange, id, "position %d is outside the genome (1..%d)", v.Pos, t.ref.Len())
	} else if base != refNT {
		t.logger.Warn("variant reference base differs from genome",
			zap.String("variant", id), zap.String("genome", string(base)))
	}

	snp := Descriptor{Kind: KindSNP, Gene: NonCoding, Position: v.Pos, RefNT: refNT, AltNT: altNT}
	genes := t.ref.GenesAt(v.Pos)
	if len(genes) == 0 {
		snp.Raw = snp.String()
		return snp, nil
	}

	g := genes[0]
	snp.Gene = g.Name
	cds := g.GenomicToCDS(v.Pos)
	codon := (cds-1)/3 + 1
	pos, err := codonPositions(g, codon)
	if err != nil {
		return Descriptor{}, withDescriptor(err, Descriptor{Raw: id})
	}
	refCodon := t.readCodon(pos)
	altCodon := MutateCodon(refCodon, int((cds-1)%3), altNT)
	refAA, altAA := TranslateCodon(refCodon), TranslateCodon(altCodon)
	if refAA == altAA || refAA == 'X' || altAA == 'X' {
		snp.Raw = snp.String()
		return snp, nil
	}

	d := Descriptor{Kind: KindAminoAcid, Gene: g.Name, Position: codon, RefAA: refAA, AltAA: altAA}
	d.Raw = d.String()
	return d, nil
}
