// Package vcf provides the nucleotide variant record and VCF parsing.
package vcf

import "fmt"

// Variant represents a single nucleotide variant on the reference genome.
type Variant struct {
	Chrom  string         // Reference accession (e.g., "MN908947.3")
	Pos    int64          // 1-based genomic position
	ID     string         // Variant identifier, "." when absent
	Ref    string         // Reference allele
	Alt    string         // Alternate allele (single allele after splitting)
	Qual   float64        // Quality score
	Filter string         // Filter status (PASS or filter name)
	Info   map[string]any // INFO field key-value pairs
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (v *Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsMNV returns true if ref and alt are equal-length multi-base alleles.
func (v *Variant) IsMNV() bool {
	return len(v.Ref) > 1 && len(v.Ref) == len(v.Alt)
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v *Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// IsInsertion returns true if the variant is an insertion.
func (v *Variant) IsInsertion() bool {
	return len(v.Alt) > len(v.Ref)
}

// IsDeletion returns true if the variant is a deletion.
func (v *Variant) IsDeletion() bool {
	return len(v.Ref) > len(v.Alt)
}

// Key returns a CHROM:POS:REF:ALT identity used for de-duplication.
func (v *Variant) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s", v.Chrom, v.Pos, v.Ref, v.Alt)
}

// InfoString returns the INFO value for key as a string, or "" when the key
// is absent or a flag.
func (v *Variant) InfoString(key string) string {
	if s, ok := v.Info[key].(string); ok {
		return s
	}
	return ""
}
