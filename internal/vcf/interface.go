// Package vcf provides the nucleotide variant record and VCF parsing.
package vcf

// VariantParser is the interface for parsers that read variants.
// The VCF parser and the iVar variants.tsv parser implement this interface.
type VariantParser interface {
	// Next reads the next variant.
	// Returns nil, nil when there are no more variants.
	Next() (*Variant, error)

	// Close closes the parser and releases resources.
	Close() error

	// LineNumber returns the current line number being processed.
	LineNumber() int
}
