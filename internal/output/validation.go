package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/inodb/covwatch/internal/translate"
	"github.com/inodb/covwatch/internal/vcf"
)

// ValidationWriter compares the descriptor a watchlist VCF claims for each
// record (INFO DESC) with the descriptor derived from the record itself.
type ValidationWriter struct {
	w          *tabwriter.Writer
	matches    int
	mismatches int
	total      int
	showAll    bool // if false, only show mismatches
}

// NewValidationWriter creates a new validation output writer.
func NewValidationWriter(w io.Writer, showAll bool) *ValidationWriter {
	return &ValidationWriter{
		w:       tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		showAll: showAll,
	}
}

// WriteHeader writes the validation output header.
func (v *ValidationWriter) WriteHeader() error {
	_, err := fmt.Fprintln(v.w, "Variant\tClaimed\tDescribed\tMatch")
	return err
}

// WriteComparison records one record's claimed descriptor against the
// described one. describeErr is the error from describing the record, if any.
func (v *ValidationWriter) WriteComparison(variant *vcf.Variant, claimed string, described translate.Descriptor, describeErr error) error {
	v.total++

	variantStr := fmt.Sprintf("%s:%d %s>%s", variant.Chrom, variant.Pos, variant.Ref, variant.Alt)
	describedStr := described.String()
	if describeErr != nil {
		describedStr = translate.KindOf(describeErr).String()
	}

	match := describeErr == nil && normalizeDescriptor(claimed) == normalizeDescriptor(describedStr)

	matchStr := "N"
	if match {
		v.matches++
		matchStr = "Y"
	} else {
		v.mismatches++
	}

	if v.showAll || !match {
		if claimed == "" {
			claimed = "-"
		}
		_, err := fmt.Fprintf(v.w, "%s\t%s\t%s\t%s\n", variantStr, claimed, describedStr, matchStr)
		return err
	}
	return nil
}

// Flush flushes the writer.
func (v *ValidationWriter) Flush() error {
	return v.w.Flush()
}

// Summary returns match statistics.
func (v *ValidationWriter) Summary() (total, matches, mismatches int) {
	return v.total, v.matches, v.mismatches
}

// WriteSummary writes a summary of the validation results.
func (v *ValidationWriter) WriteSummary(w io.Writer) {
	matchRate := float64(0)
	if v.total > 0 {
		matchRate = float64(v.matches) / float64(v.total) * 100
	}
	fmt.Fprintf(w, "\nValidation Summary:\n")
	fmt.Fprintf(w, "  Total records:   %d\n", v.total)
	fmt.Fprintf(w, "  Matches:         %d (%.1f%%)\n", v.matches, matchRate)
	fmt.Fprintf(w, "  Mismatches:      %d (%.1f%%)\n", v.mismatches, 100-matchRate)
}

// normalizeDescriptor reduces a descriptor to the parts a record determines.
// Claimed reference residues and snp gene tokens are dropped since the
// record alone cannot contradict them.
func normalizeDescriptor(s string) string {
	d, err := translate.ParseDescriptor(s)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	switch d.Kind {
	case translate.KindAminoAcid:
		d.RefAA = 0
	case translate.KindSNP:
		d.Gene = ""
	}
	return d.String()
}
