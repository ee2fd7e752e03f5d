// Package output provides writers for converted watchlists.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/covwatch/internal/translate"
)

// TabWriter writes conversion results in tab-delimited format, one row per
// distinct edit.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Descriptor",
			"Kind",
			"Gene",
			"Codon",
			"Ref_codon",
			"Alt_codons",
			"Chrom",
			"Pos",
			"Ref",
			"Alt",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes every edit of a single conversion result.
func (tw *TabWriter) Write(res *translate.Result) error {
	gene := res.Gene
	if gene == "" {
		gene = "-"
	}
	codon := "-"
	if res.Codon > 0 {
		codon = strconv.FormatInt(res.Codon, 10)
	}
	refCodon := res.RefCodon
	if refCodon == "" {
		refCodon = "-"
	}

	for _, v := range res.Variants {
		altCodons := "-"
		if codons := res.CodonsWith(v); len(codons) > 0 {
			altCodons = strings.Join(codons, ",")
		}
		values := []string{
			res.Descriptor.String(),
			res.Descriptor.Kind.String(),
			gene,
			codon,
			refCodon,
			altCodons,
			v.Chrom,
			strconv.FormatInt(v.Pos, 10),
			v.Ref,
			v.Alt,
		}
		if _, err := tw.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}
