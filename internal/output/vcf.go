package output

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/covwatch/internal/translate"
	"github.com/inodb/covwatch/internal/vcf"
)

// Watchlist INFO keys.
const (
	InfoDesc        = "DESC"
	InfoGene        = "GENE"
	InfoCodon       = "CODON"
	InfoRefMismatch = "REFMISMATCH"
)

var watchlistInfoLines = []string{
	`##INFO=<ID=DESC,Number=1,Type=String,Description="Watchlist descriptor the record was converted from">`,
	`##INFO=<ID=GENE,Number=1,Type=String,Description="Gene of the descriptor">`,
	`##INFO=<ID=CODON,Number=.,Type=String,Description="Alternate codons that include this edit">`,
	`##INFO=<ID=REFMISMATCH,Number=0,Type=Flag,Description="Descriptor reference residue differs from the genome">`,
}

// VCFWriter writes nucleotide variants as a VCF 4.2 watchlist.
type VCFWriter struct {
	w            *bufio.Writer
	contig       string
	contigLength int64
	extraHeader  []string
}

// NewVCFWriter creates a new VCF output writer for records on one contig.
func NewVCFWriter(w io.Writer, contig string, contigLength int64) *VCFWriter {
	return &VCFWriter{
		w:            bufio.NewWriter(w),
		contig:       contig,
		contigLength: contigLength,
	}
}

// AddHeaderLine adds a ## line written after the INFO definitions.
func (vw *VCFWriter) AddHeaderLine(line string) {
	vw.extraHeader = append(vw.extraHeader, line)
}

// WriteHeader writes the meta-information lines and the #CHROM line.
func (vw *VCFWriter) WriteHeader() error {
	lines := []string{
		"##fileformat=VCFv4.2",
		"##source=covwatch",
		fmt.Sprintf("##contig=<ID=%s,length=%d>", vw.contig, vw.contigLength),
	}
	lines = append(lines, watchlistInfoLines...)
	lines = append(lines, vw.extraHeader...)
	lines = append(lines, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO")

	for _, line := range lines {
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteResult writes one record per distinct edit of a conversion result.
func (vw *VCFWriter) WriteResult(res *translate.Result) error {
	desc := res.Descriptor.String()
	for _, v := range res.Variants {
		info := []string{InfoDesc + "=" + desc}
		if res.Gene != "" {
			info = append(info, InfoGene+"="+res.Gene)
		}
		if codons := res.CodonsWith(v); len(codons) > 0 {
			info = append(info, InfoCodon+"="+strings.Join(codons, ","))
		}
		if res.RefMismatch {
			info = append(info, InfoRefMismatch)
		}
		if err := vw.writeLine(v, strings.Join(info, ";")); err != nil {
			return err
		}
	}
	return nil
}

// WriteVariant writes a variant with its own INFO map, keys in sorted order.
func (vw *VCFWriter) WriteVariant(v *vcf.Variant) error {
	return vw.writeLine(v, formatInfo(v.Info))
}

func (vw *VCFWriter) writeLine(v *vcf.Variant, info string) error {
	var lb strings.Builder
	lb.Grow(128)

	chrom := v.Chrom
	if chrom == "" {
		chrom = vw.contig
	}
	id := v.ID
	if id == "" {
		id = "."
	}
	filter := v.Filter
	if filter == "" {
		filter = "PASS"
	}
	if info == "" {
		info = "."
	}

	lb.WriteString(chrom)
	lb.WriteByte('\t')
	lb.WriteString(strconv.FormatInt(v.Pos, 10))
	lb.WriteByte('\t')
	lb.WriteString(id)
	lb.WriteByte('\t')
	lb.WriteString(v.Ref)
	lb.WriteByte('\t')
	lb.WriteString(v.Alt)
	lb.WriteByte('\t')
	if v.Qual != 0 {
		lb.WriteString(strconv.FormatFloat(v.Qual, 'g', -1, 64))
	} else {
		lb.WriteByte('.')
	}
	lb.WriteByte('\t')
	lb.WriteString(filter)
	lb.WriteByte('\t')
	lb.WriteString(info)
	lb.WriteByte('\n')

	_, err := vw.w.WriteString(lb.String())
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}

// formatInfo renders an INFO map as key=value pairs; true values are flags.
func formatInfo(info map[string]any) string {
	if len(info) == 0 {
		return "."
	}
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch val := info[k].(type) {
		case bool:
			if val {
				parts = append(parts, k)
			}
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, val))
		}
	}
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, ";")
}
