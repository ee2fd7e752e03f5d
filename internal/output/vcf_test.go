package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/inodb/covwatch/internal/translate"
	"github.com/inodb/covwatch/internal/vcf"
)

func n501yResult(t *testing.T) *translate.Result {
	t.Helper()
	d, err := translate.ParseDescriptor("aa:s:N501Y")
	if err != nil {
		t.Fatal(err)
	}
	edit := func(pos int64, ref, alt string) *vcf.Variant {
		return &vcf.Variant{Chrom: "MN908947.3", Pos: pos, ID: ".", Ref: ref, Alt: alt}
	}
	cands := []translate.Candidate{
		{Codon: "TAC", Variants: []*vcf.Variant{edit(23063, "A", "T"), edit(23065, "T", "C")}},
		{Codon: "TAT", Variants: []*vcf.Variant{edit(23063, "A", "T")}},
	}
	return &translate.Result{
		Descriptor: d,
		Gene:       "s",
		Codon:      501,
		RefCodon:   "AAT",
		Candidates: cands,
		Variants:   translate.Flatten(cands),
	}
}

func TestVCFWriter_Header(t *testing.T) {
	var buf bytes.Buffer
	w := NewVCFWriter(&buf, "MN908947.3", 29903)
	w.AddHeaderLine("##reference=MN908947.3.fasta")
	if err := w.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	if lines[0] != "##fileformat=VCFv4.2" {
		t.Errorf("first line = %q, want ##fileformat=VCFv4.2", lines[0])
	}
	if lines[2] != "##contig=<ID=MN908947.3,length=29903>" {
		t.Errorf("contig line = %q", lines[2])
	}

	descIdx, extraIdx, chromIdx := -1, -1, -1
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "##INFO=<ID=DESC"):
			descIdx = i
		case line == "##reference=MN908947.3.fasta":
			extraIdx = i
		case strings.HasPrefix(line, "#CHROM"):
			chromIdx = i
		}
	}
	if descIdx < 0 || extraIdx < 0 || chromIdx < 0 {
		t.Fatalf("header incomplete: %v", lines)
	}
	if !(descIdx < extraIdx && extraIdx < chromIdx) {
		t.Errorf("header order: DESC %d, extra %d, #CHROM %d", descIdx, extraIdx, chromIdx)
	}
	if chromIdx != len(lines)-1 {
		t.Errorf("#CHROM should be the last header line")
	}
}

func TestVCFWriter_WriteResult(t *testing.T) {
	var buf bytes.Buffer
	w := NewVCFWriter(&buf, "MN908947.3", 29903)

	res := n501yResult(t)
	res.RefMismatch = true
	if err := w.WriteResult(res); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	want := "MN908947.3\t23063\t.\tA\tT\t.\tPASS\tDESC=aa:s:N501Y;GENE=s;CODON=TAC,TAT;REFMISMATCH\n" +
		"MN908947.3\t23065\t.\tT\tC\t.\tPASS\tDESC=aa:s:N501Y;GENE=s;CODON=TAC;REFMISMATCH\n"
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestVCFWriter_WriteVariant(t *testing.T) {
	var buf bytes.Buffer
	w := NewVCFWriter(&buf, "MN908947.3", 29903)

	v := &vcf.Variant{
		Pos:  21765,
		Ref:  "TACATG",
		Alt:  "T",
		Qual: 30,
		Info: map[string]any{"TYPE": "deletion", "AA": "HV69-70del", "SKIP": false, "KNOWN": true},
	}
	if err := w.WriteVariant(v); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteVariant(&vcf.Variant{Chrom: "X", Pos: 1, Ref: "A", Alt: "G"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	want := "MN908947.3\t21765\t.\tTACATG\tT\t30\tPASS\tAA=HV69-70del;KNOWN;TYPE=deletion\n" +
		"X\t1\t.\tA\tG\t.\tPASS\t.\n"
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
