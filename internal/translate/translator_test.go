package translate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/covwatch/internal/reference"
	"github.com/inodb/covwatch/internal/vcf"
)

// testGenome returns the built-in MN908947.3 gene table over a poly-A genome
// with the given bases written at 1-based positions.
func testGenome(t *testing.T, edits map[int64]string) *reference.Annotation {
	t.Helper()
	seq := []byte(strings.Repeat("A", 29903))
	for pos, bases := range edits {
		copy(seq[pos-1:], bases)
	}
	a, err := reference.Builtin("", string(seq))
	require.NoError(t, err)
	return a
}

func positions(vs []*vcf.Variant) []int64 {
	out := make([]int64, len(vs))
	for i, v := range vs {
		out[i] = v.Pos
	}
	return out
}

func TestConvertAminoAcid_SpikeN501(t *testing.T) {
	tr := NewTranslator(testGenome(t, map[int64]string{23063: "TCA"}))

	res, err := tr.ConvertLine("aa:s:501N")
	require.NoError(t, err)

	assert.Equal(t, "s", res.Gene)
	assert.Equal(t, int64(501), res.Codon)
	assert.Equal(t, "TCA", res.RefCodon)
	assert.False(t, res.RefMismatch, "omitted reference residue is not a mismatch")

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "AAC", res.Candidates[0].Codon)
	assert.Equal(t, "AAT", res.Candidates[1].Codon)

	for _, c := range res.Candidates {
		assert.Equal(t, 3, c.EditDistance())
		for _, v := range c.Variants {
			assert.Contains(t, []int64{23063, 23064, 23065}, v.Pos)
			assert.Len(t, v.Ref, 1)
			assert.Len(t, v.Alt, 1)
			assert.Equal(t, reference.MN908947Accession, v.Chrom)
		}
	}

	assert.Equal(t, []int64{23063, 23064, 23065, 23065}, positions(res.Variants), "flattened edits are distinct")
	assert.Equal(t, []string{"AAC"}, res.CodonsWith(res.Variants[2]))
}

func TestConvertAminoAcid_WrongRefResidueUsesGenome(t *testing.T) {
	tr := NewTranslator(testGenome(t, map[int64]string{23063: "TCA"}))

	claimed, err := tr.ConvertLine("aa:s:Y501N")
	require.NoError(t, err)
	actual, err := tr.ConvertLine("aa:s:S501N")
	require.NoError(t, err)

	assert.True(t, claimed.RefMismatch)
	assert.False(t, actual.RefMismatch)
	assert.Equal(t, "TCA", claimed.RefCodon)
	assert.Equal(t, actual.Candidates, claimed.Candidates, "edits are diffed against the genome codon")
}

func TestConvertAminoAcid_Minimal(t *testing.T) {
	tr := NewTranslator(testGenome(t, nil))

	// AAA to stop: TAA is one edit away, TAG two, TGA three.
	cands, err := tr.ConvertAminoAcid(mustParse(t, "aa:s:K501*"))
	require.NoError(t, err)
	require.Len(t, cands, 3)

	minimal := Minimal(cands)
	require.Len(t, minimal, 1)
	assert.Equal(t, "TAA", minimal[0].Codon)
	assert.Equal(t, int64(23063), minimal[0].Variants[0].Pos)
	assert.Empty(t, Minimal(nil))
}

func TestConvert_Errors(t *testing.T) {
	tr := NewTranslator(testGenome(t, nil))
	tr.SetOptions(Options{RequireCodonAligned: true})

	tests := []struct {
		line string
		want error
	}{
		{"aa:spike:501N", ErrUnknownGene},
		{"aa:s:1275N", ErrPositionOutOfRange},
		{"aa:s:0N", ErrMalformedDescriptor},
		{"aa:s:10K", ErrNoOpVariant},
		{"del:1:3", ErrPositionOutOfRange},
		{"del:29903:3", ErrPositionOutOfRange},
		{"del:29903:2", ErrMalformedDescriptor}, // alignment is checked before range
		{"del:266:4", ErrMalformedDescriptor},
		{"aadel:s:1274:2", ErrPositionOutOfRange},
		{"ins:100:A", ErrUnknownVariantKind},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := tr.ConvertLine(tt.line)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.line, e.Descriptor, "error carries the descriptor text")
		})
	}
}

func TestConvertDeletion(t *testing.T) {
	tr := NewTranslator(testGenome(t, map[int64]string{265: "GATGG"}))

	res, err := tr.ConvertLine("del:266:3")
	require.NoError(t, err)
	require.Len(t, res.Variants, 1)

	v := res.Variants[0]
	assert.Equal(t, int64(265), v.Pos)
	assert.Equal(t, "GATG", v.Ref)
	assert.Equal(t, "G", v.Alt)
	assert.Len(t, v.Ref, 4)
	assert.Len(t, v.Alt, 1)

	res, err = tr.ConvertLine("del:d266:3")
	require.NoError(t, err)
	assert.Equal(t, "GATG", res.Variants[0].Ref, "position prefix is ignored")

	res, err = tr.ConvertLine("del:29903:1")
	require.NoError(t, err)
	assert.Equal(t, int64(29902), res.Variants[0].Pos, "last base can be deleted")

	res, err = tr.ConvertLine("del:266:4")
	require.NoError(t, err, "unaligned lengths are accepted unless codon alignment is required")
	assert.Len(t, res.Variants[0].Ref, 5)
}

func TestConvertAminoAcidDeletion(t *testing.T) {
	tr := NewTranslator(testGenome(t, nil))

	d, err := ParseNextclade("S:H69-")
	require.NoError(t, err)

	res, err := tr.Convert(d)
	require.NoError(t, err)
	require.Len(t, res.Variants, 1)

	v := res.Variants[0]
	assert.Equal(t, int64(21563+68*3-1), v.Pos, "anchor precedes codon 69")
	assert.Len(t, v.Ref, 4)
	assert.Equal(t, 0, (len(v.Ref)-len(v.Alt))%3, "codon deletions are whole codons")
	assert.True(t, res.RefMismatch, "poly-A genome encodes K, not H")

	res, err = tr.ConvertLine("aadel:s:69:2")
	require.NoError(t, err)
	assert.Len(t, res.Variants[0].Ref, 7)
}

func TestConvertSNP(t *testing.T) {
	// A four-base genome proves the SNP path does no reference lookups.
	tiny, err := reference.New("MN908947.3", "ACGT", nil)
	require.NoError(t, err)
	tr := NewTranslator(tiny)

	res, err := tr.ConvertLine("snp:A23403G")
	require.NoError(t, err)
	require.Len(t, res.Variants, 1)
	assert.Equal(t, &vcf.Variant{Chrom: "MN908947.3", Pos: 23403, ID: ".", Ref: "A", Alt: "G"}, res.Variants[0])

	res, err = tr.ConvertLine("snp:orf1ab:C3037T")
	require.NoError(t, err)
	assert.Equal(t, "orf1ab", res.Gene)

	tr.SetOptions(Options{VerifySNPRef: true})
	_, err = tr.ConvertLine("snp:A23403G")
	assert.ErrorIs(t, err, ErrPositionOutOfRange)
	_, err = tr.ConvertLine("snp:T2G")
	assert.ErrorIs(t, err, ErrMalformedDescriptor, "genome has C at 2")
	_, err = tr.ConvertLine("snp:C2G")
	assert.NoError(t, err)
}

func TestCodonPositions_Slippage(t *testing.T) {
	tr := NewTranslator(testGenome(t, nil))

	pos, err := tr.CodonPositions("orf1ab", 4401)
	require.NoError(t, err)
	assert.Equal(t, [3]int64{13466, 13467, 13468}, pos)

	pos, err = tr.CodonPositions("ORF1AB", 4402)
	require.NoError(t, err)
	assert.Equal(t, [3]int64{13468, 13469, 13470}, pos, "codon 4402 re-reads the slippage base")

	start, err := tr.CodonStart("orf1b", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(13468), start, "orf1b is numbered from the frameshift")

	start, err = tr.CodonStart("orf1a", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(266), start)

	_, err = tr.CodonStart("orf1ab", 7098)
	assert.ErrorIs(t, err, ErrPositionOutOfRange)
}

func TestCodonStart_WithinGene(t *testing.T) {
	a := testGenome(t, nil)
	tr := NewTranslator(a)

	for _, g := range a.Genes() {
		for codon := int64(1); codon <= g.Codons(); codon++ {
			pos, err := tr.CodonPositions(g.Name, codon)
			require.NoError(t, err)
			for _, p := range pos {
				if p < g.Start() || p > g.End() {
					t.Fatalf("%s codon %d maps to %d outside %d..%d", g.Name, codon, p, g.Start(), g.End())
				}
			}
		}
	}

	start, err := tr.CodonStart("s", 501)
	require.NoError(t, err)
	assert.Equal(t, int64(23063), start)
}

func TestConvertAll(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tr := NewTranslator(testGenome(t, nil))
	tr.SetLogger(zap.New(core))

	input := strings.Join([]string{
		"# watchlist",
		"aa:spike:501N",
		"",
		"snp:A23403G",
		"aa:s:10K",
		"del:266:3",
		"bogus",
	}, "\n")

	var got []string
	sum, err := tr.ConvertAll(strings.NewReader(input), func(r *Result) error {
		got = append(got, r.Descriptor.String())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"snp:A23403G", "del:266:3"}, got, "run continues past failures in input order")
	assert.Equal(t, 2, sum.Converted)
	assert.Equal(t, 5, sum.Total())
	require.Len(t, sum.Skipped, 2)
	assert.Equal(t, 2, sum.Skipped[0].Line)
	assert.Equal(t, "aa:spike:501N", sum.Skipped[0].Descriptor)
	assert.Equal(t, KindUnknownGene, sum.Skipped[0].Kind)
	assert.Equal(t, KindUnknownVariantKind, sum.Skipped[1].Kind)
	require.Len(t, sum.NoOp, 1)
	assert.Equal(t, map[ErrorKind]int{KindUnknownGene: 1, KindUnknownVariantKind: 1, KindNoOpVariant: 1}, sum.ReasonCounts())
	assert.Equal(t, []ErrorKind{KindUnknownVariantKind, KindUnknownGene, KindNoOpVariant}, sum.Reasons())

	assert.Equal(t, 2, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("descriptor needs no change").Len())
}

func TestConvertAll_CallbackErrorStops(t *testing.T) {
	tr := NewTranslator(testGenome(t, nil))
	input := strings.Repeat("snp:A100G\n", 50)

	calls := 0
	_, err := tr.ConvertAll(strings.NewReader(input), func(*Result) error {
		calls++
		return fmt.Errorf("disk full")
	})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, calls)
}

func makeItems(n int) <-chan WorkItem {
	ch := make(chan WorkItem, n)
	for i := range n {
		ch <- WorkItem{Seq: i, Line: i + 1, Text: fmt.Sprintf("snp:A%dG", 100+i)}
	}
	close(ch)
	return ch
}

func TestParallelConvert_OrderPreservation(t *testing.T) {
	tr := NewTranslator(testGenome(t, nil))

	results := tr.ParallelConvert(makeItems(200), 8)

	var collected []int
	err := OrderedCollect(results, func(r WorkResult) error {
		require.NoError(t, r.Err)
		assert.Equal(t, int64(100+r.Seq), r.Result.Variants[0].Pos)
		collected = append(collected, r.Seq)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, collected, 200)
	for i, seq := range collected {
		assert.Equal(t, i, seq, "result %d out of order", i)
	}
}

func TestParallelConvert_DefaultWorkers(t *testing.T) {
	tr := NewTranslator(testGenome(t, nil))

	count := 0
	err := OrderedCollect(tr.ParallelConvert(makeItems(20), 0), func(WorkResult) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestOrderedCollect_OutOfOrder(t *testing.T) {
	ch := make(chan WorkResult, 5)
	for _, seq := range []int{3, 1, 4, 0, 2} {
		ch <- WorkResult{Seq: seq}
	}
	close(ch)

	var order []int
	err := OrderedCollect(ch, func(r WorkResult) error {
		order = append(order, r.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func mustParse(t *testing.T, line string) Descriptor {
	t.Helper()
	d, err := ParseDescriptor(line)
	require.NoError(t, err)
	return d
}
