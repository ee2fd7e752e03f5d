package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/covwatch/internal/translate"
	"github.com/inodb/covwatch/internal/vcf"
)

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	header := buf.String()
	for _, col := range []string{"#Descriptor", "Kind", "Gene", "Codon", "Alt_codons", "Pos", "Ref", "Alt"} {
		assert.Contains(t, header, col)
	}
}

func TestTabWriter_Write_N501Y(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.Write(n501yResult(t)))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "aa:s:N501Y\taa\ts\t501\tAAT\tTAC,TAT\tMN908947.3\t23063\tA\tT", lines[0])
	assert.Equal(t, "aa:s:N501Y\taa\ts\t501\tAAT\tTAC\tMN908947.3\t23065\tT\tC", lines[1])
}

func TestTabWriter_Write_Deletion(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	d, err := translate.ParseDescriptor("del:21765:6")
	require.NoError(t, err)
	res := &translate.Result{
		Descriptor: d,
		Variants:   []*vcf.Variant{{Chrom: "MN908947.3", Pos: 21764, Ref: "ATACATG", Alt: "A"}},
	}

	require.NoError(t, w.Write(res))
	require.NoError(t, w.Flush())

	fields := strings.Split(strings.TrimRight(buf.String(), "\n"), "\t")
	require.Len(t, fields, 10)
	assert.Equal(t, []string{"del:21765:6", "del", "-", "-", "-", "-"}, fields[:6], "nucleotide descriptors have no gene or codon")
}
