package ivar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/covwatch/internal/vcf"
)

const ivarHeader = "REGION\tPOS\tREF\tALT\tALT_FREQ\tTOTAL_DP\tPASS\tGFF_FEATURE\tREF_CODON\tREF_AA\tALT_CODON\tALT_AA\n"

func TestParser_File(t *testing.T) {
	p, err := NewParser(findTestFile(t, "ivar_variants.tsv"))
	require.NoError(t, err)
	defer p.Close()

	cols := p.Columns()
	assert.Equal(t, 0, cols.Region)
	assert.Equal(t, 10, cols.AltFreq)
	assert.Equal(t, 18, cols.AltAA)

	row, err := p.NextRow()
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "MN908947.3", row.Region)
	assert.Equal(t, int64(241), row.Pos)
	assert.Equal(t, "C", row.Ref)
	assert.Equal(t, "T", row.Alt)
	assert.InDelta(t, 0.99, row.AltFreq, 1e-9)
	assert.Equal(t, int64(820), row.TotalDP)
	assert.True(t, row.Pass)
	assert.Empty(t, row.GFFFeature, "NA is read as empty")
	assert.Empty(t, row.RefAA)
	assert.Equal(t, 2, row.Line)

	row, err = p.NextRow()
	require.NoError(t, err)
	assert.True(t, row.IsDeletion())
	assert.False(t, row.IsInsertion())

	count := 2
	for {
		row, err := p.NextRow()
		require.NoError(t, err)
		if row == nil {
			break
		}
		count++
	}
	assert.Equal(t, 7, count)
}

func TestRow_Variant(t *testing.T) {
	tests := []struct {
		name    string
		row     Row
		wantRef string
		wantAlt string
		filter  string
	}{
		{"snv", Row{Region: "MN908947.3", Pos: 23063, Ref: "A", Alt: "T", Pass: true}, "A", "T", "PASS"},
		{"deletion", Row{Region: "MN908947.3", Pos: 21764, Ref: "A", Alt: "-TACATG", Pass: true}, "ATACATG", "A", "PASS"},
		{"insertion", Row{Region: "MN908947.3", Pos: 28270, Ref: "A", Alt: "+T", Pass: true}, "A", "AT", "PASS"},
		{"failed", Row{Region: "MN908947.3", Pos: 23403, Ref: "A", Alt: "G"}, "A", "G", "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.row.Variant()
			assert.Equal(t, tt.row.Pos, v.Pos)
			assert.Equal(t, tt.wantRef, v.Ref)
			assert.Equal(t, tt.wantAlt, v.Alt)
			assert.Equal(t, tt.filter, v.Filter)
		})
	}

	v := (&Row{Pos: 1, Ref: "A", Alt: "G", AltFreq: 0.5, TotalDP: 40}).Variant()
	assert.Equal(t, "0.5", v.InfoString("AF"))
	assert.Equal(t, "40", v.InfoString("DP"))
}

func TestParser_ImplementsVariantParser(t *testing.T) {
	input := ivarHeader + "MN908947.3\t21764\tA\t-TACATG\t0.95\t673\tTRUE\tNA\tNA\tNA\tNA\tNA\n"

	p, err := NewParserFromReader(strings.NewReader(input))
	require.NoError(t, err)

	var vp vcf.VariantParser = p
	v, err := vp.Next()
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.IsDeletion())

	v, err = vp.Next()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing ALT column", "REGION\tPOS\tREF\n"},
		{"bad position", ivarHeader + "MN908947.3\tabc\tA\tT\n"},
		{"zero position", ivarHeader + "MN908947.3\t0\tA\tT\n"},
		{"short line", ivarHeader + "MN908947.3\t10\n"},
		{"bare deletion", ivarHeader + "MN908947.3\t10\tA\t-\n"},
		{"bad frequency", ivarHeader + "MN908947.3\t10\tA\tT\tabc\t100\tTRUE\n"},
		{"frequency above one", ivarHeader + "MN908947.3\t10\tA\tT\t1.5\t100\tTRUE\n"},
		{"bad depth", ivarHeader + "MN908947.3\t10\tA\tT\t0.5\t1e2\tTRUE\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParserFromReader(strings.NewReader(tt.input))
			if err == nil {
				_, err = p.NextRow()
			}
			require.Error(t, err)
			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestParser_BadFrequencyReportsLine(t *testing.T) {
	input := ivarHeader +
		"MN908947.3\t10\tA\tT\t0.5\t100\tTRUE\tNA\tNA\tNA\tNA\tNA\n" +
		"MN908947.3\t20\tA\tT\t0,5\t100\tTRUE\tNA\tNA\tNA\tNA\tNA\n"
	p, err := NewParserFromReader(strings.NewReader(input))
	require.NoError(t, err)

	row, err := p.NextRow()
	require.NoError(t, err)
	assert.Equal(t, 0.5, row.AltFreq)

	_, err = p.NextRow()
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
	assert.Contains(t, pe.Message, "ALT_FREQ")
}

func TestParseError(t *testing.T) {
	err := &ParseError{Line: 4, Message: "invalid position: x"}
	assert.Equal(t, "ivar parse error at line 4: invalid position: x", err.Error())
}

func findTestFile(t *testing.T, name string) string {
	t.Helper()
	for _, dir := range []string{"testdata", filepath.Join("..", "..", "testdata")} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Fatalf("test file %s not found", name)
	return ""
}
