package duckdb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/covwatch/internal/reference"
	"github.com/inodb/covwatch/internal/translate"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// convert runs descriptors against a poly-A genome whose spike codon 501
// reads AAT.
func convert(t *testing.T, lines ...string) []*translate.Result {
	t.Helper()
	seq := []byte(strings.Repeat("A", 29903))
	seq[23065-1] = 'T'
	ref, err := reference.Builtin("", string(seq))
	require.NoError(t, err)

	tr := translate.NewTranslator(ref)
	var results []*translate.Result
	for _, line := range lines {
		res, err := tr.ConvertLine(line)
		require.NoError(t, err)
		results = append(results, res)
	}
	return results
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Empty(t, s.Path())
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "covwatch.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, path, s.Path())
	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestWriteAndLookupDescriptor(t *testing.T) {
	s := openInMemory(t)
	run, err := s.StartRun("-", "MN908947.3")
	require.NoError(t, err)

	results := convert(t, "aa:s:N501Y", "del:21765:6", "aa:s:N501Y")
	require.NoError(t, s.WriteResults(run.ID, results))

	found, err := s.LookupDescriptor("aa:S:N501Y")
	require.NoError(t, err)
	require.Len(t, found, 2, "a repeated descriptor is stored once")

	v := found[0]
	assert.Equal(t, run.ID, v.RunID)
	assert.Equal(t, "aa:s:N501Y", v.Descriptor)
	assert.Equal(t, "aa", v.Kind)
	assert.Equal(t, "s", v.Gene)
	assert.Equal(t, int64(501), v.Codon)
	assert.Equal(t, "MN908947.3", v.Chrom)
	assert.Equal(t, int64(23063), v.Pos)
	assert.Equal(t, "A", v.Ref)
	assert.Equal(t, "T", v.Alt)
	assert.Contains(t, v.AltCodons, "TAT")

	found, err = s.LookupDescriptor("del:21765:6")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(21764), found[0].Pos)
	assert.Equal(t, "AAAAAAA", found[0].Ref)
	assert.Empty(t, found[0].AltCodons)

	found, err = s.LookupDescriptor("aa:s:D614G")
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = s.LookupDescriptor("aa:s")
	assert.ErrorIs(t, err, translate.ErrMalformedDescriptor)
}

func TestSearchByGene(t *testing.T) {
	s := openInMemory(t)
	run, err := s.StartRun("-", "MN908947.3")
	require.NoError(t, err)
	require.NoError(t, s.WriteResults(run.ID, convert(t, "aa:s:N501Y", "aa:n:204R")))

	spike, err := s.SearchByGene("S")
	require.NoError(t, err)
	require.NotEmpty(t, spike)
	for _, v := range spike {
		assert.Equal(t, "s", v.Gene)
	}

	none, err := s.SearchByGene("orf8")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFinishRun_FailureCounts(t *testing.T) {
	s := openInMemory(t)
	run, err := s.StartRun("-", "MN908947.3")
	require.NoError(t, err)

	sum := &translate.Summary{
		Converted: 3,
		NoOp: []translate.Failure{
			{Line: 2, Descriptor: "aa:s:N501N", Kind: translate.KindNoOpVariant, Err: translate.ErrNoOpVariant},
		},
		Skipped: []translate.Failure{
			{Line: 4, Descriptor: "aa:zz:1A", Kind: translate.KindUnknownGene, Err: translate.ErrUnknownGene},
			{Line: 5, Descriptor: "aa:yy:1A", Kind: translate.KindUnknownGene, Err: translate.ErrUnknownGene},
			{Line: 6, Descriptor: "foo:1", Kind: translate.KindUnknownVariantKind},
		},
	}
	require.NoError(t, s.FinishRun(run, sum))
	assert.Equal(t, 3, run.Converted)
	assert.Equal(t, 1, run.NoOp)
	assert.Equal(t, 3, run.Skipped)

	counts, err := s.FailureCounts(run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"NoOpVariant": 1, "UnknownGene": 2, "UnknownVariantKind": 1}, counts)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, 3, runs[0].Converted)
	assert.Equal(t, 3, runs[0].Skipped)

	counts, err = s.FailureCounts("no-such-run")
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestDeleteRun(t *testing.T) {
	s := openInMemory(t)
	keep, err := s.StartRun("-", "MN908947.3")
	require.NoError(t, err)
	drop, err := s.StartRun("-", "MN908947.3")
	require.NoError(t, err)
	assert.NotEqual(t, keep.ID, drop.ID)

	require.NoError(t, s.WriteResults(keep.ID, convert(t, "del:21765:6")))
	require.NoError(t, s.WriteResults(drop.ID, convert(t, "aa:s:N501Y")))

	require.NoError(t, s.DeleteRun(drop.ID))

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, keep.ID, runs[0].ID)

	found, err := s.LookupDescriptor("aa:s:N501Y")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestStartRun_Fingerprint(t *testing.T) {
	s := openInMemory(t)
	path := filepath.Join(t.TempDir(), "watchlist.txt")
	require.NoError(t, os.WriteFile(path, []byte("aa:s:N501Y\n"), 0644))

	run, err := s.StartRun(path, "MN908947.3")
	require.NoError(t, err)
	assert.Equal(t, int64(11), run.InputSize)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, path, runs[0].Input)
	assert.False(t, InputChanged(&runs[0]))

	require.NoError(t, os.WriteFile(path, []byte("aa:s:N501Y\ndel:21765:6\n"), 0644))
	assert.True(t, InputChanged(&runs[0]))

	stdin, err := s.StartRun("-", "MN908947.3")
	require.NoError(t, err)
	assert.True(t, InputChanged(stdin))
}
