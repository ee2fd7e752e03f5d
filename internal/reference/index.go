package reference

import "sort"

// GeneIndex answers "which genes cover this position" using a start-sorted
// slice. A reference carries a handful of genes, so every interval starting
// at or before the position is checked. Built once, never modified.
type GeneIndex struct {
	intervals []interval
}

type interval struct {
	start int64
	end   int64
	rank  int // position in annotation order
	gene  *Gene
}

// BuildGeneIndex creates an index over the outer bounds of each gene.
func BuildGeneIndex(genes []*Gene) *GeneIndex {
	if len(genes) == 0 {
		return &GeneIndex{}
	}

	intervals := make([]interval, len(genes))
	for i, g := range genes {
		intervals[i] = interval{start: g.Start(), end: g.End(), rank: i, gene: g}
	}

	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].start < intervals[j].start
	})

	return &GeneIndex{intervals: intervals}
}

// FindOverlaps returns the genes coding at pos, ordered as they were given
// to BuildGeneIndex.
func (x *GeneIndex) FindOverlaps(pos int64) []*Gene {
	if x == nil || len(x.intervals) == 0 {
		return nil
	}

	// Candidates are [0, hi): every interval starting at or before pos.
	hi := sort.Search(len(x.intervals), func(i int) bool {
		return x.intervals[i].start > pos
	})

	// A long gene starting early can cover pos after shorter genes nested
	// in it have ended, so the scan cannot stop at the first miss.
	var hits []interval
	for _, iv := range x.intervals[:hi] {
		if iv.end >= pos && iv.gene.Contains(pos) {
			hits = append(hits, iv)
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].rank < hits[j].rank })

	result := make([]*Gene, len(hits))
	for i, h := range hits {
		result[i] = h.gene
	}
	return result
}
