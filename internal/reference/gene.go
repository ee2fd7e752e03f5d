package reference

// Segment is a 1-based closed interval of reference coordinates.
type Segment struct {
	Start int64
	End   int64
}

// Len returns the number of bases covered by the segment.
func (s Segment) Len() int64 {
	return s.End - s.Start + 1
}

// Gene is a coding sequence on the reference genome. Most genes have a single
// segment; genes with a ribosomal frameshift (orf1ab) have one segment per
// reading frame, and the segments may share a base at the slippage site.
type Gene struct {
	Name     string // lower-cased gene name
	Product  string // protein product, if the annotation provides one
	Segments []Segment
}

// Start returns the first coding base of the gene.
func (g *Gene) Start() int64 {
	if len(g.Segments) == 0 {
		return 0
	}
	start := g.Segments[0].Start
	for _, s := range g.Segments[1:] {
		if s.Start < start {
			start = s.Start
		}
	}
	return start
}

// End returns the last coding base of the gene.
func (g *Gene) End() int64 {
	var end int64
	for _, s := range g.Segments {
		if s.End > end {
			end = s.End
		}
	}
	return end
}

// CodingLength returns the summed length of all segments.
func (g *Gene) CodingLength() int64 {
	var n int64
	for _, s := range g.Segments {
		n += s.Len()
	}
	return n
}

// Codons returns the number of complete codons in the gene.
func (g *Gene) Codons() int64 {
	return g.CodingLength() / 3
}

// Contains reports whether pos falls inside any segment of the gene.
func (g *Gene) Contains(pos int64) bool {
	for _, s := range g.Segments {
		if pos >= s.Start && pos <= s.End {
			return true
		}
	}
	return false
}

// CDSToGenomic converts a 1-based position within the coding sequence to a
// reference coordinate. Returns 0 if cdsPos lies outside the gene.
func (g *Gene) CDSToGenomic(cdsPos int64) int64 {
	if cdsPos < 1 {
		return 0
	}
	remaining := cdsPos
	for _, s := range g.Segments {
		if remaining <= s.Len() {
			return s.Start + remaining - 1
		}
		remaining -= s.Len()
	}
	return 0
}

// GenomicToCDS converts a reference coordinate to a 1-based coding position.
// A base shared by two segments resolves to the earlier reading frame.
// Returns 0 if pos is not coding in this gene.
func (g *Gene) GenomicToCDS(pos int64) int64 {
	var offset int64
	for _, s := range g.Segments {
		if pos >= s.Start && pos <= s.End {
			return offset + pos - s.Start + 1
		}
		offset += s.Len()
	}
	return 0
}

// nests reports whether other lies within the outer bounds of g.
func (g *Gene) nests(other *Gene) bool {
	return other.Start() >= g.Start() && other.End() <= g.End()
}
