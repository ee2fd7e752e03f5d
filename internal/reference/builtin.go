package reference

// MN908947Accession is the Wuhan-Hu-1 reference accession.
const MN908947Accession = "MN908947.3"

// mn908947Genes are the coding sequences of MN908947.3 in 1-based closed
// coordinates. orf1ab is split at the -1 ribosomal frameshift: codon 4402
// starts at 13468, re-reading the last base of the first frame.
var mn908947Genes = []struct {
	name     string
	segments []Segment
}{
	{"orf1ab", []Segment{{266, 13468}, {13468, 21555}}},
	{"s", []Segment{{21563, 25384}}},
	{"orf3a", []Segment{{25393, 26220}}},
	{"e", []Segment{{26245, 26472}}},
	{"m", []Segment{{26523, 27191}}},
	{"orf6", []Segment{{27202, 27387}}},
	{"orf7a", []Segment{{27394, 27759}}},
	{"orf8", []Segment{{27894, 28259}}},
	{"n", []Segment{{28274, 29533}}},
	{"orf10", []Segment{{29558, 29674}}},
}

// Builtin pairs the MN908947.3 coding table with a genome sequence, for runs
// that only have a FASTA reference. An empty contig defaults to
// MN908947Accession.
func Builtin(contig, sequence string) (*Annotation, error) {
	if contig == "" {
		contig = MN908947Accession
	}
	genes := make([]*Gene, len(mn908947Genes))
	for i, g := range mn908947Genes {
		genes[i] = &Gene{Name: g.name, Segments: append([]Segment(nil), g.segments...)}
	}
	return New(contig, sequence, genes)
}

// LoadBuiltin reads a FASTA reference and applies the MN908947.3 coding table.
func LoadBuiltin(fastaPath string) (*Annotation, error) {
	rec, err := LoadFASTA(fastaPath)
	if err != nil {
		return nil, err
	}
	return Builtin(rec.ID, rec.Sequence)
}
