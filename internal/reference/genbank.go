package reference

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/covwatch/internal/textio"
)

// genbankFeature is one entry of a GenBank FEATURES table.
type genbankFeature struct {
	key        string
	location   string
	qualifiers map[string]string
}

// genbankRecord holds the parts of a GenBank record the loader needs.
type genbankRecord struct {
	locus     string
	accession string
	version   string
	features  []*genbankFeature
	origin    strings.Builder
}

// LoadGenBank loads a reference annotation from a GenBank flat file
// (optionally gzipped).
func LoadGenBank(path string) (*Annotation, error) {
	f, err := textio.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	a, err := ParseGenBank(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// ParseGenBank reads the first record of a GenBank stream and builds an
// Annotation from its CDS features and ORIGIN sequence.
func ParseGenBank(r io.Reader) (*Annotation, error) {
	rec, err := readGenBank(r)
	if err != nil {
		return nil, err
	}

	var genes []*Gene
	for _, feat := range rec.features {
		if feat.key != "CDS" {
			continue
		}
		name := feat.qualifiers["gene"]
		if name == "" {
			name = feat.qualifiers["locus_tag"]
		}
		if name == "" {
			return nil, malformed("CDS feature at %s lacks a gene identifier", feat.location)
		}
		segments, err := parseLocation(feat.location)
		if err != nil {
			return nil, err
		}
		genes = append(genes, &Gene{
			Name:     name,
			Product:  feat.qualifiers["product"],
			Segments: segments,
		})
	}

	contig := rec.version
	if contig == "" {
		contig = rec.accession
	}
	if contig == "" {
		contig = rec.locus
	}

	return New(contig, rec.origin.String(), genes)
}

type genbankSection int

const (
	sectionHeader genbankSection = iota
	sectionFeatures
	sectionOrigin
)

// readGenBank tokenizes a GenBank record. Feature keys start at column 5,
// qualifiers and location continuations at column 21.
func readGenBank(r io.Reader) (*genbankRecord, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	rec := &genbankRecord{}
	section := sectionHeader

	var (
		feat      *genbankFeature
		qualName  string
		qualValue strings.Builder
		qualOpen  bool // inside a quoted value spanning lines
	)

	flushQualifier := func() {
		if feat != nil && qualName != "" {
			if _, seen := feat.qualifiers[qualName]; !seen {
				feat.qualifiers[qualName] = strings.Trim(qualValue.String(), `"`)
			}
		}
		qualName = ""
		qualValue.Reset()
		qualOpen = false
	}
	flushFeature := func() {
		flushQualifier()
		if feat != nil {
			rec.features = append(rec.features, feat)
		}
		feat = nil
	}

	lineNum := 0
	done := false
	for !done && scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.HasPrefix(line, "//") {
			flushFeature()
			done = true
			continue
		}

		// Any line starting in column 0 is a top-level keyword.
		if line[0] != ' ' {
			if section == sectionFeatures {
				flushFeature()
			}
			fields := strings.Fields(line)
			switch fields[0] {
			case "LOCUS":
				if len(fields) > 1 {
					rec.locus = fields[1]
				}
				section = sectionHeader
			case "ACCESSION":
				if len(fields) > 1 {
					rec.accession = fields[1]
				}
			case "VERSION":
				if len(fields) > 1 {
					rec.version = fields[1]
				}
			case "FEATURES":
				section = sectionFeatures
			case "ORIGIN":
				section = sectionOrigin
			default:
				if section != sectionOrigin {
					section = sectionHeader
				}
			}
			continue
		}

		switch section {
		case sectionFeatures:
			trimmed := strings.TrimSpace(line)
			if len(line) > 5 && line[5] != ' ' {
				flushFeature()
				fields := strings.Fields(trimmed)
				feat = &genbankFeature{
					key:        fields[0],
					location:   strings.Join(fields[1:], ""),
					qualifiers: make(map[string]string),
				}
				continue
			}
			if feat == nil {
				return nil, malformed("line %d: qualifier outside of a feature", lineNum)
			}
			if qualOpen {
				qualValue.WriteByte(' ')
				qualValue.WriteString(trimmed)
				if strings.HasSuffix(trimmed, `"`) {
					qualOpen = false
				}
				continue
			}
			if strings.HasPrefix(trimmed, "/") {
				flushQualifier()
				name, value, _ := strings.Cut(trimmed[1:], "=")
				qualName = name
				qualValue.WriteString(value)
				qualOpen = strings.HasPrefix(value, `"`) && (len(value) == 1 || !strings.HasSuffix(value, `"`))
				continue
			}
			if qualName == "" {
				feat.location += trimmed
			}
		case sectionOrigin:
			for i := 0; i < len(line); i++ {
				c := line[i]
				if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
					rec.origin.WriteByte(c)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GenBank: %w", err)
	}
	flushFeature()

	if rec.locus == "" {
		return nil, malformed("no LOCUS line found")
	}
	return rec, nil
}

// parseLocation converts a GenBank location (5..10, join(1..3,3..9)) into
// segments. Partial-end markers are ignored; reverse-strand features are
// rejected because the supported reference has none.
func parseLocation(loc string) ([]Segment, error) {
	loc = strings.ReplaceAll(loc, " ", "")
	if strings.HasPrefix(loc, "complement(") {
		return nil, malformed("reverse-strand location %s is not supported", loc)
	}
	for _, wrap := range []string{"join(", "order("} {
		if strings.HasPrefix(loc, wrap) && strings.HasSuffix(loc, ")") {
			loc = loc[len(wrap) : len(loc)-1]
			break
		}
	}

	var segments []Segment
	for _, part := range strings.Split(loc, ",") {
		if strings.ContainsAny(part, "()") {
			return nil, malformed("unsupported location %s", part)
		}
		part = strings.NewReplacer("<", "", ">", "").Replace(part)
		lo, hi, isRange := strings.Cut(part, "..")
		start, err := strconv.ParseInt(lo, 10, 64)
		if err != nil {
			return nil, malformed("invalid location %q", part)
		}
		end := start
		if isRange {
			end, err = strconv.ParseInt(hi, 10, 64)
			if err != nil {
				return nil, malformed("invalid location %q", part)
			}
		}
		segments = append(segments, Segment{Start: start, End: end})
	}
	return segments, nil
}
