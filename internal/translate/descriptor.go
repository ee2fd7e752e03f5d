package translate

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind identifies the variant notation of a descriptor.
type Kind int

const (
	KindAminoAcid Kind = iota + 1
	KindDeletion
	KindSNP
	// KindAminoAcidDeletion removes whole codons starting at a gene codon,
	// written aadel:<gene>:<ref><pos>:<codons> or as nextclade S:H69-.
	KindAminoAcidDeletion
)

func (k Kind) String() string {
	switch k {
	case KindAminoAcid:
		return "aa"
	case KindDeletion:
		return "del"
	case KindSNP:
		return "snp"
	case KindAminoAcidDeletion:
		return "aadel"
	default:
		return "unknown"
	}
}

// Descriptor is a parsed watchlist entry. Which fields are set depends on Kind:
//
//	aa:     Gene, Position (codon), RefAA (0 if omitted), AltAA
//	del:    Position (first deleted nucleotide), Length (nucleotides)
//	snp:    Position, RefNT, AltNT, and Gene if the long form names one
//	aadel:  Gene, Position (first deleted codon), Length (codons), RefAA
type Descriptor struct {
	Kind     Kind
	Gene     string
	Position int64
	Length   int64
	RefAA    byte
	AltAA    byte
	RefNT    byte
	AltNT    byte
	Raw      string
}

// String renders the canonical text form.
func (d Descriptor) String() string {
	switch d.Kind {
	case KindAminoAcid:
		var ref string
		if d.RefAA != 0 {
			ref = string(d.RefAA)
		}
		return fmt.Sprintf("aa:%s:%s%d%c", d.Gene, ref, d.Position, d.AltAA)
	case KindDeletion:
		return fmt.Sprintf("del:%d:%d", d.Position, d.Length)
	case KindSNP:
		if d.Gene != "" {
			return fmt.Sprintf("snp:%s:%c%d%c", d.Gene, d.RefNT, d.Position, d.AltNT)
		}
		return fmt.Sprintf("snp:%c%d%c", d.RefNT, d.Position, d.AltNT)
	case KindAminoAcidDeletion:
		var ref string
		if d.RefAA != 0 {
			ref = string(d.RefAA)
		}
		return fmt.Sprintf("aadel:%s:%s%d:%d", d.Gene, ref, d.Position, d.Length)
	default:
		return d.Raw
	}
}

// ParseDescriptor parses one colon-delimited descriptor line.
// Gene names are lower-cased; whether the gene exists is checked at
// conversion time.
func ParseDescriptor(line string) (Descriptor, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Descriptor{}, newError(KindMalformedDescriptor, line, "empty descriptor")
	}

	fields := strings.Split(line, ":")
	var (
		d   Descriptor
		err error
	)
	switch strings.ToLower(fields[0]) {
	case "aa":
		d, err = parseAminoAcid(line, fields)
	case "del":
		d, err = parseDeletion(line, fields)
	case "snp":
		d, err = parseSNP(line, fields)
	case "aadel":
		d, err = parseAminoAcidDeletion(line, fields)
	default:
		return Descriptor{}, newError(KindUnknownVariantKind, line, "unknown variant kind %q", fields[0])
	}
	if err != nil {
		return Descriptor{}, err
	}
	d.Raw = line
	return d, nil
}

func parseAminoAcid(line string, fields []string) (Descriptor, error) {
	if len(fields) != 3 || fields[1] == "" {
		return Descriptor{}, newError(KindMalformedDescriptor, line, "expected aa:<gene>:<ref><pos><alt>")
	}
	ref, pos, alt, err := parseChange(strings.ToUpper(fields[2]), IsAminoAcid, true)
	if err != nil {
		return Descriptor{}, newError(KindMalformedDescriptor, line, "%v", err)
	}
	return Descriptor{
		Kind:     KindAminoAcid,
		Gene:     strings.ToLower(fields[1]),
		Position: pos,
		RefAA:    ref,
		AltAA:    alt,
	}, nil
}

func parseAminoAcidDeletion(line string, fields []string) (Descriptor, error) {
	if len(fields) != 4 || fields[1] == "" || fields[2] == "" {
		return Descriptor{}, newError(KindMalformedDescriptor, line, "expected aadel:<gene>:<ref><pos>:<codons>")
	}
	start := fields[2]
	var ref byte
	if start[0] < '0' || start[0] > '9' {
		ref, start = start[0], start[1:]
		if !IsAminoAcid(ref) {
			return Descriptor{}, newError(KindMalformedDescriptor, line, "unrecognized reference letter %q", ref)
		}
	}
	pos, err := parsePositive(start)
	if err != nil {
		return Descriptor{}, newError(KindMalformedDescriptor, line, "deletion codon: %v", err)
	}
	count, err := parsePositive(fields[3])
	if err != nil {
		return Descriptor{}, newError(KindMalformedDescriptor, line, "deletion codon count: %v", err)
	}
	return Descriptor{
		Kind:     KindAminoAcidDeletion,
		Gene:     strings.ToLower(fields[1]),
		Position: pos,
		Length:   count,
		RefAA:    ref,
	}, nil
}

func parseDeletion(line string, fields []string) (Descriptor, error) {
	if len(fields) != 3 {
		return Descriptor{}, newError(KindMalformedDescriptor, line, "expected del:<pos>:<length>")
	}
	posText := fields[1]
	if posText != "" && (posText[0] < '0' || posText[0] > '9') {
		posText = posText[1:]
	}
	pos, err := parsePositive(posText)
	if err != nil {
		return Descriptor{}, newError(KindMalformedDescriptor, line, "deletion position: %v", err)
	}
	length, err := parsePositive(fields[2])
	if err != nil {
		return Descriptor{}, newError(KindMalformedDescriptor, line, "deletion length: %v", err)
	}
	return Descriptor{Kind: KindDeletion, Position: pos, Length: length}, nil
}

func parseSNP(line string, fields []string) (Descriptor, error) {
	var gene, change string
	switch len(fields) {
	case 2:
		change = fields[1]
	case 3:
		gene, change = strings.ToLower(fields[1]), fields[2]
	default:
		return Descriptor{}, newError(KindMalformedDescriptor, line, "expected snp:<ref><pos><alt>")
	}
	ref, pos, alt, err := parseChange(strings.ToUpper(change), IsNucleotide, false)
	if err != nil {
		return Descriptor{}, newError(KindMalformedDescriptor, line, "%v", err)
	}
	if ref == alt {
		return Descriptor{}, newError(KindMalformedDescriptor, line, "reference and alternate base are both %c", ref)
	}
	return Descriptor{Kind: KindSNP, Gene: gene, Position: pos, RefNT: ref, AltNT: alt}, nil
}

// parseChange splits <ref><int><alt>. With optionalRef set the ref letter
// may be absent, in which case ref is 0.
func parseChange(s string, valid func(byte) bool, optionalRef bool) (ref byte, pos int64, alt byte, err error) {
	if len(s) < 2 {
		return 0, 0, 0, fmt.Errorf("change %q is too short", s)
	}
	alt = s[len(s)-1]
	body := s[:len(s)-1]
	if !(optionalRef && body[0] >= '0' && body[0] <= '9') {
		ref, body = body[0], body[1:]
		if !valid(ref) {
			return 0, 0, 0, fmt.Errorf("unrecognized reference letter %q", ref)
		}
	}
	if !valid(alt) {
		return 0, 0, 0, fmt.Errorf("unrecognized alternate letter %q", alt)
	}
	pos, err = parsePositive(body)
	if err != nil {
		return 0, 0, 0, err
	}
	return ref, pos, alt, nil
}

func parsePositive(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("position %d is not positive", n)
	}
	return n, nil
}

// DescriptorReader yields descriptor lines from a watchlist, skipping blank
// lines and '#' comments.
type DescriptorReader struct {
	scanner    *bufio.Scanner
	lineNumber int
}

// NewDescriptorReader creates a reader over r.
func NewDescriptorReader(r io.Reader) *DescriptorReader {
	return &DescriptorReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next descriptor line and its 1-based line number.
// Returns "", 0, nil at end of input.
func (r *DescriptorReader) Next() (string, int, error) {
	for r.scanner.Scan() {
		r.lineNumber++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, r.lineNumber, nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", 0, fmt.Errorf("read descriptors: %w", err)
	}
	return "", 0, nil
}
