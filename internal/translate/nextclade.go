package translate

import "strings"

// ParseNextclade parses a nextclade amino-acid token such as "S:N501Y" or
// "S:H69-". A trailing '-' is a single-codon deletion.
func ParseNextclade(token string) (Descriptor, error) {
	token = strings.TrimSpace(token)
	gene, change, ok := strings.Cut(token, ":")
	if !ok || gene == "" || len(change) < 3 {
		return Descriptor{}, newError(KindMalformedDescriptor, token, "expected <gene>:<ref><pos><alt>")
	}
	gene = strings.ToLower(gene)
	change = strings.ToUpper(change)

	if strings.HasSuffix(change, "-") {
		ref := change[0]
		if !IsAminoAcid(ref) {
			return Descriptor{}, newError(KindMalformedDescriptor, token, "unrecognized reference letter %q", ref)
		}
		pos, err := parsePositive(change[1 : len(change)-1])
		if err != nil {
			return Descriptor{}, newError(KindMalformedDescriptor, token, "%v", err)
		}
		return Descriptor{
			Kind:     KindAminoAcidDeletion,
			Gene:     gene,
			Position: pos,
			Length:   1,
			RefAA:    ref,
			Raw:      token,
		}, nil
	}

	ref, pos, alt, err := parseChange(change, IsAminoAcid, false)
	if err != nil {
		return Descriptor{}, newError(KindMalformedDescriptor, token, "%v", err)
	}
	return Descriptor{
		Kind:     KindAminoAcid,
		Gene:     gene,
		Position: pos,
		RefAA:    ref,
		AltAA:    alt,
		Raw:      token,
	}, nil
}

// ParseNextcladeList parses a comma-separated nextclade substitution or
// deletion column, as found in nextclade TSV output.
func ParseNextcladeList(column string) ([]Descriptor, error) {
	var out []Descriptor
	for _, tok := range strings.Split(column, ",") {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		d, err := ParseNextclade(tok)
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
	return out, nil
}
