// Package definition reads PHE variant definition YAML files.
package definition

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inodb/covwatch/internal/reference"
	"github.com/inodb/covwatch/internal/translate"
	"github.com/inodb/covwatch/internal/vcf"
)

// Mutation types used in the variants list.
const (
	TypeSNP       = "SNP"
	TypeMNP       = "MNP"
	TypeDeletion  = "deletion"
	TypeInsertion = "insertion"
)

// INFO keys set on variants built from a definition.
const (
	InfoLabel = "VARIANT"
	InfoGene  = "GENE"
	InfoAA    = "AA"
)

// Mutation is one entry of a definition's variants list. Indels carry the
// anchor base in both alleles, as VCF does.
type Mutation struct {
	Type            string `yaml:"type"`
	Position        int64  `yaml:"one-based-reference-position"`
	ReferenceBase   string `yaml:"reference-base"`
	VariantBase     string `yaml:"variant-base"`
	Gene            string `yaml:"gene,omitempty"`
	AminoAcidChange string `yaml:"amino-acid-change,omitempty"`
	Protein         string `yaml:"protein,omitempty"`
	ProteinCodonPos int64  `yaml:"protein-codon-position,omitempty"`
}

// Definition is one PHE variant definition.
type Definition struct {
	PHELabel    string     `yaml:"phe-label"`
	WHOLabel    string     `yaml:"who-label,omitempty"`
	UniqueID    string     `yaml:"unique-id"`
	Description string     `yaml:"description,omitempty"`
	Belongs     string     `yaml:"belongs-to-lineage,omitempty"`
	Mutations   []Mutation `yaml:"variants"`
}

// Label returns the WHO label when set, else the PHE label.
func (d *Definition) Label() string {
	if d.WHOLabel != "" {
		return d.WHOLabel
	}
	return d.PHELabel
}

// Parse decodes a definition and checks every mutation's alleles.
func Parse(r io.Reader) (*Definition, error) {
	var def Definition
	if err := yaml.NewDecoder(r).Decode(&def); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	if def.PHELabel == "" && def.UniqueID == "" {
		return nil, fmt.Errorf("definition has neither phe-label nor unique-id")
	}
	for i := range def.Mutations {
		if err := def.Mutations[i].validate(); err != nil {
			return nil, fmt.Errorf("%s variant %d: %w", def.PHELabel, i+1, err)
		}
	}
	return &def, nil
}

// Load reads a definition from a YAML file.
func Load(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open definition: %w", err)
	}
	defer f.Close()

	def, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

func (m *Mutation) validate() error {
	m.ReferenceBase = strings.ToUpper(m.ReferenceBase)
	m.VariantBase = strings.ToUpper(m.VariantBase)
	ref, alt := m.ReferenceBase, m.VariantBase

	if m.Position < 1 {
		return fmt.Errorf("invalid position %d", m.Position)
	}
	for _, s := range []string{ref, alt} {
		if s == "" {
			return fmt.Errorf("empty allele at %d", m.Position)
		}
		for i := 0; i < len(s); i++ {
			if !translate.IsNucleotide(s[i]) {
				return fmt.Errorf("invalid allele %q at %d", s, m.Position)
			}
		}
	}

	var ok bool
	switch m.Type {
	case TypeSNP:
		ok = len(ref) == 1 && len(alt) == 1
	case TypeMNP:
		ok = len(ref) == len(alt) && len(ref) > 1
	case TypeDeletion:
		ok = len(ref) > len(alt) && ref[0] == alt[0]
	case TypeInsertion:
		ok = len(alt) > len(ref) && ref[0] == alt[0]
	default:
		return fmt.Errorf("unknown mutation type %q", m.Type)
	}
	if !ok {
		return fmt.Errorf("%s alleles %s>%s at %d do not match the type", m.Type, ref, alt, m.Position)
	}
	return nil
}

// Variants converts the definition to VCF records on contig, sorted by
// position.
func (d *Definition) Variants(contig string) []*vcf.Variant {
	out := make([]*vcf.Variant, 0, len(d.Mutations))
	for _, m := range d.Mutations {
		info := map[string]any{InfoLabel: d.PHELabel}
		if m.Gene != "" {
			info[InfoGene] = m.Gene
		}
		if m.AminoAcidChange != "" {
			info[InfoAA] = m.AminoAcidChange
		}
		out = append(out, &vcf.Variant{
			Chrom:  contig,
			Pos:    m.Position,
			ID:     ".",
			Ref:    m.ReferenceBase,
			Alt:    m.VariantBase,
			Filter: "PASS",
			Info:   info,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })
	return out
}

// Verify checks every mutation's reference allele against the genome.
func (d *Definition) Verify(ref *reference.Annotation) error {
	var bad []string
	for _, m := range d.Mutations {
		end := m.Position + int64(len(m.ReferenceBase)) - 1
		got, ok := ref.Slice(m.Position, end)
		if !ok {
			bad = append(bad, fmt.Sprintf("%d: outside the genome", m.Position))
			continue
		}
		if got != m.ReferenceBase {
			bad = append(bad, fmt.Sprintf("%d: expected %s, genome has %s", m.Position, m.ReferenceBase, got))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%s reference mismatch: %s", d.PHELabel, strings.Join(bad, "; "))
	}
	return nil
}

// Descriptors describes each variant of the definition as a watchlist
// descriptor. Mutations with no descriptor form (insertions, MNPs) are
// returned as errors alongside the descriptors that could be built.
func (d *Definition) Descriptors(tr *translate.Translator) ([]string, []error) {
	var descs []string
	var errs []error
	for _, v := range d.Variants(tr.Reference().Contig()) {
		desc, err := tr.Describe(v)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		descs = append(descs, desc.String())
	}
	return descs, errs
}
