package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/covwatch/internal/reference"
	"github.com/inodb/covwatch/internal/translate"
)

func addReferenceFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.String("genbank", "", "GenBank reference with CDS features")
	pf.String("gff", "", "GFF3 annotation (with --fasta unless it embeds ##FASTA)")
	pf.String("fasta", "", "FASTA reference; alone, uses the built-in MN908947.3 gene table")

	viper.BindPFlag("reference.genbank", pf.Lookup("genbank"))
	viper.BindPFlag("reference.gff", pf.Lookup("gff"))
	viper.BindPFlag("reference.fasta", pf.Lookup("fasta"))
}

// loadReference picks the reference source from flags and config:
// GenBank, then GFF3 (+FASTA), then FASTA with the built-in gene table, then
// a GenBank file previously fetched by the download command.
func loadReference(logger *zap.Logger) (*reference.Annotation, error) {
	genbank := viper.GetString("reference.genbank")
	gff := viper.GetString("reference.gff")
	fasta := viper.GetString("reference.fasta")

	var (
		ref    *reference.Annotation
		err    error
		source string
	)
	switch {
	case genbank != "":
		source = genbank
		ref, err = reference.LoadGenBank(genbank)
	case gff != "":
		source = gff
		ref, err = reference.LoadGFF3(gff, fasta)
	case fasta != "":
		source = fasta
		ref, err = reference.LoadBuiltin(fasta)
	default:
		source = downloadedGenBank()
		if _, statErr := os.Stat(source); statErr != nil {
			return nil, newUsageError("no reference given: use --genbank, --gff or --fasta, or run 'covwatch download'")
		}
		ref, err = reference.LoadGenBank(source)
	}
	if err != nil {
		return nil, fmt.Errorf("load reference %s: %w", source, err)
	}

	logger.Info("loaded reference",
		zap.String("source", source),
		zap.String("contig", ref.Contig()),
		zap.Int64("length", ref.Len()),
		zap.Strings("genes", ref.GeneNames()))
	return ref, nil
}

func downloadedGenBank() string {
	return filepath.Join(defaultDataDir(), reference.MN908947Accession+".gb")
}

// newTranslator loads the reference and applies convert.* settings.
func newTranslator(logger *zap.Logger) (*translate.Translator, error) {
	ref, err := loadReference(logger)
	if err != nil {
		return nil, err
	}
	tr := translate.NewTranslator(ref)
	tr.SetLogger(logger)
	tr.SetOptions(translate.Options{
		RequireCodonAligned: viper.GetBool("convert.codon_aligned"),
		VerifySNPRef:        viper.GetBool("convert.verify_snp_ref"),
		Workers:             viper.GetInt("convert.workers"),
	})
	return tr, nil
}
