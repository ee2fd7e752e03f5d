package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/covwatch/internal/definition"
	"github.com/inodb/covwatch/internal/output"
	"github.com/inodb/covwatch/internal/translate"
)

func newDefinitionsCmd(a *app) *cobra.Command {
	var (
		outputFile   string
		outputFormat string
		strict       bool
	)

	cmd := &cobra.Command{
		Use:   "definitions [options] <definition.yml>...",
		Short: "Convert variant definition YAML files",
		Long: `Read phe-genomics style variant definitions and write their mutations as
VCF records (INFO VARIANT, GENE, AA) or as watchlist descriptors.

Each definition's reference alleles are checked against the genome. A
mismatch is logged, or fails the command with --strict.`,
		Example: `  covwatch definitions --genbank MN908947.3.gb alpha.yml delta.yml -o definitions.vcf
  covwatch definitions -f descriptor --strict variant_definitions/*.yml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFormat != "vcf" && outputFormat != "descriptor" {
				return newUsageError("unknown output format %q (want vcf or descriptor)", outputFormat)
			}

			tr, err := newTranslator(a.logger)
			if err != nil {
				return err
			}
			ref := tr.Reference()

			defs := make([]*definition.Definition, 0, len(args))
			for _, path := range args {
				def, err := definition.Load(path)
				if err != nil {
					return err
				}
				if err := def.Verify(ref); err != nil {
					if strict {
						return fmt.Errorf("%s: %w", path, err)
					}
					a.logger.Warn("definition does not match reference", zap.String("file", path), zap.Error(err))
				}
				defs = append(defs, def)
			}

			out, closeOut, err := openOutput(outputFile)
			if err != nil {
				return err
			}
			defer closeOut()

			if outputFormat == "descriptor" {
				w := bufio.NewWriter(out)
				for _, def := range defs {
					descs, errs := def.Descriptors(tr)
					for _, e := range errs {
						a.logger.Warn("mutation has no descriptor form",
							zap.String("definition", def.Label()),
							zap.Stringer("reason", translate.KindOf(e)), zap.Error(e))
					}
					for _, d := range descs {
						fmt.Fprintf(w, "%s\t%s\n", def.Label(), d)
					}
				}
				return w.Flush()
			}

			vw := output.NewVCFWriter(out, ref.Contig(), ref.Len())
			vw.AddHeaderLine(`##INFO=<ID=` + definition.InfoLabel + `,Number=1,Type=String,Description="Variant definition label">`)
			vw.AddHeaderLine(`##INFO=<ID=` + definition.InfoAA + `,Number=1,Type=String,Description="Amino-acid change">`)
			if err := vw.WriteHeader(); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
			for _, def := range defs {
				for _, v := range def.Variants(ref.Contig()) {
					if err := vw.WriteVariant(v); err != nil {
						return fmt.Errorf("write variant: %w", err)
					}
				}
			}
			return vw.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	f.StringVarP(&outputFormat, "output-format", "f", "vcf", "Output format: vcf, descriptor")
	f.BoolVar(&strict, "strict", false, "Fail when a reference allele does not match the genome")

	return cmd
}
