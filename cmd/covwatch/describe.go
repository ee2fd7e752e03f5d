package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/covwatch/internal/ivar"
	"github.com/inodb/covwatch/internal/output"
	"github.com/inodb/covwatch/internal/translate"
	"github.com/inodb/covwatch/internal/vcf"
)

func newDescribeCmd(a *app) *cobra.Command {
	var (
		outputFile  string
		inputFormat string
		validate    bool
		validateAll bool
	)

	cmd := &cobra.Command{
		Use:   "describe [options] <input>",
		Short: "Describe VCF records as watchlist descriptors",
		Long: `Describe each record of a VCF file as a watchlist descriptor: deletions
become del:, residue-changing SNPs aa: and other SNPs snp:. Insertions and
multi-base substitutions have no descriptor form and are skipped. iVar
variants.tsv files are read as well.

With --validate, the DESC INFO value of each record (as written by convert)
is compared with the descriptor derived from the record itself.`,
		Example: `  covwatch describe --genbank MN908947.3.gb variants.vcf
  covwatch describe --genbank MN908947.3.gb --validate watchlist.vcf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := inputFormat
			if format == "" {
				format = detectInputFormat(args[0])
			}

			var parser vcf.VariantParser
			var err error
			switch format {
			case "vcf":
				parser, err = vcf.NewParser(args[0])
			case "ivar":
				parser, err = ivar.NewParser(args[0])
			default:
				return newUsageError("unknown input format %q (want vcf or ivar)", format)
			}
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("%w (check that the file path is correct)", err)
				}
				return err
			}
			defer parser.Close()

			tr, err := newTranslator(a.logger)
			if err != nil {
				return err
			}

			out, closeOut, err := openOutput(outputFile)
			if err != nil {
				return err
			}
			defer closeOut()

			if validate || validateAll {
				return runValidation(parser, tr, out, validateAll)
			}
			return runDescribe(parser, tr, out, a.logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	f.StringVar(&inputFormat, "input-format", "", "Input format: vcf, ivar (auto-detected if not specified)")
	f.BoolVar(&validate, "validate", false, "Compare each record's DESC with its derived descriptor")
	f.BoolVar(&validateAll, "validate-all", false, "Show all records in validation output (default: mismatches only)")

	return cmd
}

// runDescribe writes one descriptor per distinct record in input order.
func runDescribe(parser vcf.VariantParser, tr *translate.Translator, out io.Writer, logger *zap.Logger) error {
	w := bufio.NewWriter(out)
	seen := make(map[string]bool)
	var described, skipped int

	for {
		rec, err := parser.Next()
		if err != nil {
			return fmt.Errorf("read variant: %w", err)
		}
		if rec == nil {
			break
		}

		for _, v := range vcf.SplitMultiAllelic(rec) {
			d, err := tr.Describe(v)
			if err != nil {
				skipped++
				logger.Warn("skipping record",
					zap.Int("line", parser.LineNumber()), zap.String("variant", v.Key()),
					zap.Stringer("reason", translate.KindOf(err)), zap.Error(err))
				continue
			}
			desc := d.String()
			if seen[desc] {
				continue
			}
			seen[desc] = true
			described++
			if _, err := fmt.Fprintln(w, desc); err != nil {
				return err
			}
		}
	}

	logger.Info("described records", zap.Int("descriptors", described), zap.Int("skipped", skipped))
	return w.Flush()
}

// runValidation compares the DESC each record claims with the descriptor
// derived from it.
func runValidation(parser vcf.VariantParser, tr *translate.Translator, out io.Writer, showAll bool) error {
	valWriter := output.NewValidationWriter(out, showAll)

	if err := valWriter.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for {
		rec, err := parser.Next()
		if err != nil {
			return fmt.Errorf("read variant: %w", err)
		}
		if rec == nil {
			break
		}

		for _, v := range vcf.SplitMultiAllelic(rec) {
			d, derr := tr.Describe(v)
			if err := valWriter.WriteComparison(v, v.InfoString(output.InfoDesc), d, derr); err != nil {
				return fmt.Errorf("write comparison: %w", err)
			}
		}
	}

	if err := valWriter.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	valWriter.WriteSummary(os.Stderr)
	return nil
}

// detectInputFormat detects the input file format based on extension or content.
func detectInputFormat(path string) string {
	lowerPath := strings.ToLower(path)

	// Handle gzipped files
	lowerPath = strings.TrimSuffix(lowerPath, ".gz")

	if strings.HasSuffix(lowerPath, ".vcf") {
		return "vcf"
	}
	if path == "-" {
		return "vcf"
	}

	file, err := os.Open(path)
	if err != nil {
		return "vcf"
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil || n == 0 {
		return "vcf"
	}
	content := string(buf[:n])

	if strings.HasPrefix(content, "##fileformat=VCF") || strings.HasPrefix(content, "#CHROM") {
		return "vcf"
	}
	if strings.HasPrefix(content, ivar.ColRegion+"\t") && strings.Contains(content, ivar.ColAltFreq) {
		return "ivar"
	}
	return "vcf"
}
