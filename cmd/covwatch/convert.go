package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/covwatch/internal/duckdb"
	"github.com/inodb/covwatch/internal/output"
	"github.com/inodb/covwatch/internal/translate"
)

// resultWriter is implemented by the VCF and tab writers.
type resultWriter interface {
	WriteHeader() error
	Flush() error
}

func newConvertCmd(a *app) *cobra.Command {
	var (
		outputFile   string
		outputFormat string
		inputFormat  string
		minimal      bool
	)

	cmd := &cobra.Command{
		Use:   "convert [options] <watchlist>",
		Short: "Convert watchlist descriptors to nucleotide variants",
		Long: `Convert a watchlist of descriptors, one per line, to genome-level variants.

Descriptor forms:
  aa:<gene>:<ref><codon><alt>     amino-acid change, e.g. aa:s:N501Y
  aadel:<gene>:<ref><codon>:<n>   deletion of n codons, e.g. aadel:s:H69:2
  del:<pos>:<length>              deletion starting at the first deleted base
  snp:<ref><pos><alt>             nucleotide substitution, e.g. snp:A23403G

Blank lines and lines starting with '#' are skipped. A descriptor that cannot
be converted is reported and the rest of the watchlist is still converted.`,
		Example: `  covwatch convert --genbank MN908947.3.gb watchlist.txt
  covwatch convert --fasta MN908947.3.fasta -f tab watchlist.txt
  covwatch convert --input-format nextclade -o out.vcf aa_substitutions.txt
  cat watchlist.txt | covwatch convert --genbank MN908947.3.gb -`,
		Args: cobra.ExactArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			f := cmd.Flags()
			viper.BindPFlag("convert.workers", f.Lookup("workers"))
			viper.BindPFlag("convert.codon_aligned", f.Lookup("codon-aligned"))
			viper.BindPFlag("convert.verify_snp_ref", f.Lookup("verify-snp-ref"))
			viper.BindPFlag("store.path", f.Lookup("store"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(a, args[0], outputFile, outputFormat, inputFormat, minimal)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	f.StringVarP(&outputFormat, "output-format", "f", "vcf", "Output format: vcf, tab")
	f.StringVar(&inputFormat, "input-format", "descriptor", "Input format: descriptor, nextclade")
	f.BoolVar(&minimal, "minimal", false, "Only keep the alternate codons needing the fewest edits")
	f.Int("workers", 0, "Conversion workers (default: number of CPUs)")
	f.Bool("codon-aligned", false, "Reject deletions whose length is not a multiple of 3")
	f.Bool("verify-snp-ref", false, "Reject SNPs whose reference base differs from the genome")
	f.String("store", "", "DuckDB file to record the run in")

	return cmd
}

func runConvert(a *app, inputPath, outputFile, outputFormat, inputFormat string, minimal bool) error {
	if outputFormat != "vcf" && outputFormat != "tab" {
		return newUsageError("unknown output format %q", outputFormat)
	}

	in, closeIn, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer closeIn()

	var src io.Reader = in
	switch inputFormat {
	case "descriptor":
	case "nextclade":
		if src, err = nextcladeToDescriptors(in, a.logger); err != nil {
			return err
		}
	default:
		return newUsageError("unknown input format %q", inputFormat)
	}

	tr, err := newTranslator(a.logger)
	if err != nil {
		return err
	}
	ref := tr.Reference()

	out, closeOut, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer closeOut()

	var (
		writer resultWriter
		write  func(*translate.Result) error
	)
	switch outputFormat {
	case "vcf":
		vw := output.NewVCFWriter(out, ref.Contig(), ref.Len())
		vw.AddHeaderLine("##covwatchCommand=convert " + inputPath)
		writer, write = vw, vw.WriteResult
	case "tab":
		tw := output.NewTabWriter(out)
		writer, write = tw, tw.Write
	}
	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var store *duckdb.Store
	var run *duckdb.Run
	var stored []*translate.Result
	if path := viper.GetString("store.path"); path != "" {
		if store, err = duckdb.Open(path); err != nil {
			return err
		}
		defer store.Close()
		if run, err = store.StartRun(inputPath, ref.Contig()); err != nil {
			return err
		}
		// A run that did not finish has no counts; drop it rather than
		// leave it looking like an empty conversion.
		defer func() {
			if run == nil {
				return
			}
			if derr := store.DeleteRun(run.ID); derr != nil {
				a.logger.Warn("could not delete unfinished run", zap.String("run_id", run.ID), zap.Error(derr))
			}
		}()
	}

	sum, err := tr.ConvertAll(src, func(res *translate.Result) error {
		if minimal && len(res.Candidates) > 0 {
			res.Candidates = translate.Minimal(res.Candidates)
			res.Variants = translate.Flatten(res.Candidates)
		}
		if store != nil {
			stored = append(stored, res)
		}
		return write(res)
	})
	if err != nil {
		return fmt.Errorf("convert %s: %w", inputPath, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	if store != nil {
		if err := store.WriteResults(run.ID, stored); err != nil {
			return err
		}
		if err := store.FinishRun(run, sum); err != nil {
			return err
		}
		a.logger.Info("recorded run", zap.String("run_id", run.ID), zap.String("store", store.Path()))
		run = nil
	}

	return output.WriteSummary(os.Stderr, sum)
}

// nextcladeToDescriptors rewrites comma-separated nextclade substitutions
// (S:N501Y,ORF1a:T1001I) as one descriptor per line. Tokens that do not
// parse are kept so the batch reports them with the other failures.
func nextcladeToDescriptors(r io.Reader, logger *zap.Logger) (io.Reader, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, tok := range strings.Split(line, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			d, err := translate.ParseNextclade(tok)
			if err != nil {
				logger.Debug("keeping unparsed nextclade token", zap.String("token", tok), zap.Error(err))
				b.WriteString(tok)
			} else {
				b.WriteString(d.String())
			}
			b.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read nextclade list: %w", err)
	}
	return strings.NewReader(b.String()), nil
}
