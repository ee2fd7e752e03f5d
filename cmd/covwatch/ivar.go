package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/covwatch/internal/ivar"
)

func newIvarCmd(a *app) *cobra.Command {
	var (
		outputFile string
		passOnly   bool
		minFreq    float64
		table      bool
	)

	cmd := &cobra.Command{
		Use:   "ivar [options] <variants.tsv>...",
		Short: "Summarize iVar variant calls per isolate",
		Long: `Describe the calls of one or more iVar variants.tsv files as watchlist
descriptors and list the distinct mutations of each isolate. The isolate name
is the file name without its extension.

With --table, every kept call is printed with its iVar columns and the
descriptor it was given.`,
		Example: `  covwatch ivar --genbank MN908947.3.gb sample1.tsv sample2.tsv
  covwatch ivar --pass-only --min-freq 0.75 --table calls/*.tsv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minFreq < 0 || minFreq > 1 {
				return newUsageError("--min-freq must be between 0 and 1, got %g", minFreq)
			}

			tr, err := newTranslator(a.logger)
			if err != nil {
				return err
			}

			s := ivar.NewSummarizer(tr, ivar.Options{PassOnly: passOnly, MinFreq: minFreq})
			s.SetLogger(a.logger)

			isolates, err := s.SummarizeFiles(args)
			if err != nil {
				return err
			}

			var skipped int
			for _, iso := range isolates {
				skipped += iso.Skipped
			}
			a.logger.Info("summarized isolates",
				zap.Int("isolates", len(isolates)), zap.Int("skipped_calls", skipped))

			out, closeOut, err := openOutput(outputFile)
			if err != nil {
				return err
			}
			defer closeOut()

			if table {
				err = ivar.WriteTable(out, isolates)
			} else {
				err = ivar.WriteSummary(out, isolates)
			}
			if err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			if skipped > 0 {
				fmt.Fprintf(os.Stderr, "%d call(s) had no descriptor form and were skipped\n", skipped)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	f.BoolVar(&passOnly, "pass-only", false, "Drop calls whose PASS column is FALSE")
	f.Float64Var(&minFreq, "min-freq", 0, "Drop calls with ALT_FREQ below this value")
	f.BoolVar(&table, "table", false, "Print one row per call instead of a per-isolate summary")

	return cmd
}
