package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/covwatch/internal/duckdb"
)

func newLookupCmd(a *app) *cobra.Command {
	var (
		gene     string
		runs     bool
		failures string
		deleteID string
	)

	cmd := &cobra.Command{
		Use:   "lookup [options] [descriptor]",
		Short: "Query conversions recorded with convert --store",
		Long: `Query the DuckDB store written by 'convert --store'.

With a descriptor argument, print the stored variants for it. Other modes:
  --gene <name>       variants of every descriptor in a gene
  --runs              list recorded runs, flagging inputs changed since
  --failures <run>    count failures of a run by reason
  --delete <run>      remove a run and its rows`,
		Example: `  covwatch lookup --store runs.duckdb aa:s:N501Y
  covwatch lookup --store runs.duckdb --gene orf1ab
  covwatch lookup --store runs.duckdb --runs`,
		Args: cobra.MaximumNArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			viper.BindPFlag("store.path", cmd.Flags().Lookup("store"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("store.path")
			if path == "" {
				return newUsageError("no store given: use --store or set store.path")
			}

			modes := 0
			for _, on := range []bool{len(args) == 1, gene != "", runs, failures != "", deleteID != ""} {
				if on {
					modes++
				}
			}
			if modes != 1 {
				return newUsageError("give exactly one of a descriptor, --gene, --runs, --failures or --delete")
			}

			store, err := duckdb.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			switch {
			case runs:
				return listRuns(out, store)
			case failures != "":
				return listFailures(out, store, failures)
			case deleteID != "":
				if err := store.DeleteRun(deleteID); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted run %s\n", deleteID)
				return nil
			case gene != "":
				vs, err := store.SearchByGene(gene)
				if err != nil {
					return err
				}
				return writeStoredVariants(out, vs)
			default:
				vs, err := store.LookupDescriptor(args[0])
				if err != nil {
					return err
				}
				if len(vs) == 0 {
					return fmt.Errorf("%s not found in %s", args[0], path)
				}
				return writeStoredVariants(out, vs)
			}
		},
	}

	f := cmd.Flags()
	f.String("store", "", "DuckDB file written by convert --store")
	f.StringVar(&gene, "gene", "", "List variants of descriptors in this gene")
	f.BoolVar(&runs, "runs", false, "List recorded runs")
	f.StringVar(&failures, "failures", "", "Count failures of this run by reason")
	f.StringVar(&deleteID, "delete", "", "Delete this run")

	return cmd
}

func writeStoredVariants(out io.Writer, vs []duckdb.StoredVariant) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DESCRIPTOR\tCHROM\tPOS\tREF\tALT\tGENE\tCODON\tALT_CODONS\tRUN")
	for _, v := range vs {
		codon := "-"
		if v.Codon > 0 {
			codon = fmt.Sprint(v.Codon)
		}
		gene := v.Gene
		if gene == "" {
			gene = "-"
		}
		alts := "-"
		if len(v.AltCodons) > 0 {
			alts = strings.Join(v.AltCodons, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Descriptor, v.Chrom, v.Pos, v.Ref, v.Alt, gene, codon, alts, v.RunID)
	}
	return tw.Flush()
}

func listRuns(out io.Writer, store *duckdb.Store) error {
	rs, err := store.Runs()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tINPUT\tCONVERTED\tNOOP\tSKIPPED\tSTATUS")
	for i := range rs {
		r := &rs[i]
		status := "current"
		if duckdb.InputChanged(r) {
			status = "input changed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Input,
			r.Converted, r.NoOp, r.Skipped, status)
	}
	return tw.Flush()
}

func listFailures(out io.Writer, store *duckdb.Store, runID string) error {
	counts, err := store.FailureCounts(runID)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Fprintf(out, "No failures recorded for run %s\n", runID)
		return nil
	}
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(out, "%s\t%d\n", r, counts[r])
	}
	return nil
}
