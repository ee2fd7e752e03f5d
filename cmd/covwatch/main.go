// Package main provides the covwatch command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/covwatch/internal/logging"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// usageError marks errors caused by bad arguments rather than bad data.
type usageError struct{ error }

func newUsageError(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

func main() {
	os.Exit(run())
}

func run() int {
	a := newApp()
	defer a.close()

	root := newRootCmd(a)
	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var ue usageError
	if errors.As(err, &ue) {
		return ExitUsage
	}
	return ExitError
}

// app carries state shared by subcommands after flag parsing.
type app struct {
	logger  *zap.Logger
	profile interface{ Stop() }
}

func newApp() *app {
	return &app{logger: zap.NewNop()}
}

// close stops a running profile and flushes the logger. It runs whether or
// not the command failed.
func (a *app) close() {
	if a.profile != nil {
		a.profile.Stop()
		a.profile = nil
	}
	a.logger.Sync()
}

func newRootCmd(a *app) *cobra.Command {
	var (
		cfgFile     string
		verbose     bool
		quiet       bool
		profileMode string
	)

	root := &cobra.Command{
		Use:   "covwatch",
		Short: "SARS-CoV-2 watchlist conversion toolkit",
		Long: `covwatch converts mutation watchlists between protein notation
(aa:s:N501Y), nucleotide deletions (del:21765:6) and SNPs (snp:A23403G)
and genome-level VCF records for a SARS-CoV-2 reference.`,
		Example: `  # Convert a watchlist to VCF using a GenBank reference
  covwatch convert --genbank MN908947.3.gb watchlist.txt -o watchlist.vcf

  # Describe VCF records as watchlist descriptors
  covwatch describe --genbank MN908947.3.gb variants.vcf

  # Summarize iVar calls per isolate
  covwatch ivar --genbank MN908947.3.gb sample1.tsv sample2.tsv`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cfgFile); err != nil {
				return err
			}
			l, err := logging.New(logging.Level(verbose, quiet))
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			a.logger = l

			switch profileMode {
			case "":
			case "cpu":
				a.profile = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
			case "mem":
				a.profile = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet)
			default:
				return newUsageError("unknown --profile mode %q (want cpu or mem)", profileMode)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.covwatch.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Only log errors")
	pf.StringVar(&profileMode, "profile", "", "Write a cpu or mem profile to the working directory")
	addReferenceFlags(root)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(newConvertCmd(a))
	root.AddCommand(newDescribeCmd(a))
	root.AddCommand(newIvarCmd(a))
	root.AddCommand(newDefinitionsCmd(a))
	root.AddCommand(newLookupCmd(a))
	root.AddCommand(newDownloadCmd(a))
	root.AddCommand(newCheckUpdatesCmd(a))
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// initConfig loads .env, the config file and COVWATCH_* environment
// variables into viper.
func initConfig(cfgFile string) error {
	// A missing .env is normal.
	_ = godotenv.Load()

	viper.SetEnvPrefix("covwatch")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("convert.workers", 0)
	viper.SetDefault("convert.codon_aligned", false)
	viper.SetDefault("convert.verify_snp_ref", false)
	viper.SetDefault("store.path", "")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".covwatch")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// defaultDataDir is where downloaded reference files are kept.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".covwatch")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "covwatch version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// openOutput returns stdout for an empty path, else creates the file.
func openOutput(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}

// openInput returns stdin for "-", else opens the file.
func openInput(path string) (*os.File, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, f.Close, nil
}
