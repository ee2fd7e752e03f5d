package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type valueKind int

const (
	kindPath valueKind = iota
	kindBool
	kindCount
)

func (k valueKind) String() string {
	switch k {
	case kindBool:
		return "bool"
	case kindCount:
		return "int"
	default:
		return "path"
	}
}

// configKey is a setting covwatch reads through viper.
type configKey struct {
	name string
	kind valueKind
	help string
}

var configKeys = []configKey{
	{"reference.genbank", kindPath, "GenBank reference used when no reference flag is given"},
	{"reference.gff", kindPath, "GFF3 annotation used when no reference flag is given"},
	{"reference.fasta", kindPath, "FASTA reference, with the GFF3 or the built-in gene table"},
	{"convert.workers", kindCount, "conversion workers, 0 for one per CPU"},
	{"convert.codon_aligned", kindBool, "reject deletions that are not whole codons"},
	{"convert.verify_snp_ref", kindBool, "reject SNPs whose reference base differs from the genome"},
	{"store.path", kindPath, "DuckDB file used by convert --store and lookup"},
}

func lookupConfigKey(name string) (configKey, error) {
	name = strings.ToLower(name)
	for _, k := range configKeys {
		if k.name == name {
			return k, nil
		}
	}
	return configKey{}, newUsageError("unknown config key %q (see 'covwatch config keys')", name)
}

// parse converts a command-line value to the type viper hands back for k.
func (k configKey) parse(value string) (any, error) {
	switch k.kind {
	case kindBool:
		switch strings.ToLower(value) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return nil, newUsageError("%s takes true or false, got %q", k.name, value)
	case kindCount:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, newUsageError("%s takes a non-negative integer, got %q", k.name, value)
		}
		return n, nil
	default:
		if value == "" {
			return "", nil
		}
		if strings.HasPrefix(value, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				value = filepath.Join(home, value[2:])
			}
		}
		return value, nil
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage covwatch configuration",
		Long: `Show, get, or set configuration values. Config is stored in ~/.covwatch.yaml.
Values can also come from COVWATCH_* environment variables (COVWATCH_STORE_PATH)
or a .env file in the working directory.`,
		Example: `  covwatch config                                   # show effective settings
  covwatch config keys                              # list known keys
  covwatch config set reference.genbank ~/ref/MN908947.3.gb
  covwatch config set convert.codon_aligned true
  covwatch config get store.path`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeConfigSettings(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "List the configuration keys covwatch reads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, k := range configKeys {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", k.name, k.kind, k.help)
			}
			return tw.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := lookupConfigKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), viper.Get(k.name))
			return nil
		},
	})

	return cmd
}

// writeConfigSettings prints the effective value of every known key,
// whichever of flag, environment, file or default it came from.
func writeConfigSettings(w io.Writer) error {
	settings := make(map[string]map[string]any)
	for _, k := range configKeys {
		section, name, _ := strings.Cut(k.name, ".")
		if settings[section] == nil {
			settings[section] = make(map[string]any)
		}
		settings[section][name] = viper.Get(k.name)
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(w, "# No config file. Settings are written to ~/.covwatch.yaml")
	}
	_, err = w.Write(out)
	return err
}

func runConfigSet(w io.Writer, key, value string) error {
	k, err := lookupConfigKey(key)
	if err != nil {
		return err
	}
	v, err := k.parse(value)
	if err != nil {
		return err
	}

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".covwatch.yaml")
	}

	if err := setConfigValue(cfgFile, k.name, v); err != nil {
		return err
	}
	viper.Set(k.name, v)

	fmt.Fprintf(w, "Set %s = %v in %s\n", k.name, v, cfgFile)
	return nil
}

// setConfigValue rewrites path with key set to value, keeping the other
// settings in the file. Flags, environment and defaults are not written.
func setConfigValue(path, key string, value any) error {
	settings := make(map[string]any)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
		if settings == nil {
			settings = make(map[string]any)
		}
	}

	section, name, _ := strings.Cut(key, ".")
	sub, ok := settings[section].(map[string]any)
	if !ok {
		sub = make(map[string]any)
		settings[section] = sub
	}
	sub[name] = value

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
