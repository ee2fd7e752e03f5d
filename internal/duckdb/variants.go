package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/covwatch/internal/translate"
)

// StoredVariant is one converted_variants row.
type StoredVariant struct {
	RunID      string
	Descriptor string
	Kind       string
	Gene       string
	Codon      int64
	Chrom      string
	Pos        int64
	Ref        string
	Alt        string
	AltCodons  []string
}

// variantKey is the row identity used for deduplicating within one write.
type variantKey struct {
	descriptor, chrom, ref, alt string
	pos                         int64
}

// appendRows opens an Appender on table and calls fn with it.
func (s *Store) appendRows(table string, fn func(*goduckdb.Appender) error) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// WriteResults batch-inserts the variants of conversion results using the
// Appender API. A descriptor listed twice in the input is stored once.
func (s *Store) WriteResults(runID string, results []*translate.Result) error {
	if len(results) == 0 {
		return nil
	}

	seen := make(map[variantKey]bool)
	return s.appendRows("converted_variants", func(a *goduckdb.Appender) error {
		for _, res := range results {
			desc := res.Descriptor.String()
			for _, v := range res.Variants {
				k := variantKey{desc, v.Chrom, v.Ref, v.Alt, v.Pos}
				if seen[k] {
					continue
				}
				seen[k] = true
				if err := a.AppendRow(
					runID, desc, res.Descriptor.Kind.String(), res.Gene, res.Codon,
					v.Chrom, v.Pos, v.Ref, v.Alt, strings.Join(res.CodonsWith(v), ","),
				); err != nil {
					return fmt.Errorf("append variant: %w", err)
				}
			}
		}
		return nil
	})
}

// WriteFailures batch-inserts descriptors that produced no variants.
func (s *Store) WriteFailures(runID string, failures []translate.Failure) error {
	if len(failures) == 0 {
		return nil
	}

	return s.appendRows("conversion_failures", func(a *goduckdb.Appender) error {
		for _, f := range failures {
			msg := ""
			if f.Err != nil {
				msg = f.Err.Error()
			}
			if err := a.AppendRow(runID, f.Descriptor, int32(f.Line), f.Kind.String(), msg); err != nil {
				return fmt.Errorf("append failure: %w", err)
			}
		}
		return nil
	})
}

const variantColumns = `run_id, descriptor, kind, gene, codon, chrom, pos, ref, alt, alt_codons`

// LookupDescriptor returns every stored variant converted from descriptor.
// The descriptor is parsed first so equivalent spellings match.
func (s *Store) LookupDescriptor(descriptor string) ([]StoredVariant, error) {
	d, err := translate.ParseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT `+variantColumns+`
		FROM converted_variants
		WHERE descriptor=?
		ORDER BY pos, alt`, d.String())
	if err != nil {
		return nil, fmt.Errorf("query descriptor: %w", err)
	}
	defer rows.Close()

	return scanStoredVariants(rows)
}

// SearchByGene returns every stored variant converted from a descriptor on
// gene.
func (s *Store) SearchByGene(gene string) ([]StoredVariant, error) {
	rows, err := s.db.Query(`SELECT `+variantColumns+`
		FROM converted_variants
		WHERE gene=?
		ORDER BY codon, pos, alt`, strings.ToLower(gene))
	if err != nil {
		return nil, fmt.Errorf("query by gene: %w", err)
	}
	defer rows.Close()

	return scanStoredVariants(rows)
}

// FailureCounts returns the number of failed descriptors per reason for a run.
func (s *Store) FailureCounts(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT reason, count(*)
		FROM conversion_failures
		WHERE run_id=?
		GROUP BY reason`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int64
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scan failure count: %w", err)
		}
		counts[reason] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failure counts: %w", err)
	}
	return counts, nil
}

// scanStoredVariants scans rows into StoredVariant slices.
func scanStoredVariants(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]StoredVariant, error) {
	var out []StoredVariant
	for rows.Next() {
		var v StoredVariant
		var codons string
		if err := rows.Scan(
			&v.RunID, &v.Descriptor, &v.Kind, &v.Gene, &v.Codon,
			&v.Chrom, &v.Pos, &v.Ref, &v.Alt, &codons,
		); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if codons != "" {
			v.AltCodons = strings.Split(codons, ",")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return out, nil
}
