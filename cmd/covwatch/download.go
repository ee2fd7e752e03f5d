package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/covwatch/internal/reference"
)

// NCBI efetch URL for the annotated reference record.
const genbankURLFormat = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi?db=nuccore&id=%s&rettype=gbwithparts&retmode=text"

func newDownloadCmd(a *app) *cobra.Command {
	var (
		outputDir string
		accession string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "download [options]",
		Short: "Download the reference GenBank record",
		Long: `Download the GenBank record of the SARS-CoV-2 reference from NCBI.

Commands given no --genbank, --gff or --fasta use the downloaded
~/.covwatch/MN908947.3.gb.`,
		Example: `  covwatch download
  covwatch download --output /data/ref`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				outputDir = defaultDataDir()
				if outputDir == "" {
					return fmt.Errorf("cannot determine home directory")
				}
			}
			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", outputDir, err)
			}

			dest := filepath.Join(outputDir, accession+".gb")
			if force {
				os.Remove(dest)
			}

			fmt.Printf("Downloading %s GenBank record...\n", accession)
			fmt.Printf("Destination: %s\n\n", outputDir)

			if err := downloadFile(fmt.Sprintf(genbankURLFormat, accession), dest); err != nil {
				return fmt.Errorf("download GenBank: %w", err)
			}

			// Catch HTML error pages saved with a 200 status.
			ref, err := reference.LoadGenBank(dest)
			if err != nil {
				os.Remove(dest)
				return fmt.Errorf("downloaded file is not a usable GenBank record: %w", err)
			}
			a.logger.Info("reference ready",
				zap.String("contig", ref.Contig()), zap.Strings("genes", ref.GeneNames()))

			fmt.Printf("\nDownload complete!\n")
			fmt.Printf("To convert a watchlist, run:\n")
			fmt.Printf("  covwatch convert watchlist.txt\n")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&outputDir, "output", "", "Output directory (default: ~/.covwatch/)")
	f.StringVar(&accession, "accession", reference.MN908947Accession, "Nucleotide accession to fetch")
	f.BoolVar(&force, "force", false, "Download again even if the file exists")

	return cmd
}

// downloadFile downloads a file from URL to the destination path with progress.
func downloadFile(url, destPath string) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Printf("  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	fmt.Printf("  Downloading %s...\n", filepath.Base(destPath))

	client := &http.Client{
		Timeout: 5 * time.Minute,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	var downloaded int64
	pw := &progressWriter{
		total:      resp.ContentLength,
		downloaded: &downloaded,
		lastPrint:  time.Now(),
	}

	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	f.Close()

	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Printf("    Done: %s\n", formatSize(downloaded))
	return nil
}

// progressWriter tracks download progress.
type progressWriter struct {
	total      int64
	downloaded *int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	*pw.downloaded += int64(n)

	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(*pw.downloaded) / float64(pw.total) * 100
			fmt.Printf("\r    Progress: %s / %s (%.1f%%)  ",
				formatSize(*pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Printf("\r    Progress: %s  ", formatSize(*pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}

	return n, nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
