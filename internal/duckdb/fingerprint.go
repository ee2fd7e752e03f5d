package duckdb

import (
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for an input file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// InputChanged reports whether the run's input file differs from what was
// converted. A run read from stdin, or whose file is gone, counts as changed.
func InputChanged(run *Run) bool {
	fp, err := StatFile(run.Input)
	if err != nil {
		return true
	}
	// DuckDB timestamps keep microseconds.
	mod := fp.ModTime.Truncate(time.Microsecond)
	return fp.Size != run.InputSize || !mod.Equal(run.InputModTime.Truncate(time.Microsecond))
}
