package warp

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultPrecision matches the classic %f formatting of output files.
	DefaultPrecision = 6

	// MaxPrecision is enough digits to round-trip any float64.
	MaxPrecision = 17

	outputMode = 0644
)

// WriteOptions controls how SaveResults writes its file.
type WriteOptions struct {
	Precision int  // decimals for coordinates and distances
	Overwrite bool // replace an existing destination
}

// WriteResults writes one "index x y z distance" line per row.
func WriteResults(w io.Writer, rows []WarpResult, precision int) error {
	bw := bufio.NewWriter(w)
	for _, r := range rows {
		if _, err := fmt.Fprintf(bw, "%d %.*f %.*f %.*f %.*f\n",
			r.Index, precision, r.X, precision, r.Y, precision, r.Z, precision, r.Distance); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteMatrix writes m as whitespace-separated rows.
func WriteMatrix(w io.Writer, m mat.Matrix, precision int) error {
	bw := bufio.NewWriter(w)
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sep := " "
			if j == c-1 {
				sep = "\n"
			}
			if _, err := fmt.Fprintf(bw, "%.*f%s", precision, m.At(i, j), sep); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// SaveResults writes rows to path. The file only appears once it is
// complete; a failed write leaves nothing behind.
func SaveResults(path string, rows []WarpResult, opts WriteOptions) error {
	return saveAtomic(path, opts, func(w io.Writer) error {
		return WriteResults(w, rows, opts.Precision)
	})
}

// SaveMatrix writes m to path with the same guarantees as SaveResults.
func SaveMatrix(path string, m mat.Matrix, opts WriteOptions) error {
	return saveAtomic(path, opts, func(w io.Writer) error {
		return WriteMatrix(w, m, opts.Precision)
	})
}

func saveAtomic(path string, opts WriteOptions, write func(io.Writer) error) error {
	if opts.Precision < 0 || opts.Precision > MaxPrecision {
		return fmt.Errorf("%w: precision must be between 0 and %d, got %d", ErrOutput, MaxPrecision, opts.Precision)
	}
	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: output file already exists: %s", ErrOutput, path)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrOutput, err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing %s: %w", ErrOutput, path, err)
	}
	// CreateTemp uses 0600; outputs are shared like any other text file.
	if err := tmp.Chmod(outputMode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: setting mode on %s: %w", ErrOutput, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing %s: %w", ErrOutput, path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming output file: %w", ErrOutput, err)
	}

	slog.Debug("Output written", "path", path)
	return nil
}
