package warp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ParseMatrixFile reads a numeric text matrix from path.
func ParseMatrixFile(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: file not found: %s", ErrInput, path)
		}
		return nil, fmt.Errorf("%w: opening file: %w", ErrInput, err)
	}
	defer f.Close()

	m, err := ParseMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseMatrix reads one row per line of whitespace- or comma-separated
// numbers. Blank lines and lines starting with # are skipped. All rows must
// have the same number of values.
func ParseMatrix(r io.Reader) (*mat.Dense, error) {
	var (
		data  []float64
		width int
		rows  int
	)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.FieldsFunc(text, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t'
		})
		if rows == 0 {
			width = len(fields)
		} else if len(fields) != width {
			return nil, fmt.Errorf("%w: line %d has %d values, expected %d", ErrInput, line, len(fields), width)
		}

		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: invalid number %q", ErrInput, line, field)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading matrix: %w", ErrInput, err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrInput)
	}

	return mat.NewDense(rows, width, data), nil
}

// LoadPoints parses path and converts it to homogeneous form. See
// ToHomogeneous for the meaning of indexed.
func LoadPoints(path string, indexed bool) (*PointSet, []int64, error) {
	raw, err := ParseMatrixFile(path)
	if err != nil {
		return nil, nil, err
	}
	ps, idx, err := ToHomogeneous(raw, indexed)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return ps, idx, nil
}
