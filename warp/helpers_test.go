package warp

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const epsilon = 1e-9

// almostEqual checks if two floats are equal within epsilon tolerance
func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

// cubeLeft is a well-conditioned control set: the corners of a 10 unit cube
// plus its center.
var cubeLeft = [][]float64{
	{0, 0, 0},
	{10, 0, 0},
	{0, 10, 0},
	{0, 0, 10},
	{10, 10, 0},
	{10, 0, 10},
	{0, 10, 10},
	{10, 10, 10},
	{5, 5, 5},
}

// cubeRight is cubeLeft with a non-affine bend applied.
var cubeRight = [][]float64{
	{0.5, 0, 0.2},
	{10.2, 0.3, 0},
	{0, 10.4, -0.3},
	{-0.2, 0, 10.1},
	{10, 9.7, 0.4},
	{10.6, 0, 10},
	{0, 10.2, 10.3},
	{9.8, 10, 10.5},
	{5.4, 4.7, 5.2},
}

// mustPoints converts raw x, y, z rows to a homogeneous point set.
func mustPoints(t *testing.T, rows [][]float64) *PointSet {
	t.Helper()
	raw, err := denseOf(rows, SpatialDim)
	if err != nil {
		t.Fatalf("building raw matrix: %v", err)
	}
	ps, _, err := ToHomogeneous(raw, false)
	if err != nil {
		t.Fatalf("ToHomogeneous: %v", err)
	}
	return ps
}

// writeRows writes rows as a whitespace separated text file in dir.
func writeRows(t *testing.T, dir, name string, rows [][]float64) string {
	t.Helper()
	var b strings.Builder
	for _, row := range rows {
		for j, v := range row {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		b.WriteByte('\n')
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// indexed prefixes each row with the given vertex index.
func indexed(indices []int64, rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = append([]float64{float64(indices[i])}, row...)
	}
	return out
}

// maxAbs returns the largest absolute entry of m.
func maxAbs(m mat.Matrix) float64 {
	r, c := m.Dims()
	largest := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			largest = math.Max(largest, math.Abs(m.At(i, j)))
		}
	}
	return largest
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// subtract returns a − b.
func subtract(a, b mat.Matrix) *mat.Dense {
	var d mat.Dense
	d.Sub(a, b)
	return &d
}
