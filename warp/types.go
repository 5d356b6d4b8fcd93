package warp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// SpatialDim is the number of raw coordinates per point.
	SpatialDim = 3

	// HomogeneousDim is SpatialDim plus the leading homogeneous coordinate.
	HomogeneousDim = SpatialDim + 1

	// DefaultRegularization is the λ used when none is configured.
	DefaultRegularization = 1.0
)

// PointSet is an ordered set of points in homogeneous form (1, x, y, z).
// Column 0 of every row is exactly 1 and all entries are finite.
type PointSet struct {
	m *mat.Dense
}

// NewPointSet validates m as a homogeneous point set. The matrix is copied,
// so later changes to m do not affect the returned set.
func NewPointSet(m mat.Matrix) (*PointSet, error) {
	r, c := m.Dims()
	if c != HomogeneousDim {
		return nil, fmt.Errorf("%w: homogeneous points need %d columns, got %d", ErrInput, HomogeneousDim, c)
	}
	if r == 0 {
		return nil, fmt.Errorf("%w: point set is empty", ErrInput)
	}

	d := mat.DenseCopyOf(m)
	for i := 0; i < r; i++ {
		row := d.RawRowView(i)
		if row[0] != 1 {
			return nil, fmt.Errorf("%w: row %d has homogeneous coordinate %g, want 1", ErrInput, i, row[0])
		}
		if !finite(row) {
			return nil, fmt.Errorf("%w: row %d has non-finite coordinates", ErrInput, i)
		}
	}
	return &PointSet{m: d}, nil
}

// Len returns the number of points.
func (p *PointSet) Len() int {
	r, _ := p.m.Dims()
	return r
}

// Matrix returns a read-only view of the n×4 homogeneous matrix.
func (p *PointSet) Matrix() mat.Matrix {
	return p.m
}

// Point returns the spatial coordinates of row i.
func (p *PointSet) Point(i int) [SpatialDim]float64 {
	row := p.m.RawRowView(i)
	return [SpatialDim]float64{row[1], row[2], row[3]}
}

// coords returns the spatial part of row i without copying. Callers must not
// modify it.
func (p *PointSet) coords(i int) []float64 {
	return p.m.RawRowView(i)[1:]
}

// FittedTransform is the result of Fit: the affine matrix D, the bending
// weights W and the control-left set V that cross-kernels are built against.
type FittedTransform struct {
	Control        *PointSet
	Affine         *mat.Dense // m×m
	Weights        *mat.Dense // k×m
	Regularization float64
}

// WarpResult is one output row.
type WarpResult struct {
	Index    int64
	X, Y, Z  float64
	Distance float64
}

func finite(s []float64) bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// firstNonFinite returns the first row of m holding a NaN or Inf, or -1.
func firstNonFinite(m mat.Matrix) int {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return i
			}
		}
	}
	return -1
}

// rowsOf flattens m into row slices for serialization.
func rowsOf(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		for j := range rows[i] {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}

// denseOf builds a matrix from row slices, requiring every row to have width c.
func denseOf(rows [][]float64, c int) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data), nil
}
