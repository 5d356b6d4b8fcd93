package warp

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Alignment describes the principal axes of a point cloud.
type Alignment struct {
	Center [SpatialDim]float64
	// Axes holds one unit principal axis per column, ordered by decreasing
	// variance. The columns form a right-handed rotation.
	Axes *mat.Dense
	// Values are the variances along each axis, in the same order.
	Values []float64
}

// PrincipalAxes computes the centroid and principal axes of an n×3 matrix of
// raw coordinates.
func PrincipalAxes(points mat.Matrix) (*Alignment, error) {
	n, c := points.Dims()
	if c != SpatialDim {
		return nil, fmt.Errorf("%w: expected %d columns per row, got %d", ErrInput, SpatialDim, c)
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInput, n)
	}
	if row := firstNonFinite(points); row >= 0 {
		return nil, fmt.Errorf("%w: row %d has non-finite coordinates", ErrInput, row)
	}

	var a Alignment
	col := make([]float64, n)
	for j := 0; j < SpatialDim; j++ {
		mat.Col(col, j, points)
		a.Center[j] = stat.Mean(col, nil)
	}

	cov := mat.NewSymDense(SpatialDim, nil)
	stat.CovarianceMatrix(cov, points, nil)

	var es mat.EigenSym
	if ok := es.Factorize(cov, true); !ok {
		return nil, fmt.Errorf("%w: eigendecomposition of covariance failed", ErrNumerical)
	}
	values := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	order := []int{0, 1, 2}
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] > values[order[j]]
	})

	a.Axes = mat.NewDense(SpatialDim, SpatialDim, nil)
	a.Values = make([]float64, SpatialDim)
	for dst, src := range order {
		a.Values[dst] = values[src]
		for i := 0; i < SpatialDim; i++ {
			a.Axes.Set(i, dst, vecs.At(i, src))
		}
	}

	if mat.Det(a.Axes) < 0 {
		for i := 0; i < SpatialDim; i++ {
			a.Axes.Set(i, SpatialDim-1, -a.Axes.At(i, SpatialDim-1))
		}
	}
	return &a, nil
}

// Matrix returns the 4×4 matrix whose row i, for i < 3, is principal axis i
// followed by component i of the centroid. The last row is [0 0 0 1].
func (a *Alignment) Matrix() *mat.Dense {
	m := mat.NewDense(HomogeneousDim, HomogeneousDim, nil)
	for i := 0; i < SpatialDim; i++ {
		for j := 0; j < SpatialDim; j++ {
			m.Set(i, j, a.Axes.At(j, i))
		}
		m.Set(i, SpatialDim, a.Center[i])
	}
	m.Set(SpatialDim, SpatialDim, 1)
	return m
}

// Align maps an n×3 matrix of raw coordinates into the principal frame,
// computing (p − Center)·Axes row by row.
func (a *Alignment) Align(points mat.Matrix) (*mat.Dense, error) {
	n, c := points.Dims()
	if c != SpatialDim {
		return nil, fmt.Errorf("%w: expected %d columns per row, got %d", ErrInput, SpatialDim, c)
	}

	centered := mat.NewDense(n, SpatialDim, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < SpatialDim; j++ {
			centered.Set(i, j, points.At(i, j)-a.Center[j])
		}
	}

	var out mat.Dense
	out.Mul(centered, a.Axes)
	return &out, nil
}
