package warp

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Apply maps p through the fitted transform: P′ = P·D + K·W where K is the
// cross-kernel between p and the control-left set. Row order and count are
// preserved and column 0 of the result stays 1 up to rounding.
func (ft *FittedTransform) Apply(p *PointSet) (*mat.Dense, error) {
	k, err := Kernel(p, ft.Control)
	if err != nil {
		return nil, err
	}

	var affine, bend mat.Dense
	affine.Mul(p.m, ft.Affine)
	bend.Mul(k, ft.Weights)

	out := mat.NewDense(p.Len(), HomogeneousDim, nil)
	out.Add(&affine, &bend)

	if row := firstNonFinite(out); row >= 0 {
		return nil, fmt.Errorf("%w: transformed point %d is not finite", ErrNumerical, row)
	}
	return out, nil
}

// Displacements returns, per row, the Euclidean distance between the spatial
// coordinates of original and transformed.
func Displacements(original *PointSet, transformed mat.Matrix) ([]float64, error) {
	n, c := transformed.Dims()
	if n != original.Len() || c != HomogeneousDim {
		return nil, fmt.Errorf("%w: transformed matrix is %dx%d, want %dx%d", ErrInput, n, c, original.Len(), HomogeneousDim)
	}

	out := make([]float64, n)
	moved := make([]float64, SpatialDim)
	for i := range out {
		for j := range moved {
			moved[j] = transformed.At(i, j+1)
		}
		out[i] = floats.Distance(original.coords(i), moved, 2)
	}
	return out, nil
}

// Results assembles output rows. indices may be nil, in which case rows are
// numbered from 0.
func Results(indices []int64, transformed mat.Matrix, distances []float64) []WarpResult {
	n, _ := transformed.Dims()
	rows := make([]WarpResult, n)
	for i := range rows {
		idx := int64(i)
		if indices != nil {
			idx = indices[i]
		}
		rows[i] = WarpResult{
			Index:    idx,
			X:        transformed.At(i, 1),
			Y:        transformed.At(i, 2),
			Z:        transformed.At(i, 3),
			Distance: distances[i],
		}
	}
	return rows
}
