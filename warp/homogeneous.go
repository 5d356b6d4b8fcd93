package warp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// maxIndex is 2^63; indices must fit in an int64.
const maxIndex = 1 << 63

// ToHomogeneous converts raw point rows to homogeneous form.
//
// With indexed set, raw must have an index column followed by x, y, z. The
// indices are returned separately, aligned by row, and the index column is
// replaced by 1. Without it raw must hold exactly x, y, z and a leading 1 is
// prefixed; the returned index slice is nil.
func ToHomogeneous(raw mat.Matrix, indexed bool) (*PointSet, []int64, error) {
	want := SpatialDim
	if indexed {
		want++
	}

	n, c := raw.Dims()
	if c != want {
		return nil, nil, fmt.Errorf("%w: expected %d columns per row, got %d", ErrInput, want, c)
	}
	if n == 0 {
		return nil, nil, fmt.Errorf("%w: no points", ErrInput)
	}

	offset := 0
	var indices []int64
	if indexed {
		offset = 1
		indices = make([]int64, n)
	}

	h := mat.NewDense(n, HomogeneousDim, nil)
	for i := 0; i < n; i++ {
		if indexed {
			idx := raw.At(i, 0)
			if math.IsNaN(idx) || math.IsInf(idx, 0) || idx != math.Trunc(idx) {
				return nil, nil, fmt.Errorf("%w: row %d has non-integral index %v", ErrInput, i, idx)
			}
			if idx >= maxIndex || idx < -maxIndex {
				return nil, nil, fmt.Errorf("%w: row %d index %v out of range", ErrInput, i, idx)
			}
			indices[i] = int64(idx)
		}

		h.Set(i, 0, 1)
		for j := 0; j < SpatialDim; j++ {
			h.Set(i, j+1, raw.At(i, j+offset))
		}
	}

	ps, err := NewPointSet(h)
	if err != nil {
		return nil, nil, err
	}
	return ps, indices, nil
}
