package warp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// radialBasis evaluates the thin-plate kernel φ(r) = r² ln r. φ(0) is the
// analytic limit 0; a NaN from 0·(−∞) is mapped to 0 as well.
func radialBasis(r float64) float64 {
	if r == 0 {
		return 0
	}
	v := r * r * math.Log(r)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Kernel builds the len(a)×len(b) matrix of φ(‖aᵢ − bⱼ‖). Only the spatial
// coordinates enter the distance. When a and b are the same set the result is
// exactly symmetric with a zero diagonal.
func Kernel(a, b *PointSet) (*mat.Dense, error) {
	n, k := a.Len(), b.Len()
	out := mat.NewDense(n, k, nil)

	if a == b {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				v, err := kernelValue(a.coords(i), b.coords(j), i, j)
				if err != nil {
					return nil, err
				}
				out.Set(i, j, v)
				out.Set(j, i, v)
			}
		}
		return out, nil
	}

	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			v, err := kernelValue(a.coords(i), b.coords(j), i, j)
			if err != nil {
				return nil, err
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

func kernelValue(p, q []float64, i, j int) (float64, error) {
	v := radialBasis(floats.Distance(p, q, 2))
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: kernel value between points %d and %d overflows", ErrNumerical, i, j)
	}
	return v, nil
}
