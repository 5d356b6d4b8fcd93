package warp

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// rankTolerance is the smallest |Rᵢᵢ| / max|Rⱼⱼ| accepted before the
	// control-left set is treated as rank-deficient.
	rankTolerance = 1e-10

	// coincidenceTolerance scales with the control set's extent to decide
	// when two control points are the same point.
	coincidenceTolerance = 1e-12
)

// Fit solves for the thin-plate-spline transform mapping the control-left set
// v onto the control-right set y with regularization lambda.
//
// With Φ = Kernel(v, v) and the full QR factorization v = [Q1 Q2]·R, the
// bending weights are
//
//	W = Q2 · (Q2ᵀΦQ2 + λI)⁻¹ · Q2ᵀ · Y
//
// and the affine part is
//
//	D = R⁻¹ · Q1ᵀ · (Y − ΦW)
//
// where R is truncated to its top-left m×m block. W lies in the orthogonal
// complement of the affine subspace, so the two parts never overlap.
//
// λ = 0 interpolates y exactly at the control points; large λ drives W to
// zero and leaves the least-squares affine fit. A set of exactly m control
// points admits no bending and yields W = 0 with D solving v·D = y.
func Fit(v, y *PointSet, lambda float64) (*FittedTransform, error) {
	if math.IsNaN(lambda) || math.IsInf(lambda, 0) || lambda < 0 {
		return nil, fmt.Errorf("%w: regularization must be finite and non-negative, got %v", ErrInput, lambda)
	}

	k, m := v.Len(), HomogeneousDim
	if y.Len() != k {
		return nil, fmt.Errorf("%w: %d left control points but %d right", ErrCardinality, k, y.Len())
	}
	if k < m {
		return nil, fmt.Errorf("%w: need at least %d control points, got %d", ErrInput, m, k)
	}

	if i, j, ok := coincidentPair(v); ok {
		return nil, fmt.Errorf("%w: control points %d and %d coincide, control matrix is rank-deficient", ErrNumerical, i, j)
	}

	phi, err := Kernel(v, v)
	if err != nil {
		return nil, err
	}

	var qr mat.QR
	qr.Factorize(v.m)
	var q, rFull mat.Dense
	qr.QTo(&q)
	qr.RTo(&rFull)

	r := rFull.Slice(0, m, 0, m)
	if err := checkRank(r); err != nil {
		return nil, err
	}
	q1 := q.Slice(0, k, 0, m)

	w := mat.NewDense(k, m, nil)
	if k > m {
		q2 := q.Slice(0, k, m, k)

		var q2tPhi, a mat.Dense
		q2tPhi.Mul(q2.T(), phi)
		a.Mul(&q2tPhi, q2)
		for i := 0; i < k-m; i++ {
			a.Set(i, i, a.At(i, i)+lambda)
		}

		var aInv mat.Dense
		if err := aInv.Inverse(&a); err != nil {
			return nil, fmt.Errorf("%w: bending system: %w", ErrNumerical, err)
		}

		var q2tY, t mat.Dense
		q2tY.Mul(q2.T(), y.m)
		t.Mul(&aInv, &q2tY)
		w.Mul(q2, &t)
	}

	var phiW, resid, proj mat.Dense
	phiW.Mul(phi, w)
	resid.Sub(y.m, &phiW)
	proj.Mul(q1.T(), &resid)

	var rInv mat.Dense
	if err := rInv.Inverse(r); err != nil {
		return nil, fmt.Errorf("%w: affine factor: %w", ErrNumerical, err)
	}
	d := mat.NewDense(m, m, nil)
	d.Mul(&rInv, &proj)

	if row := firstNonFinite(d); row >= 0 {
		return nil, fmt.Errorf("%w: affine matrix row %d is not finite", ErrNumerical, row)
	}
	if row := firstNonFinite(w); row >= 0 {
		return nil, fmt.Errorf("%w: warping weights row %d are not finite", ErrNumerical, row)
	}

	slog.Debug("Fitted thin-plate spline", "control_points", k, "lambda", lambda)

	return &FittedTransform{
		Control:        v,
		Affine:         d,
		Weights:        w,
		Regularization: lambda,
	}, nil
}

// checkRank rejects an upper-triangular r whose diagonal collapses relative
// to its largest entry.
func checkRank(r mat.Matrix) error {
	n, _ := r.Dims()
	diag := make([]float64, n)
	for i := range diag {
		diag[i] = math.Abs(r.At(i, i))
	}
	largest := floats.Max(diag)
	if largest == 0 {
		return fmt.Errorf("%w: control matrix is zero", ErrNumerical)
	}
	for i, v := range diag {
		if v <= rankTolerance*largest {
			return fmt.Errorf("%w: control matrix is rank-deficient (R[%d][%d] = %g), control points may be collinear or coplanar", ErrNumerical, i, i, v)
		}
	}
	return nil
}

// coincidentPair returns the first pair of points of p closer than a
// tolerance proportional to the set's extent.
func coincidentPair(p *PointSet) (int, int, bool) {
	n := p.Len()
	scale := 1.0
	for i := 0; i < n; i++ {
		for _, c := range p.coords(i) {
			scale = math.Max(scale, math.Abs(c))
		}
	}
	tol := coincidenceTolerance * scale

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if floats.Distance(p.coords(i), p.coords(j), 2) <= tol {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}
