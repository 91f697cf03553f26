package detect

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ellipse converts a valid fit's precision matrix into ellipse axes and
// orientation: Sigma = P^-1 is eigendecomposed, the axis diameters are
// 2*sqrt(|eigenvalue|), and the orientation is the angle of the
// eigenvector of the larger eigenvalue folded into [0, pi).
func (p *fitParams) ellipse() (major, minor, orientation float64, ok bool) {
	d := p.p00*p.p11 - p.p01*p.p01
	if math.Abs(d) <= epsF64 {
		return 0, 0, 0, false
	}

	// Sigma = P^-1 for a symmetric 2x2.
	s00 := p.p11 / d
	s01 := -p.p01 / d
	s11 := p.p00 / d

	var eigen mat.EigenSym
	if !eigen.Factorize(mat.NewSymDense(2, []float64{s00, s01, s01, s11}), true) {
		return 0, 0, 0, false
	}

	values := eigen.Values(nil)

	var vectors mat.Dense
	eigen.VectorsTo(&vectors)

	// The eigenvalues are the squared radii; we return diameters.
	d0 := 2 * math.Sqrt(math.Abs(values[0]))
	d1 := 2 * math.Sqrt(math.Abs(values[1]))

	major = math.Max(d0, d1)
	minor = math.Min(d0, d1)

	// Orientation follows the eigenvector of the larger eigenvalue. It
	// is not possible to say whether the contact faces up or down, so
	// the angle is folded into [0, pi) to stay consistent.
	col := 0
	if d1 > d0 {
		col = 1
	}

	orientation = math.Atan2(vectors.At(0, col), vectors.At(1, col))
	if orientation < 0 {
		orientation += math.Pi
	}
	if orientation >= math.Pi {
		orientation -= math.Pi
	}

	return major, minor, orientation, true
}
