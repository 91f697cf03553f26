package detect

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// fitParams holds the state of one Gaussian fit: a scaled 2D Gaussian
// scale * exp(-1/2 (x-mean)^T prec (x-mean)) plus the bounding box it
// samples and the per-pixel weights distributing overlapping intensity
// between competing fits.
//
// The parameter list is never reallocated during a fit: each entry's
// weight buffer is indexed by bounding-box offsets, so entries are pooled
// by the detector and reset per frame.
type fitParams struct {
	valid bool

	scale float64

	meanX, meanY float64

	// p00, p01, p11 are the entries of the symmetric precision matrix
	// (inverse covariance).
	p00, p01, p11 float64

	// bounds is the sampling window on the heatmap.
	bounds Box

	// weights has bounds.Area() entries in row-major bounding-box order.
	weights []float64
}

// fitScratch holds the preallocated buffers one gaussianFit call needs:
// the shared weight-total grid and the 6x6 normal-equation system. gonum
// matrices are constructed over these fixed backing arrays so no
// allocation happens inside the iteration loop.
type fitScratch struct {
	total *Image

	sys [36]float64
	rhs [6]float64
	chi [6]float64
}

func newFitScratch(rows, cols int) *fitScratch {
	return &fitScratch{total: NewImage(rows, cols)}
}

// gaussianLike evaluates the unnormalized Gaussian density at (x, y).
func (p *fitParams) gaussianLike(x, y float64) float64 {
	vx := x - p.meanX
	vy := y - p.meanY

	vtmv := vx*vx*p.p00 + 2*vx*vy*p.p01 + vy*vy*p.p11

	return math.Exp(-vtmv / 2)
}

// updateWeightMaps evaluates every valid fit's current Gaussian over its
// bounding box, sums the per-pixel contributions across all fits into the
// shared total grid, and then normalizes each fit's weights by that total.
// Where fits overlap, this splits the measured intensity between them.
func updateWeightMaps(params []fitParams, total *Image, scaleX, scaleY float64) {
	total.Zero()

	// Compute individual Gaussians in their sample windows.
	for i := range params {
		p := &params[i]
		if !p.valid {
			continue
		}

		b := p.bounds
		w := b.Width()

		for iy := b.MinY; iy <= b.MaxY; iy++ {
			y := float64(iy)*scaleY - 1

			for ix := b.MinX; ix <= b.MaxX; ix++ {
				x := float64(ix)*scaleX - 1

				v := p.scale * p.gaussianLike(x, y)
				p.weights[(iy-b.MinY)*w+(ix-b.MinX)] = v
			}
		}
	}

	// Sum up the total.
	for i := range params {
		p := &params[i]
		if !p.valid {
			continue
		}

		b := p.bounds
		w := b.Width()

		for iy := b.MinY; iy <= b.MaxY; iy++ {
			for ix := b.MinX; ix <= b.MaxX; ix++ {
				total.Add(iy, ix, p.weights[(iy-b.MinY)*w+(ix-b.MinX)])
			}
		}
	}

	// Normalize the weights.
	for i := range params {
		p := &params[i]
		if !p.valid {
			continue
		}

		b := p.bounds
		w := b.Width()

		for iy := b.MinY; iy <= b.MaxY; iy++ {
			for ix := b.MinX; ix <= b.MaxX; ix++ {
				t := total.At(iy, ix)
				if t > 0 {
					p.weights[(iy-b.MinY)*w+(ix-b.MinX)] /= t
				}
			}
		}
	}
}

// assembleSystem builds the 6x6 weighted normal-equation system for the
// log-quadratic form
//
//	log(d + eps) ~ c0 x^2 + c1 xy + c2 y^2 + c3 x + c4 y + c5
//
// over the fit's bounding box, where d is the weighted heatmap value at
// the pixel. Each equation is weighted by d^2 so bright pixels dominate
// and near-zero pixels (whose log is meaningless) contribute nothing.
func assembleSystem(s *fitScratch, b Box, data *Image, p *fitParams, scaleX, scaleY float64) {
	for i := range s.sys {
		s.sys[i] = 0
	}
	for i := range s.rhs {
		s.rhs[i] = 0
	}

	w := b.Width()

	for iy := b.MinY; iy <= b.MaxY; iy++ {
		y := float64(iy)*scaleY - 1

		for ix := b.MinX; ix <= b.MaxX; ix++ {
			x := float64(ix)*scaleX - 1

			d := p.weights[(iy-b.MinY)*w+(ix-b.MinX)] * data.At(iy, ix)
			v := math.Log(d+epsF64) * d * d

			basis := [6]float64{x * x, x * y, y * y, x, y, 1}

			for r := 0; r < 6; r++ {
				s.rhs[r] += v * basis[r]

				for c := 0; c < 6; c++ {
					s.sys[r*6+c] += d * d * basis[r] * basis[c]
				}
			}
		}
	}
}

// extractParams recovers scale, mean, and precision matrix from the
// solved coefficient vector. Returns false when the precision matrix is
// too close to singular for the mean to be recovered.
func extractParams(chi *[6]float64, p *fitParams) bool {
	// log f = -1/2 (x-mu)^T P (x-mu) + log a expands to quadratic
	// coefficients -P00/2, -P01, -P11/2.
	p.p00 = -2 * chi[0]
	p.p01 = -chi[1]
	p.p11 = -2 * chi[2]

	// mu = P^-1 * (c3, c4)
	d := p.p00*p.p11 - p.p01*p.p01
	if math.Abs(d) <= epsF64 {
		return false
	}

	p.meanX = (p.p11*chi[3] - p.p01*chi[4]) / d
	p.meanY = (p.p00*chi[4] - p.p01*chi[3]) / d

	vtmv := p.meanX*p.meanX*p.p00 + 2*p.meanX*p.meanY*p.p01 + p.meanY*p.meanY*p.p11
	p.scale = math.Exp(chi[5] + vtmv/2)

	return true
}

// gaussianFit runs the iterated weighted least-squares fit over all
// parameter sets. Parameters are pre-scaled into the normalized
// [-1, 1] x [-1, 1] coordinate system, refined over the given number of
// iterations, and scaled back to pixel coordinates. A fit whose system is
// singular or whose precision matrix degenerates is marked invalid; the
// other fits proceed.
func gaussianFit(params []fitParams, data *Image, scratch *fitScratch, iterations int) {
	cols := data.Cols()
	rows := data.Rows()

	scaleX := 2 / float64(cols)
	scaleY := 2 / float64(rows)

	// Down-scale: map means into [-1, 1] and adjust the precision
	// matrices for the stretched axes ((S Sigma S^T)^-1 = S^-T P S^-1).
	for i := range params {
		p := &params[i]
		if !p.valid {
			continue
		}

		p.meanX = p.meanX*scaleX - 1
		p.meanY = p.meanY*scaleY - 1

		p.p00 /= scaleX * scaleX
		p.p01 /= scaleX * scaleY
		p.p11 /= scaleY * scaleY
	}

	sys := mat.NewDense(6, 6, scratch.sys[:])
	rhs := mat.NewVecDense(6, scratch.rhs[:])
	chi := mat.NewVecDense(6, scratch.chi[:])

	for iter := 0; iter < iterations; iter++ {
		updateWeightMaps(params, scratch.total, scaleX, scaleY)

		for i := range params {
			p := &params[i]
			if !p.valid {
				continue
			}

			assembleSystem(scratch, p.bounds, data, p, scaleX, scaleY)

			var lu mat.LU
			lu.Factorize(sys)

			if err := lu.SolveVecTo(chi, false, rhs); err != nil {
				p.valid = false
				continue
			}

			p.valid = extractParams(&scratch.chi, p)
		}
	}

	// Undo the down-scaling.
	for i := range params {
		p := &params[i]
		if !p.valid {
			continue
		}

		p.meanX = (p.meanX + 1) / scaleX
		p.meanY = (p.meanY + 1) / scaleY

		p.p00 *= scaleX * scaleX
		p.p01 *= scaleX * scaleY
		p.p11 *= scaleY * scaleY
	}
}
