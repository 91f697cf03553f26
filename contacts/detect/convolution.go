package detect

import "math"

// gaussianKernel builds a normalized rows x cols Gaussian kernel with the
// given sigma. Rows and cols must be odd.
func gaussianKernel(rows, cols int, sigma float64) *Image {
	kernel := NewImage(rows, cols)

	var sum float64
	for y := 0; y < rows; y++ {
		dy := float64(y) - float64(rows-1)/2
		for x := 0; x < cols; x++ {
			dx := float64(x) - float64(cols-1)/2

			norm := (dy*dy + dx*dx) / (sigma * sigma)
			v := math.Exp(-0.5 * norm)

			kernel.Set(y, x, v)
			sum += v
		}
	}

	for i, v := range kernel.Data() {
		kernel.Data()[i] = v / sum
	}

	return kernel
}

// convolve runs a 2D convolution of in with kernel, writing into out.
// Borders are extended (clamp-to-edge) so the output has the same
// dimensions as the input.
func convolve(in, kernel, out *Image) {
	rows, cols := in.Rows(), in.Cols()
	krows, kcols := kernel.Rows(), kernel.Cols()

	dy := (krows - 1) / 2
	dx := (kcols - 1) / 2

	out.Zero()

	for ky := 0; ky < krows; ky++ {
		for kx := 0; kx < kcols; kx++ {
			kern := kernel.At(ky, kx)

			for oy := 0; oy < rows; oy++ {
				iy := clamp(oy+ky-dy, 0, rows-1)

				for ox := 0; ox < cols; ox++ {
					ix := clamp(ox+kx-dx, 0, cols-1)

					out.Add(oy, ox, in.At(iy, ix)*kern)
				}
			}
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
