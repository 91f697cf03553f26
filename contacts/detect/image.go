// Package detect converts a normalized capacitive heatmap into elliptical
// contacts: local maxima search, hysteresis cluster spanning, overlap
// merging, iterated-weighted-least-squares Gaussian fitting, and ellipse
// extraction.
package detect

import "math"

// Image is a dense row-major rows x cols grid of float64 samples. It is
// the scratch-buffer primitive every detection stage works on; buffers are
// resized only when the heatmap dimensions change.
type Image struct {
	rows, cols int
	data       []float64
}

// NewImage allocates a zeroed rows x cols image.
func NewImage(rows, cols int) *Image {
	return &Image{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// Rows returns the number of rows.
func (im *Image) Rows() int { return im.rows }

// Cols returns the number of columns.
func (im *Image) Cols() int { return im.cols }

// At returns the sample at row y, column x.
func (im *Image) At(y, x int) float64 { return im.data[y*im.cols+x] }

// Set stores v at row y, column x.
func (im *Image) Set(y, x int, v float64) { im.data[y*im.cols+x] = v }

// Add accumulates v into row y, column x.
func (im *Image) Add(y, x int, v float64) { im.data[y*im.cols+x] += v }

// Data returns the backing slice in row-major order.
func (im *Image) Data() []float64 { return im.data }

// Resize changes the image dimensions, reusing the backing slice when it
// is large enough. The content is unspecified afterwards.
func (im *Image) Resize(rows, cols int) {
	n := rows * cols
	if cap(im.data) < n {
		im.data = make([]float64, n)
	}
	im.data = im.data[:n]
	im.rows, im.cols = rows, cols
}

// Zero clears every sample.
func (im *Image) Zero() {
	for i := range im.data {
		im.data[i] = 0
	}
}

// Mean returns the arithmetic mean of all samples.
func (im *Image) Mean() float64 {
	if len(im.data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range im.data {
		sum += v
	}
	return sum / float64(len(im.data))
}

// Box is an axis-aligned bounding box over pixel coordinates. Min and Max
// are inclusive on both ends, so a single pixel is a valid, non-empty box.
type Box struct {
	MinX, MinY int
	MaxX, MaxY int
}

// EmptyBox returns a box that contains nothing; the first Extend call
// snaps it to that point.
func EmptyBox() Box {
	return Box{
		MinX: math.MaxInt, MinY: math.MaxInt,
		MaxX: math.MinInt, MaxY: math.MinInt,
	}
}

// Empty reports whether the box contains no pixels.
func (b Box) Empty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// Contains reports whether (x, y) lies inside the box.
func (b Box) Contains(x, y int) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Extend grows the box to include (x, y).
func (b *Box) Extend(x, y int) {
	b.MinX = min(b.MinX, x)
	b.MinY = min(b.MinY, y)
	b.MaxX = max(b.MaxX, x)
	b.MaxY = max(b.MaxY, y)
}

// Width returns the number of columns the box spans.
func (b Box) Width() int { return b.MaxX - b.MinX + 1 }

// Height returns the number of rows the box spans.
func (b Box) Height() int { return b.MaxY - b.MinY + 1 }

// Area returns the number of pixels inside the box. Min and max are
// inclusive, so the correct formula is (max - min + 1) per axis.
func (b Box) Area() int {
	if b.Empty() {
		return 0
	}
	return b.Width() * b.Height()
}

// Intersection returns the overlap of two boxes, which may be empty.
func (b Box) Intersection(o Box) Box {
	return Box{
		MinX: max(b.MinX, o.MinX),
		MinY: max(b.MinY, o.MinY),
		MaxX: min(b.MaxX, o.MaxX),
		MaxY: min(b.MaxY, o.MaxY),
	}
}

// Merged returns the smallest box containing both inputs.
func (b Box) Merged(o Box) Box {
	return Box{
		MinX: min(b.MinX, o.MinX),
		MinY: min(b.MinY, o.MinY),
		MaxX: max(b.MaxX, o.MaxX),
		MaxY: max(b.MaxY, o.MaxY),
	}
}

// Point is one pixel coordinate on the heatmap.
type Point struct {
	X, Y int
}
