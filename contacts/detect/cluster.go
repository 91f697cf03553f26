package detect

import "math"

// spanItem is one pending step of the cluster traversal: the pixel to
// visit and the value of the pixel it was reached from.
type spanItem struct {
	pos      Point
	previous float64
}

// spanScratch holds the reusable traversal state for cluster spanning:
// the visited bitmap and the explicit work stack that replaces the
// unbounded recursion of a naive flood fill.
type spanScratch struct {
	visited []bool
	stack   []spanItem
}

func (s *spanScratch) resize(n int) {
	if cap(s.visited) < n {
		s.visited = make([]bool, n)
	}
	s.visited = s.visited[:n]
}

func (s *spanScratch) reset() {
	for i := range s.visited {
		s.visited[i] = false
	}
	s.stack = s.stack[:0]
}

// spanCluster spans a cluster of points on the heatmap, starting at the
// given position (a local maximum) and expanding in 4-connectivity.
//
// Pixels above the deactivation threshold are added to the cluster. Once
// the value of a pixel has fallen to or below the activation threshold, it
// is not allowed to rise again; this hysteresis prevents two adjacent
// contacts from connecting into one cluster through a saddle. Each pixel
// is visited at most once.
//
// Returns the bounding box of the visited pixels, which is empty if the
// start position is out of bounds.
func spanCluster(heatmap *Image, position Point, activation, deactivation float64, scratch *spanScratch) Box {
	cluster := EmptyBox()

	rows, cols := heatmap.Rows(), heatmap.Cols()

	if position.X < 0 || position.X >= cols || position.Y < 0 || position.Y >= rows {
		return cluster
	}

	scratch.resize(rows * cols)
	scratch.reset()

	scratch.stack = append(scratch.stack, spanItem{pos: position, previous: math.MaxFloat64})

	for len(scratch.stack) > 0 {
		item := scratch.stack[len(scratch.stack)-1]
		scratch.stack = scratch.stack[:len(scratch.stack)-1]

		x, y := item.pos.X, item.pos.Y
		value := heatmap.At(y, x)

		if value <= deactivation {
			continue
		}

		// Don't allow the value to increase outside of the activation area.
		if item.previous <= activation && value > item.previous {
			continue
		}

		if scratch.visited[y*cols+x] {
			continue
		}
		scratch.visited[y*cols+x] = true

		if !cluster.Contains(x, y) {
			cluster.Extend(x, y)
		}

		if x < cols-1 {
			scratch.stack = append(scratch.stack, spanItem{pos: Point{X: x + 1, Y: y}, previous: value})
		}
		if x > 0 {
			scratch.stack = append(scratch.stack, spanItem{pos: Point{X: x - 1, Y: y}, previous: value})
		}
		if y < rows-1 {
			scratch.stack = append(scratch.stack, spanItem{pos: Point{X: x, Y: y + 1}, previous: value})
		}
		if y > 0 {
			scratch.stack = append(scratch.stack, spanItem{pos: Point{X: x, Y: y - 1}, previous: value})
		}
	}

	return cluster
}
