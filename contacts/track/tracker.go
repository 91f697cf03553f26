// Package track assigns temporally stable indices to contacts by greedy
// nearest-neighbor matching against the previous frame.
//
// The matching is O((M*N)^2) in the worst case, which is acceptable
// because touch sensors report at most around ten contacts; a Hungarian
// assignment would buy nothing at this scale.
package track

import (
	"math"

	"github.com/iptsd-go/iptsd/contacts"
)

// Tracker matches the contacts of each frame against the previous one.
type Tracker struct {
	// The last frame.
	last []contacts.Contact

	// The distances between all contacts from the current and the last
	// frame, row-major: distances[iy*cols+ix].
	distances []float64
}

// NewTracker builds an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Reset clears the stored copy of the last frame.
func (t *Tracker) Reset() {
	t.last = t.last[:0]
}

// Track assigns indices to all contacts of the frame, in place.
//
// All contacts first get fresh unique indices (the smallest integers not
// used in the previous frame). If a previous frame exists, the closest
// current/previous pairs then inherit the previous contact's index, one
// pair at a time, nearest first.
func (t *Tracker) Track(frame []contacts.Contact) {
	counter := 0

	// Assign unique indices to all contacts of the current frame.
	for i := range frame {
		idx := t.findNewIndex(counter)
		frame[i].Index = &idx
		counter = idx + 1
	}

	if len(t.last) > 0 {
		cols := len(frame)
		rows := len(t.last)

		t.calculateDistances(frame)

		// Copy the old indices back for as many contacts as can be
		// matched.
		n := min(cols, rows)
		for k := 0; k < n; k++ {
			iy, ix := t.minDistance(rows, cols)

			idx := *t.last[iy].Index
			frame[ix].Index = &idx

			// Invalidate all entries containing either contact.
			for x := 0; x < cols; x++ {
				t.distances[iy*cols+x] = math.Inf(1)
			}
			for y := 0; y < rows; y++ {
				t.distances[y*cols+ix] = math.Inf(1)
			}
		}
	}

	// Save a copy of the new frame.
	t.last = append(t.last[:0], frame...)
}

// calculateDistances fills the distance matrix between the current frame
// (columns) and the last frame (rows) with Euclidean distances of the
// contact centers.
func (t *Tracker) calculateDistances(frame []contacts.Contact) {
	cols := len(frame)
	rows := len(t.last)

	n := rows * cols
	if cap(t.distances) < n {
		t.distances = make([]float64, n)
	}
	t.distances = t.distances[:n]

	for iy := 0; iy < rows; iy++ {
		cy := &t.last[iy]

		for ix := 0; ix < cols; ix++ {
			cx := &frame[ix]

			t.distances[iy*cols+ix] = math.Hypot(cx.MeanX-cy.MeanX, cx.MeanY-cy.MeanY)
		}
	}
}

// minDistance returns the row/column of the global minimum of the
// distance matrix. Ties break on row-major iteration order.
func (t *Tracker) minDistance(rows, cols int) (int, int) {
	best := math.Inf(1)
	by, bx := 0, 0

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if t.distances[y*cols+x] < best {
				best = t.distances[y*cols+x]
				by, bx = y, x
			}
		}
	}

	return by, bx
}

// findNewIndex returns the smallest index >= min that no contact of the
// last frame carries.
func (t *Tracker) findNewIndex(min int) int {
	for {
		if contacts.FindInFrame(min, t.last) == nil {
			return min
		}
		min++
	}
}
