// Package cone implements the touch rejection cone: a narrow region
// extending from the stylus tip in its direction of travel, used to
// suppress palm contacts the hand makes while writing.
package cone

import (
	"math"
	"time"
)

// Cone tracks a stylus's tip position and direction of travel, and
// answers whether a given point falls inside the rejection region. The
// stylus processor is the sole writer (UpdatePosition, UpdateDirection)
// and the touch processor the sole reader (Check); both run on the same
// single-threaded ingest loop, so no lock is needed.
type Cone struct {
	angle    float64 // cosine of the half-angle
	distance float64

	x, y   float64
	dx, dy float64

	positionUpdate  time.Time
	directionUpdate time.Time
}

// New builds a Cone from its half-angle cosine and reach distance, both
// in the units position updates will be given in (physical cm).
func New(angleCosine, distance float64) *Cone {
	return &Cone{angle: angleCosine, distance: distance}
}

// Alive reports whether the cone has ever seen a position update.
func (c *Cone) Alive() bool {
	return !c.positionUpdate.IsZero()
}

// Active reports whether the cone has seen a position update within the
// last 300ms.
func (c *Cone) Active() bool {
	return !c.positionUpdate.IsZero() && time.Since(c.positionUpdate) <= 300*time.Millisecond
}

// Tip returns the cone's tip position.
func (c *Cone) Tip() (x, y float64) {
	return c.x, c.y
}

// UpdatePosition moves the cone's tip and marks it active.
func (c *Cone) UpdatePosition(x, y float64) {
	c.x, c.y = x, y
	c.positionUpdate = time.Now()
}

// UpdateDirection exponentially blends the cone's facing direction toward
// the point (x, y), weighted by 2^(-Δt in seconds) against the previous
// direction, then re-normalizes.
func (c *Cone) UpdateDirection(x, y float64) {
	now := time.Now()

	var weight float64 = 1
	if !c.directionUpdate.IsZero() {
		elapsed := now.Sub(c.directionUpdate).Seconds()
		weight = math.Exp2(-elapsed)
	}

	dist := math.Hypot(c.x-x, c.y-y)

	dx := (x - c.x) / (dist + 1e-6)
	dy := (y - c.y) / (dist + 1e-6)

	c.dx = weight*c.dx + dx
	c.dy = weight*c.dy + dy

	norm := math.Hypot(c.dx, c.dy) + 1e-6
	c.dx /= norm
	c.dy /= norm

	c.directionUpdate = now
}

// Check reports whether (x, y) falls inside the cone: active, within
// reach, and within the configured half-angle of the facing direction.
func (c *Cone) Check(x, y float64) bool {
	if !c.Active() {
		return false
	}

	dx := x - c.x
	dy := y - c.y
	dist := math.Hypot(dx, dy)

	if dist > c.distance {
		return false
	}

	return dx*c.dx+dy*c.dy > c.angle*dist
}
