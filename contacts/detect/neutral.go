package detect

import (
	"fmt"

	"github.com/iptsd-go/iptsd/contacts"
)

// NeutralMode selects how the neutral value of a heatmap is calculated.
// The neutral value marks an area that has no contacts; everything below
// it is noise.
type NeutralMode int

const (
	// NeutralModeMode uses the most common element (statistical mode).
	NeutralModeMode NeutralMode = iota
	// NeutralAverage uses the mean of all elements.
	NeutralAverage
	// NeutralConstant uses the configured offset as a constant value.
	NeutralConstant
)

// ParseNeutralMode converts a config-file string into a NeutralMode.
func ParseNeutralMode(s string) (NeutralMode, error) {
	switch s {
	case "mode":
		return NeutralModeMode, nil
	case "average":
		return NeutralAverage, nil
	case "constant":
		return NeutralConstant, nil
	default:
		return 0, fmt.Errorf("%w: %q", contacts.ErrInvalidNeutralMode, s)
	}
}

// neutral calculates the neutral value of a heatmap using the given
// algorithm, plus the configured offset.
func neutral(heatmap *Image, mode NeutralMode, offset float64) (float64, error) {
	switch mode {
	case NeutralModeMode:
		return statisticalMode(heatmap) + offset, nil
	case NeutralAverage:
		return heatmap.Mean() + offset, nil
	case NeutralConstant:
		return offset, nil
	default:
		return 0, fmt.Errorf("%w: %d", contacts.ErrInvalidNeutralMode, mode)
	}
}

// statisticalMode returns the most frequent sample value.
func statisticalMode(heatmap *Image) float64 {
	counts := make(map[float64]int)

	var maxCount int
	var maxElement float64

	for _, v := range heatmap.Data() {
		counts[v]++
		if counts[v] > maxCount {
			maxCount = counts[v]
			maxElement = v
		}
	}

	return maxElement
}
