package detect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iptsd-go/iptsd/contacts"
)

func imageFrom(t *testing.T, rows, cols int, values []float64) *Image {
	t.Helper()
	require.Len(t, values, rows*cols)

	im := NewImage(rows, cols)
	copy(im.Data(), values)
	return im
}

func TestLocalMaximasFlatRegionReportsExactlyOne(t *testing.T) {
	im := NewImage(5, 5)
	for i := range im.Data() {
		im.Data()[i] = 1.0
	}

	maximas := findLocalMaximas(im, 0.5, nil)
	require.Len(t, maximas, 1)
}

func TestLocalMaximasStrictPeak(t *testing.T) {
	im := NewImage(5, 5)
	im.Set(2, 3, 1.0)

	maximas := findLocalMaximas(im, 0.5, nil)
	require.Equal(t, []Point{{X: 3, Y: 2}}, maximas)
}

func TestLocalMaximasRespectThreshold(t *testing.T) {
	im := NewImage(3, 3)
	im.Set(1, 1, 0.4)

	require.Empty(t, findLocalMaximas(im, 0.5, nil))
}

func TestLocalMaximasTwoSeparatePeaks(t *testing.T) {
	im := NewImage(5, 9)
	im.Set(2, 1, 1.0)
	im.Set(2, 7, 1.0)

	maximas := findLocalMaximas(im, 0.5, nil)
	require.Len(t, maximas, 2)
}

func TestSpanClusterBoundsAndNonReentrance(t *testing.T) {
	// A 3x3 plateau above deactivation surrounded by zeros.
	im := NewImage(7, 7)
	for y := 2; y <= 4; y++ {
		for x := 2; x <= 4; x++ {
			im.Set(y, x, 1.0)
		}
	}

	var scratch spanScratch
	cluster := spanCluster(im, Point{X: 3, Y: 3}, 0.5, 0.2, &scratch)

	require.Equal(t, Box{MinX: 2, MinY: 2, MaxX: 4, MaxY: 4}, cluster)

	// Every visited pixel was marked exactly once; the visited count
	// matches the cluster area.
	visited := 0
	for _, v := range scratch.visited {
		if v {
			visited++
		}
	}
	require.Equal(t, cluster.Area(), visited)
}

func TestSpanClusterHysteresisStopsAtSaddle(t *testing.T) {
	// Two peaks joined through a saddle that dips below activation but
	// stays above deactivation. The cluster from the left peak must not
	// climb back up the right peak.
	im := NewImage(1, 7)
	for x, v := range []float64{0.1, 1.0, 0.6, 0.3, 0.6, 1.0, 0.1} {
		im.Set(0, x, v)
	}

	var scratch spanScratch
	cluster := spanCluster(im, Point{X: 1, Y: 0}, 0.5, 0.2, &scratch)

	require.Equal(t, 1, cluster.MinX)
	require.LessOrEqual(t, cluster.MaxX, 4, "cluster must not reach the second peak")
}

func TestMergeOverlapsFixpoint(t *testing.T) {
	clusters := []Box{
		{MinX: 0, MinY: 0, MaxX: 3, MaxY: 3},
		{MinX: 1, MinY: 0, MaxX: 4, MaxY: 3},
		{MinX: 10, MinY: 10, MaxX: 12, MaxY: 12},
	}

	merged, err := mergeOverlaps(clusters, nil, 5)
	require.NoError(t, err)
	require.Len(t, merged, 2)

	_, found := searchOverlaps(merged, nil)
	require.False(t, found, "no two clusters may still overlap by >= 50%")
}

func TestMergeIdenticalBoxes(t *testing.T) {
	box := Box{MinX: 2, MinY: 2, MaxX: 5, MaxY: 5}

	merged, err := mergeOverlaps([]Box{box, box}, nil, 5)
	require.NoError(t, err)
	require.Equal(t, []Box{box}, merged)
}

func TestOverlapIoU(t *testing.T) {
	a := Box{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	b := Box{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	require.Equal(t, 1.0, overlap(a, b))

	c := Box{MinX: 5, MinY: 5, MaxX: 6, MaxY: 6}
	require.Equal(t, 0.0, overlap(a, c))
}

// synthGaussian writes a scaled Gaussian with the given parameters onto
// the image.
func synthGaussian(im *Image, scale, meanX, meanY, sigma float64) {
	for y := 0; y < im.Rows(); y++ {
		for x := 0; x < im.Cols(); x++ {
			dx := float64(x) - meanX
			dy := float64(y) - meanY
			im.Add(y, x, scale*math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma)))
		}
	}
}

func TestGaussianFitRecoversKnownParameters(t *testing.T) {
	im := NewImage(20, 20)
	synthGaussian(im, 1.0, 9.3, 10.6, 1.5)

	bounds := Box{MinX: 5, MinY: 6, MaxX: 14, MaxY: 15}
	params := []fitParams{{
		valid: true,
		scale: 1,
		meanX: float64(bounds.MinX+bounds.MaxX) / 2,
		meanY: float64(bounds.MinY+bounds.MaxY) / 2,
		p00:   1, p01: 0, p11: 1,
		bounds:  bounds,
		weights: make([]float64, bounds.Area()),
	}}

	gaussianFit(params, im, newFitScratch(20, 20), 3)

	require.True(t, params[0].valid)
	require.InDelta(t, 9.3, params[0].meanX, 0.1)
	require.InDelta(t, 10.6, params[0].meanY, 0.1)
	require.InDelta(t, 1.0, params[0].scale, 0.05)
}

func TestDetectorSingleSpot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Normalize = true
	cfg.NeutralMode = NeutralConstant
	cfg.NeutralValueOffset = 0
	cfg.ActivationThreshold = 0.3
	cfg.DeactivationThreshold = 0.1

	d := NewDetector(cfg)

	im := NewImage(16, 16)
	synthGaussian(im, 1.0, 8.0, 8.0, 1.2)

	frame, err := d.Detect(im, nil)
	require.NoError(t, err)
	require.Len(t, frame, 1)

	require.InDelta(t, 8.0/15.0, frame[0].MeanX, 0.05)
	require.InDelta(t, 8.0/15.0, frame[0].MeanY, 0.05)
	require.GreaterOrEqual(t, frame[0].Major, frame[0].Minor)
	require.True(t, frame[0].Normalized)
}

func TestDetectorTwoSpots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Normalize = true
	cfg.NeutralMode = NeutralConstant
	cfg.ActivationThreshold = 0.3
	cfg.DeactivationThreshold = 0.1

	d := NewDetector(cfg)

	im := NewImage(24, 40)
	synthGaussian(im, 1.0, 8.0, 10.0, 1.2)
	synthGaussian(im, 1.0, 30.0, 14.0, 1.2)

	frame, err := d.Detect(im, nil)
	require.NoError(t, err)
	require.Len(t, frame, 2)
}

func TestDetectorEmptyHeatmapProducesNoContacts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NeutralMode = NeutralConstant
	cfg.ActivationThreshold = 0.3
	cfg.DeactivationThreshold = 0.1

	d := NewDetector(cfg)

	frame, err := d.Detect(NewImage(10, 10), []contacts.Contact{{}})
	require.NoError(t, err)
	require.Empty(t, frame)
}

func TestNeutralModes(t *testing.T) {
	im := imageFrom(t, 2, 3, []float64{5, 5, 5, 5, 2, 8})

	v, err := neutral(im, NeutralModeMode, 0)
	require.NoError(t, err)
	require.Equal(t, 5.0, v)

	v, err = neutral(im, NeutralAverage, 1)
	require.NoError(t, err)
	require.Equal(t, 6.0, v)

	v, err = neutral(im, NeutralConstant, 42)
	require.NoError(t, err)
	require.Equal(t, 42.0, v)

	_, err = neutral(im, NeutralMode(99), 0)
	require.ErrorIs(t, err, contacts.ErrInvalidNeutralMode)
}

func TestParseNeutralMode(t *testing.T) {
	for s, want := range map[string]NeutralMode{
		"mode": NeutralModeMode, "average": NeutralAverage, "constant": NeutralConstant,
	} {
		got, err := ParseNeutralMode(s)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseNeutralMode("median")
	require.ErrorIs(t, err, contacts.ErrInvalidNeutralMode)
}

func TestGaussianKernelNormalized(t *testing.T) {
	k := gaussianKernel(3, 3, 0.75)

	var sum float64
	for _, v := range k.Data() {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-12)
	require.Greater(t, k.At(1, 1), k.At(0, 0), "center outweighs corners")
}
