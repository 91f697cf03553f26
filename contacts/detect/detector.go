package detect

import (
	"math"

	"github.com/iptsd-go/iptsd/contacts"
)

// Config controls the detection pipeline.
type Config struct {
	// Normalize scales output positions to [0, 1], sizes by the heatmap
	// diagonal, and orientations to [0, 1).
	Normalize bool

	// NeutralMode selects how the neutral value is calculated.
	NeutralMode NeutralMode

	// NeutralValueOffset is added to the calculated neutral value. With
	// NeutralConstant it is the neutral value itself.
	NeutralValueOffset float64

	// NeutralValueBackoff is how many frames to wait before the neutral
	// value is recalculated. 1 means every frame.
	NeutralValueBackoff int

	// ActivationThreshold is the value above which a pixel can seed a
	// cluster search.
	ActivationThreshold float64

	// DeactivationThreshold is the value at which a cluster search stops.
	DeactivationThreshold float64
}

// DefaultConfig returns the thresholds the detection pipeline ships with.
func DefaultConfig() Config {
	return Config{
		NeutralMode:           NeutralModeMode,
		NeutralValueBackoff:   1,
		ActivationThreshold:   24,
		DeactivationThreshold: 20,
	}
}

// Detector searches for contacts in a capacitive heatmap. It owns all the
// scratch images and parameter pools the per-frame algorithms need, sized
// to the heatmap and resized only when the heatmap dimensions change.
type Detector struct {
	config Config

	// The diagonal of the heatmap, for normalizing sizes.
	inputDiagonal float64

	// The heatmap with the neutral value subtracted.
	imgNeutral *Image

	// The blurred heatmap.
	imgBlurred *Image

	// The kernel used for blurring.
	kernelBlur *Image

	// The list of local maxima.
	maximas []Point

	// The list of spanned clusters, and a second buffer for merging.
	clusters     []Box
	clustersTemp []Box

	// Traversal scratch for cluster spanning.
	span spanScratch

	// Gaussian fitting parameters, pooled across frames so the weight
	// buffers are reused.
	fittingParams []fitParams

	// Scratch buffers for Gaussian fitting.
	fitting *fitScratch

	// How many frames have passed since the neutral value was last
	// recalculated (modulo the backoff), and its cached value.
	counter int
	neutral float64
}

// NewDetector builds a Detector. The scratch buffers are allocated lazily
// on the first frame, once the heatmap dimensions are known.
func NewDetector(config Config) *Detector {
	if config.NeutralValueBackoff < 1 {
		config.NeutralValueBackoff = 1
	}

	return &Detector{
		config:     config,
		kernelBlur: gaussianKernel(3, 3, 0.75),
	}
}

// Detect searches for contacts in the heatmap and appends them to frame,
// which is cleared first. The returned slice may have a different backing
// array than the input.
//
// Detection runs in five steps: neutral-value subtraction and blur, local
// maxima search, hysteresis cluster spanning, overlap merging, and
// Gaussian fitting with ellipse extraction. A numerically degenerate fit
// invalidates only itself; a diverging overlap merge drops the whole
// frame and returns ErrFailedToMergeClusters.
func (d *Detector) Detect(heatmap *Image, frame []contacts.Contact) ([]contacts.Contact, error) {
	rows, cols := heatmap.Rows(), heatmap.Cols()

	d.resize(rows, cols)

	frame = frame[:0]
	d.clusters = d.clusters[:0]
	d.fittingParams = d.fittingParams[:0]

	// Recalculate the neutral value if necessary.
	if d.counter == 0 {
		n, err := neutral(heatmap, d.config.NeutralMode, d.config.NeutralValueOffset)
		if err != nil {
			return frame, err
		}
		d.neutral = n
	}
	d.counter = (d.counter + 1) % d.config.NeutralValueBackoff

	// Subtract the neutral value from the whole heatmap, clamping at zero.
	for i, v := range heatmap.Data() {
		d.imgNeutral.Data()[i] = math.Max(v-d.neutral, 0)
	}

	// Blur the heatmap slightly.
	convolve(d.imgNeutral, d.kernelBlur, d.imgBlurred)

	athresh := d.config.ActivationThreshold
	dthresh := d.config.DeactivationThreshold

	// Search for local maxima.
	d.maximas = findLocalMaximas(d.imgBlurred, athresh, d.maximas)

	// Span a cluster from every maximum.
	for _, point := range d.maximas {
		cluster := spanCluster(d.imgBlurred, point, athresh, dthresh, &d.span)

		if cluster.Empty() {
			continue
		}

		// Extend the sides of the cluster by one pixel.
		cluster.MinX = max(cluster.MinX-1, 0)
		cluster.MinY = max(cluster.MinY-1, 0)
		cluster.MaxX = min(cluster.MaxX+1, cols-1)
		cluster.MaxY = min(cluster.MaxY+1, rows-1)

		// Gaussian fitting needs at least 3x3 pixels.
		if cluster.Width() < 3 || cluster.Height() < 3 {
			continue
		}

		d.clusters = append(d.clusters, cluster)
	}

	// Merge overlapping clusters.
	merged, err := mergeOverlaps(d.clusters, d.clustersTemp, 5)
	if err != nil {
		return frame, err
	}
	d.clusters = merged

	// Prepare the clusters for Gaussian fitting. The pool is grown but
	// never shrunk, so weight buffers survive across frames.
	for _, cluster := range d.clusters {
		var p *fitParams
		if len(d.fittingParams) < cap(d.fittingParams) {
			// Re-extend into the pool, keeping the entry's weight buffer.
			d.fittingParams = d.fittingParams[:len(d.fittingParams)+1]
			p = &d.fittingParams[len(d.fittingParams)-1]
		} else {
			d.fittingParams = append(d.fittingParams, fitParams{})
			p = &d.fittingParams[len(d.fittingParams)-1]
		}

		p.valid = true
		p.scale = 1
		p.meanX = float64(cluster.MinX+cluster.MaxX) / 2
		p.meanY = float64(cluster.MinY+cluster.MaxY) / 2
		p.p00, p.p01, p.p11 = 1, 0, 1
		p.bounds = cluster

		area := cluster.Area()
		if cap(p.weights) < area {
			p.weights = make([]float64, area)
		}
		p.weights = p.weights[:area]
	}

	// Run the Gaussian fitting.
	gaussianFit(d.fittingParams, d.imgBlurred, d.fitting, 3)

	// Create a contact from every valid fit.
	for i := range d.fittingParams {
		p := &d.fittingParams[i]
		if !p.valid {
			continue
		}

		major, minor, orientation, ok := p.ellipse()
		if !ok {
			continue
		}

		c := contacts.Contact{
			MeanX:       p.meanX,
			MeanY:       p.meanY,
			Major:       major,
			Minor:       minor,
			Orientation: orientation,
			Normalized:  d.config.Normalize,
		}

		if d.config.Normalize {
			c.MeanX /= float64(cols - 1)
			c.MeanY /= float64(rows - 1)
			c.Major /= d.inputDiagonal
			c.Minor /= d.inputDiagonal
			c.Orientation /= math.Pi
		}

		frame = append(frame, c)
	}

	return frame, nil
}

func (d *Detector) resize(rows, cols int) {
	if d.imgNeutral != nil && d.imgNeutral.Rows() == rows && d.imgNeutral.Cols() == cols {
		return
	}

	if d.imgNeutral == nil {
		d.imgNeutral = NewImage(rows, cols)
		d.imgBlurred = NewImage(rows, cols)
		d.fitting = newFitScratch(rows, cols)
	} else {
		d.imgNeutral.Resize(rows, cols)
		d.imgBlurred.Resize(rows, cols)
		d.fitting.total.Resize(rows, cols)
	}

	d.inputDiagonal = math.Hypot(float64(cols-1), float64(rows-1))
}
