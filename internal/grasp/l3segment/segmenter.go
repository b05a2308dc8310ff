package l3segment

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/grasp.report/internal/grasp/l1frames"
	"github.com/banshee-data/grasp.report/internal/grasp/l2clean"
)

// ErrNotSegmentable is returned when the dispersion signal has no
// distinguishable grasp phase.
var ErrNotSegmentable = errors.New("movement not segmentable")

// Params holds the segmentation window and dispersion thresholds.
type Params struct {
	// Window is the number of frames summarised by each dispersion value.
	Window int
	// StartStd must be exceeded before the peak for the phase to start.
	StartStd float64
	// StopStd is the dispersion below which the phase ends after the peak.
	StopStd float64
}

// DefaultParams returns the thresholds tuned for wrist y-coordinates in
// OpenPose pixel units.
func DefaultParams() Params {
	return Params{Window: 10, StartStd: 2.0, StopStd: 1.5}
}

// Phase holds grasp phase positions within the dispersion signal.
type Phase struct {
	Start int
	Peak  int
	End   int
}

// Bounds is an inclusive frame range of the original sequence.
type Bounds struct {
	Start int
	End   int
}

// Len returns the number of frames covered.
func (b Bounds) Len() int {
	return b.End - b.Start + 1
}

// Segmentation is the outcome of Segment.
type Segmentation struct {
	Bounds
	// Phase indexes Dispersion.
	Phase Phase
	// Dispersion is the windowed std-dev of the cleaned coordinate.
	Dispersion []float64
}

// WindowedStdDev returns, for every i, the population standard deviation
// of vals[i:i+w]. Windows are truncated at the end of vals, so the last
// w-1 entries summarise fewer than w samples.
func WindowedStdDev(vals []float64, w int) []float64 {
	n := len(vals)
	out := make([]float64, n)
	for i := range out {
		end := min(i+w, n)
		_, variance := stat.PopMeanVariance(vals[i:end], nil)
		out[i] = math.Sqrt(variance)
	}
	return out
}

// DetectPhase locates the grasp phase in a dispersion signal. The peak is
// the first maximum; the start is the first value above StartStd strictly
// before the peak; the end is the first value below StopStd at or after
// the peak.
func DetectPhase(std []float64, p Params) (Phase, error) {
	if len(std) == 0 {
		return Phase{}, fmt.Errorf("%w: empty dispersion signal", ErrNotSegmentable)
	}
	ph := Phase{Start: -1, Peak: floats.MaxIdx(std), End: -1}

	for i := 0; i < ph.Peak; i++ {
		if std[i] > p.StartStd {
			ph.Start = i
			break
		}
	}
	if ph.Start < 0 {
		return Phase{}, fmt.Errorf("%w: dispersion never exceeds %g before peak %d (%.3f)",
			ErrNotSegmentable, p.StartStd, ph.Peak, std[ph.Peak])
	}

	for i := ph.Peak; i < len(std); i++ {
		if std[i] < p.StopStd {
			ph.End = i
			break
		}
	}
	if ph.End < 0 {
		return Phase{}, fmt.Errorf("%w: dispersion never falls below %g after peak %d",
			ErrNotSegmentable, p.StopStd, ph.Peak)
	}
	return ph, nil
}

// Segment detects the grasp phase on the cleaned reference coordinate and
// maps it onto seq. A dispersion value describes the last frame of its
// window, so phase positions are shifted by Window-1 cleaned frames
// before being resolved to original frame indices. A phase whose shifted
// end runs past the last cleaned frame is not segmentable. tail frames
// are prepended and head frames appended; negative padding counts as zero
// and the result is clamped to seq.
func Segment(seq *l1frames.Sequence, c *l2clean.Cleaned, p Params, tail, head int) (*Segmentation, error) {
	if c == nil || c.Len() == 0 {
		return nil, fmt.Errorf("%w: no cleaned frames", ErrNotSegmentable)
	}
	if p.Window < 1 {
		return nil, fmt.Errorf("segment window must be positive, got %d", p.Window)
	}

	std := WindowedStdDev(c.Values, p.Window)
	ph, err := DetectPhase(std, p)
	if err != nil {
		return nil, err
	}

	last := c.Len() - 1
	if ph.End+p.Window-1 > last {
		return nil, fmt.Errorf("%w: phase ends at cleaned frame %d of %d, window %d needs %d",
			ErrNotSegmentable, ph.End, c.Len(), p.Window, ph.End+p.Window)
	}
	startOrig := c.Indices[ph.Start+p.Window-1]
	endOrig := c.Indices[ph.End+p.Window-1]

	b := Bounds{
		Start: max(0, startOrig-max(0, tail)),
		End:   min(seq.Len()-1, endOrig+max(0, head)),
	}
	return &Segmentation{Bounds: b, Phase: ph, Dispersion: std}, nil
}
