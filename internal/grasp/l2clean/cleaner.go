package l2clean

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/grasp.report/internal/grasp/l1frames"
)

// ErrSequenceInvalidated is returned when no frame survives cleaning.
var ErrSequenceInvalidated = errors.New("sequence fully invalidated")

// Params holds the cleaning thresholds.
type Params struct {
	// ProbThreshold is the detection confidence a keypoint must exceed.
	ProbThreshold float64
	// DistThreshold is the neighbour distance, in source coordinate units,
	// at or above which a detection is treated as a jump.
	DistThreshold float64
}

// DefaultParams returns the thresholds used for OpenPose recordings.
func DefaultParams() Params {
	return Params{ProbThreshold: 0.6, DistThreshold: 10}
}

// Confident reports whether a keypoint's confidence exceeds the threshold.
func (p Params) Confident(kp l1frames.Keypoint) bool {
	return kp.Prob > p.ProbThreshold
}

// Cleaned is the surviving subsequence of a reference joint coordinate.
// Indices point into the original sequence and are strictly increasing;
// Time and Values are aligned with Indices.
type Cleaned struct {
	Indices []int
	Time    []float64
	Values  []float64
}

// Len returns the number of surviving frames.
func (c *Cleaned) Len() int {
	return len(c.Indices)
}

// NeighbourDistance returns, for every element, the smaller of its
// absolute distances to the previous and next element. The first and
// last elements reuse their only neighbour distance; a single element has
// distance 0.
func NeighbourDistance(vals []float64) []float64 {
	n := len(vals)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		return out
	}
	out[0] = math.Abs(vals[1] - vals[0])
	out[n-1] = math.Abs(vals[n-1] - vals[n-2])
	for i := 1; i < n-1; i++ {
		out[i] = math.Min(math.Abs(vals[i]-vals[i-1]), math.Abs(vals[i+1]-vals[i]))
	}
	return out
}

// Smooth reports, per element, whether its neighbour distance stays
// below threshold.
func Smooth(vals []float64, threshold float64) []bool {
	dist := NeighbourDistance(vals)
	out := make([]bool, len(dist))
	for i, d := range dist {
		out[i] = d < threshold
	}
	return out
}

// Filter returns the indices of the keypoints to keep: first every
// keypoint at or below the confidence threshold is dropped, then the
// neighbour-distance test runs over the survivors' axis coordinate.
func Filter(kps []l1frames.Keypoint, axis l1frames.Axis, p Params) []int {
	confident := make([]int, 0, len(kps))
	for i, kp := range kps {
		if p.Confident(kp) {
			confident = append(confident, i)
		}
	}

	coords := make([]float64, len(confident))
	for i, idx := range confident {
		coords[i] = kps[idx].Coord(axis)
	}

	kept := make([]int, 0, len(confident))
	for i, ok := range Smooth(coords, p.DistThreshold) {
		if ok {
			kept = append(kept, confident[i])
		}
	}
	return kept
}

// Clean filters one joint of seq along axis and returns the surviving
// frames. Gaps in time where frames were dropped are preserved.
func Clean(seq *l1frames.Sequence, joint string, axis l1frames.Axis, p Params) (*Cleaned, error) {
	if err := seq.RequireJoints(joint); err != nil {
		return nil, err
	}
	kps := seq.Keypoints(joint)
	kept := Filter(kps, axis, p)
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: %d of %d frames of %s rejected", ErrSequenceInvalidated, len(kps), len(kps), joint)
	}

	c := &Cleaned{
		Indices: kept,
		Time:    make([]float64, len(kept)),
		Values:  make([]float64, len(kept)),
	}
	for i, idx := range kept {
		c.Time[i] = seq.Time[idx]
		c.Values[i] = kps[idx].Coord(axis)
	}
	return c, nil
}
