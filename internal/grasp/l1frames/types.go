package l1frames

import (
	"errors"
	"fmt"
)

// OpenPose joint names used by the default configuration.
const (
	RightWrist     = "RWrist"
	RightThumbTip  = "RThumb4FingerTip"
	RightIndexTip  = "RIndex4FingerTip"
	RightMiddleTip = "RMiddle4FingerTip"
)

// DefaultJoints are the joints every movement must carry: the reference
// wrist and the three fingertips used by the aperture features.
var DefaultJoints = []string{RightWrist, RightThumbTip, RightIndexTip, RightMiddleTip}

var (
	// ErrMissingField is returned when a required joint or column is absent.
	ErrMissingField = errors.New("missing input field")
	// ErrMalformedRecord is returned when a row cannot be decoded.
	ErrMalformedRecord = errors.New("malformed input record")
)

// Axis selects one image coordinate of a keypoint.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Keypoint is a single detected joint position in source image units,
// with the detector's confidence in [0, 1].
type Keypoint struct {
	X    float64
	Y    float64
	Prob float64
}

// Coord returns the keypoint coordinate along the given axis.
func (k Keypoint) Coord(a Axis) float64 {
	if a == AxisX {
		return k.X
	}
	return k.Y
}

// Frame is one timestamped observation of all tracked joints.
type Frame struct {
	Time   float64
	Joints map[string]Keypoint
}

// Sequence is the ordered frame sequence of one movement, stored column
// by column. Time is non-decreasing but not necessarily uniformly spaced.
// Every slice in Joints has the same length as Time.
type Sequence struct {
	Time   []float64
	Joints map[string][]Keypoint
}

// FromFrames builds a columnar Sequence from row-oriented frames. The
// joint set is taken from the first frame; later frames missing one of
// those joints are rejected.
func FromFrames(frames []Frame) (*Sequence, error) {
	seq := &Sequence{
		Time:   make([]float64, len(frames)),
		Joints: make(map[string][]Keypoint),
	}
	if len(frames) == 0 {
		return seq, nil
	}
	for name := range frames[0].Joints {
		seq.Joints[name] = make([]Keypoint, len(frames))
	}
	for i, f := range frames {
		if i > 0 && f.Time < frames[i-1].Time {
			return nil, fmt.Errorf("%w: frame %d time %g precedes %g", ErrMalformedRecord, i, f.Time, frames[i-1].Time)
		}
		seq.Time[i] = f.Time
		for name, col := range seq.Joints {
			kp, ok := f.Joints[name]
			if !ok {
				return nil, fmt.Errorf("%w: frame %d lacks joint %q", ErrMissingField, i, name)
			}
			col[i] = kp
		}
	}
	return seq, nil
}

// Len returns the number of frames.
func (s *Sequence) Len() int {
	return len(s.Time)
}

// Frame returns the i-th frame in row form.
func (s *Sequence) Frame(i int) Frame {
	f := Frame{Time: s.Time[i], Joints: make(map[string]Keypoint, len(s.Joints))}
	for name, col := range s.Joints {
		f.Joints[name] = col[i]
	}
	return f
}

// RequireJoints fails fast if any named joint is absent or if a joint
// column does not line up with the time column.
func (s *Sequence) RequireJoints(joints ...string) error {
	for _, name := range joints {
		col, ok := s.Joints[name]
		if !ok {
			return fmt.Errorf("%w: joint %q", ErrMissingField, name)
		}
		if len(col) != len(s.Time) {
			return fmt.Errorf("%w: joint %q has %d frames, want %d", ErrMalformedRecord, name, len(col), len(s.Time))
		}
	}
	return nil
}

// Keypoints returns the keypoint column of a joint, or nil if absent.
func (s *Sequence) Keypoints(joint string) []Keypoint {
	return s.Joints[joint]
}

// Coords returns a fresh slice with one coordinate of a joint per frame.
func (s *Sequence) Coords(joint string, a Axis) []float64 {
	col := s.Joints[joint]
	out := make([]float64, len(col))
	for i, kp := range col {
		out[i] = kp.Coord(a)
	}
	return out
}

// Slice returns the sub-sequence of frames [start, end). The result
// shares backing arrays with s.
func (s *Sequence) Slice(start, end int) *Sequence {
	out := &Sequence{
		Time:   s.Time[start:end],
		Joints: make(map[string][]Keypoint, len(s.Joints)),
	}
	for name, col := range s.Joints {
		out.Joints[name] = col[start:end]
	}
	return out
}
