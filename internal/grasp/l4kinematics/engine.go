package l4kinematics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/grasp.report/internal/grasp/l1frames"
	"github.com/banshee-data/grasp.report/internal/grasp/l2clean"
)

var (
	// ErrDegenerateTimeDelta is returned when two consecutive frames, or
	// the first and last output frame, share a timestamp.
	ErrDegenerateTimeDelta = errors.New("degenerate time delta")
	// ErrWindowTooShort is returned when the window has fewer frames than
	// the warm-up needs.
	ErrWindowTooShort = errors.New("frame window too short")
)

// Joints names the keypoints the features are derived from.
type Joints struct {
	Wrist  string
	Thumb  string
	Index  string
	Middle string
}

// DefaultJoints returns the OpenPose right-hand joints.
func DefaultJoints() Joints {
	return Joints{
		Wrist:  l1frames.RightWrist,
		Thumb:  l1frames.RightThumbTip,
		Index:  l1frames.RightIndexTip,
		Middle: l1frames.RightMiddleTip,
	}
}

// Params configures the feature engine.
type Params struct {
	// Window is the dispersion window; the first Window-1 frames of the
	// input only seed windowed statistics.
	Window int
	// Clean supplies the thresholds that invalidate aperture values.
	Clean  l2clean.Params
	Joints Joints
}

// DefaultParams returns the engine defaults.
func DefaultParams() Params {
	return Params{Window: 10, Clean: l2clean.DefaultParams(), Joints: DefaultJoints()}
}

// Table holds the engineered features of one movement, one row per output
// frame. Tables are not modified after Engineer returns; callers must not
// write through the returned slices.
type Table struct {
	Features []Feature
	// Time is the absolute frame time.
	Time []float64
	// Progress is the normalised time, 0 at the first and 100 at the last row.
	Progress []float64

	columns [][]Value
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Time)
}

// Column returns the values of one feature.
func (t *Table) Column(f Feature) ([]Value, bool) {
	for i, name := range t.Features {
		if name == f {
			return t.columns[i], true
		}
	}
	return nil, false
}

// NewTable assembles a table from precomputed feature columns, deriving
// the progress column from times. Every column must match times in length.
func NewTable(times []float64, columns map[Feature][]Value) (*Table, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrDegenerateTimeDelta)
	}
	fs := make([]Feature, 0, len(columns))
	for f := range columns {
		fs = append(fs, f)
	}
	fs, err := Canonical(fs)
	if err != nil {
		return nil, err
	}
	t := &Table{Features: fs, Time: times, columns: make([][]Value, len(fs))}
	for i, f := range fs {
		if len(columns[f]) != len(times) {
			return nil, fmt.Errorf("%s: %d values for %d rows", f, len(columns[f]), len(times))
		}
		t.columns[i] = columns[f]
	}
	if t.Progress, err = progress(times); err != nil {
		return nil, err
	}
	return t, nil
}

// requiredJoints lists the joints a feature is derived from.
func (p Params) requiredJoints(f Feature) []string {
	switch f {
	case ThumbIndexAperture:
		return []string{p.Joints.Thumb, p.Joints.Index}
	case ThumbMiddleAperture:
		return []string{p.Joints.Thumb, p.Joints.Middle}
	case IndexMiddleAperture:
		return []string{p.Joints.Index, p.Joints.Middle}
	default:
		return []string{p.Joints.Wrist}
	}
}

// engine carries the per-call state shared by the feature derivations.
type engine struct {
	seq   *l1frames.Sequence
	p     Params
	first int
}

// Engineer derives the requested features over window, which must hold
// the segmented movement preceded by its warm-up frames. The output
// starts at frame Window-1 of window and runs to its last frame.
func Engineer(window *l1frames.Sequence, features []Feature, p Params) (*Table, error) {
	if p.Window < 2 {
		return nil, fmt.Errorf("feature window must be at least 2, got %d", p.Window)
	}
	fs, err := Canonical(features)
	if err != nil {
		return nil, err
	}
	for _, f := range fs {
		if err := window.RequireJoints(p.requiredJoints(f)...); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}
	n := window.Len()
	if n < p.Window {
		return nil, fmt.Errorf("%w: %d frames, need at least %d", ErrWindowTooShort, n, p.Window)
	}

	e := &engine{seq: window, p: p, first: p.Window - 1}
	t := &Table{
		Features: fs,
		Time:     window.Time[e.first:],
		columns:  make([][]Value, len(fs)),
	}
	if t.Progress, err = progress(t.Time); err != nil {
		return nil, err
	}

	for i, f := range fs {
		if t.columns[i], err = e.column(f); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}
	return t, nil
}

func (e *engine) column(f Feature) ([]Value, error) {
	j := e.p.Joints
	switch f {
	case ThumbIndexAperture:
		return e.aperture(j.Thumb, j.Index), nil
	case ThumbMiddleAperture:
		return e.aperture(j.Thumb, j.Middle), nil
	case IndexMiddleAperture:
		return e.aperture(j.Index, j.Middle), nil
	case WristX:
		return e.coord(l1frames.AxisX), nil
	case WristY:
		return e.coord(l1frames.AxisY), nil
	case WristXStdDev:
		return e.axisDispersion(l1frames.AxisX), nil
	case WristYStdDev:
		return e.axisDispersion(l1frames.AxisY), nil
	case WristXYStdDist:
		return e.planarDispersion(), nil
	case WristXSpeed:
		return e.axisSpeed(l1frames.AxisX)
	case WristYSpeed:
		return e.axisSpeed(l1frames.AxisY)
	case WristXYSpeed:
		return e.planarSpeed()
	}
	return nil, fmt.Errorf("unhandled feature %q", f)
}

// progress maps absolute times onto 0..100.
func progress(times []float64) ([]float64, error) {
	n := len(times)
	duration := times[n-1] - times[0]
	if duration <= 0 {
		return nil, fmt.Errorf("%w: movement spans %d frames and %g time units", ErrDegenerateTimeDelta, n, duration)
	}
	out := make([]float64, n)
	for i, t := range times {
		out[i] = 100 * (t - times[0]) / duration
	}
	out[n-1] = 100
	return out, nil
}

// aperture is the distance between two joints, missing wherever either
// joint is low confidence or jumps on either axis.
func (e *engine) aperture(a, b string) []Value {
	ka := e.seq.Keypoints(a)[e.first:]
	kb := e.seq.Keypoints(b)[e.first:]
	valid := make([]bool, len(ka))
	for i := range valid {
		valid[i] = e.p.Clean.Confident(ka[i]) && e.p.Clean.Confident(kb[i])
	}
	for _, kps := range [][]l1frames.Keypoint{ka, kb} {
		for _, axis := range []l1frames.Axis{l1frames.AxisX, l1frames.AxisY} {
			coords := make([]float64, len(kps))
			for i, kp := range kps {
				coords[i] = kp.Coord(axis)
			}
			for i, ok := range l2clean.Smooth(coords, e.p.Clean.DistThreshold) {
				valid[i] = valid[i] && ok
			}
		}
	}

	out := make([]Value, len(ka))
	for i := range out {
		if valid[i] {
			out[i] = Known(math.Hypot(kb[i].X-ka[i].X, kb[i].Y-ka[i].Y))
		}
	}
	return out
}

func (e *engine) coord(axis l1frames.Axis) []Value {
	kps := e.seq.Keypoints(e.p.Joints.Wrist)[e.first:]
	out := make([]Value, len(kps))
	for i, kp := range kps {
		out[i] = Known(kp.Coord(axis))
	}
	return out
}

// trailing returns the population variance of the Window coordinates
// ending at frame f.
func (e *engine) trailing(coords []float64, f int) float64 {
	_, variance := stat.PopMeanVariance(coords[f-e.p.Window+1:f+1], nil)
	return variance
}

func (e *engine) axisDispersion(axis l1frames.Axis) []Value {
	coords := e.seq.Coords(e.p.Joints.Wrist, axis)
	out := make([]Value, len(coords)-e.first)
	for f := e.first; f < len(coords); f++ {
		out[f-e.first] = Known(math.Sqrt(e.trailing(coords, f)))
	}
	return out
}

// planarDispersion is the RMS distance of the wrist from its mean
// position over the trailing window.
func (e *engine) planarDispersion() []Value {
	xs := e.seq.Coords(e.p.Joints.Wrist, l1frames.AxisX)
	ys := e.seq.Coords(e.p.Joints.Wrist, l1frames.AxisY)
	out := make([]Value, len(xs)-e.first)
	for f := e.first; f < len(xs); f++ {
		out[f-e.first] = Known(math.Sqrt(e.trailing(xs, f) + e.trailing(ys, f)))
	}
	return out
}

// elapsed returns the time between frame f and its predecessor.
func (e *engine) elapsed(f int) (float64, error) {
	dt := e.seq.Time[f] - e.seq.Time[f-1]
	if dt <= 0 {
		return 0, fmt.Errorf("%w: frames %d and %d at time %g", ErrDegenerateTimeDelta, f-1, f, e.seq.Time[f])
	}
	return dt, nil
}

func (e *engine) axisSpeed(axis l1frames.Axis) ([]Value, error) {
	kps := e.seq.Keypoints(e.p.Joints.Wrist)
	out := make([]Value, len(kps)-e.first)
	for f := e.first; f < len(kps); f++ {
		dt, err := e.elapsed(f)
		if err != nil {
			return nil, err
		}
		out[f-e.first] = Known(math.Abs(kps[f].Coord(axis)-kps[f-1].Coord(axis)) / dt)
	}
	return out, nil
}

func (e *engine) planarSpeed() ([]Value, error) {
	kps := e.seq.Keypoints(e.p.Joints.Wrist)
	out := make([]Value, len(kps)-e.first)
	for f := e.first; f < len(kps); f++ {
		dt, err := e.elapsed(f)
		if err != nil {
			return nil, err
		}
		out[f-e.first] = Known(math.Hypot(kps[f].X-kps[f-1].X, kps[f].Y-kps[f-1].Y) / dt)
	}
	return out, nil
}
