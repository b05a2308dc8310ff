package l3segment

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/grasp.report/internal/grasp/l1frames"
	"github.com/banshee-data/grasp.report/internal/grasp/l2clean"
	"github.com/banshee-data/grasp.report/internal/testutil"
)

func TestWindowedStdDev(t *testing.T) {
	got := WindowedStdDev([]float64{1, 2, 3, 4}, 2)
	want := []float64{0.5, 0.5, 0.5, 0}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("WindowedStdDev mismatch (-want +got):\n%s", diff)
	}

	// Population divisor: {2, 4, 4, 4, 5, 5, 7, 9} has std 2.
	got = WindowedStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	testutil.AssertFloatNear(t, "std[0]", got[0], 2, 1e-12)
	testutil.AssertFloatNear(t, "std[7]", got[7], 0, 0)

	if len(WindowedStdDev(nil, 10)) != 0 {
		t.Error("empty input should give empty output")
	}
}

func TestDetectPhase(t *testing.T) {
	// Peak at 12 (4.0); first value above 2.0 before it at 10; first
	// value below 1.5 from the peak on at 14.
	signal := []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3.0, 3.0, 4.0, 2.0, 1.0, 1.0}
	ph, err := DetectPhase(signal, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, Phase{Start: 10, Peak: 12, End: 14}, ph)
}

func TestDetectPhase_NotSegmentable(t *testing.T) {
	tests := []struct {
		name   string
		signal []float64
	}{
		{"empty", nil},
		{"flat", []float64{0, 0, 0, 0}},
		{"peak_first", []float64{5, 1, 0}},
		{"spike_only_at_peak", []float64{0, 0, 5, 0}},
		{"below_start_before_peak", []float64{0, 1, 1.9, 5, 0}},
		{"never_settles", []float64{0, 3, 5, 4, 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DetectPhase(tc.signal, DefaultParams())
			if !errors.Is(err, ErrNotSegmentable) {
				t.Fatalf("err = %v, want ErrNotSegmentable", err)
			}
		})
	}
}

// graspTrace is a wrist-y trace: 20 still frames, 15 frames oscillating
// by ±3, 3 frames oscillating by ±4.5, then 20 still frames.
func graspTrace() []float64 {
	return testutil.Concat(
		testutil.Constant(20, 100),
		testutil.SquareWave(15, 100, 3),
		testutil.SquareWave(3, 100, 4.5),
		testutil.Constant(20, 100),
	)
}

func wristSequence(ys, probs []float64) *l1frames.Sequence {
	seq := &l1frames.Sequence{
		Time:   testutil.UniformTimes(len(ys), 0, 1.0/30),
		Joints: map[string][]l1frames.Keypoint{},
	}
	for i, y := range ys {
		p := 0.9
		if probs != nil {
			p = probs[i]
		}
		seq.Joints[l1frames.RightWrist] = append(seq.Joints[l1frames.RightWrist], l1frames.Keypoint{X: 50, Y: y, Prob: p})
	}
	return seq
}

func segment(t *testing.T, seq *l1frames.Sequence, tail, head int) *Segmentation {
	t.Helper()
	c, err := l2clean.Clean(seq, l1frames.RightWrist, l1frames.AxisY, l2clean.DefaultParams())
	require.NoError(t, err)
	s, err := Segment(seq, c, DefaultParams(), tail, head)
	require.NoError(t, err)
	return s
}

func TestSegment_GraspTrace(t *testing.T) {
	ys := graspTrace()
	seq := wristSequence(ys, nil)
	s := segment(t, seq, 0, 0)

	assert.Equal(t, 15, s.Phase.Start)
	assert.Less(t, s.Phase.Start, s.Phase.Peak)
	assert.Less(t, s.Phase.Peak, s.Phase.End)

	// Start lands within the first 15 oscillating frames.
	assert.GreaterOrEqual(t, s.Start, 20)
	assert.Less(t, s.Start, 35)
	assert.Equal(t, 24, s.Start)
	assert.Equal(t, s.Phase.End+9, s.End)
	assert.GreaterOrEqual(t, s.End, s.Phase.Peak+9)
	assert.LessOrEqual(t, s.End, seq.Len()-1)

	for i, v := range s.Dispersion {
		if math.IsNaN(v) {
			t.Fatalf("dispersion[%d] is NaN", i)
		}
	}
}

func TestSegment_MapsThroughDroppedFrames(t *testing.T) {
	ys := graspTrace()
	// Two low-confidence frames inserted into the still lead-in.
	withNoise := testutil.Concat(ys[:5], []float64{400, 400}, ys[5:])
	probs := testutil.Constant(len(withNoise), 0.9)
	probs[5], probs[6] = 0.1, 0.1

	seq := wristSequence(withNoise, probs)
	s := segment(t, seq, 0, 0)

	assert.Equal(t, 26, s.Start, "cleaned frame 24 is original frame 26")
	assert.Equal(t, s.Phase.End+9+2, s.End)
}

func TestSegment_Padding(t *testing.T) {
	seq := wristSequence(graspTrace(), nil)
	base := segment(t, seq, 0, 0)

	padded := segment(t, seq, 9, 3)
	assert.Equal(t, base.Start-9, padded.Start)
	assert.Equal(t, base.End+3, padded.End)
	assert.Equal(t, base.Len()+12, padded.Len())

	negative := segment(t, seq, -4, -2)
	assert.Equal(t, base.Bounds, negative.Bounds)

	clamped := segment(t, seq, 1000, 1000)
	assert.Equal(t, Bounds{Start: 0, End: seq.Len() - 1}, clamped.Bounds)
}

func TestSegment_Errors(t *testing.T) {
	seq := wristSequence(testutil.Constant(30, 100), nil)
	c, err := l2clean.Clean(seq, l1frames.RightWrist, l1frames.AxisY, l2clean.DefaultParams())
	require.NoError(t, err)

	_, err = Segment(seq, c, DefaultParams(), 0, 0)
	assert.ErrorIs(t, err, ErrNotSegmentable)

	_, err = Segment(seq, nil, DefaultParams(), 0, 0)
	assert.ErrorIs(t, err, ErrNotSegmentable)

	_, err = Segment(seq, c, Params{Window: 0, StartStd: 2, StopStd: 1.5}, 0, 0)
	assert.Error(t, err)
}

func TestSegment_ShortSequenceNotSegmentable(t *testing.T) {
	tests := []struct {
		name string
		ys   []float64
	}{
		{"eight_frames", []float64{94, 91, 86, 94, 86, 83, 74, 83}},
		{"ten_frames", []float64{107, 112, 114, 116, 111, 104, 100, 96, 88, 92}},
		// Phase ends too close to the last frame for its window.
		{"ends_at_tail", testutil.Concat(testutil.Constant(20, 100), testutil.SquareWave(15, 100, 3), testutil.SquareWave(3, 100, 4.5), testutil.Constant(2, 100))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seq := wristSequence(tc.ys, nil)
			c, err := l2clean.Clean(seq, l1frames.RightWrist, l1frames.AxisY, l2clean.DefaultParams())
			require.NoError(t, err)
			_, err = Segment(seq, c, DefaultParams(), 9, 0)
			assert.ErrorIs(t, err, ErrNotSegmentable)
		})
	}
}
