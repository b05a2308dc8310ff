package l4kinematics

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/grasp.report/internal/grasp/l1frames"
)

func TestFeatureSets(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, FeatureSetIDs())

	fs, err := FeatureSet(4)
	require.NoError(t, err)
	assert.Equal(t, []Feature{ThumbIndexAperture, ThumbMiddleAperture, IndexMiddleAperture, WristXYStdDist}, fs)

	// Returned sets are copies.
	fs[0] = WristX
	again, _ := FeatureSet(4)
	assert.Equal(t, ThumbIndexAperture, again[0])

	_, err = FeatureSet(9)
	assert.Error(t, err)
}

func TestParseAndCanonical(t *testing.T) {
	f, err := ParseFeature("wrist xy-speed")
	require.NoError(t, err)
	assert.Equal(t, WristXYSpeed, f)

	_, err = ParseFeature("wrist z-speed")
	assert.Error(t, err)

	got, err := Canonical([]Feature{WristXYSpeed, ThumbIndexAperture, WristXYSpeed, WristX})
	require.NoError(t, err)
	assert.Equal(t, []Feature{ThumbIndexAperture, WristX, WristXYSpeed}, got)

	_, err = Canonical([]Feature{"bogus"})
	assert.Error(t, err)
}

type frameSpec struct {
	t            float64
	wrist        l1frames.Keypoint
	thumb, index l1frames.Keypoint
	middle       l1frames.Keypoint
}

func buildSeq(frames []frameSpec) *l1frames.Sequence {
	seq := &l1frames.Sequence{Joints: map[string][]l1frames.Keypoint{}}
	for _, f := range frames {
		seq.Time = append(seq.Time, f.t)
		seq.Joints[l1frames.RightWrist] = append(seq.Joints[l1frames.RightWrist], f.wrist)
		seq.Joints[l1frames.RightThumbTip] = append(seq.Joints[l1frames.RightThumbTip], f.thumb)
		seq.Joints[l1frames.RightIndexTip] = append(seq.Joints[l1frames.RightIndexTip], f.index)
		seq.Joints[l1frames.RightMiddleTip] = append(seq.Joints[l1frames.RightMiddleTip], f.middle)
	}
	return seq
}

func pt(x, y, p float64) l1frames.Keypoint { return l1frames.Keypoint{X: x, Y: y, Prob: p} }

// sixFrames has a dropped frame between t=2 and t=4, a low-confidence
// index fingertip at frame 3 and a thumb jump at frame 5.
func sixFrames() *l1frames.Sequence {
	times := []float64{0, 1, 2, 4, 5, 6}
	var frames []frameSpec
	for i, tm := range times {
		f := frameSpec{
			t:      tm,
			wrist:  pt(float64(i), 10, 0.9),
			thumb:  pt(0, 0, 0.9),
			index:  pt(3, 4, 0.9),
			middle: pt(6, 8, 0.9),
		}
		if i == 3 {
			f.index.Prob = 0.5
		}
		if i == 5 {
			f.thumb.X = 50
		}
		frames = append(frames, f)
	}
	return buildSeq(frames)
}

func smallParams() Params {
	p := DefaultParams()
	p.Window = 3
	return p
}

func values(col []Value) []float64 {
	out := make([]float64, len(col))
	for i, v := range col {
		if v.Valid {
			out[i] = v.V
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func TestEngineer(t *testing.T) {
	table, err := Engineer(sixFrames(), AllFeatures, smallParams())
	require.NoError(t, err)

	require.Equal(t, 4, table.Len())
	assert.Equal(t, AllFeatures, table.Features)
	assert.Equal(t, []float64{2, 4, 5, 6}, table.Time)
	assert.Equal(t, []float64{0, 50, 75, 100}, table.Progress)

	nan := math.NaN()
	root23 := math.Sqrt(2.0 / 3.0)
	want := map[Feature][]float64{
		ThumbIndexAperture:  {5, nan, 5, nan},
		ThumbMiddleAperture: {10, 10, 10, nan},
		IndexMiddleAperture: {5, nan, 5, 5},
		WristX:              {2, 3, 4, 5},
		WristY:              {10, 10, 10, 10},
		WristXStdDev:        {root23, root23, root23, root23},
		WristYStdDev:        {0, 0, 0, 0},
		WristXYStdDist:      {root23, root23, root23, root23},
		WristXSpeed:         {1, 0.5, 1, 1},
		WristYSpeed:         {0, 0, 0, 0},
		WristXYSpeed:        {1, 0.5, 1, 1},
	}
	opts := cmp.Options{cmpopts.EquateApprox(0, 1e-12), cmpopts.EquateNaNs()}
	for f, w := range want {
		col, ok := table.Column(f)
		require.True(t, ok, "column %s", f)
		if diff := cmp.Diff(w, values(col), opts); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", f, diff)
		}
	}

	_, ok := table.Column("bogus")
	assert.False(t, ok)
}

func TestEngineer_SubsetOnlyComputesRequested(t *testing.T) {
	table, err := Engineer(sixFrames(), []Feature{WristXSpeed, ThumbIndexAperture}, smallParams())
	require.NoError(t, err)
	assert.Equal(t, []Feature{ThumbIndexAperture, WristXSpeed}, table.Features)
	_, ok := table.Column(WristY)
	assert.False(t, ok)
}

func TestEngineer_SmoothConfidentAperturesNeverMissing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var frames []frameSpec
	tx, ty, ix, iy := 100.0, 100.0, 140.0, 90.0
	for i := 0; i < 80; i++ {
		tx += rng.Float64()*8 - 4
		ty += rng.Float64()*8 - 4
		ix += rng.Float64()*8 - 4
		iy += rng.Float64()*8 - 4
		frames = append(frames, frameSpec{
			t:      float64(i) / 30,
			wrist:  pt(200, 300, 0.9),
			thumb:  pt(tx, ty, 0.61+rng.Float64()*0.39),
			index:  pt(ix, iy, 0.61+rng.Float64()*0.39),
			middle: pt(0, 0, 0.9),
		})
	}
	table, err := Engineer(buildSeq(frames), []Feature{ThumbIndexAperture}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 71, table.Len())

	col, _ := table.Column(ThumbIndexAperture)
	for i, v := range col {
		if !v.Valid {
			t.Fatalf("row %d unexpectedly missing", i)
		}
	}
}

func TestEngineer_Progress(t *testing.T) {
	table, err := Engineer(sixFrames(), []Feature{WristX}, Params{Window: 2, Clean: DefaultParams().Clean, Joints: DefaultJoints()})
	require.NoError(t, err)
	assert.Equal(t, 0.0, table.Progress[0])
	assert.Equal(t, 100.0, table.Progress[table.Len()-1])
	for i := 1; i < table.Len(); i++ {
		assert.Greater(t, table.Progress[i], table.Progress[i-1])
	}
}

func TestEngineer_Errors(t *testing.T) {
	p := smallParams()

	t.Run("window_too_short", func(t *testing.T) {
		seq := sixFrames().Slice(0, 2)
		_, err := Engineer(seq, AllFeatures, p)
		assert.ErrorIs(t, err, ErrWindowTooShort)
	})

	t.Run("zero_duration", func(t *testing.T) {
		seq := sixFrames().Slice(0, 3)
		_, err := Engineer(seq, []Feature{WristX}, p)
		assert.ErrorIs(t, err, ErrDegenerateTimeDelta)
	})

	t.Run("repeated_timestamp", func(t *testing.T) {
		seq := sixFrames()
		seq.Time[4] = seq.Time[3]
		_, err := Engineer(seq, []Feature{WristYSpeed}, p)
		assert.ErrorIs(t, err, ErrDegenerateTimeDelta)

		_, err = Engineer(seq, []Feature{WristXYSpeed}, p)
		assert.ErrorIs(t, err, ErrDegenerateTimeDelta)

		// Features without a time derivative are unaffected.
		_, err = Engineer(seq, []Feature{WristXStdDev}, p)
		assert.NoError(t, err)
	})

	t.Run("missing_joint", func(t *testing.T) {
		seq := sixFrames()
		delete(seq.Joints, l1frames.RightMiddleTip)
		_, err := Engineer(seq, []Feature{IndexMiddleAperture}, p)
		assert.True(t, errors.Is(err, l1frames.ErrMissingField), "err = %v", err)

		_, err = Engineer(seq, []Feature{ThumbIndexAperture}, p)
		assert.NoError(t, err)
	})

	t.Run("bad_window", func(t *testing.T) {
		_, err := Engineer(sixFrames(), AllFeatures, Params{Window: 1})
		assert.Error(t, err)
	})

	t.Run("unknown_feature", func(t *testing.T) {
		_, err := Engineer(sixFrames(), []Feature{"wrist z"}, p)
		assert.Error(t, err)
	})
}

func TestNewTable(t *testing.T) {
	table, err := NewTable([]float64{1, 2, 5}, map[Feature][]Value{
		WristXSpeed: {Known(1), Known(2), Known(3)},
		WristX:      {Known(4), Missing, Known(6)},
	})
	require.NoError(t, err)
	assert.Equal(t, []Feature{WristX, WristXSpeed}, table.Features)
	assert.Equal(t, []float64{0, 25, 100}, table.Progress)

	col, ok := table.Column(WristX)
	require.True(t, ok)
	assert.False(t, col[1].Valid)

	_, err = NewTable([]float64{1, 2}, map[Feature][]Value{WristX: {Known(1)}})
	assert.Error(t, err)

	_, err = NewTable([]float64{3, 3}, map[Feature][]Value{WristX: {Known(1), Known(2)}})
	assert.ErrorIs(t, err, ErrDegenerateTimeDelta)

	_, err = NewTable(nil, nil)
	assert.ErrorIs(t, err, ErrDegenerateTimeDelta)
}
