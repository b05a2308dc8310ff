package l1frames

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/grasp.report/internal/fsutil"
)

const sampleCSV = `Time,RWrist.x,RWrist.y,RWrist.prob,RThumb4FingerTip.x,RThumb4FingerTip.y,RThumb4FingerTip.prob,Extra
0.000,100.5,200.0,0.91,110,190,0.8,ignored
0.033,101.0,201.5,0.88,111,191,0.7,ignored
0.100,102.0,203.0,0.40,112,192,0.9,ignored
`

func TestReadCSV(t *testing.T) {
	seq, err := ReadCSV(strings.NewReader(sampleCSV), []string{RightWrist, RightThumbTip})
	require.NoError(t, err)

	require.Equal(t, 3, seq.Len())
	assert.Equal(t, []float64{0, 0.033, 0.1}, seq.Time)
	assert.Equal(t, Keypoint{X: 101.0, Y: 201.5, Prob: 0.88}, seq.Keypoints(RightWrist)[1])
	assert.Equal(t, []float64{190, 191, 192}, seq.Coords(RightThumbTip, AxisY))
	assert.NoError(t, seq.RequireJoints(RightWrist, RightThumbTip))
	assert.ErrorIs(t, seq.RequireJoints(RightIndexTip), ErrMissingField)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		joints []string
		want   error
	}{
		{"empty", "", []string{RightWrist}, ErrMissingField},
		{"no_time", "RWrist.x,RWrist.y,RWrist.prob\n1,2,3\n", []string{RightWrist}, ErrMissingField},
		{"missing_prob", "Time,RWrist.x,RWrist.y\n0,1,2\n", []string{RightWrist}, ErrMissingField},
		{"missing_joint", sampleCSV, []string{RightMiddleTip}, ErrMissingField},
		{"bad_number", "Time,RWrist.x,RWrist.y,RWrist.prob\n0,abc,2,0.9\n", []string{RightWrist}, ErrMalformedRecord},
		{"short_row", "Time,RWrist.x,RWrist.y,RWrist.prob\n0,1,2\n", []string{RightWrist}, ErrMalformedRecord},
		{"nan_coordinate", "Time,RWrist.x,RWrist.y,RWrist.prob\n0,NaN,1,0.9\n", []string{RightWrist}, ErrMalformedRecord},
		{"inf_coordinate", "Time,RWrist.x,RWrist.y,RWrist.prob\n0,1,2,0.9\n1,2,Inf,0.9\n", []string{RightWrist}, ErrMalformedRecord},
		{"inf_time", "Time,RWrist.x,RWrist.y,RWrist.prob\n+Inf,1,2,0.9\n", []string{RightWrist}, ErrMalformedRecord},
		{"time_goes_back", "Time,RWrist.x,RWrist.y,RWrist.prob\n1,1,2,0.9\n0.5,1,2,0.9\n", []string{RightWrist}, ErrMalformedRecord},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.input), tc.joints)
			if !errors.Is(err, tc.want) {
				t.Fatalf("ReadCSV err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	seq, err := ReadCSV(strings.NewReader("Time,RWrist.x,RWrist.y,RWrist.prob\n"), []string{RightWrist})
	require.NoError(t, err)
	assert.Equal(t, 0, seq.Len())
	assert.NoError(t, seq.RequireJoints(RightWrist))
}

func TestLoadCSV(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("data/P1/P1_S_01.csv", []byte(sampleCSV))

	seq, err := LoadCSV(fsys, "data/P1/P1_S_01.csv", []string{RightWrist})
	require.NoError(t, err)
	assert.Equal(t, 3, seq.Len())

	_, err = LoadCSV(fsys, "data/P1/missing.csv", []string{RightWrist})
	assert.Error(t, err)

	_, err = LoadCSV(fsys, "data/P1/P1_S_01.csv", []string{RightIndexTip})
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "P1_S_01.csv")
}

func TestMovementID(t *testing.T) {
	assert.Equal(t, "P3_L_17", MovementID("/data/P3/P3_L_17.csv"))
	assert.Equal(t, "P3_L_17", MovementID("P3_L_17"))
}

func TestFromFramesAndSlice(t *testing.T) {
	frames := []Frame{
		{Time: 0, Joints: map[string]Keypoint{RightWrist: {X: 1, Y: 2, Prob: 0.9}}},
		{Time: 1, Joints: map[string]Keypoint{RightWrist: {X: 3, Y: 4, Prob: 0.8}}},
		{Time: 2, Joints: map[string]Keypoint{RightWrist: {X: 5, Y: 6, Prob: 0.7}}},
	}
	seq, err := FromFrames(frames)
	require.NoError(t, err)
	assert.Equal(t, frames[1], seq.Frame(1))

	sub := seq.Slice(1, 3)
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, []float64{4, 6}, sub.Coords(RightWrist, AxisY))

	_, err = FromFrames([]Frame{frames[1], frames[0]})
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = FromFrames([]Frame{frames[0], {Time: 3, Joints: map[string]Keypoint{}}})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestAxis(t *testing.T) {
	kp := Keypoint{X: 1, Y: 2}
	assert.Equal(t, 1.0, kp.Coord(AxisX))
	assert.Equal(t, 2.0, kp.Coord(AxisY))
	assert.Equal(t, "x", AxisX.String())
	assert.Equal(t, "y", AxisY.String())
	assert.Equal(t, "Axis(7)", Axis(7).String())
}
