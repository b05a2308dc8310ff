package testutil

import (
	"net/http"
	"testing"
)

func TestAssertHelpers_PassingPaths(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	AssertError(t, errTest)
	AssertFloatNear(t, "pi", 3.14159, 3.1416, 1e-3)
}

type testErr struct{}

func (testErr) Error() string { return "test" }

var errTest error = testErr{}

func TestGenerators(t *testing.T) {
	t.Parallel()

	times := UniformTimes(4, 1.0, 0.5)
	want := []float64{1.0, 1.5, 2.0, 2.5}
	for i := range want {
		if times[i] != want[i] {
			t.Errorf("UniformTimes[%d] = %g, want %g", i, times[i], want[i])
		}
	}

	c := Constant(3, 7)
	if len(c) != 3 || c[0] != 7 || c[2] != 7 {
		t.Errorf("Constant = %v", c)
	}

	sq := SquareWave(4, 100, 5)
	if sq[0] != 105 || sq[1] != 95 || sq[2] != 105 || sq[3] != 95 {
		t.Errorf("SquareWave = %v", sq)
	}

	joined := Concat(c, sq)
	if len(joined) != 7 || joined[3] != 105 {
		t.Errorf("Concat = %v", joined)
	}
}

func TestNewTestRequestAndRecorder(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodGet, "/debug/")
	if req.Method != http.MethodGet || req.URL.Path != "/debug/" {
		t.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
	}
	rec := NewTestRecorder()
	rec.WriteHeader(http.StatusTeapot)
	AssertStatusCode(t, rec.Code, http.StatusTeapot)
}
