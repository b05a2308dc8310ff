package l4kinematics

import (
	"fmt"
	"sort"
)

// Feature names a per-frame kinematic descriptor.
type Feature string

const (
	ThumbIndexAperture  Feature = "thumb-index aperture"
	ThumbMiddleAperture Feature = "thumb-middle aperture"
	IndexMiddleAperture Feature = "index-middle aperture"
	WristX              Feature = "wrist x-coord"
	WristY              Feature = "wrist y-coord"
	WristXStdDev        Feature = "wrist x-std_dev"
	WristYStdDev        Feature = "wrist y-std_dev"
	WristXYStdDist      Feature = "wrist xy-std_dist"
	WristXSpeed         Feature = "wrist x-speed"
	WristYSpeed         Feature = "wrist y-speed"
	WristXYSpeed        Feature = "wrist xy-speed"
)

// AllFeatures lists every feature in its stable output order.
var AllFeatures = []Feature{
	ThumbIndexAperture,
	ThumbMiddleAperture,
	IndexMiddleAperture,
	WristX,
	WristY,
	WristXStdDev,
	WristYStdDev,
	WristXYStdDist,
	WristXSpeed,
	WristYSpeed,
	WristXYSpeed,
}

var featureRank = func() map[Feature]int {
	m := make(map[Feature]int, len(AllFeatures))
	for i, f := range AllFeatures {
		m[f] = i
	}
	return m
}()

// ParseFeature validates a feature name.
func ParseFeature(s string) (Feature, error) {
	f := Feature(s)
	if _, ok := featureRank[f]; !ok {
		return "", fmt.Errorf("unknown kinematic feature %q", s)
	}
	return f, nil
}

// Canonical returns the distinct features of fs in stable output order.
// Unknown names are rejected.
func Canonical(fs []Feature) ([]Feature, error) {
	seen := make(map[Feature]bool, len(fs))
	out := make([]Feature, 0, len(fs))
	for _, f := range fs {
		if _, ok := featureRank[f]; !ok {
			return nil, fmt.Errorf("unknown kinematic feature %q", f)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return featureRank[out[i]] < featureRank[out[j]] })
	return out, nil
}

var apertures = []Feature{ThumbIndexAperture, ThumbMiddleAperture, IndexMiddleAperture}

func withApertures(extra ...Feature) []Feature {
	return append(append([]Feature(nil), apertures...), extra...)
}

// featureSets are the evaluated combinations; every set carries the three
// apertures.
var featureSets = map[int][]Feature{
	1: withApertures(),
	2: withApertures(WristX, WristY),
	3: withApertures(WristXStdDev, WristYStdDev),
	4: withApertures(WristXYStdDist),
	5: withApertures(WristXSpeed, WristYSpeed),
	6: withApertures(WristXYSpeed),
	7: withApertures(WristX, WristY, WristXStdDev, WristYStdDev),
	8: withApertures(WristX, WristY, WristXSpeed, WristYSpeed),
}

// FeatureSetIDs lists the predefined feature set identifiers.
func FeatureSetIDs() []int {
	ids := make([]int, 0, len(featureSets))
	for id := range featureSets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// FeatureSet returns a copy of a predefined feature set.
func FeatureSet(id int) ([]Feature, error) {
	fs, ok := featureSets[id]
	if !ok {
		return nil, fmt.Errorf("unknown feature set %d (want 1-%d)", id, len(featureSets))
	}
	return append([]Feature(nil), fs...), nil
}

// Value is a feature value that may be missing because it was derived
// from a noisy detection.
type Value struct {
	V     float64
	Valid bool
}

// Known wraps a defined value.
func Known(v float64) Value {
	return Value{V: v, Valid: true}
}

// Missing is the undefined value.
var Missing = Value{}
