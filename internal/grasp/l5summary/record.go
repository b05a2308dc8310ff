package l5summary

import (
	"fmt"

	"github.com/banshee-data/grasp.report/internal/grasp/l4kinematics"
)

// Statistic names one summary statistic of a feature trajectory.
type Statistic string

const (
	Min       Statistic = "min"
	Max       Statistic = "max"
	Mean      Statistic = "mean"
	StdDev    Statistic = "std"
	TimeOfMax Statistic = "tmax"
	TimeOfMin Statistic = "tmin"
	Slope     Statistic = "slope"
)

// Statistics lists the per-feature statistics in record order.
var Statistics = []Statistic{Min, Max, Mean, StdDev, TimeOfMax, TimeOfMin, Slope}

// CountName is the column name of the frame-count scalar.
const CountName = "count"

// FeatureStats summarises one feature over a completion prefix. All
// fields are 0 when the prefix has no defined value for the feature.
type FeatureStats struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std"`
	TimeOfMax float64 `json:"tmax"`
	TimeOfMin float64 `json:"tmin"`
	Slope     float64 `json:"slope"`
}

// Get returns one statistic by name.
func (s FeatureStats) Get(st Statistic) (float64, error) {
	switch st {
	case Min:
		return s.Min, nil
	case Max:
		return s.Max, nil
	case Mean:
		return s.Mean, nil
	case StdDev:
		return s.StdDev, nil
	case TimeOfMax:
		return s.TimeOfMax, nil
	case TimeOfMin:
		return s.TimeOfMin, nil
	case Slope:
		return s.Slope, nil
	}
	return 0, fmt.Errorf("unknown statistic %q", st)
}

func (s FeatureStats) values() [7]float64 {
	return [7]float64{s.Min, s.Max, s.Mean, s.StdDev, s.TimeOfMax, s.TimeOfMin, s.Slope}
}

// Record summarises one movement at one completion checkpoint.
// Stats is aligned with Features.
type Record struct {
	Checkpoint float64                `json:"checkpoint"`
	Count      int                    `json:"count"`
	Features   []l4kinematics.Feature `json:"features"`
	Stats      []FeatureStats         `json:"stats"`
}

// Len returns the length of Vector.
func (r *Record) Len() int {
	return 1 + len(Statistics)*len(r.Features)
}

// Vector returns [count] followed by the statistics of every feature in
// record order.
func (r *Record) Vector() []float64 {
	out := make([]float64, 0, r.Len())
	out = append(out, float64(r.Count))
	for _, s := range r.Stats {
		v := s.values()
		out = append(out, v[:]...)
	}
	return out
}

// Names returns the column names matching Vector.
func (r *Record) Names() []string {
	return SubsetNames(r.Features)
}

// SubsetNames returns the column names for a Subset over features.
func SubsetNames(features []l4kinematics.Feature) []string {
	out := make([]string, 0, 1+len(Statistics)*len(features))
	out = append(out, CountName)
	for _, f := range features {
		for _, st := range Statistics {
			out = append(out, fmt.Sprintf("%s %s", f, st))
		}
	}
	return out
}

// Stat returns the statistics of one feature.
func (r *Record) Stat(f l4kinematics.Feature) (FeatureStats, bool) {
	for i, name := range r.Features {
		if name == f {
			return r.Stats[i], true
		}
	}
	return FeatureStats{}, false
}

// Missing returns the requested features the record holds no statistics
// for, in request order.
func (r *Record) Missing(features ...l4kinematics.Feature) []l4kinematics.Feature {
	var out []l4kinematics.Feature
	for _, f := range features {
		if _, ok := r.Stat(f); !ok {
			out = append(out, f)
		}
	}
	return out
}

// Subset returns [count] followed by the statistics of the requested
// features in request order. A feature the record lacks contributes zeros
// so vectors of different movements stay aligned.
func (r *Record) Subset(features ...l4kinematics.Feature) []float64 {
	out := make([]float64, 0, 1+len(Statistics)*len(features))
	out = append(out, float64(r.Count))
	for _, f := range features {
		s, _ := r.Stat(f)
		v := s.values()
		out = append(out, v[:]...)
	}
	return out
}
