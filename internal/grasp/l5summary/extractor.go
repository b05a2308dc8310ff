package l5summary

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/grasp.report/internal/grasp/l4kinematics"
)

// DefaultCheckpoints are the completion percentages summarised by default.
var DefaultCheckpoints = []float64{20, 40, 60, 80, 100}

// ValidateCheckpoints reports whether every checkpoint lies in (0, 100].
func ValidateCheckpoints(checkpoints []float64) error {
	if len(checkpoints) == 0 {
		return fmt.Errorf("at least one completion checkpoint is required")
	}
	for _, c := range checkpoints {
		if math.IsNaN(c) || c <= 0 || c > 100 {
			return fmt.Errorf("completion checkpoint %g outside (0, 100]", c)
		}
	}
	return nil
}

// Extract summarises table at each checkpoint, returning one record per
// checkpoint in the order given.
func Extract(table *l4kinematics.Table, checkpoints []float64) ([]Record, error) {
	if err := ValidateCheckpoints(checkpoints); err != nil {
		return nil, err
	}
	columns := make([][]l4kinematics.Value, len(table.Features))
	for i, f := range table.Features {
		columns[i], _ = table.Column(f)
	}

	records := make([]Record, len(checkpoints))
	for i, c := range checkpoints {
		n := prefixLen(table.Progress, c)
		r := Record{
			Checkpoint: c,
			Count:      n,
			Features:   table.Features,
			Stats:      make([]FeatureStats, len(columns)),
		}
		for j, col := range columns {
			r.Stats[j] = Summarise(table.Time[:n], col[:n])
		}
		records[i] = r
	}
	return records, nil
}

// prefixLen returns the number of leading rows with progress <= c.
// Progress is non-decreasing so the rows form a prefix.
func prefixLen(progress []float64, c float64) int {
	return sort.Search(len(progress), func(i int) bool { return progress[i] > c })
}

// Summarise computes the statistics of the defined values of one feature.
// Non-finite values count as undefined, and any statistic that does not
// come out finite is reported as 0. times and vals must have equal length.
func Summarise(times []float64, vals []l4kinematics.Value) FeatureStats {
	xs := make([]float64, 0, len(vals))
	ts := make([]float64, 0, len(vals))
	for i, v := range vals {
		if v.Valid && isFinite(v.V) && isFinite(times[i]) {
			xs = append(xs, v.V)
			ts = append(ts, times[i])
		}
	}
	if len(xs) == 0 {
		return FeatureStats{}
	}

	mean, variance := stat.PopMeanVariance(xs, nil)
	s := FeatureStats{
		Min:       finite(floats.Min(xs)),
		Max:       finite(floats.Max(xs)),
		Mean:      finite(mean),
		StdDev:    finite(math.Sqrt(variance)),
		TimeOfMax: finite(ts[floats.MaxIdx(xs)]),
		TimeOfMin: finite(ts[floats.MinIdx(xs)]),
	}
	if len(xs) > 1 {
		_, beta := stat.LinearRegression(ts, xs, nil, false)
		s.Slope = finite(beta)
	}
	return s
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finite(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}
