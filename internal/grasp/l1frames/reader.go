package l1frames

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/grasp.report/internal/fsutil"
)

// TimeColumn is the header of the absolute timestamp column.
const TimeColumn = "Time"

// Column suffixes for the per-joint attributes.
const (
	SuffixX    = ".x"
	SuffixY    = ".y"
	SuffixProb = ".prob"
)

type jointColumns struct {
	name       string
	x, y, prob int
}

// ReadCSV decodes a movement recording. The header must contain the Time
// column and, for every requested joint, its .x, .y and .prob columns;
// other columns are ignored. Timestamps must be non-decreasing and every
// value finite.
func ReadCSV(r io.Reader, joints []string) (*Sequence, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input, no header", ErrMissingField)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	lookup := func(col string) (int, error) {
		i, ok := index[col]
		if !ok {
			return 0, fmt.Errorf("%w: column %q", ErrMissingField, col)
		}
		return i, nil
	}

	timeIdx, err := lookup(TimeColumn)
	if err != nil {
		return nil, err
	}
	cols := make([]jointColumns, 0, len(joints))
	for _, j := range joints {
		jc := jointColumns{name: j}
		if jc.x, err = lookup(j + SuffixX); err != nil {
			return nil, err
		}
		if jc.y, err = lookup(j + SuffixY); err != nil {
			return nil, err
		}
		if jc.prob, err = lookup(j + SuffixProb); err != nil {
			return nil, err
		}
		cols = append(cols, jc)
	}

	seq := &Sequence{Time: []float64{}, Joints: make(map[string][]Keypoint, len(joints))}
	for _, jc := range cols {
		seq.Joints[jc.name] = []Keypoint{}
	}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedRecord, row, pe.Err)
			}
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		parse := func(i int) (float64, error) {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: row %d column %q: %q", ErrMalformedRecord, row, header[i], rec[i])
			}
			return v, nil
		}

		t, err := parse(timeIdx)
		if err != nil {
			return nil, err
		}
		if n := len(seq.Time); n > 0 && t < seq.Time[n-1] {
			return nil, fmt.Errorf("%w: row %d time %g precedes %g", ErrMalformedRecord, row, t, seq.Time[n-1])
		}
		seq.Time = append(seq.Time, t)

		for _, jc := range cols {
			var kp Keypoint
			if kp.X, err = parse(jc.x); err != nil {
				return nil, err
			}
			if kp.Y, err = parse(jc.y); err != nil {
				return nil, err
			}
			if kp.Prob, err = parse(jc.prob); err != nil {
				return nil, err
			}
			seq.Joints[jc.name] = append(seq.Joints[jc.name], kp)
		}
	}
	return seq, nil
}

// LoadCSV opens path on fsys and decodes it with ReadCSV.
func LoadCSV(fsys fsutil.FileSystem, path string, joints []string) (*Sequence, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	seq, err := ReadCSV(f, joints)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return seq, nil
}

// MovementID derives a movement identifier from a recording path: the
// base name without its extension.
func MovementID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
