package pipeline

import (
	"errors"
	"fmt"

	"github.com/banshee-data/grasp.report/internal/config"
	"github.com/banshee-data/grasp.report/internal/grasp/l1frames"
	"github.com/banshee-data/grasp.report/internal/grasp/l2clean"
	"github.com/banshee-data/grasp.report/internal/grasp/l3segment"
	"github.com/banshee-data/grasp.report/internal/grasp/l4kinematics"
	"github.com/banshee-data/grasp.report/internal/grasp/l5summary"
	"github.com/banshee-data/grasp.report/internal/monitoring"
)

// Movement is one recorded reach-and-grasp.
type Movement struct {
	ID  string
	Seq *l1frames.Sequence
}

// Result holds every stage output of one processed movement.
type Result struct {
	ID string
	// Segment bounds index the original sequence and include the warm-up
	// and lead-in frames.
	Segment *l3segment.Segmentation
	Table   *l4kinematics.Table
	Records []l5summary.Record
}

// Skippable reports whether err marks a movement the batch should skip
// rather than abort on.
func Skippable(err error) bool {
	return errors.Is(err, l3segment.ErrNotSegmentable) || errors.Is(err, l2clean.ErrSequenceInvalidated)
}

// Process runs one movement through cleaning, segmentation, feature
// engineering and summary extraction.
func Process(m Movement, cfg *config.TuningConfig) (*Result, error) {
	if m.Seq == nil {
		return nil, fmt.Errorf("%s: %w: no frames", m.ID, l1frames.ErrMissingField)
	}
	if err := m.Seq.RequireJoints(cfg.Joints()...); err != nil {
		return nil, fmt.Errorf("%s: %w", m.ID, err)
	}
	features, err := cfg.GetFeatures()
	if err != nil {
		return nil, err
	}

	ref := cfg.GetReferenceJoint()
	cleaned, err := l2clean.Clean(m.Seq, ref, l1frames.AxisY, cfg.CleanParams())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.ID, err)
	}
	monitoring.Tracef("%s: %d of %d frames survive cleaning", m.ID, cleaned.Len(), m.Seq.Len())

	// The segment carries Window-1 warm-up frames ahead of the lead-in so
	// the first output row of the feature table is the phase start.
	sp := cfg.SegmentParams()
	seg, err := l3segment.Segment(m.Seq, cleaned, sp, sp.Window-1+cfg.GetLeadIn(), cfg.GetLeadOut())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.ID, err)
	}
	monitoring.Diagf("%s: phase %d/%d/%d, frames %d..%d", m.ID, seg.Phase.Start, seg.Phase.Peak, seg.Phase.End, seg.Start, seg.End)

	window := m.Seq.Slice(seg.Start, seg.End+1)
	table, err := l4kinematics.Engineer(window, features, cfg.KinematicParams())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.ID, err)
	}

	records, err := l5summary.Extract(table, cfg.GetCompletionCheckpoints())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.ID, err)
	}
	monitoring.Tracef("%s: %d feature rows, %d records", m.ID, table.Len(), len(records))

	return &Result{ID: m.ID, Segment: seg, Table: table, Records: records}, nil
}
