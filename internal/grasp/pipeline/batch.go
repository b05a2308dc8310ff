package pipeline

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/grasp.report/internal/config"
	"github.com/banshee-data/grasp.report/internal/grasp/l5summary"
	"github.com/banshee-data/grasp.report/internal/monitoring"
	"github.com/banshee-data/grasp.report/internal/timeutil"
)

// Sink receives batch output as movements finish. Implementations must be
// safe for concurrent use.
type Sink interface {
	InsertRecords(runID, movementID string, records []l5summary.Record) error
	InsertSkip(runID, movementID, reason string) error
}

// Options configures RunBatch.
type Options struct {
	// Workers bounds concurrent movements; 0 uses cfg's workers setting
	// and falls back to GOMAXPROCS.
	Workers int
	// Sink, when set, is written with RunID as each movement completes.
	Sink  Sink
	RunID string
	Clock timeutil.Clock
}

// Skip records a movement left out of the batch.
type Skip struct {
	ID     string
	Reason string
}

// Batch is the output of RunBatch. Results and Skips keep input order.
type Batch struct {
	Results []*Result
	Skips   []Skip
}

func (o Options) workers(cfg *config.TuningConfig) int {
	if o.Workers > 0 {
		return o.Workers
	}
	if w := cfg.GetWorkers(); w > 0 {
		return w
	}
	return runtime.GOMAXPROCS(0)
}

// RunBatch processes movements concurrently. Movements failing with a
// Skippable error are recorded as skips; any other error cancels the
// remaining work and is returned. Cancelling ctx stops the batch before
// the next movement starts.
func RunBatch(ctx context.Context, movements []Movement, cfg *config.TuningConfig, opts Options) (*Batch, error) {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	start := clock.Now()

	results := make([]*Result, len(movements))
	skips := make([]*Skip, len(movements))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers(cfg))
	for i, m := range movements {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := Process(m, cfg)
			if err != nil {
				if !Skippable(err) {
					return err
				}
				skips[i] = &Skip{ID: m.ID, Reason: err.Error()}
				monitoring.Opsf("skipping %s", err)
				if opts.Sink != nil {
					if err := opts.Sink.InsertSkip(opts.RunID, m.ID, err.Error()); err != nil {
						return fmt.Errorf("%s: record skip: %w", m.ID, err)
					}
				}
				return nil
			}
			results[i] = r
			if opts.Sink != nil {
				if err := opts.Sink.InsertRecords(opts.RunID, m.ID, r.Records); err != nil {
					return fmt.Errorf("%s: store records: %w", m.ID, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		monitoring.Opsf("batch aborted after %v: %v", clock.Since(start), err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := &Batch{}
	for i := range movements {
		if results[i] != nil {
			b.Results = append(b.Results, results[i])
		}
		if skips[i] != nil {
			b.Skips = append(b.Skips, *skips[i])
		}
	}
	monitoring.Opsf("processed %d movements (%d skipped) in %v", len(b.Results), len(b.Skips), clock.Since(start))
	return b, nil
}
