package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/banshee-data/grasp.report/internal/grasp/l4kinematics"
	"github.com/banshee-data/grasp.report/internal/grasp/l5summary"
	"github.com/banshee-data/grasp.report/internal/timeutil"
)

var (
	// ErrNoRuns is returned by LatestRun when no run has completed.
	ErrNoRuns = errors.New("no completed runs recorded")
	// ErrRunNotFound is returned by GetRun for an unknown run ID.
	ErrRunNotFound = errors.New("run not found")
)

// Run is one invocation of the batch driver. CompletedAt stays zero
// until the batch has written every movement.
type Run struct {
	RunID       string `json:"run_id"`
	CreatedAt   int64  `json:"created_at"`
	CompletedAt int64  `json:"completed_at,omitempty"`
	Version     string `json:"version"`
	ConfigJSON  string `json:"config_json,omitempty"`
}

// Skip is a movement a run left out, with the reason.
type Skip struct {
	MovementID string `json:"movement_id"`
	Reason     string `json:"reason"`
}

// SummaryStore persists runs, summary records and skips.
// It is safe for concurrent use.
type SummaryStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewSummaryStore creates a new SummaryStore.
func NewSummaryStore(db *sql.DB) *SummaryStore {
	return &SummaryStore{db: db, clock: timeutil.RealClock{}}
}

// CreateRun persists a new run. If RunID is empty, a UUID is generated.
func (s *SummaryStore) CreateRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}

	var configJSON interface{}
	if run.ConfigJSON != "" {
		configJSON = run.ConfigJSON
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO grasp_runs (run_id, created_at, version, config_json)
			VALUES (?, ?, ?, ?)`,
			run.RunID, run.CreatedAt, run.Version, configJSON,
		)
		return err
	})
}

// CompleteRun marks a run as finished, making it visible to LatestRun.
func (s *SummaryStore) CompleteRun(run *Run) error {
	completedAt := s.clock.Now().UnixNano()
	err := retryOnBusy(func() error {
		res, err := s.db.Exec(`UPDATE grasp_runs SET completed_at = ? WHERE run_id = ?`, completedAt, run.RunID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, run.RunID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	run.CompletedAt = completedAt
	return nil
}

// DeleteRun removes a run together with its records and skips.
// Deleting an unknown run is not an error.
func (s *SummaryStore) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`DELETE FROM grasp_runs WHERE run_id = ?`, runID)
		return err
	})
}

// GetRun returns a single run by ID, completed or not.
func (s *SummaryStore) GetRun(runID string) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(`
		SELECT run_id, created_at, completed_at, version, config_json
		FROM grasp_runs
		WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// LatestRun returns the most recently created run that has completed.
func (s *SummaryStore) LatestRun() (*Run, error) {
	run, err := scanRun(s.db.QueryRow(`
		SELECT run_id, created_at, completed_at, version, config_json
		FROM grasp_runs
		WHERE completed_at IS NOT NULL
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	return run, err
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var completedAt sql.NullInt64
	var configJSON sql.NullString
	if err := row.Scan(&r.RunID, &r.CreatedAt, &completedAt, &r.Version, &configJSON); err != nil {
		return nil, err
	}
	r.CompletedAt = completedAt.Int64
	r.ConfigJSON = configJSON.String
	return &r, nil
}

// InsertRecords writes the records of one movement in a single
// transaction, replacing any earlier records for the same run and
// movement. Each record is stored as a count row (feature '') plus one
// row per feature.
func (s *SummaryStore) InsertRecords(runID, movementID string, records []l5summary.Record) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM grasp_summaries WHERE run_id = ? AND movement_id = ?`, runID, movementID); err != nil {
			return fmt.Errorf("clear summaries: %w", err)
		}
		stmt, err := tx.Prepare(`
			INSERT INTO grasp_summaries (
				run_id, movement_id, checkpoint, row_count, feature,
				min, max, mean, std_dev, t_max, t_min, slope
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.Exec(runID, movementID, r.Checkpoint, r.Count, "", 0, 0, 0, 0, 0, 0, 0); err != nil {
				return fmt.Errorf("insert count at %g: %w", r.Checkpoint, err)
			}
			for i, f := range r.Features {
				st := r.Stats[i]
				if _, err := stmt.Exec(runID, movementID, r.Checkpoint, r.Count, string(f),
					st.Min, st.Max, st.Mean, st.StdDev, st.TimeOfMax, st.TimeOfMin, st.Slope); err != nil {
					return fmt.Errorf("insert %s at %g: %w", f, r.Checkpoint, err)
				}
			}
		}
		return tx.Commit()
	})
}

// InsertSkip records why a movement was left out of a run.
func (s *SummaryStore) InsertSkip(runID, movementID, reason string) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT OR REPLACE INTO grasp_skips (run_id, movement_id, reason)
			VALUES (?, ?, ?)`, runID, movementID, reason)
		return err
	})
}

// ListRecords rebuilds the records of one movement, ordered by
// checkpoint with features in canonical order.
func (s *SummaryStore) ListRecords(runID, movementID string) ([]l5summary.Record, error) {
	rows, err := s.db.Query(`
		SELECT checkpoint, row_count, feature, min, max, mean, std_dev, t_max, t_min, slope
		FROM grasp_summaries
		WHERE run_id = ? AND movement_id = ?
		ORDER BY checkpoint, feature`, runID, movementID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	type partial struct {
		rec   l5summary.Record
		stats map[l4kinematics.Feature]l5summary.FeatureStats
	}
	var order []float64
	byCheckpoint := map[float64]*partial{}
	for rows.Next() {
		var checkpoint float64
		var count int
		var feature string
		var st l5summary.FeatureStats
		if err := rows.Scan(&checkpoint, &count, &feature,
			&st.Min, &st.Max, &st.Mean, &st.StdDev, &st.TimeOfMax, &st.TimeOfMin, &st.Slope); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		p, ok := byCheckpoint[checkpoint]
		if !ok {
			p = &partial{
				rec:   l5summary.Record{Checkpoint: checkpoint, Count: count},
				stats: map[l4kinematics.Feature]l5summary.FeatureStats{},
			}
			byCheckpoint[checkpoint] = p
			order = append(order, checkpoint)
		}
		if feature == "" {
			continue
		}
		f, err := l4kinematics.ParseFeature(feature)
		if err != nil {
			return nil, fmt.Errorf("summary row at %g: %w", checkpoint, err)
		}
		p.stats[f] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	records := make([]l5summary.Record, 0, len(order))
	for _, c := range order {
		p := byCheckpoint[c]
		fs := make([]l4kinematics.Feature, 0, len(p.stats))
		for f := range p.stats {
			fs = append(fs, f)
		}
		fs, err := l4kinematics.Canonical(fs)
		if err != nil {
			return nil, err
		}
		p.rec.Features = fs
		p.rec.Stats = make([]l5summary.FeatureStats, len(fs))
		for i, f := range fs {
			p.rec.Stats[i] = p.stats[f]
		}
		records = append(records, p.rec)
	}
	return records, nil
}

// Movements returns the IDs of movements with records in a run, sorted.
func (s *SummaryStore) Movements(runID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT movement_id
		FROM grasp_summaries
		WHERE run_id = ?
		ORDER BY movement_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Skips returns the movements a run left out, sorted by movement ID.
func (s *SummaryStore) Skips(runID string) ([]Skip, error) {
	rows, err := s.db.Query(`
		SELECT movement_id, reason
		FROM grasp_skips
		WHERE run_id = ?
		ORDER BY movement_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query skips: %w", err)
	}
	defer rows.Close()

	var skips []Skip
	for rows.Next() {
		var sk Skip
		if err := rows.Scan(&sk.MovementID, &sk.Reason); err != nil {
			return nil, err
		}
		skips = append(skips, sk)
	}
	return skips, rows.Err()
}

// CheckpointRecords returns every movement's record at one checkpoint,
// keyed by movement ID.
func (s *SummaryStore) CheckpointRecords(runID string, checkpoint float64) (map[string]l5summary.Record, error) {
	ids, err := s.Movements(runID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]l5summary.Record, len(ids))
	for _, id := range ids {
		records, err := s.ListRecords(runID, id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		i := sort.Search(len(records), func(i int) bool { return records[i].Checkpoint >= checkpoint })
		if i < len(records) && records[i].Checkpoint == checkpoint {
			out[id] = records[i]
		}
	}
	return out, nil
}
