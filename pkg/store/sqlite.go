// Package store archives finished runs in SQLite so they can be listed and
// re-exported later.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/export"
	"github.com/r3d91ll/consensus/pkg/simulation"
)

// MemoryPath opens a private in-memory archive.
const MemoryPath = ":memory:"

// Run is one archived instance result.
type Run struct {
	ID          string                  `json:"id"`
	BatchID     string                  `json:"batch_id"`
	Instance    int                     `json:"instance"`
	Fingerprint string                  `json:"fingerprint"`
	Config      simulation.Config       `json:"config"`
	Seed        uint64                  `json:"seed"`
	Aborted     bool                    `json:"aborted"`
	Started     time.Time               `json:"started"`
	Finished    time.Time               `json:"finished"`
	Plot        simulation.Plot         `json:"plot"`
	Entropy     simulation.EntropyCurve `json:"entropy"`
}

// Result converts the archived run back into an engine result.
func (r *Run) Result() simulation.Result {
	return simulation.Result{
		RunID:    r.ID,
		Instance: r.Instance,
		Config:   r.Config,
		Seed:     r.Seed,
		Plot:     r.Plot,
		Entropy:  r.Entropy,
		Aborted:  r.Aborted,
		Started:  r.Started,
		Finished: r.Finished,
	}
}

// RunSummary is a listing row without plot and entropy data.
type RunSummary struct {
	ID          string           `json:"id"`
	BatchID     string           `json:"batch_id"`
	Instance    int              `json:"instance"`
	Fingerprint string           `json:"fingerprint"`
	AgentCount  uint64           `json:"agent_count"`
	SampleSize  uint8            `json:"sample_size"`
	UpperBoundK uint16           `json:"upper_bound_k"`
	Model       simulation.Model `json:"model"`
	Aborted     bool             `json:"aborted"`
	Phases      int              `json:"phases"`
	Finished    time.Time        `json:"finished"`
}

// Store is the SQLite run archive. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open opens or creates the archive at path and initializes its schema.
func Open(path string) (*Store, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to create archive directory").
				WithContext("path", path)
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to open archive").
			WithContext("path", path)
	}
	// SQLite works best with a single writer; it also keeps an in-memory
	// database on one connection.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if path == MemoryPath {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to enable foreign keys")
		}
	}
	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to initialize archive schema").
			WithContext("path", path)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the archive location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveRun archives one result. Saving the same run ID again replaces it.
func (s *Store) SaveRun(ctx context.Context, batchID string, res simulation.Result) error {
	return s.SaveResults(ctx, batchID, []simulation.Result{res})
}

// SaveResults archives the results of a batch in one transaction.
func (s *Store) SaveResults(ctx context.Context, batchID string, results []simulation.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, res := range results {
		if err := saveRun(ctx, tx, batchID, res); err != nil {
			return cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to archive run").
				WithContext("run", res.RunID)
		}
	}

	if err := tx.Commit(); err != nil {
		return cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to commit archive")
	}
	return nil
}

func saveRun(ctx context.Context, tx *sql.Tx, batchID string, res simulation.Result) error {
	if res.RunID == "" {
		return errors.New("run ID is required")
	}
	cfgJSON, err := json.Marshal(res.Config)
	if err != nil {
		return err
	}

	// Replacing the run row cascades to its points.
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, res.RunID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, batch_id, instance, fingerprint,
			agent_count, sample_size, upper_bound_k, model, initial_distribution, config,
			seed, aborted, entropy_phases, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, batchID, res.Instance, export.Fingerprint(res.Config),
		int64(res.Config.AgentCount), int(res.Config.SampleSize), int(res.Config.UpperBoundK),
		string(res.Config.Model), string(res.Config.InitialDistribution), string(cfgJSON),
		// SQLite integers are signed; the seed round-trips through int64.
		int64(res.Seed), boolToInt(res.Aborted), res.Entropy.Phases,
		formatTime(res.Started), formatTime(res.Finished),
	)
	if err != nil {
		return err
	}

	for _, p := range res.Plot.Points {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO plot_points (run_id, k, interactions) VALUES (?, ?, ?)`,
			res.RunID, int(p.K), int64(p.Interactions)); err != nil {
			return err
		}
	}
	for _, e := range res.Entropy.Points {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entropy_points (run_id, interactions, entropy, hits) VALUES (?, ?, ?, ?)`,
			res.RunID, int64(e.Interactions), e.Entropy, e.Hits); err != nil {
			return err
		}
	}
	return nil
}

// ListRuns returns the most recently finished runs first. A limit of zero
// or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT r.id, r.batch_id, r.instance, r.fingerprint,
		       r.agent_count, r.sample_size, r.upper_bound_k, r.model,
		       r.aborted, r.finished_at,
		       (SELECT COUNT(*) FROM plot_points p WHERE p.run_id = r.id)
		FROM runs r
		ORDER BY r.finished_at DESC, r.batch_id, r.instance`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to list runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			sum         RunSummary
			agentCount  int64
			sampleSize  int
			upperBoundK int
			model       string
			aborted     int
			finished    string
		)
		if err := rows.Scan(&sum.ID, &sum.BatchID, &sum.Instance, &sum.Fingerprint,
			&agentCount, &sampleSize, &upperBoundK, &model,
			&aborted, &finished, &sum.Phases); err != nil {
			return nil, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to scan run")
		}
		sum.AgentCount = uint64(agentCount)
		sum.SampleSize = uint8(sampleSize)
		sum.UpperBoundK = uint16(upperBoundK)
		sum.Model = simulation.Model(model)
		sum.Aborted = aborted != 0
		sum.Finished = parseTime(finished)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to list runs")
	}
	return out, nil
}

// GetRun loads one run with its plot and entropy curve.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		run      Run
		cfgJSON  string
		seed     int64
		aborted  int
		started  string
		finished string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, batch_id, instance, fingerprint, config, seed, aborted,
		       entropy_phases, started_at, finished_at
		FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.BatchID, &run.Instance, &run.Fingerprint, &cfgJSON, &seed, &aborted,
			&run.Entropy.Phases, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cerrors.New(cerrors.ErrRunNotFound, cerrors.CategoryIO, "run not found in archive").
			WithContext("run", id)
	}
	if err != nil {
		return nil, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to load run").
			WithContext("run", id)
	}

	if err := json.Unmarshal([]byte(cfgJSON), &run.Config); err != nil {
		return nil, cerrors.IOWrap(err, cerrors.ErrIOParseFailed, "failed to decode archived config").
			WithContext("run", id)
	}
	run.Seed = uint64(seed)
	run.Aborted = aborted != 0
	run.Started = parseTime(started)
	run.Finished = parseTime(finished)

	if err := s.loadPoints(ctx, &run); err != nil {
		return nil, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to load run data").
			WithContext("run", id)
	}
	return &run, nil
}

func (s *Store) loadPoints(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT k, interactions FROM plot_points WHERE run_id = ? ORDER BY k`, run.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var k int
		var interactions int64
		if err := rows.Scan(&k, &interactions); err != nil {
			rows.Close()
			return err
		}
		run.Plot.Append(uint16(k), uint64(interactions))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT interactions, entropy, hits FROM entropy_points WHERE run_id = ? ORDER BY interactions`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p simulation.EntropyPoint
		var at int64
		if err := rows.Scan(&at, &p.Entropy, &p.Hits); err != nil {
			return err
		}
		p.Interactions = uint64(at)
		run.Entropy.Points = append(run.Entropy.Points, p)
	}
	return rows.Err()
}

// RunsByFingerprint loads the finished, non-aborted runs sharing a
// fingerprint, oldest first.
func (s *Store) RunsByFingerprint(ctx context.Context, fingerprint string) ([]*Run, error) {
	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE fingerprint = ? AND aborted = 0 ORDER BY finished_at`, fingerprint)
	if err != nil {
		s.mu.RUnlock()
		return nil, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to query runs")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			s.mu.RUnlock()
			return nil, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to scan run id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	s.mu.RUnlock()

	runs := make([]*Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// CountRuns returns the number of archived runs.
func (s *Store) CountRuns(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, cerrors.IOWrap(err, cerrors.ErrStoreFailed, "failed to count runs")
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
