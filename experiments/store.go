// Package experiments records simulation runs so policy comparisons can be
// aggregated and revisited later without re-simulating.
package experiments

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/pyran19/multi-account/montecarlo"
)

const schema = `
CREATE TABLE IF NOT EXISTS simulations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TIMESTAMP NOT NULL,
	policy TEXT NOT NULL,
	accounts INTEGER NOT NULL,
	max_matches INTEGER NOT NULL,
	episodes INTEGER NOT NULL,
	mean REAL NOT NULL,
	stdev REAL NOT NULL,
	min REAL NOT NULL,
	max REAL NOT NULL
);`

// Store persists simulation summaries in a sqlite database.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create results dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create results schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one recorded simulation summary.
type Run struct {
	ID         int64
	CreatedAt  time.Time
	Policy     string
	Accounts   int
	MaxMatches int
	Episodes   int
	Mean       float64
	Stdev      float64
	Min        float64
	Max        float64
}

// SaveResult records one simulation summary. Writes retry briefly since
// sqlite returns busy errors under concurrent writers.
func (s *Store) SaveResult(ctx context.Context, res *montecarlo.SimulationResult) (int64, error) {
	var id int64
	err := retry.Do(
		func() error {
			r, err := s.db.ExecContext(ctx,
				`INSERT INTO simulations
				 (created_at, policy, accounts, max_matches, episodes, mean, stdev, min, max)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				time.Now().UTC(), res.PolicyName, len(res.InitialRatings),
				res.MaxMatches, res.Episodes, res.Mean, res.Stdev, res.Min, res.Max)
			if err != nil {
				return err
			}
			id, err = r.LastInsertId()
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return 0, fmt.Errorf("save simulation result: %w", err)
	}
	log.Debug().Int64("id", id).Str("policy", res.PolicyName).Msg("saved simulation result")
	return id, nil
}

// Runs lists all recorded simulations, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, policy, accounts, max_matches, episodes, mean, stdev, min, max
		 FROM simulations ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list simulation results: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Policy, &r.Accounts,
			&r.MaxMatches, &r.Episodes, &r.Mean, &r.Stdev, &r.Min, &r.Max); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
