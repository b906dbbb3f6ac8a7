package analytics

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/domain"
)

// Schema defines the value_snapshots table in portfolio.db.
const Schema = `
CREATE TABLE IF NOT EXISTS value_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    taken_at INTEGER NOT NULL,
    total_market_value REAL NOT NULL,
    total_cost_basis REAL NOT NULL,
    total_gain REAL NOT NULL,
    priced_count INTEGER NOT NULL,
    stale_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_value_snapshots_taken_at ON value_snapshots(taken_at);
`

// InitSchema ensures the value_snapshots table exists.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Snapshot is one recorded portfolio value point. Totals cover only the
// positions that were priced during that pass.
type Snapshot struct {
	ID               int64     `json:"id"`
	TakenAt          time.Time `json:"taken_at"`
	TotalMarketValue float64   `json:"total_market_value"`
	TotalCostBasis   float64   `json:"total_cost_basis"`
	TotalGain        float64   `json:"total_gain"`
	PricedCount      int       `json:"priced_count"`
	StaleCount       int       `json:"stale_count"`
}

// SnapshotRepository records portfolio value history.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Record stores one value snapshot taken from a valuation pass.
func (r *SnapshotRepository) Record(summary *domain.PortfolioSummary, takenAt time.Time) (*Snapshot, error) {
	if summary == nil {
		return nil, fmt.Errorf("cannot record snapshot of nil summary")
	}

	snapshot := &Snapshot{
		TakenAt:          takenAt.UTC().Truncate(time.Second),
		TotalMarketValue: summary.TotalMarketValue,
		TotalCostBasis:   summary.TotalCostBasis,
		TotalGain:        summary.TotalGain,
		PricedCount:      summary.PricedCount,
		StaleCount:       summary.StaleCount,
	}

	result, err := r.db.Exec(
		`INSERT INTO value_snapshots
		 (taken_at, total_market_value, total_cost_basis, total_gain, priced_count, stale_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.TakenAt.Unix(), snapshot.TotalMarketValue, snapshot.TotalCostBasis,
		snapshot.TotalGain, snapshot.PricedCount, snapshot.StaleCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record snapshot: %w", err)
	}

	snapshot.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot id: %w", err)
	}

	return snapshot, nil
}

// History returns all snapshots taken at or after since, ascending.
func (r *SnapshotRepository) History(since time.Time) ([]Snapshot, error) {
	rows, err := r.db.Query(
		`SELECT id, taken_at, total_market_value, total_cost_basis, total_gain, priced_count, stale_count
		 FROM value_snapshots WHERE taken_at >= ? ORDER BY taken_at ASC, id ASC`,
		since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot history: %w", err)
	}

	return snapshots, nil
}

// Latest returns the most recent snapshot, nil if none exist.
func (r *SnapshotRepository) Latest() (*Snapshot, error) {
	row := r.db.QueryRow(
		`SELECT id, taken_at, total_market_value, total_cost_basis, total_gain, priced_count, stale_count
		 FROM value_snapshots ORDER BY taken_at DESC, id DESC LIMIT 1`,
	)

	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteOlderThan removes snapshots older than maxAge.
// Returns the number of rows deleted.
func (r *SnapshotRepository) DeleteOlderThan(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	result, err := r.db.Exec("DELETE FROM value_snapshots WHERE taken_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Count returns the number of stored snapshots.
func (r *SnapshotRepository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM value_snapshots").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var s Snapshot
	var takenAt int64
	err := row.Scan(&s.ID, &takenAt, &s.TotalMarketValue, &s.TotalCostBasis, &s.TotalGain, &s.PricedCount, &s.StaleCount)
	if err == sql.ErrNoRows {
		return s, err
	}
	if err != nil {
		return s, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	s.TakenAt = time.Unix(takenAt, 0).UTC()
	return s, nil
}
