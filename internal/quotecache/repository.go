// Package quotecache provides persistent caching for quote provider responses.
// Quotes are stored as msgpack blobs with expiration timestamps for
// cache-first behavior: serve fresh entries without hitting the provider,
// fall back to stale entries when the provider fails.
package quotecache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
)

// Schema defines the quotes table in cache.db.
const Schema = `
CREATE TABLE IF NOT EXISTS quotes (
    symbol TEXT PRIMARY KEY,
    payload BLOB NOT NULL,
    fetched_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quotes_expires ON quotes(expires_at);
`

// InitSchema ensures the quotes table exists.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Repository provides cache operations for quotes.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new quote cache repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Store saves a quote with expiration = now + ttl.
// Uses INSERT OR REPLACE to upsert.
func (r *Repository) Store(quote domain.Quote, ttl time.Duration) error {
	payload, err := msgpack.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote for %s: %w", quote.Symbol, err)
	}

	now := time.Now()
	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO quotes (symbol, payload, fetched_at, expires_at) VALUES (?, ?, ?, ?)",
		quote.Symbol, payload, now.Unix(), now.Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store quote for %s: %w", quote.Symbol, err)
	}

	return nil
}

// StoreBatch saves multiple quotes in a single transaction.
func (r *Repository) StoreBatch(quotes []domain.Quote, ttl time.Duration) error {
	if len(quotes) == 0 {
		return nil
	}

	now := time.Now()
	expiresAt := now.Add(ttl).Unix()

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			"INSERT OR REPLACE INTO quotes (symbol, payload, fetched_at, expires_at) VALUES (?, ?, ?, ?)",
		)
		if err != nil {
			return fmt.Errorf("failed to prepare quote upsert: %w", err)
		}
		defer stmt.Close()

		for _, quote := range quotes {
			payload, err := msgpack.Marshal(quote)
			if err != nil {
				return fmt.Errorf("failed to marshal quote for %s: %w", quote.Symbol, err)
			}
			if _, err := stmt.Exec(quote.Symbol, payload, now.Unix(), expiresAt); err != nil {
				return fmt.Errorf("failed to store quote for %s: %w", quote.Symbol, err)
			}
		}

		return nil
	})
}

// GetIfFresh returns a quote only if expires_at > now, nil otherwise.
// Returns nil, nil if the symbol doesn't exist or the entry is expired.
// Use Get() to retrieve stale entries as a fallback when provider calls fail.
func (r *Repository) GetIfFresh(symbol string) (*domain.Quote, error) {
	return r.get(symbol, true)
}

// Get returns a quote regardless of expiration status.
// Use this as a fallback when provider calls fail - stale data is better
// than no data. Returns nil, nil if the symbol doesn't exist.
func (r *Repository) Get(symbol string) (*domain.Quote, error) {
	return r.get(symbol, false)
}

func (r *Repository) get(symbol string, freshOnly bool) (*domain.Quote, error) {
	query := "SELECT payload FROM quotes WHERE symbol = ?"
	args := []interface{}{symbol}
	if freshOnly {
		query += " AND expires_at > ?"
		args = append(args, time.Now().Unix())
	}

	var payload []byte
	err := r.db.QueryRow(query, args...).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached quote for %s: %w", symbol, err)
	}

	var quote domain.Quote
	if err := msgpack.Unmarshal(payload, &quote); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached quote for %s: %w", symbol, err)
	}

	return &quote, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(symbol string) error {
	if _, err := r.db.Exec("DELETE FROM quotes WHERE symbol = ?", symbol); err != nil {
		return fmt.Errorf("failed to delete cached quote for %s: %w", symbol, err)
	}
	return nil
}

// DeleteExpired removes all entries where expires_at < now.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec("DELETE FROM quotes WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired quotes: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Count returns the number of cached quotes.
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM quotes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cached quotes: %w", err)
	}
	return count, nil
}
