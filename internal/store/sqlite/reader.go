package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	"tickerhub/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the bar journal for deep history
// beyond the state store's rolling window.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars reads journaled bars for a symbol+timeframe with ts > afterTS,
// ordered ascending for correct replay order. limit <= 0 means no limit.
func (r *Reader) ReadBars(symbol, tf string, afterTS int64, limit int) ([]model.Bar, error) {
	q := `
		SELECT symbol, tf, ts, open, high, low, close, volume, warmup
		FROM bars
		WHERE symbol = ? AND tf = ? AND ts > ?
		ORDER BY ts ASC
	`
	args := []any{symbol, tf, afterTS}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var warmup int
		if err := rows.Scan(&b.Symbol, &b.TF, &b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &warmup); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.Warmup = warmup != 0
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
