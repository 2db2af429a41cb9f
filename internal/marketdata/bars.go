package marketdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Bar is a single daily OHLCV record for an underlying.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// BarStore is the historical daily-bar lookup consumed by the synthetic
// provider. Implementations return ErrBarNotFound when no bar exists, which
// keeps absence distinguishable from a zero-price bar.
type BarStore interface {
	GetBar(ctx context.Context, symbol string, date time.Time) (Bar, error)
}

const barDateLayout = "2006-01-02"

const barSchema = `
CREATE TABLE IF NOT EXISTS daily_bars (
	symbol TEXT NOT NULL,
	date   TEXT NOT NULL,
	open   REAL NOT NULL,
	high   REAL NOT NULL,
	low    REAL NOT NULL,
	close  REAL NOT NULL,
	volume INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, date)
);
`

// SQLiteBarStore is a BarStore backed by a local SQLite database.
type SQLiteBarStore struct {
	db *sql.DB
}

// OpenBarStore opens (creating if necessary) a SQLite-backed bar store.
func OpenBarStore(path string) (*SQLiteBarStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening bar db: %w", err)
	}

	// WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec(barSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bar schema migration: %w", err)
	}

	return &SQLiteBarStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteBarStore) Close() error {
	return s.db.Close()
}

// GetBar returns the bar for symbol on date, or ErrBarNotFound.
func (s *SQLiteBarStore) GetBar(ctx context.Context, symbol string, date time.Time) (Bar, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT open, high, low, close, volume
		FROM daily_bars WHERE symbol = ? AND date = ?`,
		symbol, date.UTC().Format(barDateLayout),
	)

	bar := Bar{Symbol: symbol, Date: date}
	err := row.Scan(&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
	if errors.Is(err, sql.ErrNoRows) {
		return Bar{}, ErrBarNotFound
	}
	if err != nil {
		return Bar{}, fmt.Errorf("querying bar %s %s: %w", symbol, date.Format(barDateLayout), err)
	}
	return bar, nil
}

// PutBar inserts or replaces a bar. Used by ingestion tooling and tests.
func (s *SQLiteBarStore) PutBar(ctx context.Context, bar Bar) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_bars (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume`,
		bar.Symbol, bar.Date.UTC().Format(barDateLayout),
		bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
	)
	if err != nil {
		return fmt.Errorf("upserting bar %s %s: %w", bar.Symbol, bar.Date.Format(barDateLayout), err)
	}
	return nil
}

// MapBarStore is an in-memory BarStore for tests and small fixtures.
type MapBarStore struct {
	bars map[string]Bar
}

// NewMapBarStore builds a MapBarStore from the given bars.
func NewMapBarStore(bars ...Bar) *MapBarStore {
	m := &MapBarStore{bars: make(map[string]Bar, len(bars))}
	for _, b := range bars {
		m.Put(b)
	}
	return m
}

func mapBarKey(symbol string, date time.Time) string {
	return symbol + "|" + date.UTC().Format(barDateLayout)
}

// Put adds or replaces a bar.
func (m *MapBarStore) Put(bar Bar) {
	m.bars[mapBarKey(bar.Symbol, bar.Date)] = bar
}

// GetBar returns the bar for symbol on date, or ErrBarNotFound.
func (m *MapBarStore) GetBar(_ context.Context, symbol string, date time.Time) (Bar, error) {
	bar, ok := m.bars[mapBarKey(symbol, date)]
	if !ok {
		return Bar{}, ErrBarNotFound
	}
	return bar, nil
}

var (
	_ BarStore = (*SQLiteBarStore)(nil)
	_ BarStore = (*MapBarStore)(nil)
)
