package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	initial_capital REAL NOT NULL,
	final_equity REAL NOT NULL,
	total_realized_pnl REAL NOT NULL,
	total_unrealized_pnl REAL NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS run_trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id),
	date TEXT NOT NULL,
	action TEXT NOT NULL,
	contract_id INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	commission REAL NOT NULL,
	equity REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	note TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_run_trades_run ON run_trades(run_id);
`

// SQLiteSink stores runs in a local SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (creating if needed) the run database at path.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening run database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating run schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// SaveRun writes the run and its trades in one transaction and returns the
// generated run id.
func (s *SQLiteSink) SaveRun(ctx context.Context, summary RunSummary, trades []TradeRecord) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning run save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, start_date, end_date, initial_capital, final_equity, total_realized_pnl, total_unrealized_pnl)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID,
		summary.StartDate.Format("2006-01-02"),
		summary.EndDate.Format("2006-01-02"),
		summary.InitialCapital,
		summary.FinalEquity,
		summary.TotalRealizedPnL,
		summary.TotalUnrealizedPnL,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_trades (run_id, date, action, contract_id, symbol, quantity, price, commission, equity, realized_pnl, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing trade insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		_, err := stmt.ExecContext(ctx,
			runID,
			t.Date.Format("2006-01-02"),
			t.Action,
			t.ContractID,
			t.Symbol,
			t.Quantity,
			t.Price,
			t.Commission,
			t.Equity,
			t.RealizedPnL,
			t.Note,
		)
		if err != nil {
			return "", fmt.Errorf("inserting trade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run save: %w", err)
	}
	return runID, nil
}

var _ RunSink = (*SQLiteSink)(nil)
