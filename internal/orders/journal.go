package orders

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"signal-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Journal persists simulated orders to SQLite for audit and signal-quality
// analysis. Writes are serialized by an internal lock; the journal is best
// effort and never blocks the decision path (callers log and continue on
// error).
type Journal struct {
	mu  sync.Mutex
	db  *sql.DB
	log *slog.Logger
}

// NewJournal opens (or creates) the journal database.
func NewJournal(dbPath string, log *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS sim_orders (
		id          INTEGER PRIMARY KEY,
		symbol      TEXT    NOT NULL,
		price       REAL    NOT NULL,
		signal      TEXT    NOT NULL,
		confidence  REAL    NOT NULL,
		side        TEXT    NOT NULL,
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sim_orders_symbol ON sim_orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_sim_orders_created ON sim_orders(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}

	log.Info("order journal opened", "path", dbPath)
	return &Journal{db: db, log: log}, nil
}

// Record persists one order.
func (j *Journal) Record(o model.Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT OR REPLACE INTO sim_orders (id, symbol, price, signal, confidence, side, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Symbol, o.Price, o.Signal, o.Confidence, o.Side, o.T,
	)
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// Orders returns the last n journaled orders, newest first.
func (j *Journal) Orders(n int) ([]model.Order, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, symbol, price, signal, confidence, side, created_at
		 FROM sim_orders ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.Symbol, &o.Price, &o.Signal, &o.Confidence, &o.Side, &o.T); err != nil {
			j.log.Warn("journal scan failed", "err", err)
			continue
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
