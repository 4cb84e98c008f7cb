package recorder

import (
	"database/sql"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists cycle history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while cycles write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			hunter_id   INTEGER NOT NULL,
			user_id     INTEGER NOT NULL,
			symbol      TEXT,
			bar_interval TEXT,
			trigger_type TEXT,
			trend       TEXT,
			outcome     TEXT,
			close       REAL,
			row_count   INTEGER,
			notified    INTEGER,
			error       TEXT,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_hunter ON cycles(hunter_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS batches (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			bar_interval TEXT,
			hunters     INTEGER,
			failed      INTEGER,
			signals     INTEGER,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_ts ON batches(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordCycle(evt *CycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// REAL columns cannot hold NaN; store it as NULL.
	var closePrice any
	if !math.IsNaN(evt.Close) {
		closePrice = evt.Close
	}
	_, err := r.db.Exec(`INSERT INTO cycles
		(timestamp, hunter_id, user_id, symbol, bar_interval, trigger_type, trend, outcome, close, row_count, notified, error, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		evt.StartedAt.Unix(), evt.HunterID, evt.UserID, evt.Symbol, evt.Interval,
		string(evt.Trigger), string(evt.Trend), string(evt.Outcome), closePrice, evt.Rows,
		evt.Notified, evt.Error, evt.Duration.Milliseconds(),
	)
	return err
}

func (r *SQLiteRecorder) RecordBatch(evt *BatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO batches
		(timestamp, bar_interval, hunters, failed, signals, duration_ms)
		VALUES (?,?,?,?,?,?)`,
		evt.StartedAt.Unix(), evt.Interval, evt.Hunters, evt.Failed, evt.Signals, evt.Duration.Milliseconds(),
	)
	return err
}

// CountCycles returns how many cycles were recorded for a hunter.
func (r *SQLiteRecorder) CountCycles(hunterID int64) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM cycles WHERE hunter_id = ?`, hunterID).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
