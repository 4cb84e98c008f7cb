package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"DipHunter/internal/model"
)

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps :memory: databases and write ordering consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                        INTEGER PRIMARY KEY AUTOINCREMENT,
			username                  TEXT NOT NULL UNIQUE,
			email                     TEXT NOT NULL DEFAULT '',
			telegram_chat_id          TEXT NOT NULL DEFAULT '',
			email_signals_receiver    INTEGER NOT NULL DEFAULT 0,
			telegram_signals_receiver INTEGER NOT NULL DEFAULT 0,
			created_at                INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS hunters (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id           INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			symbol            TEXT NOT NULL,
			bar_interval      TEXT NOT NULL,
			lookback          TEXT NOT NULL DEFAULT '',
			comment           TEXT NOT NULL DEFAULT '',
			note              TEXT NOT NULL DEFAULT '',
			running           INTEGER NOT NULL DEFAULT 0,
			toggles           TEXT NOT NULL,
			profile           TEXT NOT NULL,
			klines            BLOB,
			klines_fetched_at INTEGER NOT NULL DEFAULT 0,
			created_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hunters_interval ON hunters(bar_interval)`,
		`CREATE INDEX IF NOT EXISTS idx_hunters_user ON hunters(user_id)`,

		`CREATE TABLE IF NOT EXISTS analysis_settings (
			user_id           INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			symbol            TEXT NOT NULL,
			bar_interval      TEXT NOT NULL,
			lookback          TEXT NOT NULL DEFAULT '',
			klines            BLOB,
			klines_fetched_at INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", st[:40], err)
		}
	}
	return nil
}

// CreateUser inserts the user together with default analysis settings.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `INSERT INTO users
		(username, email, telegram_chat_id, email_signals_receiver, telegram_signals_receiver, created_at)
		VALUES (?,?,?,?,?,?)`,
		u.Username, u.Email, u.TelegramChatID, u.EmailSignalsReceiver, u.TelegramSignalsReceiver, now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	a := model.NewAnalysisSettings(id)
	if _, err := tx.ExecContext(ctx, `INSERT INTO analysis_settings
		(user_id, symbol, bar_interval, lookback) VALUES (?,?,?,?)`,
		id, a.Symbol, a.Interval, a.Lookback,
	); err != nil {
		return 0, fmt.Errorf("insert analysis settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	u.ID = id
	u.CreatedAt = time.Unix(now.Unix(), 0)
	return id, nil
}

const userColumns = `id, username, email, telegram_chat_id, email_signals_receiver, telegram_signals_receiver, created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var created int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.TelegramChatID,
		&u.EmailSignalsReceiver, &u.TelegramSignalsReceiver, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(created, 0)
	return &u, nil
}

func (s *SQLiteStore) User(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *SQLiteStore) Users(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateHunter(ctx context.Context, h *model.Hunter) (int64, error) {
	toggles, profile, err := encodeSettings(h)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO hunters
		(user_id, symbol, bar_interval, lookback, comment, note, running, toggles, profile, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		h.UserID, h.Symbol, h.Interval, h.Lookback, h.Comment, h.Note, h.Running, toggles, profile, now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert hunter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	h.ID = id
	h.CreatedAt = time.Unix(now.Unix(), 0)
	return id, nil
}

// UpdateHunter rewrites the editable fields. Persisted klines are left alone.
func (s *SQLiteStore) UpdateHunter(ctx context.Context, h *model.Hunter) error {
	toggles, profile, err := encodeSettings(h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE hunters SET
		symbol = ?, bar_interval = ?, lookback = ?, comment = ?, note = ?, running = ?, toggles = ?, profile = ?
		WHERE id = ?`,
		h.Symbol, h.Interval, h.Lookback, h.Comment, h.Note, h.Running, toggles, profile, h.ID,
	)
	if err != nil {
		return fmt.Errorf("update hunter: %w", err)
	}
	return expectOneRow(res)
}

func (s *SQLiteStore) DeleteHunter(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM hunters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete hunter: %w", err)
	}
	return expectOneRow(res)
}

const hunterColumns = `id, user_id, symbol, bar_interval, lookback, comment, note, running,
	toggles, profile, klines, klines_fetched_at, created_at`

func scanHunter(row interface{ Scan(...any) error }) (*model.Hunter, error) {
	var h model.Hunter
	var toggles, profile string
	var klines []byte
	var fetched, created int64
	if err := row.Scan(&h.ID, &h.UserID, &h.Symbol, &h.Interval, &h.Lookback, &h.Comment, &h.Note, &h.Running,
		&toggles, &profile, &klines, &fetched, &created); err != nil {
		return nil, err
	}
	if err := sonic.UnmarshalString(toggles, &h.Toggles); err != nil {
		return nil, fmt.Errorf("decode toggles of hunter %d: %w", h.ID, err)
	}
	if err := sonic.UnmarshalString(profile, &h.Profile); err != nil {
		return nil, fmt.Errorf("decode profile of hunter %d: %w", h.ID, err)
	}
	if len(klines) > 0 {
		if err := sonic.Unmarshal(klines, &h.Klines); err != nil {
			return nil, fmt.Errorf("decode klines of hunter %d: %w", h.ID, err)
		}
	}
	if fetched > 0 {
		h.KlinesFetched = time.UnixMilli(fetched)
	}
	h.CreatedAt = time.Unix(created, 0)
	return &h, nil
}

func (s *SQLiteStore) Hunter(ctx context.Context, id int64) (*model.Hunter, error) {
	h, err := scanHunter(s.db.QueryRowContext(ctx, `SELECT `+hunterColumns+` FROM hunters WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

// HuntersByInterval returns every hunter with the interval, in id order.
func (s *SQLiteStore) HuntersByInterval(ctx context.Context, interval string) ([]*model.Hunter, error) {
	return s.queryHunters(ctx, `SELECT `+hunterColumns+` FROM hunters WHERE bar_interval = ? ORDER BY id`, interval)
}

func (s *SQLiteStore) HuntersByUser(ctx context.Context, userID int64) ([]*model.Hunter, error) {
	return s.queryHunters(ctx, `SELECT `+hunterColumns+` FROM hunters WHERE user_id = ? ORDER BY id`, userID)
}

func (s *SQLiteStore) queryHunters(ctx context.Context, query string, arg any) ([]*model.Hunter, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Hunter
	for rows.Next() {
		h, err := scanHunter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// SaveHunterKlines replaces the persisted klines of a hunter wholesale.
func (s *SQLiteStore) SaveHunterKlines(ctx context.Context, id int64, klines []model.RawKline, fetchedAt time.Time) error {
	data, err := sonic.Marshal(klines)
	if err != nil {
		return fmt.Errorf("encode klines: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE hunters SET klines = ?, klines_fetched_at = ? WHERE id = ?`,
		data, fetchedAt.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("save hunter klines: %w", err)
	}
	return expectOneRow(res)
}

const analysisColumns = `user_id, symbol, bar_interval, lookback, klines, klines_fetched_at`

func scanAnalysis(row interface{ Scan(...any) error }) (*model.AnalysisSettings, error) {
	var a model.AnalysisSettings
	var klines []byte
	var fetched int64
	if err := row.Scan(&a.UserID, &a.Symbol, &a.Interval, &a.Lookback, &klines, &fetched); err != nil {
		return nil, err
	}
	if len(klines) > 0 {
		if err := sonic.Unmarshal(klines, &a.Klines); err != nil {
			return nil, fmt.Errorf("decode analysis klines of user %d: %w", a.UserID, err)
		}
	}
	if fetched > 0 {
		a.KlinesFetched = time.UnixMilli(fetched)
	}
	return &a, nil
}

func (s *SQLiteStore) AnalysisSettings(ctx context.Context, userID int64) (*model.AnalysisSettings, error) {
	a, err := scanAnalysis(s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analysis_settings WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *SQLiteStore) AllAnalysisSettings(ctx context.Context) ([]*model.AnalysisSettings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+analysisColumns+` FROM analysis_settings ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AnalysisSettings
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveAnalysisKlines(ctx context.Context, userID int64, klines []model.RawKline, fetchedAt time.Time) error {
	data, err := sonic.Marshal(klines)
	if err != nil {
		return fmt.Errorf("encode klines: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE analysis_settings SET klines = ?, klines_fetched_at = ? WHERE user_id = ?`,
		data, fetchedAt.UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("save analysis klines: %w", err)
	}
	return expectOneRow(res)
}

func (s *SQLiteStore) Close() error {
	s.logger.Info("closing sqlite store")
	return s.db.Close()
}

func encodeSettings(h *model.Hunter) (string, string, error) {
	toggles, err := sonic.MarshalString(h.Toggles)
	if err != nil {
		return "", "", fmt.Errorf("encode toggles: %w", err)
	}
	profile, err := sonic.MarshalString(h.Profile)
	if err != nil {
		return "", "", fmt.Errorf("encode profile: %w", err)
	}
	return toggles, profile, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
