package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/moznion/go-optional"

	"github.com/tathienbao/signal-bot/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const timeLayout = time.RFC3339Nano

// SQLiteStore implements FeatureStore using SQLite.
//
// Writes go through a single connection guarded by a mutex. Reads use a
// separate read-only pool, so stats queries do not wait on tick writes.
type SQLiteStore struct {
	writer *sql.DB
	reader *sql.DB
	mu     sync.Mutex
	now    func() time.Time
}

// NewSQLiteStore opens (creating if needed) the store at path and migrates it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	writer, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL", path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	writer.SetMaxOpenConns(1)

	if err := writer.Ping(); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{writer: writer, now: time.Now}
	if err := s.Migrate(context.Background()); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// Opened after migration so the file and WAL exist.
	reader, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path))
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open read pool: %w", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.Ping(); err != nil {
		_ = writer.Close()
		_ = reader.Close()
		return nil, fmt.Errorf("ping read pool: %w", err)
	}
	s.reader = reader

	return s, nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time TEXT NOT NULL,
			pair TEXT NOT NULL,
			close REAL NOT NULL,
			rsi2 REAL NOT NULL,
			stoch REAL NOT NULL,
			bb_pos REAL NOT NULL,
			volume REAL NOT NULL,
			volume_sma REAL NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candles_pair_time ON candles(pair, time)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time TEXT NOT NULL,
			pair TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry_price REAL NOT NULL,
			rsi2 REAL NOT NULL,
			stoch REAL NOT NULL,
			bb_pos REAL NOT NULL,
			volume_ratio REAL NOT NULL,
			result INTEGER,
			pl REAL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_pair_time ON trades(pair, time)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_result ON trades(result)`,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, migration := range migrations {
		if _, err := s.writer.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// RecordSnapshot appends a feature snapshot and returns its row id.
func (s *SQLiteStore) RecordSnapshot(ctx context.Context, snap types.FeatureSnapshot) (int64, error) {
	query := `INSERT INTO candles (time, pair, close, rsi2, stoch, bb_pos, volume, volume_sma, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.writer.ExecContext(ctx, query,
		formatTime(snap.Timestamp),
		snap.Symbol,
		snap.Close,
		snap.RSI2,
		snap.StochK,
		snap.BollingerPosition,
		snap.Volume,
		snap.VolumeSMA,
		formatTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert snapshot: %w", types.ErrPersistence, err)
	}
	return insertedID(res, "snapshot")
}

// RecordSignal appends a signal event with an empty result and returns its row id.
func (s *SQLiteStore) RecordSignal(ctx context.Context, sig types.SignalEvent) (int64, error) {
	if sig.Direction == types.DirectionNone {
		return 0, fmt.Errorf("%w: signal without direction", types.ErrPersistence)
	}

	query := `INSERT INTO trades (time, pair, direction, entry_price, rsi2, stoch, bb_pos, volume_ratio, result, pl, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?)`

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.writer.ExecContext(ctx, query,
		formatTime(sig.Timestamp),
		sig.Symbol,
		sig.Direction.String(),
		sig.EntryPrice,
		sig.RSI2,
		sig.StochK,
		sig.BollingerPosition,
		sig.VolumeRatio,
		formatTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert signal: %w", types.ErrPersistence, err)
	}
	return insertedID(res, "signal")
}

func insertedID(res sql.Result, what string) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %s id: %w", types.ErrPersistence, what, err)
	}
	return id, nil
}

// LabelSignal sets the result and P/L of a signal.
func (s *SQLiteStore) LabelSignal(ctx context.Context, id int64, result types.Result, pl optional.Option[float64]) error {
	var resultValue sql.NullInt64
	switch result {
	case types.ResultWin:
		resultValue = sql.NullInt64{Int64: 1, Valid: true}
	case types.ResultLoss:
		resultValue = sql.NullInt64{Int64: 0, Valid: true}
	}

	var plValue sql.NullFloat64
	if pl.IsSome() {
		plValue = sql.NullFloat64{Float64: pl.Unwrap(), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.writer.ExecContext(ctx, `UPDATE trades SET result = ?, pl = ? WHERE id = ?`, resultValue, plValue, id)
	if err != nil {
		return fmt.Errorf("%w: label signal: %w", types.ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: label signal: %w", types.ErrPersistence, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", types.ErrSignalNotFound, id)
	}
	return nil
}

// AggregateStats counts all signals and their labeled outcomes.
func (s *SQLiteStore) AggregateStats(ctx context.Context) (types.Stats, error) {
	query := `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN result = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN result = 0 THEN 1 ELSE 0 END), 0)
		FROM trades`

	var total, wins, losses int
	if err := s.reader.QueryRowContext(ctx, query).Scan(&total, &wins, &losses); err != nil {
		return types.Stats{}, fmt.Errorf("%w: query stats: %w", types.ErrPersistence, err)
	}
	return types.NewStats(total, wins, losses), nil
}

// LastSnapshotTime returns the newest bar time recorded for symbol.
func (s *SQLiteStore) LastSnapshotTime(ctx context.Context, symbol string) (time.Time, bool, error) {
	var raw sql.NullString
	err := s.reader.QueryRowContext(ctx, `SELECT MAX(time) FROM candles WHERE pair = ?`, symbol).Scan(&raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: query last snapshot: %w", types.ErrPersistence, err)
	}
	if !raw.Valid {
		return time.Time{}, false, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// Snapshots returns snapshots matching filter, oldest first.
func (s *SQLiteStore) Snapshots(ctx context.Context, filter SnapshotFilter) ([]types.FeatureSnapshot, error) {
	where, args := buildWhere(filter.Symbol, filter.From, filter.To)
	query := `SELECT id, time, pair, close, rsi2, stoch, bb_pos, volume, volume_sma
		FROM candles` + where + ` ORDER BY time, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []types.FeatureSnapshot
	for rows.Next() {
		var snap types.FeatureSnapshot
		var ts string
		if err := rows.Scan(&snap.ID, &ts, &snap.Symbol, &snap.Close, &snap.RSI2, &snap.StochK,
			&snap.BollingerPosition, &snap.Volume, &snap.VolumeSMA); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if snap.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// Signals returns signals matching filter, newest first.
func (s *SQLiteStore) Signals(ctx context.Context, filter SignalFilter) ([]types.SignalEvent, error) {
	where, args := buildWhere(filter.Symbol, filter.From, filter.To)
	query := `SELECT id, time, pair, direction, entry_price, rsi2, stoch, bb_pos, volume_ratio, result, pl, created_at
		FROM trades` + where + ` ORDER BY time DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var signals []types.SignalEvent
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}

	return signals, rows.Err()
}

func scanSignal(rows *sql.Rows) (types.SignalEvent, error) {
	var (
		sig       types.SignalEvent
		ts        string
		created   string
		direction string
		result    sql.NullInt64
		pl        sql.NullFloat64
	)
	if err := rows.Scan(&sig.ID, &ts, &sig.Symbol, &direction, &sig.EntryPrice, &sig.RSI2, &sig.StochK,
		&sig.BollingerPosition, &sig.VolumeRatio, &result, &pl, &created); err != nil {
		return sig, fmt.Errorf("scan row: %w", err)
	}

	var err error
	if sig.Timestamp, err = parseTime(ts); err != nil {
		return sig, err
	}
	if sig.CreatedAt, err = parseTime(created); err != nil {
		return sig, err
	}
	if sig.Direction, err = types.ParseDirection(direction); err != nil {
		return sig, err
	}

	sig.Result = types.ResultUnknown
	if result.Valid {
		if result.Int64 == 1 {
			sig.Result = types.ResultWin
		} else {
			sig.Result = types.ResultLoss
		}
	}

	sig.PL = optional.None[float64]()
	if pl.Valid {
		sig.PL = optional.Some(pl.Float64)
	}
	return sig, nil
}

func buildWhere(symbol string, from, to time.Time) (string, []any) {
	var clauses []string
	var args []any
	if symbol != "" {
		clauses = append(clauses, "pair = ?")
		args = append(args, symbol)
	}
	if !from.IsZero() {
		clauses = append(clauses, "time >= ?")
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		clauses = append(clauses, "time <= ?")
		args = append(args, formatTime(to))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Ping checks both pools.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.writer.PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if err := s.reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping reader: %w", err)
	}
	return nil
}

// Close closes the database connections.
func (s *SQLiteStore) Close() error {
	return errors.Join(s.reader.Close(), s.writer.Close())
}

// formatTime stores timestamps as fixed-width UTC text so that
// lexicographic order matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
