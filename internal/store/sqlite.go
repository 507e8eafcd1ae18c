package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/liu-kaining/stocksViewer/internal/model"
)

// SQLite persists cached market data to a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer; the sqlite driver serializes writes but concurrent
	// request handlers share this pool.
	db.SetMaxOpenConns(1)

	// WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", path)
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recent_quotes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT NOT NULL UNIQUE,
			data       TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS historical_data (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT NOT NULL,
			interval   TEXT NOT NULL,
			range_key  TEXT NOT NULL,
			adjusted   INTEGER NOT NULL DEFAULT 1,
			as_of_date TEXT,
			data       TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			UNIQUE(symbol, interval, range_key, adjusted)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_historical_fetched ON historical_data(fetched_at)`,

		`CREATE TABLE IF NOT EXISTS indicator_data (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT NOT NULL,
			indicator  TEXT NOT NULL,
			params     TEXT NOT NULL,
			interval   TEXT NOT NULL,
			as_of_date TEXT,
			data       TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			UNIQUE(symbol, indicator, interval, params)
		)`,

		`CREATE TABLE IF NOT EXISTS app_config (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			key        TEXT NOT NULL UNIQUE,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLite) GetQuote(ctx context.Context, symbol string) (*model.QuoteRecord, error) {
	var data string
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT data, fetched_at FROM recent_quotes WHERE symbol = ?`, symbol,
	).Scan(&data, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get quote: %v", ErrUnavailable, err)
	}

	var rec model.QuoteRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("%w: quote %s: %v", ErrCorrupt, symbol, err)
	}
	rec.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	return &rec, nil
}

func (s *SQLite) PutQuote(ctx context.Context, rec *model.QuoteRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recent_quotes (symbol, data, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET data=excluded.data, fetched_at=excluded.fetched_at`,
		rec.Symbol, string(data), rec.FetchedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: put quote: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLite) DeleteQuotes(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recent_quotes`)
	if err != nil {
		return 0, fmt.Errorf("%w: delete quotes: %v", ErrUnavailable, err)
	}
	return res.RowsAffected()
}

func (s *SQLite) GetHistory(ctx context.Context, symbol, interval, rangeKey string, adjusted bool) (*model.HistorySpan, error) {
	var data string
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT data, fetched_at FROM historical_data
		 WHERE symbol = ? AND interval = ? AND range_key = ? AND adjusted = ?`,
		symbol, interval, rangeKey, boolToInt(adjusted),
	).Scan(&data, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get history: %v", ErrUnavailable, err)
	}

	var span model.HistorySpan
	if err := json.Unmarshal([]byte(data), &span); err != nil {
		return nil, fmt.Errorf("%w: history %s/%s/%s: %v", ErrCorrupt, symbol, interval, rangeKey, err)
	}
	span.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	return &span, nil
}

func (s *SQLite) PutHistory(ctx context.Context, span *model.HistorySpan) error {
	data, err := json.Marshal(span)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO historical_data (symbol, interval, range_key, adjusted, as_of_date, data, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(symbol, interval, range_key, adjusted)
		 DO UPDATE SET as_of_date=excluded.as_of_date, data=excluded.data, fetched_at=excluded.fetched_at`,
		span.Symbol, span.Interval, span.Range, boolToInt(span.Adjusted),
		span.AsOfDate, string(data), span.FetchedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: put history: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLite) DeleteHistory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM historical_data`)
	if err != nil {
		return 0, fmt.Errorf("%w: delete history: %v", ErrUnavailable, err)
	}
	return res.RowsAffected()
}

func (s *SQLite) PurgeHistoryOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM historical_data WHERE fetched_at < ?`, cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: purge history: %v", ErrUnavailable, err)
	}
	return res.RowsAffected()
}

func (s *SQLite) GetIndicator(ctx context.Context, symbol, indicator, interval string, params map[string]string) (*model.IndicatorRecord, error) {
	var data string
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT data, fetched_at FROM indicator_data
		 WHERE symbol = ? AND indicator = ? AND interval = ? AND params = ?`,
		symbol, indicator, interval, model.CanonicalParams(params),
	).Scan(&data, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get indicator: %v", ErrUnavailable, err)
	}

	var rec model.IndicatorRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("%w: indicator %s/%s: %v", ErrCorrupt, symbol, indicator, err)
	}
	rec.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	return &rec, nil
}

func (s *SQLite) PutIndicator(ctx context.Context, rec *model.IndicatorRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode indicator: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO indicator_data (symbol, indicator, params, interval, as_of_date, data, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(symbol, indicator, interval, params)
		 DO UPDATE SET as_of_date=excluded.as_of_date, data=excluded.data, fetched_at=excluded.fetched_at`,
		rec.Symbol, rec.Indicator, model.CanonicalParams(rec.Params), rec.Interval,
		rec.AsOfDate, string(data), rec.FetchedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: put indicator: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLite) DeleteIndicators(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM indicator_data`)
	if err != nil {
		return 0, fmt.Errorf("%w: delete indicators: %v", ErrUnavailable, err)
	}
	return res.RowsAffected()
}

func (s *SQLite) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM app_config WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: get config: %v", ErrUnavailable, err)
	}
	return value, nil
}

func (s *SQLite) PutConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_config (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: put config: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLite) AllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_config`)
	if err != nil {
		return nil, fmt.Errorf("%w: all config: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%w: scan config: %v", ErrUnavailable, err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: all config: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (s *SQLite) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
