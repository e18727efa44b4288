package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	errs "breakout-scout/internal/errors"
	"breakout-scout/internal/models"
)

const dateLayout = "2006-01-02"

// SQLiteStore implements PriceStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the price database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent readers
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the tables the ingestion side populates.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fundamentals (
		company_id TEXT PRIMARY KEY,
		company_name TEXT,
		sector TEXT,
		industry TEXT,
		country TEXT,
		last_updated TEXT
	);

	CREATE TABLE IF NOT EXISTS symbols (
		symbol TEXT PRIMARY KEY,
		company_id TEXT,
		exchange TEXT,
		quote_type TEXT,
		market_cap INTEGER,
		delisted_date TEXT,
		is_common INTEGER,
		FOREIGN KEY (company_id) REFERENCES fundamentals(company_id)
	);

	-- Daily bars, dates stored as YYYY-MM-DD
	CREATE TABLE IF NOT EXISTS eod_prices (
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		PRIMARY KEY (symbol, date)
	);

	CREATE INDEX IF NOT EXISTS idx_symbols_company_id ON symbols(company_id);
	CREATE INDEX IF NOT EXISTS idx_eod_prices_symbol ON eod_prices(symbol);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Symbols
// ============================================================================

const symbolColumns = `
	s.symbol, COALESCE(f.company_name, ''), COALESCE(f.sector, ''), COALESCE(f.industry, ''),
	COALESCE(s.market_cap, 0), COALESCE(s.quote_type, ''), s.is_common, s.delisted_date
	FROM symbols s
	LEFT JOIN fundamentals f ON s.company_id = f.company_id`

// ListSymbols returns the screening universe ordered by symbol.
func (s *SQLiteStore) ListSymbols(ctx context.Context, filter SymbolFilter) ([]models.SymbolMeta, error) {
	query := "SELECT " + symbolColumns + " WHERE 1=1"
	args := []interface{}{}

	if !filter.IncludeDelisted {
		query += " AND s.delisted_date IS NULL"
	}
	if len(filter.Symbols) > 0 {
		query += " AND s.symbol IN (" + strings.TrimSuffix(strings.Repeat("?,", len(filter.Symbols)), ",") + ")"
		for _, sym := range filter.Symbols {
			args = append(args, sym)
		}
	}
	query += " ORDER BY s.symbol"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.NewStoreError("list symbols", "", err)
	}
	defer rows.Close()

	var out []models.SymbolMeta
	for rows.Next() {
		m, err := scanSymbol(rows)
		if err != nil {
			return nil, errs.NewStoreError("list symbols", "", err)
		}
		if filter.CommonOnly && !m.IsCommon {
			continue
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewStoreError("list symbols", "", err)
	}
	return out, nil
}

// GetSymbol returns metadata for one symbol.
func (s *SQLiteStore) GetSymbol(ctx context.Context, symbol string) (*models.SymbolMeta, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+symbolColumns+" WHERE s.symbol = ?", symbol)
	m, err := scanSymbol(row)
	if err == sql.ErrNoRows {
		return nil, errs.Wrapf(errs.ErrSymbolNotFound, "%s", symbol)
	}
	if err != nil {
		return nil, errs.NewStoreError("get symbol", symbol, err)
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSymbol(r rowScanner) (*models.SymbolMeta, error) {
	var m models.SymbolMeta
	var isCommon sql.NullBool
	var delisted sql.NullString
	if err := r.Scan(&m.Symbol, &m.SecurityName, &m.Sector, &m.Industry, &m.MarketCap, &m.QuoteType, &isCommon, &delisted); err != nil {
		return nil, err
	}
	if isCommon.Valid {
		m.IsCommon = isCommon.Bool
	} else {
		m.IsCommon = IsCommonSymbol(m.Symbol)
	}
	if delisted.Valid && delisted.String != "" {
		d, err := parseDate(delisted.String)
		if err != nil {
			return nil, err
		}
		m.DelistedDate = &d
	}
	return &m, nil
}

// SaveSymbols upserts symbol and company metadata. It is the write side used
// by ingestion and fixtures; screening never calls it.
func (s *SQLiteStore) SaveSymbols(ctx context.Context, metas []models.SymbolMeta) error {
	if len(metas) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range metas {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO fundamentals (company_id, company_name, sector, industry, last_updated)
			VALUES (?, ?, ?, ?, ?)
		`, m.Symbol, nullString(m.SecurityName), nullString(m.Sector), nullString(m.Industry), time.Now().UTC().Format(dateLayout)); err != nil {
			return fmt.Errorf("failed to save fundamentals for %s: %w", m.Symbol, err)
		}

		var delisted interface{}
		if m.DelistedDate != nil {
			delisted = m.DelistedDate.UTC().Format(dateLayout)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO symbols (symbol, company_id, quote_type, market_cap, delisted_date, is_common)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.Symbol, m.Symbol, nullString(m.QuoteType), m.MarketCap, delisted, m.IsCommon); err != nil {
			return fmt.Errorf("failed to save symbol %s: %w", m.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ============================================================================
// Bars
// ============================================================================

// SaveBars writes bars; an existing (symbol, date) row is replaced.
func (s *SQLiteStore) SaveBars(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO eod_prices (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, b.Date.UTC().Format(dateLayout), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("failed to insert bar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRecentBars returns the latest limit bars in ascending date order.
func (s *SQLiteStore) GetRecentBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, date, open, high, low, close, volume FROM (
			SELECT symbol, date, open, high, low, close, volume
			FROM eod_prices
			WHERE symbol = ?
			ORDER BY date DESC
			LIMIT ?
		) ORDER BY date ASC
	`, symbol, limit)
	if err != nil {
		return nil, errs.NewStoreError("recent bars", symbol, err)
	}
	defer rows.Close()
	return scanBars(symbol, rows)
}

// GetBarsBetween returns bars in [from, to], ascending.
func (s *SQLiteStore) GetBarsBetween(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, date, open, high, low, close, volume
		FROM eod_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, from.UTC().Format(dateLayout), to.UTC().Format(dateLayout))
	if err != nil {
		return nil, errs.NewStoreError("bars between", symbol, err)
	}
	defer rows.Close()
	return scanBars(symbol, rows)
}

// LatestBarDate returns the date of the most recent bar, zero if none.
func (s *SQLiteStore) LatestBarDate(ctx context.Context, symbol string) (time.Time, error) {
	var date sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(date) FROM eod_prices WHERE symbol = ?`, symbol).Scan(&date)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, errs.NewStoreError("latest bar", symbol, err)
	}
	if !date.Valid {
		return time.Time{}, nil
	}
	return parseDate(date.String)
}

func scanBars(symbol string, rows *sql.Rows) ([]models.Bar, error) {
	var bars []models.Bar
	for rows.Next() {
		var b models.Bar
		var date string
		if err := rows.Scan(&b.Symbol, &date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, errs.NewStoreError("scan bar", symbol, err)
		}
		d, err := parseDate(date)
		if err != nil {
			return nil, errs.NewStoreError("scan bar", symbol, err)
		}
		b.Date = d
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewStoreError("scan bar", symbol, err)
	}
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	// tolerate timestamps written by other tools
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.Parse(dateLayout, s)
}
