package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	errs "breakout-scout/internal/errors"
	"breakout-scout/internal/logging"
	"breakout-scout/internal/models"
	"breakout-scout/pkg/utils"
)

// EodPrice maps one row of eod_prices.
type EodPrice struct {
	Symbol string    `gorm:"primaryKey;size:20"`
	Date   time.Time `gorm:"primaryKey;type:date"`
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// TableName specifies the table name for GORM
func (EodPrice) TableName() string {
	return "eod_prices"
}

func (p EodPrice) toBar() models.Bar {
	return models.Bar{
		Symbol: p.Symbol,
		Date:   time.Date(p.Date.Year(), p.Date.Month(), p.Date.Day(), 0, 0, 0, 0, time.UTC),
		Open:   p.Open,
		High:   p.High,
		Low:    p.Low,
		Close:  p.Close,
		Volume: p.Volume,
	}
}

// symbolRow is the joined symbols/fundamentals projection.
type symbolRow struct {
	Symbol       string
	CompanyName  string
	Sector       string
	Industry     string
	MarketCap    int64
	QuoteType    string
	IsCommon     *bool
	DelistedDate *time.Time
}

func (r symbolRow) toMeta() models.SymbolMeta {
	m := models.SymbolMeta{
		Symbol:       r.Symbol,
		SecurityName: r.CompanyName,
		Sector:       r.Sector,
		Industry:     r.Industry,
		MarketCap:    r.MarketCap,
		QuoteType:    r.QuoteType,
		DelistedDate: r.DelistedDate,
	}
	if r.IsCommon != nil {
		m.IsCommon = *r.IsCommon
	} else {
		m.IsCommon = IsCommonSymbol(r.Symbol)
	}
	return m
}

const pgSymbolSelect = `
	SELECT s.symbol, COALESCE(f.company_name, '') AS company_name,
		COALESCE(f.sector, '') AS sector, COALESCE(f.industry, '') AS industry,
		COALESCE(s.market_cap, 0) AS market_cap, COALESCE(s.quote_type, '') AS quote_type,
		s.is_common, s.delisted_date
	FROM symbols s
	LEFT JOIN fundamentals f ON s.company_id = f.company_id`

// PostgresStore implements PriceStore over a Postgres database shared with
// the ingestion pipeline.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects with adaptive retries; the delay between attempts is
// chosen by ctrl.
func OpenPostgres(ctx context.Context, dsn string, ctrl utils.DelayController, attempts int, log zerolog.Logger) (*PostgresStore, error) {
	log = log.With().Str("dsn", logging.RedactDSN(dsn)).Logger()
	var db *gorm.DB
	err := utils.RetryAdaptive(ctx, ctrl, attempts, log, func(ctx context.Context) error {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Debug().Msg("connected to postgres")
	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListSymbols returns the screening universe ordered by symbol.
func (s *PostgresStore) ListSymbols(ctx context.Context, filter SymbolFilter) ([]models.SymbolMeta, error) {
	query := pgSymbolSelect + " WHERE 1=1"
	var args []interface{}
	if !filter.IncludeDelisted {
		query += " AND s.delisted_date IS NULL"
	}
	if len(filter.Symbols) > 0 {
		query += " AND s.symbol IN ?"
		args = append(args, filter.Symbols)
	}
	query += " ORDER BY s.symbol"

	var rows []symbolRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, errs.NewStoreError("list symbols", "", err)
	}

	out := make([]models.SymbolMeta, 0, len(rows))
	for _, r := range rows {
		m := r.toMeta()
		if filter.CommonOnly && !m.IsCommon {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// GetSymbol returns metadata for one symbol.
func (s *PostgresStore) GetSymbol(ctx context.Context, symbol string) (*models.SymbolMeta, error) {
	var rows []symbolRow
	if err := s.db.WithContext(ctx).Raw(pgSymbolSelect+" WHERE s.symbol = ?", symbol).Scan(&rows).Error; err != nil {
		return nil, errs.NewStoreError("get symbol", symbol, err)
	}
	if len(rows) == 0 {
		return nil, errs.Wrapf(errs.ErrSymbolNotFound, "%s", symbol)
	}
	m := rows[0].toMeta()
	return &m, nil
}

// GetRecentBars returns the latest limit bars in ascending date order.
func (s *PostgresStore) GetRecentBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error) {
	var rows []EodPrice
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("date DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errs.NewStoreError("recent bars", symbol, err)
	}

	bars := make([]models.Bar, len(rows))
	for i, r := range rows {
		bars[len(rows)-1-i] = r.toBar()
	}
	return bars, nil
}

// GetBarsBetween returns bars in [from, to], ascending.
func (s *PostgresStore) GetBarsBetween(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	var rows []EodPrice
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND date >= ? AND date <= ?", symbol, from.Format(dateLayout), to.Format(dateLayout)).
		Order("date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errs.NewStoreError("bars between", symbol, err)
	}

	bars := make([]models.Bar, len(rows))
	for i, r := range rows {
		bars[i] = r.toBar()
	}
	return bars, nil
}
