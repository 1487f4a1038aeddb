package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/sirupsen/logrus"
)

const quoteColumns = `symbol, kind, name, price, change, change_percent, exchange, extraction_method, captured_at`

// QuoteRepository is the postgres-backed quote store
type QuoteRepository struct {
	db *sql.DB
}

// NewQuoteRepository creates a repository on an open connection pool
func NewQuoteRepository(db *sql.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// Upsert inserts or replaces the row for the quote's symbol. The update is skipped
// when the stored row was captured later, which surfaces as shared.ErrStaleQuote.
func (r *QuoteRepository) Upsert(ctx context.Context, quote models.Quote) error {
	query := `
		INSERT INTO market_quotes (
			symbol, kind, name, price, change, change_percent,
			exchange, extraction_method, captured_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP)
		ON CONFLICT (symbol) DO UPDATE SET
			kind = EXCLUDED.kind,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			change = EXCLUDED.change,
			change_percent = EXCLUDED.change_percent,
			exchange = EXCLUDED.exchange,
			extraction_method = EXCLUDED.extraction_method,
			captured_at = EXCLUDED.captured_at,
			updated_at = CURRENT_TIMESTAMP
		WHERE market_quotes.captured_at <= EXCLUDED.captured_at
	`

	symbol := models.NormalizeSymbol(quote.Symbol)
	result, err := r.db.ExecContext(ctx, query,
		symbol,
		string(quote.Kind),
		quote.Name,
		quote.Price,
		quote.Change,
		quote.ChangePercent,
		quote.Exchange,
		string(quote.ExtractionMethod),
		quote.CapturedAt.UTC(),
	)
	if err != nil {
		return &shared.StoreError{Symbol: symbol, Operation: "upsert", Cause: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &shared.StoreError{Symbol: symbol, Operation: "upsert", Cause: err}
	}
	if affected == 0 {
		return shared.ErrStaleQuote
	}

	logrus.WithFields(logrus.Fields{
		"component":         "QuoteRepository",
		"symbol":            symbol,
		"extraction_method": quote.ExtractionMethod,
	}).Debug("Upserted market quote")

	return nil
}

// SelectAll returns every stored quote ordered by symbol
func (r *QuoteRepository) SelectAll(ctx context.Context) ([]models.Quote, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+quoteColumns+` FROM market_quotes ORDER BY symbol`)
	if err != nil {
		return nil, &shared.StoreError{Operation: "select", Cause: err}
	}
	defer rows.Close()

	quotes := []models.Quote{}
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, &shared.StoreError{Operation: "select", Cause: err}
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return nil, &shared.StoreError{Operation: "select", Cause: err}
	}
	return quotes, nil
}

func (r *QuoteRepository) Get(ctx context.Context, symbol string) (models.Quote, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+quoteColumns+` FROM market_quotes WHERE symbol = $1`, models.NormalizeSymbol(symbol))

	quote, err := scanQuote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Quote{}, shared.ErrQuoteNotFound
	}
	if err != nil {
		return models.Quote{}, &shared.StoreError{Symbol: symbol, Operation: "get", Cause: err}
	}
	return quote, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuote(row rowScanner) (models.Quote, error) {
	var quote models.Quote
	var kind, method string
	err := row.Scan(
		&quote.Symbol,
		&kind,
		&quote.Name,
		&quote.Price,
		&quote.Change,
		&quote.ChangePercent,
		&quote.Exchange,
		&method,
		&quote.CapturedAt,
	)
	if err != nil {
		return models.Quote{}, err
	}
	quote.Kind = models.InstrumentKind(kind)
	quote.ExtractionMethod = models.ExtractionMethod(method)
	quote.CapturedAt = quote.CapturedAt.UTC()
	return quote, nil
}
