// Package service holds the portfolio domain logic: price resolution, the
// ledger that mutates cash and holdings, and the background jobs that keep
// quotes and value history current.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/client/alphavantage"
	"folio/internal/models"
)

// QuoteProvider fetches a live quote from the external market data source.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (alphavantage.Quote, error)
}

// PriceSource resolves a usable price for a symbol.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error)
}

// Publisher receives post-commit events. Delivery is best effort; committed
// state never depends on it.
type Publisher interface {
	PublishPortfolioUpdate(ctx context.Context, portfolioID uint64)
	PublishMarketUpdate(quote models.MarketQuote)
	NotifyUser(ctx context.Context, userID uint64, message, notificationType string, data any) error
}

// TransactionSink receives every committed ledger transaction, in commit
// order per portfolio.
type TransactionSink interface {
	PublishTransaction(ctx context.Context, t models.Transaction) error
}

// Auditor records background job outcomes in the external audit log.
type Auditor interface {
	LogBestEffort(action, level string, details map[string]any)
}

type nopPublisher struct{}

func (nopPublisher) PublishPortfolioUpdate(context.Context, uint64) {}
func (nopPublisher) PublishMarketUpdate(models.MarketQuote)         {}
func (nopPublisher) NotifyUser(context.Context, uint64, string, string, any) error {
	return nil
}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
