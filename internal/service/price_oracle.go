package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"folio/internal/apperr"
	"folio/internal/cache"
	"folio/internal/models"
	"folio/internal/repository"
)

const DefaultQuoteMaxAge = 5 * time.Minute

// PriceOracle resolves prices from the hot cache, then the stored quote, then
// the provider. A quote younger than MaxAge is served without a provider call.
type PriceOracle struct {
	Repo     repository.MarketQuoteRepository
	Provider QuoteProvider
	Cache    cache.Store
	CacheTTL time.Duration
	MaxAge   time.Duration
	Now      func() time.Time
	Logger   *zap.Logger
}

func (o *PriceOracle) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	q, err := o.GetQuote(ctx, symbol)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	return q.Price, q.AsOf, nil
}

// GetQuote returns a fresh quote when one is known, otherwise refreshes from
// the provider. When the provider fails a stale quote is still returned.
func (o *PriceOracle) GetQuote(ctx context.Context, symbol string) (*models.MarketQuote, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, apperr.E(apperr.InvalidInput, "symbol is required")
	}

	known, err := o.lookup(ctx, symbol)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load quote", err)
	}
	if known != nil && o.fresh(known.AsOf) {
		return known, nil
	}

	q, err := o.Refresh(ctx, symbol)
	if err == nil {
		return &q, nil
	}
	if known != nil {
		o.logger().Warn("price provider failed, serving stale quote",
			zap.String("symbol", symbol),
			zap.Time("as_of", known.AsOf),
			zap.Error(err),
		)
		return known, nil
	}
	return nil, err
}

// Refresh always asks the provider and stores the result.
func (o *PriceOracle) Refresh(ctx context.Context, symbol string) (models.MarketQuote, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return models.MarketQuote{}, apperr.E(apperr.InvalidInput, "symbol is required")
	}
	if o.Provider == nil {
		return models.MarketQuote{}, apperr.Errorf(apperr.PriceUnavailable, "no price available for %s", symbol)
	}
	pq, err := o.Provider.GetQuote(ctx, symbol)
	if err != nil {
		return models.MarketQuote{}, apperr.Wrap(apperr.PriceUnavailable, "no price available for "+symbol, err)
	}
	if pq.Price.IsNegative() {
		return models.MarketQuote{}, apperr.Errorf(apperr.PriceUnavailable, "no price available for %s", symbol)
	}

	q := models.MarketQuote{
		Symbol:        symbol,
		Price:         pq.Price,
		Change:        pq.Change,
		ChangePercent: pq.ChangePercent,
		AsOf:          o.now(),
	}
	if o.Repo != nil {
		if err := o.Repo.UpsertMarketQuote(ctx, &q); err != nil {
			return models.MarketQuote{}, apperr.Wrap(apperr.Internal, "store quote", err)
		}
	}
	if err := cache.SetJSON(ctx, o.Cache, quoteCacheKey(symbol), q, o.CacheTTL); err != nil {
		o.logger().Warn("quote cache write failed", zap.String("symbol", symbol), zap.Error(err))
	}
	return q, nil
}

func (o *PriceOracle) lookup(ctx context.Context, symbol string) (*models.MarketQuote, error) {
	var cached models.MarketQuote
	ok, err := cache.GetJSON(ctx, o.Cache, quoteCacheKey(symbol), &cached)
	if err != nil {
		o.logger().Warn("quote cache read failed", zap.String("symbol", symbol), zap.Error(err))
	}
	if ok && o.fresh(cached.AsOf) {
		return &cached, nil
	}
	if o.Repo == nil {
		if ok {
			return &cached, nil
		}
		return nil, nil
	}
	return o.Repo.GetMarketQuote(ctx, symbol)
}

func (o *PriceOracle) fresh(asOf time.Time) bool {
	if asOf.IsZero() {
		return false
	}
	return o.now().Sub(asOf) < o.maxAge()
}

func (o *PriceOracle) maxAge() time.Duration {
	if o.MaxAge <= 0 {
		return DefaultQuoteMaxAge
	}
	return o.MaxAge
}

func (o *PriceOracle) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return nowUTC()
}

func (o *PriceOracle) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func quoteCacheKey(symbol string) string {
	return "quote:" + symbol
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
