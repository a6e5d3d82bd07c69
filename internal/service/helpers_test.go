package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"folio/internal/client/alphavantage"
	"folio/internal/models"
	"folio/internal/repository/memory"
)

type fakeProvider struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	fail   map[string]bool
	calls  map[string]int
	order  []string
}

func newFakeProvider(prices map[string]string) *fakeProvider {
	p := &fakeProvider{prices: map[string]decimal.Decimal{}, fail: map[string]bool{}, calls: map[string]int{}}
	for sym, v := range prices {
		p.prices[sym] = decimal.RequireFromString(v)
	}
	return p
}

func (p *fakeProvider) GetQuote(ctx context.Context, symbol string) (alphavantage.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[symbol]++
	p.order = append(p.order, symbol)
	if p.fail[symbol] {
		return alphavantage.Quote{}, alphavantage.ErrRateLimited
	}
	price, ok := p.prices[symbol]
	if !ok {
		return alphavantage.Quote{}, errors.New("unknown symbol")
	}
	return alphavantage.Quote{Symbol: symbol, Price: price, Change: decimal.NewFromInt(1), ChangePercent: decimal.RequireFromString("0.5")}, nil
}

func (p *fakeProvider) callCount(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

func (p *fakeProvider) setFail(symbol string, fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[symbol] = fail
}

type notifyCall struct {
	UserID  uint64
	Message string
	Type    string
}

type recordingPublisher struct {
	mu         sync.Mutex
	portfolios []uint64
	quotes     []models.MarketQuote
	notifies   []notifyCall
}

func (r *recordingPublisher) PublishPortfolioUpdate(ctx context.Context, portfolioID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.portfolios = append(r.portfolios, portfolioID)
}

func (r *recordingPublisher) PublishMarketUpdate(quote models.MarketQuote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes = append(r.quotes, quote)
}

func (r *recordingPublisher) NotifyUser(ctx context.Context, userID uint64, message, notificationType string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifies = append(r.notifies, notifyCall{UserID: userID, Message: message, Type: notificationType})
	return nil
}

func (r *recordingPublisher) quoteSymbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.quotes))
	for _, q := range r.quotes {
		out = append(out, q.Symbol)
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func seedPortfolio(t *testing.T, repo *memory.Store, userID uint64, cash string) *models.Portfolio {
	t.Helper()
	p := &models.Portfolio{UserID: userID, Name: "main", Cash: dec(cash), TotalValue: dec(cash)}
	if err := repo.CreatePortfolio(context.Background(), p); err != nil {
		t.Fatalf("create portfolio: %v", err)
	}
	return p
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s=%s want %s", name, got, want)
	}
}
