package service

import (
	"context"
	"testing"
	"time"

	"folio/internal/apperr"
	"folio/internal/cache"
	"folio/internal/models"
	"folio/internal/repository/memory"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newOracle(prov *fakeProvider) (*PriceOracle, *memory.Store, *clock) {
	clk := &clock{t: time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)}
	repo := memory.New()
	return &PriceOracle{
		Repo:     repo,
		Provider: prov,
		Cache:    cache.NewMemoryStore(),
		MaxAge:   5 * time.Minute,
		Now:      clk.Now,
	}, repo, clk
}

func TestPriceOracle_FreshWithinFiveMinutes(t *testing.T) {
	prov := newFakeProvider(map[string]string{"XYZ": "20"})
	o, _, clk := newOracle(prov)
	ctx := context.Background()

	price, asOf, err := o.GetPrice(ctx, "xyz")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	assertDec(t, "price", price, "20")
	if !asOf.Equal(clk.Now()) {
		t.Fatalf("asOf=%s want %s", asOf, clk.Now())
	}
	if n := prov.callCount("XYZ"); n != 1 {
		t.Fatalf("calls=%d want 1", n)
	}

	clk.Advance(4*time.Minute + 59*time.Second)
	if _, _, err := o.GetPrice(ctx, "XYZ"); err != nil {
		t.Fatalf("err=%v", err)
	}
	if n := prov.callCount("XYZ"); n != 1 {
		t.Fatalf("calls=%d want 1 at 4m59s", n)
	}

	clk.Advance(2 * time.Second)
	if _, _, err := o.GetPrice(ctx, "XYZ"); err != nil {
		t.Fatalf("err=%v", err)
	}
	if n := prov.callCount("XYZ"); n != 2 {
		t.Fatalf("calls=%d want 2 at 5m01s", n)
	}
}

func TestPriceOracle_StoredQuoteWithoutCache(t *testing.T) {
	prov := newFakeProvider(map[string]string{"XYZ": "20"})
	o, repo, clk := newOracle(prov)
	o.Cache = nil
	ctx := context.Background()

	_ = repo.UpsertMarketQuote(ctx, &models.MarketQuote{Symbol: "XYZ", Price: dec("18"), AsOf: clk.Now().Add(-time.Minute)})
	price, _, err := o.GetPrice(ctx, "XYZ")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	assertDec(t, "price", price, "18")
	if n := prov.callCount("XYZ"); n != 0 {
		t.Fatalf("calls=%d want 0", n)
	}
}

func TestPriceOracle_StaleFallbackOnProviderFailure(t *testing.T) {
	prov := newFakeProvider(map[string]string{"XYZ": "20"})
	o, repo, clk := newOracle(prov)
	ctx := context.Background()

	_ = repo.UpsertMarketQuote(ctx, &models.MarketQuote{Symbol: "XYZ", Price: dec("17.5"), AsOf: clk.Now().Add(-time.Hour)})
	prov.setFail("XYZ", true)

	price, asOf, err := o.GetPrice(ctx, "XYZ")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	assertDec(t, "price", price, "17.5")
	if !asOf.Equal(clk.Now().Add(-time.Hour)) {
		t.Fatalf("asOf=%s", asOf)
	}
	if n := prov.callCount("XYZ"); n != 1 {
		t.Fatalf("calls=%d want 1", n)
	}
}

func TestPriceOracle_UnavailableWithoutQuote(t *testing.T) {
	prov := newFakeProvider(nil)
	o, repo, _ := newOracle(prov)
	ctx := context.Background()

	_, _, err := o.GetPrice(ctx, "NOPE")
	if !apperr.IsKind(err, apperr.PriceUnavailable) {
		t.Fatalf("err=%v want PriceUnavailable", err)
	}
	if q, _ := repo.GetMarketQuote(ctx, "NOPE"); q != nil {
		t.Fatalf("unexpected quote row %+v", q)
	}
}

func TestPriceOracle_EmptySymbol(t *testing.T) {
	o, _, _ := newOracle(newFakeProvider(nil))
	if _, _, err := o.GetPrice(context.Background(), "  "); !apperr.IsKind(err, apperr.InvalidInput) {
		t.Fatalf("err=%v want InvalidInput", err)
	}
}

func TestPriceOracle_RefreshUpserts(t *testing.T) {
	prov := newFakeProvider(map[string]string{"XYZ": "20"})
	o, repo, clk := newOracle(prov)
	ctx := context.Background()

	_ = repo.UpsertMarketQuote(ctx, &models.MarketQuote{Symbol: "XYZ", Price: dec("10"), AsOf: clk.Now()})
	q, err := o.Refresh(ctx, "XYZ")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	assertDec(t, "price", q.Price, "20")
	assertDec(t, "changePercent", q.ChangePercent, "0.5")

	stored, _ := repo.GetMarketQuote(ctx, "XYZ")
	if stored == nil {
		t.Fatalf("quote not stored")
	}
	assertDec(t, "stored price", stored.Price, "20")
	quotes, _ := repo.ListMarketQuotes(ctx, nil)
	if len(quotes) != 1 {
		t.Fatalf("quotes=%d want 1", len(quotes))
	}
}

func TestPriceOracle_RefreshFailure(t *testing.T) {
	prov := newFakeProvider(map[string]string{"XYZ": "20"})
	prov.setFail("XYZ", true)
	o, _, _ := newOracle(prov)
	if _, err := o.Refresh(context.Background(), "XYZ"); !apperr.IsKind(err, apperr.PriceUnavailable) {
		t.Fatalf("err=%v want PriceUnavailable", err)
	}
}

func TestPriceOracle_ZeroQuoteIsStored(t *testing.T) {
	prov := newFakeProvider(map[string]string{"XYZ": "0"})
	o, repo, _ := newOracle(prov)
	ctx := context.Background()

	_ = repo.UpsertMarketQuote(ctx, &models.MarketQuote{Symbol: "XYZ", Price: dec("7"), AsOf: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)})
	q, err := o.GetQuote(ctx, "XYZ")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	assertDec(t, "price", q.Price, "0")

	stored, _ := repo.GetMarketQuote(ctx, "XYZ")
	if stored == nil {
		t.Fatalf("quote not stored")
	}
	assertDec(t, "stored price", stored.Price, "0")
}
