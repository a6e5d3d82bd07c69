package service

import (
	"context"
	"sync"
	"testing"

	"folio/internal/apperr"
	"folio/internal/models"
	"folio/internal/repository"
	"folio/internal/repository/memory"
)

const owner uint64 = 7

func newLedger(prov *fakeProvider) (*Ledger, *memory.Store, *recordingPublisher) {
	repo := memory.New()
	pub := &recordingPublisher{}
	var prices PriceSource
	if prov != nil {
		o, _, _ := newOracle(prov)
		o.Repo = repo
		prices = o
	}
	return &Ledger{Repo: repo, Prices: prices, Publisher: pub}, repo, pub
}

func listTx(t *testing.T, repo *memory.Store, portfolioID uint64) []models.Transaction {
	t.Helper()
	items, err := repo.ListTransactions(context.Background(), repository.ListTransactionsParams{PortfolioID: portfolioID})
	if err != nil {
		t.Fatalf("list tx: %v", err)
	}
	return items
}

func TestLedger_BuyNewHolding(t *testing.T) {
	l, repo, pub := newLedger(nil)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "200")

	res, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("5"), Price: decPtr("20")})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	assertDec(t, "cash", res.Portfolio.Cash, "100")
	h := res.Holding
	if h == nil || h.Symbol != "XYZ" {
		t.Fatalf("holding=%+v", h)
	}
	assertDec(t, "quantity", h.Quantity, "5")
	assertDec(t, "avgPrice", h.AvgPrice, "20")
	assertDec(t, "currentPrice", h.CurrentPrice, "20")
	if h.AssetType != models.AssetTypeStock {
		t.Fatalf("assetType=%q want STOCK", h.AssetType)
	}

	txs := listTx(t, repo, p.ID)
	if len(txs) != 1 {
		t.Fatalf("transactions=%d want 1", len(txs))
	}
	tx := txs[0]
	if tx.Type != models.TxBuy || tx.HoldingID == nil || *tx.HoldingID != h.ID {
		t.Fatalf("tx=%+v", tx)
	}
	assertDec(t, "tx quantity", tx.Quantity, "5")
	assertDec(t, "tx price", tx.Price, "20")
	assertDec(t, "tx total", tx.TotalAmount, "100")

	stored, _ := repo.GetPortfolio(ctx, p.ID)
	assertDec(t, "stored cash", stored.Cash, "100")
	assertDec(t, "total value unchanged", stored.TotalValue, "200")
	if len(pub.portfolios) != 1 || pub.portfolios[0] != p.ID {
		t.Fatalf("published=%v", pub.portfolios)
	}
}

func TestLedger_SellAllRemovesHolding(t *testing.T) {
	l, repo, _ := newLedger(nil)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "200")

	bought, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("5"), Price: decPtr("20")})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	res, err := l.Sell(ctx, SellInput{PortfolioID: p.ID, UserID: owner, HoldingID: bought.Holding.ID, Quantity: dec("5"), Price: decPtr("25")})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if res.Holding != nil {
		t.Fatalf("holding=%+v want nil", res.Holding)
	}
	assertDec(t, "remainingQuantity", res.RemainingQuantity, "0")
	assertDec(t, "cash", res.Portfolio.Cash, "225")
	if h, _ := repo.GetHolding(ctx, bought.Holding.ID); h != nil {
		t.Fatalf("holding row still present: %+v", h)
	}

	txs := listTx(t, repo, p.ID)
	if len(txs) != 2 {
		t.Fatalf("transactions=%d want 2", len(txs))
	}
	sell := txs[0]
	if sell.Type != models.TxSell || sell.Symbol != "XYZ" || sell.HoldingID != nil {
		t.Fatalf("sell tx=%+v", sell)
	}
	assertDec(t, "sell quantity", sell.Quantity, "5")
	assertDec(t, "sell price", sell.Price, "25")
	assertDec(t, "sell total", sell.TotalAmount, "125")
}

func TestLedger_PartialSell(t *testing.T) {
	l, repo, _ := newLedger(nil)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "1000")

	bought, _ := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "ABC", Quantity: dec("10"), Price: decPtr("10")})
	res, err := l.Sell(ctx, SellInput{PortfolioID: p.ID, UserID: owner, HoldingID: bought.Holding.ID, Quantity: dec("4"), Price: decPtr("12")})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if res.Holding == nil {
		t.Fatalf("holding removed on partial sell")
	}
	assertDec(t, "quantity", res.Holding.Quantity, "6")
	assertDec(t, "remainingQuantity", res.RemainingQuantity, "6")
	assertDec(t, "avgPrice", res.Holding.AvgPrice, "10")
	assertDec(t, "currentPrice", res.Holding.CurrentPrice, "12")
	assertDec(t, "cash", res.Portfolio.Cash, "948")
	if res.Transaction.HoldingID == nil || *res.Transaction.HoldingID != bought.Holding.ID {
		t.Fatalf("tx holding ref=%v", res.Transaction.HoldingID)
	}
}

func TestLedger_WeightedAverage(t *testing.T) {
	l, repo, _ := newLedger(nil)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "10000")

	if _, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "ABC", Quantity: dec("10"), Price: decPtr("100")}); err != nil {
		t.Fatalf("buy 1: %v", err)
	}
	res, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "abc", Quantity: dec("10"), Price: decPtr("200")})
	if err != nil {
		t.Fatalf("buy 2: %v", err)
	}
	assertDec(t, "avgPrice", res.Holding.AvgPrice, "150")
	assertDec(t, "quantity", res.Holding.Quantity, "20")
	assertDec(t, "currentPrice", res.Holding.CurrentPrice, "200")
	holdings, _ := repo.ListHoldings(ctx, p.ID)
	if len(holdings) != 1 {
		t.Fatalf("holdings=%d want 1", len(holdings))
	}
}

func TestLedger_CashAfterBuySequence(t *testing.T) {
	l, repo, _ := newLedger(nil)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "1000")

	buys := []struct{ sym, qty, price string }{
		{"AAA", "2", "100"},
		{"BBB", "3", "50.5"},
		{"AAA", "1", "120"},
		{"CCC", "10", "60"},
		{"DDD", "1", "200"},
	}
	// 200 + 151.5 + 120 = 471.5; CCC (600) is rejected; DDD 200 fits.
	for _, b := range buys {
		_, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: b.sym, Quantity: dec(b.qty), Price: decPtr(b.price)})
		if err != nil && !apperr.IsKind(err, apperr.InsufficientFunds) {
			t.Fatalf("buy %s: %v", b.sym, err)
		}
		cur, _ := repo.GetPortfolio(ctx, p.ID)
		if cur.Cash.IsNegative() {
			t.Fatalf("cash went negative: %s", cur.Cash)
		}
	}
	cur, _ := repo.GetPortfolio(ctx, p.ID)
	assertDec(t, "cash", cur.Cash, "328.5")
	if n := len(listTx(t, repo, p.ID)); n != 4 {
		t.Fatalf("transactions=%d want 4", n)
	}
}

func TestLedger_InsufficientFundsLeavesNoTrace(t *testing.T) {
	l, repo, pub := newLedger(nil)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "100")

	_, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("3"), Price: decPtr("100")})
	if !apperr.IsKind(err, apperr.InsufficientFunds) {
		t.Fatalf("err=%v want InsufficientFunds", err)
	}
	cur, _ := repo.GetPortfolio(ctx, p.ID)
	assertDec(t, "cash", cur.Cash, "100")
	if holdings, _ := repo.ListHoldings(ctx, p.ID); len(holdings) != 0 {
		t.Fatalf("holdings=%v want none", holdings)
	}
	if n := len(listTx(t, repo, p.ID)); n != 0 {
		t.Fatalf("transactions=%d want 0", n)
	}
	if len(pub.portfolios) != 0 {
		t.Fatalf("published on failure: %v", pub.portfolios)
	}
}

func TestLedger_InsufficientHoldings(t *testing.T) {
	l, repo, _ := newLedger(nil)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "100")
	bought, _ := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("2"), Price: decPtr("10")})

	_, err := l.Sell(ctx, SellInput{PortfolioID: p.ID, UserID: owner, HoldingID: bought.Holding.ID, Quantity: dec("3"), Price: decPtr("10")})
	if !apperr.IsKind(err, apperr.InsufficientHoldings) {
		t.Fatalf("err=%v want InsufficientHoldings", err)
	}
	h, _ := repo.GetHolding(ctx, bought.Holding.ID)
	assertDec(t, "quantity", h.Quantity, "2")
	cur, _ := repo.GetPortfolio(ctx, p.ID)
	assertDec(t, "cash", cur.Cash, "80")
}

func TestLedger_ValidationAndOwnership(t *testing.T) {
	l, repo, _ := newLedger(nil)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "100")
	other := seedPortfolio(t, repo, owner+1, "100")
	bought, _ := l.Buy(ctx, BuyInput{PortfolioID: other.ID, UserID: owner + 1, Symbol: "XYZ", Quantity: dec("1"), Price: decPtr("10")})

	cases := []struct {
		name string
		run  func() error
		want apperr.Kind
	}{
		{"zero quantity", func() error {
			_, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("0"), Price: decPtr("1")})
			return err
		}, apperr.InvalidInput},
		{"empty symbol", func() error {
			_, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: " ", Quantity: dec("1"), Price: decPtr("1")})
			return err
		}, apperr.InvalidInput},
		{"negative price", func() error {
			_, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("1"), Price: decPtr("-1")})
			return err
		}, apperr.InvalidInput},
		{"foreign portfolio", func() error {
			_, err := l.Buy(ctx, BuyInput{PortfolioID: other.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("1"), Price: decPtr("1")})
			return err
		}, apperr.NotFound},
		{"missing portfolio", func() error {
			_, err := l.Buy(ctx, BuyInput{PortfolioID: 9999, UserID: owner, Symbol: "XYZ", Quantity: dec("1"), Price: decPtr("1")})
			return err
		}, apperr.NotFound},
		{"holding of another portfolio", func() error {
			_, err := l.Sell(ctx, SellInput{PortfolioID: p.ID, UserID: owner, HoldingID: bought.Holding.ID, Quantity: dec("1"), Price: decPtr("1")})
			return err
		}, apperr.NotFound},
		{"missing holding", func() error {
			_, err := l.Sell(ctx, SellInput{PortfolioID: p.ID, UserID: owner, HoldingID: 9999, Quantity: dec("1"), Price: decPtr("1")})
			return err
		}, apperr.NotFound},
		{"price unavailable", func() error {
			_, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("1")})
			return err
		}, apperr.PriceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !apperr.IsKind(err, tc.want) {
				t.Fatalf("err=%v want %s", err, tc.want)
			}
		})
	}
}

func TestLedger_BuyUsesOraclePrice(t *testing.T) {
	prov := newFakeProvider(map[string]string{"XYZ": "12.5"})
	l, repo, _ := newLedger(prov)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "100")

	res, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("4")})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	assertDec(t, "price", res.Transaction.Price, "12.5")
	assertDec(t, "cash", res.Portfolio.Cash, "50")

	prov.setFail("NEW", true)
	_, err = l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "NEW", Quantity: dec("1")})
	if !apperr.IsKind(err, apperr.PriceUnavailable) {
		t.Fatalf("err=%v want PriceUnavailable", err)
	}
}

func TestLedger_ZeroQuoteCannotPriceATrade(t *testing.T) {
	prov := newFakeProvider(map[string]string{"ZRO": "0"})
	l, repo, _ := newLedger(prov)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "100")

	_, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "ZRO", Quantity: dec("1")})
	if !apperr.IsKind(err, apperr.PriceUnavailable) {
		t.Fatalf("err=%v want PriceUnavailable", err)
	}
	if q, _ := repo.GetMarketQuote(ctx, "ZRO"); q == nil || !q.Price.IsZero() {
		t.Fatalf("quote=%+v want stored zero", q)
	}
	got, _ := repo.GetPortfolio(ctx, p.ID)
	assertDec(t, "cash", got.Cash, "100")
}

func TestLedger_RevalueSkipsFailures(t *testing.T) {
	prov := newFakeProvider(map[string]string{"AAA": "15", "BBB": "40"})
	l, repo, pub := newLedger(prov)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "1000")

	_, _ = l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "AAA", Quantity: dec("10"), Price: decPtr("10")})
	_, _ = l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "BBB", Quantity: dec("5"), Price: decPtr("30")})
	prov.setFail("BBB", true)

	res, err := l.Revalue(ctx, p.ID, owner)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	// cash 750 + AAA 10×15 + BBB 5×30 (unchanged)
	assertDec(t, "totalValue", res.Portfolio.TotalValue, "1050")
	if len(res.Skipped) != 1 || res.Skipped[0] != "BBB" {
		t.Fatalf("skipped=%v want [BBB]", res.Skipped)
	}
	for _, h := range res.Holdings {
		switch h.Symbol {
		case "AAA":
			assertDec(t, "AAA price", h.CurrentPrice, "15")
		case "BBB":
			assertDec(t, "BBB price", h.CurrentPrice, "30")
		}
	}
	stored, _ := repo.GetPortfolio(ctx, p.ID)
	assertDec(t, "stored totalValue", stored.TotalValue, "1050")
	if got := pub.portfolios[len(pub.portfolios)-1]; got != p.ID {
		t.Fatalf("last publish=%d want %d", got, p.ID)
	}
}

func TestLedger_CashOperations(t *testing.T) {
	l, repo, _ := newLedger(nil)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "100")

	if _, err := l.Deposit(ctx, p.ID, owner, dec("50")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := l.Withdraw(ctx, p.ID, owner, dec("500")); !apperr.IsKind(err, apperr.InsufficientFunds) {
		t.Fatalf("withdraw err=%v want InsufficientFunds", err)
	}
	res, err := l.Withdraw(ctx, p.ID, owner, dec("30"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	assertDec(t, "cash", res.Portfolio.Cash, "120")

	bought, _ := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("1"), Price: decPtr("20")})
	div, err := l.RecordDividend(ctx, p.ID, owner, bought.Holding.ID, dec("2.5"))
	if err != nil {
		t.Fatalf("dividend: %v", err)
	}
	assertDec(t, "cash", div.Portfolio.Cash, "102.5")
	if div.Transaction.Symbol != "XYZ" || div.Transaction.Type != models.TxDividend {
		t.Fatalf("dividend tx=%+v", div.Transaction)
	}
	if _, err := l.Deposit(ctx, p.ID, owner, dec("-1")); !apperr.IsKind(err, apperr.InvalidInput) {
		t.Fatalf("deposit err=%v want InvalidInput", err)
	}

	types := map[string]int{}
	for _, tx := range listTx(t, repo, p.ID) {
		types[tx.Type]++
	}
	if types[models.TxDeposit] != 1 || types[models.TxWithdrawal] != 1 || types[models.TxDividend] != 1 || types[models.TxBuy] != 1 {
		t.Fatalf("types=%v", types)
	}
}

func TestLedger_LargeTradeNotification(t *testing.T) {
	l, repo, pub := newLedger(nil)
	l.LargeTradeThreshold = dec("1000")
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "5000")

	_, _ = l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "SMALL", Quantity: dec("1"), Price: decPtr("10")})
	_, _ = l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "BIG", Quantity: dec("10"), Price: decPtr("150")})
	if len(pub.notifies) != 1 {
		t.Fatalf("notifies=%d want 1", len(pub.notifies))
	}
	n := pub.notifies[0]
	if n.UserID != owner || n.Type != models.NotificationTrade {
		t.Fatalf("notify=%+v", n)
	}
}

func TestLedger_ConcurrentBuysNeverOverdraw(t *testing.T) {
	l, repo, _ := newLedger(nil)
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "100")

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("1"), Price: decPtr("30")})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 3 {
		t.Fatalf("successful buys=%d want 3", ok)
	}
	cur, _ := repo.GetPortfolio(ctx, p.ID)
	assertDec(t, "cash", cur.Cash, "10")
	h, _ := repo.GetHoldingBySymbol(ctx, p.ID, "XYZ")
	assertDec(t, "quantity", h.Quantity, "3")
}

type recordingSink struct {
	types []string
}

func (s *recordingSink) PublishTransaction(ctx context.Context, t models.Transaction) error {
	s.types = append(s.types, t.Type)
	return nil
}

func TestLedger_EmitsCommittedTransactions(t *testing.T) {
	l, repo, _ := newLedger(nil)
	sink := &recordingSink{}
	l.Events = sink
	ctx := context.Background()
	p := seedPortfolio(t, repo, owner, "100")

	bought, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("2"), Price: decPtr("10")})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := l.Buy(ctx, BuyInput{PortfolioID: p.ID, UserID: owner, Symbol: "XYZ", Quantity: dec("100"), Price: decPtr("10")}); err == nil {
		t.Fatalf("expected insufficient funds")
	}
	if _, err := l.Sell(ctx, SellInput{PortfolioID: p.ID, UserID: owner, HoldingID: bought.Holding.ID, Quantity: dec("1"), Price: decPtr("12")}); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := l.Deposit(ctx, p.ID, owner, dec("5")); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	want := []string{models.TxBuy, models.TxSell, models.TxDeposit}
	if len(sink.types) != len(want) {
		t.Fatalf("events=%v want %v", sink.types, want)
	}
	for i := range want {
		if sink.types[i] != want[i] {
			t.Fatalf("events=%v want %v", sink.types, want)
		}
	}
}
