package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"folio/internal/apperr"
	"folio/internal/auth"
	"folio/internal/models"
	"folio/internal/repository/memory"
	"folio/internal/service"
)

type fixedPrices map[string]decimal.Decimal

func (p fixedPrices) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	v, ok := p[symbol]
	if !ok {
		return decimal.Zero, time.Time{}, apperr.Errorf(apperr.PriceUnavailable, "no price available for %s", symbol)
	}
	return v, time.Now().UTC(), nil
}

type fixedQuotes struct{}

func (fixedQuotes) GetQuote(ctx context.Context, symbol string) (*models.MarketQuote, error) {
	if symbol != "XYZ" {
		return nil, apperr.E(apperr.PriceUnavailable, "no price available for "+symbol)
	}
	return &models.MarketQuote{Symbol: "XYZ", Price: decimal.NewFromInt(25), AsOf: time.Now().UTC()}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

type testServer struct {
	engine *gin.Engine
	repo   *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := memory.New()
	jwt := auth.JWT{Secret: []byte("test-secret"), TokenTTL: time.Hour, Issuer: "folio-test"}
	mw := auth.Middleware(jwt)
	ledger := &service.Ledger{Repo: repo, Prices: fixedPrices{"ABC": decimal.NewFromInt(50)}}

	r := gin.New()
	(&AuthHandler{Service: &auth.Service{Repo: repo, JWT: jwt, Cost: bcrypt.MinCost}}).Register(r)
	(&PortfolioHandler{Repo: repo, Auth: mw}).Register(r)
	(&TradeHandler{Ledger: ledger, Rebalance: &service.RebalanceService{Repo: repo}, Auth: mw}).Register(r)
	(&MarketHandler{Quotes: fixedQuotes{}, Repo: repo, Auth: mw}).Register(r)
	(&NotificationHandler{Repo: repo, Auth: mw}).Register(r)
	(&ProfileHandler{Repo: repo, Auth: mw}).Register(r)
	(&HealthHandler{}).Register(r)
	return &testServer{engine: r, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": email, "name": "Test", "password": "password123"})
	if code != http.StatusCreated {
		t.Fatalf("register status=%d msg=%q", code, env.Message)
	}
	var sess struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &sess); err != nil || sess.Token == "" {
		t.Fatalf("token missing: %v", err)
	}
	return sess.Token
}

func (s *testServer) createPortfolio(t *testing.T, token, cash string) uint64 {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/portfolios", token, gin.H{"name": "Main", "cash": cash})
	if code != http.StatusCreated {
		t.Fatalf("create status=%d msg=%q", code, env.Message)
	}
	var p models.Portfolio
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decode portfolio: %v", err)
	}
	return p.ID
}

func TestAuth_DuplicateEmailAndBadLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@example.com")

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "A@example.com", "name": "Again", "password": "password123"})
	if code != http.StatusConflict {
		t.Fatalf("status=%d want 409", code)
	}
	if env.Meta["kind"] != string(apperr.Conflict) {
		t.Fatalf("kind=%v", env.Meta["kind"])
	}

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "a@example.com", "password": "wrong-password"})
	if code != http.StatusUnauthorized {
		t.Fatalf("login status=%d want 401", code)
	}
	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "a@example.com", "password": "password123"})
	if code != http.StatusOK {
		t.Fatalf("login status=%d want 200", code)
	}
}

func TestPortfolios_RequireToken(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodGet, "/api/v1/portfolios", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("status=%d want 401", code)
	}
}

func TestTradeFlow(t *testing.T) {
	s := newTestServer(t)
	tok := s.register(t, "trader@example.com")
	pid := s.createPortfolio(t, tok, "1000")

	code, env := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/portfolios/%d/buy", pid), tok, gin.H{"symbol": "xyz", "quantity": "10", "price": "10"})
	if code != http.StatusCreated {
		t.Fatalf("buy status=%d msg=%q", code, env.Message)
	}
	var res service.TradeResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode trade: %v", err)
	}
	if !res.Portfolio.Cash.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("cash=%s want 900", res.Portfolio.Cash)
	}
	if res.Holding == nil || res.Holding.Symbol != "XYZ" {
		t.Fatalf("holding=%+v", res.Holding)
	}
	holdingID := res.Holding.ID

	code, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/portfolios/%d/assets/%d/sell", pid, holdingID), tok, gin.H{"quantity": "11", "price": "12"})
	if code != http.StatusBadRequest || env.Meta["kind"] != string(apperr.InsufficientHoldings) {
		t.Fatalf("oversell status=%d kind=%v", code, env.Meta["kind"])
	}

	code, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/portfolios/%d/assets/%d/sell", pid, holdingID), tok, gin.H{"quantity": "10", "price": "12"})
	if code != http.StatusOK {
		t.Fatalf("sell status=%d msg=%q", code, env.Message)
	}
	res = service.TradeResult{}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode sell: %v", err)
	}
	if res.Holding != nil {
		t.Fatalf("holding=%+v want closed", res.Holding)
	}
	if !res.Portfolio.Cash.Equal(decimal.NewFromInt(1020)) {
		t.Fatalf("cash=%s want 1020", res.Portfolio.Cash)
	}

	code, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/portfolios/%d/transactions?limit=1", pid), tok, nil)
	if code != http.StatusOK {
		t.Fatalf("transactions status=%d", code)
	}
	var txs []models.Transaction
	if err := json.Unmarshal(env.Data, &txs); err != nil {
		t.Fatalf("decode txs: %v", err)
	}
	if len(txs) != 1 || txs[0].Type != models.TxSell {
		t.Fatalf("txs=%+v want newest SELL", txs)
	}
	if env.Meta["total"] != float64(2) || env.Meta["has_next"] != true {
		t.Fatalf("meta=%v", env.Meta)
	}
}

func TestBuy_InsufficientFundsAndMissingPrice(t *testing.T) {
	s := newTestServer(t)
	tok := s.register(t, "poor@example.com")
	pid := s.createPortfolio(t, tok, "100")

	code, env := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/portfolios/%d/buy", pid), tok, gin.H{"symbol": "ABC", "quantity": "3"})
	if code != http.StatusBadRequest || env.Meta["kind"] != string(apperr.InsufficientFunds) {
		t.Fatalf("status=%d kind=%v want insufficient funds", code, env.Meta["kind"])
	}
	code, env = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/portfolios/%d/buy", pid), tok, gin.H{"symbol": "NOPE", "quantity": "1"})
	if code != http.StatusBadRequest || env.Meta["kind"] != string(apperr.PriceUnavailable) {
		t.Fatalf("status=%d kind=%v want price unavailable", code, env.Meta["kind"])
	}

	p, err := s.repo.GetPortfolio(context.Background(), pid)
	if err != nil || p == nil {
		t.Fatalf("portfolio err=%v", err)
	}
	if !p.Cash.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("cash=%s want 100", p.Cash)
	}
}

func TestPortfolio_OtherUserIsNotFound(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "owner@example.com")
	other := s.register(t, "other@example.com")
	pid := s.createPortfolio(t, owner, "10")

	code, _ := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/portfolios/%d", pid), other, nil)
	if code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", code)
	}
	code, _ = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/portfolios/%d/deposit", pid), other, gin.H{"amount": "5"})
	if code != http.StatusNotFound {
		t.Fatalf("deposit status=%d want 404", code)
	}
}

func TestMarketQuote(t *testing.T) {
	s := newTestServer(t)
	tok := s.register(t, "q@example.com")
	code, env := s.do(t, http.MethodGet, "/api/v1/market/quotes/XYZ", tok, nil)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	var q models.MarketQuote
	if err := json.Unmarshal(env.Data, &q); err != nil || !q.Price.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("quote=%+v err=%v", q, err)
	}
	code, _ = s.do(t, http.MethodGet, "/api/v1/market/quotes/ZZZ", tok, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", code)
	}
}

func TestRebalance(t *testing.T) {
	s := newTestServer(t)
	tok := s.register(t, "r@example.com")
	pid := s.createPortfolio(t, tok, "1000")
	s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/portfolios/%d/buy", pid), tok, gin.H{"symbol": "XYZ", "quantity": "10", "price": "10"})

	code, env := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/portfolios/%d/rebalance", pid), tok, gin.H{"targets": gin.H{"XYZ": "0.5", "ABC": "0.5"}})
	if code != http.StatusOK {
		t.Fatalf("status=%d msg=%q", code, env.Message)
	}
	var plan service.RebalancePlan
	if err := json.Unmarshal(env.Data, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if len(plan.Recommendations) != 2 {
		t.Fatalf("recommendations=%+v", plan.Recommendations)
	}

	code, _ = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/portfolios/%d/rebalance", pid), tok, gin.H{"targets": gin.H{"XYZ": "1.5"}})
	if code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", code)
	}
}

func TestNotifications_MarkRead(t *testing.T) {
	s := newTestServer(t)
	tok := s.register(t, "n@example.com")
	u, _ := s.repo.GetUserByEmail(context.Background(), "n@example.com")
	n := &models.Notification{UserID: u.ID, Type: models.NotificationSystem, Message: "hello"}
	if err := s.repo.InsertNotification(context.Background(), n); err != nil {
		t.Fatalf("insert: %v", err)
	}

	code, _ := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", n.ID), tok, nil)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	code, env := s.do(t, http.MethodGet, "/api/v1/notifications?unread=true", tok, nil)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	var items []models.Notification
	_ = json.Unmarshal(env.Data, &items)
	if len(items) != 0 {
		t.Fatalf("unread=%d want 0", len(items))
	}
	code, _ = s.do(t, http.MethodPost, "/api/v1/notifications/9999/read", tok, nil)
	if code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", code)
	}
}

func TestProfile_RiskAndGoals(t *testing.T) {
	s := newTestServer(t)
	tok := s.register(t, "p@example.com")

	code, _ := s.do(t, http.MethodGet, "/api/v1/profile/risk", tok, nil)
	if code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", code)
	}
	code, _ = s.do(t, http.MethodPut, "/api/v1/profile/risk", tok, gin.H{"tolerance": "reckless"})
	if code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", code)
	}
	code, _ = s.do(t, http.MethodPut, "/api/v1/profile/risk", tok, gin.H{"tolerance": "aggressive", "horizonYears": 10})
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}

	code, env := s.do(t, http.MethodPost, "/api/v1/profile/goals", tok, gin.H{"name": "House", "targetAmount": "50000"})
	if code != http.StatusCreated {
		t.Fatalf("status=%d msg=%q", code, env.Message)
	}
	var g models.FinancialGoal
	_ = json.Unmarshal(env.Data, &g)
	code, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/profile/goals/%d", g.ID), tok, nil)
	if code != http.StatusOK {
		t.Fatalf("delete status=%d", code)
	}
}

func TestParsePortfolioRef(t *testing.T) {
	cases := []struct {
		raw  string
		want uint64
	}{
		{`{"portfolioId": 12}`, 12},
		{`{"portfolioId": "7"}`, 7},
		{`{"portfolioId": -1}`, 0},
		{`{}`, 0},
		{`nope`, 0},
	}
	for _, tc := range cases {
		if got := parsePortfolioRef(json.RawMessage(tc.raw)); got != tc.want {
			t.Fatalf("raw=%s got=%d want %d", tc.raw, got, tc.want)
		}
	}
}
