// Package memory is an in-process repository.Repository used for local runs
// (db.driver: memory) and as the data store in tests. InTx serializes
// transactions and applies their writes only on success.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/models"
	"folio/internal/repository"
)

type state struct {
	nextID uint64

	users         map[uint64]models.User
	portfolios    map[uint64]models.Portfolio
	holdings      map[uint64]models.Holding
	transactions  []models.Transaction
	quotes        map[string]models.MarketQuote
	riskProfiles  map[uint64]models.RiskProfile
	goals         map[uint64]models.FinancialGoal
	notifications []models.Notification
	snapshots     map[snapshotKey]models.PortfolioSnapshot
}

type snapshotKey struct {
	portfolioID uint64
	at          time.Time
}

func newState() *state {
	return &state{
		users:        map[uint64]models.User{},
		portfolios:   map[uint64]models.Portfolio{},
		holdings:     map[uint64]models.Holding{},
		quotes:       map[string]models.MarketQuote{},
		riskProfiles: map[uint64]models.RiskProfile{},
		goals:        map[uint64]models.FinancialGoal{},
		snapshots:    map[snapshotKey]models.PortfolioSnapshot{},
	}
}

func (st *state) clone() *state {
	out := &state{
		nextID:        st.nextID,
		users:         make(map[uint64]models.User, len(st.users)),
		portfolios:    make(map[uint64]models.Portfolio, len(st.portfolios)),
		holdings:      make(map[uint64]models.Holding, len(st.holdings)),
		transactions:  append([]models.Transaction(nil), st.transactions...),
		quotes:        make(map[string]models.MarketQuote, len(st.quotes)),
		riskProfiles:  make(map[uint64]models.RiskProfile, len(st.riskProfiles)),
		goals:         make(map[uint64]models.FinancialGoal, len(st.goals)),
		notifications: append([]models.Notification(nil), st.notifications...),
		snapshots:     make(map[snapshotKey]models.PortfolioSnapshot, len(st.snapshots)),
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.portfolios {
		out.portfolios[k] = v
	}
	for k, v := range st.holdings {
		out.holdings[k] = v
	}
	for k, v := range st.quotes {
		out.quotes[k] = v
	}
	for k, v := range st.riskProfiles {
		out.riskProfiles[k] = v
	}
	for k, v := range st.goals {
		out.goals[k] = v
	}
	for k, v := range st.snapshots {
		out.snapshots[k] = v
	}
	return out
}

func (st *state) id() uint64 {
	st.nextID++
	return st.nextID
}

type Store struct {
	mu   *sync.Mutex
	data *state
	inTx bool
	now  func() time.Time
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		mu:   &sync.Mutex{},
		data: newState(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(&Store{mu: s.mu, data: work, inTx: true, now: s.now}); err != nil {
		return err
	}
	*s.data = *work
	return nil
}

// lock is a no-op inside InTx, which already holds the store mutex.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// --- users ------------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, item *models.User) error {
	if item == nil {
		return nil
	}
	defer s.lock()()
	item.Email = strings.ToLower(strings.TrimSpace(item.Email))
	for _, u := range s.data.users {
		if u.Email == item.Email {
			return repository.ErrDuplicate
		}
	}
	now := s.now()
	item.ID = s.data.id()
	item.CreatedAt, item.UpdatedAt = now, now
	s.data.users[item.ID] = *item
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	defer s.lock()()
	u, ok := s.data.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	defer s.lock()()
	for _, u := range s.data.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

// --- portfolios -------------------------------------------------------------

func (s *Store) CreatePortfolio(ctx context.Context, item *models.Portfolio) error {
	if item == nil {
		return nil
	}
	defer s.lock()()
	now := s.now()
	item.ID = s.data.id()
	item.CreatedAt, item.UpdatedAt = now, now
	row := *item
	row.Holdings = nil
	s.data.portfolios[item.ID] = row
	return nil
}

func (s *Store) GetPortfolio(ctx context.Context, id uint64) (*models.Portfolio, error) {
	defer s.lock()()
	p, ok := s.data.portfolios[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) GetPortfolioForUpdate(ctx context.Context, id uint64) (*models.Portfolio, error) {
	return s.GetPortfolio(ctx, id)
}

func (s *Store) GetPortfolioWithHoldings(ctx context.Context, id uint64) (*models.Portfolio, error) {
	defer s.lock()()
	p, ok := s.data.portfolios[id]
	if !ok {
		return nil, nil
	}
	p.Holdings = s.holdingsOf(id)
	return &p, nil
}

func (s *Store) ListPortfoliosByUser(ctx context.Context, userID uint64) ([]models.Portfolio, error) {
	defer s.lock()()
	var out []models.Portfolio
	for _, p := range s.data.portfolios {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListPortfolios(ctx context.Context, params repository.ListPortfoliosParams) ([]models.Portfolio, error) {
	defer s.lock()()
	out := make([]models.Portfolio, 0, len(s.data.portfolios))
	for _, p := range s.data.portfolios {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, params.Limit, params.Offset, 200), nil
}

func (s *Store) UpdatePortfolioDetails(ctx context.Context, id uint64, name, description string) error {
	defer s.lock()()
	p, ok := s.data.portfolios[id]
	if !ok {
		return nil
	}
	p.Name, p.Description, p.UpdatedAt = name, description, s.now()
	s.data.portfolios[id] = p
	return nil
}

func (s *Store) UpdatePortfolioCash(ctx context.Context, id uint64, cash decimal.Decimal) error {
	defer s.lock()()
	p, ok := s.data.portfolios[id]
	if !ok {
		return nil
	}
	p.Cash, p.UpdatedAt = cash, s.now()
	s.data.portfolios[id] = p
	return nil
}

func (s *Store) UpdatePortfolioValue(ctx context.Context, id uint64, totalValue decimal.Decimal) error {
	defer s.lock()()
	p, ok := s.data.portfolios[id]
	if !ok {
		return nil
	}
	p.TotalValue, p.UpdatedAt = totalValue, s.now()
	s.data.portfolios[id] = p
	return nil
}

func (s *Store) DeletePortfolio(ctx context.Context, id uint64) error {
	defer s.lock()()
	delete(s.data.portfolios, id)
	for hid, h := range s.data.holdings {
		if h.PortfolioID == id {
			delete(s.data.holdings, hid)
		}
	}
	for k := range s.data.snapshots {
		if k.portfolioID == id {
			delete(s.data.snapshots, k)
		}
	}
	return nil
}

// --- holdings ---------------------------------------------------------------

func (s *Store) holdingsOf(portfolioID uint64) []models.Holding {
	var out []models.Holding
	for _, h := range s.data.holdings {
		if h.PortfolioID == portfolioID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (s *Store) GetHolding(ctx context.Context, id uint64) (*models.Holding, error) {
	defer s.lock()()
	h, ok := s.data.holdings[id]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *Store) GetHoldingBySymbol(ctx context.Context, portfolioID uint64, symbol string) (*models.Holding, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	defer s.lock()()
	for _, h := range s.data.holdings {
		if h.PortfolioID == portfolioID && h.Symbol == symbol {
			h := h
			return &h, nil
		}
	}
	return nil, nil
}

func (s *Store) ListHoldings(ctx context.Context, portfolioID uint64) ([]models.Holding, error) {
	defer s.lock()()
	return s.holdingsOf(portfolioID), nil
}

func (s *Store) SaveHolding(ctx context.Context, item *models.Holding) error {
	if item == nil {
		return nil
	}
	defer s.lock()()
	now := s.now()
	if item.ID == 0 {
		for _, h := range s.data.holdings {
			if h.PortfolioID == item.PortfolioID && h.Symbol == item.Symbol {
				return repository.ErrDuplicate
			}
		}
		item.ID = s.data.id()
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.data.holdings[item.ID] = *item
	return nil
}

func (s *Store) UpdateHoldingPrice(ctx context.Context, id uint64, price decimal.Decimal) error {
	defer s.lock()()
	h, ok := s.data.holdings[id]
	if !ok {
		return nil
	}
	h.CurrentPrice, h.UpdatedAt = price, s.now()
	s.data.holdings[id] = h
	return nil
}

func (s *Store) DeleteHolding(ctx context.Context, id uint64) error {
	defer s.lock()()
	delete(s.data.holdings, id)
	return nil
}

// --- transactions -----------------------------------------------------------

func (s *Store) InsertTransaction(ctx context.Context, item *models.Transaction) error {
	if item == nil {
		return nil
	}
	defer s.lock()()
	item.ID = s.data.id()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	s.data.transactions = append(s.data.transactions, *item)
	return nil
}

func (s *Store) filterTransactions(params repository.ListTransactionsParams) []models.Transaction {
	var out []models.Transaction
	for i := len(s.data.transactions) - 1; i >= 0; i-- {
		t := s.data.transactions[i]
		if params.PortfolioID > 0 && t.PortfolioID != params.PortfolioID {
			continue
		}
		if params.UserID > 0 && t.UserID != params.UserID {
			continue
		}
		if params.Type != nil && strings.TrimSpace(*params.Type) != "" && t.Type != strings.ToUpper(strings.TrimSpace(*params.Type)) {
			continue
		}
		if params.Since != nil && t.CreatedAt.Before(*params.Since) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *Store) ListTransactions(ctx context.Context, params repository.ListTransactionsParams) ([]models.Transaction, error) {
	defer s.lock()()
	return page(s.filterTransactions(params), params.Limit, params.Offset, 50), nil
}

func (s *Store) CountTransactions(ctx context.Context, params repository.ListTransactionsParams) (int64, error) {
	defer s.lock()()
	return int64(len(s.filterTransactions(params))), nil
}

// --- market quotes ----------------------------------------------------------

func (s *Store) GetMarketQuote(ctx context.Context, symbol string) (*models.MarketQuote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	defer s.lock()()
	q, ok := s.data.quotes[symbol]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (s *Store) UpsertMarketQuote(ctx context.Context, item *models.MarketQuote) error {
	if item == nil {
		return nil
	}
	item.Symbol = strings.ToUpper(strings.TrimSpace(item.Symbol))
	if item.Symbol == "" {
		return nil
	}
	defer s.lock()()
	if existing, ok := s.data.quotes[item.Symbol]; ok {
		item.ID = existing.ID
	} else {
		item.ID = s.data.id()
	}
	item.UpdatedAt = s.now()
	s.data.quotes[item.Symbol] = *item
	return nil
}

func (s *Store) ListMarketQuotes(ctx context.Context, symbols []string) ([]models.MarketQuote, error) {
	defer s.lock()()
	want := map[string]bool{}
	for _, sym := range symbols {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			want[sym] = true
		}
	}
	var out []models.MarketQuote
	for sym, q := range s.data.quotes {
		if len(want) == 0 || want[sym] {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// --- risk profiles & goals --------------------------------------------------

func (s *Store) UpsertRiskProfile(ctx context.Context, item *models.RiskProfile) error {
	if item == nil || item.UserID == 0 {
		return nil
	}
	defer s.lock()()
	now := s.now()
	if existing, ok := s.data.riskProfiles[item.UserID]; ok {
		item.ID, item.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		item.ID, item.CreatedAt = s.data.id(), now
	}
	item.UpdatedAt = now
	s.data.riskProfiles[item.UserID] = *item
	return nil
}

func (s *Store) GetRiskProfileByUser(ctx context.Context, userID uint64) (*models.RiskProfile, error) {
	defer s.lock()()
	rp, ok := s.data.riskProfiles[userID]
	if !ok {
		return nil, nil
	}
	return &rp, nil
}

func (s *Store) CreateFinancialGoal(ctx context.Context, item *models.FinancialGoal) error {
	if item == nil {
		return nil
	}
	defer s.lock()()
	now := s.now()
	item.ID = s.data.id()
	item.CreatedAt, item.UpdatedAt = now, now
	s.data.goals[item.ID] = *item
	return nil
}

func (s *Store) ListFinancialGoals(ctx context.Context, userID uint64) ([]models.FinancialGoal, error) {
	defer s.lock()()
	var out []models.FinancialGoal
	for _, g := range s.data.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteFinancialGoal(ctx context.Context, userID, id uint64) (bool, error) {
	defer s.lock()()
	g, ok := s.data.goals[id]
	if !ok || g.UserID != userID {
		return false, nil
	}
	delete(s.data.goals, id)
	return true, nil
}

// --- notifications ----------------------------------------------------------

func (s *Store) InsertNotification(ctx context.Context, item *models.Notification) error {
	if item == nil {
		return nil
	}
	defer s.lock()()
	item.ID = s.data.id()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	s.data.notifications = append(s.data.notifications, *item)
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, params repository.ListNotificationsParams) ([]models.Notification, error) {
	defer s.lock()()
	var out []models.Notification
	for i := len(s.data.notifications) - 1; i >= 0; i-- {
		n := s.data.notifications[i]
		if n.UserID != params.UserID {
			continue
		}
		if params.UnreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return page(out, params.Limit, params.Offset, 50), nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id uint64) (bool, error) {
	defer s.lock()()
	for i := range s.data.notifications {
		n := &s.data.notifications[i]
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return true, nil
		}
	}
	return false, nil
}

// --- snapshots --------------------------------------------------------------

func (s *Store) UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error {
	if item == nil || item.PortfolioID == 0 {
		return nil
	}
	defer s.lock()()
	key := snapshotKey{portfolioID: item.PortfolioID, at: item.SnapshotAt.UTC()}
	if existing, ok := s.data.snapshots[key]; ok {
		item.ID, item.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		item.ID, item.CreatedAt = s.data.id(), s.now()
	}
	s.data.snapshots[key] = *item
	return nil
}

func (s *Store) ListPortfolioSnapshots(ctx context.Context, params repository.ListPortfolioSnapshotsParams) ([]models.PortfolioSnapshot, error) {
	defer s.lock()()
	var out []models.PortfolioSnapshot
	for k, snap := range s.data.snapshots {
		if k.portfolioID != params.PortfolioID {
			continue
		}
		if params.Since != nil && snap.SnapshotAt.Before(*params.Since) {
			continue
		}
		if params.Until != nil && snap.SnapshotAt.After(*params.Until) {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnapshotAt.After(out[j].SnapshotAt) })
	return page(out, params.Limit, params.Offset, 168), nil
}

func page[T any](items []T, limit, offset, def int) []T {
	limit = repository.NormalizeLimit(limit, def)
	offset = repository.NormalizeOffset(offset)
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
