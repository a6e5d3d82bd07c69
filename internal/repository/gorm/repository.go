package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"folio/internal/models"
	"folio/internal/repository"
)

type Store struct {
	db   *gorm.DB
	inTx bool
}

var _ repository.Repository = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	if s == nil || s.db == nil {
		return errors.New("store unavailable")
	}
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

// --- users ------------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, item *models.User) error {
	if item == nil {
		return nil
	}
	item.Email = strings.ToLower(strings.TrimSpace(item.Email))
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	if id == 0 {
		return nil, nil
	}
	var item models.User
	return first(s.db.WithContext(ctx).Where("id = ?", id), &item)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	var item models.User
	return first(s.db.WithContext(ctx).Where("email = ?", email), &item)
}

// --- portfolios -------------------------------------------------------------

func (s *Store) CreatePortfolio(ctx context.Context, item *models.Portfolio) error {
	if item == nil {
		return nil
	}
	return translate(s.db.WithContext(ctx).Omit("Holdings").Create(item).Error)
}

func (s *Store) GetPortfolio(ctx context.Context, id uint64) (*models.Portfolio, error) {
	if id == 0 {
		return nil, nil
	}
	var item models.Portfolio
	return first(s.db.WithContext(ctx).Where("id = ?", id), &item)
}

func (s *Store) GetPortfolioForUpdate(ctx context.Context, id uint64) (*models.Portfolio, error) {
	if id == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx)
	if s.inTx {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var item models.Portfolio
	return first(query.Where("id = ?", id), &item)
}

func (s *Store) GetPortfolioWithHoldings(ctx context.Context, id uint64) (*models.Portfolio, error) {
	if id == 0 {
		return nil, nil
	}
	var item models.Portfolio
	query := s.db.WithContext(ctx).Preload("Holdings", func(db *gorm.DB) *gorm.DB {
		return db.Order("symbol asc")
	})
	return first(query.Where("id = ?", id), &item)
}

func (s *Store) ListPortfoliosByUser(ctx context.Context, userID uint64) ([]models.Portfolio, error) {
	var items []models.Portfolio
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPortfolios(ctx context.Context, params repository.ListPortfoliosParams) ([]models.Portfolio, error) {
	limit := repository.NormalizeLimit(params.Limit, 200)
	offset := repository.NormalizeOffset(params.Offset)
	var items []models.Portfolio
	if err := s.db.WithContext(ctx).
		Order("id asc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdatePortfolioDetails(ctx context.Context, id uint64, name, description string) error {
	return s.db.WithContext(ctx).Model(&models.Portfolio{}).Where("id = ?", id).Updates(map[string]any{
		"name":        name,
		"description": description,
		"updated_at":  time.Now().UTC(),
	}).Error
}

func (s *Store) UpdatePortfolioCash(ctx context.Context, id uint64, cash decimal.Decimal) error {
	return s.db.WithContext(ctx).Model(&models.Portfolio{}).Where("id = ?", id).Updates(map[string]any{
		"cash":       cash,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (s *Store) UpdatePortfolioValue(ctx context.Context, id uint64, totalValue decimal.Decimal) error {
	return s.db.WithContext(ctx).Model(&models.Portfolio{}).Where("id = ?", id).Updates(map[string]any{
		"total_value": totalValue,
		"updated_at":  time.Now().UTC(),
	}).Error
}

func (s *Store) DeletePortfolio(ctx context.Context, id uint64) error {
	return s.InTx(ctx, func(tx repository.Repository) error {
		db := tx.(*Store).db
		if err := db.Where("portfolio_id = ?", id).Delete(&models.Holding{}).Error; err != nil {
			return err
		}
		if err := db.Where("portfolio_id = ?", id).Delete(&models.PortfolioSnapshot{}).Error; err != nil {
			return err
		}
		return db.Where("id = ?", id).Delete(&models.Portfolio{}).Error
	})
}

// --- holdings ---------------------------------------------------------------

func (s *Store) GetHolding(ctx context.Context, id uint64) (*models.Holding, error) {
	if id == 0 {
		return nil, nil
	}
	var item models.Holding
	return first(s.db.WithContext(ctx).Where("id = ?", id), &item)
}

func (s *Store) GetHoldingBySymbol(ctx context.Context, portfolioID uint64, symbol string) (*models.Holding, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if portfolioID == 0 || symbol == "" {
		return nil, nil
	}
	var item models.Holding
	return first(s.db.WithContext(ctx).Where("portfolio_id = ? AND symbol = ?", portfolioID, symbol), &item)
}

func (s *Store) ListHoldings(ctx context.Context, portfolioID uint64) ([]models.Holding, error) {
	var items []models.Holding
	if err := s.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("symbol asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveHolding(ctx context.Context, item *models.Holding) error {
	if item == nil {
		return nil
	}
	if item.ID == 0 {
		return translate(s.db.WithContext(ctx).Create(item).Error)
	}
	return s.db.WithContext(ctx).Model(&models.Holding{}).Where("id = ?", item.ID).Updates(map[string]any{
		"name":          item.Name,
		"asset_type":    item.AssetType,
		"quantity":      item.Quantity,
		"avg_price":     item.AvgPrice,
		"current_price": item.CurrentPrice,
		"updated_at":    time.Now().UTC(),
	}).Error
}

func (s *Store) UpdateHoldingPrice(ctx context.Context, id uint64, price decimal.Decimal) error {
	return s.db.WithContext(ctx).Model(&models.Holding{}).Where("id = ?", id).Updates(map[string]any{
		"current_price": price,
		"updated_at":    time.Now().UTC(),
	}).Error
}

func (s *Store) DeleteHolding(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Holding{}).Error
}

// --- transactions -----------------------------------------------------------

func (s *Store) InsertTransaction(ctx context.Context, item *models.Transaction) error {
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTransactions(ctx context.Context, params repository.ListTransactionsParams) ([]models.Transaction, error) {
	query := transactionFilter(s.db.WithContext(ctx).Model(&models.Transaction{}), params)
	limit := repository.NormalizeLimit(params.Limit, 50)
	offset := repository.NormalizeOffset(params.Offset)
	var items []models.Transaction
	if err := query.Order("created_at desc, id desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTransactions(ctx context.Context, params repository.ListTransactionsParams) (int64, error) {
	query := transactionFilter(s.db.WithContext(ctx).Model(&models.Transaction{}), params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func transactionFilter(query *gorm.DB, params repository.ListTransactionsParams) *gorm.DB {
	if params.PortfolioID > 0 {
		query = query.Where("portfolio_id = ?", params.PortfolioID)
	}
	if params.UserID > 0 {
		query = query.Where("user_id = ?", params.UserID)
	}
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("type = ?", strings.ToUpper(strings.TrimSpace(*params.Type)))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", params.Since.UTC())
	}
	return query
}

// --- market quotes ----------------------------------------------------------

func (s *Store) GetMarketQuote(ctx context.Context, symbol string) (*models.MarketQuote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, nil
	}
	var item models.MarketQuote
	return first(s.db.WithContext(ctx).Where("symbol = ?", symbol), &item)
}

func (s *Store) UpsertMarketQuote(ctx context.Context, item *models.MarketQuote) error {
	if item == nil {
		return nil
	}
	item.Symbol = strings.ToUpper(strings.TrimSpace(item.Symbol))
	if item.Symbol == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price",
			"change",
			"change_percent",
			"as_of",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListMarketQuotes(ctx context.Context, symbols []string) ([]models.MarketQuote, error) {
	query := s.db.WithContext(ctx).Model(&models.MarketQuote{})
	if cleaned := cleanSymbols(symbols); len(cleaned) > 0 {
		query = query.Where("symbol IN ?", cleaned)
	}
	var items []models.MarketQuote
	if err := query.Order("symbol asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- risk profiles & goals --------------------------------------------------

func (s *Store) UpsertRiskProfile(ctx context.Context, item *models.RiskProfile) error {
	if item == nil || item.UserID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tolerance", "horizon_years", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) GetRiskProfileByUser(ctx context.Context, userID uint64) (*models.RiskProfile, error) {
	if userID == 0 {
		return nil, nil
	}
	var item models.RiskProfile
	return first(s.db.WithContext(ctx).Where("user_id = ?", userID), &item)
}

func (s *Store) CreateFinancialGoal(ctx context.Context, item *models.FinancialGoal) error {
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListFinancialGoals(ctx context.Context, userID uint64) ([]models.FinancialGoal, error) {
	var items []models.FinancialGoal
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteFinancialGoal(ctx context.Context, userID, id uint64) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.FinancialGoal{})
	return res.RowsAffected > 0, res.Error
}

// --- notifications ----------------------------------------------------------

func (s *Store) InsertNotification(ctx context.Context, item *models.Notification) error {
	if item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListNotifications(ctx context.Context, params repository.ListNotificationsParams) ([]models.Notification, error) {
	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", params.UserID)
	if params.UnreadOnly {
		query = query.Where("read = ?", false)
	}
	limit := repository.NormalizeLimit(params.Limit, 50)
	offset := repository.NormalizeOffset(params.Offset)
	var items []models.Notification
	if err := query.Order("created_at desc, id desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id uint64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	return res.RowsAffected > 0, res.Error
}

// --- snapshots --------------------------------------------------------------

func (s *Store) UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error {
	if item == nil || item.PortfolioID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "portfolio_id"}, {Name: "snapshot_at"}},
		DoUpdates: clause.AssignmentColumns([]string{"cash", "holdings_value", "total_value"}),
	}).Create(item).Error
}

func (s *Store) ListPortfolioSnapshots(ctx context.Context, params repository.ListPortfolioSnapshotsParams) ([]models.PortfolioSnapshot, error) {
	query := s.db.WithContext(ctx).Model(&models.PortfolioSnapshot{}).Where("portfolio_id = ?", params.PortfolioID)
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("snapshot_at >= ?", params.Since.UTC())
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("snapshot_at <= ?", params.Until.UTC())
	}
	limit := repository.NormalizeLimit(params.Limit, 168)
	offset := repository.NormalizeOffset(params.Offset)
	var items []models.PortfolioSnapshot
	if err := query.Order("snapshot_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func first[T any](query *gorm.DB, dst *T) (*T, error) {
	err := query.First(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// translate maps driver unique violations to repository.ErrDuplicate.
// It relies on gorm.Config.TranslateError being set in db.Open.
func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicate
	}
	return err
}

func cleanSymbols(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.ToUpper(strings.TrimSpace(raw))
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
