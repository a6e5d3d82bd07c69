package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/models"
)

// ErrDuplicate is returned when an insert violates a unique key.
var ErrDuplicate = errors.New("duplicate key")

// Repository is the data access layer. Getters return (nil, nil) when the row
// does not exist.
type Repository interface {
	// InTx runs fn against a transaction-scoped Repository. A non-nil error from
	// fn rolls back every write fn made.
	InTx(ctx context.Context, fn func(tx Repository) error) error

	UserRepository
	PortfolioRepository
	HoldingRepository
	TransactionRepository
	MarketQuoteRepository
	ProfileRepository
	NotificationRepository
	SnapshotRepository
}

type UserRepository interface {
	CreateUser(ctx context.Context, item *models.User) error
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type PortfolioRepository interface {
	CreatePortfolio(ctx context.Context, item *models.Portfolio) error
	GetPortfolio(ctx context.Context, id uint64) (*models.Portfolio, error)
	// GetPortfolioForUpdate reads the row and, inside InTx, locks it until commit.
	GetPortfolioForUpdate(ctx context.Context, id uint64) (*models.Portfolio, error)
	GetPortfolioWithHoldings(ctx context.Context, id uint64) (*models.Portfolio, error)
	ListPortfoliosByUser(ctx context.Context, userID uint64) ([]models.Portfolio, error)
	ListPortfolios(ctx context.Context, params ListPortfoliosParams) ([]models.Portfolio, error)
	UpdatePortfolioDetails(ctx context.Context, id uint64, name, description string) error
	UpdatePortfolioCash(ctx context.Context, id uint64, cash decimal.Decimal) error
	UpdatePortfolioValue(ctx context.Context, id uint64, totalValue decimal.Decimal) error
	DeletePortfolio(ctx context.Context, id uint64) error
}

type HoldingRepository interface {
	GetHolding(ctx context.Context, id uint64) (*models.Holding, error)
	GetHoldingBySymbol(ctx context.Context, portfolioID uint64, symbol string) (*models.Holding, error)
	ListHoldings(ctx context.Context, portfolioID uint64) ([]models.Holding, error)
	// SaveHolding inserts when ID is zero and updates otherwise.
	SaveHolding(ctx context.Context, item *models.Holding) error
	UpdateHoldingPrice(ctx context.Context, id uint64, price decimal.Decimal) error
	DeleteHolding(ctx context.Context, id uint64) error
}

type TransactionRepository interface {
	InsertTransaction(ctx context.Context, item *models.Transaction) error
	ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.Transaction, error)
	CountTransactions(ctx context.Context, params ListTransactionsParams) (int64, error)
}

type MarketQuoteRepository interface {
	GetMarketQuote(ctx context.Context, symbol string) (*models.MarketQuote, error)
	// UpsertMarketQuote is keyed by symbol; the last writer wins.
	UpsertMarketQuote(ctx context.Context, item *models.MarketQuote) error
	ListMarketQuotes(ctx context.Context, symbols []string) ([]models.MarketQuote, error)
}

type ProfileRepository interface {
	UpsertRiskProfile(ctx context.Context, item *models.RiskProfile) error
	GetRiskProfileByUser(ctx context.Context, userID uint64) (*models.RiskProfile, error)
	CreateFinancialGoal(ctx context.Context, item *models.FinancialGoal) error
	ListFinancialGoals(ctx context.Context, userID uint64) ([]models.FinancialGoal, error)
	DeleteFinancialGoal(ctx context.Context, userID, id uint64) (bool, error)
}

type NotificationRepository interface {
	InsertNotification(ctx context.Context, item *models.Notification) error
	ListNotifications(ctx context.Context, params ListNotificationsParams) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id uint64) (bool, error)
}

type SnapshotRepository interface {
	UpsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error
	ListPortfolioSnapshots(ctx context.Context, params ListPortfolioSnapshotsParams) ([]models.PortfolioSnapshot, error)
}

type ListPortfoliosParams struct {
	Limit  int
	Offset int
}

type ListTransactionsParams struct {
	PortfolioID uint64
	UserID      uint64
	Type        *string
	Since       *time.Time
	Limit       int
	Offset      int
}

type ListNotificationsParams struct {
	UserID     uint64
	UnreadOnly bool
	Limit      int
	Offset     int
}

type ListPortfolioSnapshotsParams struct {
	PortfolioID uint64
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}

func NormalizeLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func NormalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
