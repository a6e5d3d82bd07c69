package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"folio/internal/apperr"
	"folio/internal/models"
	"folio/internal/repository"
)

// Ledger executes every operation that moves cash or holdings. Each operation
// runs its read-check-write sequence in one repository transaction with the
// portfolio row locked, then publishes after commit.
type Ledger struct {
	Repo      repository.Repository
	Prices    PriceSource
	Publisher Publisher
	// LargeTradeThreshold triggers a trade notification to the owner when a
	// buy or sell total reaches it. Zero disables the notification.
	LargeTradeThreshold decimal.Decimal
	// Events, when set, gets every committed transaction.
	Events TransactionSink
	Logger *zap.Logger
}

type BuyInput struct {
	PortfolioID uint64
	UserID      uint64
	Symbol      string
	Name        string
	AssetType   string
	Quantity    decimal.Decimal
	Price       *decimal.Decimal
}

type SellInput struct {
	PortfolioID uint64
	UserID      uint64
	HoldingID   uint64
	Quantity    decimal.Decimal
	Price       *decimal.Decimal
}

type TradeResult struct {
	// Holding is nil after a sell that closes the position.
	Holding *models.Holding `json:"holding"`
	// RemainingQuantity is the holding quantity after the trade, zero when closed.
	RemainingQuantity decimal.Decimal    `json:"remainingQuantity"`
	Portfolio         models.Portfolio   `json:"portfolio"`
	Transaction       models.Transaction `json:"transaction"`
}

type RevalueResult struct {
	Portfolio models.Portfolio `json:"portfolio"`
	Holdings  []models.Holding `json:"holdings"`
	// Skipped lists symbols whose price could not be refreshed.
	Skipped []string `json:"skipped,omitempty"`
}

type CashResult struct {
	Portfolio   models.Portfolio   `json:"portfolio"`
	Transaction models.Transaction `json:"transaction"`
}

func (l *Ledger) Buy(ctx context.Context, in BuyInput) (*TradeResult, error) {
	symbol := normalizeSymbol(in.Symbol)
	if symbol == "" {
		return nil, apperr.E(apperr.InvalidInput, "symbol is required")
	}
	if !in.Quantity.IsPositive() {
		return nil, apperr.E(apperr.InvalidInput, "quantity must be positive")
	}
	if in.Price != nil && !in.Price.IsPositive() {
		return nil, apperr.E(apperr.InvalidInput, "price must be positive")
	}
	if _, err := l.ownedPortfolio(ctx, l.Repo, in.PortfolioID, in.UserID); err != nil {
		return nil, err
	}
	price, err := l.resolvePrice(ctx, symbol, in.Price)
	if err != nil {
		return nil, err
	}
	totalCost := price.Mul(in.Quantity)

	var res TradeResult
	err = l.Repo.InTx(ctx, func(tx repository.Repository) error {
		p, err := l.lockPortfolio(ctx, tx, in.PortfolioID, in.UserID)
		if err != nil {
			return err
		}
		if p.Cash.LessThan(totalCost) {
			return apperr.Errorf(apperr.InsufficientFunds, "insufficient funds: cash %s, cost %s", p.Cash.StringFixed(2), totalCost.StringFixed(2))
		}

		h, err := tx.GetHoldingBySymbol(ctx, p.ID, symbol)
		if err != nil {
			return err
		}
		if h == nil {
			h = &models.Holding{
				PortfolioID:  p.ID,
				Symbol:       symbol,
				Name:         strings.TrimSpace(in.Name),
				AssetType:    models.NormalizeAssetType(strings.ToUpper(strings.TrimSpace(in.AssetType))),
				Quantity:     in.Quantity,
				AvgPrice:     price,
				CurrentPrice: price,
			}
			if h.Name == "" {
				h.Name = symbol
			}
		} else {
			newQty := h.Quantity.Add(in.Quantity)
			h.AvgPrice = h.AvgPrice.Mul(h.Quantity).Add(totalCost).Div(newQty)
			h.Quantity = newQty
			h.CurrentPrice = price
		}
		if err := tx.SaveHolding(ctx, h); err != nil {
			return err
		}

		p.Cash = p.Cash.Sub(totalCost)
		if err := tx.UpdatePortfolioCash(ctx, p.ID, p.Cash); err != nil {
			return err
		}

		holdingID := h.ID
		t := models.Transaction{
			UserID:      in.UserID,
			PortfolioID: p.ID,
			HoldingID:   &holdingID,
			Type:        models.TxBuy,
			Symbol:      symbol,
			Quantity:    in.Quantity,
			Price:       price,
			TotalAmount: totalCost,
		}
		if err := tx.InsertTransaction(ctx, &t); err != nil {
			return err
		}
		res = TradeResult{Holding: h, RemainingQuantity: h.Quantity, Portfolio: *p, Transaction: t}
		return nil
	})
	if err != nil {
		return nil, l.txError("buy", err)
	}

	l.logger().Info("buy committed",
		zap.Uint64("portfolio_id", in.PortfolioID),
		zap.String("symbol", symbol),
		zap.String("quantity", in.Quantity.String()),
		zap.String("price", price.String()),
	)
	l.afterTrade(ctx, in.UserID, res.Transaction)
	return &res, nil
}

func (l *Ledger) Sell(ctx context.Context, in SellInput) (*TradeResult, error) {
	if in.HoldingID == 0 {
		return nil, apperr.E(apperr.InvalidInput, "holding id is required")
	}
	if !in.Quantity.IsPositive() {
		return nil, apperr.E(apperr.InvalidInput, "quantity must be positive")
	}
	if in.Price != nil && !in.Price.IsPositive() {
		return nil, apperr.E(apperr.InvalidInput, "price must be positive")
	}
	if _, err := l.ownedPortfolio(ctx, l.Repo, in.PortfolioID, in.UserID); err != nil {
		return nil, err
	}
	h, err := l.Repo.GetHolding(ctx, in.HoldingID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load holding", err)
	}
	if h == nil || h.PortfolioID != in.PortfolioID {
		return nil, apperr.E(apperr.NotFound, "holding not found")
	}
	price, err := l.resolvePrice(ctx, h.Symbol, in.Price)
	if err != nil {
		return nil, err
	}
	proceeds := price.Mul(in.Quantity)

	var res TradeResult
	err = l.Repo.InTx(ctx, func(tx repository.Repository) error {
		p, err := l.lockPortfolio(ctx, tx, in.PortfolioID, in.UserID)
		if err != nil {
			return err
		}
		h, err := tx.GetHolding(ctx, in.HoldingID)
		if err != nil {
			return err
		}
		if h == nil || h.PortfolioID != p.ID {
			return apperr.E(apperr.NotFound, "holding not found")
		}
		if h.Quantity.LessThan(in.Quantity) {
			return apperr.Errorf(apperr.InsufficientHoldings, "insufficient holdings: have %s, selling %s", h.Quantity, in.Quantity)
		}

		var holdingRef *uint64
		if h.Quantity.Equal(in.Quantity) {
			if err := tx.DeleteHolding(ctx, h.ID); err != nil {
				return err
			}
			res.Holding = nil
			res.RemainingQuantity = decimal.Zero
		} else {
			h.Quantity = h.Quantity.Sub(in.Quantity)
			h.CurrentPrice = price
			if err := tx.SaveHolding(ctx, h); err != nil {
				return err
			}
			id := h.ID
			holdingRef = &id
			res.Holding = h
			res.RemainingQuantity = h.Quantity
		}

		p.Cash = p.Cash.Add(proceeds)
		if err := tx.UpdatePortfolioCash(ctx, p.ID, p.Cash); err != nil {
			return err
		}

		t := models.Transaction{
			UserID:      in.UserID,
			PortfolioID: p.ID,
			HoldingID:   holdingRef,
			Type:        models.TxSell,
			Symbol:      h.Symbol,
			Quantity:    in.Quantity,
			Price:       price,
			TotalAmount: proceeds,
		}
		if err := tx.InsertTransaction(ctx, &t); err != nil {
			return err
		}
		res.Portfolio = *p
		res.Transaction = t
		return nil
	})
	if err != nil {
		return nil, l.txError("sell", err)
	}

	l.logger().Info("sell committed",
		zap.Uint64("portfolio_id", in.PortfolioID),
		zap.String("symbol", res.Transaction.Symbol),
		zap.String("quantity", in.Quantity.String()),
		zap.String("price", price.String()),
		zap.Bool("closed", res.Holding == nil),
	)
	l.afterTrade(ctx, in.UserID, res.Transaction)
	return &res, nil
}

// Revalue refreshes every holding's price and recomputes total value. Symbols
// whose price cannot be resolved keep their last price.
func (l *Ledger) Revalue(ctx context.Context, portfolioID, userID uint64) (*RevalueResult, error) {
	if _, err := l.ownedPortfolio(ctx, l.Repo, portfolioID, userID); err != nil {
		return nil, err
	}
	holdings, err := l.Repo.ListHoldings(ctx, portfolioID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list holdings", err)
	}

	prices := make(map[string]decimal.Decimal, len(holdings))
	var skipped []string
	for _, h := range holdings {
		if _, ok := prices[h.Symbol]; ok {
			continue
		}
		if l.Prices == nil {
			skipped = append(skipped, h.Symbol)
			continue
		}
		price, _, err := l.Prices.GetPrice(ctx, h.Symbol)
		if err != nil {
			l.logger().Warn("revalue: price lookup failed",
				zap.Uint64("portfolio_id", portfolioID),
				zap.String("symbol", h.Symbol),
				zap.Error(err),
			)
			skipped = append(skipped, h.Symbol)
			continue
		}
		prices[h.Symbol] = price
	}

	var res RevalueResult
	err = l.Repo.InTx(ctx, func(tx repository.Repository) error {
		p, err := l.lockPortfolio(ctx, tx, portfolioID, userID)
		if err != nil {
			return err
		}
		current, err := tx.ListHoldings(ctx, p.ID)
		if err != nil {
			return err
		}
		for i := range current {
			price, ok := prices[current[i].Symbol]
			if !ok || price.Equal(current[i].CurrentPrice) {
				continue
			}
			if err := tx.UpdateHoldingPrice(ctx, current[i].ID, price); err != nil {
				return err
			}
			current[i].CurrentPrice = price
		}
		p.Holdings = current
		p.TotalValue = p.Cash.Add(p.HoldingsValue())
		if err := tx.UpdatePortfolioValue(ctx, p.ID, p.TotalValue); err != nil {
			return err
		}
		res.Portfolio = *p
		res.Holdings = current
		return nil
	})
	if err != nil {
		return nil, l.txError("revalue", err)
	}
	res.Skipped = skipped

	l.logger().Info("portfolio revalued",
		zap.Uint64("portfolio_id", portfolioID),
		zap.String("total_value", res.Portfolio.TotalValue.String()),
		zap.Int("skipped", len(skipped)),
	)
	publisherOrNop(l.Publisher).PublishPortfolioUpdate(ctx, portfolioID)
	return &res, nil
}

func (l *Ledger) Deposit(ctx context.Context, portfolioID, userID uint64, amount decimal.Decimal) (*CashResult, error) {
	return l.cashOp(ctx, portfolioID, userID, models.TxDeposit, amount, nil)
}

func (l *Ledger) Withdraw(ctx context.Context, portfolioID, userID uint64, amount decimal.Decimal) (*CashResult, error) {
	return l.cashOp(ctx, portfolioID, userID, models.TxWithdrawal, amount, nil)
}

// RecordDividend credits a cash dividend paid by one of the portfolio's holdings.
func (l *Ledger) RecordDividend(ctx context.Context, portfolioID, userID, holdingID uint64, amount decimal.Decimal) (*CashResult, error) {
	if holdingID == 0 {
		return nil, apperr.E(apperr.InvalidInput, "holding id is required")
	}
	return l.cashOp(ctx, portfolioID, userID, models.TxDividend, amount, &holdingID)
}

func (l *Ledger) cashOp(ctx context.Context, portfolioID, userID uint64, txType string, amount decimal.Decimal, holdingID *uint64) (*CashResult, error) {
	if !amount.IsPositive() {
		return nil, apperr.E(apperr.InvalidInput, "amount must be positive")
	}
	if _, err := l.ownedPortfolio(ctx, l.Repo, portfolioID, userID); err != nil {
		return nil, err
	}

	var res CashResult
	err := l.Repo.InTx(ctx, func(tx repository.Repository) error {
		p, err := l.lockPortfolio(ctx, tx, portfolioID, userID)
		if err != nil {
			return err
		}
		t := models.Transaction{
			UserID:      userID,
			PortfolioID: p.ID,
			Type:        txType,
			TotalAmount: amount,
		}
		switch txType {
		case models.TxWithdrawal:
			if p.Cash.LessThan(amount) {
				return apperr.Errorf(apperr.InsufficientFunds, "insufficient funds: cash %s, withdrawing %s", p.Cash.StringFixed(2), amount.StringFixed(2))
			}
			p.Cash = p.Cash.Sub(amount)
		case models.TxDividend:
			h, err := tx.GetHolding(ctx, *holdingID)
			if err != nil {
				return err
			}
			if h == nil || h.PortfolioID != p.ID {
				return apperr.E(apperr.NotFound, "holding not found")
			}
			t.HoldingID = holdingID
			t.Symbol = h.Symbol
			p.Cash = p.Cash.Add(amount)
		default:
			p.Cash = p.Cash.Add(amount)
		}
		if err := tx.UpdatePortfolioCash(ctx, p.ID, p.Cash); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &t); err != nil {
			return err
		}
		res = CashResult{Portfolio: *p, Transaction: t}
		return nil
	})
	if err != nil {
		return nil, l.txError(strings.ToLower(txType), err)
	}

	l.logger().Info("cash operation committed",
		zap.Uint64("portfolio_id", portfolioID),
		zap.String("type", txType),
		zap.String("amount", amount.String()),
	)
	publisherOrNop(l.Publisher).PublishPortfolioUpdate(ctx, portfolioID)
	l.emit(ctx, res.Transaction)
	return &res, nil
}

func (l *Ledger) ownedPortfolio(ctx context.Context, repo repository.PortfolioRepository, portfolioID, userID uint64) (*models.Portfolio, error) {
	if l == nil || l.Repo == nil {
		return nil, apperr.E(apperr.Internal, "ledger not configured")
	}
	p, err := repo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load portfolio", err)
	}
	if p == nil || p.UserID != userID {
		return nil, apperr.E(apperr.NotFound, "portfolio not found")
	}
	return p, nil
}

func (l *Ledger) lockPortfolio(ctx context.Context, tx repository.Repository, portfolioID, userID uint64) (*models.Portfolio, error) {
	p, err := tx.GetPortfolioForUpdate(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.UserID != userID {
		return nil, apperr.E(apperr.NotFound, "portfolio not found")
	}
	return p, nil
}

func (l *Ledger) resolvePrice(ctx context.Context, symbol string, explicit *decimal.Decimal) (decimal.Decimal, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if l.Prices == nil {
		return decimal.Zero, apperr.Errorf(apperr.PriceUnavailable, "no price available for %s", symbol)
	}
	price, _, err := l.Prices.GetPrice(ctx, symbol)
	if err != nil {
		if apperr.IsKind(err, apperr.PriceUnavailable) {
			return decimal.Zero, err
		}
		return decimal.Zero, apperr.Wrap(apperr.PriceUnavailable, "no price available for "+symbol, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, apperr.Errorf(apperr.PriceUnavailable, "no price available for %s", symbol)
	}
	return price, nil
}

// txError keeps domain errors raised inside the transaction and wraps store
// failures as Internal.
func (l *Ledger) txError(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	l.logger().Error("ledger transaction failed", zap.String("op", op), zap.Error(err))
	return apperr.Wrap(apperr.Internal, fmt.Sprintf("%s failed", op), err)
}

func (l *Ledger) afterTrade(ctx context.Context, userID uint64, t models.Transaction) {
	pub := publisherOrNop(l.Publisher)
	pub.PublishPortfolioUpdate(ctx, t.PortfolioID)
	l.emit(ctx, t)

	if !l.LargeTradeThreshold.IsPositive() || t.TotalAmount.LessThan(l.LargeTradeThreshold) {
		return
	}
	msg := fmt.Sprintf("%s %s %s @ %s (total %s)", t.Type, t.Quantity.String(), t.Symbol, t.Price.StringFixed(2), t.TotalAmount.StringFixed(2))
	if err := pub.NotifyUser(ctx, userID, msg, models.NotificationTrade, t); err != nil {
		l.logger().Warn("large trade notification failed", zap.Uint64("user_id", userID), zap.Error(err))
	}
}

func (l *Ledger) emit(ctx context.Context, t models.Transaction) {
	if l.Events == nil {
		return
	}
	if err := l.Events.PublishTransaction(ctx, t); err != nil {
		l.logger().Warn("transaction event failed", zap.Uint64("transaction_id", t.ID), zap.Error(err))
	}
}

func (l *Ledger) logger() *zap.Logger {
	if l == nil || l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}
