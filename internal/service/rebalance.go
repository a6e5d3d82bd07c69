package service

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"folio/internal/apperr"
	"folio/internal/repository"
)

const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// RebalanceThreshold is the allocation drift that turns HOLD into BUY or SELL.
var RebalanceThreshold = decimal.RequireFromString("0.03")

var weightTolerance = decimal.RequireFromString("0.0001")

type Recommendation struct {
	Symbol            string          `json:"symbol"`
	CurrentAllocation decimal.Decimal `json:"currentAllocation"`
	TargetAllocation  decimal.Decimal `json:"targetAllocation"`
	DollarValue       decimal.Decimal `json:"dollarValue"`
	Action            string          `json:"action"`
}

type RebalancePlan struct {
	PortfolioID     uint64           `json:"portfolioId"`
	HoldingsValue   decimal.Decimal  `json:"holdingsValue"`
	Recommendations []Recommendation `json:"recommendations"`
}

// RebalanceService compares current allocation by market value against target
// weights and proposes an action per symbol. It never trades.
type RebalanceService struct {
	Repo repository.Repository
}

// Recommend builds a plan for targets, a map of symbol to weight in [0, 1].
// Held symbols missing from targets get a target of zero.
func (s *RebalanceService) Recommend(ctx context.Context, portfolioID, userID uint64, targets map[string]decimal.Decimal) (*RebalancePlan, error) {
	if len(targets) == 0 {
		return nil, apperr.E(apperr.InvalidInput, "targets are required")
	}
	norm := make(map[string]decimal.Decimal, len(targets))
	sum := decimal.Zero
	for sym, w := range targets {
		sym = normalizeSymbol(sym)
		if sym == "" {
			return nil, apperr.E(apperr.InvalidInput, "target symbol is required")
		}
		if w.IsNegative() || w.GreaterThan(decimal.NewFromInt(1)) {
			return nil, apperr.Errorf(apperr.InvalidInput, "weight for %s must be between 0 and 1", sym)
		}
		norm[sym] = norm[sym].Add(w)
		sum = sum.Add(w)
	}
	if sum.GreaterThan(decimal.NewFromInt(1).Add(weightTolerance)) {
		return nil, apperr.E(apperr.InvalidInput, "target weights sum above 1")
	}

	p, err := s.Repo.GetPortfolioWithHoldings(ctx, portfolioID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "load portfolio", err)
	}
	if p == nil || p.UserID != userID {
		return nil, apperr.E(apperr.NotFound, "portfolio not found")
	}
	total := p.HoldingsValue()
	if !total.IsPositive() {
		return nil, apperr.E(apperr.InvalidInput, "portfolio has no value")
	}

	current := map[string]decimal.Decimal{}
	for _, h := range p.Holdings {
		current[h.Symbol] = current[h.Symbol].Add(h.MarketValue().Div(total))
		if _, ok := norm[h.Symbol]; !ok {
			norm[h.Symbol] = decimal.Zero
		}
	}

	plan := &RebalancePlan{PortfolioID: p.ID, HoldingsValue: total}
	for sym, target := range norm {
		cur := current[sym]
		action := ActionHold
		switch {
		case target.GreaterThan(cur.Add(RebalanceThreshold)):
			action = ActionBuy
		case target.LessThan(cur.Sub(RebalanceThreshold)):
			action = ActionSell
		}
		plan.Recommendations = append(plan.Recommendations, Recommendation{
			Symbol:            sym,
			CurrentAllocation: cur.Round(6),
			TargetAllocation:  target,
			DollarValue:       target.Mul(total).Round(2),
			Action:            action,
		})
	}
	sort.Slice(plan.Recommendations, func(i, j int) bool {
		return strings.Compare(plan.Recommendations[i].Symbol, plan.Recommendations[j].Symbol) < 0
	})
	return plan, nil
}
