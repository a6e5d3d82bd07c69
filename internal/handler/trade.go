package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"folio/internal/service"
)

// TradeHandler exposes the ledger mutations and the rebalance advisor.
type TradeHandler struct {
	Ledger    *service.Ledger
	Rebalance *service.RebalanceService
	Auth      gin.HandlerFunc
}

func (h *TradeHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/portfolios/:id", h.Auth)
	g.POST("/buy", h.buy)
	g.POST("/assets/:assetId/sell", h.sell)
	g.POST("/assets/:assetId/dividend", h.dividend)
	g.PUT("/update-prices", h.revalue)
	g.POST("/deposit", h.deposit)
	g.POST("/withdraw", h.withdraw)
	g.POST("/rebalance", h.rebalance)
}

type buyRequest struct {
	Symbol    string           `json:"symbol"`
	Name      string           `json:"name"`
	AssetType string           `json:"assetType"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

type sellRequest struct {
	Quantity decimal.Decimal  `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type rebalanceRequest struct {
	Targets map[string]decimal.Decimal `json:"targets"`
}

func (h *TradeHandler) portfolioParams(c *gin.Context) (portfolioID, userID uint64, ok bool) {
	userID, ok = currentUser(c)
	if !ok {
		return 0, 0, false
	}
	portfolioID = uint64Param(c, "id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return 0, 0, false
	}
	return portfolioID, userID, true
}

// @Summary Buy an asset
// @Tags trades
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "portfolio id"
// @Param body body buyRequest true "order"
// @Success 201 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/portfolios/{id}/buy [post]
func (h *TradeHandler) buy(c *gin.Context) {
	pid, uid, ok := h.portfolioParams(c)
	if !ok {
		return
	}
	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	res, err := h.Ledger.Buy(c.Request.Context(), service.BuyInput{
		PortfolioID: pid,
		UserID:      uid,
		Symbol:      req.Symbol,
		Name:        req.Name,
		AssetType:   req.AssetType,
		Quantity:    req.Quantity,
		Price:       req.Price,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, res)
}

// @Summary Sell part or all of a holding
// @Tags trades
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "portfolio id"
// @Param assetId path int true "holding id"
// @Param body body sellRequest true "order"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/portfolios/{id}/assets/{assetId}/sell [post]
func (h *TradeHandler) sell(c *gin.Context) {
	pid, uid, ok := h.portfolioParams(c)
	if !ok {
		return
	}
	holdingID := uint64Param(c, "assetId")
	if holdingID == 0 {
		Error(c, http.StatusBadRequest, "invalid asset id", nil)
		return
	}
	var req sellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	res, err := h.Ledger.Sell(c.Request.Context(), service.SellInput{
		PortfolioID: pid,
		UserID:      uid,
		HoldingID:   holdingID,
		Quantity:    req.Quantity,
		Price:       req.Price,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, res, nil)
}

// @Summary Refresh holding prices and recompute total value
// @Tags trades
// @Security BearerAuth
// @Produce json
// @Param id path int true "portfolio id"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/update-prices [put]
func (h *TradeHandler) revalue(c *gin.Context) {
	pid, uid, ok := h.portfolioParams(c)
	if !ok {
		return
	}
	res, err := h.Ledger.Revalue(c.Request.Context(), pid, uid)
	if err != nil {
		Fail(c, err)
		return
	}
	var meta map[string]any
	if len(res.Skipped) > 0 {
		meta = map[string]any{"skipped": len(res.Skipped)}
	}
	Ok(c, res, meta)
}

// @Summary Deposit cash
// @Tags trades
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "portfolio id"
// @Param body body amountRequest true "amount"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/deposit [post]
func (h *TradeHandler) deposit(c *gin.Context) {
	h.cash(c, h.Ledger.Deposit)
}

// @Summary Withdraw cash
// @Tags trades
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "portfolio id"
// @Param body body amountRequest true "amount"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/portfolios/{id}/withdraw [post]
func (h *TradeHandler) withdraw(c *gin.Context) {
	h.cash(c, h.Ledger.Withdraw)
}

type cashOp func(ctx context.Context, portfolioID, userID uint64, amount decimal.Decimal) (*service.CashResult, error)

func (h *TradeHandler) cash(c *gin.Context, op cashOp) {
	pid, uid, ok := h.portfolioParams(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	res, err := op(c.Request.Context(), pid, uid, req.Amount)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, res, nil)
}

// @Summary Record a dividend paid by a holding
// @Tags trades
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "portfolio id"
// @Param assetId path int true "holding id"
// @Param body body amountRequest true "amount"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/assets/{assetId}/dividend [post]
func (h *TradeHandler) dividend(c *gin.Context) {
	pid, uid, ok := h.portfolioParams(c)
	if !ok {
		return
	}
	holdingID := uint64Param(c, "assetId")
	if holdingID == 0 {
		Error(c, http.StatusBadRequest, "invalid asset id", nil)
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	res, err := h.Ledger.RecordDividend(c.Request.Context(), pid, uid, holdingID, req.Amount)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, res, nil)
}

// @Summary Recommend trades toward target weights
// @Tags trades
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "portfolio id"
// @Param body body rebalanceRequest true "symbol to weight in [0, 1]"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/rebalance [post]
func (h *TradeHandler) rebalance(c *gin.Context) {
	pid, uid, ok := h.portfolioParams(c)
	if !ok {
		return
	}
	var req rebalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	plan, err := h.Rebalance.Recommend(c.Request.Context(), pid, uid, req.Targets)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, plan, nil)
}
