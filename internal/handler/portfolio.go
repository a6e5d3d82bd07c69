package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"folio/internal/apperr"
	"folio/internal/models"
	"folio/internal/repository"
)

type PortfolioHandler struct {
	Repo repository.Repository
	Auth gin.HandlerFunc
}

func (h *PortfolioHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/portfolios", h.Auth)
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/transactions", h.transactions)
	g.GET("/:id/history", h.history)
}

type createPortfolioRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Cash        decimal.Decimal `json:"cash"`
}

type updatePortfolioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// owned loads the portfolio when it belongs to the caller. It writes the
// error response and returns nil otherwise.
func (h *PortfolioHandler) owned(c *gin.Context, withHoldings bool) (*models.Portfolio, uint64) {
	uid, ok := currentUser(c)
	if !ok {
		return nil, 0
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return nil, 0
	}
	var p *models.Portfolio
	var err error
	if withHoldings {
		p, err = h.Repo.GetPortfolioWithHoldings(c.Request.Context(), id)
	} else {
		p, err = h.Repo.GetPortfolio(c.Request.Context(), id)
	}
	if err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "load portfolio", err))
		return nil, 0
	}
	if p == nil || p.UserID != uid {
		Fail(c, apperr.E(apperr.NotFound, "portfolio not found"))
		return nil, 0
	}
	return p, uid
}

// @Summary List the caller's portfolios
// @Tags portfolios
// @Security BearerAuth
// @Produce json
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios [get]
func (h *PortfolioHandler) list(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.Repo.ListPortfoliosByUser(c.Request.Context(), uid)
	if err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "list portfolios", err))
		return
	}
	if items == nil {
		items = []models.Portfolio{}
	}
	Ok(c, items, nil)
}

// @Summary Create a portfolio
// @Tags portfolios
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body createPortfolioRequest true "portfolio"
// @Success 201 {object} apiResponse
// @Router /api/v1/portfolios [post]
func (h *PortfolioHandler) create(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req createPortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		Fail(c, apperr.E(apperr.InvalidInput, "name is required"))
		return
	}
	if req.Cash.IsNegative() {
		Fail(c, apperr.E(apperr.InvalidInput, "cash must not be negative"))
		return
	}
	p := &models.Portfolio{
		UserID:      uid,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Cash:        req.Cash,
		TotalValue:  req.Cash,
	}
	if err := h.Repo.CreatePortfolio(c.Request.Context(), p); err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "create portfolio", err))
		return
	}
	Created(c, p)
}

// @Summary Get a portfolio with its holdings
// @Tags portfolios
// @Security BearerAuth
// @Produce json
// @Param id path int true "portfolio id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/portfolios/{id} [get]
func (h *PortfolioHandler) get(c *gin.Context) {
	p, _ := h.owned(c, true)
	if p == nil {
		return
	}
	if p.Holdings == nil {
		p.Holdings = []models.Holding{}
	}
	Ok(c, p, nil)
}

func (h *PortfolioHandler) update(c *gin.Context) {
	p, _ := h.owned(c, false)
	if p == nil {
		return
	}
	var req updatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = p.Name
	}
	if err := h.Repo.UpdatePortfolioDetails(c.Request.Context(), p.ID, name, strings.TrimSpace(req.Description)); err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "update portfolio", err))
		return
	}
	p.Name, p.Description = name, strings.TrimSpace(req.Description)
	Ok(c, p, nil)
}

func (h *PortfolioHandler) delete(c *gin.Context) {
	p, _ := h.owned(c, false)
	if p == nil {
		return
	}
	if err := h.Repo.DeletePortfolio(c.Request.Context(), p.ID); err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "delete portfolio", err))
		return
	}
	Ok(c, gin.H{"id": p.ID, "deleted": true}, nil)
}

// @Summary List portfolio transactions, newest first
// @Tags portfolios
// @Security BearerAuth
// @Produce json
// @Param id path int true "portfolio id"
// @Param type query string false "BUY, SELL, DIVIDEND, DEPOSIT, WITHDRAWAL"
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/transactions [get]
func (h *PortfolioHandler) transactions(c *gin.Context) {
	p, _ := h.owned(c, false)
	if p == nil {
		return
	}
	limit := repository.NormalizeLimit(intQuery(c, "limit", 50), 50)
	offset := repository.NormalizeOffset(intQuery(c, "offset", 0))
	params := repository.ListTransactionsParams{PortfolioID: p.ID, Limit: limit, Offset: offset}
	if v := strings.ToUpper(strings.TrimSpace(c.Query("type"))); v != "" {
		params.Type = &v
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			t := ts.UTC()
			params.Since = &t
		}
	}
	items, err := h.Repo.ListTransactions(c.Request.Context(), params)
	if err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "list transactions", err))
		return
	}
	total, err := h.Repo.CountTransactions(c.Request.Context(), params)
	if err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "count transactions", err))
		return
	}
	if items == nil {
		items = []models.Transaction{}
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Hourly value history
// @Tags portfolios
// @Security BearerAuth
// @Produce json
// @Param id path int true "portfolio id"
// @Param since query string false "RFC3339"
// @Param until query string false "RFC3339"
// @Success 200 {object} apiResponse
// @Router /api/v1/portfolios/{id}/history [get]
func (h *PortfolioHandler) history(c *gin.Context) {
	p, _ := h.owned(c, false)
	if p == nil {
		return
	}
	limit := intQuery(c, "limit", 168)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPortfolioSnapshotsParams{PortfolioID: p.ID, Limit: limit, Offset: offset}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			t := ts.UTC()
			params.Since = &t
		}
	}
	if raw := strings.TrimSpace(c.Query("until")); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			t := ts.UTC()
			params.Until = &t
		}
	}
	items, err := h.Repo.ListPortfolioSnapshots(c.Request.Context(), params)
	if err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "list snapshots", err))
		return
	}
	if items == nil {
		items = []models.PortfolioSnapshot{}
	}
	Ok(c, items, nil)
}
