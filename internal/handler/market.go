package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"folio/internal/apperr"
	"folio/internal/models"
	"folio/internal/repository"
)

type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*models.MarketQuote, error)
}

type MarketHandler struct {
	Quotes QuoteSource
	Repo   repository.MarketQuoteRepository
	Auth   gin.HandlerFunc
}

func (h *MarketHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/market", h.Auth)
	g.GET("/quotes", h.listQuotes)
	g.GET("/quotes/:symbol", h.getQuote)
}

// @Summary Current quote for a symbol
// @Tags market
// @Security BearerAuth
// @Produce json
// @Param symbol path string true "ticker"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/v1/market/quotes/{symbol} [get]
func (h *MarketHandler) getQuote(c *gin.Context) {
	q, err := h.Quotes.GetQuote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, q, nil)
}

// @Summary Stored quotes
// @Tags market
// @Security BearerAuth
// @Produce json
// @Param symbols query string false "comma separated tickers"
// @Success 200 {object} apiResponse
// @Router /api/v1/market/quotes [get]
func (h *MarketHandler) listQuotes(c *gin.Context) {
	var symbols []string
	for _, s := range strings.Split(c.Query("symbols"), ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	items, err := h.Repo.ListMarketQuotes(c.Request.Context(), symbols)
	if err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "list quotes", err))
		return
	}
	if items == nil {
		items = []models.MarketQuote{}
	}
	Ok(c, items, nil)
}
