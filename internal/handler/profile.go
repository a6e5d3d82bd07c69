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

// ProfileHandler serves the caller's risk profile and financial goals.
type ProfileHandler struct {
	Repo repository.ProfileRepository
	Auth gin.HandlerFunc
}

func (h *ProfileHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/profile", h.Auth)
	g.GET("/risk", h.getRisk)
	g.PUT("/risk", h.putRisk)
	g.GET("/goals", h.listGoals)
	g.POST("/goals", h.createGoal)
	g.DELETE("/goals/:id", h.deleteGoal)
}

type riskProfileRequest struct {
	Tolerance    string `json:"tolerance"`
	HorizonYears int    `json:"horizonYears"`
}

type goalRequest struct {
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	TargetDate   *time.Time      `json:"targetDate,omitempty"`
}

func (h *ProfileHandler) getRisk(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	p, err := h.Repo.GetRiskProfileByUser(c.Request.Context(), uid)
	if err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "load risk profile", err))
		return
	}
	if p == nil {
		Fail(c, apperr.E(apperr.NotFound, "risk profile not set"))
		return
	}
	Ok(c, p, nil)
}

// @Summary Set the risk profile
// @Tags profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body riskProfileRequest true "profile"
// @Success 200 {object} apiResponse
// @Router /api/v1/profile/risk [put]
func (h *ProfileHandler) putRisk(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req riskProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	tolerance := strings.ToUpper(strings.TrimSpace(req.Tolerance))
	switch tolerance {
	case models.RiskConservative, models.RiskModerate, models.RiskAggressive:
	case "":
		tolerance = models.RiskModerate
	default:
		Fail(c, apperr.E(apperr.InvalidInput, "tolerance must be CONSERVATIVE, MODERATE or AGGRESSIVE"))
		return
	}
	if req.HorizonYears < 0 || req.HorizonYears > 100 {
		Fail(c, apperr.E(apperr.InvalidInput, "horizonYears out of range"))
		return
	}
	p := &models.RiskProfile{UserID: uid, Tolerance: tolerance, HorizonYears: req.HorizonYears}
	if err := h.Repo.UpsertRiskProfile(c.Request.Context(), p); err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "save risk profile", err))
		return
	}
	Ok(c, p, nil)
}

func (h *ProfileHandler) listGoals(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.Repo.ListFinancialGoals(c.Request.Context(), uid)
	if err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "list goals", err))
		return
	}
	if items == nil {
		items = []models.FinancialGoal{}
	}
	Ok(c, items, nil)
}

// @Summary Add a financial goal
// @Tags profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body goalRequest true "goal"
// @Success 201 {object} apiResponse
// @Router /api/v1/profile/goals [post]
func (h *ProfileHandler) createGoal(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		Fail(c, apperr.E(apperr.InvalidInput, "name is required"))
		return
	}
	if !req.TargetAmount.IsPositive() {
		Fail(c, apperr.E(apperr.InvalidInput, "targetAmount must be positive"))
		return
	}
	g := &models.FinancialGoal{UserID: uid, Name: name, TargetAmount: req.TargetAmount, TargetDate: req.TargetDate}
	if err := h.Repo.CreateFinancialGoal(c.Request.Context(), g); err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "create goal", err))
		return
	}
	Created(c, g)
}

func (h *ProfileHandler) deleteGoal(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	found, err := h.Repo.DeleteFinancialGoal(c.Request.Context(), uid, id)
	if err != nil {
		Fail(c, apperr.Wrap(apperr.Internal, "delete goal", err))
		return
	}
	if !found {
		Fail(c, apperr.E(apperr.NotFound, "goal not found"))
		return
	}
	Ok(c, gin.H{"id": id, "deleted": true}, nil)
}
