package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"wealthdesk/internal/repository"
	"wealthdesk/internal/service"
)

type PlanHandler struct {
	Repo      repository.Repository
	Lifecycle *service.PlanLifecycleService
}

func (h *PlanHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/plans")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.modify)
	g.POST("/:id/cancel", h.cancel)
	g.GET("/:id/executions", h.executions)
}

type createPlanRequest struct {
	PlanType       string `json:"plan_type" binding:"required"`
	ClientID       string `json:"client_id" binding:"required"`
	SchemeID       string `json:"scheme_id"`
	SourceSchemeID string `json:"source_scheme_id"`
	TargetSchemeID string `json:"target_scheme_id"`

	Amount       string `json:"amount" binding:"required"`
	Frequency    string `json:"frequency" binding:"required"`
	StartDate    string `json:"start_date" binding:"required"`
	Installments int    `json:"installments" binding:"required"`

	SkipDateValidation bool `json:"skip_date_validation"`
}

type modifyPlanRequest struct {
	Amount       *string `json:"amount"`
	Frequency    *string `json:"frequency"`
	Installments *int    `json:"installments"`
}

type cancelPlanRequest struct {
	Reason string `json:"reason"`
}

// @Summary Create an investment plan
// @Tags plans
// @Accept json
// @Produce json
// @Param request body createPlanRequest true "plan definition"
// @Success 200 {object} apiResponse
// @Router /api/v1/plans [post]
func (h *PlanHandler) create(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid amount: "+err.Error(), nil)
		return
	}
	start, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.StartDate), time.UTC)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid start_date, want YYYY-MM-DD", nil)
		return
	}

	ctx := c.Request.Context()
	client, err := h.Repo.GetClientByID(ctx, strings.TrimSpace(req.ClientID))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if client == nil {
		Error(c, http.StatusBadRequest, "unknown client "+req.ClientID, nil)
		return
	}
	for _, schemeID := range []string{req.SchemeID, req.SourceSchemeID, req.TargetSchemeID} {
		schemeID = strings.TrimSpace(schemeID)
		if schemeID == "" {
			continue
		}
		scheme, err := h.Repo.GetSchemeByID(ctx, schemeID)
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		if scheme == nil {
			Error(c, http.StatusBadRequest, "unknown scheme "+schemeID, nil)
			return
		}
	}

	plan, err := h.Lifecycle.CreatePlan(ctx, service.CreatePlanInput{
		PlanType:           req.PlanType,
		ClientID:           req.ClientID,
		SchemeID:           req.SchemeID,
		SourceSchemeID:     req.SourceSchemeID,
		TargetSchemeID:     req.TargetSchemeID,
		Amount:             amount,
		Frequency:          req.Frequency,
		StartDate:          start,
		Installments:       req.Installments,
		SkipDateValidation: req.SkipDateValidation,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	Ok(c, plan, nil)
}

// @Summary List plans
// @Tags plans
// @Produce json
// @Success 200 {object} apiResponse
// @Router /api/v1/plans [get]
func (h *PlanHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPlansParams{
		Limit:    limit,
		Offset:   offset,
		Status:   strQueryPtr(c, "status"),
		ClientID: strQueryPtr(c, "client_id"),
		PlanType: strQueryPtr(c, "plan_type"),
		OrderBy:  "created_at",
		Asc:      boolPtr(false),
	}
	items, err := h.Repo.ListPlans(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountPlans(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get one plan
// @Tags plans
// @Produce json
// @Param id path string true "plan id"
// @Success 200 {object} apiResponse
// @Router /api/v1/plans/{id} [get]
func (h *PlanHandler) get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetPlanByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "plan not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Modify a plan's amount, frequency or installment count
// @Tags plans
// @Accept json
// @Produce json
// @Param id path string true "plan id"
// @Param request body modifyPlanRequest true "fields to change"
// @Success 200 {object} apiResponse
// @Router /api/v1/plans/{id} [put]
func (h *PlanHandler) modify(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req modifyPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	in := service.ModifyPlanInput{
		Frequency:    req.Frequency,
		Installments: req.Installments,
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(strings.TrimSpace(*req.Amount))
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid amount: "+err.Error(), nil)
			return
		}
		in.Amount = &amount
	}
	plan, err := h.Lifecycle.ModifyPlan(c.Request.Context(), id, in)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	Ok(c, plan, nil)
}

// @Summary Cancel a plan
// @Tags plans
// @Accept json
// @Produce json
// @Param id path string true "plan id"
// @Success 200 {object} apiResponse
// @Router /api/v1/plans/{id}/cancel [post]
func (h *PlanHandler) cancel(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req cancelPlanRequest
	_ = c.ShouldBindJSON(&req)
	plan, err := h.Lifecycle.CancelPlan(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	Ok(c, plan, nil)
}

// @Summary Execution history of one plan
// @Tags plans
// @Produce json
// @Param id path string true "plan id"
// @Success 200 {object} apiResponse
// @Router /api/v1/plans/{id}/executions [get]
func (h *PlanHandler) executions(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	plan, err := h.Repo.GetPlanByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if plan == nil {
		Error(c, http.StatusNotFound, "plan not found", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListExecutionLogsParams{
		Limit:   limit,
		Offset:  offset,
		PlanID:  &id,
		Status:  strQueryPtr(c, "status"),
		OrderBy: "attempted_at",
		Asc:     boolPtr(true),
	}
	items, err := h.Repo.ListExecutionLogs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountExecutionLogs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// writeServiceError maps lifecycle errors onto HTTP statuses: bad input
// is 400, unknown plans 404, illegal transitions 409, anything else is
// treated as a storage fault.
func writeServiceError(c *gin.Context, err error) {
	var (
		validation *service.ValidationError
		invalid    *service.InvalidStateError
		scheduled  *service.ScheduledTodayError
		terminal   *service.AlreadyTerminalError
	)
	switch {
	case errors.As(err, &validation):
		Error(c, http.StatusBadRequest, validation.Error(), nil)
	case errors.Is(err, service.ErrPlanNotFound):
		Error(c, http.StatusNotFound, "plan not found", nil)
	case errors.As(err, &invalid):
		Error(c, http.StatusConflict, invalid.Error(), nil)
	case errors.As(err, &scheduled):
		Error(c, http.StatusConflict, scheduled.Error(), nil)
	case errors.As(err, &terminal):
		Error(c, http.StatusConflict, terminal.Error(), nil)
	default:
		Error(c, http.StatusBadGateway, err.Error(), nil)
	}
}
