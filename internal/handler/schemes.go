package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"wealthdesk/internal/models"
	"wealthdesk/internal/repository"
)

type SchemeHandler struct {
	Repo repository.Repository
}

func (h *SchemeHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/schemes")
	g.PUT("", h.upsert)
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

type upsertSchemeRequest struct {
	ID        string          `json:"id" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	Category  string          `json:"category" binding:"required"`
	NAV       string          `json:"nav" binding:"required"`
	RiskGrade string          `json:"risk_grade"`
	Active    *bool           `json:"active"`
	Metadata  json.RawMessage `json:"metadata"`
}

// @Summary Create or replace a catalog scheme
// @Tags schemes
// @Accept json
// @Produce json
// @Param request body upsertSchemeRequest true "scheme"
// @Success 200 {object} apiResponse
// @Router /api/v1/schemes [put]
func (h *SchemeHandler) upsert(c *gin.Context) {
	var req upsertSchemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	nav, err := decimal.NewFromString(strings.TrimSpace(req.NAV))
	if err != nil || nav.IsNegative() {
		Error(c, http.StatusBadRequest, "invalid nav", nil)
		return
	}
	item := &models.Scheme{
		ID:        strings.TrimSpace(req.ID),
		Name:      strings.TrimSpace(req.Name),
		Category:  strings.ToLower(strings.TrimSpace(req.Category)),
		NAV:       nav,
		RiskGrade: strings.TrimSpace(req.RiskGrade),
		Active:    true,
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if len(req.Metadata) > 0 {
		item.Metadata = datatypes.JSON(req.Metadata)
	}
	if err := h.Repo.UpsertScheme(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary List catalog schemes
// @Tags schemes
// @Produce json
// @Success 200 {object} apiResponse
// @Router /api/v1/schemes [get]
func (h *SchemeHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListSchemesParams{
		Limit:    limit,
		Offset:   offset,
		Category: strQueryPtr(c, "category"),
		Active:   boolQueryPtr(c, "active"),
		OrderBy:  "id",
		Asc:      boolPtr(true),
	}
	items, err := h.Repo.ListSchemes(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSchemes(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get one scheme
// @Tags schemes
// @Produce json
// @Param id path string true "scheme id"
// @Success 200 {object} apiResponse
// @Router /api/v1/schemes/{id} [get]
func (h *SchemeHandler) get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetSchemeByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "scheme not found", nil)
		return
	}
	Ok(c, item, nil)
}
