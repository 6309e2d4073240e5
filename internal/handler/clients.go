package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"wealthdesk/internal/models"
	"wealthdesk/internal/repository"
)

type ClientHandler struct {
	Repo repository.Repository
}

func (h *ClientHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/clients")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.POST("/:id/profiles", h.submitProfile)
	g.GET("/:id/profiles", h.listProfiles)
}

type clientRequest struct {
	Name                string `json:"name" binding:"required"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	PAN                 string `json:"pan"`
	RelationshipManager string `json:"relationship_manager"`
	KYCVerified         *bool  `json:"kyc_verified"`
}

type submitProfileRequest struct {
	Kind     string          `json:"kind" binding:"required"`
	Answers  json.RawMessage `json:"answers" binding:"required"`
	Score    int             `json:"score"`
	Category string          `json:"category"`
}

// @Summary Register a client
// @Tags clients
// @Accept json
// @Produce json
// @Param request body clientRequest true "client"
// @Success 200 {object} apiResponse
// @Router /api/v1/clients [post]
func (h *ClientHandler) create(c *gin.Context) {
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	item := &models.Client{
		ID:                  "CL-" + uuid.NewString(),
		Name:                strings.TrimSpace(req.Name),
		Email:               strings.TrimSpace(req.Email),
		Phone:               strings.TrimSpace(req.Phone),
		PAN:                 strings.ToUpper(strings.TrimSpace(req.PAN)),
		RelationshipManager: strings.TrimSpace(req.RelationshipManager),
	}
	if req.KYCVerified != nil {
		item.KYCVerified = *req.KYCVerified
	}
	if err := h.Repo.InsertClient(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary List clients
// @Tags clients
// @Produce json
// @Success 200 {object} apiResponse
// @Router /api/v1/clients [get]
func (h *ClientHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListClientsParams{
		Limit:   limit,
		Offset:  offset,
		Manager: strQueryPtr(c, "manager"),
		OrderBy: "created_at",
		Asc:     boolPtr(false),
	}
	items, err := h.Repo.ListClients(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountClients(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Get one client
// @Tags clients
// @Produce json
// @Param id path string true "client id"
// @Success 200 {object} apiResponse
// @Router /api/v1/clients/{id} [get]
func (h *ClientHandler) get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetClientByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "client not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Update a client record
// @Tags clients
// @Accept json
// @Produce json
// @Param id path string true "client id"
// @Param request body clientRequest true "client"
// @Success 200 {object} apiResponse
// @Router /api/v1/clients/{id} [put]
func (h *ClientHandler) update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetClientByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "client not found", nil)
		return
	}
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	item.Name = strings.TrimSpace(req.Name)
	item.Email = strings.TrimSpace(req.Email)
	item.Phone = strings.TrimSpace(req.Phone)
	item.PAN = strings.ToUpper(strings.TrimSpace(req.PAN))
	item.RelationshipManager = strings.TrimSpace(req.RelationshipManager)
	if req.KYCVerified != nil {
		item.KYCVerified = *req.KYCVerified
	}
	if err := h.Repo.UpdateClient(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Submit a risk or knowledge questionnaire
// @Tags clients
// @Accept json
// @Produce json
// @Param id path string true "client id"
// @Param request body submitProfileRequest true "questionnaire"
// @Success 200 {object} apiResponse
// @Router /api/v1/clients/{id}/profiles [post]
func (h *ClientHandler) submitProfile(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	client, err := h.Repo.GetClientByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if client == nil {
		Error(c, http.StatusNotFound, "client not found", nil)
		return
	}
	var req submitProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	switch kind {
	case models.ProfileKindRisk, models.ProfileKindKnowledge:
	default:
		Error(c, http.StatusBadRequest, "kind must be risk or knowledge", nil)
		return
	}
	item := &models.RiskProfile{
		ClientID:   id,
		Kind:       kind,
		Answers:    datatypes.JSON(req.Answers),
		Score:      req.Score,
		Category:   strings.TrimSpace(req.Category),
		AssessedAt: time.Now().UTC(),
	}
	if err := h.Repo.InsertRiskProfile(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Questionnaire history of one client
// @Tags clients
// @Produce json
// @Param id path string true "client id"
// @Success 200 {object} apiResponse
// @Router /api/v1/clients/{id}/profiles [get]
func (h *ClientHandler) listProfiles(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
		latest, err := h.Repo.GetLatestRiskProfile(c.Request.Context(), id, strings.ToLower(kind))
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		if latest == nil {
			Error(c, http.StatusNotFound, "no profile on record", nil)
			return
		}
		Ok(c, latest, nil)
		return
	}
	items, err := h.Repo.ListRiskProfilesByClient(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}
