package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wealthdesk/internal/repository"
	"wealthdesk/internal/service"
)

type SchedulerHandler struct {
	Repo      repository.Repository
	Scheduler *service.SchedulerService
}

func (h *SchedulerHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/scheduler")
	g.POST("/run", h.run)
	g.POST("/retry", h.retry)
	g.GET("/due", h.due)

	r.GET("/api/v1/executions", h.executions)
}

// @Summary Trigger the daily execution sweep
// @Tags scheduler
// @Produce json
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} apiResponse
// @Router /api/v1/scheduler/run [post]
func (h *SchedulerHandler) run(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		date, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid date, want YYYY-MM-DD", nil)
			return
		}
		logs, err := h.Scheduler.ProcessScheduledPlans(ctx, date)
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		Ok(c, logs, map[string]any{"attempted": len(logs)})
		return
	}
	logs, err := h.Scheduler.ProcessToday(ctx)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, logs, map[string]any{"attempted": len(logs)})
}

// @Summary Trigger the same-day retry sweep
// @Tags scheduler
// @Produce json
// @Success 200 {object} apiResponse
// @Router /api/v1/scheduler/retry [post]
func (h *SchedulerHandler) retry(c *gin.Context) {
	logs, err := h.Scheduler.RetryFailedExecutions(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, logs, map[string]any{"attempted": len(logs)})
}

// @Summary Plans due on a date
// @Tags scheduler
// @Produce json
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} apiResponse
// @Router /api/v1/scheduler/due [get]
func (h *SchedulerHandler) due(c *gin.Context) {
	var date time.Time
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid date, want YYYY-MM-DD", nil)
			return
		}
		date = parsed
	} else {
		date = service.DateOnly(time.Now(), time.UTC)
	}
	items, err := h.Repo.ListPlansDueOn(c.Request.Context(), date)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"date": date.Format("2006-01-02"), "total": len(items)})
}

// @Summary Execution log across all plans
// @Tags scheduler
// @Produce json
// @Success 200 {object} apiResponse
// @Router /api/v1/executions [get]
func (h *SchedulerHandler) executions(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListExecutionLogsParams{
		Limit:         limit,
		Offset:        offset,
		PlanID:        strQueryPtr(c, "plan_id"),
		Status:        strQueryPtr(c, "status"),
		ExecutionDate: dateQueryPtr(c, "date"),
		Since:         dateQueryPtr(c, "since"),
		OrderBy:       "attempted_at",
		Asc:           boolPtr(false),
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
