package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"wealthdesk/internal/client/orderbook"
	"wealthdesk/internal/config"
	"wealthdesk/internal/models"
	"wealthdesk/internal/repository"
)

// SchedulerService drives due plans through the Execution Gateway and
// applies the intra-day retry policy: a hard daily cut-off with a first
// retry window opening two hours before it and a second one hour before
// it. A failed plan that misses its windows simply stays Active and gets
// a fresh single attempt on its next due date.
type SchedulerService struct {
	Repo      repository.Repository
	Lifecycle *PlanLifecycleService
	Gateway   orderbook.Gateway
	Logger    *zap.Logger
	Config    config.SchedulerConfig

	Location *time.Location
	Now      func() time.Time
}

// ProcessScheduledPlans performs exactly one gateway attempt for every
// active plan due on date. Callers own at-most-one invocation per plan
// per scheduling tick; the engine does not deduplicate attempts itself.
// One plan's unexpected error never aborts the rest of the sweep.
func (s *SchedulerService) ProcessScheduledPlans(ctx context.Context, date time.Time) ([]models.ExecutionLog, error) {
	date = DateOnly(date, time.UTC)
	plans, err := s.Repo.ListPlansDueOn(ctx, date)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("processing scheduled plans",
			zap.String("date", date.Format("2006-01-02")),
			zap.Int("due", len(plans)),
		)
	}
	logs := make([]models.ExecutionLog, 0, len(plans))
	for _, plan := range plans {
		if ctx.Err() != nil {
			return logs, ctx.Err()
		}
		entry, err := s.attempt(ctx, plan, date)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("plan attempt skipped", zap.String("plan_id", plan.ID), zap.Error(err))
			}
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

// ProcessToday runs ProcessScheduledPlans for the current business date.
func (s *SchedulerService) ProcessToday(ctx context.Context) ([]models.ExecutionLog, error) {
	return s.ProcessScheduledPlans(ctx, DateOnly(s.now(), s.loc()))
}

// RetryFailedExecutions re-attempts today's due plans that failed earlier
// but still have retries left, provided their retry window has opened and
// the cut-off has not passed. Each eligible plan gets exactly one new
// attempt per sweep.
func (s *SchedulerService) RetryFailedExecutions(ctx context.Context) ([]models.ExecutionLog, error) {
	now := s.now().In(s.loc())
	cutoff := s.cutoffAt(now)
	if !now.Before(cutoff) {
		if s.Logger != nil {
			s.Logger.Info("retry sweep past cut-off, nothing to do",
				zap.String("cutoff", cutoff.Format("15:04")),
			)
		}
		return nil, nil
	}

	today := DateOnly(now, s.loc())
	plans, err := s.Repo.ListPlansDueOn(ctx, today)
	if err != nil {
		return nil, err
	}
	var logs []models.ExecutionLog
	for _, plan := range plans {
		if ctx.Err() != nil {
			return logs, ctx.Err()
		}
		if plan.RetryCount <= 0 || plan.RetryCount >= s.maxRetriesFor(plan) {
			continue
		}
		if !s.retryWindowOpen(plan.RetryCount, now, cutoff) {
			continue
		}
		entry, err := s.attempt(ctx, plan, today)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("plan retry skipped", zap.String("plan_id", plan.ID), zap.Error(err))
			}
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func (s *SchedulerService) attempt(ctx context.Context, plan models.Plan, date time.Time) (models.ExecutionLog, error) {
	attemptedAt := s.now().UTC()
	req := orderbook.ExecutionRequest{
		PlanID:        plan.ID,
		PlanType:      plan.PlanType,
		ClientID:      plan.ClientID,
		Amount:        plan.Amount,
		InstallmentNo: plan.ExecutedInstallments + 1,
		ExecutionDate: date.Format("2006-01-02"),
	}
	if plan.SchemeID != nil {
		req.SchemeID = *plan.SchemeID
	}
	if plan.SourceSchemeID != nil {
		req.SourceSchemeID = *plan.SourceSchemeID
	}
	if plan.TargetSchemeID != nil {
		req.TargetSchemeID = *plan.TargetSchemeID
	}

	result, err := s.Gateway.Execute(ctx, req)
	if err != nil {
		// Transport-level trouble is just another failed attempt.
		result = orderbook.Result{Success: false, Reason: err.Error()}
	}

	updated, err := s.Lifecycle.MarkExecution(ctx, plan.ID, result.Success, result.Reason)
	if err != nil {
		return models.ExecutionLog{}, err
	}

	entry := models.ExecutionLog{
		PlanID:        plan.ID,
		ExecutionDate: date,
		AttemptedAt:   attemptedAt,
		InstallmentNo: plan.ExecutedInstallments + 1,
		Amount:        plan.Amount,
		RetryCount:    updated.RetryCount,
	}
	switch {
	case result.Success:
		entry.Status = models.ExecutionStatusSuccess
		if result.ReferenceID != "" {
			ref := result.ReferenceID
			entry.ReferenceID = &ref
		}
	default:
		reason := strings.TrimSpace(result.Reason)
		if reason == "" {
			reason = "execution failed"
		}
		entry.FailureReason = &reason
		if updated.Status == models.PlanStatusActive && s.retryStillPossibleToday(attemptedAt) {
			entry.Status = models.ExecutionStatusRetrying
		} else {
			entry.Status = models.ExecutionStatusFailed
		}
	}

	if err := s.Repo.InsertExecutionLog(ctx, &entry); err != nil {
		return models.ExecutionLog{}, err
	}
	if s.Logger != nil {
		s.Logger.Info("execution attempt logged",
			zap.String("plan_id", plan.ID),
			zap.String("status", entry.Status),
			zap.Int("retry_count", entry.RetryCount),
		)
	}
	return entry, nil
}

// retryWindowOpen gates a plan's next retry on its failure count: the
// first retry (one failure recorded) opens at cut-off minus the first
// offset, the second at cut-off minus the second offset. Anything past
// two recorded failures is never re-attempted by the sweep.
func (s *SchedulerService) retryWindowOpen(retryCount int, now, cutoff time.Time) bool {
	switch retryCount {
	case 1:
		return !now.Before(cutoff.Add(-s.firstRetryOffset()))
	case 2:
		return !now.Before(cutoff.Add(-s.secondRetryOffset()))
	default:
		return false
	}
}

// retryStillPossibleToday reports whether a later same-day retry remains
// possible at the given instant, i.e. the cut-off has not passed.
func (s *SchedulerService) retryStillPossibleToday(at time.Time) bool {
	now := at.In(s.loc())
	return now.Before(s.cutoffAt(now))
}

// cutoffAt returns the configured cut-off instant on the same calendar
// day as now (business timezone).
func (s *SchedulerService) cutoffAt(now time.Time) time.Time {
	hour, minute := 15, 0
	parts := strings.SplitN(strings.TrimSpace(s.Config.CutoffTime), ":", 2)
	if len(parts) == 2 {
		if h, err := strconv.Atoi(parts[0]); err == nil && h >= 0 && h < 24 {
			if m, err := strconv.Atoi(parts[1]); err == nil && m >= 0 && m < 60 {
				hour, minute = h, m
			}
		}
	}
	y, m, d := now.In(s.loc()).Date()
	return time.Date(y, m, d, hour, minute, 0, 0, s.loc())
}

func (s *SchedulerService) firstRetryOffset() time.Duration {
	if s.Config.FirstRetryOffset > 0 {
		return s.Config.FirstRetryOffset
	}
	return 2 * time.Hour
}

func (s *SchedulerService) secondRetryOffset() time.Duration {
	if s.Config.SecondRetryOffset > 0 {
		return s.Config.SecondRetryOffset
	}
	return time.Hour
}

func (s *SchedulerService) maxRetriesFor(plan models.Plan) int {
	if plan.MaxRetries > 0 {
		return plan.MaxRetries
	}
	if s.Config.MaxRetries > 0 {
		return s.Config.MaxRetries
	}
	return defaultMaxRetries
}

func (s *SchedulerService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SchedulerService) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}
