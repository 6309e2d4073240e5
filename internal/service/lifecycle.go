package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wealthdesk/internal/models"
	"wealthdesk/internal/repository"
)

const defaultMaxRetries = 3

// PlanLifecycleService owns every plan mutation: creation validation,
// modify/cancel transition legality and execution-outcome accounting.
// The scheduler and the HTTP layer never write plan fields directly.
type PlanLifecycleService struct {
	Repo   repository.Repository
	Logger *zap.Logger

	// Location is the business timezone used to derive "today"; Now is
	// injectable for tests. Both default sensibly when nil.
	Location   *time.Location
	Now        func() time.Time
	MaxRetries int
}

type CreatePlanInput struct {
	PlanType       string
	ClientID       string
	SchemeID       string
	SourceSchemeID string
	TargetSchemeID string

	Amount       decimal.Decimal
	Frequency    string
	StartDate    time.Time
	Installments int

	// SkipDateValidation permits a same-day (or past) start date. Used by
	// back-office tooling that books the first installment immediately.
	SkipDateValidation bool
}

type ModifyPlanInput struct {
	Amount       *decimal.Decimal
	Frequency    *string
	Installments *int
}

func (s *PlanLifecycleService) CreatePlan(ctx context.Context, in CreatePlanInput) (*models.Plan, error) {
	planType := strings.ToUpper(strings.TrimSpace(in.PlanType))
	switch planType {
	case models.PlanTypeSIP, models.PlanTypeSTP, models.PlanTypeSWP:
	default:
		return nil, validationf("unknown plan type %q", in.PlanType)
	}
	clientID := strings.TrimSpace(in.ClientID)
	if clientID == "" {
		return nil, validationf("client_id is required")
	}
	if !in.Amount.GreaterThan(decimal.Zero) {
		return nil, validationf("amount must be positive")
	}
	if in.Installments <= 0 {
		return nil, validationf("installments must be positive")
	}
	frequency := strings.ToLower(strings.TrimSpace(in.Frequency))
	switch frequency {
	case models.FrequencyMonthly, models.FrequencyQuarterly:
	default:
		return nil, validationf("frequency must be monthly or quarterly")
	}

	var schemeID, sourceID, targetID *string
	switch planType {
	case models.PlanTypeSTP:
		source := strings.TrimSpace(in.SourceSchemeID)
		target := strings.TrimSpace(in.TargetSchemeID)
		if source == "" || target == "" {
			return nil, validationf("STP requires source and target schemes")
		}
		if source == target {
			return nil, validationf("STP source and target schemes must differ")
		}
		sourceID, targetID = &source, &target
	default:
		scheme := strings.TrimSpace(in.SchemeID)
		if scheme == "" {
			return nil, validationf("scheme_id is required")
		}
		schemeID = &scheme
	}

	start := DateOnly(in.StartDate, time.UTC)
	today := DateOnly(s.now(), s.loc())
	if !in.SkipDateValidation && !start.After(today) {
		return nil, validationf("start date must be after %s", today.Format("2006-01-02"))
	}

	now := s.now().UTC()
	next := start
	plan := &models.Plan{
		ID:                planType + "-" + uuid.NewString(),
		PlanType:          planType,
		ClientID:          clientID,
		SchemeID:          schemeID,
		SourceSchemeID:    sourceID,
		TargetSchemeID:    targetID,
		Amount:            in.Amount,
		Frequency:         frequency,
		StartDate:         start,
		Installments:      in.Installments,
		Status:            models.PlanStatusActive,
		NextExecutionDate: &next,
		MaxRetries:        s.maxRetries(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Repo.InsertPlan(ctx, plan); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("plan created",
			zap.String("plan_id", plan.ID),
			zap.String("plan_type", plan.PlanType),
			zap.String("client_id", plan.ClientID),
			zap.String("amount", plan.Amount.String()),
			zap.Int("installments", plan.Installments),
			zap.String("start_date", start.Format("2006-01-02")),
		)
	}
	return plan, nil
}

// ModifyPlan applies a partial update to amount/frequency/installments.
// Schedule identity (type, client, schemes, start date) is immutable.
func (s *PlanLifecycleService) ModifyPlan(ctx context.Context, id string, in ModifyPlanInput) (*models.Plan, error) {
	plan, err := s.Repo.GetPlanByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if plan.Status != models.PlanStatusActive {
		return nil, &InvalidStateError{Op: "modify", Status: plan.Status}
	}
	today := DateOnly(s.now(), s.loc())
	if plan.NextExecutionDate != nil && SameDate(*plan.NextExecutionDate, today) {
		return nil, &ScheduledTodayError{Date: today}
	}

	if in.Amount != nil {
		if !in.Amount.GreaterThan(decimal.Zero) {
			return nil, validationf("amount must be positive")
		}
		plan.Amount = *in.Amount
	}
	if in.Frequency != nil {
		frequency := strings.ToLower(strings.TrimSpace(*in.Frequency))
		switch frequency {
		case models.FrequencyMonthly, models.FrequencyQuarterly:
		default:
			return nil, validationf("frequency must be monthly or quarterly")
		}
		plan.Frequency = frequency
	}
	if in.Installments != nil {
		if *in.Installments <= 0 {
			return nil, validationf("installments must be positive")
		}
		if *in.Installments <= plan.ExecutedInstallments {
			return nil, validationf("installments must exceed the %d already executed", plan.ExecutedInstallments)
		}
		plan.Installments = *in.Installments
	}

	plan.UpdatedAt = s.now().UTC()
	if err := s.Repo.UpdatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *PlanLifecycleService) CancelPlan(ctx context.Context, id, reason string) (*models.Plan, error) {
	plan, err := s.Repo.GetPlanByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	switch plan.Status {
	case models.PlanStatusClosed, models.PlanStatusCancelled:
		return nil, &AlreadyTerminalError{Status: plan.Status}
	}

	now := s.now().UTC()
	plan.Status = models.PlanStatusCancelled
	plan.CancelledAt = &now
	if reason = strings.TrimSpace(reason); reason != "" {
		plan.CancelledReason = &reason
	}
	plan.NextExecutionDate = nil
	plan.UpdatedAt = now
	if err := s.Repo.UpdatePlan(ctx, plan); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("plan cancelled", zap.String("plan_id", plan.ID), zap.String("reason", reason))
	}
	return plan, nil
}

// MarkExecution records one gateway outcome. Success advances the
// installment count, resets retry accounting and either closes the plan
// or schedules the next installment. Failure bumps the retry counter and
// turns the plan Failed once retries are exhausted; until then the plan
// stays Active with its due date untouched so the same-day retry sweep
// can pick it up.
func (s *PlanLifecycleService) MarkExecution(ctx context.Context, id string, success bool, failureReason string) (*models.Plan, error) {
	plan, err := s.Repo.GetPlanByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if plan.Status != models.PlanStatusActive {
		return nil, &InvalidStateError{Op: "record an execution for", Status: plan.Status}
	}

	now := s.now().UTC()
	if success {
		plan.ExecutedInstallments++
		plan.RetryCount = 0
		plan.FailureReason = nil
		plan.LastExecutionDate = &now
		if plan.ExecutedInstallments >= plan.Installments {
			plan.Status = models.PlanStatusClosed
			plan.NextExecutionDate = nil
		} else {
			next := NextExecutionDate(plan.StartDate, plan.Frequency, plan.ExecutedInstallments)
			plan.NextExecutionDate = &next
		}
	} else {
		plan.RetryCount++
		reason := strings.TrimSpace(failureReason)
		if reason == "" {
			reason = "execution failed"
		}
		plan.FailureReason = &reason
		if plan.RetryCount >= s.maxRetriesFor(plan) {
			plan.Status = models.PlanStatusFailed
			plan.NextExecutionDate = nil
		}
	}

	plan.UpdatedAt = now
	if err := s.Repo.UpdatePlan(ctx, plan); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("execution recorded",
			zap.String("plan_id", plan.ID),
			zap.Bool("success", success),
			zap.String("status", plan.Status),
			zap.Int("executed", plan.ExecutedInstallments),
			zap.Int("retry_count", plan.RetryCount),
		)
	}
	return plan, nil
}

func (s *PlanLifecycleService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *PlanLifecycleService) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s *PlanLifecycleService) maxRetries() int {
	if s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return defaultMaxRetries
}

func (s *PlanLifecycleService) maxRetriesFor(plan *models.Plan) int {
	if plan.MaxRetries > 0 {
		return plan.MaxRetries
	}
	return s.maxRetries()
}
