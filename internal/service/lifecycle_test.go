package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wealthdesk/internal/models"
	"wealthdesk/internal/repository"
	memoryrepository "wealthdesk/internal/repository/memory"
)

func newLifecycle(now time.Time) (*PlanLifecycleService, *memoryrepository.Store) {
	store := memoryrepository.New()
	svc := &PlanLifecycleService{
		Repo: store,
		Now:  func() time.Time { return now },
	}
	return svc, store
}

func sipInput(start time.Time) CreatePlanInput {
	return CreatePlanInput{
		PlanType:     models.PlanTypeSIP,
		ClientID:     "CL-1",
		SchemeID:     "EQ-LARGECAP",
		Amount:       decimal.NewFromInt(5000),
		Frequency:    models.FrequencyMonthly,
		StartDate:    start,
		Installments: 12,
	}
}

func TestCreatePlanValidation(t *testing.T) {
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	svc, _ := newLifecycle(now)
	ctx := context.Background()
	future := date(2026, time.April, 1)

	tests := []struct {
		name   string
		mutate func(*CreatePlanInput)
	}{
		{"unknown type", func(in *CreatePlanInput) { in.PlanType = "XYZ" }},
		{"missing client", func(in *CreatePlanInput) { in.ClientID = " " }},
		{"zero amount", func(in *CreatePlanInput) { in.Amount = decimal.Zero }},
		{"negative amount", func(in *CreatePlanInput) { in.Amount = decimal.NewFromInt(-100) }},
		{"zero installments", func(in *CreatePlanInput) { in.Installments = 0 }},
		{"bad frequency", func(in *CreatePlanInput) { in.Frequency = "weekly" }},
		{"missing scheme", func(in *CreatePlanInput) { in.SchemeID = "" }},
		{"start today", func(in *CreatePlanInput) { in.StartDate = date(2026, time.March, 10) }},
		{"start in past", func(in *CreatePlanInput) { in.StartDate = date(2026, time.February, 1) }},
	}
	for _, tt := range tests {
		in := sipInput(future)
		tt.mutate(&in)
		_, err := svc.CreatePlan(ctx, in)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: want ValidationError, got %v", tt.name, err)
		}
	}
}

func TestCreatePlanSTPRequiresDistinctSchemes(t *testing.T) {
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	svc, _ := newLifecycle(now)
	ctx := context.Background()

	in := CreatePlanInput{
		PlanType:       models.PlanTypeSTP,
		ClientID:       "CL-1",
		SourceSchemeID: "DEBT-LIQUID",
		TargetSchemeID: "DEBT-LIQUID",
		Amount:         decimal.NewFromInt(10000),
		Frequency:      models.FrequencyMonthly,
		StartDate:      date(2026, time.April, 1),
		Installments:   6,
	}
	var verr *ValidationError
	if _, err := svc.CreatePlan(ctx, in); !errors.As(err, &verr) {
		t.Fatalf("want ValidationError for identical schemes, got %v", err)
	}

	in.TargetSchemeID = "EQ-MIDCAP"
	plan, err := svc.CreatePlan(ctx, in)
	if err != nil {
		t.Fatalf("create STP: %v", err)
	}
	if plan.SchemeID != nil {
		t.Fatalf("STP must not carry a single scheme id")
	}
	if plan.SourceSchemeID == nil || plan.TargetSchemeID == nil {
		t.Fatalf("STP must carry source and target")
	}
}

func TestCreatePlanInitialState(t *testing.T) {
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	svc, store := newLifecycle(now)
	ctx := context.Background()
	start := date(2026, time.April, 1)

	plan, err := svc.CreatePlan(ctx, sipInput(start))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if plan.Status != models.PlanStatusActive {
		t.Fatalf("status = %q, want active", plan.Status)
	}
	if plan.NextExecutionDate == nil || !plan.NextExecutionDate.Equal(start) {
		t.Fatalf("next execution = %v, want %s", plan.NextExecutionDate, start.Format("2006-01-02"))
	}
	if plan.ExecutedInstallments != 0 || plan.RetryCount != 0 {
		t.Fatalf("counters not zeroed: %+v", plan)
	}
	if plan.MaxRetries != 3 {
		t.Fatalf("max retries = %d, want 3", plan.MaxRetries)
	}

	stored, err := store.GetPlanByID(ctx, plan.ID)
	if err != nil || stored == nil {
		t.Fatalf("plan not persisted: %v", err)
	}
}

func TestCreatePlanSkipDateValidation(t *testing.T) {
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	svc, _ := newLifecycle(now)

	in := sipInput(date(2026, time.March, 10))
	in.SkipDateValidation = true
	plan, err := svc.CreatePlan(context.Background(), in)
	if err != nil {
		t.Fatalf("create with bypass: %v", err)
	}
	if plan.NextExecutionDate == nil || !SameDate(*plan.NextExecutionDate, date(2026, time.March, 10)) {
		t.Fatalf("same-day start not honored: %v", plan.NextExecutionDate)
	}
}

func TestModifyPlanGuards(t *testing.T) {
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	svc, _ := newLifecycle(now)
	ctx := context.Background()

	if _, err := svc.ModifyPlan(ctx, "missing", ModifyPlanInput{}); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("want ErrPlanNotFound, got %v", err)
	}

	plan, err := svc.CreatePlan(ctx, sipInput(date(2026, time.April, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Cancelled plans reject modification.
	if _, err := svc.CancelPlan(ctx, plan.ID, "client request"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	var inv *InvalidStateError
	if _, err := svc.ModifyPlan(ctx, plan.ID, ModifyPlanInput{}); !errors.As(err, &inv) {
		t.Fatalf("want InvalidStateError, got %v", err)
	}

	// Plans due today reject modification.
	in := sipInput(date(2026, time.March, 10))
	in.SkipDateValidation = true
	dueToday, err := svc.CreatePlan(ctx, in)
	if err != nil {
		t.Fatalf("create due-today: %v", err)
	}
	amount := decimal.NewFromInt(7000)
	var sched *ScheduledTodayError
	if _, err := svc.ModifyPlan(ctx, dueToday.ID, ModifyPlanInput{Amount: &amount}); !errors.As(err, &sched) {
		t.Fatalf("want ScheduledTodayError, got %v", err)
	}
}

func TestModifyPlanAppliesFields(t *testing.T) {
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	svc, _ := newLifecycle(now)
	ctx := context.Background()

	plan, err := svc.CreatePlan(ctx, sipInput(date(2026, time.April, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	amount := decimal.NewFromInt(8000)
	frequency := models.FrequencyQuarterly
	installments := 8
	updated, err := svc.ModifyPlan(ctx, plan.ID, ModifyPlanInput{
		Amount:       &amount,
		Frequency:    &frequency,
		Installments: &installments,
	})
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if !updated.Amount.Equal(amount) || updated.Frequency != frequency || updated.Installments != installments {
		t.Fatalf("fields not applied: %+v", updated)
	}
	// Identity is untouched.
	if updated.PlanType != plan.PlanType || !updated.StartDate.Equal(plan.StartDate) {
		t.Fatalf("identity changed: %+v", updated)
	}

	bad := decimal.Zero
	var verr *ValidationError
	if _, err := svc.ModifyPlan(ctx, plan.ID, ModifyPlanInput{Amount: &bad}); !errors.As(err, &verr) {
		t.Fatalf("want ValidationError for zero amount, got %v", err)
	}
}

func TestModifyPlanInstallmentsMustExceedExecuted(t *testing.T) {
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	svc, _ := newLifecycle(now)
	ctx := context.Background()

	plan, err := svc.CreatePlan(ctx, sipInput(date(2026, time.April, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.MarkExecution(ctx, plan.ID, true, ""); err != nil {
			t.Fatalf("mark success %d: %v", i, err)
		}
	}
	three := 3
	var verr *ValidationError
	if _, err := svc.ModifyPlan(ctx, plan.ID, ModifyPlanInput{Installments: &three}); !errors.As(err, &verr) {
		t.Fatalf("want ValidationError for installments <= executed, got %v", err)
	}
	four := 4
	if _, err := svc.ModifyPlan(ctx, plan.ID, ModifyPlanInput{Installments: &four}); err != nil {
		t.Fatalf("installments = executed+1 must be allowed: %v", err)
	}
}

func TestCancelPlan(t *testing.T) {
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	svc, _ := newLifecycle(now)
	ctx := context.Background()

	if _, err := svc.CancelPlan(ctx, "missing", ""); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("want ErrPlanNotFound, got %v", err)
	}

	plan, err := svc.CreatePlan(ctx, sipInput(date(2026, time.April, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cancelled, err := svc.CancelPlan(ctx, plan.ID, "client moved out")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.PlanStatusCancelled {
		t.Fatalf("status = %q, want cancelled", cancelled.Status)
	}
	if cancelled.NextExecutionDate != nil {
		t.Fatalf("next execution date must be cleared on cancel")
	}
	if cancelled.CancelledAt == nil || cancelled.CancelledReason == nil {
		t.Fatalf("cancellation metadata missing: %+v", cancelled)
	}

	var term *AlreadyTerminalError
	if _, err := svc.CancelPlan(ctx, plan.ID, ""); !errors.As(err, &term) {
		t.Fatalf("want AlreadyTerminalError on double cancel, got %v", err)
	}
}

func TestMarkExecutionSuccessAdvancesAndCloses(t *testing.T) {
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	svc, _ := newLifecycle(now)
	ctx := context.Background()

	in := sipInput(date(2026, time.April, 30))
	in.Installments = 2
	plan, err := svc.CreatePlan(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := svc.MarkExecution(ctx, plan.ID, true, "")
	if err != nil {
		t.Fatalf("first success: %v", err)
	}
	if first.ExecutedInstallments != 1 || first.Status != models.PlanStatusActive {
		t.Fatalf("after first success: %+v", first)
	}
	want := date(2026, time.May, 30)
	if first.NextExecutionDate == nil || !first.NextExecutionDate.Equal(want) {
		t.Fatalf("next = %v, want %s", first.NextExecutionDate, want.Format("2006-01-02"))
	}

	second, err := svc.MarkExecution(ctx, plan.ID, true, "")
	if err != nil {
		t.Fatalf("second success: %v", err)
	}
	if second.Status != models.PlanStatusClosed {
		t.Fatalf("status = %q, want closed", second.Status)
	}
	if second.NextExecutionDate != nil {
		t.Fatalf("closed plan must have no next execution date")
	}

	var inv *InvalidStateError
	if _, err := svc.MarkExecution(ctx, plan.ID, true, ""); !errors.As(err, &inv) {
		t.Fatalf("want InvalidStateError on closed plan, got %v", err)
	}
}

func TestMarkExecutionSuccessResetsRetries(t *testing.T) {
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	svc, _ := newLifecycle(now)
	ctx := context.Background()

	plan, err := svc.CreatePlan(ctx, sipInput(date(2026, time.April, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.MarkExecution(ctx, plan.ID, false, "Insufficient funds"); err != nil {
		t.Fatalf("failure: %v", err)
	}
	updated, err := svc.MarkExecution(ctx, plan.ID, true, "")
	if err != nil {
		t.Fatalf("success after failure: %v", err)
	}
	if updated.RetryCount != 0 || updated.FailureReason != nil {
		t.Fatalf("retry state not reset: %+v", updated)
	}
}

func TestMarkExecutionFailureExhaustsRetries(t *testing.T) {
	now := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)
	svc, _ := newLifecycle(now)
	ctx := context.Background()

	plan, err := svc.CreatePlan(ctx, sipInput(date(2026, time.April, 1)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 1; i <= 2; i++ {
		updated, err := svc.MarkExecution(ctx, plan.ID, false, "Insufficient funds")
		if err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
		if updated.Status != models.PlanStatusActive || updated.RetryCount != i {
			t.Fatalf("after failure %d: status=%q retry=%d", i, updated.Status, updated.RetryCount)
		}
	}

	final, err := svc.MarkExecution(ctx, plan.ID, false, "Insufficient funds")
	if err != nil {
		t.Fatalf("third failure: %v", err)
	}
	if final.Status != models.PlanStatusFailed {
		t.Fatalf("status = %q, want failed after exhausting retries", final.Status)
	}
	if final.RetryCount != 3 {
		t.Fatalf("retry count = %d, want 3", final.RetryCount)
	}
	if final.NextExecutionDate != nil {
		t.Fatalf("failed plan must have no next execution date")
	}
	if final.FailureReason == nil || *final.FailureReason != "Insufficient funds" {
		t.Fatalf("failure reason not preserved: %v", final.FailureReason)
	}

	failed := models.PlanStatusFailed
	items, err := svc.Repo.ListPlans(ctx, repository.ListPlansParams{Status: &failed})
	if err != nil {
		t.Fatalf("list failed plans: %v", err)
	}
	if len(items) != 1 || items[0].ID != plan.ID {
		t.Fatalf("failed-status listing = %+v, want the exhausted plan", items)
	}
}
