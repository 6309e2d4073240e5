package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wealthdesk/internal/client/orderbook"
	"wealthdesk/internal/config"
	"wealthdesk/internal/models"
	memoryrepository "wealthdesk/internal/repository/memory"
)

// fakeGateway replays a scripted sequence of outcomes and records every
// request it saw.
type fakeGateway struct {
	script   []orderbook.Result
	errs     []error
	requests []orderbook.ExecutionRequest
}

func (g *fakeGateway) Execute(ctx context.Context, req orderbook.ExecutionRequest) (orderbook.Result, error) {
	g.requests = append(g.requests, req)
	i := len(g.requests) - 1
	if i < len(g.errs) && g.errs[i] != nil {
		return orderbook.Result{}, g.errs[i]
	}
	if i < len(g.script) {
		return g.script[i], nil
	}
	return orderbook.Result{Success: true, ReferenceID: "REF-DEFAULT"}, nil
}

type schedulerFixture struct {
	store     *memoryrepository.Store
	lifecycle *PlanLifecycleService
	scheduler *SchedulerService
	gateway   *fakeGateway
	now       time.Time
}

func newSchedulerFixture(now time.Time) *schedulerFixture {
	f := &schedulerFixture{
		store:   memoryrepository.New(),
		gateway: &fakeGateway{},
		now:     now,
	}
	clock := func() time.Time { return f.now }
	f.lifecycle = &PlanLifecycleService{Repo: f.store, Now: clock}
	f.scheduler = &SchedulerService{
		Repo:      f.store,
		Lifecycle: f.lifecycle,
		Gateway:   f.gateway,
		Config: config.SchedulerConfig{
			CutoffTime:        "15:00",
			FirstRetryOffset:  2 * time.Hour,
			SecondRetryOffset: time.Hour,
			MaxRetries:        3,
		},
		Now: clock,
	}
	return f
}

func (f *schedulerFixture) createDueToday(t *testing.T, installments int) *models.Plan {
	t.Helper()
	in := sipInput(DateOnly(f.now, time.UTC))
	in.Installments = installments
	in.SkipDateValidation = true
	plan, err := f.lifecycle.CreatePlan(context.Background(), in)
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return plan
}

func TestProcessScheduledPlansSuccess(t *testing.T) {
	now := time.Date(2026, time.April, 1, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()
	plan := f.createDueToday(t, 12)
	f.gateway.script = []orderbook.Result{{Success: true, ReferenceID: "OB-1001"}}

	logs, err := f.scheduler.ProcessToday(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	entry := logs[0]
	if entry.Status != models.ExecutionStatusSuccess || entry.InstallmentNo != 1 {
		t.Fatalf("log = %+v", entry)
	}
	if entry.ReferenceID == nil || *entry.ReferenceID != "OB-1001" {
		t.Fatalf("reference id not recorded: %v", entry.ReferenceID)
	}

	updated, _ := f.store.GetPlanByID(ctx, plan.ID)
	if updated.ExecutedInstallments != 1 {
		t.Fatalf("installments = %d, want 1", updated.ExecutedInstallments)
	}
	want := AddMonthsClamped(plan.StartDate, 1)
	if updated.NextExecutionDate == nil || !updated.NextExecutionDate.Equal(want) {
		t.Fatalf("next = %v, want %s", updated.NextExecutionDate, want.Format("2006-01-02"))
	}
}

func TestSingleInstallmentPlanClosesOnSuccess(t *testing.T) {
	now := time.Date(2026, time.April, 1, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()
	plan := f.createDueToday(t, 1)
	f.gateway.script = []orderbook.Result{{Success: true, ReferenceID: "OB-0001"}}

	logs, err := f.scheduler.ProcessToday(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != models.ExecutionStatusSuccess {
		t.Fatalf("logs = %+v", logs)
	}
	updated, _ := f.store.GetPlanByID(ctx, plan.ID)
	if updated.Status != models.PlanStatusClosed || updated.ExecutedInstallments != 1 {
		t.Fatalf("plan = status %q executed %d, want closed/1", updated.Status, updated.ExecutedInstallments)
	}
	if updated.NextExecutionDate != nil {
		t.Fatalf("closed plan kept a due date")
	}
}

func TestProcessScheduledPlansSkipsNonDue(t *testing.T) {
	now := time.Date(2026, time.April, 1, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()

	// Due tomorrow, not today.
	in := sipInput(date(2026, time.April, 2))
	plan, err := f.lifecycle.CreatePlan(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	logs, err := f.scheduler.ProcessToday(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 0 || len(f.gateway.requests) != 0 {
		t.Fatalf("non-due plan attempted: logs=%d requests=%d", len(logs), len(f.gateway.requests))
	}
	updated, _ := f.store.GetPlanByID(ctx, plan.ID)
	if updated.ExecutedInstallments != 0 {
		t.Fatalf("plan advanced without being due")
	}
}

func TestFailureBeforeCutoffLogsRetrying(t *testing.T) {
	now := time.Date(2026, time.April, 1, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()
	plan := f.createDueToday(t, 12)
	f.gateway.script = []orderbook.Result{{Success: false, Reason: "Insufficient funds"}}

	logs, err := f.scheduler.ProcessToday(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != models.ExecutionStatusRetrying {
		t.Fatalf("logs = %+v, want one retrying entry", logs)
	}
	if logs[0].RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", logs[0].RetryCount)
	}

	updated, _ := f.store.GetPlanByID(ctx, plan.ID)
	if updated.Status != models.PlanStatusActive || updated.RetryCount != 1 {
		t.Fatalf("plan after failure: status=%q retry=%d", updated.Status, updated.RetryCount)
	}
	// Due date stays put so the retry sweep can find it.
	if updated.NextExecutionDate == nil || !SameDate(*updated.NextExecutionDate, DateOnly(now, time.UTC)) {
		t.Fatalf("due date moved: %v", updated.NextExecutionDate)
	}
}

func TestRetryWindowGating(t *testing.T) {
	now := time.Date(2026, time.April, 1, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()
	plan := f.createDueToday(t, 12)
	f.gateway.script = []orderbook.Result{
		{Success: false, Reason: "Insufficient funds"},
		{Success: true, ReferenceID: "OB-2001"},
	}

	if _, err := f.scheduler.ProcessToday(ctx); err != nil {
		t.Fatalf("morning run: %v", err)
	}

	// 12:59 is before the first retry window (13:00); nothing happens.
	f.now = time.Date(2026, time.April, 1, 12, 59, 0, 0, time.UTC)
	logs, err := f.scheduler.RetryFailedExecutions(ctx)
	if err != nil {
		t.Fatalf("early sweep: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("retry fired before its window")
	}

	// 13:05 is inside the first window; the retry succeeds.
	f.now = time.Date(2026, time.April, 1, 13, 5, 0, 0, time.UTC)
	logs, err = f.scheduler.RetryFailedExecutions(ctx)
	if err != nil {
		t.Fatalf("window sweep: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != models.ExecutionStatusSuccess {
		t.Fatalf("logs = %+v, want one success", logs)
	}

	updated, _ := f.store.GetPlanByID(ctx, plan.ID)
	if updated.ExecutedInstallments != 1 || updated.RetryCount != 0 {
		t.Fatalf("plan after retry success: %+v", updated)
	}
}

func TestSecondRetryWindow(t *testing.T) {
	now := time.Date(2026, time.April, 1, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()
	f.createDueToday(t, 12)
	f.gateway.script = []orderbook.Result{
		{Success: false, Reason: "Insufficient funds"},
		{Success: false, Reason: "Insufficient funds"},
		{Success: true, ReferenceID: "OB-3001"},
	}

	if _, err := f.scheduler.ProcessToday(ctx); err != nil {
		t.Fatalf("morning run: %v", err)
	}
	f.now = time.Date(2026, time.April, 1, 13, 5, 0, 0, time.UTC)
	if _, err := f.scheduler.RetryFailedExecutions(ctx); err != nil {
		t.Fatalf("first retry: %v", err)
	}

	// Two failures recorded: the second window opens at 14:00, not 13:30.
	f.now = time.Date(2026, time.April, 1, 13, 30, 0, 0, time.UTC)
	logs, err := f.scheduler.RetryFailedExecutions(ctx)
	if err != nil {
		t.Fatalf("between-windows sweep: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("second retry fired before 14:00")
	}

	f.now = time.Date(2026, time.April, 1, 14, 10, 0, 0, time.UTC)
	logs, err = f.scheduler.RetryFailedExecutions(ctx)
	if err != nil {
		t.Fatalf("second window sweep: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != models.ExecutionStatusSuccess {
		t.Fatalf("logs = %+v, want one success", logs)
	}
}

func TestRetrySweepNoopAtCutoff(t *testing.T) {
	now := time.Date(2026, time.April, 1, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()
	f.createDueToday(t, 12)
	f.gateway.script = []orderbook.Result{{Success: false, Reason: "Insufficient funds"}}

	if _, err := f.scheduler.ProcessToday(ctx); err != nil {
		t.Fatalf("morning run: %v", err)
	}

	f.now = time.Date(2026, time.April, 1, 15, 0, 0, 0, time.UTC)
	logs, err := f.scheduler.RetryFailedExecutions(ctx)
	if err != nil {
		t.Fatalf("cutoff sweep: %v", err)
	}
	if logs != nil {
		t.Fatalf("sweep at cut-off must be a no-op, got %+v", logs)
	}
	if len(f.gateway.requests) != 1 {
		t.Fatalf("gateway called past cut-off")
	}
}

func TestRetriesExhaustedMarksPlanFailed(t *testing.T) {
	now := time.Date(2026, time.April, 1, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()
	plan := f.createDueToday(t, 12)
	f.gateway.script = []orderbook.Result{
		{Success: false, Reason: "Insufficient funds"},
		{Success: false, Reason: "Insufficient funds"},
		{Success: false, Reason: "Insufficient funds"},
	}

	if _, err := f.scheduler.ProcessToday(ctx); err != nil {
		t.Fatalf("morning run: %v", err)
	}
	f.now = time.Date(2026, time.April, 1, 13, 5, 0, 0, time.UTC)
	if _, err := f.scheduler.RetryFailedExecutions(ctx); err != nil {
		t.Fatalf("first retry: %v", err)
	}
	f.now = time.Date(2026, time.April, 1, 14, 5, 0, 0, time.UTC)
	logs, err := f.scheduler.RetryFailedExecutions(ctx)
	if err != nil {
		t.Fatalf("second retry: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != models.ExecutionStatusFailed {
		t.Fatalf("final attempt log = %+v, want failed", logs)
	}

	updated, _ := f.store.GetPlanByID(ctx, plan.ID)
	if updated.Status != models.PlanStatusFailed || updated.RetryCount != 3 {
		t.Fatalf("plan = status %q retry %d, want failed/3", updated.Status, updated.RetryCount)
	}
	if updated.NextExecutionDate != nil {
		t.Fatalf("failed plan kept a due date")
	}

	// A failed plan never re-enters a sweep.
	f.now = time.Date(2026, time.April, 1, 14, 30, 0, 0, time.UTC)
	logs, err = f.scheduler.RetryFailedExecutions(ctx)
	if err != nil {
		t.Fatalf("post-failure sweep: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("failed plan was re-attempted")
	}
}

func TestTransportErrorCountsAsFailure(t *testing.T) {
	now := time.Date(2026, time.April, 1, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()
	plan := f.createDueToday(t, 12)
	f.gateway.errs = []error{errors.New("connection refused")}

	logs, err := f.scheduler.ProcessToday(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != models.ExecutionStatusRetrying {
		t.Fatalf("logs = %+v", logs)
	}
	if logs[0].FailureReason == nil || *logs[0].FailureReason != "connection refused" {
		t.Fatalf("transport error not recorded: %v", logs[0].FailureReason)
	}
	updated, _ := f.store.GetPlanByID(ctx, plan.ID)
	if updated.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", updated.RetryCount)
	}
}

func TestPerPlanIsolation(t *testing.T) {
	now := time.Date(2026, time.April, 1, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()
	f.createDueToday(t, 12)
	f.createDueToday(t, 12)
	// Due-list order is by plan id; script one failure and one success in
	// whichever order the plans come back.
	f.gateway.script = []orderbook.Result{
		{Success: false, Reason: "Insufficient funds"},
		{Success: true, ReferenceID: "OB-4001"},
	}

	logs, err := f.scheduler.ProcessToday(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d logs, want 2", len(logs))
	}
	statuses := map[string]int{}
	for _, l := range logs {
		statuses[l.Status]++
	}
	if statuses[models.ExecutionStatusRetrying] != 1 || statuses[models.ExecutionStatusSuccess] != 1 {
		t.Fatalf("statuses = %v", statuses)
	}
	// Both plans were attempted despite the first outcome being a failure.
	if len(f.gateway.requests) != 2 {
		t.Fatalf("gateway requests = %d, want 2", len(f.gateway.requests))
	}
}

func TestDueDateRollsByPlanDay(t *testing.T) {
	// A plan started on the 31st executes on the clamped month-end until a
	// longer month restores the 31st.
	now := time.Date(2026, time.January, 31, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()

	in := sipInput(date(2026, time.January, 31))
	in.Installments = 4
	in.SkipDateValidation = true
	plan, err := f.lifecycle.CreatePlan(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	dues := []time.Time{
		date(2026, time.February, 28),
		date(2026, time.March, 31),
		date(2026, time.April, 30),
	}
	if _, err := f.scheduler.ProcessToday(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	for i, want := range dues {
		got, _ := f.store.GetPlanByID(ctx, plan.ID)
		if got.NextExecutionDate == nil || !got.NextExecutionDate.Equal(want) {
			t.Fatalf("installment %d: next = %v, want %s", i+1, got.NextExecutionDate, want.Format("2006-01-02"))
		}
		f.now = want.Add(9 * time.Hour)
		if _, err := f.scheduler.ProcessToday(ctx); err != nil {
			t.Fatalf("run %d: %v", i+2, err)
		}
	}
	final, _ := f.store.GetPlanByID(ctx, plan.ID)
	if final.Status != models.PlanStatusClosed {
		t.Fatalf("status = %q, want closed after all installments", final.Status)
	}
}

func TestExecutionRequestPayload(t *testing.T) {
	now := time.Date(2026, time.April, 1, 9, 30, 0, 0, time.UTC)
	f := newSchedulerFixture(now)
	ctx := context.Background()

	in := CreatePlanInput{
		PlanType:           models.PlanTypeSTP,
		ClientID:           "CL-9",
		SourceSchemeID:     "DEBT-LIQUID",
		TargetSchemeID:     "EQ-MIDCAP",
		Amount:             decimal.NewFromInt(25000),
		Frequency:          models.FrequencyMonthly,
		StartDate:          DateOnly(now, time.UTC),
		Installments:       6,
		SkipDateValidation: true,
	}
	if _, err := f.lifecycle.CreatePlan(ctx, in); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.scheduler.ProcessToday(ctx); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.gateway.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(f.gateway.requests))
	}
	req := f.gateway.requests[0]
	if req.PlanType != models.PlanTypeSTP || req.ClientID != "CL-9" {
		t.Fatalf("request = %+v", req)
	}
	if req.SourceSchemeID != "DEBT-LIQUID" || req.TargetSchemeID != "EQ-MIDCAP" || req.SchemeID != "" {
		t.Fatalf("scheme routing wrong: %+v", req)
	}
	if req.InstallmentNo != 1 || req.ExecutionDate != "2026-04-01" {
		t.Fatalf("installment/date wrong: %+v", req)
	}
	if !req.Amount.Equal(decimal.NewFromInt(25000)) {
		t.Fatalf("amount = %s", req.Amount)
	}
}
