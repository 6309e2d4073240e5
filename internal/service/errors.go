package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrPlanNotFound = errors.New("plan not found")
)

// ValidationError reports malformed creation or modification input. The
// request is rejected before anything is persisted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidStateError reports an operation against a plan whose current
// status forbids it. The plan is left unchanged.
type InvalidStateError struct {
	Op     string
	Status string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a plan in status %q", e.Op, e.Status)
}

// ScheduledTodayError rejects modification of a plan that is due today:
// mutating a plan mid-execution-window would race the scheduler.
type ScheduledTodayError struct {
	Date time.Time
}

func (e *ScheduledTodayError) Error() string {
	return fmt.Sprintf("plan is scheduled for execution on %s; modify after the execution window", e.Date.Format("2006-01-02"))
}

// AlreadyTerminalError rejects cancellation of a closed or cancelled
// plan.
type AlreadyTerminalError struct {
	Status string
}

func (e *AlreadyTerminalError) Error() string {
	return fmt.Sprintf("plan is already terminal (%s)", e.Status)
}
