package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan statuses. Transitions are one-directional: active may become
// closed, cancelled or failed; no terminal status ever reverts.
const (
	PlanStatusActive    = "active"
	PlanStatusClosed    = "closed"
	PlanStatusCancelled = "cancelled"
	PlanStatusFailed    = "failed"
)

const (
	PlanTypeSIP = "SIP"
	PlanTypeSTP = "STP"
	PlanTypeSWP = "SWP"
)

const (
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
)

// Plan is a standing SIP/STP/SWP instruction: a recurring amount executed
// against one scheme (SIP/SWP) or between two schemes (STP) on a monthly
// or quarterly cadence until the contracted installments complete.
//
// StartDate and NextExecutionDate are calendar dates stored at midnight
// UTC; NextExecutionDate is set exactly while the plan is active.
type Plan struct {
	ID       string `gorm:"primaryKey;type:varchar(44)"`
	PlanType string `gorm:"type:varchar(3);not null;index"`
	ClientID string `gorm:"type:varchar(40);not null;index"`

	SchemeID       *string `gorm:"type:varchar(40)"`
	SourceSchemeID *string `gorm:"type:varchar(40)"`
	TargetSchemeID *string `gorm:"type:varchar(40)"`

	Amount       decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Frequency    string          `gorm:"type:varchar(10);not null"`
	StartDate    time.Time       `gorm:"type:date;not null"`
	Installments int             `gorm:"not null"`

	ExecutedInstallments int    `gorm:"not null;default:0"`
	Status               string `gorm:"type:varchar(10);not null;default:'active';index:idx_plans_due,priority:1"`
	NextExecutionDate    *time.Time `gorm:"type:date;index:idx_plans_due,priority:2"`
	LastExecutionDate    *time.Time `gorm:"type:timestamptz"`

	RetryCount    int     `gorm:"not null;default:0"`
	MaxRetries    int     `gorm:"not null;default:3"`
	FailureReason *string `gorm:"type:varchar(255)"`

	CancelledAt     *time.Time `gorm:"type:timestamptz"`
	CancelledReason *string    `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Plan) TableName() string {
	return "plans"
}

func (p *Plan) IsTerminal() bool {
	switch p.Status {
	case PlanStatusClosed, PlanStatusCancelled, PlanStatusFailed:
		return true
	}
	return false
}
