package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Execution log statuses. "retrying" means the attempt failed but the
// plan is still eligible for a later retry the same business day.
const (
	ExecutionStatusSuccess  = "success"
	ExecutionStatusFailed   = "failed"
	ExecutionStatusRetrying = "retrying"
)

// ExecutionLog is one row per gateway attempt. Rows are append-only and
// feed audit/reporting; the scheduler never reads them back.
type ExecutionLog struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	PlanID string `gorm:"type:varchar(44);not null;index"`

	ExecutionDate time.Time `gorm:"type:date;not null;index"`
	AttemptedAt   time.Time `gorm:"type:timestamptz;not null"`

	Status        string          `gorm:"type:varchar(10);not null;index"`
	InstallmentNo int             `gorm:"not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	RetryCount    int             `gorm:"not null"`

	ReferenceID   *string `gorm:"type:varchar(64)"`
	FailureReason *string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (ExecutionLog) TableName() string {
	return "execution_logs"
}
