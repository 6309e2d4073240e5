package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ProfileKindRisk      = "risk"
	ProfileKindKnowledge = "knowledge"
)

// RiskProfile stores one submitted questionnaire. The score is computed
// upstream by the profiling calculators; this record only preserves the
// submission for the portal.
type RiskProfile struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	ClientID string `gorm:"type:varchar(40);not null;index"`
	Kind     string `gorm:"type:varchar(10);not null;index"`

	Answers  datatypes.JSON `gorm:"type:jsonb;not null"`
	Score    int            `gorm:"not null"`
	Category string         `gorm:"type:varchar(30)"`

	AssessedAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (RiskProfile) TableName() string {
	return "risk_profiles"
}
