package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Scheme is a product-catalog entry plans invest into, transfer between
// or withdraw from.
type Scheme struct {
	ID       string `gorm:"primaryKey;type:varchar(40)"`
	Name     string `gorm:"type:varchar(120);not null"`
	Category string `gorm:"type:varchar(30);not null;index"`

	NAV       decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	RiskGrade string          `gorm:"type:varchar(20)"`
	Active    bool            `gorm:"not null;default:true;index"`

	Metadata datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Scheme) TableName() string {
	return "schemes"
}
