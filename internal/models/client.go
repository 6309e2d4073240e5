package models

import (
	"time"
)

// Client is a wealth-management client record owned by a relationship
// manager.
type Client struct {
	ID    string `gorm:"primaryKey;type:varchar(40)"`
	Name  string `gorm:"type:varchar(120);not null"`
	Email string `gorm:"type:varchar(120)"`
	Phone string `gorm:"type:varchar(20)"`
	PAN   string `gorm:"type:varchar(10)"`

	RelationshipManager string `gorm:"type:varchar(40);index"`
	KYCVerified         bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Client) TableName() string {
	return "clients"
}
