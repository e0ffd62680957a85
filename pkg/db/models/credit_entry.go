package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/pkg/enums"
)

// CreditEntry is an append-only ledger row. Credits are signed.
type CreditEntry struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserUUID  uuid.UUID             `gorm:"column:user_uuid;type:uuid;not null;index"`
	TransNo   string                `gorm:"column:trans_no;not null;uniqueIndex"`
	TransType enums.CreditTransType `gorm:"column:trans_type;not null"`
	Credits   int64                 `gorm:"column:credits;not null"`
	OrderNo   *string               `gorm:"column:order_no"`
	ExpiredAt *time.Time            `gorm:"column:expired_at"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (CreditEntry) TableName() string { return "credit_entries" }

func (e *CreditEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
