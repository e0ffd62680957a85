package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/pkg/enums"
)

// Subscription is one credit allowance period opened by a paid order.
type Subscription struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserUUID         uuid.UUID                `gorm:"column:user_uuid;type:uuid;not null;index"`
	OrderNo          string                   `gorm:"column:order_no;not null;uniqueIndex"`
	ProductID        string                   `gorm:"column:product_id;not null"`
	ProductName      string                   `gorm:"column:product_name;not null"`
	Status           enums.SubscriptionStatus `gorm:"column:status;not null;default:'active'"`
	PeriodStart      time.Time                `gorm:"column:period_start;not null"`
	PeriodEnd        time.Time                `gorm:"column:period_end;not null"`
	CreditsTotal     int64                    `gorm:"column:credits_total;not null"`
	CreditsRemaining int64                    `gorm:"column:credits_remaining;not null"`
	CreditsUsed      int64                    `gorm:"column:credits_used;not null;default:0"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
