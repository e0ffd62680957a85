package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/pkg/enums"
)

// Order snapshots a purchase attempt. Product fields are copied at checkout so
// later catalog changes never alter what was sold.
type Order struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNo         string                 `gorm:"column:order_no;not null;uniqueIndex"`
	UserUUID        uuid.UUID              `gorm:"column:user_uuid;type:uuid;not null;index"`
	UserEmail       string                 `gorm:"column:user_email;not null"`
	ProductID       string                 `gorm:"column:product_id;not null"`
	ProductName     string                 `gorm:"column:product_name;not null"`
	Credits         int64                  `gorm:"column:credits;not null"`
	ValidMonths     int                    `gorm:"column:valid_months;not null"`
	Amount          decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        string                 `gorm:"column:currency;not null;default:'USD'"`
	Status          enums.OrderStatus      `gorm:"column:status;not null;default:'pending'"`
	Provider        *enums.PaymentProvider `gorm:"column:provider"`
	ProviderOrderID *string                `gorm:"column:provider_order_id"`
	PaidAt          *time.Time             `gorm:"column:paid_at"`
	PaidDetail      datatypes.JSON         `gorm:"column:paid_detail;type:jsonb"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
