package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	"github.com/YeLlowseaG/clientseeker/pkg/pagination"
)

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	OrderNo         string                 `json:"order_no"`
	UserUUID        uuid.UUID              `json:"user_uuid"`
	ProductID       string                 `json:"product_id"`
	ProductName     string                 `json:"product_name"`
	Credits         int64                  `json:"credits"`
	ValidMonths     int                    `json:"valid_months"`
	Amount          decimal.Decimal        `json:"amount"`
	Currency        string                 `json:"currency"`
	Status          enums.OrderStatus      `json:"status"`
	Provider        *enums.PaymentProvider `json:"provider,omitempty"`
	ProviderOrderID *string                `json:"provider_order_id,omitempty"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	PaidDetail      json.RawMessage        `json:"paid_detail,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// OrderList is a page of orders.
type OrderList = pagination.Page[OrderDTO]

// FromModel maps a persisted order into its API shape.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	dto := &OrderDTO{
		OrderNo:         o.OrderNo,
		UserUUID:        o.UserUUID,
		ProductID:       o.ProductID,
		ProductName:     o.ProductName,
		Credits:         o.Credits,
		ValidMonths:     o.ValidMonths,
		Amount:          o.Amount,
		Currency:        o.Currency,
		Status:          o.Status,
		Provider:        o.Provider,
		ProviderOrderID: o.ProviderOrderID,
		PaidAt:          o.PaidAt,
		CreatedAt:       o.CreatedAt,
	}
	if len(o.PaidDetail) > 0 {
		dto.PaidDetail = json.RawMessage(o.PaidDetail)
	}
	return dto
}

func cursorOf(o models.Order) pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}
