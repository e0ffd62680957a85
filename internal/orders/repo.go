package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/internal/repo"
	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	"github.com/YeLlowseaG/clientseeker/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByOrderNo(ctx context.Context, orderNo string) (*models.Order, error)
	AttachProviderOrder(ctx context.Context, orderNo string, provider enums.PaymentProvider, providerOrderID string) error
	MarkPaid(ctx context.Context, input MarkPaidInput) (bool, error)
	MarkCompleted(ctx context.Context, orderNo string) (bool, error)
	MarkFailed(ctx context.Context, orderNo string) (bool, error)
	ListByUser(ctx context.Context, userUUID uuid.UUID, params pagination.Params) ([]models.Order, error)
	FindStalePending(ctx context.Context, before time.Time, limit int) ([]models.Order, error)
}

// MarkPaidInput carries the provider confirmation recorded on settlement.
type MarkPaidInput struct {
	OrderNo         string
	PaidAt          time.Time
	Provider        enums.PaymentProvider
	ProviderOrderID string
	PaidDetail      datatypes.JSON
}

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.Tx(tx)}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Create(order).Error
}

func (r *repository) FindByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	return repo.First[models.Order](r.DB(ctx).Where("order_no = ?", orderNo))
}

func (r *repository) AttachProviderOrder(ctx context.Context, orderNo string, provider enums.PaymentProvider, providerOrderID string) error {
	return r.DB(ctx).
		Model(&models.Order{}).
		Where("order_no = ? AND status = ?", orderNo, enums.OrderStatusPending).
		Updates(map[string]any{
			"provider":          provider,
			"provider_order_id": providerOrderID,
			"updated_at":        time.Now().UTC(),
		}).Error
}

// MarkPaid moves a pending order to paid. It reports false when the order was
// not pending, meaning another caller already settled it.
func (r *repository) MarkPaid(ctx context.Context, input MarkPaidInput) (bool, error) {
	updates := map[string]any{
		"status":     enums.OrderStatusPaid,
		"paid_at":    input.PaidAt.UTC(),
		"provider":   input.Provider,
		"updated_at": time.Now().UTC(),
	}
	if input.ProviderOrderID != "" {
		updates["provider_order_id"] = input.ProviderOrderID
	}
	if len(input.PaidDetail) > 0 {
		updates["paid_detail"] = input.PaidDetail
	}
	return r.transition(ctx, input.OrderNo, enums.OrderStatusPending, updates)
}

func (r *repository) MarkCompleted(ctx context.Context, orderNo string) (bool, error) {
	return r.transition(ctx, orderNo, enums.OrderStatusPaid, map[string]any{
		"status":     enums.OrderStatusCompleted,
		"updated_at": time.Now().UTC(),
	})
}

func (r *repository) MarkFailed(ctx context.Context, orderNo string) (bool, error) {
	return r.transition(ctx, orderNo, enums.OrderStatusPending, map[string]any{
		"status":     enums.OrderStatusFailed,
		"updated_at": time.Now().UTC(),
	})
}

func (r *repository) transition(ctx context.Context, orderNo string, from enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Order{}).
		Where("order_no = ? AND status = ?", orderNo, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByUser(ctx context.Context, userUUID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	query := r.DB(ctx).Where("user_uuid = ?", userUUID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Order
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindStalePending(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []models.Order
	err := r.DB(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, before.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
