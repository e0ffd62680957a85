package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/internal/repo"
	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
)

// Repository persists subscription periods.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) (bool, error)
	FindByOrderNo(ctx context.Context, orderNo string) (*models.Subscription, error)
	FindActiveByUser(ctx context.Context, userUUID uuid.UUID) (*models.Subscription, error)
	DeactivateActive(ctx context.Context, userUUID uuid.UUID) ([]string, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	AdjustUsage(ctx context.Context, id uuid.UUID, used int64) (bool, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.Tx(tx)}
}

// Create inserts sub unless a subscription already exists for its order_no.
func (r *repository) Create(ctx context.Context, sub *models.Subscription) (bool, error) {
	return repo.InsertIgnore(ctx, r.DB(ctx), sub, "order_no")
}

func (r *repository) FindByOrderNo(ctx context.Context, orderNo string) (*models.Subscription, error) {
	return repo.First[models.Subscription](r.DB(ctx).Where("order_no = ?", orderNo))
}

// FindActiveByUser returns the active row with the latest period_end.
func (r *repository) FindActiveByUser(ctx context.Context, userUUID uuid.UUID) (*models.Subscription, error) {
	return repo.First[models.Subscription](r.DB(ctx).
		Where("user_uuid = ? AND status = ?", userUUID, enums.SubscriptionStatusActive).
		Order("period_end DESC"))
}

// DeactivateActive flips every active row of the user to inactive and returns
// the order numbers it touched.
func (r *repository) DeactivateActive(ctx context.Context, userUUID uuid.UUID) ([]string, error) {
	var orderNos []string
	if err := r.DB(ctx).
		Model(&models.Subscription{}).
		Where("user_uuid = ? AND status = ?", userUUID, enums.SubscriptionStatusActive).
		Pluck("order_no", &orderNos).Error; err != nil {
		return nil, err
	}
	if len(orderNos) == 0 {
		return nil, nil
	}
	err := r.DB(ctx).
		Model(&models.Subscription{}).
		Where("user_uuid = ? AND status = ?", userUUID, enums.SubscriptionStatusActive).
		Updates(map[string]any{
			"status":     enums.SubscriptionStatusInactive,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return nil, err
	}
	return orderNos, nil
}

// ListDue returns active subscriptions whose period ended at or before now.
func (r *repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	query := r.DB(ctx).
		Where("status = ? AND period_end <= ?", enums.SubscriptionStatusActive, now.UTC()).
		Order("period_end ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Subscription
	return rows, query.Find(&rows).Error
}

func (r *repository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, enums.SubscriptionStatusActive).
		Updates(map[string]any{
			"status":     enums.SubscriptionStatusExpired,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AdjustUsage moves used credits from remaining to used. It refuses to drive
// credits_remaining below zero.
func (r *repository) AdjustUsage(ctx context.Context, id uuid.UUID, used int64) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND credits_remaining >= ?", id, enums.SubscriptionStatusActive, used).
		Updates(map[string]any{
			"credits_remaining": gorm.Expr("credits_remaining - ?", used),
			"credits_used":      gorm.Expr("credits_used + ?", used),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
