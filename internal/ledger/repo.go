package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/internal/repo"
	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/pagination"
)

// Repository manages persistence for credit ledger entries. Entries are never
// updated or deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, entry *models.CreditEntry) (bool, error)
	FindByTransNo(ctx context.Context, transNo string) (*models.CreditEntry, error)
	ListByTransNoFamily(ctx context.Context, transNo string) ([]models.CreditEntry, error)
	Buckets(ctx context.Context, userUUID uuid.UUID, now time.Time) ([]Bucket, error)
	Balance(ctx context.Context, userUUID uuid.UUID, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userUUID uuid.UUID, params pagination.Params) ([]models.CreditEntry, error)
}

// Bucket is the live credit total sharing one expiry. A nil ExpiredAt never lapses.
type Bucket struct {
	ExpiredAt *time.Time
	Credits   int64
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.Tx(tx)}
}

// Insert appends entry unless its trans_no is already taken.
func (r *repository) Insert(ctx context.Context, entry *models.CreditEntry) (bool, error) {
	return repo.InsertIgnore(ctx, r.DB(ctx), entry, "trans_no")
}

func (r *repository) FindByTransNo(ctx context.Context, transNo string) (*models.CreditEntry, error) {
	return repo.First[models.CreditEntry](r.DB(ctx).Where("trans_no = ?", transNo))
}

// ListByTransNoFamily returns transNo and its numbered slices ("<transNo>:<n>").
func (r *repository) ListByTransNoFamily(ctx context.Context, transNo string) ([]models.CreditEntry, error) {
	var rows []models.CreditEntry
	err := r.DB(ctx).
		Where("trans_no = ? OR trans_no LIKE ?", transNo, transNo+":%").
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Buckets(ctx context.Context, userUUID uuid.UUID, now time.Time) ([]Bucket, error) {
	var rows []struct {
		ExpiredAt *time.Time
		Credits   int64
	}
	err := r.DB(ctx).
		Model(&models.CreditEntry{}).
		Select("expired_at, SUM(credits) AS credits").
		Where("user_uuid = ?", userUUID).
		Where("(expired_at IS NULL OR expired_at > ?)", now.UTC()).
		Group("expired_at").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	buckets := make([]Bucket, 0, len(rows))
	for _, row := range rows {
		if row.Credits == 0 {
			continue
		}
		buckets = append(buckets, Bucket{ExpiredAt: row.ExpiredAt, Credits: row.Credits})
	}
	sortBuckets(buckets)
	return buckets, nil
}

func (r *repository) Balance(ctx context.Context, userUUID uuid.UUID, now time.Time) (int64, error) {
	var total int64
	err := r.DB(ctx).
		Model(&models.CreditEntry{}).
		Select("COALESCE(SUM(credits), 0)").
		Where("user_uuid = ?", userUUID).
		Where("(expired_at IS NULL OR expired_at > ?)", now.UTC()).
		Scan(&total).Error
	return total, err
}

func (r *repository) ListByUser(ctx context.Context, userUUID uuid.UUID, params pagination.Params) ([]models.CreditEntry, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	query := r.DB(ctx).Where("user_uuid = ?", userUUID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.CreditEntry
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	return rows, err
}

// sortBuckets orders by soonest expiry; never-expiring credits go last.
func sortBuckets(buckets []Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		a, b := buckets[i].ExpiredAt, buckets[j].ExpiredAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
