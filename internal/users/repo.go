package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/internal/repo"
	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.Tx(tx)}
}

// FindByUUID loads a user by the identity-provider uuid. Missing users return nil.
func (r *Repository) FindByUUID(ctx context.Context, userUUID uuid.UUID) (*models.User, error) {
	return repo.First[models.User](r.DB(ctx).Where("uuid = ?", userUUID))
}

// FindByEmail retrieves the user matching the provided email. Missing users return nil.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return repo.First[models.User](r.DB(ctx).Where("email = ?", NormalizeEmail(email)))
}

// EnsureByEmail inserts the user when the uuid is unknown and returns the stored row.
// A uuid already registered under a different email keeps its stored email.
func (r *Repository) EnsureByEmail(ctx context.Context, userUUID uuid.UUID, email string) (*models.User, error) {
	email = NormalizeEmail(email)
	if userUUID == uuid.Nil || email == "" {
		return nil, fmt.Errorf("user uuid and email are required")
	}
	row := &models.User{UUID: userUUID, Email: email}
	if _, err := repo.InsertIgnore(ctx, r.DB(ctx), row, "uuid"); err != nil {
		return nil, err
	}
	return r.FindByUUID(ctx, userUUID)
}

// Touch bumps updated_at for the user. Inside a transaction on Postgres this
// holds the row lock until commit, serializing per-user balance changes.
// It reports whether the user exists.
func (r *Repository) Touch(ctx context.Context, userUUID uuid.UUID, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.User{}).
		Where("uuid = ?", userUUID).
		UpdateColumn("updated_at", at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Lock touches the user row through tx so concurrent balance changes for the
// same user queue behind each other. It reports whether the user exists.
func (r *Repository) Lock(ctx context.Context, tx *gorm.DB, userUUID uuid.UUID) (bool, error) {
	return r.WithTx(tx).Touch(ctx, userUUID, time.Now())
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
