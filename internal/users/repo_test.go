package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/YeLlowseaG/clientseeker/internal/testdb"
)

func TestEnsureByEmailIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testdb.Open(t))
	id := uuid.New()

	first, err := repo.EnsureByEmail(ctx, id, " Buyer@Example.com ")
	require.NoError(t, err)
	require.Equal(t, "buyer@example.com", first.Email)

	second, err := repo.EnsureByEmail(ctx, id, "buyer@example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	byEmail, err := repo.FindByEmail(ctx, "BUYER@example.com")
	require.NoError(t, err)
	require.Equal(t, id, byEmail.UUID)

	dto := FromModel(byEmail)
	require.Equal(t, id, dto.UUID)
	require.Nil(t, FromModel(nil))
}

func TestEnsureByEmailValidates(t *testing.T) {
	repo := NewRepository(testdb.Open(t))
	_, err := repo.EnsureByEmail(context.Background(), uuid.Nil, "x@example.com")
	require.Error(t, err)
	_, err = repo.EnsureByEmail(context.Background(), uuid.New(), "  ")
	require.Error(t, err)
}

func TestFindMissingReturnsNil(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testdb.Open(t))

	user, err := repo.FindByUUID(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, user)

	user, err = repo.FindByEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestTouch(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewRepository(db)
	id := uuid.New()

	found, err := repo.Touch(ctx, id, time.Now())
	require.NoError(t, err)
	require.False(t, found)

	_, err = repo.EnsureByEmail(ctx, id, "t@example.com")
	require.NoError(t, err)

	tx := db.Begin()
	found, err = repo.WithTx(tx).Touch(ctx, id, time.Now())
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, tx.Commit().Error)
}
