package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/internal/testdb"
	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
)

func TestBaseDB_BindsContext(t *testing.T) {
	db := testdb.Open(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx.Statement)
	require.Equal(t, ctx, withCtx.Statement.Context)

	var noCtx context.Context
	require.Same(t, db, base.DB(noCtx))
}

func TestBaseTx(t *testing.T) {
	db := testdb.Open(t)
	base := NewBase(db)
	require.Same(t, db, base.Tx(nil).db)

	tx := db.Session(&gorm.Session{NewDB: true})
	require.Same(t, tx, base.Tx(tx).db)
}

func TestFirstReturnsNilWhenMissing(t *testing.T) {
	db := testdb.Open(t)

	got, err := First[models.User](db.Where("email = ?", "nobody@example.com"))
	require.NoError(t, err)
	require.Nil(t, got)

	user := &models.User{UUID: uuid.New(), Email: "someone@example.com"}
	require.NoError(t, db.Create(user).Error)

	got, err = First[models.User](db.Where("email = ?", "someone@example.com"))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, user.UUID, got.UUID)
}

func TestInsertIgnoreReportsCollision(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	userID := uuid.New()

	entry := func() *models.CreditEntry {
		return &models.CreditEntry{UserUUID: userID, TransNo: "CS1:grant", TransType: enums.CreditTransOrderPay, Credits: 10}
	}

	written, err := InsertIgnore(ctx, db, entry(), "trans_no")
	require.NoError(t, err)
	require.True(t, written)

	written, err = InsertIgnore(ctx, db, entry(), "trans_no")
	require.NoError(t, err)
	require.False(t, written)

	var count int64
	require.NoError(t, db.Model(&models.CreditEntry{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}
