package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/YeLlowseaG/clientseeker/internal/testdb"
	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	"github.com/YeLlowseaG/clientseeker/pkg/pagination"
)

func newOrder(orderNo string, user uuid.UUID, createdAt time.Time) *models.Order {
	return &models.Order{
		OrderNo:     orderNo,
		UserUUID:    user,
		UserEmail:   "buyer@example.com",
		ProductID:   "starter",
		ProductName: "Starter",
		Credits:     100,
		ValidMonths: 1,
		Amount:      decimal.RequireFromString("9.90"),
		Currency:    "USD",
		Status:      enums.OrderStatusPending,
		CreatedAt:   createdAt.UTC(),
	}
}

func TestMarkPaidIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testdb.Open(t))
	require.NoError(t, repo.Create(ctx, newOrder("CS1", uuid.New(), time.Now())))

	input := MarkPaidInput{
		OrderNo:         "CS1",
		PaidAt:          time.Now(),
		Provider:        enums.PaymentProviderPayPal,
		ProviderOrderID: "PP-1",
		PaidDetail:      datatypes.JSON(`{"status":"COMPLETED"}`),
	}
	changed, err := repo.MarkPaid(ctx, input)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = repo.MarkPaid(ctx, input)
	require.NoError(t, err)
	require.False(t, changed, "second settlement must not transition again")

	order, err := repo.FindByOrderNo(ctx, "CS1")
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaidAt)
	require.Equal(t, "PP-1", *order.ProviderOrderID)

	changed, err = repo.MarkFailed(ctx, "CS1")
	require.NoError(t, err)
	require.False(t, changed, "paid orders never fail")

	changed, err = repo.MarkCompleted(ctx, "CS1")
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = repo.MarkCompleted(ctx, "CS1")
	require.NoError(t, err)
	require.False(t, changed)
}

func TestMarkCompletedRequiresPaid(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testdb.Open(t))
	require.NoError(t, repo.Create(ctx, newOrder("CS2", uuid.New(), time.Now())))

	changed, err := repo.MarkCompleted(ctx, "CS2")
	require.NoError(t, err)
	require.False(t, changed)
}

func TestCreateRejectsDuplicateOrderNo(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testdb.Open(t))
	require.NoError(t, repo.Create(ctx, newOrder("CS3", uuid.New(), time.Now())))
	require.Error(t, repo.Create(ctx, newOrder("CS3", uuid.New(), time.Now())))
}

func TestFindByOrderNoMissing(t *testing.T) {
	repo := NewRepository(testdb.Open(t))
	order, err := repo.FindByOrderNo(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, order)
}

func TestAttachProviderOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testdb.Open(t))
	require.NoError(t, repo.Create(ctx, newOrder("CS4", uuid.New(), time.Now())))

	require.NoError(t, repo.AttachProviderOrder(ctx, "CS4", enums.PaymentProviderStripe, "cs_test_1"))
	order, err := repo.FindByOrderNo(ctx, "CS4")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentProviderStripe, *order.Provider)
	require.Equal(t, "cs_test_1", *order.ProviderOrderID)
	require.Equal(t, enums.OrderStatusPending, order.Status)
}

func TestListByUserPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testdb.Open(t))
	user := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i, no := range []string{"CS10", "CS11", "CS12"} {
		require.NoError(t, repo.Create(ctx, newOrder(no, user, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Create(ctx, newOrder("CS99", uuid.New(), base)))

	rows, err := repo.ListByUser(ctx, user, pagination.Params{Limit: 2})
	require.NoError(t, err)
	page := pagination.BuildPage(rows, 2, cursorOf)
	require.Len(t, page.Items, 2)
	require.Equal(t, "CS12", page.Items[0].OrderNo)
	require.Equal(t, "CS11", page.Items[1].OrderNo)
	require.NotEmpty(t, page.NextCursor)

	rows, err = repo.ListByUser(ctx, user, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	page = pagination.BuildPage(rows, 2, cursorOf)
	require.Len(t, page.Items, 1)
	require.Equal(t, "CS10", page.Items[0].OrderNo)
	require.Empty(t, page.NextCursor)
}

func TestFindStalePending(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testdb.Open(t))
	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, newOrder("CS-old", uuid.New(), now.Add(-72*time.Hour))))
	require.NoError(t, repo.Create(ctx, newOrder("CS-new", uuid.New(), now.Add(-time.Hour))))

	rows, err := repo.FindStalePending(ctx, now.Add(-48*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "CS-old", rows[0].OrderNo)
}
