package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/internal/ledger"
	"github.com/YeLlowseaG/clientseeker/internal/testdb"
	"github.com/YeLlowseaG/clientseeker/internal/users"
	"github.com/YeLlowseaG/clientseeker/pkg/db"
	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
	"github.com/YeLlowseaG/clientseeker/pkg/outbox"
)

type fixture struct {
	svc    Service
	ledger ledger.Service
	repo   Repository
	conn   *gorm.DB
	tx     *db.Client
	users  *users.Repository
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testdb.Open(t)
	f := &fixture{
		repo:  NewRepository(conn),
		conn:  conn,
		tx:    db.Wrap(conn),
		users: users.NewRepository(conn),
		now:   time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(conn),
		Users:  f.users,
		Tx:     f.tx,
		Usage:  NewUsageRecorder(f.repo),
		Outbox: emitter,
		Now:    clock,
	})
	require.NoError(t, err)
	f.ledger = ledgerSvc

	svc, err := NewService(ServiceParams{
		Repo:   f.repo,
		Users:  f.users,
		Ledger: ledgerSvc,
		Tx:     f.tx,
		Outbox: emitter,
		Now:    clock,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) user(t *testing.T, email string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := f.users.EnsureByEmail(context.Background(), id, email)
	require.NoError(t, err)
	return id
}

func (f *fixture) activate(t *testing.T, order *models.Order) *Activation {
	t.Helper()
	var act *Activation
	err := f.tx.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		act, err = f.svc.ActivateFromOrder(context.Background(), tx, order)
		return err
	})
	require.NoError(t, err)
	return act
}

func paidOrder(orderNo string, user uuid.UUID, credits int64, months int) *models.Order {
	return &models.Order{
		OrderNo:     orderNo,
		UserUUID:    user,
		ProductID:   "starter",
		ProductName: "Starter",
		Credits:     credits,
		ValidMonths: months,
		Amount:      decimal.RequireFromString("9.90"),
		Currency:    "USD",
		Status:      enums.OrderStatusPaid,
	}
}

func countActive(t *testing.T, conn *gorm.DB, user uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.Subscription{}).
		Where("user_uuid = ? AND status = ?", user, enums.SubscriptionStatusActive).Count(&n).Error)
	return n
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestActivateFromOrderOpensPeriod(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "a@example.com")

	act := f.activate(t, paidOrder("ORD-1", user, 100, 1))
	require.True(t, act.Created)
	sub := act.Subscription
	require.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	require.Equal(t, int64(100), sub.CreditsTotal)
	require.Equal(t, int64(100), sub.CreditsRemaining)
	require.Equal(t, int64(0), sub.CreditsUsed)
	require.True(t, sub.PeriodEnd.Equal(f.now.AddDate(0, 1, 0)))

	active, err := f.svc.GetUserActive(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, "ORD-1", active.OrderNo)
}

func TestActivateFromOrderIsIdempotent(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "b@example.com")

	first := f.activate(t, paidOrder("ORD-1", user, 100, 1))
	f.now = f.now.Add(time.Hour)
	second := f.activate(t, paidOrder("ORD-1", user, 100, 1))
	require.False(t, second.Created)
	require.Equal(t, first.Subscription.ID, second.Subscription.ID)

	var rows int64
	require.NoError(t, f.conn.Model(&models.Subscription{}).Count(&rows).Error)
	require.Equal(t, int64(1), rows)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventSubscriptionActivated).Count(&events).Error)
	require.Equal(t, int64(1), events)
}

func TestActivateFromOrderSupersedesPriorActive(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "c@example.com")

	f.activate(t, paidOrder("ORD-1", user, 100, 1))
	f.now = f.now.Add(24 * time.Hour)
	act := f.activate(t, paidOrder("ORD-2", user, 500, 12))
	require.Equal(t, []string{"ORD-1"}, act.Superseded)
	require.Equal(t, int64(1), countActive(t, f.conn, user))

	prior, err := f.repo.FindByOrderNo(context.Background(), "ORD-1")
	require.NoError(t, err)
	require.Equal(t, enums.SubscriptionStatusInactive, prior.Status)

	// replaying the superseded order never revives it
	again := f.activate(t, paidOrder("ORD-1", user, 100, 1))
	require.False(t, again.Created)
	require.Equal(t, int64(1), countActive(t, f.conn, user))
}

func TestActivateFromOrderRejectsEmptyAllowance(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "d@example.com")
	err := f.tx.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := f.svc.ActivateFromOrder(context.Background(), tx, paidOrder("ORD-0", user, 0, 1))
		return err
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStatusPayloads(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "Status@Example.com")

	status, err := f.svc.Status(context.Background(), user)
	require.NoError(t, err)
	require.False(t, status.HasActiveSubscription)
	require.Equal(t, StatusNone, status.Status)
	require.Nil(t, status.PeriodEnd)

	f.activate(t, paidOrder("ORD-1", user, 100, 1))
	status, err = f.svc.StatusByEmail(context.Background(), " status@example.com ")
	require.NoError(t, err)
	require.True(t, status.HasActiveSubscription)
	require.Equal(t, "starter", status.ProductID)
	require.Equal(t, int64(100), status.CreditsRemaining)
	require.Equal(t, "active", status.Status)

	_, err = f.svc.StatusByEmail(context.Background(), "nobody@example.com")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.svc.StatusByEmail(context.Background(), "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRecordUsageTracksConsumption(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "e@example.com")
	act := f.activate(t, paidOrder("ORD-1", user, 10, 1))
	end := act.Subscription.PeriodEnd
	err := f.tx.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := f.ledger.Grant(context.Background(), tx, ledger.GrantInput{
			UserUUID: user, TransNo: "ORD-1:grant", TransType: enums.CreditTransOrderPay, Credits: 10, ExpiredAt: &end,
		})
		return err
	})
	require.NoError(t, err)
	_, err = f.ledger.AdminGrant(context.Background(), ledger.AdminGrantInput{UserUUID: user, Credits: 5, Reference: "bonus-1"})
	require.NoError(t, err)

	_, err = f.ledger.Consume(context.Background(), ledger.ConsumeInput{UserUUID: user, Credits: 12, RequestID: "search-1"})
	require.NoError(t, err)

	sub, err := f.svc.GetUserActive(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, int64(0), sub.CreditsRemaining)
	require.Equal(t, int64(10), sub.CreditsUsed)

	balance, err := f.ledger.Balance(context.Background(), user, f.now)
	require.NoError(t, err)
	require.Equal(t, int64(3), balance)
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "f@example.com")
	other := f.user(t, "g@example.com")
	f.activate(t, paidOrder("ORD-1", user, 100, 1))
	f.activate(t, paidOrder("ORD-2", other, 100, 3))

	f.now = f.now.AddDate(0, 2, 0)
	expired, err := f.svc.ExpireDue(context.Background(), f.now)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	sub, err := f.repo.FindByOrderNo(context.Background(), "ORD-1")
	require.NoError(t, err)
	require.Equal(t, enums.SubscriptionStatusExpired, sub.Status)

	var entry models.CreditEntry
	require.NoError(t, f.conn.Where("trans_no = ?", "ORD-1:expire").First(&entry).Error)
	require.Equal(t, int64(-100), entry.Credits)

	active, err := f.svc.GetUserActive(context.Background(), user)
	require.NoError(t, err)
	require.Nil(t, active)

	expired, err = f.svc.ExpireDue(context.Background(), f.now)
	require.NoError(t, err)
	require.Zero(t, expired)
}
