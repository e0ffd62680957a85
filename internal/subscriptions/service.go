package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/internal/ledger"
	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
	"github.com/YeLlowseaG/clientseeker/pkg/outbox"
)

const expireBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type userLocker interface {
	Lock(ctx context.Context, tx *gorm.DB, userUUID uuid.UUID) (bool, error)
}

type userStore interface {
	userFinder
	userLocker
}

type expiryRecorder interface {
	RecordExpiry(ctx context.Context, tx *gorm.DB, input ledger.ExpiryInput) (bool, error)
}

// Service defines the subscription lifecycle surface.
type Service interface {
	ActivateFromOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*Activation, error)
	GetUserActive(ctx context.Context, userUUID uuid.UUID) (*models.Subscription, error)
	Status(ctx context.Context, userUUID uuid.UUID) (*StatusDTO, error)
	StatusByEmail(ctx context.Context, email string) (*StatusDTO, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	RecordUsage(ctx context.Context, tx *gorm.DB, userUUID uuid.UUID, draws []ledger.UsageDraw) error
}

// Activation is the outcome of ActivateFromOrder. Created is false when the
// order had already opened its subscription.
type Activation struct {
	Subscription *models.Subscription
	Created      bool
	Superseded   []string
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo   Repository
	Users  userStore
	Ledger expiryRecorder
	Tx     txRunner
	Outbox outbox.Emitter
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	repo   Repository
	users  userStore
	ledger expiryRecorder
	tx     txRunner
	outbox outbox.Emitter
	usage  *UsageRecorder
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:   params.Repo,
		users:  params.Users,
		ledger: params.Ledger,
		tx:     params.Tx,
		outbox: params.Outbox,
		usage:  NewUsageRecorder(params.Repo),
		logg:   params.Logger,
		now:    func() time.Time { return now().UTC() },
	}, nil
}

// ActivateFromOrder opens the subscription paid for by order inside tx. Any
// subscription already opened by the same order is returned untouched; otherwise
// every active subscription of the user is superseded first.
func (s *service) ActivateFromOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*Activation, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if order == nil || strings.TrimSpace(order.OrderNo) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if order.Credits <= 0 || order.ValidMonths <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order carries no credit allowance").
			WithDetails(map[string]any{"order_no": order.OrderNo})
	}
	repo := s.repo.WithTx(tx)

	existing, err := repo.FindByOrderNo(ctx, order.OrderNo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription by order")
	}
	if existing != nil {
		return &Activation{Subscription: existing}, nil
	}

	superseded, err := repo.DeactivateActive(ctx, order.UserUUID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate prior subscriptions")
	}

	start := s.now()
	sub := &models.Subscription{
		UserUUID:         order.UserUUID,
		OrderNo:          order.OrderNo,
		ProductID:        order.ProductID,
		ProductName:      order.ProductName,
		Status:           enums.SubscriptionStatusActive,
		PeriodStart:      start,
		PeriodEnd:        start.AddDate(0, order.ValidMonths, 0),
		CreditsTotal:     order.Credits,
		CreditsRemaining: order.Credits,
		CreatedAt:        start,
		UpdatedAt:        start,
	}
	created, err := repo.Create(ctx, sub)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}
	if !created {
		// Lost a race on order_no; the winner's row stands.
		existing, err := repo.FindByOrderNo(ctx, order.OrderNo)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription by order")
		}
		return &Activation{Subscription: existing}, nil
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionActivated,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID.String(),
		Data: outbox.SubscriptionActivatedEvent{
			SubscriptionID: sub.ID.String(),
			UserUUID:       sub.UserUUID.String(),
			OrderNo:        sub.OrderNo,
			ProductID:      sub.ProductID,
			CreditsTotal:   sub.CreditsTotal,
			PeriodStart:    sub.PeriodStart,
			PeriodEnd:      sub.PeriodEnd,
			Superseded:     superseded,
		},
	}); err != nil {
		return nil, err
	}
	return &Activation{Subscription: sub, Created: true, Superseded: superseded}, nil
}

// GetUserActive returns the user's current subscription or nil.
func (s *service) GetUserActive(ctx context.Context, userUUID uuid.UUID) (*models.Subscription, error) {
	if userUUID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user uuid is required")
	}
	sub, err := s.repo.FindActiveByUser(ctx, userUUID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
	}
	return sub, nil
}

func (s *service) Status(ctx context.Context, userUUID uuid.UUID) (*StatusDTO, error) {
	sub, err := s.GetUserActive(ctx, userUUID)
	if err != nil {
		return nil, err
	}
	return StatusFromModel(sub), nil
}

// StatusByEmail serves callers without a session. Unknown emails are NotFound.
func (s *service) StatusByEmail(ctx context.Context, email string) (*StatusDTO, error) {
	if strings.TrimSpace(email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "userEmail is required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return s.Status(ctx, user.UUID)
}

// ExpireDue closes every active subscription whose period has ended. Each row
// expires in its own transaction; a failure is collected and the sweep goes on.
func (s *service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	var errs error
	for {
		due, err := s.repo.ListDue(ctx, now, expireBatchSize)
		if err != nil {
			return expired, multierr.Append(errs, fmt.Errorf("list due subscriptions: %w", err))
		}
		progressed := false
		for i := range due {
			sub := due[i]
			changed, err := s.expireOne(ctx, &sub)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expire subscription %s: %w", sub.OrderNo, err))
				continue
			}
			if changed {
				expired++
				progressed = true
			}
		}
		if len(due) < expireBatchSize || !progressed {
			return expired, errs
		}
	}
}

func (s *service) expireOne(ctx context.Context, sub *models.Subscription) (bool, error) {
	changed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.users.Lock(ctx, tx, sub.UserUUID); err != nil {
			return err
		}
		ok, err := s.repo.WithTx(tx).MarkExpired(ctx, sub.ID)
		if err != nil || !ok {
			return err
		}
		changed = true
		if _, err := s.ledger.RecordExpiry(ctx, tx, ledger.ExpiryInput{
			UserUUID:  sub.UserUUID,
			OrderNo:   sub.OrderNo,
			Credits:   sub.CreditsRemaining,
			ExpiredAt: sub.PeriodEnd,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionExpired,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID.String(),
			Data: outbox.SubscriptionExpiredEvent{
				SubscriptionID: sub.ID.String(),
				UserUUID:       sub.UserUUID.String(),
				OrderNo:        sub.OrderNo,
				CreditsLapsed:  sub.CreditsRemaining,
				PeriodEnd:      sub.PeriodEnd,
			},
		})
	})
	if err != nil {
		return false, err
	}
	if changed && s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderNo(ctx, sub.OrderNo), map[string]any{"credits_lapsed": sub.CreditsRemaining})
		s.logg.Info(logCtx, "subscription expired")
	}
	return changed, nil
}

func (s *service) RecordUsage(ctx context.Context, tx *gorm.DB, userUUID uuid.UUID, draws []ledger.UsageDraw) error {
	return s.usage.RecordUsage(ctx, tx, userUUID, draws)
}
