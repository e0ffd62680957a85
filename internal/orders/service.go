package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
	"github.com/YeLlowseaG/clientseeker/pkg/outbox"
	"github.com/YeLlowseaG/clientseeker/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes order reads to owners and the pending-order timeout.
type Service interface {
	Get(ctx context.Context, userUUID uuid.UUID, orderNo string) (*OrderDTO, error)
	List(ctx context.Context, userUUID uuid.UUID, params pagination.Params) (*OrderList, error)
	FailStalePending(ctx context.Context, before time.Time) (int, error)
}

type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outbox.Emitter
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
}

// NewService validates dependencies and builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, userUUID uuid.UUID, orderNo string) (*OrderDTO, error) {
	if !ValidOrderNo(orderNo) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	order, err := s.repo.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	// Another user's order is reported as missing so order numbers cannot be enumerated.
	if order == nil || order.UserUUID != userUUID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return FromModel(order), nil
}

func (s *service) List(ctx context.Context, userUUID uuid.UUID, params pagination.Params) (*OrderList, error) {
	rows, err := s.repo.ListByUser(ctx, userUUID, params)
	if err != nil {
		if _, cursorErr := pagination.ParseCursor(params.Cursor); cursorErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, cursorErr, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page := pagination.BuildPage(rows, params.Limit, cursorOf)
	items := make([]OrderDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *FromModel(&page.Items[i]))
	}
	return &OrderList{Items: items, NextCursor: page.NextCursor}, nil
}

// FailStalePending moves pending orders created before the cutoff to failed.
// Each order flips in its own transaction together with its order_failed event,
// and a capture that settles the order first wins the conditional update. A
// failure is collected and the sweep goes on.
func (s *service) FailStalePending(ctx context.Context, before time.Time) (int, error) {
	stale, err := s.repo.FindStalePending(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("find stale pending orders: %w", err)
	}
	failed := 0
	var errs error
	for i := range stale {
		order := stale[i]
		changed := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := s.repo.WithTx(tx).MarkFailed(ctx, order.OrderNo)
			if err != nil || !ok {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderFailed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.OrderNo,
				Data: outbox.OrderFailedEvent{
					OrderNo:  order.OrderNo,
					UserUUID: order.UserUUID.String(),
					Reason:   "payment not completed before timeout",
				},
			}); err != nil {
				return err
			}
			changed = true
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fail order %s: %w", order.OrderNo, err))
			continue
		}
		if !changed {
			continue
		}
		failed++
		if s.logg != nil {
			s.logg.Info(s.logg.WithOrderNo(ctx, order.OrderNo), "pending order timed out")
		}
	}
	return failed, errs
}
