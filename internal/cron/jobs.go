package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/YeLlowseaG/clientseeker/pkg/logger"
)

const (
	JobPendingOrderTimeout = "pending-order-timeout"
	JobSubscriptionExpiry  = "subscription-expiry"
	JobOutboxRetention     = "outbox-retention"

	defaultPendingOrderTTL = 48 * time.Hour
	defaultOutboxRetention = 30 * 24 * time.Hour
)

type staleOrderFailer interface {
	FailStalePending(ctx context.Context, before time.Time) (int, error)
}

type subscriptionExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error)
}

type PendingOrderTimeoutJobParams struct {
	Logger *logger.Logger
	Orders staleOrderFailer
	TTL    time.Duration
	Now    func() time.Time
}

// NewPendingOrderTimeoutJob fails orders left pending longer than TTL.
func NewPendingOrderTimeoutJob(params PendingOrderTimeoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	return &pendingOrderTimeoutJob{logg: params.Logger, orders: params.Orders, ttl: ttl, now: nowOrDefault(params.Now)}, nil
}

type pendingOrderTimeoutJob struct {
	logg   *logger.Logger
	orders staleOrderFailer
	ttl    time.Duration
	now    func() time.Time
}

func (j *pendingOrderTimeoutJob) Name() string { return JobPendingOrderTimeout }

func (j *pendingOrderTimeoutJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	failed, err := j.orders.FailStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("fail stale orders: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "orders_failed": failed}), "pending order timeout complete")
	return nil
}

type SubscriptionExpiryJobParams struct {
	Logger        *logger.Logger
	Subscriptions subscriptionExpirer
	Now           func() time.Time
}

// NewSubscriptionExpiryJob moves active subscriptions past period end to expired.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	return &subscriptionExpiryJob{logg: params.Logger, subs: params.Subscriptions, now: nowOrDefault(params.Now)}, nil
}

type subscriptionExpiryJob struct {
	logg *logger.Logger
	subs subscriptionExpirer
	now  func() time.Time
}

func (j *subscriptionExpiryJob) Name() string { return JobSubscriptionExpiry }

func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	expired, err := j.subs.ExpireDue(ctx, j.now().UTC())
	// ExpireDue reports partial progress alongside per-row errors.
	j.logg.Info(j.logg.WithField(ctx, "subscriptions_expired", expired), "subscription expiry complete")
	if err != nil {
		return fmt.Errorf("expire subscriptions: %w", err)
	}
	return nil
}

type OutboxRetentionJobParams struct {
	Logger    *logger.Logger
	Outbox    outboxPruner
	Retention time.Duration
	Now       func() time.Time
}

// NewOutboxRetentionJob deletes published outbox rows older than Retention.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{logg: params.Logger, outbox: params.Outbox, retention: retention, now: nowOrDefault(params.Now)}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	outbox    outboxPruner
	retention time.Duration
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return JobOutboxRetention }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.outbox.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "rows_deleted": deleted}), "outbox retention cleanup complete")
	return nil
}

func nowOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
