package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YeLlowseaG/clientseeker/pkg/logger"
)

var jobNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

type fakeOrders struct {
	cutoff time.Time
	err    error
}

func (f *fakeOrders) FailStalePending(_ context.Context, before time.Time) (int, error) {
	f.cutoff = before
	return 3, f.err
}

type fakeExpirer struct {
	at  time.Time
	err error
}

func (f *fakeExpirer) ExpireDue(_ context.Context, now time.Time) (int, error) {
	f.at = now
	return 1, f.err
}

type fakePruner struct {
	cutoff time.Time
	err    error
}

func (f *fakePruner) DeletePublishedBefore(_ context.Context, before time.Time) (int64, error) {
	f.cutoff = before
	return 7, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

func fixedNow() time.Time { return jobNow }

func TestPendingOrderTimeoutJobUsesTTL(t *testing.T) {
	orders := &fakeOrders{}
	job, err := NewPendingOrderTimeoutJob(PendingOrderTimeoutJobParams{Logger: testLogger(), Orders: orders, TTL: 2 * time.Hour, Now: fixedNow})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != JobPendingOrderTimeout {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := jobNow.Add(-2 * time.Hour); !orders.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, orders.cutoff)
	}

	orders.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPendingOrderTimeoutJobDefaultTTL(t *testing.T) {
	orders := &fakeOrders{}
	job, _ := NewPendingOrderTimeoutJob(PendingOrderTimeoutJobParams{Logger: testLogger(), Orders: orders, Now: fixedNow})
	_ = job.Run(context.Background())
	if want := jobNow.Add(-defaultPendingOrderTTL); !orders.cutoff.Equal(want) {
		t.Fatalf("expected default cutoff %v, got %v", want, orders.cutoff)
	}
}

func TestSubscriptionExpiryJob(t *testing.T) {
	subs := &fakeExpirer{}
	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{Logger: testLogger(), Subscriptions: subs, Now: fixedNow})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !subs.at.Equal(jobNow) {
		t.Fatalf("expected expiry at %v, got %v", jobNow, subs.at)
	}
	subs.err = errors.New("row failed")
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected partial failure to surface")
	}
}

func TestOutboxRetentionJob(t *testing.T) {
	pruner := &fakePruner{}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger(), Outbox: pruner, Now: fixedNow})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := jobNow.Add(-defaultOutboxRetention); !pruner.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, pruner.cutoff)
	}
	pruner.err = errors.New("boom")
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestJobConstructorsValidate(t *testing.T) {
	if _, err := NewPendingOrderTimeoutJob(PendingOrderTimeoutJobParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected missing orders error")
	}
	if _, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected missing subscriptions error")
	}
	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{}); err == nil {
		t.Fatalf("expected missing logger error")
	}
}
