package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/internal/ledger"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
)

// UsageRecorder mirrors ledger consumption onto the current subscription's
// counters. It depends only on the repository so the ledger can be built
// before the subscription service.
type UsageRecorder struct {
	repo Repository
}

func NewUsageRecorder(repo Repository) *UsageRecorder {
	return &UsageRecorder{repo: repo}
}

// RecordUsage charges the current subscription for the draws taken from its
// own grant, which expires at period_end. Draws from other buckets (earlier
// subscriptions, admin top-ups) leave its counters alone.
func (u *UsageRecorder) RecordUsage(ctx context.Context, tx *gorm.DB, userUUID uuid.UUID, draws []ledger.UsageDraw) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if len(draws) == 0 {
		return nil
	}
	repo := u.repo.WithTx(tx)
	sub, err := repo.FindActiveByUser(ctx, userUUID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
	}
	if sub == nil || sub.CreditsRemaining <= 0 {
		return nil
	}

	var own int64
	for _, d := range draws {
		if d.Credits > 0 && d.ExpiredAt != nil && sameInstant(*d.ExpiredAt, sub.PeriodEnd) {
			own += d.Credits
		}
	}
	if own == 0 {
		return nil
	}
	if _, err := repo.AdjustUsage(ctx, sub.ID, min(own, sub.CreditsRemaining)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription usage")
	}
	return nil
}

// sameInstant compares at the microsecond precision Postgres stores.
func sameInstant(a, b time.Time) bool {
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}
