package subscriptions

import (
	"time"

	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
)

// StatusNone is reported when the user has no active subscription.
const StatusNone = "none"

// StatusDTO is the subscription status payload served to the web front end.
type StatusDTO struct {
	HasActiveSubscription bool       `json:"hasActiveSubscription"`
	ProductID             string     `json:"productId,omitempty"`
	ProductName           string     `json:"productName,omitempty"`
	CreditsRemaining      int64      `json:"creditsRemaining"`
	CreditsTotal          int64      `json:"creditsTotal"`
	CreditsUsed           int64      `json:"creditsUsed"`
	PeriodEnd             *time.Time `json:"periodEnd"`
	Status                string     `json:"status"`
}

// StatusFromModel renders sub, or the empty status when sub is nil.
func StatusFromModel(sub *models.Subscription) *StatusDTO {
	if sub == nil {
		return &StatusDTO{Status: StatusNone}
	}
	periodEnd := sub.PeriodEnd.UTC()
	return &StatusDTO{
		HasActiveSubscription: true,
		ProductID:             sub.ProductID,
		ProductName:           sub.ProductName,
		CreditsRemaining:      sub.CreditsRemaining,
		CreditsTotal:          sub.CreditsTotal,
		CreditsUsed:           sub.CreditsUsed,
		PeriodEnd:             &periodEnd,
		Status:                sub.Status.String(),
	}
}
