package enums

// SubscriptionStatus is the lifecycle of a credit allowance period. A user
// has at most one active row; superseded rows become inactive and lapsed
// ones expired.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

var subscriptionStatuses = []SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusInactive, SubscriptionStatusExpired}

func (s SubscriptionStatus) String() string { return string(s) }

func (s SubscriptionStatus) IsValid() bool { return known(s, subscriptionStatuses) }

func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	return parse("subscription status", value, subscriptionStatuses)
}
