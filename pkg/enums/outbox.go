package enums

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateSubscription OutboxAggregateType = "subscription"
	AggregateCreditEntry  OutboxAggregateType = "credit_entry"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateSubscription, AggregateCreditEntry}

func (a OutboxAggregateType) IsValid() bool { return known(a, aggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, aggregateTypes)
}

// OutboxEventType is the billing event vocabulary published to the bus.
type OutboxEventType string

const (
	EventOrderPaid             OutboxEventType = "order_paid"
	EventOrderFailed           OutboxEventType = "order_failed"
	EventSubscriptionActivated OutboxEventType = "subscription_activated"
	EventSubscriptionExpired   OutboxEventType = "subscription_expired"
	EventCreditsGranted        OutboxEventType = "credits_granted"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderPaid,
	EventOrderFailed,
	EventSubscriptionActivated,
	EventSubscriptionExpired,
	EventCreditsGranted,
}

func (e OutboxEventType) IsValid() bool { return known(e, outboxEventTypes) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, outboxEventTypes)
}
