package enums

// OrderStatus tracks a purchase from checkout to settlement. Only pending
// orders may move; paid and completed are settled, failed is terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

var orderStatuses = []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusCompleted, OrderStatusFailed}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return known(s, orderStatuses) }

// IsSettled reports whether payment has already been recorded for the order.
func (s OrderStatus) IsSettled() bool {
	return s == OrderStatusPaid || s == OrderStatusCompleted
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse("order status", value, orderStatuses)
}
