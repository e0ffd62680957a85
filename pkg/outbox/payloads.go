package outbox

import "time"

type OrderPaidEvent struct {
	OrderNo         string    `json:"orderNo"`
	UserUUID        string    `json:"userUuid"`
	ProductID       string    `json:"productId"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	Provider        string    `json:"provider"`
	ProviderOrderID string    `json:"providerOrderId,omitempty"`
	PaidAt          time.Time `json:"paidAt"`
}

type OrderFailedEvent struct {
	OrderNo  string `json:"orderNo"`
	UserUUID string `json:"userUuid"`
	Reason   string `json:"reason"`
}

type SubscriptionActivatedEvent struct {
	SubscriptionID string    `json:"subscriptionId"`
	UserUUID       string    `json:"userUuid"`
	OrderNo        string    `json:"orderNo"`
	ProductID      string    `json:"productId"`
	CreditsTotal   int64     `json:"creditsTotal"`
	PeriodStart    time.Time `json:"periodStart"`
	PeriodEnd      time.Time `json:"periodEnd"`
	Superseded     []string  `json:"superseded,omitempty"`
}

type SubscriptionExpiredEvent struct {
	SubscriptionID string    `json:"subscriptionId"`
	UserUUID       string    `json:"userUuid"`
	OrderNo        string    `json:"orderNo"`
	CreditsLapsed  int64     `json:"creditsLapsed"`
	PeriodEnd      time.Time `json:"periodEnd"`
}

type CreditsGrantedEvent struct {
	UserUUID  string     `json:"userUuid"`
	TransNo   string     `json:"transNo"`
	TransType string     `json:"transType"`
	Credits   int64      `json:"credits"`
	OrderNo   string     `json:"orderNo,omitempty"`
	ExpiredAt *time.Time `json:"expiredAt,omitempty"`
}
