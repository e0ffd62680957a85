package enums

import "strings"

// PaymentProvider identifies who collected the money for an order.
type PaymentProvider string

const (
	PaymentProviderPayPal PaymentProvider = "paypal"
	PaymentProviderStripe PaymentProvider = "stripe"
)

var paymentProviders = []PaymentProvider{PaymentProviderPayPal, PaymentProviderStripe}

func (p PaymentProvider) String() string { return string(p) }

func (p PaymentProvider) IsValid() bool { return known(p, paymentProviders) }

// ParsePaymentProvider is case-insensitive and ignores surrounding space.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	p, err := parse("payment provider", strings.ToLower(strings.TrimSpace(value)), paymentProviders)
	if err != nil {
		return "", err
	}
	return p, nil
}
