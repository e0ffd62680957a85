package enums

// CreditTransType classifies a credit ledger entry.
type CreditTransType string

const (
	// CreditTransOrderPay is the grant produced by a paid order.
	CreditTransOrderPay CreditTransType = "order_pay"
	// CreditTransSystemAdd is a manual grant by an operator.
	CreditTransSystemAdd CreditTransType = "system_add"
	CreditTransConsume   CreditTransType = "consume"
	// CreditTransExpire records credits that lapsed with their period.
	CreditTransExpire CreditTransType = "expire"
)

var creditTransTypes = []CreditTransType{CreditTransOrderPay, CreditTransSystemAdd, CreditTransConsume, CreditTransExpire}

func (t CreditTransType) String() string { return string(t) }

func (t CreditTransType) IsValid() bool { return known(t, creditTransTypes) }

// IsGrant reports whether entries of this type add credits.
func (t CreditTransType) IsGrant() bool {
	return t == CreditTransOrderPay || t == CreditTransSystemAdd
}

func ParseCreditTransType(value string) (CreditTransType, error) {
	return parse("credit trans type", value, creditTransTypes)
}
