// Package domain defines the core types and interfaces for Harrier.
package domain

// Transaction is one historical transaction record as loaded from the
// dataset. Records are created once at the load boundary and never
// mutated; every analysis stage borrows the slice read-only.
//
// Optional numeric columns are pointers so that "absent" is
// distinguishable from zero. The feature vectorizer maps absent
// values to 0.0.
type Transaction struct {
	// Core identifiers
	ID     string `json:"id"`
	UserID int64  `json:"userId"`

	// Transaction type (e.g., "Online Purchase", "Bank Transfer")
	Type string `json:"type"`

	// Financial details
	Amount *float64 `json:"amount,omitempty"`

	// Time of the transaction as an hour-of-day value from the dataset
	Time *float64 `json:"time,omitempty"`

	// Channel metadata
	Device   string `json:"device,omitempty"`
	Location string `json:"location,omitempty"`

	// Account history
	PriorFraudCount *int `json:"priorFraudCount,omitempty"`
	AccountAgeDays  *int `json:"accountAgeDays,omitempty"`
	TxCountLast24H  *int `json:"txCountLast24h,omitempty"`

	// Payment method (e.g., "Credit Card", "Debit Card")
	PaymentMethod string `json:"paymentMethod,omitempty"`

	// FraudLabel is the dataset's ground-truth label: 1 for fraudulent,
	// 0 for legitimate, nil when unlabeled.
	FraudLabel *int `json:"fraudLabel,omitempty"`
}

// IsFraud reports whether the record carries a positive fraud label.
func (t *Transaction) IsFraud() bool {
	return t.FraudLabel != nil && *t.FraudLabel == 1
}
