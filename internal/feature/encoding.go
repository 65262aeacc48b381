// Package feature converts transaction records into fixed-dimension
// numeric vectors for distance and similarity computations.
package feature

// Categorical fields are encoded as small integer buckets. The
// enumerations below are fixed: the index of a category is stable for
// the lifetime of the process and across runs, which keeps both the
// encoding and the mode tie-break in cluster analysis deterministic.
// Unrecognized values map to the fallback index len(enumeration).

// TransactionTypes enumerates the known transaction types in their
// canonical encoding order.
var TransactionTypes = []string{
	"Online Purchase",
	"ATM Withdrawal",
	"Bank Transfer",
	"POS Payment",
	"Bill Payment",
}

// PaymentMethods enumerates the known payment methods in their
// canonical encoding order.
var PaymentMethods = []string{
	"Credit Card",
	"Debit Card",
	"Net Banking",
	"UPI",
}

// TypeIndex returns the bucket index for a transaction type, or the
// fallback index for unrecognized values.
func TypeIndex(txType string) int {
	return indexOf(TransactionTypes, txType)
}

// PaymentIndex returns the bucket index for a payment method, or the
// fallback index for unrecognized values.
func PaymentIndex(method string) int {
	return indexOf(PaymentMethods, method)
}

func indexOf(categories []string, value string) int {
	for i, c := range categories {
		if c == value {
			return i
		}
	}
	return len(categories)
}
