package feature

import (
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Feature dimensions of the two encoding variants.
const (
	MinimalDim  = 5
	ExtendedDim = 9
)

// Vectorizer maps a transaction record to a fixed-dimension numeric
// vector. Vectorize is total and deterministic: it never fails, the
// same record always yields the same vector, and the dimension is
// constant for every record in a run. Missing numeric fields
// contribute 0.0, and non-finite inputs are sanitized to 0.0 before
// they can reach any downstream average.
type Vectorizer struct {
	// Extended selects the 9-feature encoding with log-amount,
	// time-of-day fraction and categorical buckets. The default
	// 5-feature encoding carries the raw numeric columns only.
	Extended bool
}

// NewVectorizer creates a vectorizer for the chosen variant.
func NewVectorizer(extended bool) *Vectorizer {
	return &Vectorizer{Extended: extended}
}

// Dim returns the vector dimension of this vectorizer.
func (v *Vectorizer) Dim() int {
	if v.Extended {
		return ExtendedDim
	}
	return MinimalDim
}

// Vectorize converts one record into its feature vector.
//
// Minimal layout:  [amount, time, priorFraud, accountAge, txCount24h]
// Extended layout: minimal[0], log10(amount) (0.0 unless amount > 0),
// time, (time mod 24)/24, priorFraud, accountAge, txCount24h,
// type bucket, payment bucket.
func (v *Vectorizer) Vectorize(tx *domain.Transaction) []float64 {
	amount := sanitize(floatOrZero(tx.Amount))
	txTime := sanitize(floatOrZero(tx.Time))
	prior := float64(intOrZero(tx.PriorFraudCount))
	age := float64(intOrZero(tx.AccountAgeDays))
	count24h := float64(intOrZero(tx.TxCountLast24H))

	if !v.Extended {
		return []float64{amount, txTime, prior, age, count24h}
	}

	logAmount := 0.0
	if amount > 0 {
		logAmount = math.Log10(amount)
	}

	timeFraction := math.Mod(txTime, 24) / 24

	return []float64{
		amount,
		logAmount,
		txTime,
		timeFraction,
		prior,
		age,
		count24h,
		float64(TypeIndex(tx.Type)),
		float64(PaymentIndex(tx.PaymentMethod)),
	}
}

// Matrix vectorizes every record, preserving input order. The result
// is a dense N x D matrix; the vectorizer only borrows the records.
func (v *Vectorizer) Matrix(records []*domain.Transaction) [][]float64 {
	matrix := make([][]float64, len(records))
	for i, tx := range records {
		matrix[i] = v.Vectorize(tx)
	}
	return matrix
}

func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0.0
	}
	return f
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0.0
	}
	return *p
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
