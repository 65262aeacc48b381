package cluster

import (
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/feature"
)

// Analyze summarizes each non-empty cluster of an assignment: member
// count, fraud count, unique users, elementwise feature means and the
// most common transaction type and payment method. Empty clusters are
// dropped from the output, not reported.
//
// Mode selection ties break by the category's position in the fixed
// enumeration order (lowest index wins), with name order as the
// secondary key for values outside the enumeration. Map iteration
// order never influences the result.
func Analyze(records []*domain.Transaction, assignment []int, vectors [][]float64, k int) []domain.ClusterAnalysis {
	if len(records) == 0 {
		return nil
	}

	members := make([][]int, k)
	for i, c := range assignment {
		members[c] = append(members[c], i)
	}

	dim := len(vectors[0])
	analyses := make([]domain.ClusterAnalysis, 0, k)

	for c := 0; c < k; c++ {
		if len(members[c]) == 0 {
			continue
		}

		size := len(members[c])
		fraudCount := 0
		users := make(map[int64]struct{}, size)
		avg := make([]float64, dim)
		typeCounts := make(map[string]int)
		paymentCounts := make(map[string]int)

		for _, i := range members[c] {
			tx := records[i]
			if tx.IsFraud() {
				fraudCount++
			}
			users[tx.UserID] = struct{}{}
			for j, x := range vectors[i] {
				avg[j] += x
			}
			typeCounts[tx.Type]++
			paymentCounts[tx.PaymentMethod]++
		}
		for j := range avg {
			avg[j] /= float64(size)
		}

		analyses = append(analyses, domain.ClusterAnalysis{
			ClusterID:         c,
			Size:              size,
			FraudCount:        fraudCount,
			UniqueUsers:       len(users),
			AvgFeatures:       avg,
			MostCommonType:    mode(typeCounts, feature.TypeIndex),
			MostCommonPayment: mode(paymentCounts, feature.PaymentIndex),
			FraudRate:         float64(fraudCount) / float64(size),
		})
	}

	return analyses
}

// mode picks the category with the highest count. Ties break by the
// fixed enumeration index, then by name.
func mode(counts map[string]int, index func(string) int) string {
	best := ""
	bestCount := -1
	bestIndex := 0
	for category, count := range counts {
		idx := index(category)
		switch {
		case count > bestCount:
		case count == bestCount && idx < bestIndex:
		case count == bestCount && idx == bestIndex && category < best:
		default:
			continue
		}
		best = category
		bestCount = count
		bestIndex = idx
	}
	return best
}
