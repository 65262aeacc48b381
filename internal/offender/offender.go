// Package offender aggregates per-user fraud frequency across the
// whole dataset, independent of the clustering and graph views.
package offender

import (
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Detect accumulates total and fraudulent transaction counts per user
// in a single pass. The result is the full mapping; filtering and
// presentation belong to the reporting layer.
func Detect(records []*domain.Transaction) map[int64]domain.OffenderStats {
	stats := make(map[int64]domain.OffenderStats)
	for _, tx := range records {
		s := stats[tx.UserID]
		s.UserID = tx.UserID
		s.TotalCount++
		if tx.IsFraud() {
			s.FraudCount++
		}
		stats[tx.UserID] = s
	}
	return stats
}

// Sorted flattens the mapping into a slice ordered by fraud count
// descending and user id ascending for equal counts.
func Sorted(stats map[int64]domain.OffenderStats) []domain.OffenderStats {
	out := make([]domain.OffenderStats, 0, len(stats))
	for _, s := range stats {
		out = append(out, s)
	}
	sortStats(out)
	return out
}

// RepeatOffenders returns the users with more than one fraudulent
// transaction, sorted by fraud count descending and user id ascending
// for equal counts, so output order is stable across runs.
func RepeatOffenders(stats map[int64]domain.OffenderStats) []domain.OffenderStats {
	var out []domain.OffenderStats
	for _, s := range stats {
		if s.IsRepeatOffender() {
			out = append(out, s)
		}
	}
	sortStats(out)
	return out
}

func sortStats(out []domain.OffenderStats) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].FraudCount != out[j].FraudCount {
			return out[i].FraudCount > out[j].FraudCount
		}
		return out[i].UserID < out[j].UserID
	})
}
