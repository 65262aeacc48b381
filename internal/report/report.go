// Package report renders an analysis report as analyst-readable text.
// The JSON shape lives in domain; this package is the console view.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/feature"
	"github.com/opensource-finance/harrier/internal/risk"
)

// Writer renders reports with the thresholds of one configuration.
type Writer struct {
	cfg domain.AnalysisConfig
}

// NewWriter creates a report writer using the given analysis
// configuration for risk classification.
func NewWriter(cfg domain.AnalysisConfig) *Writer {
	return &Writer{cfg: cfg}
}

// Write renders the full report: clusters ranked by fraud rate, fraud
// rings, repeat offenders and overall metrics. Clusters with equal
// fraud rates keep ascending cluster id order.
func (w *Writer) Write(out io.Writer, rep *domain.Report) error {
	if rep == nil || rep.Metrics.TotalTransactions == 0 {
		_, err := fmt.Fprintln(out, "No transactions to analyze.")
		return err
	}

	ranked := make([]domain.ClusterAnalysis, len(rep.Clusters))
	copy(ranked, rep.Clusters)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FraudRate != ranked[j].FraudRate {
			return ranked[i].FraudRate > ranked[j].FraudRate
		}
		return ranked[i].ClusterID < ranked[j].ClusterID
	})

	fmt.Fprintln(out, "Fraud Detection Analysis Results:")
	fmt.Fprintln(out, "\nHigh-Risk Clusters (Sorted by Fraud Rate):")
	for i, c := range ranked {
		w.writeCluster(out, c, i+1)
	}

	w.writeRings(out, rep.Rings)
	w.writeOffenders(out, rep.Offenders)

	fmt.Fprintln(out, "\nOverall Metrics:")
	fmt.Fprintf(out, "Total Transactions: %d\n", rep.Metrics.TotalTransactions)
	fmt.Fprintf(out, "Total Fraudulent: %d\n", rep.Metrics.TotalFraud)
	fmt.Fprintf(out, "Overall Fraud Rate: %.2f%%\n", rep.Metrics.FraudRate*100)

	_, err := fmt.Fprintf(out, "\nProcessed in %dms (%s, %d iterations, converged=%t)\n",
		rep.Metadata.TotalMs, rep.Metadata.EngineVersion,
		rep.Metadata.Iterations, rep.Metadata.Converged)
	return err
}

func (w *Writer) writeCluster(out io.Writer, c domain.ClusterAnalysis, rank int) {
	fmt.Fprintf(out, "\nCluster Rank %d (Fraud Rate: %.1f%%)\n", rank, c.FraudRate*100)
	fmt.Fprintf(out, "Size: %d transactions\n", c.Size)
	fmt.Fprintf(out, "Fraudulent: %d (%.1f%%)\n", c.FraudCount, c.FraudRate*100)
	fmt.Fprintf(out, "Unique Users: %d\n", c.UniqueUsers)

	if len(c.AvgFeatures) >= feature.MinimalDim {
		fmt.Fprintln(out, "\nFeature Analysis:")
		fmt.Fprintf(out, "Avg Amount: $%.2f\n", c.AvgFeatures[0])
		if len(c.AvgFeatures) == feature.MinimalDim {
			fmt.Fprintf(out, "Avg Time: %.1f\n", c.AvgFeatures[1])
			fmt.Fprintf(out, "Avg Prev. Fraud: %.2f\n", c.AvgFeatures[2])
			fmt.Fprintf(out, "Avg Acct Age: %.0f days\n", c.AvgFeatures[3])
			fmt.Fprintf(out, "Avg Recent Transactions: %.1f\n", c.AvgFeatures[4])
		} else {
			fmt.Fprintf(out, "Avg Time: %.1f\n", c.AvgFeatures[2])
			fmt.Fprintf(out, "Avg Prev. Fraud: %.2f\n", c.AvgFeatures[4])
			fmt.Fprintf(out, "Avg Acct Age: %.0f days\n", c.AvgFeatures[5])
			fmt.Fprintf(out, "Avg Recent Transactions: %.1f\n", c.AvgFeatures[6])
		}
	}

	fmt.Fprintln(out, "\nCommon Characteristics:")
	fmt.Fprintf(out, "Transaction Type: %s\n", c.MostCommonType)
	fmt.Fprintf(out, "Payment Method: %s\n", c.MostCommonPayment)

	fmt.Fprintf(out, "\n  Risk Level: %s\n", risk.Classify(c.FraudRate, w.cfg))
}

func (w *Writer) writeRings(out io.Writer, rings []domain.FraudRing) {
	if len(rings) == 0 {
		return
	}
	fmt.Fprintf(out, "\nFraud Rings Detected: %d\n", len(rings))
	for _, r := range rings {
		fmt.Fprintf(out, "\nRing %d: %d transactions, %d users\n", r.ID, r.Size, r.UniqueUsers)
		fmt.Fprintf(out, "Fraudulent: %d\n", r.FraudCount)
		fmt.Fprintf(out, "Density: %.2f, Avg Degree Centrality: %.2f\n",
			r.Density, r.AvgDegreeCentrality)
	}
}

func (w *Writer) writeOffenders(out io.Writer, offenders []domain.OffenderStats) {
	var repeat []domain.OffenderStats
	for _, o := range offenders {
		if o.IsRepeatOffender() {
			repeat = append(repeat, o)
		}
	}
	if len(repeat) == 0 {
		return
	}
	fmt.Fprintf(out, "\nRepeat Offenders: %d\n", len(repeat))
	for _, o := range repeat {
		fmt.Fprintf(out, "User %d: %d fraudulent of %d transactions\n",
			o.UserID, o.FraudCount, o.TotalCount)
	}
}
