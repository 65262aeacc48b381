// Package pipeline orchestrates one batch fraud analysis over an
// immutable in-memory dataset snapshot.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/cluster"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/feature"
	"github.com/opensource-finance/harrier/internal/offender"
	"github.com/opensource-finance/harrier/internal/simgraph"
)

// EngineVersion tags reports with the pipeline revision that produced
// them.
const EngineVersion = "harrier-1.0"

// Run executes the full analysis: vectorize once, then the clustering
// view (standardized vectors -> k-means -> per-cluster analysis) and
// the graph view (raw vectors -> similarity graph -> fraud rings) in
// parallel, plus the dataset-wide repeat-offender aggregation.
//
// The two branches read the same vector matrix and write disjoint
// outputs; no data flows between them. Runs are deterministic:
// identical records, configuration and seed yield an identical
// report. An empty dataset yields an empty report, not an error;
// invalid k fails fast with domain.ErrInvalidConfig before any work
// is scheduled.
func Run(ctx context.Context, records []*domain.Transaction, cfg domain.AnalysisConfig) (*domain.Report, error) {
	start := time.Now()

	report := &domain.Report{
		Metadata: domain.ReportMetadata{EngineVersion: EngineVersion},
	}
	if len(records) == 0 {
		return report, nil
	}
	if cfg.Clusters < 1 || cfg.Clusters > len(records) {
		return nil, fmt.Errorf("%w: clusters=%d must be in [1,%d]",
			domain.ErrInvalidConfig, cfg.Clusters, len(records))
	}

	vectorizer := feature.NewVectorizer(cfg.ExtendedFeatures)
	vecStart := time.Now()
	vectors := vectorizer.Matrix(records)
	report.Metadata.FeatureDim = vectorizer.Dim()
	report.Metadata.VectorizeMs = time.Since(vecStart).Milliseconds()

	var wg sync.WaitGroup
	var fitErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		branchStart := time.Now()

		normalized := feature.Standardize(vectors)
		engine := cluster.NewEngine(cfg)
		result, err := engine.Fit(normalized)
		if err != nil {
			fitErr = err
			return
		}
		report.Clusters = cluster.Analyze(records, result.Assignment, vectors, cfg.Clusters)
		report.Metadata.Iterations = result.Iterations
		report.Metadata.Converged = result.Converged
		report.Metadata.ClusterMs = time.Since(branchStart).Milliseconds()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		branchStart := time.Now()

		graph := simgraph.NewBuilder(cfg).Build(records, vectors)
		report.Rings = simgraph.FindRings(graph, records)
		report.Metadata.GraphMs = time.Since(branchStart).Milliseconds()
	}()

	report.Offenders = offender.Sorted(offender.Detect(records))

	wg.Wait()
	if fitErr != nil {
		return nil, fitErr
	}

	totalFraud := 0
	for _, tx := range records {
		if tx.IsFraud() {
			totalFraud++
		}
	}
	report.Metrics = domain.OverallMetrics{
		TotalTransactions: len(records),
		TotalFraud:        totalFraud,
		FraudRate:         float64(totalFraud) / float64(len(records)),
	}
	report.Metadata.TotalMs = time.Since(start).Milliseconds()

	slog.Debug("analysis complete",
		"records", len(records),
		"clusters", len(report.Clusters),
		"rings", len(report.Rings),
		"iterations", report.Metadata.Iterations,
		"duration_ms", report.Metadata.TotalMs,
	)

	return report, nil
}

// Fingerprint derives a stable identifier for a dataset + parameter
// combination. Reports are safe to cache under it because runs are
// deterministic.
func Fingerprint(records []*domain.Transaction, cfg domain.AnalysisConfig) string {
	h := sha256.New()
	fmt.Fprintf(h, "k=%d;thr=%g;iter=%d;tol=%g;seed=%d;ext=%t;",
		cfg.Clusters, cfg.SimilarityThreshold, cfg.MaxIterations,
		cfg.Tolerance, cfg.Seed, cfg.ExtendedFeatures)
	for _, tx := range records {
		fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s|%s|%s|%s|%s;",
			tx.ID, tx.UserID, fmtFloat(tx.Amount), tx.Type, fmtFloat(tx.Time),
			fmtInt(tx.PriorFraudCount), fmtInt(tx.AccountAgeDays), fmtInt(tx.TxCountLast24H),
			tx.PaymentMethod, fmtInt(tx.FraudLabel))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func fmtFloat(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *p)
}

func fmtInt(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}
