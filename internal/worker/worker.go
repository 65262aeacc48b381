// Package worker provides async dataset processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/loader"
	"github.com/opensource-finance/harrier/internal/pipeline"
)

// Worker runs analyses for datasets announced on the EventBus.
type Worker struct {
	bus         domain.EventBus
	repo        domain.Repository
	cache       domain.Cache
	analysisCfg domain.AnalysisConfig

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = global subscription)
	TenantIDs []string
}

// NewWorker creates a new async worker. Repository and cache are
// optional; without them the worker only publishes results.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, analysisCfg domain.AnalysisConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:         bus,
		repo:        repo,
		cache:       cache,
		analysisCfg: analysisCfg,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing dataset messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicDatasetIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicDatasetIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processDataset(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicDatasetIngested,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processDataset(ctx, msg.TenantID, msg)
}

// DatasetMessage is the payload announcing a dataset ready for analysis.
type DatasetMessage struct {
	RunID    string `json:"runId,omitempty"`
	TenantID string `json:"tenantId"`
	Dataset  string `json:"dataset"` // CSV file path
	TraceID  string `json:"traceId,omitempty"`
}

// RingAlert is the payload published for each detected fraud ring.
type RingAlert struct {
	RunID string           `json:"runId"`
	Ring  domain.FraudRing `json:"ring"`
}

// processDataset loads a dataset and runs the full analysis over it.
func (w *Worker) processDataset(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var dsMsg DatasetMessage
	if err := json.Unmarshal(msg.Payload, &dsMsg); err != nil {
		slog.Error("failed to parse dataset message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if dsMsg.TenantID != "" {
		tenantID = dsMsg.TenantID
	}

	runID := dsMsg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	slog.Debug("processing dataset",
		"run_id", runID,
		"tenant_id", tenantID,
		"dataset", dsMsg.Dataset,
	)

	records, err := loader.ReadFile(dsMsg.Dataset)
	if err != nil {
		slog.Error("failed to load dataset",
			"run_id", runID,
			"dataset", dsMsg.Dataset,
			"error", err,
		)
		return err
	}

	fingerprint := pipeline.Fingerprint(records, w.analysisCfg)

	// Identical dataset + parameters produce identical reports, so a
	// cached report is as good as a fresh run.
	var report *domain.Report
	if w.cache != nil {
		if cached, err := w.cache.GetReport(ctx, tenantID, fingerprint); err == nil && cached != nil {
			slog.Debug("report cache hit", "run_id", runID, "fingerprint", fingerprint)
			report = cached
		}
	}

	if report == nil {
		report, err = pipeline.Run(ctx, records, w.analysisCfg)
		if err != nil {
			slog.Error("analysis failed",
				"run_id", runID,
				"error", err,
			)
			return err
		}
		if w.cache != nil {
			if err := w.cache.SetReport(ctx, tenantID, fingerprint, report, time.Hour); err != nil {
				slog.Warn("failed to cache report", "run_id", runID, "error", err)
			}
		}
	}

	run := &domain.AnalysisRun{
		ID:          runID,
		TenantID:    tenantID,
		Dataset:     dsMsg.Dataset,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
		Config:      w.analysisCfg,
		Report:      report,
	}

	if w.repo != nil {
		if err := w.repo.SaveRun(ctx, tenantID, run); err != nil {
			slog.Error("failed to save run",
				"run_id", runID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(run)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, resultPayload); err != nil {
		slog.Error("failed to publish analysis result",
			"run_id", runID,
			"error", err,
		)
	}

	for _, ring := range report.Rings {
		alertPayload, _ := json.Marshal(RingAlert{RunID: runID, Ring: ring})
		if err := w.bus.Publish(ctx, tenantID, domain.TopicRingDetected, alertPayload); err != nil {
			slog.Error("failed to publish ring alert",
				"run_id", runID,
				"ring_id", ring.ID,
				"error", err,
			)
		}
	}

	slog.Info("dataset processed",
		"run_id", runID,
		"tenant_id", tenantID,
		"records", report.Metrics.TotalTransactions,
		"clusters", len(report.Clusters),
		"rings", len(report.Rings),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
