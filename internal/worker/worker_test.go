package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
)

const workerCSV = `Transaction_ID,User_ID,Transaction_Amount,Transaction_Type,Time_of_Transaction,Previous_Fraudulent_Transactions,Account_Age,Number_of_Transactions_Last_24H,Payment_Method,Fraudulent
tx-001,1,100.0,Online Purchase,1.0,0,365,2,Credit Card,0
tx-002,2,1000.0,Bank Transfer,2.0,1,30,5,Net Banking,1
tx-003,1,50.0,ATM Withdrawal,3.0,0,365,3,Debit Card,0
`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, []byte(workerCSV), 0o644); err != nil {
		t.Fatalf("failed to write dataset: %v", err)
	}
	return path
}

func testAnalysisConfig() domain.AnalysisConfig {
	cfg := domain.DefaultAnalysisConfig()
	cfg.Clusters = 2
	return cfg
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	worker := NewWorker(eventBus, nil, nil, testAnalysisConfig())

	t.Run("StartAndStop", func(t *testing.T) {
		cfg := Config{
			TenantIDs: []string{"tenant-001"},
		}

		err := worker.Start(cfg)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := worker.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		err = worker.Stop()
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = worker.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessDataset", func(t *testing.T) {
		w := NewWorker(eventBus, nil, nil, testAnalysisConfig())

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		var resultReceived atomic.Bool
		var resultPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicAnalysisCompleted, func(ctx context.Context, msg *domain.Message) error {
			resultPayload = msg.Payload
			resultReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		dsMsg := DatasetMessage{
			RunID:    "run-001",
			TenantID: "tenant-test",
			Dataset:  writeDataset(t),
		}

		payload, _ := json.Marshal(dsMsg)
		err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicDatasetIngested, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		deadline := time.Now().Add(2 * time.Second)
		for !resultReceived.Load() && time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
		}

		if !resultReceived.Load() {
			t.Fatal("expected analysis result to be published")
		}

		var run domain.AnalysisRun
		if err := json.Unmarshal(resultPayload, &run); err != nil {
			t.Fatalf("failed to parse result: %v", err)
		}

		if run.ID != "run-001" {
			t.Errorf("expected run id 'run-001', got '%s'", run.ID)
		}
		if run.TenantID != "tenant-test" {
			t.Errorf("expected tenantID 'tenant-test', got '%s'", run.TenantID)
		}
		if run.Fingerprint == "" {
			t.Error("expected fingerprint to be set")
		}
		if run.Report == nil || run.Report.Metrics.TotalTransactions != 3 {
			t.Errorf("unexpected report: %+v", run.Report)
		}
	})

	t.Run("CachedReportReused", func(t *testing.T) {
		reportCache := cache.NewLRUCache(100)
		w := NewWorker(eventBus, nil, reportCache, testAnalysisConfig())

		cfg := Config{
			TenantIDs: []string{"tenant-cache"},
		}
		w.Start(cfg)
		defer w.Stop()

		var results atomic.Int32
		eventBus.Subscribe(context.Background(), "tenant-cache", domain.TopicAnalysisCompleted, func(ctx context.Context, msg *domain.Message) error {
			results.Add(1)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		dataset := writeDataset(t)
		for _, runID := range []string{"run-a", "run-b"} {
			payload, _ := json.Marshal(DatasetMessage{RunID: runID, TenantID: "tenant-cache", Dataset: dataset})
			eventBus.Publish(context.Background(), "tenant-cache", domain.TopicDatasetIngested, payload)
		}

		deadline := time.Now().Add(2 * time.Second)
		for results.Load() < 2 && time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
		}

		if results.Load() != 2 {
			t.Fatalf("expected 2 results, got %d", results.Load())
		}
		// Both runs share a fingerprint, so the cache holds one report.
		if size, _ := reportCache.Stats(); size != 1 {
			t.Errorf("expected 1 cached report, got %d", size)
		}
	})

	t.Run("MissingDataset", func(t *testing.T) {
		w := NewWorker(eventBus, nil, nil, testAnalysisConfig())

		cfg := Config{
			TenantIDs: []string{"tenant-missing"},
		}
		w.Start(cfg)
		defer w.Stop()

		var resultReceived atomic.Bool
		eventBus.Subscribe(context.Background(), "tenant-missing", domain.TopicAnalysisCompleted, func(ctx context.Context, msg *domain.Message) error {
			resultReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		payload, _ := json.Marshal(DatasetMessage{TenantID: "tenant-missing", Dataset: "/nonexistent.csv"})
		eventBus.Publish(context.Background(), "tenant-missing", domain.TopicDatasetIngested, payload)

		time.Sleep(100 * time.Millisecond)

		if resultReceived.Load() {
			t.Error("no result should be published for a missing dataset")
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, nil, nil, testAnalysisConfig())

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

func TestDatasetMessageParsing(t *testing.T) {
	msg := DatasetMessage{
		RunID:    "run-123",
		TenantID: "tenant-001",
		Dataset:  "/data/fraud_detection.csv",
		TraceID:  "trace-456",
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed DatasetMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.RunID != msg.RunID {
		t.Errorf("expected RunID '%s', got '%s'", msg.RunID, parsed.RunID)
	}
	if parsed.Dataset != msg.Dataset {
		t.Errorf("expected Dataset '%s', got '%s'", msg.Dataset, parsed.Dataset)
	}
}
