package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func testRun(id string) *domain.AnalysisRun {
	return &domain.AnalysisRun{
		ID:          id,
		Dataset:     "fraud_detection.csv",
		Fingerprint: "abc123",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Config:      domain.DefaultAnalysisConfig(),
		Report: &domain.Report{
			Clusters: []domain.ClusterAnalysis{
				{ClusterID: 0, Size: 2, FraudCount: 1, UniqueUsers: 2, FraudRate: 0.5},
			},
			Rings: []domain.FraudRing{
				{ID: 0, Members: []string{"tx-001", "tx-002"}, Size: 2, FraudCount: 1, UniqueUsers: 2},
			},
			Offenders: []domain.OffenderStats{
				{UserID: 2, FraudCount: 1, TotalCount: 1},
			},
			Metrics: domain.OverallMetrics{
				TotalTransactions: 3, TotalFraud: 1, FraudRate: 1.0 / 3.0,
			},
			Metadata: domain.ReportMetadata{
				FeatureDim: 5, Iterations: 4, Converged: true, EngineVersion: "harrier-1.0",
			},
		},
	}
}

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "harrier-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetRun", func(t *testing.T) {
		run := testRun("run-001")
		if err := repo.SaveRun(ctx, tenantID, run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}

		retrieved, err := repo.GetRun(ctx, tenantID, run.ID)
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}

		if retrieved.ID != run.ID {
			t.Errorf("expected ID %s, got %s", run.ID, retrieved.ID)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
		if retrieved.Fingerprint != run.Fingerprint {
			t.Errorf("expected Fingerprint %s, got %s", run.Fingerprint, retrieved.Fingerprint)
		}
		if retrieved.Config.Clusters != run.Config.Clusters {
			t.Errorf("config round trip lost clusters: %+v", retrieved.Config)
		}
		if retrieved.Report == nil {
			t.Fatal("expected report to round trip")
		}
		if len(retrieved.Report.Clusters) != 1 || retrieved.Report.Metrics.TotalTransactions != 3 {
			t.Errorf("report round trip mismatch: %+v", retrieved.Report)
		}
	})

	t.Run("ListRuns", func(t *testing.T) {
		second := testRun("run-002")
		second.CreatedAt = second.CreatedAt.Add(time.Minute)
		if err := repo.SaveRun(ctx, tenantID, second); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}

		summaries, err := repo.ListRuns(ctx, tenantID, 10)
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if len(summaries) != 2 {
			t.Fatalf("expected 2 summaries, got %d", len(summaries))
		}
		// Newest first.
		if summaries[0].ID != "run-002" {
			t.Errorf("expected run-002 first, got %s", summaries[0].ID)
		}
		if summaries[0].TotalTransactions != 3 || summaries[0].ClusterCount != 1 || summaries[0].RingCount != 1 {
			t.Errorf("unexpected summary: %+v", summaries[0])
		}
	})

	t.Run("ListRunsLimit", func(t *testing.T) {
		summaries, err := repo.ListRuns(ctx, tenantID, 1)
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if len(summaries) != 1 {
			t.Errorf("expected 1 summary with limit 1, got %d", len(summaries))
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		otherTenant := "tenant-002"

		_, err := repo.GetRun(ctx, otherTenant, "run-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}

		summaries, err := repo.ListRuns(ctx, otherTenant, 10)
		if err != nil {
			t.Fatalf("ListRuns failed: %v", err)
		}
		if len(summaries) != 0 {
			t.Errorf("expected no runs for other tenant, got %d", len(summaries))
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := repo.SaveRun(ctx, "", testRun("run-x")); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := repo.GetRun(ctx, "", "run-001"); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if err := repo.DeleteRun(ctx, "", "run-001"); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("DeleteRun", func(t *testing.T) {
		if err := repo.DeleteRun(ctx, tenantID, "run-002"); err != nil {
			t.Fatalf("DeleteRun failed: %v", err)
		}
		_, err := repo.GetRun(ctx, tenantID, "run-002")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound after delete, got: %v", err)
		}
		if err := repo.DeleteRun(ctx, tenantID, "run-002"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound for repeated delete, got: %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetRun(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
