//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Harrier batch
// fraud analytics service.
//
// These tests verify the COMPLETE analysis pipeline:
//
//	CSV dataset → Features → Clustering → Rings → Offenders → Report
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. DATASET: A CSV of labeled transactions (Fraudulent column is the
//    historical ground truth, not a prediction).
//
// 2. CLUSTER: A group of transactions with similar feature vectors,
//    found by k-means. Clusters with a high share of fraudulent
//    transactions are the interesting ones.
//
// 3. RING: A connected component of highly similar fraudulent
//    transactions spanning multiple users, suggesting coordination.
//
// 4. OFFENDER: Per-user fraud statistics. A user with 2+ fraudulent
//    transactions in the dataset is a repeat offender.
//
// 5. FLAG RULE: An analyst-defined CEL predicate over cluster or ring
//    statistics (e.g. "fraud_rate > 0.5"). Managed via PUT /flags.
//
// The server must be running and able to read files written by this
// test process (same host or shared filesystem).
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("HARRIER_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// ============================================================================
// API Request/Response Types (matching Harrier's API contract)
// ============================================================================

// AnalyzeRequest is the dataset submission sent to POST /runs
type AnalyzeRequest struct {
	Dataset string `json:"dataset"`
	RunID   string `json:"runId,omitempty"`
}

// Run is what POST /runs and GET /runs/{id} return
type Run struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Dataset     string `json:"dataset"`
	Fingerprint string `json:"fingerprint"`
	Report      Report `json:"report"`
}

type Report struct {
	Clusters  []Cluster        `json:"clusters"`
	Rings     []Ring           `json:"rings"`
	Offenders []OffenderRecord `json:"offenders"`
	Metrics   Metrics          `json:"metrics"`
}

type Cluster struct {
	ClusterID   int      `json:"clusterId"`
	Size        int      `json:"size"`
	FraudCount  int      `json:"fraudCount"`
	FraudRate   float64  `json:"fraudRate"`
	UniqueUsers int      `json:"uniqueUsers"`
	RiskLevel   string   `json:"riskLevel,omitempty"`
	Flags       []string `json:"flags,omitempty"`
}

type Ring struct {
	ID          int     `json:"id"`
	Size        int     `json:"size"`
	UniqueUsers int     `json:"uniqueUsers"`
	Density     float64 `json:"density"`
}

type OffenderRecord struct {
	UserID     int64 `json:"userId"`
	FraudCount int   `json:"fraudCount"`
	TotalCount int   `json:"totalCount"`
}

type Metrics struct {
	TotalTransactions int     `json:"totalTransactions"`
	TotalFraud        int     `json:"totalFraud"`
	FraudRate         float64 `json:"fraudRate"`
}

// Collection endpoints wrap their payloads in an envelope.
type clustersEnvelope struct {
	Clusters []Cluster `json:"clusters"`
	Count    int       `json:"count"`
}

type ringsEnvelope struct {
	Rings []Ring `json:"rings"`
	Count int    `json:"count"`
}

type offendersEnvelope struct {
	Offenders []OffenderRecord `json:"offenders"`
	Count     int              `json:"count"`
}

type flagsEnvelope struct {
	Rules []FlagRule `json:"rules"`
	Count int        `json:"count"`
}

type FlagRule struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

const testDataset = `Transaction_ID,User_ID,Transaction_Amount,Transaction_Type,Time_of_Transaction,Previous_Fraudulent_Transactions,Account_Age,Number_of_Transactions_Last_24H,Payment_Method,Fraudulent
tx-001,101,5200.00,Transfer,2.0,3,14,25,Credit Card,1
tx-002,101,4800.00,Transfer,3.0,3,14,22,Credit Card,1
tx-003,102,5100.00,Transfer,2.5,2,20,24,Credit Card,1
tx-004,103,4950.00,Transfer,3.5,1,30,20,Digital Wallet,1
tx-005,104,45.00,Purchase,13.0,0,1200,2,Debit Card,0
tx-006,105,88.50,Purchase,11.0,0,900,3,Debit Card,0
tx-007,106,120.00,Purchase,15.5,0,2400,1,Bank Transfer,0
tx-008,104,62.25,Purchase,17.0,0,1200,2,Debit Card,0
tx-009,107,33.10,Withdrawal,10.0,0,600,4,Debit Card,0
tx-010,101,76.00,Purchase,14.0,3,14,5,Credit Card,0
`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, []byte(testDataset), 0o644); err != nil {
		t.Fatalf("Failed to write dataset: %v", err)
	}
	return path
}

func doRequest(t *testing.T, config TestConfig, method, path string, payload any) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequest(method, config.BaseURL+path, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return resp, respBody
}

func createRun(t *testing.T, config TestConfig, dataset string) Run {
	t.Helper()

	resp, body := doRequest(t, config, "POST", "/runs", AnalyzeRequest{Dataset: dataset})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, string(body))
	}

	var run Run
	if err := json.Unmarshal(body, &run); err != nil {
		t.Fatalf("Failed to unmarshal run: %v (body: %s)", err, string(body))
	}
	return run
}

// ============================================================================
// SCENARIO 1: Full Analysis Run
// ============================================================================

func TestAnalysisRun_FullPipeline(t *testing.T) {
	/*
	   SCENARIO: Submit a 10-transaction dataset with a clear split:
	   4 large night-time fraudulent transfers and 6 small daytime
	   purchases.

	   EXPECTED BEHAVIOR:
	   - Run persists with a deterministic fingerprint
	   - Metrics count 10 transactions, 4 fraudulent
	   - At least one cluster concentrates the fraudulent transfers
	*/
	config := getTestConfig()
	dataset := writeDataset(t)

	run := createRun(t, config, dataset)

	if run.ID == "" {
		t.Error("Missing run id")
	}
	if run.Fingerprint == "" {
		t.Error("Missing fingerprint")
	}
	if run.Report.Metrics.TotalTransactions != 10 {
		t.Errorf("Expected 10 transactions, got %d", run.Report.Metrics.TotalTransactions)
	}
	if run.Report.Metrics.TotalFraud != 4 {
		t.Errorf("Expected 4 fraudulent transactions, got %d", run.Report.Metrics.TotalFraud)
	}

	// The fraud transfers are far from the purchases in feature space,
	// so some cluster should hold most of them.
	maxFraud := 0
	for _, c := range run.Report.Clusters {
		if c.FraudCount > maxFraud {
			maxFraud = c.FraudCount
		}
	}
	if maxFraud < 3 {
		t.Errorf("Expected a cluster concentrating fraud (>= 3), best had %d", maxFraud)
	}

	t.Logf("✓ Run %s: %d clusters, %d rings, fraud rate %.2f",
		run.ID, len(run.Report.Clusters), len(run.Report.Rings), run.Report.Metrics.FraudRate)
}

// ============================================================================
// SCENARIO 2: Determinism (Same Dataset, Same Fingerprint)
// ============================================================================

func TestAnalysisRun_Deterministic(t *testing.T) {
	/*
	   SCENARIO: Submit the identical dataset twice.

	   EXPECTED BEHAVIOR:
	   - Both runs get distinct run IDs
	   - Both runs share the same fingerprint
	   - Reports agree on totals (seeded k-means is deterministic)
	*/
	config := getTestConfig()
	dataset := writeDataset(t)

	first := createRun(t, config, dataset)
	second := createRun(t, config, dataset)

	if first.ID == second.ID {
		t.Error("Expected distinct run IDs for repeated submissions")
	}
	if first.Fingerprint != second.Fingerprint {
		t.Errorf("Expected identical fingerprints, got %s vs %s", first.Fingerprint, second.Fingerprint)
	}
	if first.Report.Metrics.TotalFraud != second.Report.Metrics.TotalFraud {
		t.Errorf("Reports disagree on fraud count: %d vs %d",
			first.Report.Metrics.TotalFraud, second.Report.Metrics.TotalFraud)
	}

	t.Logf("✓ Deterministic: fingerprint %s", first.Fingerprint[:12])
}

// ============================================================================
// SCENARIO 3: Report Views (Clusters, Rings, Offenders)
// ============================================================================

func TestReportViews(t *testing.T) {
	/*
	   SCENARIO: After a run, fetch each report view endpoint.

	   EXPECTED BEHAVIOR:
	   - /runs/{id}/clusters returns clusters annotated with risk levels
	   - /runs/{id}/rings returns the coordinated fraud groups
	   - /runs/{id}/offenders?repeat=true returns only users with 2+
	     fraudulent transactions (user 101 has 2 in the dataset)
	*/
	config := getTestConfig()
	dataset := writeDataset(t)
	run := createRun(t, config, dataset)

	t.Run("Clusters", func(t *testing.T) {
		resp, body := doRequest(t, config, "GET", "/runs/"+run.ID+"/clusters", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(body))
		}
		var envelope clustersEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			t.Fatalf("Failed to unmarshal clusters: %v", err)
		}
		if envelope.Count != len(envelope.Clusters) {
			t.Errorf("Count %d disagrees with %d clusters", envelope.Count, len(envelope.Clusters))
		}
		for _, c := range envelope.Clusters {
			if c.RiskLevel == "" {
				t.Errorf("Cluster %d missing risk level", c.ClusterID)
			}
		}
	})

	t.Run("Rings", func(t *testing.T) {
		resp, body := doRequest(t, config, "GET", "/runs/"+run.ID+"/rings", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(body))
		}
		var envelope ringsEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			t.Fatalf("Failed to unmarshal rings: %v", err)
		}
		for _, r := range envelope.Rings {
			if r.UniqueUsers < 2 {
				t.Errorf("Ring %d has %d users, rings require at least 2", r.ID, r.UniqueUsers)
			}
		}
	})

	t.Run("RepeatOffenders", func(t *testing.T) {
		resp, body := doRequest(t, config, "GET", "/runs/"+run.ID+"/offenders?repeat=true", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(body))
		}
		var envelope offendersEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			t.Fatalf("Failed to unmarshal offenders: %v", err)
		}
		found := false
		for _, o := range envelope.Offenders {
			if o.FraudCount < 2 {
				t.Errorf("User %d returned by repeat filter with only %d fraudulent transactions", o.UserID, o.FraudCount)
			}
			if o.UserID == 101 {
				found = true
				if o.FraudCount != 2 {
					t.Errorf("User 101 expected 2 fraudulent transactions, got %d", o.FraudCount)
				}
			}
		}
		if !found {
			t.Error("Expected user 101 among repeat offenders")
		}
	})
}

// ============================================================================
// SCENARIO 4: Flag Rules
// ============================================================================

func TestFlagRules_AppliedToClusters(t *testing.T) {
	/*
	   SCENARIO: Load a flag rule, then fetch clusters for a run whose
	   fraud-heavy cluster satisfies the rule.

	   EXPECTED BEHAVIOR:
	   - PUT /flags accepts the rule set
	   - GET /flags returns it back
	   - GET /runs/{id}/clusters annotates matching clusters with the
	     rule name
	*/
	config := getTestConfig()
	dataset := writeDataset(t)
	run := createRun(t, config, dataset)

	rules := []FlagRule{
		{Name: "majority-fraud", Description: "Over half the cluster is fraudulent", Expression: "fraud_rate > 0.5"},
	}
	resp, body := doRequest(t, config, "PUT", "/flags", rules)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 loading rules, got %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doRequest(t, config, "GET", "/flags", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 listing rules, got %d", resp.StatusCode)
	}
	var loaded flagsEnvelope
	if err := json.Unmarshal(body, &loaded); err != nil {
		t.Fatalf("Failed to unmarshal rules: %v", err)
	}
	if loaded.Count != 1 || len(loaded.Rules) != 1 || loaded.Rules[0].Name != "majority-fraud" {
		t.Errorf("Expected the loaded rule back, got %+v", loaded)
	}

	resp, body = doRequest(t, config, "GET", "/runs/"+run.ID+"/clusters", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(body))
	}
	var envelope clustersEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("Failed to unmarshal clusters: %v", err)
	}

	flagged := false
	for _, c := range envelope.Clusters {
		for _, f := range c.Flags {
			if f == "majority-fraud" {
				flagged = true
			}
		}
	}
	if !flagged {
		t.Error("Expected the fraud-heavy cluster to carry the majority-fraud flag")
	}

	// Leave a clean rule set for other tests.
	doRequest(t, config, "PUT", "/flags", []FlagRule{})
}

// ============================================================================
// SCENARIO 5: Run Lifecycle (List, Get, Delete)
// ============================================================================

func TestRunLifecycle(t *testing.T) {
	config := getTestConfig()
	dataset := writeDataset(t)
	run := createRun(t, config, dataset)

	resp, body := doRequest(t, config, "GET", "/runs", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 listing runs, got %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte(run.ID)) {
		t.Errorf("Run %s missing from listing", run.ID)
	}

	resp, _ = doRequest(t, config, "GET", "/runs/"+run.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 fetching run, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, config, "DELETE", "/runs/"+run.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 deleting run, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, config, "GET", "/runs/"+run.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}

	t.Logf("✓ Lifecycle complete for run %s", run.ID)
}

// ============================================================================
// SCENARIO 6: Input Validation
// ============================================================================

func TestMissingDataset_Error(t *testing.T) {
	/*
	   SCENARIO: Request without a dataset path.

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	resp, _ := doRequest(t, config, "POST", "/runs", AnalyzeRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing dataset, got %d", resp.StatusCode)
	}
}

func TestUnreadableDataset_Error(t *testing.T) {
	/*
	   SCENARIO: Dataset path points at a file that does not exist.

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	resp, _ := doRequest(t, config, "POST", "/runs", AnalyzeRequest{
		Dataset: filepath.Join(os.TempDir(), fmt.Sprintf("no-such-%d.csv", time.Now().UnixNano())),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unreadable dataset, got %d", resp.StatusCode)
	}
}

func TestMissingTenantHeader_Error(t *testing.T) {
	/*
	   SCENARIO: Request without X-Tenant-ID header.

	   EXPECTED: HTTP 400 Bad Request (tenant is validated as a
	   required field, not as auth)
	*/
	config := getTestConfig()

	httpReq, err := http.NewRequest("GET", config.BaseURL+"/runs", nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	// NO X-Tenant-ID header!

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing tenant, got %d", resp.StatusCode)
	}
}

// ============================================================================
// SCENARIO 7: Tenant Isolation
// ============================================================================

func TestTenantIsolation(t *testing.T) {
	/*
	   SCENARIO: A run created by one tenant must not be visible to
	   another.
	*/
	config := getTestConfig()
	dataset := writeDataset(t)
	run := createRun(t, config, dataset)

	other := TestConfig{BaseURL: config.BaseURL, TenantID: "other-tenant"}
	resp, _ := doRequest(t, other, "GET", "/runs/"+run.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for cross-tenant access, got %d", resp.StatusCode)
	}

	t.Logf("✓ Tenant isolation holds for run %s", run.ID)
}
