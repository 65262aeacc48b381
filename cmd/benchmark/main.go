// Benchmark tool for measuring Harrier analysis throughput.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -sizes 1000,5000,10000
//
// This tool:
//   1. Generates synthetic transaction datasets of increasing size
//   2. Submits each dataset to POST /runs and waits for the report
//   3. Prints per-size timings and report summaries
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AnalyzeRequest matches the Harrier API request format.
type AnalyzeRequest struct {
	Dataset string `json:"dataset"`
	RunID   string `json:"runId,omitempty"`
}

// RunResponse is the subset of the run payload the benchmark reads.
type RunResponse struct {
	ID     string `json:"id"`
	Report struct {
		Clusters []struct {
			ClusterID int     `json:"clusterId"`
			Size      int     `json:"size"`
			FraudRate float64 `json:"fraudRate"`
		} `json:"clusters"`
		Rings     []json.RawMessage `json:"rings"`
		Offenders []struct {
			FraudCount int `json:"fraudCount"`
		} `json:"offenders"`
		Metrics struct {
			TotalTransactions int     `json:"totalTransactions"`
			TotalFraud        int     `json:"totalFraud"`
			FraudRate         float64 `json:"fraudRate"`
		} `json:"metrics"`
		Metadata struct {
			Iterations int   `json:"iterations"`
			Converged  bool  `json:"converged"`
			TotalMs    int64 `json:"totalMs"`
		} `json:"metadata"`
	} `json:"report"`
}

type result struct {
	size       int
	wallTime   time.Duration
	pipelineMs int64
	clusters   int
	rings      int
	repeats    int
	fraudRate  float64
	iterations int
	converged  bool
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	sizes := flag.String("sizes", "1000,5000,10000", "Comma-separated dataset sizes")
	fraudShare := flag.Float64("fraud", 0.15, "Share of fraudulent transactions (0.0-1.0)")
	users := flag.Int("users", 0, "Distinct users per dataset (0 = size/10)")
	seed := flag.Int64("seed", 42, "Random seed for dataset generation")
	keep := flag.Bool("keep", false, "Keep generated CSV files")
	flag.Parse()

	datasetSizes, err := parseSizes(*sizes)
	if err != nil {
		fmt.Printf("ERROR: invalid -sizes: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          HARRIER BENCHMARK - Batch Fraud Analytics            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nHarrier URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Sizes:       %v\n", datasetSizes)
	fmt.Printf("Fraud Share: %.2f\n", *fraudShare)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	outDir, err := os.MkdirTemp("", "harrier-bench-*")
	if err != nil {
		fmt.Printf("ERROR: failed to create dataset directory: %v\n", err)
		os.Exit(1)
	}
	if !*keep {
		defer os.RemoveAll(outDir)
	}

	var results []result
	for _, size := range datasetSizes {
		userCount := *users
		if userCount <= 0 {
			userCount = size / 10
			if userCount < 10 {
				userCount = 10
			}
		}

		path := filepath.Join(outDir, fmt.Sprintf("bench-%d.csv", size))
		if err := generateDataset(path, size, userCount, *fraudShare, *seed); err != nil {
			fmt.Printf("ERROR: failed to generate dataset of size %d: %v\n", size, err)
			os.Exit(1)
		}

		fmt.Printf("\nSubmitting %d transactions (%d users)...\n", size, userCount)
		res, err := submitRun(*baseURL, *tenantID, path, size)
		if err != nil {
			fmt.Printf("ERROR: run failed for size %d: %v\n", size, err)
			os.Exit(1)
		}
		results = append(results, res)

		fmt.Printf("✓ %d transactions in %v (pipeline %dms, %d clusters, %d rings)\n",
			size, res.wallTime.Round(time.Millisecond), res.pipelineMs, res.clusters, res.rings)
	}

	printResults(results)
	if *keep {
		fmt.Printf("Generated datasets kept in %s\n", outDir)
	}
}

func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%q is not a positive integer", part)
		}
		sizes = append(sizes, n)
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no sizes given")
	}
	return sizes, nil
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

var paymentMethods = []string{"Credit Card", "Debit Card", "Bank Transfer", "Digital Wallet"}
var transactionTypes = []string{"Purchase", "Transfer", "Withdrawal", "Deposit"}

// generateDataset writes a synthetic CSV in Harrier's expected column
// layout. Fraudulent rows skew toward large amounts, night hours, and
// bursty 24h activity so that clustering has structure to find.
func generateDataset(path string, size, userCount int, fraudShare float64, seed int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"Transaction_ID", "User_ID", "Transaction_Amount", "Transaction_Type",
		"Time_of_Transaction", "Previous_Fraudulent_Transactions", "Account_Age",
		"Number_of_Transactions_Last_24H", "Payment_Method", "Fraudulent",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed + int64(size)))
	for i := 0; i < size; i++ {
		userID := rng.Intn(userCount) + 1
		fraud := rng.Float64() < fraudShare

		var amount, hour float64
		var prevFraud, accountAge, last24h int
		if fraud {
			amount = 2000 + rng.Float64()*8000
			hour = float64(rng.Intn(6)) // night hours
			prevFraud = rng.Intn(5)
			accountAge = rng.Intn(90)
			last24h = 10 + rng.Intn(40)
		} else {
			amount = 10 + rng.Float64()*490
			hour = float64(8 + rng.Intn(14))
			prevFraud = 0
			accountAge = 180 + rng.Intn(3000)
			last24h = rng.Intn(8)
		}

		fraudFlag := "0"
		if fraud {
			fraudFlag = "1"
		}

		row := []string{
			fmt.Sprintf("tx-%07d", i),
			strconv.Itoa(userID),
			fmt.Sprintf("%.2f", amount),
			transactionTypes[rng.Intn(len(transactionTypes))],
			fmt.Sprintf("%.1f", hour),
			strconv.Itoa(prevFraud),
			strconv.Itoa(accountAge),
			strconv.Itoa(last24h),
			paymentMethods[rng.Intn(len(paymentMethods))],
			fraudFlag,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func submitRun(baseURL, tenantID, path string, size int) (result, error) {
	body, err := json.Marshal(AnalyzeRequest{Dataset: path})
	if err != nil {
		return result{}, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/runs", bytes.NewReader(body))
	if err != nil {
		return result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	client := &http.Client{Timeout: 5 * time.Minute}
	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return result{}, err
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusCreated {
		return result{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	var run RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return result{}, err
	}

	repeats := 0
	for _, o := range run.Report.Offenders {
		if o.FraudCount > 1 {
			repeats++
		}
	}

	return result{
		size:       size,
		wallTime:   elapsed,
		pipelineMs: run.Report.Metadata.TotalMs,
		clusters:   len(run.Report.Clusters),
		rings:      len(run.Report.Rings),
		repeats:    repeats,
		fraudRate:  run.Report.Metrics.FraudRate,
		iterations: run.Report.Metadata.Iterations,
		converged:  run.Report.Metadata.Converged,
	}, nil
}

func printResults(results []result) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n%10s %12s %12s %10s %8s %8s %8s\n",
		"Size", "Wall Time", "Pipeline", "Tx/sec", "Clusters", "Rings", "Repeats")
	for _, r := range results {
		tps := float64(r.size) / r.wallTime.Seconds()
		fmt.Printf("%10d %12v %10dms %10.0f %8d %8d %8d\n",
			r.size, r.wallTime.Round(time.Millisecond), r.pipelineMs, tps,
			r.clusters, r.rings, r.repeats)
	}

	fmt.Printf("\n🔍 ANALYSIS DETAIL\n")
	for _, r := range results {
		fmt.Printf("   %7d tx: fraud rate %.2f%%, %d iterations, converged=%v\n",
			r.size, r.fraudRate*100, r.iterations, r.converged)
	}

	// The similarity graph is O(n^2), so wall time should grow
	// quadratically; flag when it does not.
	if len(results) >= 2 {
		first, last := results[0], results[len(results)-1]
		sizeRatio := float64(last.size) / float64(first.size)
		timeRatio := last.wallTime.Seconds() / first.wallTime.Seconds()
		fmt.Printf("\n⏱️  SCALING\n")
		fmt.Printf("   %dx data took %.1fx time (quadratic bound %.1fx)\n",
			int(sizeRatio), timeRatio, sizeRatio*sizeRatio)
	}

	fmt.Println()
}
