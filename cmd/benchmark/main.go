// Benchmark tool for load-testing the Kestrel matching pipeline.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -borrowers 5000
//
// This tool:
//   1. Registers synthetic lenders, each with a generated policy
//   2. Submits synthetic borrower applications concurrently
//   3. Polls a sample of borrowers until their matches appear
//   4. Reports apply throughput, apply latency, and time-to-match
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Application mirrors the POST /borrowers/apply request body.
type Application struct {
	FullName        string  `json:"fullName"`
	Email           string  `json:"email"`
	BusinessName    string  `json:"businessName"`
	BusinessState   string  `json:"businessState"`
	GuarantorFICO   int     `json:"guarantorFico"`
	AnnualRevenue   float64 `json:"annualRevenue"`
	YearsInBusiness float64 `json:"yearsInBusiness"`
	DSCRRatio       float64 `json:"dscrRatio"`
	LoanAmount      float64 `json:"loanAmount"`
	IsHomeowner     bool    `json:"isHomeowner"`
}

// ApplyResponse mirrors the apply endpoint response.
type ApplyResponse struct {
	BorrowerID int64  `json:"borrowerId"`
	Status     string `json:"status"`
}

// MatchesResponse mirrors the match listing endpoints.
type MatchesResponse struct {
	Count   int `json:"count"`
	Matches []struct {
		Score float64 `json:"score"`
		Tier  string  `json:"tier"`
	} `json:"matches"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	Applied        int64
	ApplyErrors    int64
	ApplyLatencyMs int64

	Sampled      int64
	Matched      int64
	TimeToMatch  int64 // summed ms across matched samples
	MatchTimeout int64
}

var states = []string{"TX", "OH", "GA", "NC", "TN", "FL", "PA", "AZ", "CO", "WA"}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	borrowers := flag.Int("borrowers", 1000, "Number of borrower applications to submit")
	lenders := flag.Int("lenders", 10, "Number of lenders to register with generated policies")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	sample := flag.Int("sample", 50, "Number of borrowers to poll for time-to-match")
	seed := flag.Int64("seed", 1, "PRNG seed for reproducible populations")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║            KESTREL BENCHMARK - Matching Pipeline              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL: %s\n", *baseURL)
	fmt.Printf("Borrowers:   %d\n", *borrowers)
	fmt.Printf("Lenders:     %d\n", *lenders)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 10 * time.Second}

	// Seed lenders with generated policies so applications have programs to
	// match against.
	fmt.Printf("\nRegistering %d lenders...\n", *lenders)
	for i := 0; i < *lenders; i++ {
		if err := createLenderWithPolicy(client, *baseURL, rng, i); err != nil {
			fmt.Printf("ERROR: failed to seed lender %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	fmt.Printf("✓ Lenders registered\n")

	fmt.Printf("\nSubmitting %d applications with %d workers...\n", *borrowers, *workers)
	start := time.Now()
	metrics, sampleIDs := runApplies(client, *baseURL, rng, *borrowers, *workers, *sample)
	applyDuration := time.Since(start)

	fmt.Printf("\nPolling %d sampled borrowers for matches...\n", len(sampleIDs))
	pollMatches(client, *baseURL, metrics, sampleIDs)

	printResults(metrics, applyDuration)
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

func createLenderWithPolicy(client *http.Client, baseURL string, rng *rand.Rand, i int) error {
	lender := map[string]string{
		"name":  fmt.Sprintf("Benchmark Capital %03d", i),
		"email": fmt.Sprintf("bench-lender-%03d@example.com", i),
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := postJSON(client, baseURL+"/lenders", lender, &created); err != nil {
		return err
	}

	// Vary the FICO floor and loan band per lender so the population splits
	// across programs and tiers.
	ficoFloor := 550 + rng.Intn(5)*25
	maxLoan := float64(250_000 + rng.Intn(8)*250_000)
	policy := map[string]any{
		"versionName":      "bench-v1",
		"restrictedStates": []string{states[rng.Intn(len(states))]},
		"programs": []map[string]any{{
			"program_name":    fmt.Sprintf("Bench Program %03d", i),
			"min_loan_amount": 10_000,
			"max_loan_amount": maxLoan,
			"rules": []map[string]any{
				{"field_name": "guarantor_fico", "operator": ">=", "value": ficoFloor, "strict": true},
				{"field_name": "dscr_ratio", "operator": ">=", "value": 1.1, "strict": false},
				{"field_name": "is_homeowner", "operator": "==", "value": true, "strict": false},
			},
		}},
	}

	req, err := json.Marshal(policy)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequest(http.MethodPut, baseURL+"/lenders/"+created.ID+"/policy", bytes.NewReader(req))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("policy status %d", resp.StatusCode)
	}
	return nil
}

func runApplies(client *http.Client, baseURL string, rng *rand.Rand, total, numWorkers, sampleSize int) (*Metrics, []int64) {
	metrics := &Metrics{}

	// Generate the population up front so the PRNG is not shared across
	// workers.
	apps := make([]Application, total)
	for i := range apps {
		apps[i] = Application{
			FullName:        fmt.Sprintf("Borrower %06d", i),
			Email:           fmt.Sprintf("bench-borrower-%06d@example.com", i),
			BusinessName:    fmt.Sprintf("Business %06d LLC", i),
			BusinessState:   states[rng.Intn(len(states))],
			GuarantorFICO:   500 + rng.Intn(350),
			AnnualRevenue:   float64(100_000 + rng.Intn(50)*100_000),
			YearsInBusiness: float64(rng.Intn(20)),
			DSCRRatio:       0.8 + rng.Float64()*1.2,
			LoanAmount:      float64(15_000 + rng.Intn(40)*25_000),
			IsHomeowner:     rng.Intn(2) == 0,
		}
	}

	var mu sync.Mutex
	var sampleIDs []int64

	work := make(chan Application, 100)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for app := range work {
				start := time.Now()
				var resp ApplyResponse
				err := postJSON(client, baseURL+"/borrowers/apply", app, &resp)
				atomic.AddInt64(&metrics.ApplyLatencyMs, time.Since(start).Milliseconds())

				if err != nil {
					atomic.AddInt64(&metrics.ApplyErrors, 1)
					continue
				}
				atomic.AddInt64(&metrics.Applied, 1)

				mu.Lock()
				if len(sampleIDs) < sampleSize {
					sampleIDs = append(sampleIDs, resp.BorrowerID)
				}
				mu.Unlock()
			}
		}()
	}

	for _, app := range apps {
		work <- app
	}
	close(work)
	wg.Wait()

	return metrics, sampleIDs
}

func pollMatches(client *http.Client, baseURL string, metrics *Metrics, sampleIDs []int64) {
	deadline := 30 * time.Second

	for _, id := range sampleIDs {
		atomic.AddInt64(&metrics.Sampled, 1)
		start := time.Now()
		matched := false

		for time.Since(start) < deadline {
			resp, err := http.Get(fmt.Sprintf("%s/borrowers/%d/matches", baseURL, id))
			if err != nil {
				break
			}
			var body MatchesResponse
			err = json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			if err != nil {
				break
			}
			if body.Count > 0 {
				matched = true
				atomic.AddInt64(&metrics.Matched, 1)
				atomic.AddInt64(&metrics.TimeToMatch, time.Since(start).Milliseconds())
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		if !matched {
			atomic.AddInt64(&metrics.MatchTimeout, 1)
		}
	}
}

func postJSON(client *http.Client, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printResults(m *Metrics, applyDuration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 APPLICATIONS\n")
	fmt.Printf("   Submitted:  %d\n", m.Applied)
	fmt.Printf("   Errors:     %d\n", m.ApplyErrors)
	fmt.Printf("   Duration:   %v\n", applyDuration.Round(time.Millisecond))
	if m.Applied > 0 {
		fmt.Printf("   Avg Latency: %.2f ms\n", float64(m.ApplyLatencyMs)/float64(m.Applied))
		fmt.Printf("   Throughput:  %.2f applies/sec\n", float64(m.Applied)/applyDuration.Seconds())
	}

	fmt.Printf("\n⏱️  TIME TO MATCH (sampled)\n")
	fmt.Printf("   Sampled:    %d\n", m.Sampled)
	fmt.Printf("   Matched:    %d\n", m.Matched)
	fmt.Printf("   No match:   %d (weak profile or poll timeout)\n", m.MatchTimeout)
	if m.Matched > 0 {
		fmt.Printf("   Avg:        %.2f ms from apply to visible match set\n", float64(m.TimeToMatch)/float64(m.Matched))
	}
	fmt.Println()
}
