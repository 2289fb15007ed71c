package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	password    string
)

// Metrics
var (
	totalRequests uint64
	committed     uint64 // 201 receipts
	insufficient  uint64 // 422 at validation or commit
	rejected      uint64 // other 4xx
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&password, "password", "password123", "Seeded demo password")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark | Workers: %d | Duration: %s", concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, i, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

type account struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

// worker drives the full staged workflow: login once, then repeatedly
// draft -> proceed -> verify between the customer's own accounts,
// alternating direction so balances stay roughly level.
func worker(wg *sync.WaitGroup, idx int, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	email := fmt.Sprintf("demo%03d@oakbank.test", idx%50+1)
	token, err := login(client, email)
	if err != nil {
		log.Printf("worker %d: login failed: %v", idx, err)
		return
	}

	accounts, err := listAccounts(client, token)
	if err != nil || len(accounts) < 2 {
		log.Printf("worker %d: need at least 2 accounts: %v", idx, err)
		return
	}

	flip := false
	for time.Since(start) < duration {
		src, dst := accounts[0], accounts[1]
		if flip {
			src, dst = dst, src
		}
		flip = !flip

		runTransfer(client, token, src.ID, dst.Number)
	}
}

func runTransfer(client *http.Client, token, sourceID, destNumber string) {
	atomic.AddUint64(&totalRequests, 1)

	draft := struct {
		ID string `json:"id"`
	}{}
	code, err := call(client, token, "POST", "/api/v1/transfers/drafts", map[string]interface{}{
		"source_account_id":  sourceID,
		"destination_number": destNumber,
		"amount":             "1.00",
	}, &draft)
	if !tally(code, err) {
		return
	}

	code, err = call(client, token, "POST", "/api/v1/transfers/drafts/"+draft.ID+"/proceed", nil, nil)
	if !tally(code, err) {
		return
	}

	code, err = call(client, token, "POST", "/api/v1/transfers/drafts/"+draft.ID+"/verify",
		map[string]interface{}{"password": password}, nil)
	if err != nil {
		atomic.AddUint64(&failOther, 1)
		return
	}
	switch code {
	case http.StatusCreated:
		atomic.AddUint64(&committed, 1)
	case http.StatusUnprocessableEntity:
		atomic.AddUint64(&insufficient, 1)
	default:
		atomic.AddUint64(&failOther, 1)
	}
}

func tally(code int, err error) bool {
	switch {
	case err != nil:
		atomic.AddUint64(&failOther, 1)
		return false
	case code == http.StatusCreated || code == http.StatusOK:
		return true
	case code == http.StatusUnprocessableEntity:
		atomic.AddUint64(&insufficient, 1)
		return false
	case code >= 400 && code < 500:
		atomic.AddUint64(&rejected, 1)
		return false
	}
	atomic.AddUint64(&failOther, 1)
	return false
}

func login(client *http.Client, email string) (string, error) {
	out := struct {
		Token string `json:"token"`
	}{}
	code, err := call(client, "", "POST", "/api/v1/login",
		map[string]interface{}{"email": email, "password": password}, &out)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("login status %d", code)
	}
	return out.Token, nil
}

func listAccounts(client *http.Client, token string) ([]account, error) {
	var accounts []account
	code, err := call(client, token, "GET", "/api/v1/accounts", nil, &accounts)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("accounts status %d", code)
	}
	return accounts, nil
}

func call(client *http.Client, token, method, path string, payload interface{}, out interface{}) (int, error) {
	body := bytes.NewBuffer(nil)
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, targetURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	done := atomic.LoadUint64(&committed)
	insuf := atomic.LoadUint64(&insufficient)
	rej := atomic.LoadUint64(&rejected)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(done) / d.Seconds()

	results := map[string]interface{}{
		"duration_sec":       d.Seconds(),
		"workflows_started":  total,
		"throughput_tps":     tps,
		"commits":            done,
		"insufficient_funds": insuf,
		"rejected":           rej,
		"errors":             fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	file, _ := os.Create("results_workflow.json")
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
