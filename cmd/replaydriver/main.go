// replaydriver drives signed webhook deliveries against a running server
// and redelivers a fraction of them with the same idempotency key, checking
// that replayed decisions come back byte-identical.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antipr000/NobaServer-sub008/internal/api"
	"github.com/antipr000/NobaServer-sub008/internal/pomelo"
)

var (
	targetURL   string
	webhookPath string
	secret      string
	concurrency int
	duration    time.Duration
	replayRate  float64
)

// Metrics
var (
	totalRequests   uint64
	approved        uint64
	rejected        uint64
	replayConsist   uint64
	replayMismatch  uint64
	transportErrors uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.StringVar(&webhookPath, "path", "/webhooks/pomelo/transactions/authorizations", "Webhook path")
	flag.StringVar(&secret, "secret", "local-dev-secret", "Shared webhook secret")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.Float64Var(&replayRate, "replay", 0.2, "Fraction of deliveries replayed with the same key")
}

func main() {
	flag.Parse()
	log.Printf("Starting replay driver | Workers: %d | Duration: %s | Replay rate: %.0f%%",
		concurrency, duration, replayRate*100)

	signer := pomelo.NewSigner(secret)
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, signer, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, signer *pomelo.Signer, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		userIdx := rand.Intn(1000)
		key := fmt.Sprintf("replay-%d-%d", userIdx, time.Now().UnixNano())

		payload := map[string]interface{}{
			"transaction_id":      fmt.Sprintf("tx-%s", key),
			"user_id":             fmt.Sprintf("user-%04d", userIdx),
			"card_id":             fmt.Sprintf("card-%04d", userIdx),
			"local_amount":        "5000",
			"local_currency":      "COP",
			"settlement_amount":   "1.25",
			"settlement_currency": "USD",
			"merchant_name":       "Replay Driver Coffee",
		}
		body, _ := json.Marshal(payload)

		first, err := deliver(client, signer, key, body)
		if err != nil {
			atomic.AddUint64(&transportErrors, 1)
			continue
		}
		count(first)

		if rand.Float64() < replayRate {
			second, err := deliver(client, signer, key, body)
			if err != nil {
				atomic.AddUint64(&transportErrors, 1)
				continue
			}
			count(second)
			if bytes.Equal(first, second) {
				atomic.AddUint64(&replayConsist, 1)
			} else {
				atomic.AddUint64(&replayMismatch, 1)
			}
		}
	}
}

func deliver(client *http.Client, signer *pomelo.Signer, key string, body []byte) ([]byte, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	req, _ := http.NewRequest("POST", targetURL+webhookPath, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderEndpoint, webhookPath)
	req.Header.Set(api.HeaderTimestamp, timestamp)
	req.Header.Set(api.HeaderSignature, signer.Sign(timestamp, webhookPath, body))
	req.Header.Set(api.HeaderIdempotencyKey, key)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	atomic.AddUint64(&totalRequests, 1)
	return io.ReadAll(resp.Body)
}

func count(body []byte) {
	var decision struct {
		SummaryStatus string `json:"summary_status"`
	}
	if err := json.Unmarshal(body, &decision); err != nil {
		atomic.AddUint64(&transportErrors, 1)
		return
	}
	if decision.SummaryStatus == "APPROVED" {
		atomic.AddUint64(&approved, 1)
	} else {
		atomic.AddUint64(&rejected, 1)
	}
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)

	results := map[string]interface{}{
		"duration_sec":     d.Seconds(),
		"total_requests":   total,
		"throughput_tps":   float64(total) / d.Seconds(),
		"approved":         atomic.LoadUint64(&approved),
		"rejected":         atomic.LoadUint64(&rejected),
		"replay_identical": atomic.LoadUint64(&replayConsist),
		"replay_mismatch":  atomic.LoadUint64(&replayMismatch),
		"errors":           atomic.LoadUint64(&transportErrors),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)
}
