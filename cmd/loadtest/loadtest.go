package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

const accountHeader = "X-Account"

type LoadTestConfig struct {
	BaseURL             string
	ConcurrentUsers     int
	TestDurationSeconds int
	RampUpSeconds       int
	StarCount           int
	FirstStarID         int64
	StartingFunds       int64
}

type TestResult struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	BuyAttempts        int64
	SuccessfulBuys     int64
	LostRaces          int64
	Relists            int64
	ResponseTimes      []time.Duration
	Errors             map[string]int64
	mutex              sync.RWMutex
}

type PerformanceMetrics struct {
	StartTime          time.Time
	EndTime            time.Time
	TotalDuration      time.Duration
	ThroughputRPS      float64
	SuccessfulTPS      float64
	P50ResponseTime    time.Duration
	P95ResponseTime    time.Duration
	P99ResponseTime    time.Duration
	ErrorRate          float64
	BuySuccessRate     float64
	LostRaceRate       float64
	TotalStarsSold     int64
	TotalStarsRelisted int64
}

type LoadTester struct {
	config *LoadTestConfig
	result *TestResult
	client *http.Client
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func NewLoadTester(config *LoadTestConfig) *LoadTester {
	return &LoadTester{
		config: config,
		result: &TestResult{
			ResponseTimes: make([]time.Duration, 0),
			Errors:        make(map[string]int64),
		},
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        1000,
				MaxIdleConnsPerHost: 100,
				MaxConnsPerHost:     200,
			},
		},
	}
}

func userAccount(userID int) string {
	return fmt.Sprintf("user_%d", userID)
}

func (lt *LoadTester) starID(i int) int64 {
	return lt.config.FirstStarID + int64(i)
}

func (lt *LoadTester) call(method, path, account string, body interface{}) (int, *apiResponse, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, lt.config.BaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set(accountHeader, account)
	}

	start := time.Now()
	resp, err := lt.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return 0, nil, duration, err
	}
	defer resp.Body.Close()

	var parsed apiResponse
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, duration, err
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &parsed)
	}

	return resp.StatusCode, &parsed, duration, nil
}

func (lt *LoadTester) recordResponse(duration time.Duration, success bool, operation string, status int, err error) {
	lt.result.mutex.Lock()
	defer lt.result.mutex.Unlock()

	atomic.AddInt64(&lt.result.TotalRequests, 1)
	lt.result.ResponseTimes = append(lt.result.ResponseTimes, duration)

	if success {
		atomic.AddInt64(&lt.result.SuccessfulRequests, 1)
		return
	}

	atomic.AddInt64(&lt.result.FailedRequests, 1)
	switch {
	case err != nil:
		lt.result.Errors[fmt.Sprintf("%s: %s", operation, err.Error())]++
	default:
		lt.result.Errors[fmt.Sprintf("%s: HTTP %d", operation, status)]++
	}
}

// Setup mints StarCount stars to a single seller, lists each of them and
// funds every simulated user.
func (lt *LoadTester) Setup() error {
	const seller = "seller"

	for i := 0; i < lt.config.StarCount; i++ {
		id := lt.starID(i)

		status, resp, _, err := lt.call(http.MethodPost, "/stars", seller, map[string]interface{}{
			"id":          id,
			"name":        fmt.Sprintf("Load star %d", id),
			"description": "Seeded by the load tester",
			"ra":          fmt.Sprintf("%d.%d", rand.Intn(24), rand.Intn(60)),
			"dec":         fmt.Sprintf("%d.%d", rand.Intn(180)-90, rand.Intn(60)),
			"mag":         fmt.Sprintf("%d.%d", rand.Intn(20), rand.Intn(10)),
		})
		if err != nil {
			return fmt.Errorf("mint star %d: %w", id, err)
		}
		if status != http.StatusCreated && status != http.StatusConflict {
			return fmt.Errorf("mint star %d: HTTP %d %s", id, status, resp.Message)
		}

		status, resp, _, err = lt.call(http.MethodPost, fmt.Sprintf("/stars/%d/sale", id), seller,
			map[string]int64{"price": int64(rand.Intn(100) + 1)})
		if err != nil {
			return fmt.Errorf("list star %d: %w", id, err)
		}
		if status != http.StatusOK && status != http.StatusForbidden {
			return fmt.Errorf("list star %d: HTTP %d %s", id, status, resp.Message)
		}
	}

	for u := 0; u < lt.config.ConcurrentUsers; u++ {
		status, resp, _, err := lt.call(http.MethodPost, fmt.Sprintf("/accounts/%s/funds", userAccount(u)), "",
			map[string]int64{"amount": lt.config.StartingFunds})
		if err != nil {
			return fmt.Errorf("fund %s: %w", userAccount(u), err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("fund %s: HTTP %d %s", userAccount(u), status, resp.Message)
		}
	}

	return nil
}

func (lt *LoadTester) simulateUser(ctx context.Context, userID int, wg *sync.WaitGroup) {
	defer wg.Done()

	account := userAccount(userID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			id := lt.starID(rand.Intn(lt.config.StarCount))

			price, listed := lt.getSalePrice(id)
			if listed {
				if lt.performBuy(id, account, price) {
					lt.performRelist(id, account)
				}
			}

			time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
		}
	}
}

func (lt *LoadTester) getSalePrice(id int64) (int64, bool) {
	status, resp, duration, err := lt.call(http.MethodGet, fmt.Sprintf("/stars/%d/sale", id), "", nil)

	// An unlisted star is an expected answer, not a failure.
	success := err == nil && (status == http.StatusOK || status == http.StatusNotFound)
	lt.recordResponse(duration, success, "sale_price", status, err)

	if err != nil || status != http.StatusOK {
		return 0, false
	}

	var data struct {
		Price int64 `json:"price"`
	}
	if json.Unmarshal(resp.Data, &data) != nil {
		return 0, false
	}
	return data.Price, true
}

func (lt *LoadTester) performBuy(id int64, account string, price int64) bool {
	atomic.AddInt64(&lt.result.BuyAttempts, 1)

	// Overpay now and then so refunds get exercised.
	payment := price
	if rand.Intn(4) == 0 {
		payment += int64(rand.Intn(10) + 1)
	}

	status, _, duration, err := lt.call(http.MethodPost, fmt.Sprintf("/stars/%d/buy", id), account,
		map[string]int64{"payment": payment})

	switch {
	case err == nil && status == http.StatusOK:
		atomic.AddInt64(&lt.result.SuccessfulBuys, 1)
		lt.recordResponse(duration, true, "buy", status, nil)
		return true
	case err == nil && (status == http.StatusConflict || status == http.StatusNotFound):
		// Another buyer got there first.
		atomic.AddInt64(&lt.result.LostRaces, 1)
		lt.recordResponse(duration, true, "buy", status, nil)
	default:
		lt.recordResponse(duration, false, "buy", status, err)
	}

	return false
}

func (lt *LoadTester) performRelist(id int64, account string) {
	status, _, duration, err := lt.call(http.MethodPost, fmt.Sprintf("/stars/%d/sale", id), account,
		map[string]int64{"price": int64(rand.Intn(100) + 1)})

	success := err == nil && status == http.StatusOK
	if success {
		atomic.AddInt64(&lt.result.Relists, 1)
	}
	lt.recordResponse(duration, success, "relist", status, err)
}

func (lt *LoadTester) Run() *PerformanceMetrics {
	fmt.Printf("Starting load test with %d concurrent users for %d seconds\n",
		lt.config.ConcurrentUsers, lt.config.TestDurationSeconds)

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(lt.config.TestDurationSeconds)*time.Second)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, stopping test...")
		cancel()
	}()

	startTime := time.Now()
	var wg sync.WaitGroup

	userInterval := time.Duration(lt.config.RampUpSeconds) * time.Second / time.Duration(lt.config.ConcurrentUsers)

	for i := 0; i < lt.config.ConcurrentUsers; i++ {
		wg.Add(1)
		go lt.simulateUser(ctx, i, &wg)

		if i < lt.config.ConcurrentUsers-1 {
			time.Sleep(userInterval)
		}
	}

	go lt.monitorProgress(ctx, startTime)

	wg.Wait()
	endTime := time.Now()

	return lt.calculateMetrics(startTime, endTime)
}

func (lt *LoadTester) monitorProgress(ctx context.Context, startTime time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(startTime)
			totalReqs := atomic.LoadInt64(&lt.result.TotalRequests)
			buys := atomic.LoadInt64(&lt.result.SuccessfulBuys)

			fmt.Printf("[%s] Requests: %d, RPS: %.1f, Stars sold: %d\n",
				elapsed.Round(time.Second), totalReqs, float64(totalReqs)/elapsed.Seconds(), buys)
		}
	}
}

func (lt *LoadTester) calculateMetrics(startTime, endTime time.Time) *PerformanceMetrics {
	lt.result.mutex.RLock()
	defer lt.result.mutex.RUnlock()

	totalDuration := endTime.Sub(startTime)
	totalRequests := atomic.LoadInt64(&lt.result.TotalRequests)
	successfulRequests := atomic.LoadInt64(&lt.result.SuccessfulRequests)
	buyAttempts := atomic.LoadInt64(&lt.result.BuyAttempts)

	metrics := &PerformanceMetrics{
		StartTime:          startTime,
		EndTime:            endTime,
		TotalDuration:      totalDuration,
		TotalStarsSold:     atomic.LoadInt64(&lt.result.SuccessfulBuys),
		TotalStarsRelisted: atomic.LoadInt64(&lt.result.Relists),
	}

	if totalDuration.Seconds() > 0 {
		metrics.ThroughputRPS = float64(totalRequests) / totalDuration.Seconds()
		metrics.SuccessfulTPS = float64(successfulRequests) / totalDuration.Seconds()
	}

	if totalRequests > 0 {
		metrics.ErrorRate = float64(atomic.LoadInt64(&lt.result.FailedRequests)) / float64(totalRequests) * 100
	}

	if buyAttempts > 0 {
		metrics.BuySuccessRate = float64(metrics.TotalStarsSold) / float64(buyAttempts) * 100
		metrics.LostRaceRate = float64(atomic.LoadInt64(&lt.result.LostRaces)) / float64(buyAttempts) * 100
	}

	if len(lt.result.ResponseTimes) > 0 {
		metrics.P50ResponseTime = calculatePercentile(lt.result.ResponseTimes, 50)
		metrics.P95ResponseTime = calculatePercentile(lt.result.ResponseTimes, 95)
		metrics.P99ResponseTime = calculatePercentile(lt.result.ResponseTimes, 99)
	}

	return metrics
}

func (lt *LoadTester) TopErrors(n int) []string {
	lt.result.mutex.RLock()
	defer lt.result.mutex.RUnlock()

	keys := make([]string, 0, len(lt.result.Errors))
	for k := range lt.result.Errors {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lt.result.Errors[keys[i]] > lt.result.Errors[keys[j]]
	})

	out := make([]string, 0, n)
	for _, k := range keys[:min(n, len(keys))] {
		out = append(out, fmt.Sprintf("%s (%d)", k, lt.result.Errors[k]))
	}
	return out
}

func calculatePercentile(durations []time.Duration, percentile int) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	index := int(float64(len(sorted)) * float64(percentile) / 100.0)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	if index < 0 {
		index = 0
	}

	return sorted[index]
}

func (pm *PerformanceMetrics) PrintReport() {
	fmt.Printf("PERFORMANCE TEST RESULTS\n")
	fmt.Printf("Test Duration: %v\n", pm.TotalDuration.Round(time.Second))
	fmt.Printf("Start Time: %s\n", pm.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("End Time: %s\n", pm.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("\n")

	fmt.Printf("THROUGHPUT METRICS:\n")
	fmt.Printf("- Total RPS: %.2f requests/second\n", pm.ThroughputRPS)
	fmt.Printf("- Successful TPS: %.2f transactions/second\n", pm.SuccessfulTPS)
	fmt.Printf("- Error Rate: %.2f%%\n", pm.ErrorRate)
	fmt.Printf("\n")

	fmt.Printf("RESPONSE TIME METRICS:\n")
	fmt.Printf("- P50 Response Time: %v\n", pm.P50ResponseTime.Round(time.Millisecond))
	fmt.Printf("- P95 Response Time: %v\n", pm.P95ResponseTime.Round(time.Millisecond))
	fmt.Printf("- P99 Response Time: %v\n", pm.P99ResponseTime.Round(time.Millisecond))
	fmt.Printf("\n")

	fmt.Printf("MARKET METRICS:\n")
	fmt.Printf("- Stars Sold: %d\n", pm.TotalStarsSold)
	fmt.Printf("- Stars Relisted: %d\n", pm.TotalStarsRelisted)
	fmt.Printf("- Buy Success Rate: %.2f%%\n", pm.BuySuccessRate)
	fmt.Printf("- Lost Race Rate: %.2f%%\n", pm.LostRaceRate)
	fmt.Printf("\n")
}

func (pm *PerformanceMetrics) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(pm, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
