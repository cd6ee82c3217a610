package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	useKeys     bool
)

var (
	totalRequests uint64
	issued201     uint64
	returned200   uint64
	missing404    uint64
	conflict409   uint64
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.BoolVar(&useKeys, "idempotency", true, "Send an Idempotency-Key with every issue")
}

type entity struct {
	ID string `json:"id"`
}

type issueResponse struct {
	Data entity `json:"data"`
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	client := &http.Client{Timeout: 5 * time.Second}
	books, err := fetchIDs(client, "/api/v1/books")
	if err != nil {
		log.Fatalf("Load books: %v", err)
	}
	members, err := fetchIDs(client, "/api/v1/members")
	if err != nil {
		log.Fatalf("Load members: %v", err)
	}
	if len(books) == 0 || len(members) == 0 {
		log.Fatal("Library is empty; run the seeder first")
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, books, members)
	}
	wg.Wait()
	printResults(time.Since(start))
}

func fetchIDs(client *http.Client, path string) ([]string, error) {
	resp, err := client.Get(targetURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	var items []entity
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids, nil
}

// worker issues a book and, when that succeeds, returns it straight away.
func worker(wg *sync.WaitGroup, start time.Time, books, members []string) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		body, _ := json.Marshal(map[string]string{
			"book_id":   pickBook(books),
			"member_id": members[rand.Intn(len(members))],
		})
		req, _ := http.NewRequest(http.MethodPost, targetURL+"/api/v1/borrowings", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		if useKeys {
			req.Header.Set("Idempotency-Key", "bench-"+uuid.NewString())
		}

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}
		var issued issueResponse
		if resp.StatusCode == http.StatusCreated {
			_ = json.NewDecoder(resp.Body).Decode(&issued)
		}
		resp.Body.Close()
		record(resp.StatusCode)

		if issued.Data.ID == "" {
			continue
		}
		ret, err := client.Post(targetURL+"/api/v1/borrowings/"+issued.Data.ID+"/return", "application/json", nil)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}
		ret.Body.Close()
		record(ret.StatusCode)
	}
}

func record(code int) {
	atomic.AddUint64(&totalRequests, 1)
	switch code {
	case http.StatusCreated:
		atomic.AddUint64(&issued201, 1)
	case http.StatusOK:
		atomic.AddUint64(&returned200, 1)
	case http.StatusNotFound:
		atomic.AddUint64(&missing404, 1)
	case http.StatusConflict:
		atomic.AddUint64(&conflict409, 1)
	default:
		atomic.AddUint64(&failOther, 1)
	}
}

func pickBook(books []string) string {
	// Hotspot: 90% of traffic goes to the first book
	if workload == "hotspot" && rand.Float32() < 0.90 {
		return books[0]
	}
	return books[rand.Intn(len(books))]
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&issued201)
	s200 := atomic.LoadUint64(&returned200)
	f404 := atomic.LoadUint64(&missing404)
	f409 := atomic.LoadUint64(&conflict409)
	fErr := atomic.LoadUint64(&failOther)

	var rejectRate float64
	if total > 0 {
		rejectRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":           workload,
		"duration_sec":       d.Seconds(),
		"total_requests":     total,
		"throughput_rps":     float64(total) / d.Seconds(),
		"issued":             s201,
		"returned":           s200,
		"not_found":          f404,
		"unavailable":        f409,
		"unavailable_pct":    rejectRate,
		"errors":             fErr,
		"idempotency_header": useKeys,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("save results: %v", err)
		return
	}
	defer file.Close()
	_ = json.NewEncoder(file).Encode(results)
}
