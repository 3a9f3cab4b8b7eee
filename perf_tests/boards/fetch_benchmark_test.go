package boards_test

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// Configuration from environment, the same pattern perf_tests
// used against the orchestrator+workflow-runner chain,
// pointed here at a single running flowengine process instead.
var (
	engineURL   = getEnv("FLOWENGINE_URL", "http://localhost:8080")
	numCalls    = getEnvInt("PERF_NUM_CALLS", 10000)
	concurrency = getEnvInt("PERF_CONCURRENCY", 10)
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// BenchmarkFetchBoard measures GET /api/v1/boards/:id latency/throughput
// against a running flowengine, the read path
// transport/http's internal/cache.Cache fronts.
func BenchmarkFetchBoard(b *testing.B) {
	resp, err := http.Get(engineURL + "/health")
	if err != nil {
		b.Skip("flowengine not running")
	}
	resp.Body.Close()

	boardID := createTestBoard(b)
	url := fmt.Sprintf("%s/api/v1/boards/%s", engineURL, boardID)

	var totalBytes int64
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := http.Get(url)
		if err != nil {
			b.Fatalf("request failed: %v", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			b.Fatalf("read response: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			b.Fatalf("unexpected status: %d", resp.StatusCode)
		}
		totalBytes += int64(len(body))
	}
	b.StopTimer()

	elapsed := b.Elapsed()
	b.ReportMetric(float64(b.N)/elapsed.Seconds(), "ops/sec")
	b.ReportMetric(float64(totalBytes)/elapsed.Seconds()/1024/1024, "MB/s")
}

// TestFetchBoardConcurrent measures throughput under concurrent load,
// the single-process analogue of the multi-service
// TestFetchWorkflowsConcurrent.
func TestFetchBoardConcurrent(t *testing.T) {
	resp, err := http.Get(engineURL + "/health")
	if err != nil {
		t.Skip("flowengine not running")
	}
	resp.Body.Close()

	boardID := createTestBoardT(t)
	url := fmt.Sprintf("%s/api/v1/boards/%s", engineURL, boardID)

	callsPerWorker := numCalls / concurrency
	type stats struct {
		calls, errors int
		bytes         int64
		latency       time.Duration
	}
	results := make(chan stats, concurrency)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		go func() {
			var s stats
			for i := 0; i < callsPerWorker; i++ {
				reqStart := time.Now()
				resp, err := http.Get(url)
				if err != nil {
					s.errors++
					continue
				}
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()
				s.calls++
				s.bytes += int64(len(body))
				s.latency += time.Since(reqStart)
			}
			results <- s
		}()
	}

	var total stats
	for w := 0; w < concurrency; w++ {
		s := <-results
		total.calls += s.calls
		total.errors += s.errors
		total.bytes += s.bytes
		total.latency += s.latency
	}
	elapsed := time.Since(start)

	if total.calls == 0 {
		t.Fatalf("all requests failed, errors: %d", total.errors)
	}
	t.Logf("calls=%d errors=%d elapsed=%s ops/sec=%.1f avg_latency=%s",
		total.calls, total.errors, elapsed,
		float64(total.calls)/elapsed.Seconds(), total.latency/time.Duration(total.calls))
}

func createTestBoard(b *testing.B) string {
	return createBoard(fmt.Sprintf("perf-board-%d", time.Now().UnixNano()), func(format string, args ...interface{}) {
		b.Logf(format, args...)
	})
}

func createTestBoardT(t *testing.T) string {
	return createBoard(fmt.Sprintf("perf-board-%d", time.Now().UnixNano()), t.Logf)
}

func createBoard(id string, logf func(string, ...interface{})) string {
	body := fmt.Sprintf(`{"id":%q,"name":"perf benchmark board"}`, id)
	resp, err := http.Post(engineURL+"/api/v1/boards", "application/json", strings.NewReader(body))
	if err != nil {
		logf("create test board failed: %v", err)
		return id
	}
	resp.Body.Close()
	return id
}
