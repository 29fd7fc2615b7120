// simulate drives concurrent traffic at a running api-server to demonstrate
// that the conditional transition writes reject the loser of a
// double-submission race instead of double-firing notifications.
//
// It mints its own portal tokens with JWT_SECRET, creates a pool of
// appointment action records, then has workers fire paired identical
// requests (cancel, reschedule, confirm-attendance) plus status reads, and
// reports success/conflict/error counts and latency percentiles per
// operation.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/brightdent/appointment-actions/internal/config"
)

type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
	Records    int
}

type target struct {
	actionID uuid.UUID
	token    string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusBadRequest || status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, l := range sorted {
		total += l
	}
	avg = total / time.Duration(len(sorted))
	p50 = sorted[len(sorted)/2]
	p95 = sorted[len(sorted)*95/100]
	return avg, p50, p95
}

func main() {
	sim := SimConfig{}
	flag.StringVar(&sim.APIBaseURL, "api", "http://localhost:8080", "api-server base URL")
	flag.DurationVar(&sim.Duration, "duration", 30*time.Second, "how long to run")
	flag.IntVar(&sim.Workers, "workers", 16, "concurrent workers")
	flag.IntVar(&sim.Records, "records", 50, "appointment action records to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Printf("creating %d appointment action records...\n", sim.Records)
	targets := make([]target, 0, sim.Records)
	for i := 0; i < sim.Records; i++ {
		t, err := createTarget(client, sim.APIBaseURL, cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create record: %v\n", err)
			os.Exit(1)
		}
		targets = append(targets, t)
	}

	metrics := map[string]*OperationMetrics{
		"status":             {},
		"cancel":             {},
		"reschedule":         {},
		"confirm-attendance": {},
	}

	fmt.Printf("running %d workers for %s...\n", sim.Workers, sim.Duration)
	deadline := time.Now().Add(sim.Duration)

	var wg sync.WaitGroup
	for w := 0; w < sim.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for time.Now().Before(deadline) {
				t := targets[rng.Intn(len(targets))]

				switch rng.Intn(10) {
				case 0, 1, 2, 3, 4, 5:
					doGet(client, sim.APIBaseURL, t, metrics["status"])
				case 6, 7:
					// Paired identical requests: at most one may win.
					doublePost(client, sim.APIBaseURL, t, "cancel",
						map[string]any{"reason": "simulated conflict"}, metrics["cancel"])
				case 8:
					doublePost(client, sim.APIBaseURL, t, "reschedule",
						map[string]any{"reason": "simulated conflict"}, metrics["reschedule"])
				case 9:
					doublePost(client, sim.APIBaseURL, t, "confirm-attendance", nil,
						metrics["confirm-attendance"])
				}
			}
		}(int64(w))
	}
	wg.Wait()

	fmt.Println("\nresults:")
	for _, name := range []string{"status", "cancel", "reschedule", "confirm-attendance"} {
		m := metrics[name]
		avg, p50, p95 := m.Stats()
		fmt.Printf("  %-20s total=%-6d success=%-6d conflict=%-6d error=%-6d avg=%s p50=%s p95=%s\n",
			name, m.Total, m.Success, m.Conflict, m.Error, avg, p50, p95)
	}
}

func createTarget(client *http.Client, baseURL, secret, issuer string) (target, error) {
	patientID := uuid.NewString()

	token, err := mintToken(secret, issuer, patientID)
	if err != nil {
		return target{}, err
	}

	start := time.Now().Add(time.Duration(2+rand.Intn(48)) * time.Hour).Truncate(time.Minute)
	body := map[string]any{
		"prodentisId":        fmt.Sprintf("SIM-%06d", rand.Intn(1000000)),
		"appointmentDate":    start.Format(time.RFC3339),
		"appointmentEndDate": start.Add(30 * time.Minute).Format(time.RFC3339),
		"doctorName":         "Dr. Simulated",
	}

	status, data, err := postURL(client, baseURL+"/appointment-actions", token, body)
	if err != nil {
		return target{}, err
	}
	if status != http.StatusCreated {
		return target{}, fmt.Errorf("create returned %d: %s", status, data)
	}

	var resp struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return target{}, err
	}

	return target{actionID: resp.ID, token: token}, nil
}

func mintToken(secret, issuer, patientID string) (string, error) {
	claims := jwt.MapClaims{
		"iss":          issuer,
		"sub":          patientID,
		"patient_id":   patientID,
		"prodentis_id": fmt.Sprintf("SIM-%06d", rand.Intn(1000000)),
		"phone":        "+48600000000",
		"exp":          time.Now().Add(2 * time.Hour).Unix(),
		"iat":          time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func doGet(client *http.Client, baseURL string, t target, m *OperationMetrics) {
	url := fmt.Sprintf("%s/appointment-actions/%s/status", baseURL, t.actionID)

	start := time.Now()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+t.token)
	resp, err := client.Do(req)
	if err != nil {
		m.Record(time.Since(start), 0)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	m.Record(time.Since(start), resp.StatusCode)
}

func doublePost(client *http.Client, baseURL string, t target, op string, body map[string]any, m *OperationMetrics) {
	url := fmt.Sprintf("%s/appointment-actions/%s/%s", baseURL, t.actionID, op)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			status, _, err := postURL(client, url, t.token, body)
			if err != nil {
				m.Record(time.Since(start), 0)
				return
			}
			m.Record(time.Since(start), status)
		}()
	}
	wg.Wait()
}

func postURL(client *http.Client, url, token string, body map[string]any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, data, nil
}
