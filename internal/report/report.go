// Package report writes the JSON run summary produced when poagov exits.
//
// Reports are saved to the configured directory with timestamped filenames
// so consecutive runs never overwrite each other.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dmagro/poagov/internal/metrics"
)

// MillisDuration marshals a time.Duration as an integer millisecond count.
type MillisDuration time.Duration

func (d MillisDuration) MarshalJSON() ([]byte, error) {
	ms := time.Duration(d).Milliseconds()
	return json.Marshal(ms)
}

// Ballot is one notified ballot.
type Ballot struct {
	Block      uint64 `json:"block"`
	Contract   string `json:"contract"`
	BallotID   string `json:"ballot_id"`
	BallotType string `json:"ballot_type"`
	Creator    string `json:"creator"`
}

// Latency is the per-method latency row.
type Latency struct {
	Method       string         `json:"method"`
	Calls        int            `json:"calls"`
	P50LatencyMS MillisDuration `json:"p50_latency_ms"`
	P95LatencyMS MillisDuration `json:"p95_latency_ms"`
	P99LatencyMS MillisDuration `json:"p99_latency_ms"`
	MaxLatencyMS MillisDuration `json:"max_latency_ms"`
}

// Report is the JSON-serializable run summary.
type Report struct {
	Timestamp    time.Time `json:"timestamp"`
	Network      string    `json:"network"`
	Endpoint     string    `json:"endpoint"`
	Contracts    []string  `json:"contracts"`
	FirstBlock   *uint64   `json:"first_block,omitempty"`
	LastBlock    *uint64   `json:"last_block,omitempty"`
	Windows      int       `json:"windows"`
	LimitReached bool      `json:"limit_reached,omitempty"`
	Ballots      []Ballot  `json:"ballots"`
	Latencies    []Latency `json:"latencies,omitempty"`
	Error        *string   `json:"error,omitempty"`
}

// Latencies converts tail latency summaries into rows sorted by method.
func Latencies(in map[string]metrics.TailLatency) []Latency {
	out := make([]Latency, 0, len(in))
	for method, t := range in {
		out = append(out, Latency{
			Method:       method,
			Calls:        t.Count,
			P50LatencyMS: MillisDuration(t.P50),
			P95LatencyMS: MillisDuration(t.P95),
			P99LatencyMS: MillisDuration(t.P99),
			MaxLatencyMS: MillisDuration(t.Max),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

// WriteJSON writes data to dir as {prefix}-{YYYYMMDD-HHMMSS}.json and returns
// the file path. dir is created when missing.
func WriteJSON(dir string, data interface{}, prefix string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", prefix, timestamp))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}

	return path, nil
}
