package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/poagov/internal/metrics"
)

func TestWriteJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	last := uint64(120)
	r := Report{
		Network:   "core",
		Contracts: []string{"keys/v2@0x0000000000000000000000000000000000000001"},
		LastBlock: &last,
		Windows:   3,
		Ballots:   []Ballot{{Block: 110, BallotID: "7", BallotType: "AddKey"}},
	}

	path, err := WriteJSON(dir, r, "run")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "run-"))
	assert.Equal(t, ".json", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "core", decoded["network"])
	assert.EqualValues(t, 120, decoded["last_block"])
	assert.NotContains(t, decoded, "first_block")
	assert.NotContains(t, decoded, "error")
}

func TestLatencies(t *testing.T) {
	rows := Latencies(map[string]metrics.TailLatency{
		"eth_getLogs":     {Count: 2, P50: 15 * time.Millisecond, Max: 30 * time.Millisecond},
		"eth_blockNumber": {Count: 1, P50: 2 * time.Millisecond},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "eth_blockNumber", rows[0].Method)

	b, err := json.Marshal(rows[1])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"p50_latency_ms":15`)
	assert.Contains(t, string(b), `"max_latency_ms":30`)
}
