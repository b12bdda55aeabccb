package monitor

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/poagov/internal/ballot"
	"github.com/dmagro/poagov/internal/chain"
	"github.com/dmagro/poagov/internal/contract"
	"github.com/dmagro/poagov/internal/governance"
	"github.com/dmagro/poagov/internal/notify"
	"github.com/dmagro/poagov/internal/rpc"
)

// ctxNotifier records notifications and whether their context was live.
type ctxNotifier struct {
	got     []*notify.Notification
	ctxErrs []error
}

func (c *ctxNotifier) Notify(ctx context.Context, n *notify.Notification) {
	c.got = append(c.got, n)
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
}

// thresholdNode serves a Threshold V1 contract with one ballot at block 100.
// onGetLogs runs inside the eth_getLogs handler before it replies.
func thresholdNode(t *testing.T, d contract.Descriptor, onGetLogs func()) *rpc.Client {
	t.Helper()
	ev, err := d.Event()
	require.NoError(t, err)
	m, err := d.Method()
	require.NoError(t, err)
	creator := common.HexToAddress("0x82e4e61e7f5139ff0a4157a5bc687ef42294c248")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string `json:"method"`
		}
		_ = json.Unmarshal(body, &req)

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": 1}
		switch req.Method {
		case "eth_blockNumber":
			resp["result"] = hexutil.Uint64(100)
		case "eth_getLogs":
			onGetLogs()
			resp["result"] = []interface{}{map[string]interface{}{
				"address": d.Address,
				"topics": []common.Hash{
					ev.ID,
					common.BigToHash(big.NewInt(7)),
					common.BigToHash(big.NewInt(int64(ballot.ChangeThreshold))),
					common.BytesToHash(creator.Bytes()),
				},
				"data":        "0x",
				"blockNumber": hexutil.Uint64(100),
			}}
		case "eth_call":
			out, err := m.Outputs.Pack(
				big.NewInt(1538757420), big.NewInt(1539016620),
				big.NewInt(3), big.NewInt(1), false, uint8(1),
				big.NewInt(0), big.NewInt(3), big.NewInt(4),
				creator, "lower threshold",
			)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			resp["result"] = hexutil.Bytes(out)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return rpc.NewClient("fake", srv.URL, 5*time.Second)
}

func TestRunCompletesWindowCancelledMidFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	parsed, err := contract.BundledABI(contract.Threshold, contract.V1)
	require.NoError(t, err)
	d, err := contract.New(contract.Threshold, contract.V1, common.HexToAddress("0x8829ebe113535826e8af17ed51f83755f675789a"), parsed)
	require.NoError(t, err)

	client := thresholdNode(t, d, cancel)
	notifier := &ctxNotifier{}
	m := New(Config{
		Network:   "sokol",
		Contracts: []contract.Descriptor{d},
		Start:     chain.Latest(),
		BlockTime: time.Hour,
	}, client, governance.NewClient(client), notifier)

	done := make(chan struct{})
	var (
		sum    Summary
		runErr error
	)
	go func() {
		defer close(done)
		sum, runErr = m.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	require.NoError(t, runErr)
	require.Len(t, notifier.got, 1)
	assert.NoError(t, notifier.ctxErrs[0])
	assert.Equal(t, uint64(100), notifier.got[0].Log.BlockNumber)
	state, ok := notifier.got[0].Details.(*ballot.ThresholdVotingState)
	require.True(t, ok)
	assert.Equal(t, uint64(4), state.ProposedValue)
	assert.Equal(t, 1, sum.Windows)
}

func TestRunReportsFailureRacingShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gov := &cancellingGovernance{cancel: cancel}
	m := New(Config{
		Contracts: descriptors(t, contract.Keys),
		Start:     chain.Number(100),
		BlockTime: time.Millisecond,
	}, &headSource{heads: []uint64{110}}, gov, &recordingNotifier{})

	_, err := m.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errNodeDown)
}

var errNodeDown = &rpc.NetworkError{Method: "eth_getLogs", Err: io.ErrUnexpectedEOF}

// cancellingGovernance cancels the run and then fails the fetch.
type cancellingGovernance struct {
	cancel context.CancelFunc
}

func (g *cancellingGovernance) BallotCreatedLogs(context.Context, contract.Descriptor, chain.Window) ([]ballot.CreatedLog, error) {
	g.cancel()
	return nil, errNodeDown
}

func (g *cancellingGovernance) Details(context.Context, contract.Descriptor, *big.Int) (ballot.Details, error) {
	return nil, errNodeDown
}
