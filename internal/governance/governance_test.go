package governance

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/poagov/internal/ballot"
	"github.com/dmagro/poagov/internal/chain"
	"github.com/dmagro/poagov/internal/contract"
	"github.com/dmagro/poagov/internal/rpc"
)

var (
	contractAddr = common.HexToAddress("0x8829ebe113535826e8af17ed51f83755f675789a")
	creatorAddr  = common.HexToAddress("0x82e4e61e7f5139ff0a4157a5bc687ef42294c248")
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC requests from per-method handlers and counts
// every HTTP request it receives.
type fakeNode struct {
	mu       sync.Mutex
	requests []rpcRequest
	handlers map[string]func(params []json.RawMessage) interface{}
}

func newFakeNode(t *testing.T) (*fakeNode, *rpc.Client) {
	t.Helper()
	n := &fakeNode{handlers: map[string]func([]json.RawMessage) interface{}{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rpcRequest
		_ = json.Unmarshal(body, &req)

		n.mu.Lock()
		n.requests = append(n.requests, req)
		h := n.handlers[req.Method]
		n.mu.Unlock()

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": 1}
		if h == nil {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		} else {
			resp["result"] = h(req.Params)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return n, rpc.NewClient("fake", srv.URL, time.Second)
}

func (n *fakeNode) handle(method string, h func(params []json.RawMessage) interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) requestCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.requests)
}

func descriptor(t *testing.T, kind contract.Kind, version contract.Version) contract.Descriptor {
	t.Helper()
	parsed, err := contract.BundledABI(kind, version)
	require.NoError(t, err)
	d, err := contract.New(kind, version, contractAddr, parsed)
	require.NoError(t, err)
	return d
}

func createdLog(t *testing.T, d contract.Descriptor, block uint64, id, ballotType int64) map[string]interface{} {
	t.Helper()
	ev, err := d.Event()
	require.NoError(t, err)
	return map[string]interface{}{
		"address": d.Address,
		"topics": []common.Hash{
			ev.ID,
			common.BigToHash(big.NewInt(id)),
			common.BigToHash(big.NewInt(ballotType)),
			common.BytesToHash(creatorAddr.Bytes()),
		},
		"data":        "0x",
		"blockNumber": hexutil.Uint64(block),
	}
}

func TestBallotCreatedLogs(t *testing.T) {
	node, client := newFakeNode(t)
	d := descriptor(t, contract.Keys, contract.V2)

	node.handle("eth_getLogs", func([]json.RawMessage) interface{} {
		return []interface{}{
			createdLog(t, d, 105, 3, int64(ballot.AddKey)),
			createdLog(t, d, 107, 4, int64(ballot.SwapKey)),
		}
	})

	gov := NewClient(client)
	logs, err := gov.BallotCreatedLogs(context.Background(), d, chain.Window{Start: 100, Stop: 110})
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, uint64(105), logs[0].BlockNumber)
	assert.Equal(t, int64(3), logs[0].BallotID.Int64())
	assert.Equal(t, ballot.AddKey, logs[0].BallotType)
	assert.Equal(t, creatorAddr, logs[0].Creator)
	assert.Equal(t, ballot.SwapKey, logs[1].BallotType)

	// The filter targets the contract, the event and the window.
	require.Equal(t, 1, node.requestCount())
	var filter struct {
		Address   common.Address `json:"address"`
		Topics    []common.Hash  `json:"topics"`
		FromBlock hexutil.Uint64 `json:"fromBlock"`
		ToBlock   hexutil.Uint64 `json:"toBlock"`
	}
	require.NoError(t, json.Unmarshal(node.requests[0].Params[0], &filter))
	ev, _ := d.Event()
	assert.Equal(t, contractAddr, filter.Address)
	assert.Equal(t, []common.Hash{ev.ID}, filter.Topics)
	assert.Equal(t, hexutil.Uint64(100), filter.FromBlock)
	assert.Equal(t, hexutil.Uint64(110), filter.ToBlock)
}

func TestBallotCreatedLogsRejectsUnknownBallotType(t *testing.T) {
	node, client := newFakeNode(t)
	d := descriptor(t, contract.Keys, contract.V2)
	node.handle("eth_getLogs", func([]json.RawMessage) interface{} {
		return []interface{}{createdLog(t, d, 105, 3, 7)}
	})

	_, err := NewClient(client).BallotCreatedLogs(context.Background(), d, chain.Window{Start: 100, Stop: 110})
	var unknown *ballot.UnknownCodeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "7", unknown.Code)
}

func TestBallotCreatedLogsMalformed(t *testing.T) {
	d := descriptor(t, contract.Threshold, contract.V1)
	ev, err := d.Event()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(l map[string]interface{})
	}{
		{"missing block number", func(l map[string]interface{}) { delete(l, "blockNumber") }},
		{"missing creator topic", func(l map[string]interface{}) {
			l["topics"] = l["topics"].([]common.Hash)[:3]
		}},
		{"wrong signature", func(l map[string]interface{}) {
			topics := l["topics"].([]common.Hash)
			topics[0] = common.HexToHash("0x01")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, client := newFakeNode(t)
			node.handle("eth_getLogs", func([]json.RawMessage) interface{} {
				l := createdLog(t, d, 50, 1, int64(ballot.ChangeThreshold))
				tt.mutate(l)
				return []interface{}{l}
			})
			_, err := NewClient(client).BallotCreatedLogs(context.Background(), d, chain.Window{Start: 1, Stop: 60})
			var malformed *MalformedEventLogError
			require.ErrorAs(t, err, &malformed, "event %s", ev.Name)
		})
	}
}

func TestThresholdVotingStateRoundTrip(t *testing.T) {
	node, client := newFakeNode(t)
	d := descriptor(t, contract.Threshold, contract.V1)
	m, err := d.Method()
	require.NoError(t, err)

	var gotID *big.Int
	node.handle("eth_call", func(params []json.RawMessage) interface{} {
		var call struct {
			To   common.Address `json:"to"`
			Data hexutil.Bytes  `json:"data"`
		}
		require.NoError(t, json.Unmarshal(params[0], &call))
		assert.Equal(t, contractAddr, call.To)
		assert.Equal(t, m.ID, []byte(call.Data[:4]))

		var tag string
		require.NoError(t, json.Unmarshal(params[1], &tag))
		assert.Equal(t, "latest", tag)

		in, err := m.Inputs.Unpack(call.Data[4:])
		require.NoError(t, err)
		gotID = in[0].(*big.Int)

		out, err := m.Outputs.Pack(
			big.NewInt(1538757420), big.NewInt(1539016620),
			big.NewInt(3), big.NewInt(1), false, uint8(1),
			big.NewInt(0), big.NewInt(3), big.NewInt(4),
			creatorAddr, "lower threshold",
		)
		require.NoError(t, err)
		return hexutil.Encode(out)
	})

	state, err := NewClient(client).VotingState(context.Background(), d, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), gotID.Int64())

	threshold, ok := state.(*ballot.ThresholdVotingState)
	require.True(t, ok, "got %T", state)
	assert.Equal(t, uint64(4), threshold.ProposedValue)
	assert.Equal(t, creatorAddr, threshold.Creator)
	assert.Equal(t, ballot.QuorumInProgress, threshold.QuorumState)
	assert.Equal(t, "lower threshold", threshold.Memo)
}

func TestBallotInfoAddsVoterArgument(t *testing.T) {
	node, client := newFakeNode(t)
	d := descriptor(t, contract.Proxy, contract.V2)
	m, err := d.Method()
	require.NoError(t, err)
	require.Len(t, m.Inputs, 2)

	proposed := common.HexToAddress("0x5555555555555555555555555555555555555555")
	node.handle("eth_call", func(params []json.RawMessage) interface{} {
		var call struct {
			Data hexutil.Bytes `json:"data"`
		}
		require.NoError(t, json.Unmarshal(params[0], &call))
		in, err := m.Inputs.Unpack(call.Data[4:])
		require.NoError(t, err)
		require.Len(t, in, 2)
		assert.Equal(t, common.Address{}, in[1])

		out, err := m.Outputs.Pack(
			big.NewInt(1538757420), big.NewInt(1539016620),
			big.NewInt(2), big.NewInt(1), false,
			proposed, big.NewInt(1), creatorAddr, "move proxy", false, false,
		)
		require.NoError(t, err)
		return hexutil.Encode(out)
	})

	details, err := NewClient(client).Details(context.Background(), d, big.NewInt(12))
	require.NoError(t, err)
	info, ok := details.(*ballot.ProxyBallotInfo)
	require.True(t, ok, "got %T", details)
	assert.Equal(t, proposed, info.ProposedValue)
}

func TestEmissionBallotInfoSingleInput(t *testing.T) {
	node, client := newFakeNode(t)
	d := descriptor(t, contract.Emission, contract.V2)
	m, err := d.Method()
	require.NoError(t, err)
	require.Len(t, m.Inputs, 1)

	receiver := common.HexToAddress("0x6666666666666666666666666666666666666666")
	node.handle("eth_call", func([]json.RawMessage) interface{} {
		out, err := m.Outputs.Pack(
			big.NewInt(1538757000), big.NewInt(1538757420), big.NewInt(1539016620),
			false, true, creatorAddr, "emission",
			big.NewInt(5000), big.NewInt(0), big.NewInt(1), big.NewInt(4), receiver,
		)
		require.NoError(t, err)
		return hexutil.Encode(out)
	})

	info, err := NewClient(client).BallotInfo(context.Background(), d, big.NewInt(2))
	require.NoError(t, err)
	emission := info.(*ballot.EmissionBallotInfo)
	assert.Equal(t, receiver, emission.Receiver)
	assert.Equal(t, uint64(4), emission.SendVotes)
	assert.True(t, emission.IsFinalized)
}

func TestEmissionV1FailsBeforeNetwork(t *testing.T) {
	node, client := newFakeNode(t)
	gov := NewClient(client)

	// contract.New refuses this pair, so build the descriptor by hand.
	parsed, err := contract.BundledABI(contract.Emission, contract.V2)
	require.NoError(t, err)
	d := contract.Descriptor{Kind: contract.Emission, Version: contract.V1, Address: contractAddr, ABI: parsed}

	_, err = gov.VotingState(context.Background(), d, big.NewInt(1))
	assert.ErrorIs(t, err, contract.ErrEmissionV1NotSupported)

	_, err = gov.Details(context.Background(), d, big.NewInt(1))
	assert.ErrorIs(t, err, contract.ErrEmissionV1NotSupported)

	assert.Equal(t, 0, node.requestCount())
}

func TestVotingStateRemoteError(t *testing.T) {
	_, client := newFakeNode(t)
	d := descriptor(t, contract.Keys, contract.V1)

	_, err := NewClient(client).VotingState(context.Background(), d, big.NewInt(1))
	var remote *rpc.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, -32601, remote.Code)
}

func TestVersionMismatch(t *testing.T) {
	_, client := newFakeNode(t)
	gov := NewClient(client)

	_, err := gov.BallotInfo(context.Background(), descriptor(t, contract.Keys, contract.V1), big.NewInt(1))
	assert.Error(t, err)
	_, err = gov.VotingState(context.Background(), descriptor(t, contract.Keys, contract.V2), big.NewInt(1))
	assert.Error(t, err)
}
