package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/poagov/internal/numeric"
)

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *[]Request) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []Request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req Request
		_ = json.Unmarshal(raw, &req)
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestCallEnvelope(t *testing.T) {
	srv, seen := newTestServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"0x10"}`)
	c := NewClient("test", srv.URL, time.Second)

	result, err := c.Call(context.Background(), "eth_blockNumber")
	require.NoError(t, err)
	assert.JSONEq(t, `"0x10"`, string(result))

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, "eth_blockNumber", req.Method)
	assert.Equal(t, 1, req.ID)
	assert.NotNil(t, req.Params)
	assert.Empty(t, req.Params)
}

func TestCallErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "remote error",
			status: http.StatusOK,
			body:   `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"execution reverted"}}`,
			check: func(t *testing.T, err error) {
				var remote *RemoteError
				require.ErrorAs(t, err, &remote)
				assert.Equal(t, -32000, remote.Code)
				assert.Equal(t, "execution reverted", remote.Message)
			},
		},
		{
			name:   "invalid json",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				var proto *ProtocolError
				require.ErrorAs(t, err, &proto)
			},
		},
		{
			name:   "batch response",
			status: http.StatusOK,
			body:   `[{"jsonrpc":"2.0","id":1,"result":"0x1"}]`,
			check: func(t *testing.T, err error) {
				var proto *ProtocolError
				require.ErrorAs(t, err, &proto)
			},
		},
		{
			name:   "missing result",
			status: http.StatusOK,
			body:   `{"jsonrpc":"2.0","id":1}`,
			check: func(t *testing.T, err error) {
				var proto *ProtocolError
				require.ErrorAs(t, err, &proto)
			},
		},
		{
			name:   "server error status",
			status: http.StatusBadGateway,
			body:   `bad gateway`,
			check: func(t *testing.T, err error) {
				var netErr *NetworkError
				require.ErrorAs(t, err, &netErr)
				assert.Equal(t, http.StatusBadGateway, netErr.StatusCode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, tt.body)
			c := NewClient("test", srv.URL, time.Second)
			_, err := c.Call(context.Background(), "eth_blockNumber")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCallConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient("test", url, time.Second)
	_, err := c.Call(context.Background(), "eth_blockNumber")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestCallDoesNotRetry(t *testing.T) {
	srv, seen := newTestServer(t, http.StatusServiceUnavailable, "")
	c := NewClient("test", srv.URL, time.Second)
	_, err := c.Call(context.Background(), "eth_blockNumber")
	require.Error(t, err)
	assert.Len(t, *seen, 1)
}

type recordingObserver struct {
	methods []string
	errs    []error
}

func (r *recordingObserver) ObserveCall(method string, _ time.Duration, err error) {
	r.methods = append(r.methods, method)
	r.errs = append(r.errs, err)
}

func TestObserver(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"0x10"}`)
	obs := &recordingObserver{}
	c := NewClient("test", srv.URL, time.Second, WithObserver(obs))

	_, err := c.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"eth_blockNumber"}, obs.methods)
	assert.NoError(t, obs.errs[0])
}

func TestBlockNumber(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"0x5e1a5b"}`)
	c := NewClient("test", srv.URL, time.Second)

	n, err := c.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(6167131), n)
}

func TestBlockNumberMalformed(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"0xnope"}`)
	c := NewClient("test", srv.URL, time.Second)

	_, err := c.BlockNumber(context.Background())
	assert.True(t, errors.Is(err, numeric.ErrMalformedHex), "error = %v", err)
}

func TestGetLogsRequest(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"result":[{
		"address":"0x49df4ec19243263e5db22da5865b4f482b8323a0",
		"topics":["0xd7b04a4e6e5b8f8f3ca81c8c5b9bd3eb7b8f0d8d6b4cb5cf3e7b384e1d0d3d89"],
		"data":"0x",
		"blockNumber":"0x64"
	}]}`
	srv, seen := newTestServer(t, http.StatusOK, body)
	c := NewClient("test", srv.URL, time.Second)

	addr := common.HexToAddress("0x49df4ec19243263e5db22da5865b4f482b8323a0")
	topic := common.HexToHash("0xd7b04a4e6e5b8f8f3ca81c8c5b9bd3eb7b8f0d8d6b4cb5cf3e7b384e1d0d3d89")
	logs, err := c.GetLogs(context.Background(), LogFilter{
		Address:   addr,
		Topics:    []common.Hash{topic},
		FromBlock: 100,
		ToBlock:   200,
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].BlockNumber)
	assert.Equal(t, uint64(100), uint64(*logs[0].BlockNumber))
	assert.Equal(t, topic, logs[0].Topics[0])

	require.Len(t, *seen, 1)
	params, err := json.Marshal((*seen)[0].Params)
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"address":"0x49df4ec19243263e5db22da5865b4f482b8323a0",
		"topics":["0xd7b04a4e6e5b8f8f3ca81c8c5b9bd3eb7b8f0d8d6b4cb5cf3e7b384e1d0d3d89"],
		"fromBlock":"0x64",
		"toBlock":"0xc8"
	}]`, string(params))
}

func TestEthCall(t *testing.T) {
	srv, seen := newTestServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"0x0000000000000000000000000000000000000000000000000000000000000004"}`)
	c := NewClient("test", srv.URL, time.Second)

	to := common.HexToAddress("0x8829ebe113535826e8af17ed51f83755f675789a")
	out, err := c.EthCall(context.Background(), to, []byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
	require.Len(t, out, 32)
	assert.Equal(t, byte(4), out[31])

	params, err := json.Marshal((*seen)[0].Params)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"to":"0x8829ebe113535826e8af17ed51f83755f675789a","data":"0xdeadbeef"},"latest"]`, string(params))
}

func TestEthCallMalformedHex(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"0xabc"}`)
	c := NewClient("test", srv.URL, time.Second)

	_, err := c.EthCall(context.Background(), common.Address{}, nil)
	assert.ErrorIs(t, err, numeric.ErrMalformedHex)
}
