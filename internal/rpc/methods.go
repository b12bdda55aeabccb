package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dmagro/poagov/internal/numeric"
)

// BlockNumber returns the number of the most recently mined block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}

	var hexStr string
	if err := json.Unmarshal(result, &hexStr); err != nil {
		return 0, &ProtocolError{Method: "eth_blockNumber", Reason: "result is not a string", Err: err}
	}

	return numeric.HexToUint64(hexStr)
}

// GetLogs returns the logs matching filter.
func (c *Client) GetLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	result, err := c.Call(ctx, "eth_getLogs", filter)
	if err != nil {
		return nil, err
	}

	var logs []Log
	if err := json.Unmarshal(result, &logs); err != nil {
		return nil, &ProtocolError{Method: "eth_getLogs", Reason: "invalid log list", Err: err}
	}
	return logs, nil
}

// EthCall executes a read-only contract call against the latest block and
// returns the ABI-encoded return data.
func (c *Client) EthCall(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	result, err := c.Call(ctx, "eth_call", CallRequest{To: to, Data: data}, "latest")
	if err != nil {
		return nil, err
	}

	var hexStr string
	if err := json.Unmarshal(result, &hexStr); err != nil {
		return nil, &ProtocolError{Method: "eth_call", Reason: "result is not a string", Err: err}
	}

	out, err := hexutil.Decode(hexStr)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_call result: %v", numeric.ErrMalformedHex, err)
	}
	return out, nil
}
