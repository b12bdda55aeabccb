package rpc

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Request is a JSON-RPC 2.0 request envelope. The ID is always 1 since every
// exchange is a single synchronous HTTP round trip.
type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

// Response is a JSON-RPC 2.0 response envelope. Result is kept raw and
// decoded by the caller that knows its shape.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error object of a failed JSON-RPC call.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// LogFilter selects logs emitted by one contract in an inclusive block range.
type LogFilter struct {
	Address   common.Address
	Topics    []common.Hash
	FromBlock uint64
	ToBlock   uint64
}

// MarshalJSON renders the filter the way eth_getLogs expects it, with block
// bounds as hex quantities and topic-0 in the first position.
func (f LogFilter) MarshalJSON() ([]byte, error) {
	topics := make([]interface{}, len(f.Topics))
	for i, t := range f.Topics {
		topics[i] = t
	}
	return json.Marshal(struct {
		Address   common.Address `json:"address"`
		Topics    []interface{}  `json:"topics"`
		FromBlock hexutil.Uint64 `json:"fromBlock"`
		ToBlock   hexutil.Uint64 `json:"toBlock"`
	}{f.Address, topics, hexutil.Uint64(f.FromBlock), hexutil.Uint64(f.ToBlock)})
}

// Log is a raw event log as returned by eth_getLogs. BlockNumber is nil for
// pending logs.
type Log struct {
	Address         common.Address  `json:"address"`
	Topics          []common.Hash   `json:"topics"`
	Data            hexutil.Bytes   `json:"data"`
	BlockNumber     *hexutil.Uint64 `json:"blockNumber"`
	TransactionHash *common.Hash    `json:"transactionHash,omitempty"`
	LogIndex        *hexutil.Uint64 `json:"logIndex,omitempty"`
	Removed         bool            `json:"removed,omitempty"`
}

// CallRequest is the transaction object of an eth_call.
type CallRequest struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}
