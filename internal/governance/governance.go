// Package governance reads ballots from the POA governance contracts: the
// BallotCreated events that announce them and the contract calls that return
// their full state.
package governance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dmagro/poagov/internal/ballot"
	"github.com/dmagro/poagov/internal/chain"
	"github.com/dmagro/poagov/internal/contract"
	"github.com/dmagro/poagov/internal/rpc"
)

// Caller is the subset of the JSON-RPC client the reader needs.
type Caller interface {
	GetLogs(ctx context.Context, filter rpc.LogFilter) ([]rpc.Log, error)
	EthCall(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// MalformedEventLogError is returned for a BallotCreated log that does not
// have exactly the id, ballotType and creator fields.
type MalformedEventLogError struct {
	Contract common.Address
	Reason   string
	Err      error
}

func (e *MalformedEventLogError) Error() string {
	msg := fmt.Sprintf("malformed BallotCreated log from %s: %s", e.Contract.Hex(), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedEventLogError) Unwrap() error { return e.Err }

type Client struct {
	caller Caller
}

func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

// BallotCreatedLogs returns the ballots created by d inside w, in the order
// the node reported them.
func (c *Client) BallotCreatedLogs(ctx context.Context, d contract.Descriptor, w chain.Window) ([]ballot.CreatedLog, error) {
	ev, err := d.Event()
	if err != nil {
		return nil, err
	}

	filter := rpc.LogFilter{
		Address:   d.Address,
		Topics:    []common.Hash{ev.ID},
		FromBlock: w.Start,
		ToBlock:   w.Stop,
	}
	raw, err := c.caller.GetLogs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get %s logs for %s blocks %s: %w", ev.Name, d, w, err)
	}

	logs := make([]ballot.CreatedLog, 0, len(raw))
	for _, l := range raw {
		parsed, err := decodeCreatedLog(d.Address, ev, l)
		if err != nil {
			return nil, err
		}
		logs = append(logs, parsed)
	}
	return logs, nil
}

func decodeCreatedLog(addr common.Address, ev abi.Event, l rpc.Log) (ballot.CreatedLog, error) {
	malformed := func(reason string, err error) error {
		return &MalformedEventLogError{Contract: addr, Reason: reason, Err: err}
	}

	if len(l.Topics) == 0 || l.Topics[0] != ev.ID {
		return ballot.CreatedLog{}, malformed("topic 0 is not the event signature", nil)
	}
	if l.BlockNumber == nil {
		return ballot.CreatedLog{}, malformed("missing block number", nil)
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	fields := make(map[string]interface{}, len(ev.Inputs))
	if err := abi.ParseTopicsIntoMap(fields, indexed, l.Topics[1:]); err != nil {
		return ballot.CreatedLog{}, malformed("decode topics", err)
	}
	if err := ev.Inputs.UnpackIntoMap(fields, l.Data); err != nil {
		return ballot.CreatedLog{}, malformed("decode data", err)
	}

	var (
		id       *big.Int
		typeCode *big.Int
		creator  *common.Address
	)
	for name, value := range fields {
		switch name {
		case "id":
			v, ok := value.(*big.Int)
			if !ok {
				return ballot.CreatedLog{}, malformed(fmt.Sprintf("id has type %T", value), nil)
			}
			id = v
		case "ballotType":
			v, ok := value.(*big.Int)
			if !ok {
				return ballot.CreatedLog{}, malformed(fmt.Sprintf("ballotType has type %T", value), nil)
			}
			typeCode = v
		case "creator":
			v, ok := value.(common.Address)
			if !ok {
				return ballot.CreatedLog{}, malformed(fmt.Sprintf("creator has type %T", value), nil)
			}
			creator = &v
		default:
			return ballot.CreatedLog{}, malformed(fmt.Sprintf("unknown field %q", name), nil)
		}
	}

	switch {
	case id == nil:
		return ballot.CreatedLog{}, malformed("missing id", nil)
	case typeCode == nil:
		return ballot.CreatedLog{}, malformed("missing ballotType", nil)
	case creator == nil:
		return ballot.CreatedLog{}, malformed("missing creator", nil)
	}

	if !typeCode.IsUint64() {
		return ballot.CreatedLog{}, &ballot.UnknownCodeError{Enum: "ballot type", Code: typeCode.String()}
	}
	bt, err := ballot.TypeFromCode(typeCode.Uint64())
	if err != nil {
		return ballot.CreatedLog{}, fmt.Errorf("ballot %s from %s: %w", id, addr.Hex(), err)
	}

	return ballot.CreatedLog{
		BlockNumber: uint64(*l.BlockNumber),
		BallotID:    id,
		BallotType:  bt,
		Creator:     *creator,
	}, nil
}

// VotingState calls votingState on a V1 contract.
func (c *Client) VotingState(ctx context.Context, d contract.Descriptor, ballotID *big.Int) (ballot.VotingState, error) {
	if d.Kind == contract.Emission && d.Version == contract.V1 {
		return nil, contract.ErrEmissionV1NotSupported
	}
	if d.Version != contract.V1 {
		return nil, fmt.Errorf("%s: votingState is a V1 method", d)
	}
	values, err := c.call(ctx, d, ballotID)
	if err != nil {
		return nil, err
	}
	return ballot.DecodeVotingState(d.Kind, values)
}

// BallotInfo calls getBallotInfo on a V2 contract.
func (c *Client) BallotInfo(ctx context.Context, d contract.Descriptor, ballotID *big.Int) (ballot.BallotInfo, error) {
	if d.Version != contract.V2 {
		return nil, fmt.Errorf("%s: getBallotInfo is a V2 method", d)
	}
	values, err := c.call(ctx, d, ballotID)
	if err != nil {
		return nil, err
	}
	return ballot.DecodeBallotInfo(d.Kind, values)
}

// Details fetches the ballot state with the method matching d's version.
func (c *Client) Details(ctx context.Context, d contract.Descriptor, ballotID *big.Int) (ballot.Details, error) {
	switch d.Version {
	case contract.V1:
		state, err := c.VotingState(ctx, d, ballotID)
		if err != nil {
			return nil, err
		}
		return state, nil
	case contract.V2:
		info, err := c.BallotInfo(ctx, d, ballotID)
		if err != nil {
			return nil, err
		}
		return info, nil
	default:
		return nil, fmt.Errorf("%s: unsupported version", d)
	}
}

func (c *Client) call(ctx context.Context, d contract.Descriptor, ballotID *big.Int) ([]interface{}, error) {
	m, err := d.Method()
	if err != nil {
		return nil, err
	}

	args := []interface{}{ballotID}
	// The optional second input asks whether a voting key already voted.
	if len(m.Inputs) == 2 {
		args = append(args, common.Address{})
	}
	data, err := d.ABI.Pack(m.Name, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s(%s): %w", m.Name, ballotID, err)
	}

	out, err := c.caller.EthCall(ctx, d.Address, data)
	if err != nil {
		return nil, fmt.Errorf("call %s(%s) on %s: %w", m.Name, ballotID, d, err)
	}

	values, err := m.Outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("decode %s(%s) output: %w", m.Name, ballotID, err)
	}
	return values, nil
}
