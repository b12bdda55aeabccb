package ballot

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dmagro/poagov/internal/contract"
	"github.com/dmagro/poagov/internal/numeric"
)

// ShortOutputError is returned when a call returned fewer values than the
// schema for its contract kind requires.
type ShortOutputError struct {
	Kind    contract.Kind
	Version contract.Version
	Want    int
	Got     int
}

func (e *ShortOutputError) Error() string {
	return fmt.Sprintf("%s %s output has %d values, want at least %d", e.Kind, e.Version, e.Got, e.Want)
}

// FieldTypeError is returned when a value's Go type does not match the
// schema column it is decoded into.
type FieldTypeError struct {
	Index int
	Field string
	Want  string
	Got   string
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("output %d (%s): want %s, got %s", e.Index, e.Field, e.Want, e.Got)
}

// column decodes one positional output value into a field of T.
type column[T any] struct {
	name   string
	decode func(rec *T, v interface{}) error
}

// schema is the ordered output layout of one kind/version.
type schema[T any] []column[T]

func decodeRecord[T any](kind contract.Kind, version contract.Version, s schema[T], values []interface{}) (*T, error) {
	if len(values) < len(s) {
		return nil, &ShortOutputError{Kind: kind, Version: version, Want: len(s), Got: len(values)}
	}
	rec := new(T)
	for i, col := range s {
		if err := col.decode(rec, values[i]); err != nil {
			if fe, ok := err.(*FieldTypeError); ok {
				fe.Index = i
			}
			return nil, fmt.Errorf("decode %s %s %s: %w", kind, version, col.name, err)
		}
	}
	return rec, nil
}

func typeError(name, want string, v interface{}) error {
	return &FieldTypeError{Field: name, Want: want, Got: fmt.Sprintf("%T", v)}
}

func asBig(v interface{}) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		return n, n != nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case int8:
		return big.NewInt(int64(n)), true
	case int16:
		return big.NewInt(int64(n)), true
	case int32:
		return big.NewInt(int64(n)), true
	case int64:
		return big.NewInt(n), true
	default:
		return nil, false
	}
}

func asUint64(name string, v interface{}) (uint64, error) {
	n, ok := asBig(v)
	if !ok {
		return 0, typeError(name, "uint", v)
	}
	return numeric.Uint64(n)
}

func timeCol[T any](name string, field func(*T) *time.Time) column[T] {
	return column[T]{name, func(rec *T, v interface{}) error {
		n, ok := asBig(v)
		if !ok {
			return typeError(name, "uint", v)
		}
		*field(rec) = numeric.Uint256ToTime(n)
		return nil
	}}
}

func uintCol[T any](name string, field func(*T) *uint64) column[T] {
	return column[T]{name, func(rec *T, v interface{}) error {
		n, err := asUint64(name, v)
		if err != nil {
			return err
		}
		*field(rec) = n
		return nil
	}}
}

func bigCol[T any](name string, field func(*T) **big.Int) column[T] {
	return column[T]{name, func(rec *T, v interface{}) error {
		n, ok := asBig(v)
		if !ok {
			return typeError(name, "uint", v)
		}
		*field(rec) = new(big.Int).Set(n)
		return nil
	}}
}

// progressCol reads a vote tally through SignedProgress. The voters column
// always precedes progress in every layout, so voters(rec) is already set.
func progressCol[T any](name string, field func(*T) *int64, voters func(*T) uint64) column[T] {
	return column[T]{name, func(rec *T, v interface{}) error {
		n, ok := asBig(v)
		if !ok {
			return typeError(name, "int", v)
		}
		*field(rec) = numeric.SignedProgress(n, voters(rec))
		return nil
	}}
}

func boolCol[T any](name string, field func(*T) *bool) column[T] {
	return column[T]{name, func(rec *T, v interface{}) error {
		b, ok := v.(bool)
		if !ok {
			return typeError(name, "bool", v)
		}
		*field(rec) = b
		return nil
	}}
}

func addrCol[T any](name string, field func(*T) *common.Address) column[T] {
	return column[T]{name, func(rec *T, v interface{}) error {
		a, ok := v.(common.Address)
		if !ok {
			return typeError(name, "address", v)
		}
		*field(rec) = a
		return nil
	}}
}

func stringCol[T any](name string, field func(*T) *string) column[T] {
	return column[T]{name, func(rec *T, v interface{}) error {
		s, ok := v.(string)
		if !ok {
			return typeError(name, "string", v)
		}
		*field(rec) = s
		return nil
	}}
}

// enumCol converts an unsigned code through one of the fallible
// *FromCode constructors.
func enumCol[T any, E any](name, enum string, field func(*T) *E, conv func(uint64) (E, error)) column[T] {
	return column[T]{name, func(rec *T, v interface{}) error {
		n, ok := asBig(v)
		if !ok {
			return typeError(name, "uint", v)
		}
		if !n.IsUint64() {
			return &UnknownCodeError{Enum: enum, Code: n.String()}
		}
		e, err := conv(n.Uint64())
		if err != nil {
			return err
		}
		*field(rec) = e
		return nil
	}}
}

var keysV1 = schema[KeysVotingState]{
	timeCol("startTime", func(s *KeysVotingState) *time.Time { return &s.StartTime }),
	timeCol("endTime", func(s *KeysVotingState) *time.Time { return &s.EndTime }),
	addrCol("affectedKey", func(s *KeysVotingState) *common.Address { return &s.AffectedKey }),
	enumCol("affectedKeyType", "key type", func(s *KeysVotingState) *KeyType { return &s.AffectedKeyType }, KeyTypeFromCode),
	addrCol("miningKey", func(s *KeysVotingState) *common.Address { return &s.MiningKey }),
	uintCol("totalVoters", func(s *KeysVotingState) *uint64 { return &s.TotalVoters }),
	progressCol("progress", func(s *KeysVotingState) *int64 { return &s.Progress }, func(s *KeysVotingState) uint64 { return s.TotalVoters }),
	boolCol("isFinalized", func(s *KeysVotingState) *bool { return &s.IsFinalized }),
	enumCol("quorumState", "quorum state", func(s *KeysVotingState) *QuorumState { return &s.QuorumState }, QuorumStateFromCode),
	enumCol("ballotType", "ballot type", func(s *KeysVotingState) *Type { return &s.BallotType }, TypeFromCode),
	uintCol("index", func(s *KeysVotingState) *uint64 { return &s.Index }),
	uintCol("minThresholdOfVoters", func(s *KeysVotingState) *uint64 { return &s.MinThresholdOfVoters }),
	addrCol("creator", func(s *KeysVotingState) *common.Address { return &s.Creator }),
	stringCol("memo", func(s *KeysVotingState) *string { return &s.Memo }),
}

var thresholdV1 = schema[ThresholdVotingState]{
	timeCol("startTime", func(s *ThresholdVotingState) *time.Time { return &s.StartTime }),
	timeCol("endTime", func(s *ThresholdVotingState) *time.Time { return &s.EndTime }),
	uintCol("totalVoters", func(s *ThresholdVotingState) *uint64 { return &s.TotalVoters }),
	progressCol("progress", func(s *ThresholdVotingState) *int64 { return &s.Progress }, func(s *ThresholdVotingState) uint64 { return s.TotalVoters }),
	boolCol("isFinalized", func(s *ThresholdVotingState) *bool { return &s.IsFinalized }),
	enumCol("quorumState", "quorum state", func(s *ThresholdVotingState) *QuorumState { return &s.QuorumState }, QuorumStateFromCode),
	uintCol("index", func(s *ThresholdVotingState) *uint64 { return &s.Index }),
	uintCol("minThresholdOfVoters", func(s *ThresholdVotingState) *uint64 { return &s.MinThresholdOfVoters }),
	uintCol("proposedValue", func(s *ThresholdVotingState) *uint64 { return &s.ProposedValue }),
	addrCol("creator", func(s *ThresholdVotingState) *common.Address { return &s.Creator }),
	stringCol("memo", func(s *ThresholdVotingState) *string { return &s.Memo }),
}

var proxyV1 = schema[ProxyVotingState]{
	timeCol("startTime", func(s *ProxyVotingState) *time.Time { return &s.StartTime }),
	timeCol("endTime", func(s *ProxyVotingState) *time.Time { return &s.EndTime }),
	uintCol("totalVoters", func(s *ProxyVotingState) *uint64 { return &s.TotalVoters }),
	progressCol("progress", func(s *ProxyVotingState) *int64 { return &s.Progress }, func(s *ProxyVotingState) uint64 { return s.TotalVoters }),
	boolCol("isFinalized", func(s *ProxyVotingState) *bool { return &s.IsFinalized }),
	enumCol("quorumState", "quorum state", func(s *ProxyVotingState) *QuorumState { return &s.QuorumState }, QuorumStateFromCode),
	uintCol("index", func(s *ProxyVotingState) *uint64 { return &s.Index }),
	uintCol("minThresholdOfVoters", func(s *ProxyVotingState) *uint64 { return &s.MinThresholdOfVoters }),
	addrCol("proposedValue", func(s *ProxyVotingState) *common.Address { return &s.ProposedValue }),
	uintCol("contractType", func(s *ProxyVotingState) *uint64 { return &s.ContractType }),
	addrCol("creator", func(s *ProxyVotingState) *common.Address { return &s.Creator }),
	stringCol("memo", func(s *ProxyVotingState) *string { return &s.Memo }),
}

var keysV2 = schema[KeysBallotInfo]{
	timeCol("startTime", func(s *KeysBallotInfo) *time.Time { return &s.StartTime }),
	timeCol("endTime", func(s *KeysBallotInfo) *time.Time { return &s.EndTime }),
	addrCol("affectedKey", func(s *KeysBallotInfo) *common.Address { return &s.AffectedKey }),
	enumCol("affectedKeyType", "key type", func(s *KeysBallotInfo) *KeyType { return &s.AffectedKeyType }, KeyTypeFromCode),
	addrCol("newVotingKey", func(s *KeysBallotInfo) *common.Address { return &s.NewVotingKey }),
	addrCol("newPayoutKey", func(s *KeysBallotInfo) *common.Address { return &s.NewPayoutKey }),
	addrCol("miningKey", func(s *KeysBallotInfo) *common.Address { return &s.MiningKey }),
	uintCol("totalVoters", func(s *KeysBallotInfo) *uint64 { return &s.TotalVoters }),
	progressCol("progress", func(s *KeysBallotInfo) *int64 { return &s.Progress }, func(s *KeysBallotInfo) uint64 { return s.TotalVoters }),
	boolCol("isFinalized", func(s *KeysBallotInfo) *bool { return &s.IsFinalized }),
	enumCol("ballotType", "ballot type", func(s *KeysBallotInfo) *Type { return &s.BallotType }, TypeFromCode),
	addrCol("creator", func(s *KeysBallotInfo) *common.Address { return &s.Creator }),
	stringCol("memo", func(s *KeysBallotInfo) *string { return &s.Memo }),
	boolCol("canBeFinalizedNow", func(s *KeysBallotInfo) *bool { return &s.CanBeFinalizedNow }),
}

var thresholdV2 = schema[ThresholdBallotInfo]{
	timeCol("startTime", func(s *ThresholdBallotInfo) *time.Time { return &s.StartTime }),
	timeCol("endTime", func(s *ThresholdBallotInfo) *time.Time { return &s.EndTime }),
	uintCol("totalVoters", func(s *ThresholdBallotInfo) *uint64 { return &s.TotalVoters }),
	progressCol("progress", func(s *ThresholdBallotInfo) *int64 { return &s.Progress }, func(s *ThresholdBallotInfo) uint64 { return s.TotalVoters }),
	boolCol("isFinalized", func(s *ThresholdBallotInfo) *bool { return &s.IsFinalized }),
	uintCol("proposedValue", func(s *ThresholdBallotInfo) *uint64 { return &s.ProposedValue }),
	addrCol("creator", func(s *ThresholdBallotInfo) *common.Address { return &s.Creator }),
	stringCol("memo", func(s *ThresholdBallotInfo) *string { return &s.Memo }),
	boolCol("canBeFinalizedNow", func(s *ThresholdBallotInfo) *bool { return &s.CanBeFinalizedNow }),
}

var proxyV2 = schema[ProxyBallotInfo]{
	timeCol("startTime", func(s *ProxyBallotInfo) *time.Time { return &s.StartTime }),
	timeCol("endTime", func(s *ProxyBallotInfo) *time.Time { return &s.EndTime }),
	uintCol("totalVoters", func(s *ProxyBallotInfo) *uint64 { return &s.TotalVoters }),
	progressCol("progress", func(s *ProxyBallotInfo) *int64 { return &s.Progress }, func(s *ProxyBallotInfo) uint64 { return s.TotalVoters }),
	boolCol("isFinalized", func(s *ProxyBallotInfo) *bool { return &s.IsFinalized }),
	addrCol("proposedValue", func(s *ProxyBallotInfo) *common.Address { return &s.ProposedValue }),
	uintCol("contractType", func(s *ProxyBallotInfo) *uint64 { return &s.ContractType }),
	addrCol("creator", func(s *ProxyBallotInfo) *common.Address { return &s.Creator }),
	stringCol("memo", func(s *ProxyBallotInfo) *string { return &s.Memo }),
	boolCol("canBeFinalizedNow", func(s *ProxyBallotInfo) *bool { return &s.CanBeFinalizedNow }),
}

var emissionV2 = schema[EmissionBallotInfo]{
	timeCol("creationTime", func(s *EmissionBallotInfo) *time.Time { return &s.CreationTime }),
	timeCol("startTime", func(s *EmissionBallotInfo) *time.Time { return &s.StartTime }),
	timeCol("endTime", func(s *EmissionBallotInfo) *time.Time { return &s.EndTime }),
	boolCol("isCanceled", func(s *EmissionBallotInfo) *bool { return &s.IsCanceled }),
	boolCol("isFinalized", func(s *EmissionBallotInfo) *bool { return &s.IsFinalized }),
	addrCol("creator", func(s *EmissionBallotInfo) *common.Address { return &s.Creator }),
	stringCol("memo", func(s *EmissionBallotInfo) *string { return &s.Memo }),
	bigCol("amount", func(s *EmissionBallotInfo) **big.Int { return &s.Amount }),
	uintCol("burnVotes", func(s *EmissionBallotInfo) *uint64 { return &s.BurnVotes }),
	uintCol("freezeVotes", func(s *EmissionBallotInfo) *uint64 { return &s.FreezeVotes }),
	uintCol("sendVotes", func(s *EmissionBallotInfo) *uint64 { return &s.SendVotes }),
	addrCol("receiver", func(s *EmissionBallotInfo) *common.Address { return &s.Receiver }),
}

// DecodeVotingState assembles a V1 votingState result from its unpacked
// output values.
func DecodeVotingState(kind contract.Kind, values []interface{}) (VotingState, error) {
	var (
		state VotingState
		err   error
	)
	switch kind {
	case contract.Keys:
		state, err = decodeRecord(kind, contract.V1, keysV1, values)
	case contract.Threshold:
		state, err = decodeRecord(kind, contract.V1, thresholdV1, values)
	case contract.Proxy:
		state, err = decodeRecord(kind, contract.V1, proxyV1, values)
	case contract.Emission:
		return nil, contract.ErrEmissionV1NotSupported
	default:
		return nil, fmt.Errorf("no V1 layout for %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// DecodeBallotInfo assembles a V2 getBallotInfo result from its unpacked
// output values.
func DecodeBallotInfo(kind contract.Kind, values []interface{}) (BallotInfo, error) {
	var (
		info BallotInfo
		err  error
	)
	switch kind {
	case contract.Keys:
		info, err = decodeRecord(kind, contract.V2, keysV2, values)
	case contract.Threshold:
		info, err = decodeRecord(kind, contract.V2, thresholdV2, values)
	case contract.Proxy:
		info, err = decodeRecord(kind, contract.V2, proxyV2, values)
	case contract.Emission:
		info, err = decodeRecord(kind, contract.V2, emissionV2, values)
	default:
		return nil, fmt.Errorf("no V2 layout for %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}
