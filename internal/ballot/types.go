package ballot

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UnknownCodeError is returned when a contract reports an enum code the
// poller does not know.
type UnknownCodeError struct {
	Enum string
	Code string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unrecognized %s code %s", e.Enum, e.Code)
}

// Type is the ballot category carried by BallotCreated events and by the
// Keys contracts' state. All contract generations share the same codes.
type Type int

const (
	InvalidKey Type = iota
	AddKey
	RemoveKey
	SwapKey
	ChangeThreshold
	ChangeProxy
	ManageEmission
)

var typeNames = [...]string{"InvalidKey", "AddKey", "RemoveKey", "SwapKey", "Threshold", "Proxy", "Emission"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// TypeFromCode converts an on-chain ballot type code.
func TypeFromCode(code uint64) (Type, error) {
	if code >= uint64(len(typeNames)) {
		return 0, &UnknownCodeError{Enum: "ballot type", Code: fmt.Sprint(code)}
	}
	return Type(code), nil
}

// KeyType identifies which validator key a Keys ballot affects.
type KeyType int

const (
	InvalidKeyType KeyType = iota
	MiningKey
	VotingKey
	PayoutKey
)

var keyTypeNames = [...]string{"InvalidKey", "MiningKey", "VotingKey", "PayoutKey"}

func (k KeyType) String() string {
	if k < 0 || int(k) >= len(keyTypeNames) {
		return fmt.Sprintf("KeyType(%d)", int(k))
	}
	return keyTypeNames[k]
}

// KeyTypeFromCode converts an on-chain key type code.
func KeyTypeFromCode(code uint64) (KeyType, error) {
	if code >= uint64(len(keyTypeNames)) {
		return 0, &UnknownCodeError{Enum: "key type", Code: fmt.Sprint(code)}
	}
	return KeyType(code), nil
}

// QuorumState is the outcome of a V1 ballot.
type QuorumState int

const (
	QuorumInvalid QuorumState = iota
	QuorumInProgress
	QuorumAccepted
	QuorumRejected
)

var quorumNames = [...]string{"Invalid", "InProgress", "Accepted", "Rejected"}

func (q QuorumState) String() string {
	if q < 0 || int(q) >= len(quorumNames) {
		return fmt.Sprintf("QuorumState(%d)", int(q))
	}
	return quorumNames[q]
}

// QuorumStateFromCode converts an on-chain quorum state code.
func QuorumStateFromCode(code uint64) (QuorumState, error) {
	if code >= uint64(len(quorumNames)) {
		return 0, &UnknownCodeError{Enum: "quorum state", Code: fmt.Sprint(code)}
	}
	return QuorumState(code), nil
}

// CreatedLog is a decoded BallotCreated event.
type CreatedLog struct {
	BlockNumber uint64
	BallotID    *big.Int
	BallotType  Type
	Creator     common.Address
}
