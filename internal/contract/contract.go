// Package contract describes the governance contracts that are polled for
// ballots: which kind of ballot they manage, which protocol generation they
// speak, where they live and their ABI.
package contract

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrEmissionV1NotSupported is returned for the one kind/version pair that
// was never deployed.
var ErrEmissionV1NotSupported = errors.New("emission funds contract has no V1 protocol")

// Kind is the ballot category a contract manages.
type Kind int

const (
	Keys Kind = iota
	Threshold
	Proxy
	Emission
)

// Kinds lists every kind in display order.
var Kinds = []Kind{Keys, Threshold, Proxy, Emission}

func (k Kind) String() string {
	switch k {
	case Keys:
		return "keys"
	case Threshold:
		return "threshold"
	case Proxy:
		return "proxy"
	case Emission:
		return "emission"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ContractName is the Solidity contract that implements the kind.
func (k Kind) ContractName() string {
	switch k {
	case Keys:
		return "VotingToChangeKeys.sol"
	case Threshold:
		return "VotingToChangeMinThreshold.sol"
	case Proxy:
		return "VotingToChangeProxyAddress.sol"
	case Emission:
		return "VotingToManageEmissionFunds.sol"
	default:
		return "unknown"
	}
}

// ParseKind accepts the lower-case kind names used in configuration.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown contract kind %q (expected keys, threshold, proxy or emission)", s)
}

// Version is the governance protocol generation of a contract.
type Version int

const (
	V1 Version = iota + 1
	V2
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	default:
		return fmt.Sprintf("version(%d)", int(v))
	}
}

// ParseVersion accepts "v1", "v2", "1" or "2".
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1":
		return V1, nil
	case "v2", "2":
		return V2, nil
	default:
		return 0, fmt.Errorf("unknown contract version %q (expected v1 or v2)", s)
	}
}

// Method names and the event every governance contract emits.
const (
	EventBallotCreated = "BallotCreated"
	MethodVotingState  = "votingState"
	MethodBallotInfo   = "getBallotInfo"
)

// Descriptor identifies one deployed contract.
type Descriptor struct {
	Kind    Kind
	Version Version
	Address common.Address
	ABI     abi.ABI
}

// New validates the kind/version pair and checks that the ABI carries the
// event and method the poller needs.
func New(kind Kind, version Version, address common.Address, contractABI abi.ABI) (Descriptor, error) {
	if kind == Emission && version == V1 {
		return Descriptor{}, ErrEmissionV1NotSupported
	}
	d := Descriptor{Kind: kind, Version: version, Address: address, ABI: contractABI}
	if _, err := d.Event(); err != nil {
		return Descriptor{}, err
	}
	if _, err := d.Method(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%s@%s", d.Kind, d.Version, d.Address.Hex())
}

// Event returns the BallotCreated event definition.
func (d Descriptor) Event() (abi.Event, error) {
	ev, ok := d.ABI.Events[EventBallotCreated]
	if !ok {
		return abi.Event{}, fmt.Errorf("%s %s ABI has no %s event", d.Kind, d.Version, EventBallotCreated)
	}
	return ev, nil
}

// MethodName is the read method that returns ballot state for the version.
func (d Descriptor) MethodName() string {
	if d.Version == V1 {
		return MethodVotingState
	}
	return MethodBallotInfo
}

// Method returns the ABI definition of MethodName.
func (d Descriptor) Method() (abi.Method, error) {
	name := d.MethodName()
	m, ok := d.ABI.Methods[name]
	if !ok {
		return abi.Method{}, fmt.Errorf("%s %s ABI has no %s method", d.Kind, d.Version, name)
	}
	return m, nil
}

//go:embed abis
var bundled embed.FS

// BundledABI returns the ABI shipped with the binary for the kind/version.
func BundledABI(kind Kind, version Version) (abi.ABI, error) {
	if kind == Emission && version == V1 {
		return abi.ABI{}, ErrEmissionV1NotSupported
	}
	f, err := bundled.Open(path.Join("abis", version.String(), kind.String()+".json"))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("no bundled ABI for %s %s: %w", kind, version, err)
	}
	defer f.Close()
	parsed, err := abi.JSON(f)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("invalid bundled ABI for %s %s: %w", kind, version, err)
	}
	return parsed, nil
}

// LoadABI parses an ABI JSON file from disk.
func LoadABI(file string) (abi.ABI, error) {
	f, err := os.Open(file)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("ABI file not found: %w", err)
	}
	defer f.Close()
	parsed, err := abi.JSON(f)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("invalid ABI file %s: %w", file, err)
	}
	return parsed, nil
}
