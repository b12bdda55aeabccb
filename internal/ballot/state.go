// Package ballot holds the decoded form of governance ballots: the events
// announcing them and the per-contract state returned by V1 votingState and
// V2 getBallotInfo calls.
package ballot

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dmagro/poagov/internal/contract"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// Common holds the fields every ballot variant reports.
type Common struct {
	StartTime   time.Time
	EndTime     time.Time
	IsFinalized bool
	Creator     common.Address
	Memo        string
}

func (c *Common) shared() *Common { return c }

// Details is implemented by every VotingState and BallotInfo variant.
type Details interface {
	Kind() contract.Kind
	Version() contract.Version
	// EmailText renders the ballot for a human reader, one field per line.
	EmailText() string
	shared() *Common
}

// Summary returns the fields shared by all variants of d.
func Summary(d Details) Common { return *d.shared() }

// ContractName returns the Solidity contract that produced d.
func ContractName(d Details) string { return d.Kind().ContractName() }

// VotingState is the V1 votingState result. The variant set is closed:
// *KeysVotingState, *ThresholdVotingState and *ProxyVotingState.
type VotingState interface {
	Details
	votingState()
}

// BallotInfo is the V2 getBallotInfo result. The variant set is closed:
// *KeysBallotInfo, *ThresholdBallotInfo, *ProxyBallotInfo and
// *EmissionBallotInfo.
type BallotInfo interface {
	Details
	ballotInfo()
}

type KeysVotingState struct {
	Common
	AffectedKey          common.Address
	AffectedKeyType      KeyType
	MiningKey            common.Address
	TotalVoters          uint64
	Progress             int64
	QuorumState          QuorumState
	BallotType           Type
	Index                uint64
	MinThresholdOfVoters uint64
}

type ThresholdVotingState struct {
	Common
	TotalVoters          uint64
	Progress             int64
	QuorumState          QuorumState
	Index                uint64
	MinThresholdOfVoters uint64
	ProposedValue        uint64
}

type ProxyVotingState struct {
	Common
	TotalVoters          uint64
	Progress             int64
	QuorumState          QuorumState
	Index                uint64
	MinThresholdOfVoters uint64
	ProposedValue        common.Address
	ContractType         uint64
}

type KeysBallotInfo struct {
	Common
	AffectedKey       common.Address
	AffectedKeyType   KeyType
	NewVotingKey      common.Address
	NewPayoutKey      common.Address
	MiningKey         common.Address
	TotalVoters       uint64
	Progress          int64
	BallotType        Type
	CanBeFinalizedNow bool
}

type ThresholdBallotInfo struct {
	Common
	TotalVoters       uint64
	Progress          int64
	ProposedValue     uint64
	CanBeFinalizedNow bool
}

type ProxyBallotInfo struct {
	Common
	TotalVoters       uint64
	Progress          int64
	ProposedValue     common.Address
	ContractType      uint64
	CanBeFinalizedNow bool
}

type EmissionBallotInfo struct {
	Common
	CreationTime time.Time
	IsCanceled   bool
	Amount       *big.Int
	BurnVotes    uint64
	FreezeVotes  uint64
	SendVotes    uint64
	Receiver     common.Address
}

func (*KeysVotingState) votingState()      {}
func (*ThresholdVotingState) votingState() {}
func (*ProxyVotingState) votingState()     {}

func (*KeysBallotInfo) ballotInfo()      {}
func (*ThresholdBallotInfo) ballotInfo() {}
func (*ProxyBallotInfo) ballotInfo()     {}
func (*EmissionBallotInfo) ballotInfo()  {}

func (*KeysVotingState) Kind() contract.Kind      { return contract.Keys }
func (*ThresholdVotingState) Kind() contract.Kind { return contract.Threshold }
func (*ProxyVotingState) Kind() contract.Kind     { return contract.Proxy }
func (*KeysBallotInfo) Kind() contract.Kind       { return contract.Keys }
func (*ThresholdBallotInfo) Kind() contract.Kind  { return contract.Threshold }
func (*ProxyBallotInfo) Kind() contract.Kind      { return contract.Proxy }
func (*EmissionBallotInfo) Kind() contract.Kind   { return contract.Emission }

func (*KeysVotingState) Version() contract.Version      { return contract.V1 }
func (*ThresholdVotingState) Version() contract.Version { return contract.V1 }
func (*ProxyVotingState) Version() contract.Version     { return contract.V1 }
func (*KeysBallotInfo) Version() contract.Version       { return contract.V2 }
func (*ThresholdBallotInfo) Version() contract.Version  { return contract.V2 }
func (*ProxyBallotInfo) Version() contract.Version      { return contract.V2 }
func (*EmissionBallotInfo) Version() contract.Version   { return contract.V2 }

// textBuilder writes "Label: value" lines.
type textBuilder struct{ strings.Builder }

func (b *textBuilder) line(label string, value interface{}) {
	switch v := value.(type) {
	case time.Time:
		value = v.Format(timeLayout)
	case common.Address:
		value = v.Hex()
	}
	fmt.Fprintf(&b.Builder, "%s: %v\n", label, value)
}

func (s *KeysVotingState) EmailText() string {
	var b textBuilder
	b.line("Voting Start Time", s.StartTime)
	b.line("Voting End Time", s.EndTime)
	b.line("Ballot Type", s.BallotType)
	b.line("Affected Key", s.AffectedKey)
	b.line("Affected Key Type", s.AffectedKeyType)
	b.line("Voting has Finished", s.IsFinalized)
	b.line("Number of Votes Made", s.TotalVoters)
	b.line("Number of Votes Required to Make Change", s.MinThresholdOfVoters)
	b.line("Mining Key", s.MiningKey)
	b.line("Ballot Creator", s.Creator)
	b.line("Memo", s.Memo)
	return b.String()
}

func (s *ThresholdVotingState) EmailText() string {
	var b textBuilder
	b.line("Voting Start Time", s.StartTime)
	b.line("Voting End Time", s.EndTime)
	b.line("Proposed New Min. Threshold", s.ProposedValue)
	b.line("Voting has Finished", s.IsFinalized)
	b.line("Number of Votes Made", s.TotalVoters)
	b.line("Number of Votes Required to Make Change", s.MinThresholdOfVoters)
	b.line("Ballot Creator", s.Creator)
	b.line("Memo", s.Memo)
	return b.String()
}

func (s *ProxyVotingState) EmailText() string {
	var b textBuilder
	b.line("Voting Start Time", s.StartTime)
	b.line("Voting End Time", s.EndTime)
	b.line("Proposed New Proxy Address", s.ProposedValue)
	b.line("Voting has Finished", s.IsFinalized)
	b.line("Number of Votes Made", s.TotalVoters)
	b.line("Number of Votes Required for Change", s.MinThresholdOfVoters)
	b.line("Ballot Creator", s.Creator)
	b.line("Memo", s.Memo)
	return b.String()
}

func (s *KeysBallotInfo) EmailText() string {
	var b textBuilder
	b.line("Voting Start Time", s.StartTime)
	b.line("Voting End Time", s.EndTime)
	b.line("Ballot Type", s.BallotType)
	b.line("Affected Key", s.AffectedKey)
	b.line("Affected Key Type", s.AffectedKeyType)
	b.line("New Voting Key", s.NewVotingKey)
	b.line("New Payout Key", s.NewPayoutKey)
	b.line("Voting has Finished", s.IsFinalized)
	b.line("Number of Votes Made", s.TotalVoters)
	b.line("Mining Key", s.MiningKey)
	b.line("Ballot Creator", s.Creator)
	b.line("Memo", s.Memo)
	return b.String()
}

func (s *ThresholdBallotInfo) EmailText() string {
	var b textBuilder
	b.line("Voting Start Time", s.StartTime)
	b.line("Voting End Time", s.EndTime)
	b.line("Proposed New Min. Threshold", s.ProposedValue)
	b.line("Voting has Finished", s.IsFinalized)
	b.line("Number of Votes Made", s.TotalVoters)
	b.line("Ballot Creator", s.Creator)
	b.line("Memo", s.Memo)
	return b.String()
}

func (s *ProxyBallotInfo) EmailText() string {
	var b textBuilder
	b.line("Voting Start Time", s.StartTime)
	b.line("Voting End Time", s.EndTime)
	b.line("Proposed New Proxy Address", s.ProposedValue)
	b.line("Voting has Finished", s.IsFinalized)
	b.line("Number of Votes Made", s.TotalVoters)
	b.line("Ballot Creator", s.Creator)
	b.line("Memo", s.Memo)
	return b.String()
}

func (s *EmissionBallotInfo) EmailText() string {
	var b textBuilder
	b.line("Creation Time", s.CreationTime)
	b.line("Voting Start Time", s.StartTime)
	b.line("Voting End Time", s.EndTime)
	b.line("Amount", s.Amount)
	b.line("Burn Votes", s.BurnVotes)
	b.line("Freeze Votes", s.FreezeVotes)
	b.line("Send Votes", s.SendVotes)
	b.line("Receiver", s.Receiver)
	b.line("Voting was Canceled", s.IsCanceled)
	b.line("Voting has Finished", s.IsFinalized)
	b.line("Ballot Creator", s.Creator)
	b.line("Memo", s.Memo)
	return b.String()
}
