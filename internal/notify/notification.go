// Package notify delivers ballot notifications to the log and by email.
package notify

import (
	"fmt"
	"strings"

	"github.com/dmagro/poagov/internal/ballot"
	"github.com/dmagro/poagov/internal/contract"
)

// Subject is the subject line of every notification email.
const Subject = "POA Network Governance Notification"

// Notification describes one newly created ballot.
type Notification struct {
	Network  string
	Endpoint string
	Contract contract.Descriptor
	Log      ballot.CreatedLog
	Details  ballot.Details
}

func (n *Notification) Subject() string { return Subject }

// EmailText renders the notification header followed by the ballot details.
func (n *Notification) EmailText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Network: %s\n", n.Network)
	fmt.Fprintf(&b, "RPC Endpoint: %s\n", n.Endpoint)
	fmt.Fprintf(&b, "Block Number: %d\n", n.Log.BlockNumber)
	fmt.Fprintf(&b, "Contract: %s\n", n.Contract.Kind.ContractName())
	fmt.Fprintf(&b, "Version: %s\n", n.Contract.Version)
	fmt.Fprintf(&b, "Contract Address: %s\n", n.Contract.Address.Hex())
	fmt.Fprintf(&b, "Ballot Type: %s\n", n.Log.BallotType)
	fmt.Fprintf(&b, "Ballot ID: %s\n", n.Log.BallotID)
	b.WriteString("---\n")
	if n.Details != nil {
		b.WriteString(n.Details.EmailText())
	}
	return b.String()
}
