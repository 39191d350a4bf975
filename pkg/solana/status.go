package solana

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

// CommitmentFromString parses a commitment level as used by the Solana CLI
// configuration. "recent" and "max" are the legacy names for processed and
// finalized.
func CommitmentFromString(value string) (Commitment, error) {
	switch value {
	case confirmationStatusProcessed, "recent":
		return CommitmentProcessed, nil
	case confirmationStatusConfirmed, "single", "singleGossip":
		return CommitmentConfirmed, nil
	case confirmationStatusFinalized, "max", "root":
		return CommitmentFinalized, nil
	}
	return Commitment{}, errors.Errorf("unknown commitment: %s", value)
}

// AccountInfo is the raw state of an on-chain account
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// SignatureStatus is the cluster's view of a submitted transaction
type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations is nil once the transaction has been rooted
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Confirmed() bool {
	switch {
	case s.Finalized(), s.ConfirmationStatus == confirmationStatusConfirmed:
		return true
	}
	return *s.Confirmations >= 1
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

// Reached returns whether the status satisfies the provided commitment.
func (s SignatureStatus) Reached(commitment Commitment) bool {
	switch commitment {
	case CommitmentProcessed:
		return true
	case CommitmentConfirmed:
		return s.Confirmed()
	case CommitmentFinalized:
		return s.Finalized()
	}
	return false
}
