package lottery

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/lottery-client/pkg/solana"
)

var (
	// ErrAccountNotFound indicates the account does not exist on chain. A
	// lottery account disappears once its winner has been paid out.
	ErrAccountNotFound = errors.New("account not found")

	// ErrMissingSigner indicates an instruction requires a signature from an
	// account whose private key was not provided.
	ErrMissingSigner = errors.New("missing signer")
)

// ProvisionError indicates a new program account could not be created. No
// local state is kept for the account.
type ProvisionError struct {
	Account ed25519.PublicKey
	Err     error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("failed to provision account %s: %v", encodeKey(e.Account), e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// TransportError indicates the request never reached the cluster, or the
// cluster could not be queried. The instruction was not executed.
type TransportError struct {
	Op        string
	Account   ed25519.PublicKey
	Signature *solana.Signature
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s on %s: transport failure: %v", e.Op, encodeKey(e.Account), e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectedError indicates the cluster executed the transaction and the
// instruction failed, for example because the lottery was full or the
// signer was not the initializer. The lottery account is unchanged.
type RejectedError struct {
	Op        string
	Account   ed25519.PublicKey
	Signature solana.Signature
	Err       *solana.TransactionError
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s on %s: rejected in %s: %v", e.Op, encodeKey(e.Account), e.Signature, e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates the transaction was sent but its outcome could not
// be observed at the requested commitment. It may or may not have landed.
type TimeoutError struct {
	Op        string
	Account   ed25519.PublicKey
	Signature solana.Signature
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s on %s: outcome of %s unknown: %v", e.Op, encodeKey(e.Account), e.Signature, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

func encodeKey(key ed25519.PublicKey) string {
	if len(key) == 0 {
		return "<none>"
	}
	return base58.Encode(key)
}
