package lottery

import (
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/lottery-client/pkg/solana"
)

// fakeSolanaClient is an in memory solana.Client that records every call.
type fakeSolanaClient struct {
	sync.Mutex

	accounts map[string]solana.AccountInfo
	rent     map[uint64]uint64
	balances map[string]uint64

	blockhashErr error
	submitErr    error
	airdropErr   error
	accountErr   error
	rentErr      error
	statusErr    error
	balanceErr   error

	// Returned in order by GetSignatureStatus, with the last one repeating.
	// No statuses means the signature is never found.
	statuses []*solana.SignatureStatus

	submitted      []solana.Transaction
	rentRequests   []uint64
	blockhashCalls int
	statusCalls    int
	airdropCalls   int
}

func newFakeSolanaClient() *fakeSolanaClient {
	return &fakeSolanaClient{
		accounts: make(map[string]solana.AccountInfo),
		rent:     make(map[uint64]uint64),
		balances: make(map[string]uint64),
		statuses: []*solana.SignatureStatus{confirmedStatus()},
	}
}

func (c *fakeSolanaClient) GetAccountInfo(account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	c.Lock()
	defer c.Unlock()

	if c.accountErr != nil {
		return solana.AccountInfo{}, c.accountErr
	}

	info, ok := c.accounts[base58.Encode(account)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	return info, nil
}

func (c *fakeSolanaClient) GetBalance(account ed25519.PublicKey) (uint64, error) {
	c.Lock()
	defer c.Unlock()

	if c.balanceErr != nil {
		return 0, c.balanceErr
	}

	balance, ok := c.balances[base58.Encode(account)]
	if !ok {
		return 0, solana.ErrNoBalance
	}
	return balance, nil
}

func (c *fakeSolanaClient) GetLatestBlockhash() (solana.Blockhash, error) {
	c.Lock()
	defer c.Unlock()

	c.blockhashCalls++
	if c.blockhashErr != nil {
		return solana.Blockhash{}, c.blockhashErr
	}

	var bh solana.Blockhash
	bh[0] = byte(c.blockhashCalls)
	return bh, nil
}

func (c *fakeSolanaClient) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	c.Lock()
	defer c.Unlock()

	c.rentRequests = append(c.rentRequests, size)
	if c.rentErr != nil {
		return 0, c.rentErr
	}

	if lamports, ok := c.rent[size]; ok {
		return lamports, nil
	}
	return (size + 128) * 6960, nil
}

func (c *fakeSolanaClient) GetSignatureStatus(sig solana.Signature) (*solana.SignatureStatus, error) {
	c.Lock()
	defer c.Unlock()

	c.statusCalls++
	if c.statusErr != nil {
		return nil, c.statusErr
	}

	if len(c.statuses) == 0 {
		return nil, solana.ErrSignatureNotFound
	}

	i := c.statusCalls - 1
	if i >= len(c.statuses) {
		i = len(c.statuses) - 1
	}
	return c.statuses[i], nil
}

func (c *fakeSolanaClient) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		status, err := c.GetSignatureStatus(sig)
		if err != nil && err != solana.ErrSignatureNotFound {
			return nil, err
		}
		statuses[i] = status
	}
	return statuses, nil
}

func (c *fakeSolanaClient) RequestAirdrop(account ed25519.PublicKey, lamports uint64, _ solana.Commitment) (solana.Signature, error) {
	c.Lock()
	defer c.Unlock()

	c.airdropCalls++
	if c.airdropErr != nil {
		return solana.Signature{}, c.airdropErr
	}

	c.balances[base58.Encode(account)] += lamports

	var sig solana.Signature
	sig[0] = byte(c.airdropCalls)
	return sig, nil
}

func (c *fakeSolanaClient) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	c.Lock()
	defer c.Unlock()

	c.submitted = append(c.submitted, txn)

	sig := txn.Signatures[0]
	if !txn.Verify() {
		return sig, errors.New("invalid transaction signature")
	}
	return sig, c.submitErr
}

func (c *fakeSolanaClient) setAccount(account ed25519.PublicKey, data []byte) {
	c.Lock()
	defer c.Unlock()

	c.accounts[base58.Encode(account)] = solana.AccountInfo{Data: data}
}

func (c *fakeSolanaClient) submitCount() int {
	c.Lock()
	defer c.Unlock()

	return len(c.submitted)
}

func confirmedStatus() *solana.SignatureStatus {
	confirmations := 1
	return &solana.SignatureStatus{
		Slot:               1,
		Confirmations:      &confirmations,
		ConfirmationStatus: "confirmed",
	}
}

func processedStatus() *solana.SignatureStatus {
	confirmations := 0
	return &solana.SignatureStatus{
		Slot:               1,
		Confirmations:      &confirmations,
		ConfirmationStatus: "processed",
	}
}

func finalizedStatus() *solana.SignatureStatus {
	return &solana.SignatureStatus{
		Slot:               1,
		ConfirmationStatus: "finalized",
	}
}

func failedStatus(txErr *solana.TransactionError) *solana.SignatureStatus {
	status := processedStatus()
	status.ErrorResult = txErr
	return status
}

type testEnv struct {
	sc      *fakeSolanaClient
	client  *Client
	program ed25519.PublicKey
	payer   *Account
}

func setup(t *testing.T) testEnv {
	return setupWithCommitment(t, "confirmed")
}

func setupWithCommitment(t *testing.T, commitment string) testEnv {
	program, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	payer, err := NewRandomAccount()
	require.NoError(t, err)

	sc := newFakeSolanaClient()
	client := NewClient(sc, program, withManualTestOverrides(&testOverrides{
		commitment:            commitment,
		confirmationPollLimit: 5,
		confirmationPollRate:  time.Millisecond,
	}))

	return testEnv{
		sc:      sc,
		client:  client,
		program: program,
		payer:   payer,
	}
}
