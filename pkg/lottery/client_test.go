package lottery

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/lottery-client/pkg/solana"
	compute_budget "github.com/code-payments/lottery-client/pkg/solana/computebudget"
	"github.com/code-payments/lottery-client/pkg/solana/layout"
	lottery_program "github.com/code-payments/lottery-client/pkg/solana/lottery"
	"github.com/code-payments/lottery-client/pkg/solana/system"
)

func TestClient_InitLottery(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)

	sig, err := env.client.InitLottery(context.Background(), env.payer, lottery, 1, 10)
	require.NoError(t, err)

	require.Len(t, env.sc.submitted, 1)
	txn := env.sc.submitted[0]
	assert.Equal(t, txn.Signatures[0], sig)
	assert.True(t, txn.Verify())
	assert.EqualValues(t, env.payer.Address(), txn.Message.Accounts[0])
	assert.EqualValues(t, 1, txn.Message.Header.NumSignatures)

	require.Len(t, txn.Message.Instructions, 1)
	ix := txn.Message.Instructions[0]
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x0A}, ix.Data)
	assert.EqualValues(t, env.program, txn.Message.Accounts[ix.ProgramIndex])
	assert.Equal(t, []ed25519.PublicKey{env.payer.Address(), lottery}, compiledAccounts(txn, 0))
}

func TestClient_Participate(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)

	_, err := env.client.Participate(context.Background(), env.payer, lottery)
	require.NoError(t, err)

	require.Len(t, env.sc.submitted, 1)
	txn := env.sc.submitted[0]
	assert.Equal(t, []byte{0x01}, txn.Message.Instructions[0].Data)
	assert.Equal(
		t,
		[]ed25519.PublicKey{env.payer.Address(), lottery, system.ProgramKey},
		compiledAccounts(txn, 0),
	)
}

func TestClient_PickWinner(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)
	candidateA := newKey(t)
	candidateB := newKey(t)

	_, err := env.client.PickWinner(context.Background(), env.payer, lottery, candidateA, candidateB)
	require.NoError(t, err)

	require.Len(t, env.sc.submitted, 1)
	txn := env.sc.submitted[0]
	assert.Equal(t, []byte{0x02}, txn.Message.Instructions[0].Data)
	assert.Equal(
		t,
		[]ed25519.PublicKey{env.payer.Address(), lottery, candidateA, candidateB},
		compiledAccounts(txn, 0),
	)
}

func TestClient_Submit_RejectedAtSend(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)

	env.sc.submitErr = customTransactionError(t, 3)

	sig, err := env.client.Participate(context.Background(), env.payer, lottery)
	require.Error(t, err)

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "participate", rejected.Op)
	assert.EqualValues(t, lottery, rejected.Account)
	assert.Equal(t, sig, rejected.Signature)

	code, _, ok := rejected.Err.CustomErrorCode()
	require.True(t, ok)
	assert.Equal(t, 3, code)

	// Never resubmitted, and never polled
	assert.Equal(t, 1, env.sc.submitCount())
	assert.Equal(t, 1, env.sc.blockhashCalls)
	assert.Equal(t, 0, env.sc.statusCalls)
}

func TestClient_Submit_RejectedInStatus(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)
	candidate := newKey(t)

	env.sc.statuses = []*solana.SignatureStatus{
		processedStatus(),
		failedStatus(customTransactionError(t, 7)),
	}

	_, err := env.client.PickWinner(context.Background(), env.payer, lottery, candidate, candidate)
	require.Error(t, err)

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "pick_winner", rejected.Op)
	assert.EqualValues(t, lottery, rejected.Account)

	var custom solana.CustomError
	require.True(t, errors.As(err, &custom))
	assert.Equal(t, solana.CustomError(7), custom)

	assert.Equal(t, 1, env.sc.submitCount())
	assert.Equal(t, 2, env.sc.statusCalls)
}

func TestClient_Submit_TransportFailure(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)

	env.sc.blockhashErr = errors.New("connection refused")

	_, err := env.client.InitLottery(context.Background(), env.payer, lottery, 1, 10)
	require.Error(t, err)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "init", transportErr.Op)
	assert.EqualValues(t, lottery, transportErr.Account)
	assert.Nil(t, transportErr.Signature)
	assert.Equal(t, 0, env.sc.submitCount())

	env.sc.blockhashErr = nil
	env.sc.submitErr = errors.New("connection reset by peer")

	_, err = env.client.InitLottery(context.Background(), env.payer, lottery, 1, 10)
	require.Error(t, err)
	require.True(t, errors.As(err, &transportErr))
	require.NotNil(t, transportErr.Signature)
	assert.Equal(t, env.sc.submitted[0].Signatures[0], *transportErr.Signature)
	assert.Equal(t, 0, env.sc.statusCalls)

	var rejected *RejectedError
	assert.False(t, errors.As(err, &rejected))
}

func TestClient_Submit_Timeout(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)

	env.sc.statuses = nil

	sig, err := env.client.Participate(context.Background(), env.payer, lottery)
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "participate", timeoutErr.Op)
	assert.Equal(t, sig, timeoutErr.Signature)
	assert.True(t, errors.Is(err, solana.ErrSignatureNotFound))

	assert.Equal(t, 1, env.sc.submitCount())
	assert.Equal(t, 5, env.sc.statusCalls)
}

func TestClient_Submit_TimeoutBelowCommitment(t *testing.T) {
	env := setup(t)

	env.sc.statuses = []*solana.SignatureStatus{processedStatus()}

	_, err := env.client.Participate(context.Background(), env.payer, newKey(t))
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.True(t, errors.Is(err, errCommitmentNotReached))

	env.sc.statusErr = errors.New("node is behind")
	env.sc.statusCalls = 0

	_, err = env.client.Participate(context.Background(), env.payer, newKey(t))
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 5, env.sc.statusCalls)
}

func TestClient_Submit_Commitments(t *testing.T) {
	for _, tc := range []struct {
		commitment    string
		statuses      []*solana.SignatureStatus
		expectedPolls int
	}{
		{"processed", []*solana.SignatureStatus{processedStatus()}, 1},
		{"confirmed", []*solana.SignatureStatus{processedStatus(), confirmedStatus()}, 2},
		{"finalized", []*solana.SignatureStatus{processedStatus(), confirmedStatus(), finalizedStatus()}, 3},
		{"max", []*solana.SignatureStatus{confirmedStatus(), finalizedStatus()}, 2},
	} {
		env := setupWithCommitment(t, tc.commitment)
		env.sc.statuses = tc.statuses

		_, err := env.client.Participate(context.Background(), env.payer, newKey(t))
		require.NoError(t, err, tc.commitment)
		assert.Equal(t, tc.expectedPolls, env.sc.statusCalls, tc.commitment)
	}
}

func TestClient_Submit_Context(t *testing.T) {
	env := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.client.Participate(ctx, env.payer, newKey(t))
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, env.sc.blockhashCalls)
	assert.Equal(t, 0, env.sc.submitCount())

	client := NewClient(env.sc, env.program, withManualTestOverrides(&testOverrides{
		commitment:            "confirmed",
		confirmationPollLimit: 1000,
		confirmationPollRate:  time.Second,
	}))
	env.sc.statuses = nil

	ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.Participate(ctx, env.payer, newKey(t))
	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, time.Since(start) < time.Second)
	assert.Equal(t, 1, env.sc.submitCount())
}

func TestClient_Submit_PriorityFee(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)

	client := NewClient(env.sc, env.program, withManualTestOverrides(&testOverrides{
		commitment:            "confirmed",
		confirmationPollLimit: 5,
		confirmationPollRate:  time.Millisecond,
		computeUnitPrice:      25_000,
		computeUnitLimit:      200_000,
	}))

	_, err := client.Participate(context.Background(), env.payer, lottery)
	require.NoError(t, err)

	require.Len(t, env.sc.submitted, 1)
	txn := env.sc.submitted[0]
	require.Len(t, txn.Message.Instructions, 3)

	for i, ix := range txn.Message.Instructions[:2] {
		assert.EqualValues(t, compute_budget.ProgramKey, txn.Message.Accounts[ix.ProgramIndex], i)
		assert.Empty(t, ix.Accounts, i)
	}

	limit, err := compute_budget.DecompileSetComputeUnitLimit(solana.NewInstruction(compute_budget.ProgramKey, txn.Message.Instructions[0].Data))
	require.NoError(t, err)
	assert.EqualValues(t, 200_000, limit)

	price, err := compute_budget.DecompileSetComputeUnitPrice(solana.NewInstruction(compute_budget.ProgramKey, txn.Message.Instructions[1].Data))
	require.NoError(t, err)
	assert.EqualValues(t, 25_000, price)

	assert.Equal(t, []byte{0x01}, txn.Message.Instructions[2].Data)
	assert.Equal(
		t,
		[]ed25519.PublicKey{env.payer.Address(), lottery, system.ProgramKey},
		compiledAccounts(txn, 2),
	)
}

func TestClient_Submit_MissingSigner(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)

	ix, err := lottery_program.NewParticipateInstruction(env.program, &lottery_program.ParticipateInstructionAccounts{
		Payer:   env.payer.Address(),
		Lottery: lottery,
	})
	require.NoError(t, err)

	_, err = env.client.Submit(context.Background(), ix)
	assert.True(t, errors.Is(err, ErrMissingSigner))

	publicOnly, err := NewAccount(env.payer.Address())
	require.NoError(t, err)

	_, err = env.client.Submit(context.Background(), ix, publicOnly)
	assert.True(t, errors.Is(err, ErrMissingSigner))

	// The fee payer alone cannot sign for a second required signer
	other, err := NewRandomAccount()
	require.NoError(t, err)
	ix.Accounts = append(ix.Accounts, solana.NewReadonlyAccountMeta(other.Address(), true))

	_, err = env.client.Submit(context.Background(), ix, env.payer)
	assert.True(t, errors.Is(err, ErrMissingSigner))

	assert.Equal(t, 0, env.sc.blockhashCalls)
	assert.Equal(t, 0, env.sc.submitCount())

	sig, err := env.client.Submit(context.Background(), ix, env.payer, other)
	require.NoError(t, err)
	assert.EqualValues(t, 2, env.sc.submitted[0].Message.Header.NumSignatures)
	assert.Equal(t, env.sc.submitted[0].Signatures[0], sig)
}

func TestClient_RequiresSigningPayer(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)

	addressOnly, err := NewAccount(env.payer.Address())
	require.NoError(t, err)

	for _, payer := range []*Account{nil, addressOnly} {
		_, err := env.client.InitLottery(context.Background(), payer, lottery, 1, 10)
		assert.True(t, errors.Is(err, ErrMissingSigner))

		_, err = env.client.Participate(context.Background(), payer, lottery)
		assert.True(t, errors.Is(err, ErrMissingSigner))

		_, err = env.client.PickWinner(context.Background(), payer, lottery, newKey(t), newKey(t))
		assert.True(t, errors.Is(err, ErrMissingSigner))

		_, err = env.client.Submit(context.Background(), solana.Instruction{Program: env.program}, payer)
		assert.True(t, errors.Is(err, ErrMissingSigner))
	}

	assert.Equal(t, 0, env.sc.blockhashCalls)
	assert.Equal(t, 0, env.sc.submitCount())
}

func TestClient_ReadAccount(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)
	initializer := newKey(t)

	_, err := env.client.ReadAccount(context.Background(), lottery, lottery_program.AccountSchema)
	assert.Equal(t, ErrAccountNotFound, err)

	account := &lottery_program.Account{
		EntryFees:      1,
		CommissionRate: 10,
		Initializer:    initializer,
	}
	data, err := account.Marshal()
	require.NoError(t, err)
	env.sc.setAccount(lottery, data)

	values, err := env.client.ReadAccount(context.Background(), lottery, lottery_program.AccountSchema)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), values["entry_fees"])
	assert.Equal(t, uint8(10), values["commission_rate"])
	assert.EqualValues(t, initializer, values["initializer"])
	assert.Equal(t, make([]byte, 64), values["participants"])

	env.sc.setAccount(lottery, data[:10])
	_, err = env.client.ReadAccount(context.Background(), lottery, lottery_program.AccountSchema)
	var decodingErr *layout.DecodingError
	assert.True(t, errors.As(err, &decodingErr))

	env.sc.accountErr = errors.New("service unavailable")
	_, err = env.client.ReadAccount(context.Background(), lottery, lottery_program.AccountSchema)
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "read", transportErr.Op)
}

func TestClient_GetLotteryState(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)
	initializer := newKey(t)
	participantA := newKey(t)
	participantB := newKey(t)

	state, err := env.client.GetLotteryState(context.Background(), lottery)
	require.NoError(t, err)
	assert.Equal(t, lottery_program.StateClosed, state)

	for _, tc := range []struct {
		account  *lottery_program.Account
		expected lottery_program.State
	}{
		{&lottery_program.Account{}, lottery_program.StateUninitialized},
		{&lottery_program.Account{EntryFees: 1, Initializer: initializer}, lottery_program.StateOpen},
		{
			&lottery_program.Account{
				EntryFees:    1,
				Initializer:  initializer,
				Participants: []ed25519.PublicKey{participantA},
			},
			lottery_program.StateOpen,
		},
		{
			&lottery_program.Account{
				EntryFees:    1,
				Initializer:  initializer,
				Participants: []ed25519.PublicKey{participantA, participantB},
			},
			lottery_program.StateFull,
		},
	} {
		data, err := tc.account.Marshal()
		require.NoError(t, err)
		env.sc.setAccount(lottery, data)

		state, err := env.client.GetLotteryState(context.Background(), lottery)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, state)
	}

	env.sc.setAccount(lottery, nil)
	state, err = env.client.GetLotteryState(context.Background(), lottery)
	require.NoError(t, err)
	assert.Equal(t, lottery_program.StateClosed, state)

	env.sc.accountErr = errors.New("timeout")
	_, err = env.client.GetLotteryState(context.Background(), lottery)
	assert.Error(t, err)
}

func TestClient_GetLottery(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)
	initializer := newKey(t)
	participant := newKey(t)

	_, err := env.client.GetLottery(context.Background(), lottery)
	assert.Equal(t, ErrAccountNotFound, err)

	expected := &lottery_program.Account{
		EntryFees:      2,
		CommissionRate: 5,
		Initializer:    initializer,
		Participants:   []ed25519.PublicKey{participant},
	}
	data, err := expected.Marshal()
	require.NoError(t, err)
	env.sc.setAccount(lottery, data)

	actual, err := env.client.GetLottery(context.Background(), lottery)
	require.NoError(t, err)
	assert.EqualValues(t, 2, actual.EntryFees)
	assert.EqualValues(t, 5, actual.CommissionRate)
	assert.EqualValues(t, initializer, actual.Initializer)
	assert.True(t, actual.HasParticipant(participant))
	assert.Equal(t, 1, actual.ParticipantCount())
}

func TestClient_GetBalance(t *testing.T) {
	env := setup(t)
	account := newKey(t)

	balance, err := env.client.GetBalance(context.Background(), account)
	require.NoError(t, err)
	assert.Zero(t, balance)

	env.sc.balances[base58.Encode(account)] = 2_500_000_000

	balance, err = env.client.GetBalance(context.Background(), account)
	require.NoError(t, err)
	assert.EqualValues(t, 2_500_000_000, balance)

	env.sc.balanceErr = errors.New("connection reset")

	_, err = env.client.GetBalance(context.Background(), account)
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "balance", transportErr.Op)
	assert.EqualValues(t, account, transportErr.Account)
}

func TestClient_Airdrop(t *testing.T) {
	env := setup(t)
	account := newKey(t)

	_, err := env.client.Airdrop(context.Background(), account, 1_000_000_000)
	require.NoError(t, err)

	balance, err := env.sc.GetBalance(account)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000_000, balance)
	assert.Equal(t, 1, env.sc.statusCalls)

	env.sc.airdropErr = errors.New("airdrop limit reached")
	_, err = env.client.Airdrop(context.Background(), account, 1)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "airdrop", transportErr.Op)
}

func TestClient_Describe(t *testing.T) {
	env := setup(t)
	lottery := newKey(t)

	create := system.CreateAccount(env.payer.Address(), lottery, env.program, 1, 1)
	assert.Equal(t, "create_account", env.client.describe(create))

	initIx, err := lottery_program.NewInitInstruction(
		env.program,
		&lottery_program.InitInstructionAccounts{Payer: env.payer.Address(), Lottery: lottery},
		&lottery_program.InitInstructionArgs{EntryFees: 1, CommissionRate: 1},
	)
	require.NoError(t, err)
	assert.Equal(t, "init", env.client.describe(initIx))

	foreign := initIx
	foreign.Program = newKey(t)
	assert.Equal(t, "unknown", env.client.describe(foreign))

	garbage := solana.NewInstruction(env.program, []byte{0x09})
	assert.Equal(t, "unknown", env.client.describe(garbage))
}

func newKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}

func compiledAccounts(txn solana.Transaction, index int) []ed25519.PublicKey {
	var keys []ed25519.PublicKey
	for _, i := range txn.Message.Instructions[index].Accounts {
		keys = append(keys, txn.Message.Accounts[i])
	}
	return keys
}

func customTransactionError(t *testing.T, code int) *solana.TransactionError {
	d := json.NewDecoder(bytes.NewBufferString(`{"InstructionError":[0,{"Custom":` + strconv.Itoa(code) + `}]}`))
	var raw interface{}
	require.NoError(t, d.Decode(&raw))

	txErr, err := solana.ParseTransactionError(raw)
	require.NoError(t, err)
	return txErr
}
