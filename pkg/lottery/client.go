package lottery

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/lottery-client/pkg/metrics"
	"github.com/code-payments/lottery-client/pkg/retry"
	"github.com/code-payments/lottery-client/pkg/retry/backoff"
	"github.com/code-payments/lottery-client/pkg/solana"
	compute_budget "github.com/code-payments/lottery-client/pkg/solana/computebudget"
	"github.com/code-payments/lottery-client/pkg/solana/layout"
	lottery_program "github.com/code-payments/lottery-client/pkg/solana/lottery"
	"github.com/code-payments/lottery-client/pkg/solana/system"
)

const (
	opAirdrop = "airdrop"
	opBalance = "balance"
	opRead    = "read"
	opUnknown = "unknown"
)

var errCommitmentNotReached = errors.New("commitment not reached")

// Client carries lottery requests to the cluster. It builds, signs and
// submits transactions, then waits for them to reach the configured
// commitment. It never checks the lottery state machine itself, so the
// program is the only authority on whether a request is valid.
//
// Client is safe for concurrent use, but concurrent requests against the
// same lottery account are ordered by the cluster, not by the client.
type Client struct {
	log         *logrus.Entry
	conf        *conf
	sc          solana.Client
	program     ed25519.PublicKey
	provisioner *Provisioner
}

// NewClient returns a Client for the lottery program deployed at program.
func NewClient(sc solana.Client, program ed25519.PublicKey, configProvider ConfigProvider) *Client {
	c := &Client{
		log:     logrus.StandardLogger().WithField("type", "lottery/client"),
		conf:    configProvider(),
		sc:      sc,
		program: program,
	}
	c.provisioner = NewProvisioner(c)
	return c
}

// Program returns the address of the lottery program.
func (c *Client) Program() ed25519.PublicKey {
	return c.program
}

// Provisioner returns the account provisioner bound to this client.
func (c *Client) Provisioner() *Provisioner {
	return c.provisioner
}

// CreateLotteryAccount provisions a new account owned by the lottery
// program, sized to hold a lottery.
func (c *Client) CreateLotteryAccount(ctx context.Context, payer *Account) (*FundedAccount, error) {
	return c.provisioner.Provision(ctx, payer, lottery_program.AccountSchema, c.program)
}

// InitLottery sets the entry fee and commission of lottery, making payer its
// initializer.
func (c *Client) InitLottery(ctx context.Context, payer *Account, lottery ed25519.PublicKey, entryFees uint32, commissionRate uint8) (solana.Signature, error) {
	if err := requireSigner(payer); err != nil {
		return solana.Signature{}, err
	}

	ix, err := lottery_program.NewInitInstruction(
		c.program,
		&lottery_program.InitInstructionAccounts{
			Payer:   payer.Address(),
			Lottery: lottery,
		},
		&lottery_program.InitInstructionArgs{
			EntryFees:      entryFees,
			CommissionRate: commissionRate,
		},
	)
	if err != nil {
		return solana.Signature{}, err
	}

	return c.Submit(ctx, ix, payer)
}

// Participate enters participant into lottery, paying the entry fee.
func (c *Client) Participate(ctx context.Context, participant *Account, lottery ed25519.PublicKey) (solana.Signature, error) {
	if err := requireSigner(participant); err != nil {
		return solana.Signature{}, err
	}

	ix, err := lottery_program.NewParticipateInstruction(
		c.program,
		&lottery_program.ParticipateInstructionAccounts{
			Payer:   participant.Address(),
			Lottery: lottery,
		},
	)
	if err != nil {
		return solana.Signature{}, err
	}

	return c.Submit(ctx, ix, participant)
}

// PickWinner asks the program to pay out lottery to one of the two
// candidates. Only the initializer of a full lottery may do so.
func (c *Client) PickWinner(ctx context.Context, initializer *Account, lottery, candidateA, candidateB ed25519.PublicKey) (solana.Signature, error) {
	if err := requireSigner(initializer); err != nil {
		return solana.Signature{}, err
	}

	ix, err := lottery_program.NewPickWinnerInstruction(
		c.program,
		&lottery_program.PickWinnerInstructionAccounts{
			Payer:      initializer.Address(),
			Lottery:    lottery,
			CandidateA: candidateA,
			CandidateB: candidateB,
		},
	)
	if err != nil {
		return solana.Signature{}, err
	}

	return c.Submit(ctx, ix, initializer)
}

// ReadAccount fetches account and decodes its data against schema.
// ErrAccountNotFound is returned if the account does not exist.
func (c *Client) ReadAccount(ctx context.Context, account ed25519.PublicKey, schema *layout.Schema) (layout.Values, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ReadAccount")
	defer tracer.End()

	data, err := c.getAccountData(ctx, account)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	values, err := layout.Decode(schema, data)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return values, nil
}

// GetLottery fetches and decodes a lottery account.
func (c *Client) GetLottery(ctx context.Context, lottery ed25519.PublicKey) (*lottery_program.Account, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetLottery")
	defer tracer.End()

	data, err := c.getAccountData(ctx, lottery)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	var account lottery_program.Account
	if err := account.Unmarshal(data); err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return &account, nil
}

// GetLotteryState returns the observed state of a lottery. A lottery that
// no longer exists, or whose data was cleared, has been paid out and is
// reported as closed.
func (c *Client) GetLotteryState(ctx context.Context, lottery ed25519.PublicKey) (lottery_program.State, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetLotteryState")
	defer tracer.End()

	data, err := c.getAccountData(ctx, lottery)
	if err == ErrAccountNotFound {
		return lottery_program.StateClosed, nil
	} else if err != nil {
		tracer.OnError(err)
		return lottery_program.StateUninitialized, err
	}

	if len(data) == 0 {
		return lottery_program.StateClosed, nil
	}

	var account lottery_program.Account
	if err := account.Unmarshal(data); err != nil {
		tracer.OnError(err)
		return lottery_program.StateUninitialized, err
	}
	return account.State(), nil
}

// GetBalance returns the lamports held by account. An account that doesn't
// exist holds nothing.
func (c *Client) GetBalance(ctx context.Context, account ed25519.PublicKey) (uint64, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetBalance")
	defer tracer.End()

	balance, err := c.sc.GetBalance(account)
	if err == solana.ErrNoBalance {
		return 0, nil
	} else if err != nil {
		c.log.WithFields(logrus.Fields{
			"method":  "GetBalance",
			"account": encodeKey(account),
		}).WithError(err).Warn("failure getting balance")

		err = &TransportError{Op: opBalance, Account: account, Err: err}
		tracer.OnError(err)
		return 0, err
	}
	return balance, nil
}

// Airdrop requests lamports for account and waits for the airdrop to reach
// the configured commitment. Only available on test clusters.
func (c *Client) Airdrop(ctx context.Context, account ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Airdrop")
	defer tracer.End()

	commitment := c.getCommitment(ctx)

	sig, err := c.sc.RequestAirdrop(account, lamports, commitment)
	if err != nil {
		err = &TransportError{Op: opAirdrop, Account: account, Err: err}
		tracer.OnError(err)
		return solana.Signature{}, err
	}

	if err := c.confirm(ctx, opAirdrop, account, sig, commitment); err != nil {
		tracer.OnError(err)
		return sig, err
	}
	return sig, nil
}

// Submit sends ix in a transaction paid for by the first signer, and waits
// for it to reach the configured commitment. Every account ix requires a
// signature from must be among signers.
//
// Failures are a *TransportError when nothing was sent, a *RejectedError
// when the cluster executed and failed the transaction, and a *TimeoutError
// when the outcome could not be observed. Rejected transactions are never
// resubmitted.
func (c *Client) Submit(ctx context.Context, ix solana.Instruction, signers ...*Account) (solana.Signature, error) {
	return c.submit(ctx, c.describe(ix), ix, signers...)
}

func (c *Client) submit(ctx context.Context, op string, ix solana.Instruction, signers ...*Account) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Submit")
	defer tracer.End()
	tracer.AddAttribute("op", op)

	var target ed25519.PublicKey
	if len(ix.Accounts) > 1 {
		target = ix.Accounts[1].PublicKey
	}

	log := c.log.WithFields(logrus.Fields{
		"method":  "Submit",
		"op":      op,
		"account": encodeKey(target),
	})

	sig, err := c.submitAndConfirm(ctx, log, op, target, ix, signers)
	if err != nil {
		tracer.OnError(err)
	}

	switch err.(type) {
	case nil:
		recordSubmissionEvent(ctx, op, "confirmed")
	case *TransportError:
		recordSubmissionEvent(ctx, op, "transport_failure")
	case *RejectedError:
		recordSubmissionEvent(ctx, op, "rejected")
	case *TimeoutError:
		recordSubmissionEvent(ctx, op, "timeout")
	}

	return sig, err
}

func (c *Client) submitAndConfirm(ctx context.Context, log *logrus.Entry, op string, target ed25519.PublicKey, ix solana.Instruction, signers []*Account) (solana.Signature, error) {
	if len(signers) == 0 {
		return solana.Signature{}, errors.Wrap(ErrMissingSigner, "a fee payer is required")
	}
	if err := requireSigner(signers[0]); err != nil {
		return solana.Signature{}, err
	}

	instructions := append(c.getComputeBudgetInstructions(ctx), ix)
	txn := solana.NewTransaction(signers[0].Address(), instructions...)

	keypairs, err := keypairsFor(txn.Signers(), signers)
	if err != nil {
		log.WithError(err).Debug("cannot sign transaction")
		return solana.Signature{}, err
	}

	if err := ctx.Err(); err != nil {
		return solana.Signature{}, &TransportError{Op: op, Account: target, Err: err}
	}

	blockhash, err := c.sc.GetLatestBlockhash()
	if err != nil {
		log.WithError(err).Warn("failure getting latest blockhash")
		return solana.Signature{}, &TransportError{Op: op, Account: target, Err: err}
	}

	txn.SetBlockhash(blockhash)
	if err := txn.Sign(keypairs...); err != nil {
		return solana.Signature{}, errors.Wrap(err, "error signing transaction")
	}

	commitment := c.getCommitment(ctx)

	sig, err := c.sc.SubmitTransaction(txn, commitment)
	log = log.WithField("signature", sig.String())
	if err != nil {
		var txErr *solana.TransactionError
		if errors.As(err, &txErr) {
			log.WithError(txErr).Info("transaction rejected")
			return sig, &RejectedError{Op: op, Account: target, Signature: sig, Err: txErr}
		}

		log.WithError(err).Warn("failure submitting transaction")
		return sig, &TransportError{Op: op, Account: target, Signature: &sig, Err: err}
	}

	if err := c.confirm(ctx, op, target, sig, commitment); err != nil {
		log.WithError(err).Info("transaction not confirmed")
		return sig, err
	}

	log.Debug("transaction confirmed")
	return sig, nil
}

// confirm polls the status of sig until it reaches commitment or fails.
// Any status error is retried within the poll budget, since the send has
// already happened and only its outcome is unknown.
func (c *Client) confirm(ctx context.Context, op string, target ed25519.PublicKey, sig solana.Signature, commitment solana.Commitment) error {
	pollLimit := c.conf.confirmationPollLimit.Get(ctx)
	pollRate := c.conf.confirmationPollRate.Get(ctx)

	start := time.Now()

	var status *solana.SignatureStatus
	_, err := retry.Retry(
		func() error {
			s, err := c.sc.GetSignatureStatus(sig)
			if err != nil {
				return err
			}

			if s.ErrorResult == nil && !s.Reached(commitment) {
				return errCommitmentNotReached
			}

			status = s
			return nil
		},
		retry.Context(ctx),
		retry.Limit(uint(pollLimit)),
		retry.BackoffWithContext(ctx, backoff.Constant(pollRate), pollRate),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return &TimeoutError{Op: op, Account: target, Signature: sig, Err: err}
	}

	if status.ErrorResult != nil {
		return &RejectedError{Op: op, Account: target, Signature: sig, Err: status.ErrorResult}
	}

	recordConfirmationLatency(ctx, time.Since(start))
	return nil
}

func (c *Client) getAccountData(ctx context.Context, account ed25519.PublicKey) ([]byte, error) {
	info, err := c.sc.GetAccountInfo(account, c.getCommitment(ctx))
	if err == solana.ErrNoAccountInfo {
		return nil, ErrAccountNotFound
	} else if err != nil {
		c.log.WithFields(logrus.Fields{
			"method":  "getAccountData",
			"account": encodeKey(account),
		}).WithError(err).Warn("failure getting account info")
		return nil, &TransportError{Op: opRead, Account: account, Err: err}
	}
	return info.Data, nil
}

func (c *Client) getCommitment(ctx context.Context) solana.Commitment {
	value := c.conf.commitment.Get(ctx)

	commitment, err := solana.CommitmentFromString(value)
	if err != nil {
		c.log.WithError(err).WithField("commitment", value).Warn("invalid commitment configured, using default")
		commitment, _ = solana.CommitmentFromString(defaultCommitment)
	}
	return commitment
}

func (c *Client) getComputeBudgetInstructions(ctx context.Context) []solana.Instruction {
	var instructions []solana.Instruction

	if limit := c.conf.computeUnitLimit.Get(ctx); limit > 0 {
		if limit > math.MaxUint32 {
			limit = math.MaxUint32
		}
		instructions = append(instructions, compute_budget.SetComputeUnitLimit(uint32(limit)))
	}

	if price := c.conf.computeUnitPrice.Get(ctx); price > 0 {
		instructions = append(instructions, compute_budget.SetComputeUnitPrice(price))
	}

	return instructions
}

// describe names the operation ix performs, for errors and logs.
func (c *Client) describe(ix solana.Instruction) string {
	if bytes.Equal(ix.Program, system.ProgramKey) {
		return opCreateAccount
	}

	if !bytes.Equal(ix.Program, c.program) {
		return opUnknown
	}

	decoded, err := lottery_program.DecodeInstruction(ix.Data)
	if err != nil {
		return opUnknown
	}
	return decoded.Tag().String()
}
