package lottery

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/lottery-client/pkg/cache"
	"github.com/code-payments/lottery-client/pkg/metrics"
	"github.com/code-payments/lottery-client/pkg/solana"
	"github.com/code-payments/lottery-client/pkg/solana/layout"
	"github.com/code-payments/lottery-client/pkg/solana/system"
)

const opCreateAccount = "create_account"

// FundedAccount is an account that was created on chain, assigned to a
// program, and funded to be rent exempt.
type FundedAccount struct {
	Account   *Account
	Lamports  uint64
	Space     uint64
	Signature solana.Signature
}

// Provisioner creates program owned accounts sized for a schema.
type Provisioner struct {
	log    *logrus.Entry
	client *Client

	// Rent exemption minimums only depend on the account size
	rentCache cache.Cache[uint64, uint64]
}

// NewProvisioner returns a Provisioner that submits through client.
func NewProvisioner(client *Client) *Provisioner {
	budget := int(client.conf.rentCacheBudget.Get(context.Background()))

	return &Provisioner{
		log:       logrus.StandardLogger().WithField("type", "lottery/provisioner"),
		client:    client,
		rentCache: cache.New[uint64, uint64](budget),
	}
}

// Provision creates a fresh account owned by program, with exactly
// layout.Size(schema) bytes of space and the minimum balance needed to be
// rent exempt. The payer funds the account and pays for the transaction.
//
// On failure nothing is retained: the generated key is discarded and the
// error is a *ProvisionError.
func (p *Provisioner) Provision(ctx context.Context, payer *Account, schema *layout.Schema, program ed25519.PublicKey) (*FundedAccount, error) {
	tracer := metrics.TraceMethodCall(ctx, provisionerMetricsStructName, "Provision")
	defer tracer.End()

	if err := requireSigner(payer); err != nil {
		tracer.OnError(err)
		return nil, &ProvisionError{Err: err}
	}

	space := uint64(layout.Size(schema))

	log := p.log.WithFields(logrus.Fields{
		"method":  "Provision",
		"payer":   payer.String(),
		"space":   space,
		"program": encodeKey(program),
	})

	lamports, err := p.getRentExemptBalance(ctx, space)
	if err != nil {
		log.WithError(err).Warn("failure getting rent exemption balance")
		tracer.OnError(err)
		return nil, &ProvisionError{Err: err}
	}

	account, err := NewRandomAccount()
	if err != nil {
		tracer.OnError(err)
		return nil, &ProvisionError{Err: err}
	}

	log = log.WithFields(logrus.Fields{
		"account":  account.String(),
		"lamports": lamports,
	})

	ix := system.CreateAccount(
		payer.Address(),
		account.Address(),
		program,
		lamports,
		space,
	)

	sig, err := p.client.submit(ctx, opCreateAccount, ix, payer, account)
	if err != nil {
		log.WithError(err).Warn("failure creating account")
		tracer.OnError(err)
		return nil, &ProvisionError{Account: account.Address(), Err: err}
	}

	log.WithField("signature", sig.String()).Debug("account created")

	return &FundedAccount{
		Account:   account,
		Lamports:  lamports,
		Space:     space,
		Signature: sig,
	}, nil
}

func (p *Provisioner) getRentExemptBalance(ctx context.Context, space uint64) (uint64, error) {
	if cached, ok := p.rentCache.Retrieve(space); ok {
		return cached, nil
	}

	lamports, err := p.client.sc.GetMinimumBalanceForRentExemption(space)
	if err != nil {
		return 0, &TransportError{
			Op:  opCreateAccount,
			Err: errors.Wrap(err, "error getting rent exemption balance"),
		}
	}

	if err := p.rentCache.Insert(space, lamports, 1); err != nil {
		p.log.WithError(err).Debug("failure caching rent exemption balance")
	}

	return lamports, nil
}
