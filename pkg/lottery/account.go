package lottery

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// Account is an address that takes part in lottery transactions: the fee
// payer, a participant, or a lottery account. An Account built from a
// keypair can sign for its address; one built from an address alone can
// only be referenced.
type Account struct {
	address ed25519.PublicKey
	keypair ed25519.PrivateKey // Optional
}

// NewAccount returns an Account for address that cannot sign.
func NewAccount(address ed25519.PublicKey) (*Account, error) {
	account := &Account{
		address: append(ed25519.PublicKey(nil), address...),
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

// NewAccountFromAddress parses a base58 encoded address.
func NewAccountFromAddress(address string) (*Account, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid address %s", address)
	}

	return NewAccount(decoded)
}

// NewAccountFromKeypair returns a signing Account from the 64 byte seed and
// address pair that Solana keypair files hold. The address half must be the
// one derived from the seed.
func NewAccountFromKeypair(keypair []byte) (*Account, error) {
	if len(keypair) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("keypair has %d bytes, expected %d", len(keypair), ed25519.PrivateKeySize)
	}

	account := &Account{
		address: append(ed25519.PublicKey(nil), keypair[ed25519.SeedSize:]...),
		keypair: append(ed25519.PrivateKey(nil), keypair...),
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

// NewRandomAccount generates a signing Account with a fresh keypair.
func NewRandomAccount() (*Account, error) {
	_, keypair, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "error generating keypair")
	}

	return NewAccountFromKeypair(keypair)
}

func (a *Account) Address() ed25519.PublicKey {
	return a.address
}

// Keypair returns the seed and address pair, or nil if the account cannot
// sign.
func (a *Account) Keypair() ed25519.PrivateKey {
	return a.keypair
}

func (a *Account) CanSign() bool {
	return a != nil && a.keypair != nil
}

func (a *Account) Validate() error {
	if a == nil {
		return errors.New("account is nil")
	}

	if len(a.address) != ed25519.PublicKeySize {
		return errors.Errorf("address has %d bytes, expected %d", len(a.address), ed25519.PublicKeySize)
	}

	if a.keypair == nil {
		return nil
	}

	if len(a.keypair) != ed25519.PrivateKeySize {
		return errors.Errorf("keypair has %d bytes, expected %d", len(a.keypair), ed25519.PrivateKeySize)
	}

	derived := ed25519.NewKeyFromSeed(a.keypair.Seed()).Public().(ed25519.PublicKey)
	if !bytes.Equal(derived, a.address) {
		return errors.New("keypair seed doesn't derive the account address")
	}

	return nil
}

func (a *Account) String() string {
	return base58.Encode(a.address)
}

// requireSigner checks that account can pay for, and sign, a transaction.
func requireSigner(account *Account) error {
	if err := account.Validate(); err != nil {
		return errors.Wrap(ErrMissingSigner, err.Error())
	}

	if !account.CanSign() {
		return errors.Wrapf(ErrMissingSigner, "no keypair for %s", account)
	}
	return nil
}

// keypairsFor returns, in order, the keypair of every address that must
// sign. Signers that aren't required are ignored.
func keypairsFor(required []ed25519.PublicKey, signers []*Account) ([]ed25519.PrivateKey, error) {
	keypairs := make([]ed25519.PrivateKey, 0, len(required))
	for _, address := range required {
		var found bool
		for _, signer := range signers {
			if !signer.CanSign() {
				continue
			}

			if bytes.Equal(signer.address, address) {
				keypairs = append(keypairs, signer.keypair)
				found = true
				break
			}
		}

		if !found {
			return nil, errors.Wrapf(ErrMissingSigner, "no keypair for %s", base58.Encode(address))
		}
	}
	return keypairs, nil
}
