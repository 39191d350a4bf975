package lottery

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_AddressOnly(t *testing.T) {
	address, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	fromKey, err := NewAccount(address)
	require.NoError(t, err)

	fromString, err := NewAccountFromAddress(base58.Encode(address))
	require.NoError(t, err)

	for _, account := range []*Account{fromKey, fromString} {
		assert.Equal(t, address, account.Address())
		assert.Nil(t, account.Keypair())
		assert.False(t, account.CanSign())
		assert.Equal(t, base58.Encode(address), account.String())
	}

	// The account keeps its own copy of the address
	address[0] ^= 0xff
	assert.NotEqual(t, address, fromKey.Address())
}

func TestAccount_Keypair(t *testing.T) {
	address, keypair, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	account, err := NewAccountFromKeypair(keypair)
	require.NoError(t, err)

	assert.True(t, account.CanSign())
	assert.Equal(t, address, account.Address())
	assert.Equal(t, keypair, account.Keypair())
}

func TestAccount_Random(t *testing.T) {
	a, err := NewRandomAccount()
	require.NoError(t, err)
	b, err := NewRandomAccount()
	require.NoError(t, err)

	require.NoError(t, a.Validate())
	assert.True(t, a.CanSign())
	assert.NotEqual(t, a.Address(), b.Address())
}

func TestAccount_Invalid(t *testing.T) {
	address, keypair, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	for _, invalid := range [][]byte{nil, address[:16], keypair} {
		_, err = NewAccount(invalid)
		assert.Error(t, err)
	}

	for _, invalid := range [][]byte{nil, address, keypair[:63], append(keypair, 0)} {
		_, err = NewAccountFromKeypair(invalid)
		assert.Error(t, err)
	}

	_, err = NewAccountFromAddress("not-base58-0OIl")
	assert.Error(t, err)

	_, err = NewAccountFromAddress(base58.Encode(make([]byte, 31)))
	assert.Error(t, err)

	// A keypair file whose address half doesn't match its seed
	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mismatched := append(append([]byte{}, keypair[:ed25519.SeedSize]...), other...)
	_, err = NewAccountFromKeypair(mismatched)
	assert.Error(t, err)

	var nilAccount *Account
	assert.Error(t, nilAccount.Validate())
	assert.False(t, nilAccount.CanSign())
}

func TestRequireSigner(t *testing.T) {
	signer, err := NewRandomAccount()
	require.NoError(t, err)
	assert.NoError(t, requireSigner(signer))

	addressOnly, err := NewAccount(signer.Address())
	require.NoError(t, err)

	for _, account := range []*Account{nil, addressOnly, {}} {
		assert.True(t, errors.Is(requireSigner(account), ErrMissingSigner))
	}
}

func TestKeypairsFor(t *testing.T) {
	payer, err := NewRandomAccount()
	require.NoError(t, err)
	lottery, err := NewRandomAccount()
	require.NoError(t, err)
	unused, err := NewRandomAccount()
	require.NoError(t, err)

	required := []ed25519.PublicKey{payer.Address(), lottery.Address()}

	keypairs, err := keypairsFor(required, []*Account{nil, unused, lottery, payer})
	require.NoError(t, err)
	assert.Equal(t, []ed25519.PrivateKey{payer.Keypair(), lottery.Keypair()}, keypairs)

	addressOnly, err := NewAccount(lottery.Address())
	require.NoError(t, err)

	_, err = keypairsFor(required, []*Account{payer, addressOnly})
	assert.True(t, errors.Is(err, ErrMissingSigner))
}
