package main

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/lottery-client/pkg/lottery"
)

var ErrKeypairNotFound = errors.New("keypair not found")

// LoadKeypair reads a keypair file in the Solana CLI format: a JSON array
// holding the 64 bytes of an ed25519 private key.
func LoadKeypair(path string) (*lottery.Account, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrKeypairNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "error reading keypair %s", path)
	}

	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrapf(err, "keypair %s is not a json byte array", path)
	}

	if len(values) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("keypair %s has %d bytes, expected %d", path, len(values), ed25519.PrivateKeySize)
	}

	keypair := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, errors.Errorf("keypair %s has an invalid byte at %d", path, i)
		}
		keypair[i] = byte(v)
	}

	account, err := lottery.NewAccountFromKeypair(keypair)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid keypair %s", path)
	}
	return account, nil
}

// SaveKeypair writes the keypair of account to path, readable only by
// the current user.
func SaveKeypair(path string, account *lottery.Account) error {
	if !account.CanSign() {
		return errors.New("account has no keypair")
	}

	keypair := account.Keypair()
	values := make([]int, len(keypair))
	for i, b := range keypair {
		values[i] = int(b)
	}

	data, err := json.Marshal(values)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "error creating keypair directory")
	}
	return os.WriteFile(path, data, 0o600)
}

// loadProgramAddress accepts the program's deploy keypair path, or its
// base58 address.
func loadProgramAddress(value string) (ed25519.PublicKey, error) {
	account, err := LoadKeypair(value)
	if err == nil {
		return account.Address(), nil
	} else if err != ErrKeypairNotFound {
		return nil, err
	}

	decoded, err := base58.Decode(value)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("program %s is neither a keypair file nor an address; build and deploy the program first", value)
	}
	return decoded, nil
}
