package system

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/lottery-client/pkg/solana"
	"github.com/code-payments/lottery-client/pkg/solana/binary"
)

// ProgramKey is the system program, which owns every account until it is
// assigned to another program.
//
// https://explorer.solana.com/address/11111111111111111111111111111111
var ProgramKey ed25519.PublicKey

func init() {
	key, err := base58.Decode("11111111111111111111111111111111")
	if err != nil {
		panic(err)
	}
	ProgramKey = key
}

// Only CreateAccount is used, but the command is positional within the
// program's instruction enum.
const commandCreateAccount uint32 = 0

// createAccountDataSize is the command, lamports, space and owner
const createAccountDataSize = 4 + 8 + 8 + ed25519.PublicKeySize

// CreateAccount returns an instruction that funds address with lamports,
// allocates size bytes of data for it and assigns it to owner. Both funder
// and address must sign.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	var offset int
	data := make([]byte, createAccountDataSize)
	binary.PutUint32(data[offset:], commandCreateAccount, &offset)
	binary.PutUint64(data[offset:], lamports, &offset)
	binary.PutUint64(data[offset:], size, &offset)
	binary.PutKey32(data[offset:], owner, &offset)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

// DecompiledCreateAccount is a CreateAccount instruction parsed out of a
// compiled message
type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

// DecompileCreateAccount parses the CreateAccount instruction at index in m.
// solana.ErrIncorrectProgram and solana.ErrIncorrectInstruction are returned
// for other instructions.
func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}
	ix := m.Instructions[index]

	if !bytes.Equal(m.Accounts[ix.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}

	var offset int
	var command uint32
	if len(ix.Data) < 4 {
		return nil, solana.ErrIncorrectInstruction
	} else if binary.GetUint32(ix.Data, &command, &offset); command != commandCreateAccount {
		return nil, solana.ErrIncorrectInstruction
	}

	switch {
	case len(ix.Accounts) != 2:
		return nil, errors.Errorf("invalid number of accounts: %d", len(ix.Accounts))
	case len(ix.Data) != createAccountDataSize:
		return nil, errors.Errorf("invalid instruction data size: %d", len(ix.Data))
	}

	v := &DecompiledCreateAccount{
		Funder:  m.Accounts[ix.Accounts[0]],
		Address: m.Accounts[ix.Accounts[1]],
	}
	binary.GetUint64(ix.Data[offset:], &v.Lamports, &offset)
	binary.GetUint64(ix.Data[offset:], &v.Size, &offset)
	binary.GetKey32(ix.Data[offset:], &v.Owner, &offset)

	return v, nil
}
