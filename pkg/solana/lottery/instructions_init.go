package lottery_program

import (
	"crypto/ed25519"

	"github.com/code-payments/lottery-client/pkg/solana"
	"github.com/code-payments/lottery-client/pkg/solana/layout"
)

const InitInstructionSize = (1 + // tag
	4 + // entry_fees
	1) // commission_rate

var initInstructionSchema = layout.MustNewSchema(
	tagField,
	layout.Field{Key: "entry_fees", Kind: layout.U32},
	layout.Field{Key: "commission_rate", Kind: layout.U8},
)

// InitInstruction sets the entry fee and commission of a freshly provisioned
// lottery account, and records the signer as its initializer.
type InitInstruction struct {
	EntryFees      uint32
	CommissionRate uint8
}

func (*InitInstruction) Tag() InstructionTag {
	return TagInit
}

func (*InitInstruction) Schema() *layout.Schema {
	return initInstructionSchema
}

func (ix *InitInstruction) Values() layout.Values {
	v := tagValues(TagInit)
	v["entry_fees"] = ix.EntryFees
	v["commission_rate"] = ix.CommissionRate
	return v
}

func (*InitInstruction) isInstruction() {}

type InitInstructionArgs struct {
	EntryFees      uint32
	CommissionRate uint8
}

type InitInstructionAccounts struct {
	Payer   ed25519.PublicKey
	Lottery ed25519.PublicKey
}

func NewInitInstruction(
	program ed25519.PublicKey,
	accounts *InitInstructionAccounts,
	args *InitInstructionArgs,
) (solana.Instruction, error) {
	return NewInstruction(
		program,
		&InitInstruction{
			EntryFees:      args.EntryFees,
			CommissionRate: args.CommissionRate,
		},
		solana.AccountMeta{
			PublicKey:  accounts.Payer,
			IsSigner:   true,
			IsWritable: true,
		},
		solana.AccountMeta{
			PublicKey:  accounts.Lottery,
			IsSigner:   false,
			IsWritable: true,
		},
	)
}
