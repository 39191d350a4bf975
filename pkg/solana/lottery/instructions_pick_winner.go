package lottery_program

import (
	"crypto/ed25519"

	"github.com/code-payments/lottery-client/pkg/solana"
	"github.com/code-payments/lottery-client/pkg/solana/layout"
)

const PickWinnerInstructionSize = 1 // tag

// PickWinnerInstruction pays out a full lottery. Only the initializer may
// send it. Both candidates must be passed, since the program only picks
// which of them receives the pot.
type PickWinnerInstruction struct{}

func (*PickWinnerInstruction) Tag() InstructionTag {
	return TagPickWinner
}

func (*PickWinnerInstruction) Schema() *layout.Schema {
	return tagSchema
}

func (*PickWinnerInstruction) Values() layout.Values {
	return tagValues(TagPickWinner)
}

func (*PickWinnerInstruction) isInstruction() {}

type PickWinnerInstructionAccounts struct {
	Payer      ed25519.PublicKey
	Lottery    ed25519.PublicKey
	CandidateA ed25519.PublicKey
	CandidateB ed25519.PublicKey
}

func NewPickWinnerInstruction(
	program ed25519.PublicKey,
	accounts *PickWinnerInstructionAccounts,
) (solana.Instruction, error) {
	return NewInstruction(
		program,
		&PickWinnerInstruction{},
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
		solana.AccountMeta{
			PublicKey:  accounts.CandidateA,
			IsSigner:   false,
			IsWritable: true,
		},
		solana.AccountMeta{
			PublicKey:  accounts.CandidateB,
			IsSigner:   false,
			IsWritable: true,
		},
	)
}
