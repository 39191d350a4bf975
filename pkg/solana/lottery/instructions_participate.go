package lottery_program

import (
	"crypto/ed25519"

	"github.com/code-payments/lottery-client/pkg/solana"
	"github.com/code-payments/lottery-client/pkg/solana/layout"
)

const ParticipateInstructionSize = 1 // tag

// ParticipateInstruction takes the next free participant slot for the signer
// and moves the entry fee into the lottery account.
type ParticipateInstruction struct{}

func (*ParticipateInstruction) Tag() InstructionTag {
	return TagParticipate
}

func (*ParticipateInstruction) Schema() *layout.Schema {
	return tagSchema
}

func (*ParticipateInstruction) Values() layout.Values {
	return tagValues(TagParticipate)
}

func (*ParticipateInstruction) isInstruction() {}

type ParticipateInstructionAccounts struct {
	Payer   ed25519.PublicKey
	Lottery ed25519.PublicKey
}

func NewParticipateInstruction(
	program ed25519.PublicKey,
	accounts *ParticipateInstructionAccounts,
) (solana.Instruction, error) {
	return NewInstruction(
		program,
		&ParticipateInstruction{},
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
			PublicKey:  SYSTEM_PROGRAM_ID,
			IsSigner:   false,
			IsWritable: false,
		},
	)
}
