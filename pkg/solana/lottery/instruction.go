package lottery_program

import (
	"crypto/ed25519"

	"github.com/code-payments/lottery-client/pkg/solana"
	"github.com/code-payments/lottery-client/pkg/solana/layout"
)

// InstructionTag is the leading byte of every instruction, selecting which
// operation the program performs.
type InstructionTag uint8

const (
	TagInit InstructionTag = iota
	TagParticipate
	TagPickWinner
)

func (t InstructionTag) String() string {
	switch t {
	case TagInit:
		return "init"
	case TagParticipate:
		return "participate"
	case TagPickWinner:
		return "pick_winner"
	}
	return "unknown"
}

var tagField = layout.Field{Key: "tag", Kind: layout.U8}

var tagSchema = layout.MustNewSchema(tagField)

// Instruction is the data payload of a lottery program instruction. It is
// implemented by InitInstruction, ParticipateInstruction and
// PickWinnerInstruction only.
type Instruction interface {
	Tag() InstructionTag

	// Schema describes the full payload, starting with the tag.
	Schema() *layout.Schema

	// Values are the payload values keyed against Schema, tag included.
	Values() layout.Values

	isInstruction()
}

// NewInstruction encodes ix and addresses it to program with the provided
// account references, in order.
func NewInstruction(program ed25519.PublicKey, ix Instruction, accounts ...solana.AccountMeta) (solana.Instruction, error) {
	data, err := layout.Encode(ix.Schema(), ix.Values())
	if err != nil {
		return solana.Instruction{}, err
	}

	return solana.NewInstruction(program, data, accounts...), nil
}

// DecodeInstruction parses instruction data the way the program does:
// the first byte selects the instruction, and anything after the payload
// is ignored.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, ErrInvalidInstructionData
	}

	switch InstructionTag(data[0]) {
	case TagInit:
		v, err := layout.Decode(initInstructionSchema, data)
		if err != nil {
			return nil, err
		}

		return &InitInstruction{
			EntryFees:      v["entry_fees"].(uint32),
			CommissionRate: v["commission_rate"].(uint8),
		}, nil
	case TagParticipate:
		return &ParticipateInstruction{}, nil
	case TagPickWinner:
		return &PickWinnerInstruction{}, nil
	}

	return nil, ErrInvalidInstructionData
}

func tagValues(tag InstructionTag) layout.Values {
	return layout.Values{tagField.Key: uint8(tag)}
}
