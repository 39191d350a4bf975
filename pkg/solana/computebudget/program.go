package compute_budget

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"

	"github.com/code-payments/lottery-client/pkg/solana"
	"github.com/code-payments/lottery-client/pkg/solana/binary"
)

// ProgramKey is the compute budget program, used to pay a priority fee so
// transactions land on congested clusters.
//
// https://explorer.solana.com/address/ComputeBudget111111111111111111111111111111
var ProgramKey ed25519.PublicKey

func init() {
	var err error

	ProgramKey, err = base58.Decode("ComputeBudget111111111111111111111111111111")
	if err != nil {
		panic(err)
	}
}

const (
	// nolint:varcheck,deadcode,unused
	commandRequestUnits uint8 = iota
	// nolint:varcheck,deadcode,unused
	commandRequestHeapFrame
	commandSetComputeUnitLimit
	commandSetComputeUnitPrice
)

const (
	setComputeUnitLimitDataSize = 1 + // command
		4 // units

	setComputeUnitPriceDataSize = 1 + // command
		8 // micro-lamports per unit
)

// SetComputeUnitLimit caps the compute units the transaction may consume.
// The priority fee is charged against this limit.
func SetComputeUnitLimit(units uint32) solana.Instruction {
	data := make([]byte, setComputeUnitLimitDataSize)

	var offset int
	binary.PutUint8(data, commandSetComputeUnitLimit, &offset)
	binary.PutUint32(data[offset:], units, &offset)

	return solana.NewInstruction(ProgramKey, data)
}

// SetComputeUnitPrice sets the priority fee, in micro-lamports per compute
// unit.
func SetComputeUnitPrice(microLamports uint64) solana.Instruction {
	data := make([]byte, setComputeUnitPriceDataSize)

	var offset int
	binary.PutUint8(data, commandSetComputeUnitPrice, &offset)
	binary.PutUint64(data[offset:], microLamports, &offset)

	return solana.NewInstruction(ProgramKey, data)
}

func DecompileSetComputeUnitLimit(ix solana.Instruction) (uint32, error) {
	if err := checkInstruction(ix, commandSetComputeUnitLimit, setComputeUnitLimitDataSize); err != nil {
		return 0, err
	}

	var units uint32
	offset := 1
	binary.GetUint32(ix.Data[offset:], &units, &offset)
	return units, nil
}

func DecompileSetComputeUnitPrice(ix solana.Instruction) (uint64, error) {
	if err := checkInstruction(ix, commandSetComputeUnitPrice, setComputeUnitPriceDataSize); err != nil {
		return 0, err
	}

	var microLamports uint64
	offset := 1
	binary.GetUint64(ix.Data[offset:], &microLamports, &offset)
	return microLamports, nil
}

func checkInstruction(ix solana.Instruction, command uint8, size int) error {
	if !bytes.Equal(ix.Program, ProgramKey) {
		return solana.ErrIncorrectProgram
	}

	if len(ix.Data) != size || ix.Data[0] != command {
		return solana.ErrIncorrectInstruction
	}

	return nil
}
