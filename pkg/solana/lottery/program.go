// Package lottery_program describes the on-chain lottery program: the layout
// of its lottery account and the instructions it accepts.
//
// The program is deployed per environment, so every instruction constructor
// takes the program address explicitly.
package lottery_program

import (
	"crypto/ed25519"
	"errors"

	"github.com/code-payments/lottery-client/pkg/solana/system"
)

var ErrInvalidInstructionData = errors.New("unexpected instruction data")

// MaxParticipants is the number of participant slots compiled into the
// deployed program. Changing it requires redeploying the program.
const MaxParticipants = 2

// SYSTEM_PROGRAM_ID is passed to participate so the program can move the
// entry fee into the lottery account.
var SYSTEM_PROGRAM_ID = system.ProgramKey

func isZeroKey(key ed25519.PublicKey) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}
