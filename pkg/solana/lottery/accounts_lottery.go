package lottery_program

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strconv"
	"strings"

	"github.com/mr-tron/base58/base58"

	"github.com/code-payments/lottery-client/pkg/solana/layout"
)

const AccountSize = (4 + // entry_fees
	1 + // commission_rate
	32 + // initializer
	32*MaxParticipants) // participants

// AccountSchema is the persisted layout of a lottery account. Field order
// and widths must match the deployed program exactly.
var AccountSchema = layout.MustNewSchema(
	layout.Field{Key: "entry_fees", Kind: layout.U32},
	layout.Field{Key: "commission_rate", Kind: layout.U8},
	layout.Field{Key: "initializer", Kind: layout.Bytes(ed25519.PublicKeySize)},
	layout.Field{Key: "participants", Kind: layout.Bytes(ed25519.PublicKeySize * MaxParticipants)},
)

// State is the lifecycle stage of a lottery, as observed by a client.
type State uint8

const (
	// The account exists but init has not been processed
	StateUninitialized State = iota
	// At least one participant slot is still empty
	StateOpen
	// Every participant slot is taken and a winner can be picked
	StateFull
	// A winner was picked and the account was drained, or it never existed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOpen:
		return "open"
	case StateFull:
		return "full"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type Account struct {
	EntryFees      uint32 // whole SOL, charged to each participant
	CommissionRate uint8  // percent of the pot paid to the initializer
	Initializer    ed25519.PublicKey

	// Always MaxParticipants entries. Empty slots hold the zero key.
	Participants []ed25519.PublicKey
}

// Marshal encodes the account. A nil Initializer and nil or missing
// participant entries are written as empty (zero key) slots. Any other key
// must be exactly ed25519.PublicKeySize bytes, and there can be at most
// MaxParticipants participants.
func (obj *Account) Marshal() ([]byte, error) {
	if len(obj.Participants) > MaxParticipants {
		return nil, &layout.EncodingError{
			Key:    "participants",
			Reason: fmt.Sprintf("expected at most %d participants, got %d", MaxParticipants, len(obj.Participants)),
		}
	}

	initializer, err := slotValue("initializer", obj.Initializer)
	if err != nil {
		return nil, err
	}

	participants := make([]byte, 0, ed25519.PublicKeySize*MaxParticipants)
	for i := 0; i < MaxParticipants; i++ {
		var key ed25519.PublicKey
		if i < len(obj.Participants) {
			key = obj.Participants[i]
		}

		slot, err := slotValue(fmt.Sprintf("participants[%d]", i), key)
		if err != nil {
			return nil, err
		}
		participants = append(participants, slot...)
	}

	return layout.Encode(AccountSchema, layout.Values{
		"entry_fees":      obj.EntryFees,
		"commission_rate": obj.CommissionRate,
		"initializer":     initializer,
		"participants":    participants,
	})
}

func slotValue(key string, value ed25519.PublicKey) ([]byte, error) {
	if value == nil {
		return make([]byte, ed25519.PublicKeySize), nil
	}

	if len(value) != ed25519.PublicKeySize {
		return nil, &layout.EncodingError{
			Key:    key,
			Reason: fmt.Sprintf("expected %d bytes, got %d", ed25519.PublicKeySize, len(value)),
		}
	}
	return value, nil
}

func (obj *Account) Unmarshal(data []byte) error {
	v, err := layout.Decode(AccountSchema, data)
	if err != nil {
		return err
	}

	obj.EntryFees = v["entry_fees"].(uint32)
	obj.CommissionRate = v["commission_rate"].(uint8)
	obj.Initializer = v["initializer"].([]byte)

	participants := v["participants"].([]byte)
	obj.Participants = make([]ed25519.PublicKey, MaxParticipants)
	for i := range obj.Participants {
		obj.Participants[i] = participants[i*ed25519.PublicKeySize : (i+1)*ed25519.PublicKeySize]
	}

	return nil
}

// State derives the lottery's lifecycle stage from its persisted fields.
func (obj *Account) State() State {
	if isZeroKey(obj.Initializer) {
		return StateUninitialized
	}

	if obj.ParticipantCount() < MaxParticipants {
		return StateOpen
	}
	return StateFull
}

func (obj *Account) ParticipantCount() int {
	var count int
	for _, p := range obj.Participants {
		if !isZeroKey(p) {
			count++
		}
	}
	return count
}

func (obj *Account) HasParticipant(key ed25519.PublicKey) bool {
	if isZeroKey(key) {
		return false
	}

	for _, p := range obj.Participants {
		if bytes.Equal(p, key) {
			return true
		}
	}
	return false
}

func (obj *Account) String() string {
	participants := make([]string, 0, len(obj.Participants))
	for _, p := range obj.Participants {
		if isZeroKey(p) {
			participants = append(participants, "<empty>")
			continue
		}
		participants = append(participants, base58.Encode(p))
	}

	var initializer string
	if obj.Initializer != nil {
		initializer = base58.Encode(obj.Initializer)
	}

	return "LotteryAccount{" +
		"entry_fees='" + strconv.FormatUint(uint64(obj.EntryFees), 10) + "'" +
		", commission_rate='" + strconv.Itoa(int(obj.CommissionRate)) + "'" +
		", initializer='" + initializer + "'" +
		", participants='" + strings.Join(participants, ",") + "'" +
		"}"
}
