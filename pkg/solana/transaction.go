package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

// MaxTransactionSize is the largest serialized transaction the cluster
// accepts, matching the network packet data size.
//
// Reference: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
const MaxTransactionSize = 1232

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

// Message is a legacy transaction message. The lottery program and the
// system program never need address lookup tables.
type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles the instructions into a legacy transaction paid for
// by payer. Signatures are left empty until Sign is called.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	accounts := collectAccounts(payer, instructions)

	var m Message
	m.Accounts = make([]ed25519.PublicKey, len(accounts))
	for i, account := range accounts {
		m.Accounts[i] = account.PublicKey
		if len(account.PublicKey) == 0 {
			m.Accounts[i] = make(ed25519.PublicKey, ed25519.PublicKeySize)
		}

		switch {
		case account.IsSigner && !account.IsWritable:
			m.Header.NumSignatures++
			m.Header.NumReadonlySigned++
		case account.IsSigner:
			m.Header.NumSignatures++
		case !account.IsWritable:
			m.Header.NumReadOnly++
		}
	}

	// Indexes are resolved against the original keys, so that empty keys
	// still map onto their zero-filled slot
	index := make(map[string]byte, len(accounts))
	for i, account := range accounts {
		index[string(account.PublicKey)] = byte(i)
	}

	m.Instructions = make([]CompiledInstruction, len(instructions))
	for i, ix := range instructions {
		compiled := CompiledInstruction{
			ProgramIndex: index[string(ix.Program)],
			Accounts:     make([]byte, len(ix.Accounts)),
			Data:         ix.Data,
		}
		for j, account := range ix.Accounts {
			compiled.Accounts[j] = index[string(account.PublicKey)]
		}
		m.Instructions[i] = compiled
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// collectAccounts returns every account referenced by the transaction once,
// with merged permissions, in message order.
func collectAccounts(payer ed25519.PublicKey, instructions []Instruction) []AccountMeta {
	var accounts []AccountMeta
	seen := make(map[string]int)

	add := func(account AccountMeta) {
		key := string(account.PublicKey)
		if i, ok := seen[key]; ok {
			accounts[i].merge(account)
			return
		}
		seen[key] = len(accounts)
		accounts = append(accounts, account)
	}

	add(AccountMeta{
		PublicKey:  payer,
		IsSigner:   true,
		IsWritable: true,
		isPayer:    true,
	})
	for _, ix := range instructions {
		add(AccountMeta{PublicKey: ix.Program, isProgram: true})
		for _, account := range ix.Accounts {
			add(account)
		}
	}

	slices.SortFunc(accounts, compareAccountMeta)
	return accounts
}

// Signature returns the fee payer's signature, which identifies the transaction
func (t *Transaction) Signature() []byte {
	return t.Signatures[0][:]
}

// Signers returns the accounts that must sign the transaction, fee payer first.
func (t *Transaction) Signers() []ed25519.PublicKey {
	return t.Message.Accounts[:t.Message.Header.NumSignatures]
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the message with each key, placing every signature in the slot
// of its signer. Keys may be provided in any order.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	message := t.Message.Marshal()

	for _, signer := range signers {
		pub := signer.Public().(ed25519.PublicKey)

		i := slices.IndexFunc(t.Message.Accounts, func(account ed25519.PublicKey) bool {
			return bytes.Equal(account, pub)
		})
		if i < 0 {
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		}
		if i >= len(t.Signatures) {
			return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
		}

		copy(t.Signatures[i][:], ed25519.Sign(signer, message))
	}

	return nil
}

// Verify reports whether every required signature is present and valid.
func (t *Transaction) Verify() bool {
	message := t.Message.Marshal()
	for i, signer := range t.Signers() {
		if !ed25519.Verify(signer, message, t.Signatures[i][:]) {
			return false
		}
	}
	return true
}

func (t *Transaction) String() string {
	var sb strings.Builder

	sb.WriteString("Signatures:\n")
	for i, s := range t.Signatures {
		fmt.Fprintf(&sb, "  %d: %s\n", i, s)
	}

	h := t.Message.Header
	sb.WriteString("Message:\n")
	fmt.Fprintf(&sb, "  Header:\n    NumSignatures: %d\n    NumReadOnly: %d\n    NumReadOnlySigned: %d\n",
		h.NumSignatures, h.NumReadOnly, h.NumReadonlySigned)

	sb.WriteString("  Accounts:\n")
	for i, a := range t.Message.Accounts {
		fmt.Fprintf(&sb, "    %d: %s\n", i, base58.Encode(a))
	}

	fmt.Fprintf(&sb, "  RecentBlockhash: %s\n", t.Message.RecentBlockhash)

	sb.WriteString("  Instructions:\n")
	for i, ix := range t.Message.Instructions {
		fmt.Fprintf(&sb, "    %d:\n      ProgramIndex: %d\n      Accounts: %v\n      Data: %v\n",
			i, ix.ProgramIndex, ix.Accounts, ix.Data)
	}

	return sb.String()
}
