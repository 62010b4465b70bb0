package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Common errors for transaction handling
var (
	ErrInvalidTx = errors.New("invalid transaction")
)

// AccountID identifies an account. IDs are opaque strings; the harness uses
// hex-address style names.
type AccountID string

// TxKind discriminates the transaction variants.
type TxKind uint8

const (
	// TxTransfer moves Amount from one account's balance to another's.
	TxTransfer TxKind = iota + 1
	// TxStake moves Amount from an account's balance to its stake.
	TxStake
)

func (k TxKind) String() string {
	switch k {
	case TxTransfer:
		return "transfer"
	case TxStake:
		return "stake"
	default:
		return "unknown"
	}
}

// Transaction is an immutable intent to mutate the ledger. Seq is assigned by
// the mempool at submission and is unique and strictly increasing; it is the
// tie-break ordering across producers.
//
// For TxTransfer, From is the sender and To the recipient. For TxStake, From
// is the staking account and To is unused.
type Transaction struct {
	Seq    uint64    `json:"seq"`
	Kind   TxKind    `json:"kind"`
	From   AccountID `json:"from"`
	To     AccountID `json:"to,omitempty"`
	Amount uint64    `json:"amount"`
}

// NewTransfer builds an unsubmitted transfer transaction.
func NewTransfer(from, to AccountID, amount uint64) Transaction {
	return Transaction{Kind: TxTransfer, From: from, To: to, Amount: amount}
}

// NewStake builds an unsubmitted stake transaction.
func NewStake(account AccountID, amount uint64) Transaction {
	return Transaction{Kind: TxStake, From: account, Amount: amount}
}

// Validate checks that the transaction is structurally usable.
func (tx Transaction) Validate() error {
	switch tx.Kind {
	case TxTransfer:
		if tx.From == "" || tx.To == "" {
			return fmt.Errorf("%w: transfer requires from and to", ErrInvalidTx)
		}
	case TxStake:
		if tx.From == "" {
			return fmt.Errorf("%w: stake requires an account", ErrInvalidTx)
		}
		if tx.To != "" {
			return fmt.Errorf("%w: stake must not name a recipient", ErrInvalidTx)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidTx, tx.Kind)
	}
	if tx.Amount == 0 {
		return fmt.Errorf("%w: zero amount", ErrInvalidTx)
	}
	return nil
}

// Encode returns the canonical little-endian byte layout of the transaction.
// It is used only as block-hash input, never as a wire format.
func (tx Transaction) Encode() []byte {
	buf := make([]byte, 0, 1+8+8+len(tx.From)+len(tx.To))
	buf = append(buf, byte(tx.Kind))
	buf = binary.LittleEndian.AppendUint64(buf, tx.Seq)
	buf = binary.LittleEndian.AppendUint64(buf, tx.Amount)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(tx.From)))
	buf = append(buf, tx.From...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(tx.To)))
	buf = append(buf, tx.To...)
	return buf
}

func (tx Transaction) String() string {
	if tx.Kind == TxStake {
		return fmt.Sprintf("stake#%d %s amount=%d", tx.Seq, tx.From, tx.Amount)
	}
	return fmt.Sprintf("transfer#%d %s->%s amount=%d", tx.Seq, tx.From, tx.To, tx.Amount)
}
