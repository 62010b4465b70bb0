package engine

import (
	"errors"
	"sort"
	"sync"
)

// Common errors for ledger application
var (
	ErrUnknownAccount      = errors.New("unknown account")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Account holds the economic state of one identity. Balance and Stake are
// unsigned and rejection happens before mutation, so neither can go negative.
type Account struct {
	Balance uint64 `json:"balance"`
	Stake   uint64 `json:"stake"`
}

// Ledger is the account state derived from committed blocks. Writes happen
// only inside the chain's commit critical section; all other access is a
// read-locked snapshot and can never observe a half-applied block.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[AccountID]Account
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[AccountID]Account)}
}

// Fund creates the account if needed and credits its balance. Harness use
// only: initial balances are seeded before any validator starts.
func (l *Ledger) Fund(id AccountID, amount uint64) {
	l.mu.Lock()
	acct := l.accounts[id]
	acct.Balance += amount
	l.accounts[id] = acct
	l.mu.Unlock()
}

// BalanceOf returns the account's current balance, zero for unknown accounts.
func (l *Ledger) BalanceOf(id AccountID) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[id].Balance
}

// StakeOf returns the account's current stake, zero for unknown accounts.
func (l *Ledger) StakeOf(id AccountID) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[id].Stake
}

// Exists reports whether the account has been created.
func (l *Ledger) Exists(id AccountID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[id]
	return ok
}

// Accounts returns a snapshot copy of the full account state.
func (l *Ledger) Accounts() map[AccountID]Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[AccountID]Account, len(l.accounts))
	for id, acct := range l.accounts {
		out[id] = acct
	}
	return out
}

// AccountIDs returns all known account ids in stable (sorted) order.
func (l *Ledger) AccountIDs() []AccountID {
	l.mu.RLock()
	ids := make([]AccountID, 0, len(l.accounts))
	for id := range l.accounts {
		ids = append(ids, id)
	}
	l.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// apply folds every transaction of the block into the ledger, in block order,
// and returns one receipt per transaction. Economically invalid transactions
// are skipped (receipt with Err set, no state change); the block still
// commits. Callers must hold the chain's commit lock; apply takes the write
// lock so concurrent snapshot readers see either none or all of the block.
func (l *Ledger) apply(b *Block) []Receipt {
	receipts := make([]Receipt, 0, len(b.Transactions))

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, tx := range b.Transactions {
		receipts = append(receipts, Receipt{Seq: tx.Seq, Err: l.applyTx(tx)})
	}
	return receipts
}

// applyTx mutates state for one transaction, or returns the reason it was
// rejected without touching anything. Caller holds the write lock.
func (l *Ledger) applyTx(tx Transaction) error {
	switch tx.Kind {
	case TxTransfer:
		from, ok := l.accounts[tx.From]
		if !ok {
			return ErrUnknownAccount
		}
		to, ok := l.accounts[tx.To]
		if !ok {
			return ErrUnknownAccount
		}
		if from.Balance < tx.Amount {
			return ErrInsufficientBalance
		}
		if tx.From == tx.To {
			// Self-transfer of a covered amount is a valid no-op.
			return nil
		}
		from.Balance -= tx.Amount
		to.Balance += tx.Amount
		l.accounts[tx.From] = from
		l.accounts[tx.To] = to
		return nil

	case TxStake:
		acct, ok := l.accounts[tx.From]
		if !ok {
			return ErrUnknownAccount
		}
		if acct.Balance < tx.Amount {
			return ErrInsufficientBalance
		}
		acct.Balance -= tx.Amount
		acct.Stake += tx.Amount
		l.accounts[tx.From] = acct
		return nil

	default:
		return ErrInvalidTx
	}
}

// TotalSupply returns the sum of all balances and stakes. Transfers and
// stakes conserve it; the harness asserts that after every run.
func (l *Ledger) TotalSupply() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total uint64
	for _, acct := range l.accounts {
		total += acct.Balance + acct.Stake
	}
	return total
}
