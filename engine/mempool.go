package engine

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
)

// Common errors for mempool operations
var (
	ErrMempoolFull = errors.New("mempool is full")
	ErrTxNotFound  = errors.New("transaction not found")
)

// Mempool is the shared pool of pending transactions. Producers submit,
// validators drain batches. A single mutex covers submit, drain and requeue,
// so concurrent drains never observe overlapping or partial batches.
//
// The pool owns a transaction from Submit until a successful DrainUpTo; after
// that the drained batch belongs to the caller and the pool keeps no
// reference.
type Mempool struct {
	mu      sync.Mutex
	pending []Transaction // in sequence order
	maxSize int
	seq     atomic.Uint64

	// Lifetime counters, reported via Stats.
	submitted atomic.Uint64
	drained   atomic.Uint64

	// onChange, when set, is invoked after every submit and requeue so
	// waiting validators can be woken without polling.
	onChange func()
}

// NewMempool creates a mempool holding at most maxSize pending transactions.
func NewMempool(maxSize int) *Mempool {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Mempool{
		pending: make([]Transaction, 0, maxSize),
		maxSize: maxSize,
	}
}

// OnChange registers a callback fired after submits and requeues. Set once
// during wiring, before any producer starts.
func (m *Mempool) OnChange(fn func()) {
	m.onChange = fn
}

// Submit adds a transaction to the pool and returns its assigned sequence id.
// It never blocks; a full pool is reported as ErrMempoolFull.
func (m *Mempool) Submit(tx Transaction) (uint64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	if len(m.pending) >= m.maxSize {
		m.mu.Unlock()
		return 0, ErrMempoolFull
	}
	tx.Seq = m.seq.Add(1)
	m.pending = append(m.pending, tx)
	m.mu.Unlock()

	m.submitted.Add(1)
	if m.onChange != nil {
		m.onChange()
	}
	return tx.Seq, nil
}

// DrainUpTo atomically removes and returns at most n pending transactions in
// pool order. Concurrent callers always receive disjoint batches.
func (m *Mempool) DrainUpTo(n int) []Transaction {
	if n <= 0 {
		return nil
	}

	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return nil
	}
	if n > len(m.pending) {
		n = len(m.pending)
	}
	batch := make([]Transaction, n)
	copy(batch, m.pending[:n])
	rest := m.pending[n:]
	m.pending = append(m.pending[:0:0], rest...)
	m.mu.Unlock()

	m.drained.Add(uint64(n))
	return batch
}

// Requeue returns a drained batch to the pool, in front of younger entries so
// the original sequence order is preserved. Used when an optimistic append
// lost the height race. Requeue ignores the capacity bound: the transactions
// were already admitted once.
func (m *Mempool) Requeue(txs []Transaction) {
	if len(txs) == 0 {
		return
	}

	m.mu.Lock()
	merged := make([]Transaction, 0, len(txs)+len(m.pending))
	merged = append(merged, txs...)
	merged = append(merged, m.pending...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Seq < merged[j].Seq })
	m.pending = merged
	m.mu.Unlock()

	m.drained.Add(^uint64(len(txs) - 1))
	if m.onChange != nil {
		m.onChange()
	}
}

// Get returns a still-pending transaction by sequence id.
func (m *Mempool) Get(seq uint64) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.pending {
		if tx.Seq == seq {
			return tx, nil
		}
	}
	return Transaction{}, ErrTxNotFound
}

// Cancel withdraws a still-pending transaction. Transactions already drained
// into a block cannot be cancelled.
func (m *Mempool) Cancel(seq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, tx := range m.pending {
		if tx.Seq == seq {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return nil
		}
	}
	return ErrTxNotFound
}

// Size returns the current number of pending transactions.
func (m *Mempool) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// IsEmpty is a point-in-time emptiness check. It is inherently racy and is
// only meaningful combined with the coordinator's quiescence accounting.
func (m *Mempool) IsEmpty() bool {
	return m.Size() == 0
}

// MempoolStats is a snapshot of pool counters.
type MempoolStats struct {
	Pending   int    `json:"pending"`
	MaxSize   int    `json:"max_size"`
	Submitted uint64 `json:"submitted"`
	Drained   uint64 `json:"drained"`
}

// Stats returns mempool statistics.
func (m *Mempool) Stats() MempoolStats {
	m.mu.Lock()
	pending := len(m.pending)
	m.mu.Unlock()

	return MempoolStats{
		Pending:   pending,
		MaxSize:   m.maxSize,
		Submitted: m.submitted.Load(),
		Drained:   m.drained.Load(),
	}
}
