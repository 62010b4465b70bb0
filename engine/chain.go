package engine

import (
	"errors"
	"sync"
)

// Common errors for chain operations
var (
	ErrHeightConflict = errors.New("height conflict: block height is not chain height + 1")
	ErrBadParent      = errors.New("block does not extend the chain head")
)

// Chain is the append-only sequence of committed blocks and the single owner
// of ledger writes. Append is a compare-and-commit: the height check, the
// ledger fold and the append happen under one lock, so blocks enter in
// strictly increasing contiguous height order and no other goroutine can
// interleave between ledger update and chain update.
//
// Heights start at 1; an empty chain has height 0 and a zero head hash.
type Chain struct {
	mu      sync.RWMutex
	blocks  []*Block
	ledger  *Ledger
	commits uint64 // logical commit counter, stamped onto blocks

	// onCommit, when set, is invoked after every successful append (outside
	// the commit lock). It is the message-passing boundary a networked
	// deployment would replace with block gossip.
	onCommit func(*Block)
}

// NewChain creates an empty chain committing into the given ledger.
func NewChain(ledger *Ledger) *Chain {
	return &Chain{ledger: ledger}
}

// OnCommit registers a callback fired after each committed block. Set once
// during wiring, before any validator starts.
func (c *Chain) OnCommit(fn func(*Block)) {
	c.onCommit = fn
}

// Height returns the height of the last committed block, 0 for an empty
// chain.
func (c *Chain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint64(len(c.blocks))
}

// Head returns the hash of the chain head, the zero hash for an empty chain.
func (c *Chain) Head() Blockhash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return Blockhash{}
	}
	return c.blocks[len(c.blocks)-1].Hash
}

// BlockAt returns the committed block at the given height (1-based), or nil.
func (c *Chain) BlockAt(height uint64) *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if height == 0 || height > uint64(len(c.blocks)) {
		return nil
	}
	return c.blocks[height-1]
}

// Blocks returns a snapshot copy of the committed sequence.
func (c *Chain) Blocks() []*Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Append is the optimistic commit step. It succeeds only if the block's
// height equals the current height + 1 and its parent hash matches the head;
// on success the ledger is folded, receipts are recorded and the block
// becomes the new head, all atomically. A losing proposer gets
// ErrHeightConflict and is expected to requeue its batch and re-run the
// election check.
func (c *Chain) Append(b *Block) error {
	c.mu.Lock()
	if b.Height != uint64(len(c.blocks))+1 {
		c.mu.Unlock()
		return ErrHeightConflict
	}
	if b.PrevHash != c.headLocked() {
		c.mu.Unlock()
		return ErrBadParent
	}

	b.Receipts = c.ledger.apply(b)
	c.commits++
	b.CommittedAt = c.commits
	c.blocks = append(c.blocks, b)
	c.mu.Unlock()

	if c.onCommit != nil {
		c.onCommit(b)
	}
	return nil
}

func (c *Chain) headLocked() Blockhash {
	if len(c.blocks) == 0 {
		return Blockhash{}
	}
	return c.blocks[len(c.blocks)-1].Hash
}
