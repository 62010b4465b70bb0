package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"time"
)

// Blockhash is a sha256 digest chaining a block to its predecessor.
type Blockhash [32]byte

// Receipt records the outcome of one transaction inside a committed block.
// Err is nil when the transaction was applied, otherwise the economic reason
// it was skipped.
type Receipt struct {
	Seq uint64
	Err error
}

// Applied reports whether the transaction took economic effect.
func (r Receipt) Applied() bool { return r.Err == nil }

// Block is an ordered, immutable batch of transactions. Transaction order is
// the drain order and is never changed after construction. CommittedAt and
// Receipts are filled by the chain during commit; everything else is fixed by
// NewBlock.
type Block struct {
	Height       uint64        `json:"height"`
	Proposer     AccountID     `json:"proposer"`
	Timestamp    int64         `json:"timestamp"` // unix seconds
	PrevHash     Blockhash     `json:"prev_hash"`
	Hash         Blockhash     `json:"hash"`
	Transactions []Transaction `json:"transactions"`

	CommittedAt uint64    `json:"committed_at"`
	Receipts    []Receipt `json:"-"`
}

// NewBlock builds a block at the given height from a drained batch. The hash
// covers the previous hash, height, proposer, timestamp and every encoded
// transaction, so any two blocks with the same parent and content collide
// only if they are the same block.
func NewBlock(height uint64, proposer AccountID, txs []Transaction, prevHash Blockhash) *Block {
	b := &Block{
		Height:       height,
		Proposer:     proposer,
		Timestamp:    time.Now().Unix(),
		PrevHash:     prevHash,
		Transactions: txs,
	}
	b.Hash = b.computeHash()
	return b
}

func (b *Block) computeHash() Blockhash {
	h := sha256.New()
	h.Write(b.PrevHash[:])

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], b.Height)
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(b.Timestamp))
	h.Write(buf[:])
	h.Write([]byte(b.Proposer))

	for _, tx := range b.Transactions {
		h.Write(tx.Encode())
	}

	var out Blockhash
	copy(out[:], h.Sum(nil))
	return out
}

// AppliedCount returns how many transactions in the block took effect.
func (b *Block) AppliedCount() int {
	n := 0
	for _, r := range b.Receipts {
		if r.Applied() {
			n++
		}
	}
	return n
}
