package sim

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/VanDung-dev/SimChain-Engine/engine"
)

// Report summarizes a finished simulation run.
type Report struct {
	Height     uint64                              `json:"height"`
	Blocks     []*engine.Block                     `json:"blocks"`
	Accounts   map[engine.AccountID]engine.Account `json:"accounts"`
	Validators []engine.ValidatorStats             `json:"validators"`
	Pool       engine.MempoolStats                 `json:"pool"`
	Applied    int                                 `json:"applied"`
	Rejected   int                                 `json:"rejected"`
	Elapsed    time.Duration                       `json:"elapsed"`
}

// String renders a human-readable run summary.
func (r *Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== SimChain run report ===\n")
	fmt.Fprintf(&b, "Elapsed:  %v\n", r.Elapsed.Round(time.Microsecond))
	fmt.Fprintf(&b, "Height:   %d blocks\n", r.Height)
	fmt.Fprintf(&b, "Txs:      %d applied, %d rejected, %d left pending\n",
		r.Applied, r.Rejected, r.Pool.Pending)

	fmt.Fprintf(&b, "\nBlocks:\n")
	for _, blk := range r.Blocks {
		fmt.Fprintf(&b, "  #%-4d proposer=%s txs=%d applied=%d hash=%x…\n",
			blk.Height, short(blk.Proposer), len(blk.Transactions), blk.AppliedCount(), blk.Hash[:4])
	}

	fmt.Fprintf(&b, "\nValidators:\n")
	for _, v := range r.Validators {
		fmt.Fprintf(&b, "  %s blocks=%d txs=%d conflicts=%d empty-drains=%d\n",
			short(v.ID), v.BlocksProposed, v.TxsCommitted, v.HeightConflicts, v.EmptyDrains)
	}

	ids := make([]engine.AccountID, 0, len(r.Accounts))
	for id := range r.Accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fmt.Fprintf(&b, "\nAccounts:\n")
	for _, id := range ids {
		acct := r.Accounts[id]
		fmt.Fprintf(&b, "  %s balance=%d stake=%d\n", short(id), acct.Balance, acct.Stake)
	}
	return b.String()
}

func short(id engine.AccountID) string {
	if len(id) > 10 {
		return string(id[:10])
	}
	return string(id)
}
