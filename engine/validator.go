package engine

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/VanDung-dev/SimChain-Engine/api"
)

// ValidatorState is the validator's position in its state machine.
type ValidatorState int32

const (
	StateIdle ValidatorState = iota
	StateElectionCheck
	StateProposing
	StateWaiting
	StateStopped
)

func (s ValidatorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateElectionCheck:
		return "election-check"
	case StateProposing:
		return "proposing"
	case StateWaiting:
		return "waiting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ValidatorStats is a snapshot of one validator's counters.
type ValidatorStats struct {
	ID              AccountID `json:"id"`
	BlocksProposed  uint64    `json:"blocks_proposed"`
	TxsCommitted    uint64    `json:"txs_committed"`
	HeightConflicts uint64    `json:"height_conflicts"`
	EmptyDrains     uint64    `json:"empty_drains"`
}

// ValidatorParams wires a validator into the core. Metrics may be nil.
type ValidatorParams struct {
	ID       AccountID
	Index    int // registration order, used for election and idle accounting
	Pool     *Mempool
	Chain    *Chain
	Ledger   *Ledger
	Coord    *Coordinator
	Election Election
	Config   Config
	Logger   zerolog.Logger
	Metrics  *api.Metrics
}

// Validator is an actor competing to propose blocks. Its loop is
// ElectionCheck → {Proposing | Waiting} until the coordinator raises the
// stop signal, which moves it to Stopped.
type Validator struct {
	id       AccountID
	index    int
	pool     *Mempool
	chain    *Chain
	ledger   *Ledger
	coord    *Coordinator
	election Election
	log      zerolog.Logger
	metrics  *api.Metrics

	batchSize    int
	pollInterval time.Duration

	state atomic.Int32

	blocksProposed  atomic.Uint64
	txsCommitted    atomic.Uint64
	heightConflicts atomic.Uint64
	emptyDrains     atomic.Uint64
}

// NewValidator creates a validator. Run must be called on its own goroutine.
func NewValidator(p ValidatorParams) *Validator {
	return &Validator{
		id:           p.ID,
		index:        p.Index,
		pool:         p.Pool,
		chain:        p.Chain,
		ledger:       p.Ledger,
		coord:        p.Coord,
		election:     p.Election,
		log:          p.Logger.With().Str("validator", string(p.ID)).Logger(),
		metrics:      p.Metrics,
		batchSize:    p.Config.BatchSize,
		pollInterval: time.Duration(p.Config.PollInterval),
	}
}

// ID returns the validator's account identity.
func (v *Validator) ID() AccountID { return v.id }

// State returns the validator's current state.
func (v *Validator) State() ValidatorState {
	return ValidatorState(v.state.Load())
}

// Stats returns a snapshot of the validator's counters.
func (v *Validator) Stats() ValidatorStats {
	return ValidatorStats{
		ID:              v.id,
		BlocksProposed:  v.blocksProposed.Load(),
		TxsCommitted:    v.txsCommitted.Load(),
		HeightConflicts: v.heightConflicts.Load(),
		EmptyDrains:     v.emptyDrains.Load(),
	}
}

// Run executes the validator loop until the stop signal fires. Every failure
// mode is recovered locally: a lost height race requeues the batch, an empty
// drain transitions to Waiting, and the stop signal is the only exit.
func (v *Validator) Run() {
	// Consecutive empty observations. Idle is only reported after two, so a
	// transaction mid-submission gets one full election-check cycle to land.
	emptyStreak := 0

	for {
		if v.coord.IsStopped() {
			v.stop()
			return
		}

		v.state.Store(int32(StateElectionCheck))
		next := v.chain.Height() + 1

		if v.election.Winner(next) != v.id {
			emptyStreak = v.observeQuiescence(emptyStreak)
			if !v.wait() {
				v.stop()
				return
			}
			continue
		}

		// Withdraw any stale idle report before taking work, so the stop
		// condition can never hold while a drained batch is in flight.
		v.coord.ClearIdle(v.index)
		batch := v.pool.DrainUpTo(v.batchSize)
		if len(batch) == 0 {
			v.emptyDrains.Add(1)
			if v.metrics != nil {
				v.metrics.RecordEmptyDrain()
			}
			emptyStreak = v.observeQuiescence(emptyStreak)
			if !v.wait() {
				v.stop()
				return
			}
			continue
		}

		emptyStreak = 0
		v.state.Store(int32(StateProposing))

		block := NewBlock(next, v.id, batch, v.chain.Head())
		if err := v.chain.Append(block); err != nil {
			// Lost the optimistic append. The batch goes back to the pool
			// and the next iteration re-runs the election check.
			v.pool.Requeue(batch)
			v.heightConflicts.Add(1)
			if v.metrics != nil {
				v.metrics.RecordHeightConflict()
			}
			v.log.Debug().
				Uint64("height", next).
				Int("txs", len(batch)).
				Err(err).
				Msg("append lost the race, requeued batch")
			continue
		}

		v.blocksProposed.Add(1)
		v.txsCommitted.Add(uint64(len(batch)))
		if v.metrics != nil {
			v.metrics.RecordBlock(block.Height, block.AppliedCount(), len(batch)-block.AppliedCount())
			v.metrics.UpdateMempoolSize(v.pool.Size())
		}
		v.log.Info().
			Uint64("height", block.Height).
			Int("txs", len(batch)).
			Int("applied", block.AppliedCount()).
			Msg("block committed")
	}
}

// observeQuiescence updates the empty streak and reports idle to the
// coordinator after two consecutive empty observations. A non-empty pool
// resets the streak and withdraws any earlier idle report.
func (v *Validator) observeQuiescence(streak int) int {
	if !v.pool.IsEmpty() {
		v.coord.ClearIdle(v.index)
		return 0
	}
	streak++
	if streak >= 2 {
		v.coord.SetIdle(v.index)
	}
	return streak
}

// wait blocks until the chain advances, the pool changes, the poll interval
// elapses, or the stop signal fires. Returns false on stop.
func (v *Validator) wait() bool {
	v.state.Store(int32(StateWaiting))

	wake := v.coord.WakeCh()
	timer := time.NewTimer(v.pollInterval)
	defer timer.Stop()

	select {
	case <-v.coord.Done():
		return false
	case <-wake:
		return true
	case <-timer.C:
		return true
	}
}

func (v *Validator) stop() {
	v.state.Store(int32(StateStopped))
	v.log.Debug().Msg("validator stopped")
}
