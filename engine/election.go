package engine

// Election selects exactly one proposer per height. Implementations must be
// deterministic and total: every validator computing the winner for the same
// height between the same two commits gets the same answer.
type Election interface {
	// Winner returns the proposer for the given height.
	Winner(height uint64) AccountID
}

// RoundRobin elects validators[height % len(validators)] over the stable
// registration order assigned at startup. This is the default policy: it
// needs no ledger reads and cannot starve anyone.
type RoundRobin struct {
	validators []AccountID
}

// NewRoundRobin creates a round-robin election over the registered validator
// order.
func NewRoundRobin(validators []AccountID) *RoundRobin {
	return &RoundRobin{validators: validators}
}

func (e *RoundRobin) Winner(height uint64) AccountID {
	return e.validators[height%uint64(len(e.validators))]
}

// StakeWeighted elects the validator with the highest ledger stake at the
// start of the round, registration order breaking ties. Deterministic across
// validators because the ledger only changes at commit, which also advances
// the height everyone keys the round on.
type StakeWeighted struct {
	validators []AccountID
	ledger     *Ledger
}

// NewStakeWeighted creates a stake-weighted election reading stakes from the
// given ledger.
func NewStakeWeighted(validators []AccountID, ledger *Ledger) *StakeWeighted {
	return &StakeWeighted{validators: validators, ledger: ledger}
}

func (e *StakeWeighted) Winner(height uint64) AccountID {
	winner := e.validators[0]
	best := e.ledger.StakeOf(winner)
	for _, id := range e.validators[1:] {
		if s := e.ledger.StakeOf(id); s > best {
			winner, best = id, s
		}
	}
	return winner
}
