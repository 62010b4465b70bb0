// Package sim is the driver harness for the engine core. It spawns user and
// validator actors over a wired engine, waits for the stop signal, and
// reports the outcome. The engine itself never depends on this package.
package sim

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/VanDung-dev/SimChain-Engine/api"
	"github.com/VanDung-dev/SimChain-Engine/engine"
)

// ErrAlreadyRun is returned when Run is called twice on one simulation.
var ErrAlreadyRun = errors.New("simulation already run")

// Options tunes the harness around the engine config.
type Options struct {
	// Logger for all actors. Defaults to a disabled logger.
	Logger zerolog.Logger
	// Metrics sink; nil disables metrics.
	Metrics *api.Metrics
	// Jitter is the maximum random delay between a user's submissions,
	// used to randomize actor interleavings. Zero submits back-to-back.
	Jitter time.Duration
	// Seed drives the jitter RNG. Zero picks the current time.
	Seed int64
}

// NewAddress derives a stable hex-style account id from a name.
func NewAddress(name string) engine.AccountID {
	sum := sha256.Sum256([]byte(name))
	return engine.AccountID(hex.EncodeToString(sum[:8]))
}

type user struct {
	id     engine.AccountID
	script []engine.Transaction
}

// Simulation wires a complete engine core and drives it.
type Simulation struct {
	cfg  engine.Config
	opts Options

	ledger     *engine.Ledger
	pool       *engine.Mempool
	chain      *engine.Chain
	coord      *engine.Coordinator
	validators []*engine.Validator

	users []user
	ran   bool
}

// New builds a simulation: ledger, mempool, chain, coordinator, and the
// configured number of validators with funded validator accounts.
func New(cfg engine.Config, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	ledger := engine.NewLedger()
	pool := engine.NewMempool(cfg.MaxPending)
	chain := engine.NewChain(ledger)
	coord := engine.NewCoordinator(pool, cfg.Validators)

	// Submits, requeues and commits all rouse waiting validators. These two
	// callbacks are the in-process stand-in for a network message bus.
	pool.OnChange(coord.Wake)
	chain.OnCommit(func(*engine.Block) { coord.Wake() })

	ids := make([]engine.AccountID, cfg.Validators)
	for i := range ids {
		ids[i] = NewAddress(fmt.Sprintf("validator-%d", i))
	}
	election, err := engine.NewElection(cfg, ids, ledger)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		cfg:    cfg,
		opts:   opts,
		ledger: ledger,
		pool:   pool,
		chain:  chain,
		coord:  coord,
	}
	for i, id := range ids {
		ledger.Fund(id, 0) // validators exist in the ledger even unfunded
		s.validators = append(s.validators, engine.NewValidator(engine.ValidatorParams{
			ID:       id,
			Index:    i,
			Pool:     pool,
			Chain:    chain,
			Ledger:   ledger,
			Coord:    coord,
			Election: election,
			Config:   cfg,
			Logger:   opts.Logger,
			Metrics:  opts.Metrics,
		}))
	}
	return s, nil
}

// Ledger exposes the wired ledger for seeding and assertions.
func (s *Simulation) Ledger() *engine.Ledger { return s.ledger }

// Chain exposes the wired chain for assertions.
func (s *Simulation) Chain() *engine.Chain { return s.chain }

// Pool exposes the wired mempool.
func (s *Simulation) Pool() *engine.Mempool { return s.pool }

// Validators exposes the wired validator actors.
func (s *Simulation) Validators() []*engine.Validator { return s.validators }

// ValidatorIDs returns validator ids in registration order.
func (s *Simulation) ValidatorIDs() []engine.AccountID {
	ids := make([]engine.AccountID, len(s.validators))
	for i, v := range s.validators {
		ids[i] = v.ID()
	}
	return ids
}

// AddUser funds an account and registers a user actor that will submit the
// given transactions in order. Must be called before Run; registering the
// producer up front keeps the stop signal from firing before slow users get
// their first transaction in.
func (s *Simulation) AddUser(id engine.AccountID, balance uint64, script []engine.Transaction) {
	s.ledger.Fund(id, balance)
	s.coord.AddProducer()
	s.users = append(s.users, user{id: id, script: script})
}

// Fund credits an account without attaching a user actor.
func (s *Simulation) Fund(id engine.AccountID, balance uint64) {
	s.ledger.Fund(id, balance)
}

// Run spawns all user and validator actors and blocks until every validator
// has stopped. Cancelling the context raises the stop signal.
func (s *Simulation) Run(ctx context.Context) (*Report, error) {
	if s.ran {
		return nil, ErrAlreadyRun
	}
	s.ran = true

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	// Propagate external cancellation into the stop signal.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.coord.Stop()
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	for i, u := range s.users {
		u := u
		rng := rand.New(rand.NewSource(s.opts.Seed + int64(i)))
		g.Go(func() error { return s.runUser(ctx, u, rng) })
	}
	for _, v := range s.validators {
		v := v
		g.Go(func() error {
			v.Run()
			return nil
		})
	}

	err := g.Wait()
	report := s.report(time.Since(start))
	if err != nil {
		return report, err
	}
	return report, nil
}

// runUser submits the user's script in order, with optional random jitter
// between submissions. A full pool is retried; per-producer order is
// preserved because each user is a single goroutine.
func (s *Simulation) runUser(ctx context.Context, u user, rng *rand.Rand) error {
	defer s.coord.ProducerDone()

	log := s.opts.Logger.With().Str("user", string(u.id)).Logger()
	for _, tx := range u.script {
		if s.opts.Jitter > 0 {
			delay := time.Duration(rng.Int63n(int64(s.opts.Jitter)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for {
			seq, err := s.pool.Submit(tx)
			if err == nil {
				if s.opts.Metrics != nil {
					s.opts.Metrics.RecordSubmit()
				}
				log.Debug().Uint64("seq", seq).Str("tx", tx.String()).Msg("submitted")
				break
			}
			if !errors.Is(err, engine.ErrMempoolFull) {
				return fmt.Errorf("user %s: %w", u.id, err)
			}
			select {
			case <-time.After(time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (s *Simulation) report(elapsed time.Duration) *Report {
	blocks := s.chain.Blocks()
	applied, rejected := 0, 0
	for _, b := range blocks {
		for _, r := range b.Receipts {
			if r.Applied() {
				applied++
			} else {
				rejected++
			}
		}
	}

	stats := make([]engine.ValidatorStats, len(s.validators))
	for i, v := range s.validators {
		stats[i] = v.Stats()
	}

	return &Report{
		Height:     s.chain.Height(),
		Blocks:     blocks,
		Accounts:   s.ledger.Accounts(),
		Validators: stats,
		Pool:       s.pool.Stats(),
		Applied:    applied,
		Rejected:   rejected,
		Elapsed:    elapsed,
	}
}
