// racecheck runs the simulation many times with randomized submission
// delays and asserts the core invariants after every run: contiguous block
// heights, exactly-once transaction delivery, non-negative conserved
// balances, and full termination. Intended to be run under -race.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/VanDung-dev/SimChain-Engine/engine"
	"github.com/VanDung-dev/SimChain-Engine/sim"
)

// CheckConfig holds configuration for the invariant checker.
type CheckConfig struct {
	Runs       int
	Validators int
	Users      int
	TxsPerUser int
	BatchSize  int
	Election   string
	MaxJitter  time.Duration
	Seed       int64
}

// CheckResult accumulates outcomes across runs.
type CheckResult struct {
	Runs       int
	Blocks     uint64
	Applied    int
	Rejected   int
	Conflicts  uint64
	Violations []string
}

func main() {
	cfg := parseFlags()

	fmt.Println("=== SimChain invariant check ===")
	fmt.Printf("Runs: %d\n", cfg.Runs)
	fmt.Printf("Validators: %d, Users: %d x %d txs\n", cfg.Validators, cfg.Users, cfg.TxsPerUser)
	fmt.Printf("Election: %s, Seed: %d\n", cfg.Election, cfg.Seed)
	fmt.Println()

	result := runChecks(cfg)

	fmt.Printf("Completed %d runs: %d blocks, %d applied, %d rejected, %d height conflicts\n",
		result.Runs, result.Blocks, result.Applied, result.Rejected, result.Conflicts)
	if len(result.Violations) > 0 {
		fmt.Printf("\n%d INVARIANT VIOLATIONS:\n", len(result.Violations))
		for _, v := range result.Violations {
			fmt.Println("  -", v)
		}
		os.Exit(1)
	}
	fmt.Println("All invariants held.")
}

func parseFlags() CheckConfig {
	cfg := CheckConfig{}
	flag.IntVar(&cfg.Runs, "runs", 100, "number of randomized runs")
	flag.IntVar(&cfg.Validators, "validators", 3, "validators per run")
	flag.IntVar(&cfg.Users, "users", 4, "users per run")
	flag.IntVar(&cfg.TxsPerUser, "txs", 6, "transactions per user")
	flag.IntVar(&cfg.BatchSize, "batch", 3, "max transactions per block")
	flag.StringVar(&cfg.Election, "election", engine.ElectionRoundRobin, "election policy")
	flag.DurationVar(&cfg.MaxJitter, "jitter", 3*time.Millisecond, "max random submit delay")
	flag.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "base RNG seed")
	flag.Parse()
	return cfg
}

func runChecks(cfg CheckConfig) CheckResult {
	result := CheckResult{}

	for run := 0; run < cfg.Runs; run++ {
		report, supply, err := oneRun(cfg, cfg.Seed+int64(run))
		result.Runs++
		if err != nil {
			result.Violations = append(result.Violations,
				fmt.Sprintf("run %d: %v", run, err))
			continue
		}

		result.Blocks += report.Height
		result.Applied += report.Applied
		result.Rejected += report.Rejected
		for _, v := range report.Validators {
			result.Conflicts += v.HeightConflicts
		}
		for _, violation := range checkInvariants(cfg, report, supply) {
			result.Violations = append(result.Violations,
				fmt.Sprintf("run %d: %s", run, violation))
		}
	}
	return result
}

// oneRun executes a single randomized simulation and returns its report plus
// the funded supply.
func oneRun(cfg CheckConfig, seed int64) (*sim.Report, uint64, error) {
	ecfg := engine.DefaultConfig()
	ecfg.Validators = cfg.Validators
	ecfg.BatchSize = cfg.BatchSize
	ecfg.Election = cfg.Election

	s, err := sim.New(ecfg, sim.Options{
		Logger: zerolog.Nop(),
		Jitter: cfg.MaxJitter,
		Seed:   seed,
	})
	if err != nil {
		return nil, 0, err
	}

	rng := rand.New(rand.NewSource(seed))
	ids := make([]engine.AccountID, cfg.Users)
	for i := range ids {
		ids[i] = sim.NewAddress(fmt.Sprintf("run%d-user-%d", seed, i))
	}

	const balance = 500
	var supply uint64
	for i, id := range ids {
		script := make([]engine.Transaction, 0, cfg.TxsPerUser)
		for n := 0; n < cfg.TxsPerUser; n++ {
			amount := uint64(rng.Intn(balance/2) + 1)
			if rng.Intn(3) == 0 {
				script = append(script, engine.NewStake(id, amount))
			} else {
				script = append(script, engine.NewTransfer(id, ids[(i+1+rng.Intn(len(ids)))%len(ids)], amount))
			}
		}
		s.AddUser(id, balance, script)
		supply += balance
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	report, err := s.Run(ctx)
	return report, supply, err
}

// checkInvariants asserts the testable properties of one finished run.
func checkInvariants(cfg CheckConfig, r *sim.Report, supply uint64) []string {
	var violations []string

	// Heights contiguous from 1, matching block count.
	if uint64(len(r.Blocks)) != r.Height {
		violations = append(violations, fmt.Sprintf("height %d but %d blocks", r.Height, len(r.Blocks)))
	}
	for i, b := range r.Blocks {
		if b.Height != uint64(i)+1 {
			violations = append(violations, fmt.Sprintf("block %d has height %d", i, b.Height))
		}
	}

	// Exactly-once delivery: every submitted tx either in a block or still
	// pending (pending must be zero after a clean stop), no duplicate seqs.
	total := cfg.Users * cfg.TxsPerUser
	if r.Applied+r.Rejected != total {
		violations = append(violations, fmt.Sprintf("%d txs submitted, %d accounted for",
			total, r.Applied+r.Rejected))
	}
	if r.Pool.Pending != 0 {
		violations = append(violations, fmt.Sprintf("%d txs left pending after stop", r.Pool.Pending))
	}
	seen := make(map[uint64]bool)
	for _, b := range r.Blocks {
		for _, tx := range b.Transactions {
			if seen[tx.Seq] {
				violations = append(violations, fmt.Sprintf("tx %d committed twice", tx.Seq))
			}
			seen[tx.Seq] = true
		}
	}

	// Supply conserved across balances and stakes.
	var got uint64
	for _, acct := range r.Accounts {
		got += acct.Balance + acct.Stake
	}
	if got != supply {
		violations = append(violations, fmt.Sprintf("supply %d, expected %d", got, supply))
	}

	return violations
}
