// Command simchain runs a configured simulation of the chain core: user
// actors feeding the mempool, validator actors committing blocks, and a run
// report once the system reaches quiescence.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/VanDung-dev/SimChain-Engine/api"
	"github.com/VanDung-dev/SimChain-Engine/engine"
	"github.com/VanDung-dev/SimChain-Engine/sim"
)

// Version information
const (
	Version = "0.1.0"
	Name    = "SimChain-Engine"
)

var flags struct {
	configPath  string
	validators  int
	users       int
	txsPerUser  int
	balance     uint64
	batchSize   int
	election    string
	metricsAddr string
	jitter      time.Duration
	seed        int64
	verbose     bool
}

func main() {
	cmd := &cobra.Command{
		Use:     "simchain",
		Short:   "run a simulated mempool/validator/ledger round",
		Version: Version,
		RunE:    run,
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "TOML config file (overrides defaults, flags override it)")
	cmd.Flags().IntVar(&flags.validators, "validators", 0, "number of validator actors")
	cmd.Flags().IntVar(&flags.users, "users", 4, "number of user actors")
	cmd.Flags().IntVar(&flags.txsPerUser, "txs-per-user", 8, "transactions submitted by each user")
	cmd.Flags().Uint64Var(&flags.balance, "balance", 1000, "initial balance per user account")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "maximum transactions per block")
	cmd.Flags().StringVar(&flags.election, "election", "", "election policy: round-robin or stake-weighted")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().DurationVar(&flags.jitter, "jitter", 2*time.Millisecond, "maximum random delay between a user's submissions")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "RNG seed (0 = time-based)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()
	if flags.verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	metrics := api.NewMetrics("simchain")
	if flags.metricsAddr != "" {
		srv := api.NewMetricsServer(flags.metricsAddr, metrics)
		srv.StartAsync()
		defer srv.Stop()
		logger.Info().Str("addr", flags.metricsAddr).Msg("metrics server started")
	}

	seed := flags.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s, err := sim.New(cfg, sim.Options{
		Logger:  logger,
		Metrics: metrics,
		Jitter:  flags.jitter,
		Seed:    seed,
	})
	if err != nil {
		return err
	}

	seedUsers(s, seed)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger.Info().
		Int("validators", cfg.Validators).
		Int("users", flags.users).
		Str("election", cfg.Election).
		Int64("seed", seed).
		Msg("starting simulation")

	report, err := s.Run(ctx)
	if report != nil {
		fmt.Print(report.String())
	}
	return err
}

// loadConfig layers defaults, the optional TOML file, and explicit flags.
func loadConfig() (engine.Config, error) {
	cfg := engine.DefaultConfig()
	if flags.configPath != "" {
		loaded, err := engine.LoadConfig(flags.configPath)
		if err != nil {
			return engine.Config{}, err
		}
		cfg = loaded
	}
	if flags.validators > 0 {
		cfg.Validators = flags.validators
	}
	if flags.batchSize > 0 {
		cfg.BatchSize = flags.batchSize
	}
	if flags.election != "" {
		cfg.Election = flags.election
	}
	return cfg, cfg.Validate()
}

// seedUsers funds user accounts and scripts a random mix of transfers among
// them plus the occasional stake.
func seedUsers(s *sim.Simulation, seed int64) {
	rng := rand.New(rand.NewSource(seed))

	ids := make([]engine.AccountID, flags.users)
	for i := range ids {
		ids[i] = sim.NewAddress(fmt.Sprintf("user-%d", i))
	}

	for i, id := range ids {
		script := make([]engine.Transaction, 0, flags.txsPerUser)
		maxAmount := int(flags.balance) / 4
		if maxAmount < 1 {
			maxAmount = 1
		}
		for n := 0; n < flags.txsPerUser; n++ {
			amount := uint64(rng.Intn(maxAmount) + 1)
			if rng.Intn(4) == 0 {
				script = append(script, engine.NewStake(id, amount))
				continue
			}
			to := ids[rng.Intn(len(ids))]
			if to == id {
				to = ids[(i+1)%len(ids)]
			}
			script = append(script, engine.NewTransfer(id, to, amount))
		}
		s.AddUser(id, flags.balance, script)
	}
}
