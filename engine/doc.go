// Package engine implements the concurrent core of the simulated chain.
// This package implements:
// - Thread-safe mempool with batch draining
// - Proposer election and the validator actor loop
// - Atomic ledger application and chain append
// - Cooperative termination detection
package engine
