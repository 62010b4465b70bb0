package engine

import (
	"sync"
)

// Coordinator implements the cooperative termination protocol and the wake
// broadcast that waiting validators block on. It is consensus-free: no leader
// is needed for shutdown.
//
// The stop signal is raised when three conditions hold at once: every
// registered producer has finished, the mempool is empty, and every validator
// has reported itself idle. Validators only report idle after a full
// quiescence window (two consecutive empty observations), which closes the
// race against a transaction that is mid-submission.
type Coordinator struct {
	pool       *Mempool
	validators int

	mu        sync.Mutex
	idle      []bool
	idleCount int
	producers int
	stopped   bool
	wakeCh    chan struct{}

	stopCh chan struct{}
}

// NewCoordinator creates a coordinator for the given validator count.
func NewCoordinator(pool *Mempool, validators int) *Coordinator {
	return &Coordinator{
		pool:       pool,
		validators: validators,
		idle:       make([]bool, validators),
		wakeCh:     make(chan struct{}),
		stopCh:     make(chan struct{}),
	}
}

// Done returns the channel closed when the stop signal is raised.
func (c *Coordinator) Done() <-chan struct{} {
	return c.stopCh
}

// IsStopped reports whether the stop signal has been raised.
func (c *Coordinator) IsStopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// Stop raises the stop signal unconditionally. Used by the harness on
// external cancellation; the normal path is the quiescence check.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
}

// AddProducer registers an active transaction producer. While any producer is
// registered the stop signal cannot be raised.
func (c *Coordinator) AddProducer() {
	c.mu.Lock()
	c.producers++
	c.mu.Unlock()
}

// ProducerDone unregisters a producer and re-evaluates the stop condition.
func (c *Coordinator) ProducerDone() {
	c.mu.Lock()
	c.producers--
	c.checkLocked()
	c.mu.Unlock()
}

// SetIdle marks the validator as quiescent and re-evaluates the stop
// condition. Idempotent per validator.
func (c *Coordinator) SetIdle(validator int) {
	c.mu.Lock()
	if !c.idle[validator] {
		c.idle[validator] = true
		c.idleCount++
		c.checkLocked()
	}
	c.mu.Unlock()
}

// ClearIdle marks the validator as having work again. Idempotent.
func (c *Coordinator) ClearIdle(validator int) {
	c.mu.Lock()
	if c.idle[validator] {
		c.idle[validator] = false
		c.idleCount--
	}
	c.mu.Unlock()
}

// Wake rouses every goroutine currently blocked on WakeCh. Fired on submits,
// requeues and commits.
func (c *Coordinator) Wake() {
	c.mu.Lock()
	close(c.wakeCh)
	c.wakeCh = make(chan struct{})
	c.mu.Unlock()
}

// WakeCh returns the current wake channel. It is closed on the next Wake;
// callers must re-fetch it after every wakeup.
func (c *Coordinator) WakeCh() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wakeCh
}

// checkLocked raises the stop signal once global completion holds. The pool
// emptiness read takes the pool lock while c.mu is held; the pool never calls
// back into the coordinator under its own lock, so the order is safe.
func (c *Coordinator) checkLocked() {
	if c.stopped {
		return
	}
	if c.producers > 0 || c.idleCount < c.validators {
		return
	}
	if !c.pool.IsEmpty() {
		return
	}
	c.stopLocked()
}

func (c *Coordinator) stopLocked() {
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
}
