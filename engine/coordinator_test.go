package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stopRaised(c *Coordinator) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func TestCoordinatorStopsWhenAllIdle(t *testing.T) {
	pool := NewMempool(10)
	c := NewCoordinator(pool, 3)

	c.SetIdle(0)
	c.SetIdle(1)
	assert.False(t, stopRaised(c))

	c.SetIdle(2)
	assert.True(t, stopRaised(c))
	assert.True(t, c.IsStopped())
}

func TestCoordinatorWaitsForProducers(t *testing.T) {
	pool := NewMempool(10)
	c := NewCoordinator(pool, 1)
	c.AddProducer()

	c.SetIdle(0)
	assert.False(t, stopRaised(c), "active producer must block the stop signal")

	c.ProducerDone()
	assert.True(t, stopRaised(c))
}

func TestCoordinatorWaitsForEmptyPool(t *testing.T) {
	pool := NewMempool(10)
	_, err := pool.Submit(NewTransfer("a", "b", 1))
	require.NoError(t, err)

	c := NewCoordinator(pool, 1)
	c.SetIdle(0)
	assert.False(t, stopRaised(c), "pending transactions must block the stop signal")

	pool.DrainUpTo(1)
	c.ClearIdle(0)
	c.SetIdle(0)
	assert.True(t, stopRaised(c))
}

func TestCoordinatorClearIdleWithdraws(t *testing.T) {
	pool := NewMempool(10)
	c := NewCoordinator(pool, 2)

	c.SetIdle(0)
	c.ClearIdle(0)
	c.SetIdle(1)
	assert.False(t, stopRaised(c))

	// SetIdle is idempotent: a second report from validator 1 must not
	// count as validator 0.
	c.SetIdle(1)
	assert.False(t, stopRaised(c))

	c.SetIdle(0)
	assert.True(t, stopRaised(c))
}

// TestCoordinatorBusyBeforeDrain replays the winner path's coordinator
// interaction in order: every validator is counted idle from an earlier
// quiescent period, a producer lands one last transaction, and the winner
// withdraws its idle report before taking the batch. The stop condition must
// not hold at any point while the batch is out, including across a
// conflict requeue.
func TestCoordinatorBusyBeforeDrain(t *testing.T) {
	pool := NewMempool(10)
	c := NewCoordinator(pool, 2)

	c.AddProducer()
	c.SetIdle(0)
	c.SetIdle(1)

	_, err := pool.Submit(NewTransfer("a", "b", 1))
	require.NoError(t, err)
	c.ProducerDone()
	require.False(t, stopRaised(c), "pending transaction must keep the system live")

	// Winner path: mark busy first, then drain.
	c.ClearIdle(1)
	batch := pool.DrainUpTo(1)
	require.Len(t, batch, 1)
	assert.False(t, stopRaised(c), "stop must not fire while a drained batch is in flight")

	// A lost append returns the batch; the busy flag still holds stop off.
	pool.Requeue(batch)
	assert.False(t, stopRaised(c))

	batch = pool.DrainUpTo(1)
	require.Len(t, batch, 1)
	c.SetIdle(1)
	assert.True(t, stopRaised(c), "stop fires once the batch is committed and the winner is idle again")
}

func TestCoordinatorManualStop(t *testing.T) {
	c := NewCoordinator(NewMempool(1), 5)
	c.Stop()
	assert.True(t, stopRaised(c))
	c.Stop() // idempotent
}

func TestCoordinatorWake(t *testing.T) {
	c := NewCoordinator(NewMempool(1), 1)

	ch := c.WakeCh()
	select {
	case <-ch:
		t.Fatal("wake channel closed before Wake")
	default:
	}

	done := make(chan struct{})
	go func() {
		<-ch
		close(done)
	}()
	c.Wake()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wake did not rouse the waiter")
	}

	// The channel is replaced after each wake.
	assert.NotEqual(t, ch, c.WakeCh())
}
