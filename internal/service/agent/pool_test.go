package agent

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAllQueuedTasks(t *testing.T) {
	pool := NewPool(4, 16)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		assert.True(t, pool.Submit(func() { ran.Add(1) }))
	}

	pool.Close()
	assert.Equal(t, int32(10), ran.Load())
}

func TestPoolRefusesWhenFull(t *testing.T) {
	pool := NewPool(1, 1)

	block := make(chan struct{})
	pool.Submit(func() { <-block })

	// Give the single worker time to pick up the blocking task, then
	// fill the one queue slot.
	for !pool.Submit(func() {}) {
	}

	assert.False(t, pool.Submit(func() {}))

	close(block)
	pool.Close()
}
