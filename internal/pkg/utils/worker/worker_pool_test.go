package worker

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_SameKeyRunsInOrder(t *testing.T) {
	pool := NewWorkerPool(4, 16)

	var mu sync.Mutex
	seen := map[string][]int{}
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("member-%d", i%5)
		n := i
		pool.Submit(key, func() {
			mu.Lock()
			seen[key] = append(seen[key], n)
			mu.Unlock()
		})
	}
	pool.Stop()

	assert.Len(t, seen, 5)
	for key, order := range seen {
		assert.Len(t, order, 10, key)
		for i := 1; i < len(order); i++ {
			assert.Less(t, order[i-1], order[i], key)
		}
	}
}

func TestWorkerPool_KeyRoutingIsStable(t *testing.T) {
	pool := NewWorkerPool(8, 1)
	defer pool.Stop()

	assert.Equal(t, pool.index("abc"), pool.index("abc"))
	assert.Equal(t, 8, pool.Size())
}

func TestWorkerPool_MinimumOneWorker(t *testing.T) {
	pool := NewWorkerPool(0, 0)
	done := make(chan struct{})
	pool.Submit("x", func() { close(done) })
	<-done
	pool.Stop()
	pool.Stop()
	assert.Equal(t, 1, pool.Size())
}
