package worker

import (
	"hash/fnv"
	"sync"
)

// WorkerPool routes tasks by key. Tasks sharing a key always land on the same worker,
// so they run one after another while different keys run in parallel.
type WorkerPool struct {
	workers []*Worker
	once    sync.Once
}

// NewWorkerPool creates a new WorkerPool with the specified number of workers
func NewWorkerPool(numWorkers, buffer int) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	pool := &WorkerPool{
		workers: make([]*Worker, numWorkers),
	}

	for i := 0; i < numWorkers; i++ {
		worker := NewWorker(buffer)
		worker.Start()
		pool.workers[i] = worker
	}

	return pool
}

// Size is the number of workers
func (p *WorkerPool) Size() int {
	return len(p.workers)
}

// Stop drains every worker. The pool cannot be reused afterwards.
func (p *WorkerPool) Stop() {
	p.once.Do(func() {
		for _, worker := range p.workers {
			worker.Stop()
		}
	})
}

// Submit hands the task to the worker owning key
func (p *WorkerPool) Submit(key string, task Task) {
	p.workers[p.index(key)].Submit(task)
}

func (p *WorkerPool) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.workers)))
}
