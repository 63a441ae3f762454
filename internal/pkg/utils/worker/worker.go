package worker

// Task represents a unit of work to be processed by a worker
type Task func()

// Worker is a goroutine that drains its own queue in submission order
type Worker struct {
	taskQueue chan Task
	done      chan struct{}
}

// NewWorker creates a new Worker with a queue of the given capacity
func NewWorker(buffer int) *Worker {
	return &Worker{
		taskQueue: make(chan Task, buffer),
		done:      make(chan struct{}),
	}
}

// Start starts the worker to process tasks
func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		for task := range w.taskQueue {
			task()
		}
	}()
}

// Stop closes the queue and waits for the tasks already queued
func (w *Worker) Stop() {
	close(w.taskQueue)
	<-w.done
}

// Submit submits a task to the worker
func (w *Worker) Submit(task Task) {
	w.taskQueue <- task
}
