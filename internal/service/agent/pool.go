package agent

import "sync"

// Pool runs submitted tasks on a fixed set of workers behind a bounded
// queue. Submit never blocks; when the queue is full the task is refused.
type Pool struct {
	queue chan func()
	wg    sync.WaitGroup

	closeOnce sync.Once
}

func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 32
	}

	p := &Pool{queue: make(chan func(), queueSize)}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.queue {
		task()
	}
}

// Submit reports false when the queue is full.
func (p *Pool) Submit(task func()) bool {
	select {
	case p.queue <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}
