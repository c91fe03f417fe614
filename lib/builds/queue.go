package builds

import "sync"

type queuedBuild struct {
	id      string
	startFn func()
}

// buildQueue limits how many packaging jobs run at once. Builds beyond the
// limit wait in FIFO order.
type buildQueue struct {
	maxConcurrent int
	active        map[string]bool
	pending       []queuedBuild
	mu            sync.Mutex
}

func newBuildQueue(maxConcurrent int) *buildQueue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &buildQueue{
		maxConcurrent: maxConcurrent,
		active:        make(map[string]bool),
	}
}

// enqueue registers a build and returns its queue position: 0 when it starts
// immediately, >0 when it has to wait.
func (q *buildQueue) enqueue(id string, startFn func()) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.active) < q.maxConcurrent {
		q.active[id] = true
		go startFn()
		return 0
	}

	q.pending = append(q.pending, queuedBuild{id: id, startFn: startFn})
	return len(q.pending)
}

// markComplete releases a slot and starts the next waiting build, if any.
func (q *buildQueue) markComplete(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.active, id)

	if len(q.pending) > 0 && len(q.active) < q.maxConcurrent {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.active[next.id] = true
		go next.startFn()
	}
}

// position returns the 1-based queue position, or nil when the build is not
// waiting.
func (q *buildQueue) position(id string) *int {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, b := range q.pending {
		if b.id == id {
			pos := i + 1
			return &pos
		}
	}
	return nil
}

func (q *buildQueue) activeCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

func (q *buildQueue) pendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
