package builds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/dmgforge/dmgforge/lib/paths"
)

// ProgressUpdate is one status event during a packaging job.
type ProgressUpdate struct {
	Status        string  `json:"status"`
	Progress      int     `json:"progress"`
	QueuePosition *int    `json:"queue_position,omitempty"`
	Error         *string `json:"error,omitempty"`
}

// progressTracker persists status transitions and fans them out to
// subscribers.
type progressTracker struct {
	buildID     string
	paths       *paths.Paths
	subscribers []chan ProgressUpdate
	mu          sync.RWMutex
	closed      bool
}

func newProgressTracker(buildID string, p *paths.Paths) *progressTracker {
	return &progressTracker{buildID: buildID, paths: p}
}

// update records the new status on disk (best effort) and broadcasts it.
func (t *progressTracker) update(status string, progress int, queuePos *int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return
	}

	if meta, err := readMetadata(t.paths, t.buildID); err == nil {
		meta.Status = status
		meta.Progress = progress
		meta.QueuePosition = queuePos
		writeMetadata(t.paths, meta)
	}

	t.broadcast(ProgressUpdate{Status: status, Progress: progress, QueuePosition: queuePos})
}

func (t *progressTracker) fail(err error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return
	}

	msg := err.Error()
	if meta, merr := readMetadata(t.paths, t.buildID); merr == nil {
		meta.Status = StatusFailed
		meta.Progress = 0
		meta.QueuePosition = nil
		meta.Error = &msg
		writeMetadata(t.paths, meta)
	}

	t.broadcast(ProgressUpdate{Status: StatusFailed, Error: &msg})
}

func (t *progressTracker) broadcast(update ProgressUpdate) {
	for _, ch := range t.subscribers {
		select {
		case ch <- update:
		default:
			// Skip slow consumers rather than stall the build.
		}
	}
}

// subscribe registers a listener. The current state is delivered first, and
// the channel closes when ctx ends or the tracker shuts down.
func (t *progressTracker) subscribe(ctx context.Context) (chan ProgressUpdate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("tracker closed")
	}

	ch := make(chan ProgressUpdate, 10)
	t.subscribers = append(t.subscribers, ch)

	if meta, err := readMetadata(t.paths, t.buildID); err == nil {
		ch <- ProgressUpdate{
			Status:        meta.Status,
			Progress:      meta.Progress,
			QueuePosition: meta.QueuePosition,
			Error:         meta.Error,
		}
	}

	go func() {
		<-ctx.Done()
		t.unsubscribe(ch)
	}()

	return ch, nil
}

func (t *progressTracker) unsubscribe(ch chan ProgressUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, sub := range t.subscribers {
		if sub == ch {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (t *progressTracker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for _, ch := range t.subscribers {
		close(ch)
	}
	t.subscribers = nil
}

// ToSSEReader adapts a progress channel to an io.ReadCloser emitting
// server-sent events.
func ToSSEReader(ch chan ProgressUpdate) io.ReadCloser {
	return &sseStream{ch: ch}
}

type sseStream struct {
	ch     chan ProgressUpdate
	buffer []byte
}

func (s *sseStream) Read(p []byte) (int, error) {
	if len(s.buffer) > 0 {
		n := copy(p, s.buffer)
		s.buffer = s.buffer[n:]
		return n, nil
	}

	update, ok := <-s.ch
	if !ok {
		return 0, io.EOF
	}

	data, _ := json.Marshal(update)
	s.buffer = []byte(fmt.Sprintf("data: %s\n\n", data))

	n := copy(p, s.buffer)
	s.buffer = s.buffer[n:]
	return n, nil
}

func (s *sseStream) Close() error {
	return nil
}
