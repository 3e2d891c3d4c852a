package traverse

import (
	"context"
	"sync"
	"time"

	"github.com/edwingeng/deque"
)

// frontierQueue is an unbounded multi-producer multi-consumer queue of node references.
// The deque is not thread-safe on its own; mu guards it. ready holds at most one wake-up token.
type frontierQueue struct {
	mu    sync.Mutex
	items deque.Deque
	ready chan struct{}
}

func newFrontierQueue() *frontierQueue {
	return &frontierQueue{
		items: deque.NewDeque(),
		ready: make(chan struct{}, 1),
	}
}

// push never blocks. It returns the queue length right after the insertion.
func (queue *frontierQueue) push(ref NodeRef) int {
	queue.mu.Lock()
	queue.items.PushBack(ref)
	length := queue.items.Len()
	queue.mu.Unlock()
	queue.signal()
	return length
}

// popWithTimeout waits up to timeout for an entry. It returns false on timeout or when ctx is done,
// so callers can re-check their shutdown condition instead of blocking forever.
func (queue *frontierQueue) popWithTimeout(ctx context.Context, timeout time.Duration) (NodeRef, bool) {
	if ref, ok := queue.tryPop(); ok {
		return ref, true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", false
		case <-timer.C:
			return queue.tryPop()
		case <-queue.ready:
			if ref, ok := queue.tryPop(); ok {
				return ref, true
			}
		}
	}
}

func (queue *frontierQueue) tryPop() (NodeRef, bool) {
	queue.mu.Lock()
	if queue.items.Empty() {
		queue.mu.Unlock()
		return "", false
	}
	ref := queue.items.PopFront().(NodeRef)
	remaining := queue.items.Len()
	queue.mu.Unlock()
	if remaining > 0 {
		// hand the token on so another waiting worker picks up the rest
		queue.signal()
	}
	return ref, true
}

func (queue *frontierQueue) len() int {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return queue.items.Len()
}

func (queue *frontierQueue) signal() {
	select {
	case queue.ready <- struct{}{}:
	default:
	}
}
