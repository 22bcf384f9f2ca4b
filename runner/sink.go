package runner

import "sync"

// SubscriberChannelBufferSize is the buffer size for subscriber channels.
const SubscriberChannelBufferSize = 100

// Sink receives the progress handle for each execution. Register is
// called before the job runs, Release after it finishes (on every exit
// path, including faults). Implementations expose the handles to whatever
// observes them - a UI, a log forwarder, a test.
type Sink interface {
	Register(p *Progress)
	Release(p *Progress)
}

// Broadcaster is the default Sink: it tracks the set of active progress
// handles and fans every update out to subscriber channels.
type Broadcaster struct {
	mu          sync.RWMutex
	active      map[string]*Progress
	subscribers []chan ProgressUpdate
}

// NewBroadcaster creates an empty broadcaster sink.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		active: make(map[string]*Progress),
	}
}

// Register implements Sink. The handle joins the active set and its
// future updates are forwarded to subscribers.
func (b *Broadcaster) Register(p *Progress) {
	b.mu.Lock()
	b.active[p.ID()] = p
	b.mu.Unlock()

	p.setNotify(b.broadcast)
	b.broadcast(p.Snapshot())
}

// Release implements Sink. The handle leaves the active set; its final
// state is broadcast once more so subscribers see the terminal status.
func (b *Broadcaster) Release(p *Progress) {
	b.mu.Lock()
	delete(b.active, p.ID())
	b.mu.Unlock()

	b.broadcast(p.Snapshot())
	p.setNotify(nil)
}

// Active returns snapshots of all currently executing handles.
func (b *Broadcaster) Active() []ProgressUpdate {
	b.mu.RLock()
	defer b.mu.RUnlock()

	updates := make([]ProgressUpdate, 0, len(b.active))
	for _, p := range b.active {
		updates = append(updates, p.Snapshot())
	}
	return updates
}

// Subscribe returns a channel that receives progress updates.
// The caller is responsible for calling Unsubscribe when done.
// The returned channel is buffered to prevent blocking the notifier.
func (b *Broadcaster) Subscribe() chan ProgressUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ProgressUpdate, SubscriberChannelBufferSize)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel from the broadcaster.
// The channel is NOT closed by this method - callers should close it
// themselves after unsubscribing if needed. This prevents double-close
// panics.
func (b *Broadcaster) Unsubscribe(ch chan ProgressUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// broadcast sends an update to all subscribers.
// Uses non-blocking send to avoid stalling if a subscriber is slow.
func (b *Broadcaster) broadcast(update ProgressUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- update:
		default:
			// Channel full, skip
		}
	}
}
