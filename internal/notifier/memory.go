package notifier

import (
	"context"
	"sync"
	"time"
)

const defaultQueueDepth = 10

// MemoryNotifier keeps a bounded FIFO of events per user in process memory.
// State is lost on restart and is not shared between instances.
type MemoryNotifier struct {
	*channelRegistry

	mu     sync.Mutex
	depth  int
	queues map[string][]Event
	last   map[string]int64

	now   func() time.Time
	newID func() string
}

var _ Notifier = (*MemoryNotifier)(nil)

// NewMemoryNotifier creates a notifier retaining at most depth events per user
func NewMemoryNotifier(depth int) *MemoryNotifier {
	if depth < 1 {
		depth = defaultQueueDepth
	}
	return &MemoryNotifier{
		channelRegistry: newChannelRegistry(),
		depth:           depth,
		queues:          make(map[string][]Event),
		last:            make(map[string]int64),
		now:             systemNow,
		newID:           newEventID,
	}
}

// Record appends an event to the user's queue, evicting the oldest entry on
// overflow, then pushes it to the user's live channel if one is registered.
// Timestamps are strictly increasing per user and the push stream sees events
// in the same order as the queue.
func (n *MemoryNotifier) Record(_ context.Context, userID string, eventType EventType, payload map[string]any) Event {
	n.mu.Lock()
	ts := n.now().UnixMilli()
	if last := n.last[userID]; ts <= last {
		ts = last + 1
	}
	n.last[userID] = ts

	ev := Event{
		ID:        n.newID(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: ts,
	}

	queue := append(n.queues[userID], ev)
	if len(queue) > n.depth {
		queue = append([]Event(nil), queue[len(queue)-n.depth:]...)
	}
	n.queues[userID] = queue

	// Pushing under the queue lock keeps stream order equal to queue order
	n.deliver(userID, ev)
	n.mu.Unlock()
	return ev
}

// DrainSince returns the user's retained events newer than watermark without
// removing them.
func (n *MemoryNotifier) DrainSince(_ context.Context, userID string, watermark int64) ([]Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	events := make([]Event, 0, len(n.queues[userID]))
	for _, ev := range n.queues[userID] {
		if ev.Timestamp > watermark {
			events = append(events, ev)
		}
	}
	return events, nil
}
