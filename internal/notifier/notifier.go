// Package notifier fans ledger changes out to connected clients.
//
// Events are hints to refetch, not state: clients react to any event by
// reloading balances and lists, so duplicate or missed deliveries are
// tolerated. Two consumers read the same per-user event log: a long-lived
// push stream (server-sent events) and short-lived pull requests that ask
// for everything newer than a watermark. Delivery to one never removes an
// event from the other; only the bounded queue's eviction does.
//
// MemoryNotifier keeps state in process memory and is only correct for a
// single-instance deployment. RedisNotifier shares the log and the fan-out
// across instances.
package notifier

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names what changed
type EventType string

const (
	EventConnected          EventType = "connected"
	EventTransactionCreated EventType = "transactionCreated"
	EventTransactionUpdated EventType = "transactionUpdated"
	EventTransactionDeleted EventType = "transactionDeleted"
	EventWalletUpdated      EventType = "walletUpdated"
	EventGoalUpdated        EventType = "goalUpdated"
)

// Event is one pending update for a user. Timestamp is unix milliseconds and
// doubles as the pull watermark.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

var (
	ErrChannelClosed = errors.New("push channel closed")
	ErrChannelFull   = errors.New("push channel buffer full")
)

// PushChannel is the write side of one live client connection.
// Implementations must be comparable (pointer types) and Send must not
// block: a channel that cannot take an event returns an error.
type PushChannel interface {
	Send(Event) error
	Close()
}

// Notifier records update events and exposes them to push and pull consumers.
// Within one instance pushes follow record order. With a shared backend,
// events recorded on different instances may reach a stream in either order;
// clients order by timestamp, which is strictly increasing per user.
type Notifier interface {
	Record(ctx context.Context, userID string, eventType EventType, payload map[string]any) Event
	DrainSince(ctx context.Context, userID string, watermark int64) ([]Event, error)
	RegisterPushChannel(userID string, ch PushChannel)
	UnregisterPushChannel(userID string, ch PushChannel)
}

// channelRegistry maps a user to at most one live push channel
type channelRegistry struct {
	mu       sync.Mutex
	channels map[string]PushChannel
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{channels: make(map[string]PushChannel)}
}

// RegisterPushChannel attaches ch to userID. A previously registered channel
// for the same user is closed and replaced.
func (r *channelRegistry) RegisterPushChannel(userID string, ch PushChannel) {
	r.mu.Lock()
	prev := r.channels[userID]
	r.channels[userID] = ch
	r.mu.Unlock()

	if prev != nil && prev != ch {
		log.Printf("[NOTIFIER] Replacing push channel for user %s", userID)
		prev.Close()
	}
}

// UnregisterPushChannel detaches ch if it is still the user's channel
func (r *channelRegistry) UnregisterPushChannel(userID string, ch PushChannel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.channels[userID]; ok && cur == ch {
		delete(r.channels, userID)
	}
}

// HasPushChannel reports whether a push channel is registered for userID
func (r *channelRegistry) HasPushChannel(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.channels[userID]
	return ok
}

// deliver writes ev to the user's channel, if any. A failed write means the
// connection is gone: the channel is dropped and closed, never retried.
func (r *channelRegistry) deliver(userID string, ev Event) {
	r.mu.Lock()
	ch := r.channels[userID]
	r.mu.Unlock()

	if ch == nil {
		return
	}

	if err := ch.Send(ev); err != nil {
		log.Printf("[NOTIFIER] Push to user %s failed, dropping channel: %v", userID, err)
		r.UnregisterPushChannel(userID, ch)
		ch.Close()
	}
}

func newEventID() string {
	return uuid.NewString()
}

func systemNow() time.Time {
	return time.Now()
}
