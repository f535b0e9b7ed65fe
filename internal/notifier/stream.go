package notifier

import "sync"

// StreamChannel is a buffered PushChannel drained by a streaming HTTP handler.
// Send never blocks: a full buffer means the reader has stalled and is
// treated the same as a closed connection.
type StreamChannel struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

var _ PushChannel = (*StreamChannel)(nil)

func NewStreamChannel(buffer int) *StreamChannel {
	if buffer < 1 {
		buffer = 1
	}
	return &StreamChannel{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

func (c *StreamChannel) Send(ev Event) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrChannelClosed
	default:
		return ErrChannelFull
	}
}

// Close is idempotent. The events channel is left open so a racing Send
// cannot panic.
func (c *StreamChannel) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *StreamChannel) Events() <-chan Event {
	return c.events
}

func (c *StreamChannel) Done() <-chan struct{} {
	return c.done
}
