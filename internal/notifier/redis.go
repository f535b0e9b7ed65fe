package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/dompetku/backend/internal/config"
	"github.com/go-redis/redis/v8"
)

// clockScript hands out per-user event timestamps that never repeat or go
// backwards, even when instances record in the same millisecond.
// KEYS[1] clock key, ARGV[1] caller's unix ms, ARGV[2] clock ttl in ms.
var clockScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local last = tonumber(redis.call('GET', KEYS[1]) or '0')
if now <= last then
	now = last + 1
end
if tonumber(ARGV[2]) > 0 then
	redis.call('SET', KEYS[1], now, 'PX', ARGV[2])
else
	redis.call('SET', KEYS[1], now)
end
return now
`)

// fanoutMessage is what instances publish to each other
type fanoutMessage struct {
	UserID string `json:"userId"`
	Event  Event  `json:"event"`
}

// RedisNotifier keeps each user's event log in a capped Redis list and fans
// new events out over pub/sub so every instance can reach its own push
// channels. Push channels themselves stay process-local.
type RedisNotifier struct {
	*channelRegistry

	client  *redis.Client
	depth   int64
	ttl     time.Duration
	channel string
	prefix  string

	now   func() time.Time
	newID func() string
}

var _ Notifier = (*RedisNotifier)(nil)

func NewRedisNotifier(client *redis.Client, cfg *config.RealtimeConfig) *RedisNotifier {
	depth := cfg.QueueDepth
	if depth < 1 {
		depth = defaultQueueDepth
	}
	return &RedisNotifier{
		channelRegistry: newChannelRegistry(),
		client:          client,
		depth:           int64(depth),
		ttl:             cfg.EventTTL,
		channel:         cfg.FanoutChannel,
		prefix:          cfg.KeyPrefix,
		now:             systemNow,
		newID:           newEventID,
	}
}

func (n *RedisNotifier) key(userID string) string {
	return n.prefix + userID
}

func (n *RedisNotifier) clockKey(userID string) string {
	return n.prefix + userID + ":clock"
}

// Record stamps the event from the user's shared clock, appends it to the
// user's list and publishes it. Redis failures are logged; the event still
// reaches local push channels.
func (n *RedisNotifier) Record(ctx context.Context, userID string, eventType EventType, payload map[string]any) Event {
	ev := Event{
		ID:        n.newID(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: n.now().UnixMilli(),
	}

	ts, err := n.nextTimestamp(ctx, userID, ev.Timestamp)
	if err != nil {
		log.Printf("[NOTIFIER] Failed to stamp event %s for user %s: %v", ev.ID, userID, err)
		n.deliver(userID, ev)
		return ev
	}
	ev.Timestamp = ts

	if err := n.append(ctx, userID, ev); err != nil {
		log.Printf("[NOTIFIER] Failed to store event %s for user %s: %v", ev.ID, userID, err)
		n.deliver(userID, ev)
		return ev
	}

	msg, err := json.Marshal(fanoutMessage{UserID: userID, Event: ev})
	if err == nil {
		err = n.client.Publish(ctx, n.channel, string(msg)).Err()
	}
	if err != nil {
		log.Printf("[NOTIFIER] Failed to publish event %s for user %s: %v", ev.ID, userID, err)
		n.deliver(userID, ev)
	}
	return ev
}

func (n *RedisNotifier) nextTimestamp(ctx context.Context, userID string, now int64) (int64, error) {
	return clockScript.Run(ctx, n.client, []string{n.clockKey(userID)}, now, n.ttl.Milliseconds()).Int64()
}

// append pushes, trims and refreshes the list's ttl in one MULTI/EXEC
func (n *RedisNotifier) append(ctx context.Context, userID string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	key := n.key(userID)
	_, err = n.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, string(data))
		pipe.LTrim(ctx, key, -n.depth, -1)
		if n.ttl > 0 {
			pipe.Expire(ctx, key, n.ttl)
		}
		return nil
	})
	return err
}

// DrainSince reads the user's list and returns events newer than watermark,
// oldest first. Concurrent appends may land out of stamp order, so the
// result is sorted by timestamp.
func (n *RedisNotifier) DrainSince(ctx context.Context, userID string, watermark int64) ([]Event, error) {
	raw, err := n.client.LRange(ctx, n.key(userID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			log.Printf("[NOTIFIER] Skipping malformed event for user %s: %v", userID, err)
			continue
		}
		if ev.Timestamp > watermark {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })
	return events, nil
}

// Listen forwards published events to local push channels until ctx ends
func (n *RedisNotifier) Listen(ctx context.Context) error {
	pubsub := n.client.Subscribe(ctx, n.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", n.channel, err)
	}
	log.Printf("[NOTIFIER] Listening for updates on %s", n.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			n.dispatch(msg.Payload)
		}
	}
}

func (n *RedisNotifier) dispatch(payload string) {
	var msg fanoutMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		log.Printf("[NOTIFIER] Ignoring malformed fan-out message: %v", err)
		return
	}
	if msg.UserID == "" {
		return
	}
	n.deliver(msg.UserID, msg.Event)
}
