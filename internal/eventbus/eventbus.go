// Package eventbus carries "other processes receive events by message
// passing" (spec.md §2, §4.9, §5): the BlockEmitter publishes newHeads/logs
// on Redis pub/sub channels, and every other process subscribes to the
// same channels. Redis is already the system's one cross-process
// coordination point (spec.md §5), so this is the natural transport rather
// than a bespoke IPC mechanism.
package eventbus

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

const (
	newHeadsChannel = "gw:newHeads"
	logsChannel     = "gw:logs"
)

// Bus publishes and subscribes to block/log events.
type Bus struct {
	redis *redis.Client
}

// New builds a Bus over an existing Redis client.
func New(rdb *redis.Client) *Bus {
	return &Bus{redis: rdb}
}

// PublishNewHead publishes one head (spec.md §4.9: "one API-block per head,
// transactions omitted").
func (b *Bus) PublishNewHead(head gwtypes.ApiBlockHeader) error {
	payload, err := json.Marshal(head)
	if err != nil {
		return err
	}
	return b.redis.Publish(newHeadsChannel, payload).Err()
}

// PublishLogs publishes a batch of logs produced by one tip advance.
func (b *Bus) PublishLogs(logs []gwtypes.ApiLog) error {
	payload, err := json.Marshal(logs)
	if err != nil {
		return err
	}
	return b.redis.Publish(logsChannel, payload).Err()
}

// Subscription delivers decoded events to a worker process. Events are
// best-effort: subscribers must tolerate duplicates and missing events
// across BlockEmitter restarts (spec.md §4.9).
type Subscription struct {
	NewHeads <-chan gwtypes.ApiBlockHeader
	Logs     <-chan []gwtypes.ApiLog
	pubsub   *redis.PubSub
}

// Close releases the underlying Redis subscription.
func (s *Subscription) Close() error { return s.pubsub.Close() }

// Subscribe opens a subscription to both channels. The returned channels
// are closed when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context) *Subscription {
	pubsub := b.redis.Subscribe(newHeadsChannel, logsChannel)
	heads := make(chan gwtypes.ApiBlockHeader, 16)
	logs := make(chan []gwtypes.ApiLog, 16)

	go func() {
		defer close(heads)
		defer close(logs)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				switch msg.Channel {
				case newHeadsChannel:
					var head gwtypes.ApiBlockHeader
					if err := json.Unmarshal([]byte(msg.Payload), &head); err == nil {
						select {
						case heads <- head:
						case <-ctx.Done():
							return
						}
					}
				case logsChannel:
					var batch []gwtypes.ApiLog
					if err := json.Unmarshal([]byte(msg.Payload), &batch); err == nil {
						select {
						case logs <- batch:
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}
	}()

	return &Subscription{NewHeads: heads, Logs: logs, pubsub: pubsub}
}
