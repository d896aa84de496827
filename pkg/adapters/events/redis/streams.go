package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aescanero/scriptbook/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// defaultMaxLen bounds every stream; older entries are trimmed approximately
const defaultMaxLen = 10000

// StreamsEventBus implements EventBus using Redis Streams
type StreamsEventBus struct {
	client        *redis.Client
	logger        *zap.Logger
	consumerGroup string
	consumerName  string
	maxLen        int64
	broadcast     map[string]bool

	mu      sync.Mutex
	cancels []context.CancelFunc
	private map[string]string // stream key -> per-consumer group
	wg      sync.WaitGroup
}

// Option configures a StreamsEventBus
type Option func(*StreamsEventBus)

// WithBroadcastTopics makes every consumer receive every event of the given
// topics, instead of sharing them across the consumer group.
func WithBroadcastTopics(topics ...string) Option {
	return func(e *StreamsEventBus) {
		for _, t := range topics {
			e.broadcast[t] = true
		}
	}
}

// WithMaxLen sets the approximate maximum length of each stream
func WithMaxLen(n int64) Option {
	return func(e *StreamsEventBus) {
		e.maxLen = n
	}
}

// NewStreamsEventBus creates a new Redis Streams event bus
func NewStreamsEventBus(client *redis.Client, consumerGroup, consumerName string, logger *zap.Logger, opts ...Option) (*StreamsEventBus, error) {
	if consumerGroup == "" || consumerName == "" {
		return nil, fmt.Errorf("consumer group and consumer name are required")
	}

	e := &StreamsEventBus{
		client:        client,
		logger:        logger,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
		maxLen:        defaultMaxLen,
		broadcast:     make(map[string]bool),
		private:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Publish publishes an event to the appropriate stream topic
func (e *StreamsEventBus) Publish(ctx context.Context, topic string, event ports.Event) error {
	streamKey := getStreamKey(topic)

	// Serialize event
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		MaxLen: e.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("topic", topic),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe subscribes to events on a specific topic until ctx is done
func (e *StreamsEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	streamKey := getStreamKey(topic)
	group := e.groupFor(topic)

	// New groups start at the stream tail; events published before the
	// subscription refer to runs that no longer exist.
	err := e.client.XGroupCreateMkStream(ctx, streamKey, group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	e.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("topic", topic),
		zap.String("consumer_group", group),
		zap.String("consumer", e.consumerName))

	readCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancels = append(e.cancels, cancel)
	if e.broadcast[topic] {
		e.private[streamKey] = group
	}
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.readStream(readCtx, streamKey, group, handler)
	}()

	return nil
}

func (e *StreamsEventBus) groupFor(topic string) string {
	if e.broadcast[topic] {
		return e.consumerGroup + ":" + e.consumerName
	}
	return e.consumerGroup
}

// readStream reads events from a stream
func (e *StreamsEventBus) readStream(ctx context.Context, streamKey, group string, handler ports.EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			streams, err := e.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: e.consumerName,
				Streams:  []string{streamKey, ">"},
				Count:    10,
				Block:    time.Second,
			}).Result()

			if err != nil {
				if errors.Is(err, redis.Nil) {
					// No new messages
					continue
				}
				if ctx.Err() != nil {
					return
				}
				e.logger.Error("failed to read from stream",
					zap.String("stream", streamKey),
					zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					e.processMessage(ctx, streamKey, group, message, handler)
				}
			}
		}
	}
}

// processMessage processes a single message from the stream
func (e *StreamsEventBus) processMessage(ctx context.Context, streamKey, group string, message redis.XMessage, handler ports.EventHandler) {
	data, ok := message.Values["data"].(string)
	if !ok {
		e.logger.Error("invalid message format",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID))
		e.ack(ctx, streamKey, group, message.ID)
		return
	}

	var event ports.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		e.logger.Error("failed to unmarshal event",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		e.ack(ctx, streamKey, group, message.ID)
		return
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Error("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	e.ack(ctx, streamKey, group, message.ID)
}

func (e *StreamsEventBus) ack(ctx context.Context, streamKey, group, id string) {
	if err := e.client.XAck(ctx, streamKey, group, id).Err(); err != nil {
		e.logger.Error("failed to acknowledge message",
			zap.String("stream", streamKey),
			zap.String("message_id", id),
			zap.Error(err))
	}
}

// Close stops every subscription and removes the per-consumer groups of
// broadcast topics. The Redis client is closed by the caller.
func (e *StreamsEventBus) Close() error {
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.cancels = nil
	private := e.private
	e.private = make(map[string]string)
	e.mu.Unlock()

	e.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for streamKey, group := range private {
		if err := e.client.XGroupDestroy(ctx, streamKey, group).Err(); err != nil {
			e.logger.Debug("failed to remove consumer group",
				zap.String("stream", streamKey),
				zap.String("consumer_group", group),
				zap.Error(err))
		}
	}
	return nil
}

// getStreamKey returns the Redis stream key for a topic
func getStreamKey(topic string) string {
	return fmt.Sprintf("scriptbook:events:%s", topic)
}
