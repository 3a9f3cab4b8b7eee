// Package queue implements the event-fan-out abstraction cmd/flowengine
// uses to publish run_completed notifications to
// subscribers, adapted in place from
// common/queue. MemoryQueue is common/queue's channel-backed
// implementation unchanged in shape; RedisQueue generalizes
// cmd/workflow-runner's Redis-stream worker consumption loop
// (cmd/workflow-runner/worker/http_worker.go's XREADGROUP/XAck cycle)
// from a single task-type stream into a named-topic publish/subscribe
// abstraction, for deployments that split the HTTP-facing process from
// board-execution workers.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lyzr/flowengine/internal/logger"
)

// MessageHandler processes one message read off a topic.
type MessageHandler func(ctx context.Context, key string, value []byte) error

// Queue is the publish/subscribe capability used to fan events out of
// the scheduler to anything listening (HTTP long-poll, websocket
// transport, a future worker process).
type Queue interface {
	Publish(ctx context.Context, topic, key string, message []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// Message is one published item, used internally by MemoryQueue.
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// MemoryQueue is an in-process, single-binary queue: fine for the
// default cmd/flowengine deployment (scheduler and HTTP server in one
// process), matching common/queue's own MVP default before Kafka/Redis
// promotion.
type MemoryQueue struct {
	mu     sync.RWMutex
	topics map[string]chan *Message
	log    *logger.Logger
}

func NewMemoryQueue(log *logger.Logger) *MemoryQueue {
	return &MemoryQueue{topics: make(map[string]chan *Message), log: log}
}

func (q *MemoryQueue) topic(name string) chan *Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.topics[name]
	if !ok {
		ch = make(chan *Message, 1000)
		q.topics[name] = ch
	}
	return ch
}

func (q *MemoryQueue) Publish(ctx context.Context, topic, key string, message []byte) error {
	ch := q.topic(topic)
	select {
	case ch <- &Message{Topic: topic, Key: key, Value: message}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		q.log.Warn("queue full, dropping message", "topic", topic)
		return nil
	}
}

func (q *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	ch := q.topic(topic)
	q.log.Info("subscribing to topic", "topic", topic)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				if err := handler(ctx, msg.Key, msg.Value); err != nil {
					q.log.Error("queue handler error", "topic", topic, "key", msg.Key, "error", err)
				}
			}
		}
	}()
	return nil
}

func (q *MemoryQueue) Close() error { return nil }

// RedisQueue publishes/consumes over Redis streams, one stream per
// topic, using cmd/workflow-runner's consumer-group read loop.
type RedisQueue struct {
	redis         *redis.Client
	log           *logger.Logger
	consumerGroup string
	consumerName  string
}

func NewRedisQueue(client *redis.Client, log *logger.Logger, consumerGroup, consumerName string) *RedisQueue {
	return &RedisQueue{redis: client, log: log, consumerGroup: consumerGroup, consumerName: consumerName}
}

func (q *RedisQueue) Publish(ctx context.Context, topic, key string, message []byte) error {
	err := q.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{"key": key, "value": message},
	}).Err()
	if err != nil {
		return fmt.Errorf("queue: publish %s: %w", topic, err)
	}
	return nil
}

func (q *RedisQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	if err := q.redis.XGroupCreateMkStream(ctx, topic, q.consumerGroup, "0").Err(); err != nil &&
		err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("queue: create consumer group: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				q.consumeOnce(ctx, topic, handler)
			}
		}
	}()
	return nil
}

func (q *RedisQueue) consumeOnce(ctx context.Context, topic string, handler MessageHandler) {
	streams, err := q.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.consumerGroup,
		Consumer: q.consumerName,
		Streams:  []string{topic, ">"},
		Count:    1,
		Block:    5 * time.Second,
	}).Result()
	if err == redis.Nil {
		return
	}
	if err != nil {
		q.log.Error("queue read error", "topic", topic, "error", err)
		time.Sleep(time.Second)
		return
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			key, _ := msg.Values["key"].(string)
			value, _ := msg.Values["value"].(string)
			if err := handler(ctx, key, []byte(value)); err != nil {
				q.log.Error("queue handler error", "topic", topic, "key", key, "error", err)
			}
			q.redis.XAck(ctx, topic, q.consumerGroup, msg.ID)
		}
	}
}

func (q *RedisQueue) Close() error { return nil }
