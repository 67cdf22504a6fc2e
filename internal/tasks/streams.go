// Package tasks is the durable stage task queue. Stage triggers cross a
// Redis Stream with consumer-group delivery: producers append StageTask
// messages, consumers read through a group and acknowledge after the
// stage runs. Delivery is at-least-once; the stages themselves are
// idempotent.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rankforge/crawlpipe/internal/config"
)

const (
	// Default connection timeout for Redis operations.
	defaultConnectionTimeout = 2 * time.Second

	busyGroupErr = "BUSYGROUP Consumer Group name already exists"
)

// StreamsClient wraps a Redis client with the stream operations the
// queue needs.
type StreamsClient struct {
	client *redis.Client
	prefix string
}

// NewStreamsClient connects to Redis and verifies reachability.
func NewStreamsClient(cfg config.RedisConfig) (*StreamsClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewStreamsClientFromRedis(client, cfg.Prefix), nil
}

// NewStreamsClientFromRedis wraps an existing Redis client.
func NewStreamsClientFromRedis(client *redis.Client, prefix string) *StreamsClient {
	if prefix == "" {
		prefix = "crawlpipe"
	}

	return &StreamsClient{
		client: client,
		prefix: prefix,
	}
}

// StreamName returns the stage task stream key.
func (c *StreamsClient) StreamName() string {
	return c.prefix + ":tasks"
}

// Close closes the underlying Redis client.
func (c *StreamsClient) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *StreamsClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// CreateConsumerGroup creates the consumer group if it doesn't exist.
func (c *StreamsClient) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && err.Error() != busyGroupErr {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	return nil
}

// XAdd appends a message to a stream.
func (c *StreamsClient) XAdd(ctx context.Context, stream string, values map[string]any) (string, error) {
	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
}

// XReadGroup reads messages from a stream through a consumer group.
func (c *StreamsClient) XReadGroup(
	ctx context.Context, group, consumer string, streams []string, count int64, block time.Duration,
) ([]redis.XStream, error) {
	return c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  streams,
		Count:    count,
		Block:    block,
	}).Result()
}

// XAck acknowledges messages in a stream.
func (c *StreamsClient) XAck(ctx context.Context, stream, group string, ids ...string) error {
	return c.client.XAck(ctx, stream, group, ids...).Err()
}

// XPendingExt returns detailed pending entries for a stream.
func (c *StreamsClient) XPendingExt(
	ctx context.Context, stream, group, start, end string, count int64,
) ([]redis.XPendingExt, error) {
	return c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  start,
		End:    end,
		Count:  count,
	}).Result()
}

// XClaim claims pending messages for a consumer.
func (c *StreamsClient) XClaim(
	ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string,
) ([]redis.XMessage, error) {
	return c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
}

// XLen returns the length of a stream.
func (c *StreamsClient) XLen(ctx context.Context, stream string) (int64, error) {
	return c.client.XLen(ctx, stream).Result()
}

// XTrimMaxLen trims a stream to a maximum length.
func (c *StreamsClient) XTrimMaxLen(ctx context.Context, stream string, maxLen int64) error {
	return c.client.XTrimMaxLen(ctx, stream, maxLen).Err()
}
