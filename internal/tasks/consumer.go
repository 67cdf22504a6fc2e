package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rankforge/crawlpipe/internal/domain"
)

const (
	// Default consumer group name.
	defaultConsumerGroup = "pipeline"

	// Default block timeout for reading from the stream.
	defaultBlockTimeout = 5 * time.Second

	// Default count of messages to read per batch.
	defaultBatchSize = 10

	// Default minimum idle time before claiming pending messages left
	// behind by a crashed consumer.
	defaultClaimMinIdle = 5 * time.Minute

	// Maximum pending messages to check per reclaim pass.
	maxPendingCheck = 100
)

// Consumer reads stage tasks from the stream through a consumer group.
type Consumer struct {
	client        *StreamsClient
	consumerGroup string
	consumerID    string
	blockTimeout  time.Duration
	batchSize     int64
	claimMinIdle  time.Duration
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	ConsumerGroup string        // Consumer group name
	ConsumerID    string        // Unique consumer identifier
	BlockTimeout  time.Duration // Block timeout for reads (0 = default)
	BatchSize     int64         // Number of messages per read (0 = default)
	ClaimMinIdle  time.Duration // Min idle time before claiming (0 = default)
}

// ConsumedTask is one stage task read from the queue, carrying the
// stream message ID needed for acknowledgement.
type ConsumedTask struct {
	MessageID string
	Task      domain.StageTask
}

// NewConsumer creates a new stage task consumer.
func NewConsumer(client *StreamsClient, cfg ConsumerConfig) (*Consumer, error) {
	if cfg.ConsumerID == "" {
		return nil, errors.New("consumer ID is required")
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = defaultConsumerGroup
	}

	blockTimeout := cfg.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = defaultBlockTimeout
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	claimMinIdle := cfg.ClaimMinIdle
	if claimMinIdle <= 0 {
		claimMinIdle = defaultClaimMinIdle
	}

	return &Consumer{
		client:        client,
		consumerGroup: group,
		consumerID:    cfg.ConsumerID,
		blockTimeout:  blockTimeout,
		batchSize:     batchSize,
		claimMinIdle:  claimMinIdle,
	}, nil
}

// Initialize creates the consumer group for the task stream.
func (c *Consumer) Initialize(ctx context.Context) error {
	if err := c.client.CreateConsumerGroup(ctx, c.client.StreamName(), c.consumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	return nil
}

// Read returns the next batch of tasks. Pending messages abandoned past
// the idle threshold are reclaimed first, then new messages are read.
func (c *Consumer) Read(ctx context.Context) ([]*ConsumedTask, error) {
	if reclaimed := c.reclaimPending(ctx); len(reclaimed) > 0 {
		return reclaimed, nil
	}

	stream := c.client.StreamName()
	streams := []string{stream, ">"}

	messages, err := c.client.XReadGroup(ctx, c.consumerGroup, c.consumerID, streams, c.batchSize, c.blockTimeout)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No messages available
		}
		return nil, fmt.Errorf("failed to read from stream %s: %w", stream, err)
	}

	return c.parseStreams(messages), nil
}

// Acknowledge marks a task as processed.
func (c *Consumer) Acknowledge(ctx context.Context, task *ConsumedTask) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	return c.client.XAck(ctx, c.client.StreamName(), c.consumerGroup, task.MessageID)
}

// reclaimPending claims messages another consumer read but never
// acknowledged, once they have been idle past the threshold.
func (c *Consumer) reclaimPending(ctx context.Context) []*ConsumedTask {
	stream := c.client.StreamName()

	pending, err := c.client.XPendingExt(ctx, stream, c.consumerGroup, "-", "+", maxPendingCheck)
	if err != nil {
		return nil
	}

	var idsToReclaim []string
	for _, entry := range pending {
		if entry.Idle >= c.claimMinIdle {
			idsToReclaim = append(idsToReclaim, entry.ID)
		}
	}

	if len(idsToReclaim) == 0 {
		return nil
	}

	claimed, claimErr := c.client.XClaim(ctx, stream, c.consumerGroup, c.consumerID, c.claimMinIdle, idsToReclaim...)
	if claimErr != nil {
		return nil
	}

	var reclaimed []*ConsumedTask
	for _, msg := range claimed {
		task, parseErr := parseMessage(msg)
		if parseErr != nil {
			// Poison message: acknowledge so it stops cycling.
			_ = c.client.XAck(ctx, stream, c.consumerGroup, msg.ID)
			continue
		}
		reclaimed = append(reclaimed, task)
	}

	return reclaimed
}

// parseStreams flattens read results into consumed tasks, skipping
// malformed messages.
func (c *Consumer) parseStreams(streams []redis.XStream) []*ConsumedTask {
	var consumed []*ConsumedTask

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			task, err := parseMessage(msg)
			if err != nil {
				_ = c.client.XAck(context.Background(), c.client.StreamName(), c.consumerGroup, msg.ID)
				continue
			}
			consumed = append(consumed, task)
		}
	}

	return consumed
}

// parseMessage decodes a single stream message into a consumed task.
func parseMessage(msg redis.XMessage) (*ConsumedTask, error) {
	data, ok := msg.Values[TaskDataField].(string)
	if !ok {
		return nil, errors.New("missing or invalid task data")
	}

	var task domain.StageTask
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}

	if !task.Stage.Valid() {
		return nil, fmt.Errorf("unknown stage %q", task.Stage)
	}

	return &ConsumedTask{
		MessageID: msg.ID,
		Task:      task,
	}, nil
}

// ConsumerGroup returns the consumer group name.
func (c *Consumer) ConsumerGroup() string {
	return c.consumerGroup
}

// ConsumerID returns the consumer ID.
func (c *Consumer) ConsumerID() string {
	return c.consumerID
}
