package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rankforge/crawlpipe/internal/domain"
)

const (
	// TaskDataField is the field name for the serialized task in stream
	// messages.
	TaskDataField = "task"

	// EnqueuedAtField is the field name for the enqueue timestamp.
	EnqueuedAtField = "enqueued_at"

	// Default max stream length to prevent unbounded growth.
	defaultMaxStreamLen = 10000
)

// Producer enqueues stage tasks onto the task stream.
type Producer struct {
	client       *StreamsClient
	maxStreamLen int64
}

// ProducerConfig holds configuration for the Producer.
type ProducerConfig struct {
	MaxStreamLen int64 // Maximum stream length (0 = default)
}

// NewProducer creates a new stage task producer.
func NewProducer(client *StreamsClient, cfg ProducerConfig) *Producer {
	maxLen := cfg.MaxStreamLen
	if maxLen <= 0 {
		maxLen = defaultMaxStreamLen
	}

	return &Producer{
		client:       client,
		maxStreamLen: maxLen,
	}
}

// Enqueue appends one stage task to the stream and returns its message
// ID. Missing task IDs and timestamps are filled in.
func (p *Producer) Enqueue(ctx context.Context, task domain.StageTask) (string, error) {
	if task.ProjectID == "" {
		return "", errors.New("task project ID is required")
	}

	if !task.Stage.Valid() {
		return "", fmt.Errorf("unknown stage %q", task.Stage)
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to serialize task: %w", err)
	}

	values := map[string]any{
		TaskDataField:   string(data),
		EnqueuedAtField: task.EnqueuedAt.Format(time.RFC3339),
	}

	stream := p.client.StreamName()
	messageID, addErr := p.client.XAdd(ctx, stream, values)
	if addErr != nil {
		return "", fmt.Errorf("failed to enqueue task to stream %s: %w", stream, addErr)
	}

	return messageID, nil
}

// TrimStream trims the task stream to the maximum length.
func (p *Producer) TrimStream(ctx context.Context) error {
	return p.client.XTrimMaxLen(ctx, p.client.StreamName(), p.maxStreamLen)
}

// QueueDepth returns the current length of the task stream.
func (p *Producer) QueueDepth(ctx context.Context) (int64, error) {
	return p.client.XLen(ctx, p.client.StreamName())
}
