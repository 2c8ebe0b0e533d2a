// Package queue is a Redis-stream backed crawl task queue with consumer
// groups, so several worker processes can drain the same crawl without
// double-fetching.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KindSearch  = "search"
	KindProduct = "product"
)

// Task is one unit of crawl work.
type Task struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Kind       string    `json:"kind"`
	URL        string    `json:"url"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type Queue struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	logger   *slog.Logger
}

func New(rdb *redis.Client, stream, group, consumer string, logger *slog.Logger) *Queue {
	return &Queue{
		rdb:      rdb,
		stream:   stream,
		group:    group,
		consumer: consumer,
		logger:   logger.With("component", "queue"),
	}
}

// Ensure creates the stream and consumer group if they do not exist.
func (q *Queue) Ensure(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Push appends a task to the stream.
func (q *Queue) Push(ctx context.Context, task *Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	err = q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{"task": string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd task: %w", err)
	}

	q.logger.Debug("task enqueued", "kind", task.Kind, "url", task.URL, "attempt", task.Attempt)
	return nil
}

// Pop blocks for up to block and returns the next task plus its stream
// message ID for acking. A nil task with nil error means the block timed
// out with nothing to do.
func (q *Queue) Pop(ctx context.Context, block time.Duration) (*Task, string, error) {
	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("xreadgroup: %w", err)
	}

	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, "", nil
	}
	msg := res[0].Messages[0]

	raw, ok := msg.Values["task"].(string)
	if !ok {
		// Poison entry; ack it away so it cannot wedge the group.
		q.ack(ctx, msg.ID)
		return nil, "", fmt.Errorf("malformed task in message %s", msg.ID)
	}

	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		q.ack(ctx, msg.ID)
		return nil, "", fmt.Errorf("unmarshal task %s: %w", msg.ID, err)
	}
	return &task, msg.ID, nil
}

// Ack marks a stream message as processed.
func (q *Queue) Ack(ctx context.Context, msgID string) error {
	return q.ack(ctx, msgID)
}

func (q *Queue) ack(ctx context.Context, msgID string) error {
	if err := q.rdb.XAck(ctx, q.stream, q.group, msgID).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", msgID, err)
	}
	return nil
}

// Len returns the current stream length.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.XLen(ctx, q.stream).Result()
}
