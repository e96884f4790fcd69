package queue

import (
	"context"
	"fmt"

	"pokedex/catalog/internal/domain/task"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Journal records tasks for later inspection. Nothing reads them back into
// the catalog.
type Journal interface {
	AddTask(ctx context.Context, task task.Task) (string, error) // Returns message ID
}

type RedisJournal struct {
	redisClient  *redis.Client
	streamPrefix string
	maxLen       int64
}

func NewRedisJournal(redisClient *redis.Client) *RedisJournal {
	return &RedisJournal{
		redisClient:  redisClient,
		streamPrefix: "pokedex:stream:",
		maxLen:       10000,
	}
}

func (q *RedisJournal) AddTask(ctx context.Context, task task.Task) (string, error) {
	taskType := task.TaskType()
	streamName := q.streamPrefix + taskType

	taskValue, err := task.TaskValue()
	if err != nil {
		return "", fmt.Errorf("failed to serialize task: %w", err)
	}

	messageID, err := q.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"task_type": taskType,
			"task_data": string(taskValue),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add task to Redis stream %s: %w", streamName, err)
	}

	log.Debugf("Added task %s to stream %s with message ID: %s", taskType, streamName, messageID)
	return messageID, nil
}

func (q *RedisJournal) Close() error {
	if q.redisClient != nil {
		return q.redisClient.Close()
	}
	return nil
}

// NopJournal drops every task; used when Redis is disabled.
type NopJournal struct{}

func (NopJournal) AddTask(context.Context, task.Task) (string, error) {
	return "", nil
}
