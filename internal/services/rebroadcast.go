package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Yetunde495/mentorr-me/internal/realtime"
	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

// TaskRebroadcast retries a fan-out that failed at send time. The message is
// already durable by then; the task only repeats the publish.
const TaskRebroadcast = "chat:rebroadcast"

type RebroadcastQueue struct {
	client *asynq.Client
	queue  string
}

func NewRebroadcastQueue(client *asynq.Client, queue string) *RebroadcastQueue {
	return &RebroadcastQueue{client: client, queue: queue}
}

func (q *RebroadcastQueue) Enqueue(ctx context.Context, env chatwire.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal rebroadcast payload: %w", err)
	}

	task := asynq.NewTask(TaskRebroadcast, payload)
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queue),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue rebroadcast: %w", err)
	}
	return nil
}

// NewRebroadcastHandler returns the worker side: decode the envelope and
// publish it again. Undecodable payloads are dropped instead of retried.
func NewRebroadcastHandler(broadcaster realtime.Broadcaster, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var env chatwire.Envelope
		if err := json.Unmarshal(task.Payload(), &env); err != nil {
			logger.Error("rebroadcast: dropping malformed task", zap.Error(err))
			return fmt.Errorf("unmarshal rebroadcast payload: %v: %w", err, asynq.SkipRetry)
		}

		if err := broadcaster.Publish(ctx, env); err != nil {
			return fmt.Errorf("rebroadcast publish: %w", err)
		}

		logger.Info("rebroadcast: envelope redelivered",
			zap.String("channel", env.Channel),
			zap.String("event", env.Event),
		)
		return nil
	}
}
