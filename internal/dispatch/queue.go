package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"herald/internal/config"
	"herald/internal/logger"
)

const TaskTypeRelease = "delivery:release"

type ReleasePayload struct {
	DeliveryID string `json:"delivery_id"`
	Deferrals  int    `json:"deferrals"`
}

func NewReleaseTask(deliveryID string, deferrals int) (*asynq.Task, error) {
	payload, err := json.Marshal(ReleasePayload{DeliveryID: deliveryID, Deferrals: deferrals})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeRelease, payload), nil
}

func ParseReleasePayload(data []byte) (*ReleasePayload, error) {
	var p ReleasePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	if p.DeliveryID == "" {
		return nil, fmt.Errorf("task payload has no delivery_id")
	}
	return &p, nil
}

// releaseTaskID makes each (delivery, deferral) pair enqueue at most once.
func releaseTaskID(deliveryID string, deferrals int) string {
	return fmt.Sprintf("release:%s:%d", deliveryID, deferrals)
}

// recoveryTaskID never collides with releaseTaskID: the original task may
// still sit archived or retrying under that id.
func recoveryTaskID(deliveryID string, deferrals int, at time.Time) string {
	return fmt.Sprintf("release:%s:%d:sweep:%d", deliveryID, deferrals, at.Unix())
}

// taskEnqueuer is satisfied by *asynq.Client.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type AsynqScheduler struct {
	client   taskEnqueuer
	queue    string
	maxRetry int
}

func NewAsynqScheduler(client *asynq.Client, cfg config.QueueConfig) *AsynqScheduler {
	return newAsynqScheduler(client, cfg)
}

func newAsynqScheduler(client taskEnqueuer, cfg config.QueueConfig) *AsynqScheduler {
	queue := cfg.Name
	if queue == "" {
		queue = "deliveries"
	}
	return &AsynqScheduler{client: client, queue: queue, maxRetry: cfg.MaxRetry}
}

// ScheduleRelease treats an existing task for the same deferral as success.
func (s *AsynqScheduler) ScheduleRelease(ctx context.Context, deliveryID string, deferrals int, at time.Time) error {
	_, err := s.enqueue(ctx, deliveryID, deferrals, at, releaseTaskID(deliveryID, deferrals))
	return err
}

// RequeueRelease enqueues a recovery task for a delivery whose release task
// was lost. It reports false when a task with the same id already exists.
func (s *AsynqScheduler) RequeueRelease(ctx context.Context, deliveryID string, deferrals int, at time.Time) (bool, error) {
	return s.enqueue(ctx, deliveryID, deferrals, at, recoveryTaskID(deliveryID, deferrals, at))
}

func (s *AsynqScheduler) enqueue(ctx context.Context, deliveryID string, deferrals int, at time.Time, taskID string) (bool, error) {
	task, err := NewReleaseTask(deliveryID, deferrals)
	if err != nil {
		return false, err
	}

	_, err = s.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(at),
		asynq.Queue(s.queue),
		asynq.MaxRetry(s.maxRetry),
		asynq.TaskID(taskID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("enqueuing release task: %w", err)
	}
	return true, nil
}

func RedisClientOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewQueueServer(redisCfg config.RedisConfig, cfg config.QueueConfig, log logger.Logger) *asynq.Server {
	queue := cfg.Name
	if queue == "" {
		queue = "deliveries"
	}
	return asynq.NewServer(RedisClientOpt(redisCfg), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		// 30s, 60s, 120s ... capped at 32m.
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return time.Duration(30*(1<<uint(min(max(n, 0), 6)))) * time.Second
		},
		Logger: log,
	})
}

// NewQueueMux routes release tasks to the releaser.
func NewQueueMux(r *Releaser) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeRelease, func(ctx context.Context, task *asynq.Task) error {
		payload, err := ParseReleasePayload(task.Payload())
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return r.Release(ctx, payload.DeliveryID, payload.Deferrals)
	})
	return mux
}
