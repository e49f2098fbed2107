package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coachplanner/internal/metrics"
	"coachplanner/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisQueueKey = "outbox:queue"
	deadLetterKey = "outbox:deadletter"
	claimLease    = 5 * time.Minute
)

// TaskHandler delivers one outbox task. A returned error schedules a retry.
type TaskHandler func(ctx context.Context, task *models.OutboxTask) error

// OutboxStore is the persistence the worker needs.
type OutboxStore interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	ClaimOutboxTask(ctx context.Context, id int64, lease time.Duration) (bool, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// OutboxWorker persists post-commit tasks and delivers them. Tasks are
// handed over through Redis, an in-memory channel when Redis is missing or
// failing, and finally by polling the outbox table.
type OutboxWorker struct {
	store        OutboxStore
	handlers     map[string]TaskHandler
	redis        *redis.Client
	retryPolicy  RetryPolicy
	queue        chan models.OutboxTask
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
}

func NewOutboxWorker(store OutboxStore, redisClient *redis.Client, retry RetryPolicy, pollInterval time.Duration, logger *zerolog.Logger) *OutboxWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &OutboxWorker{
		store:        store,
		handlers:     make(map[string]TaskHandler),
		redis:        redisClient,
		retryPolicy:  retry,
		queue:        make(chan models.OutboxTask, models.OutboxQueueSize),
		pollInterval: pollInterval,
		batchSize:    20,
		logger:       logger,
	}
}

// Handle registers the handler for a task type. Call before Start.
func (w *OutboxWorker) Handle(taskType string, handler TaskHandler) {
	w.handlers[taskType] = handler
}

// EnqueueTask persists the task and schedules it for delivery. Only the
// persist step can fail; scheduling falls back to polling.
func (w *OutboxWorker) EnqueueTask(ctx context.Context, taskType string, appointmentID int64, payload interface{}) error {
	if taskType == "" {
		return errors.New("task type is required")
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.OutboxTask{
		TaskType:      taskType,
		AppointmentID: appointmentID,
		Payload:       string(payloadBytes),
		Status:        models.TaskStatusPending,
		CreatedAt:     time.Now(),
	}
	if err := w.store.CreateOutboxTask(ctx, &task); err != nil {
		return fmt.Errorf("persist outbox task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("in-memory queue full, task left to polling")
	}
	return nil
}

// Start runs the delivery loop until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("outbox worker started")
	defer w.logger.Info().Msg("outbox worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if n := w.PollOnce(ctx); n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processTask(ctx, &t)
		case <-time.After(w.pollInterval):
		}
	}
}

// PollOnce processes one batch of runnable tasks from the table and reports
// how many were fetched.
func (w *OutboxWorker) PollOnce(ctx context.Context) int {
	tasks, err := w.store.GetPendingOutboxTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending outbox tasks failed")
		}
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *OutboxWorker) tryLocalQueue() (models.OutboxTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.OutboxTask{}, false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (models.OutboxTask, bool) {
	if w.redis == nil {
		return models.OutboxTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return models.OutboxTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP failed")
		return models.OutboxTask{}, false
	}
	if len(res) != 2 {
		return models.OutboxTask{}, false
	}
	var task models.OutboxTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis outbox task failed")
		return models.OutboxTask{}, false
	}
	return task, true
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	claimed, err := w.store.ClaimOutboxTask(ctx, task.ID, claimLease)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("claim outbox task failed")
		return
	}
	if !claimed {
		return
	}

	log := w.logger.With().Int64("task_id", task.ID).Str("task_type", task.TaskType).Int64("appointment_id", task.AppointmentID).Logger()

	handler, ok := w.handlers[task.TaskType]
	if !ok {
		w.failTask(ctx, task, fmt.Errorf("unknown task type: %s", task.TaskType))
		return
	}

	if err := handler(ctx, task); err != nil {
		log.Warn().Err(err).Int("attempt", task.RetryCount+1).Msg("outbox delivery failed")
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		log.Error().Err(err).Msg("mark outbox task completed failed")
	}
	metrics.IncNotification(task.TaskType, "sent")
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark outbox task retry failed")
	}
	metrics.IncNotification(task.TaskType, "retry")
}

func (w *OutboxWorker) failTask(ctx context.Context, task *models.OutboxTask, cause error) {
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark outbox task failed failed")
	}
	w.logger.Error().Err(cause).
		Int64("task_id", task.ID).
		Str("task_type", task.TaskType).
		Int64("appointment_id", task.AppointmentID).
		Msg("outbox task moved to dead letter")
	metrics.IncNotification(task.TaskType, "failed")
	w.pushDeadLetter(ctx, task)
}

func (w *OutboxWorker) pushRedis(ctx context.Context, task models.OutboxTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, redisQueueKey, data).Err()
}

func (w *OutboxWorker) pushDeadLetter(ctx context.Context, task *models.OutboxTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode dead letter failed")
		return
	}
	if err := w.redis.LPush(ctx, deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push failed")
	}
}
