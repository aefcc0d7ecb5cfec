package service

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fieldpunch/api/internal/model"
)

const (
	TaskTypeReport  = "report:generate"
	TaskTypeCleanup = "storage:cleanup"
)

// TaskEnqueuer is the slice of asynq.Client the services need.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskQueue wraps the asynq client behind the service-level enqueue
// contracts.
type TaskQueue struct {
	client TaskEnqueuer
}

func NewTaskQueue(client TaskEnqueuer) *TaskQueue {
	return &TaskQueue{client: client}
}

// EnqueueCleanup queues best-effort photo deletion.
func (q *TaskQueue) EnqueueCleanup(payload model.CleanupTaskPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = q.client.Enqueue(asynq.NewTask(TaskTypeCleanup, data),
		asynq.Queue("cleanup"),
		asynq.MaxRetry(3),
	)
	return err
}

// EnqueueReport queues report generation.
func (q *TaskQueue) EnqueueReport(payload model.ReportTaskPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = q.client.Enqueue(asynq.NewTask(TaskTypeReport, data),
		asynq.Queue("reports"),
		asynq.MaxRetry(2),
		asynq.Retention(24*time.Hour),
	)
	return err
}
