package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avdeev-m/ticketflow/pkg/queue"
)

const (
	TaskTypeExpirePurchase   = queue.TaskTypeExpirePurchase
	TaskTypeSendNotification = queue.TaskTypeSendNotification
)

// Task is the service-level view of a background task, detached from the
// queue implementation so services can be tested without Redis.
type Task struct {
	ID        string
	Type      string
	Data      map[string]interface{}
	ExecuteAt time.Time
}

func NewTask(taskType string, data map[string]interface{}) *Task {
	return &Task{
		ID:   uuid.New().String(),
		Type: taskType,
		Data: data,
	}
}

// TaskPublisher enqueues background tasks for asynchronous execution
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

type queuePublisher struct {
	queue queue.Queue
}

// NewQueuePublisher adapts the Redis-backed queue to the TaskPublisher
// interface
func NewQueuePublisher(q queue.Queue) TaskPublisher {
	return &queuePublisher{queue: q}
}

func (p *queuePublisher) Publish(ctx context.Context, task *Task) error {
	return p.queue.Publish(ctx, &queue.Task{
		ID:         task.ID,
		Type:       task.Type,
		Data:       task.Data,
		ExecuteAt:  task.ExecuteAt,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
	})
}
