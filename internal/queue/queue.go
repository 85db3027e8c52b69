package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"rag-chatbot/internal/retry"
)

// TaskType enumerates supported task categories.
type TaskType string

const (
	// TaskTypeInvalidateCache drops cached retrievals after a document changes.
	TaskTypeInvalidateCache TaskType = "invalidate_cache"
)

const (
	defaultMaxAttempts = 5
	defaultRetryBase   = time.Second
)

// ErrQueueFull is returned by in-process queues that cannot accept more work.
var ErrQueueFull = errors.New("queue full")

// Task represents a unit of background work.
type Task struct {
	ID          uuid.UUID
	Type        TaskType
	Payload     []byte
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
}

type Handler func(context.Context, Task) error

// Queue exposes a minimal contract to enqueue and consume tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Worker handles tasks of taskType until ctx is done.
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

// DocumentPayload names the document a task refers to.
type DocumentPayload struct {
	Name string `json:"name"`
}

// NewInvalidateTask builds a cache invalidation task for document name.
func NewInvalidateTask(name string) (Task, error) {
	body, err := json.Marshal(DocumentPayload{Name: name})
	if err != nil {
		return Task{}, err
	}
	return Task{ID: uuid.New(), Type: TaskTypeInvalidateCache, Payload: body, MaxAttempts: 3}, nil
}

// DecodeDocument reads the DocumentPayload of task.
func DecodeDocument(task Task) (DocumentPayload, error) {
	var p DocumentPayload
	err := json.Unmarshal(task.Payload, &p)
	return p, err
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := q.Enqueue(ctx, task); err == nil {
			return nil
		} else if attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, base)):
		}
	}
	return nil
}

// nextAttempt prepares a failed task for redelivery. It returns false once
// the task has used all its attempts.
func nextAttempt(task Task, base time.Duration, now time.Time) (Task, bool) {
	task.Attempts++
	if task.MaxAttempts == 0 {
		task.MaxAttempts = defaultMaxAttempts
	}
	if task.Attempts >= task.MaxAttempts {
		return task, false
	}
	task.NotBefore = now.Add(retry.ExponentialBackoff(task.Attempts, base))
	return task, true
}

// waitUntil blocks until t or until ctx is done.
func waitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
