package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalOptions tunes the in-process queue.
type LocalOptions struct {
	// Buffer is the number of pending tasks held per task type.
	Buffer int
	// RetryBase is the first retry delay of a failed task.
	RetryBase time.Duration
}

// NewLocal returns a queue backed by buffered channels. Tasks are lost when
// the process exits.
func NewLocal(log *slog.Logger, opts LocalOptions) Queue {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = defaultRetryBase
	}
	return &localQueue{log: log, opts: opts, chans: make(map[TaskType]chan Task)}
}

type localQueue struct {
	log   *slog.Logger
	opts  LocalOptions
	mu    sync.Mutex
	chans map[TaskType]chan Task
}

func (q *localQueue) channel(t TaskType) chan Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.chans[t]
	if !ok {
		ch = make(chan Task, q.opts.Buffer)
		q.chans[t] = ch
	}
	return ch
}

func (q *localQueue) Enqueue(_ context.Context, task Task) error {
	if task.Type == "" {
		return errors.New("task type required")
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	select {
	case q.channel(task.Type) <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *localQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	ch := q.channel(taskType)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case task := <-ch:
			if !task.NotBefore.IsZero() && task.NotBefore.After(time.Now()) {
				// Delay without blocking tasks queued behind this one.
				wg.Add(1)
				go func(task Task) {
					defer wg.Done()
					if waitUntil(ctx, task.NotBefore) == nil {
						q.run(ctx, task, handler)
					}
				}(task)
				continue
			}
			q.run(ctx, task, handler)
		}
	}
}

func (q *localQueue) run(ctx context.Context, task Task, handler Handler) {
	err := handler(ctx, task)
	if err == nil {
		return
	}
	next, ok := nextAttempt(task, q.opts.RetryBase, time.Now())
	if !ok {
		q.log.Error("task permanently failed", "id", task.ID, "type", task.Type, "original_err", err)
		return
	}
	if enqErr := q.Enqueue(ctx, next); enqErr != nil {
		q.log.Error("failed to re-enqueue task after failure", "id", task.ID, "type", task.Type, "original_err", err, "enqueue_err", enqErr)
	}
}
