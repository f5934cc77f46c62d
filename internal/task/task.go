package task

import (
	"context"

	"github.com/google/uuid"
)

// Task type constants
const (
	// TaskTypeRecordReview persists a computed review result.
	TaskTypeRecordReview = "record_review"
)

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Key selects the worker. Tasks sharing a key are executed serially in
	// the order they were submitted.
	Key() string

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// FuncTask adapts a function to the Task interface.
type FuncTask struct {
	id       uuid.UUID
	taskType string
	key      string
	fn       func(ctx context.Context) error
}

// NewFuncTask creates a task that runs fn.
func NewFuncTask(taskType, key string, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{
		id:       uuid.New(),
		taskType: taskType,
		key:      key,
		fn:       fn,
	}
}

func (t *FuncTask) ID() uuid.UUID { return t.id }
func (t *FuncTask) Type() string  { return t.taskType }
func (t *FuncTask) Key() string   { return t.key }

// Execute runs the wrapped function.
func (t *FuncTask) Execute(ctx context.Context) error {
	return t.fn(ctx)
}
