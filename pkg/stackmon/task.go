package stackmon

import (
	"context"

	"github.com/golang/glog"
)

// TaskFrameSize is charged for the task's own frame while it runs.
const TaskFrameSize = 128

// TaskFunc is the body of a monitored task.
type TaskFunc func(ctx context.Context, t *Task) error

// Task is a monitored unit of work with a declared stack size.
type Task struct {
	budget *Budget
	body   TaskFunc
}

// NewTask creates a Task.
func NewTask(name string, stackSize int, body TaskFunc) *Task {
	return &Task{budget: NewBudget(name, stackSize), body: body}
}

// Name implements framework.Named.
func (t *Task) Name() string {
	return t.budget.name
}

// StackSize returns the declared stack size.
func (t *Task) StackSize() int {
	return t.budget.size
}

// Use charges n bytes of stack until release is called.
func (t *Task) Use(n int) (release func(), err error) {
	return t.budget.Use(n)
}

// HighWaterMark returns the minimum remaining stack ever observed.
func (t *Task) HighWaterMark() int {
	return t.budget.HighWaterMark()
}

// Run implements Runnable. A stack overflow stops only this task.
func (t *Task) Run(ctx context.Context) error {
	release, err := t.Use(TaskFrameSize)
	if err == nil {
		defer release()
		err = t.body(ctx, t)
	}
	if _, ok := err.(*StackOverflowError); ok {
		glog.Errorf("Stack overflow in task: %s", t.Name())
	}
	return err
}
