package scheduler

import "context"

// Job is a unit of work executed by the worker pool.
type Job interface {
	// Execute runs the job. Implementations must respect ctx cancellation.
	Execute(ctx context.Context) error

	// UserID returns the user whose data the job touches.
	UserID() int64

	// Description is used for logs and span attributes.
	Description() string
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	User int64
	Name string
	Fn   func(ctx context.Context) error
}

func (j JobFunc) Execute(ctx context.Context) error { return j.Fn(ctx) }
func (j JobFunc) UserID() int64                     { return j.User }
func (j JobFunc) Description() string               { return j.Name }
