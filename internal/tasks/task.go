// Package tasks turns areas into queue tasks and runs them in workers.
//
// One task publishes one area, so areas can be published in parallel by
// running several workers, each owning its own workspace.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leonkenneth/RNB-coeur/internal/area"
)

// Task names understood by Worker.
const (
	PublishNational   = "publish_datagouv_national"
	PublishDepartment = "publish_datagouv_dpt"
)

var (
	// ErrUnknownTask is returned for a task name no worker handles.
	ErrUnknownTask = errors.New("unknown task")

	// ErrNoTask is returned by Dequeue when the poll window elapsed empty.
	ErrNoTask = errors.New("no task available")
)

// Task is a deferred publication job. Immutable tasks ignore any result
// passed along by a preceding job in a chain.
type Task struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Args       []string  `json:"args,omitempty"`
	Immutable  bool      `json:"immutable"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ForArea returns the publication task for s: the national task without
// arguments for "nat", the department task with s as its only argument for
// a known department code, an error naming s otherwise.
func ForArea(s string) (Task, error) {
	a, err := area.Parse(s)
	if err != nil {
		return Task{}, err
	}

	t := Task{
		ID:        uuid.NewString(),
		Immutable: true,
	}
	if a.IsNational() {
		t.Name = PublishNational
	} else {
		t.Name = PublishDepartment
		t.Args = []string{a.String()}
	}
	return t, nil
}

// Areas returns the areas a task publishes.
func (t Task) Areas() ([]area.Area, error) {
	switch t.Name {
	case PublishNational:
		return []area.Area{area.National}, nil
	case PublishDepartment:
		if len(t.Args) != 1 {
			return nil, fmt.Errorf("%s expects one department, got %d args", t.Name, len(t.Args))
		}
		a, err := area.Parse(t.Args[0])
		if err != nil {
			return nil, err
		}
		if a.IsNational() {
			return nil, fmt.Errorf("%s expects a department, got %q", t.Name, a)
		}
		return []area.Area{a}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, t.Name)
	}
}

// Delivery is a dequeued task and its acknowledgement hooks.
type Delivery struct {
	Task Task
	ack  func() error
	nack func() error
}

// Ack confirms the task was handled.
func (d *Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack reports the task failed. It is not requeued.
func (d *Delivery) Nack() error {
	if d.nack == nil {
		return nil
	}
	return d.nack()
}

// Enqueuer dispatches tasks to a queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, t Task) error
}

// Dequeuer hands tasks to workers. Dequeue returns ErrNoTask when nothing
// arrived within the backend's poll window.
type Dequeuer interface {
	Dequeue(ctx context.Context) (*Delivery, error)
}

// Queue is a backend that does both.
type Queue interface {
	Enqueuer
	Dequeuer
	Close() error
}

// EnqueueAreas builds and enqueues one task per area, stopping at the first
// invalid area or enqueue failure.
func EnqueueAreas(ctx context.Context, q Enqueuer, areas []string) ([]Task, error) {
	out := make([]Task, 0, len(areas))
	for _, s := range areas {
		t, err := ForArea(s)
		if err != nil {
			return out, err
		}
		t.EnqueuedAt = time.Now().UTC()
		if err := q.Enqueue(ctx, t); err != nil {
			return out, fmt.Errorf("enqueue %s: %w", t.Name, err)
		}
		out = append(out, t)
	}
	return out, nil
}
