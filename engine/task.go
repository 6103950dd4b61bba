package engine

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
)

// TaskID identifies a background task
type TaskID string

// Status reports whether a step wants to be resumed again
type Status int

const (
	Running Status = iota
	Done
)

// Step advances a cooperative task by one resumption
// Steps run on the tick thread after the module pass; they must not block
type Step func(ctx context.Context, dt time.Duration) (Status, error)

// Operation is an externally completed piece of work a task can wait on
type Operation interface {
	IsDone() bool
	Err() error
}

type task struct {
	id     TaskID
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	step   Step
	done   bool
}

// StartTask schedules step to be resumed once per tick, starting with the
// next task pass. Cancelling ctx, StopTask or Shutdown ends the task before
// its next resumption; work already done is not rolled back
func (s *Scheduler) StartTask(ctx context.Context, name string, step Step) (TaskID, error) {
	if err := s.checkPhase(); err != nil {
		return "", err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tctx, cancel := context.WithCancel(ctx)
	t := &task{
		id:     TaskID(uuid.NewString()),
		name:   name,
		ctx:    tctx,
		cancel: cancel,
		step:   step,
	}
	s.tasks = append(s.tasks, t)
	s.statTasks.Store(int64(len(s.tasks)))

	s.logger.Debug().Str("task", name).Str("id", string(t.id)).Msg("task started")
	return t.id, nil
}

// StopTask cancels a task; false if it is unknown or already finished
func (s *Scheduler) StopTask(id TaskID) bool {
	for _, t := range s.tasks {
		if t.id == id && !t.done {
			t.cancel()
			t.done = true
			return true
		}
	}
	return false
}

// StopAllTasks cancels every pending task
func (s *Scheduler) StopAllTasks() {
	for _, t := range s.tasks {
		t.cancel()
		t.done = true
	}
	s.tasks = nil
	s.statTasks.Store(0)
}

// TaskCount returns the number of tasks that have not finished
func (s *Scheduler) TaskCount() int {
	n := 0
	for _, t := range s.tasks {
		if !t.done {
			n++
		}
	}
	return n
}

// resumeTasks steps every task once; tasks started during the pass wait for the next one
func (s *Scheduler) resumeTasks(dt time.Duration) {
	for _, t := range slices.Clone(s.tasks) {
		if t.done {
			continue
		}
		if t.ctx.Err() != nil {
			t.done = true
			s.logger.Debug().Str("task", t.name).Msg("task cancelled")
			continue
		}

		status, err := t.step(t.ctx, dt)
		if err != nil {
			t.done = true
			t.cancel()
			s.logger.Error().Err(err).Str("task", t.name).Msg("task failed")
			continue
		}
		if status == Done {
			t.done = true
			t.cancel()
			s.logger.Debug().Str("task", t.name).Msg("task finished")
		}
	}

	s.tasks = slices.DeleteFunc(s.tasks, func(t *task) bool { return t.done })
	s.statTasks.Store(int64(len(s.tasks)))
}

// Do wraps fn as a step that runs once
func Do(fn func(ctx context.Context) error) Step {
	return func(ctx context.Context, _ time.Duration) (Status, error) {
		return Done, fn(ctx)
	}
}

// WaitUntil yields until cond returns true
func WaitUntil(cond func() bool) Step {
	return func(context.Context, time.Duration) (Status, error) {
		if cond() {
			return Done, nil
		}
		return Running, nil
	}
}

// WaitFor yields until d of tick time has passed
// The returned step keeps its own clock and is single-use
func WaitFor(d time.Duration) Step {
	var waited time.Duration
	return func(_ context.Context, dt time.Duration) (Status, error) {
		waited += dt
		if waited >= d {
			return Done, nil
		}
		return Running, nil
	}
}

// Await yields until op completes and finishes with its error
func Await(op Operation) Step {
	return func(context.Context, time.Duration) (Status, error) {
		if !op.IsDone() {
			return Running, nil
		}
		return Done, op.Err()
	}
}

// Sequence runs steps in order; a finished step hands over to the next one
// within the same resumption, which receives dt=0. The first error ends it
func Sequence(steps ...Step) Step {
	idx := 0
	return func(ctx context.Context, dt time.Duration) (Status, error) {
		for idx < len(steps) {
			if ctx.Err() != nil {
				return Done, nil
			}
			status, err := steps[idx](ctx, dt)
			if err != nil {
				return Done, err
			}
			if status == Running {
				return Running, nil
			}
			idx++
			dt = 0
		}
		return Done, nil
	}
}
