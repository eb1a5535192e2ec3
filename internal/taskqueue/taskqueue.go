// Package taskqueue moves units of work between the intake layer, the bot
// engine workers, and the timeout scheduler.
//
// The queue supports deferred delivery: a task carrying a NotBefore
// timestamp stays invisible until that time. Timeout tickets rely on this;
// they are enqueued at interaction time and surface minutes or hours later.
package taskqueue

import (
	"context"
	"time"

	"github.com/emprestedigital/creditbot/internal/session"
)

// TaskType identifies what the worker should do.
type TaskType string

const (
	// TaskTypeProcessEvent carries a raw webhook payload from the chat
	// platform for dispatch and engine processing.
	TaskTypeProcessEvent TaskType = "process-event"

	// TaskTypeCheckInactivity is a timeout ticket: re-check a conversation
	// for staleness after a configured delay.
	TaskTypeCheckInactivity TaskType = "check-inactivity"
)

// InactivityCheck is the payload of a TaskTypeCheckInactivity task.
//
// A ticket is valid only while the session still sits in ExpectedState and
// the user has not interacted since DispatchedAt. Stale tickets are no-ops;
// they are never removed from the queue ahead of time.
type InactivityCheck struct {
	ChatID        string
	ExpectedState session.State
	DispatchedAt  time.Time
}

// Task represents a unit of work for the worker.
type Task struct {
	ID   string
	Type TaskType

	// ChatID of the conversation the task concerns, when applicable.
	ChatID string

	// RawEvent is the untouched webhook payload for process-event tasks.
	RawEvent []byte

	// Check is set for check-inactivity tasks.
	Check InactivityCheck

	EnqueuedAt time.Time

	// NotBefore is the earliest time this task should be eligible
	// for processing. Zero value means "immediately".
	NotBefore time.Time
}

// Queue is the async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next eligible task, blocking until one
	// is available or the context is cancelled. Tasks with a future
	// NotBefore are not eligible.
	Dequeue(ctx context.Context) (*Task, error)

	// Len returns the approximate number of tasks queued, eligible or not.
	Len() int
}
