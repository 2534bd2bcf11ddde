package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what a task does to its file. Together with the file it
// forms the scheduling key: newer work for a key supersedes older work.
type Kind int

const (
	KindParse Kind = iota
	KindEnrich
	KindCrossResolve
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindEnrich:
		return "enrich"
	case KindCrossResolve:
		return "cross_resolve"
	}
	return "unknown"
}

// Priority orders the queue. Request-driven work always outranks background
// re-indexing; ties fall back to enqueue order.
type Priority int

const (
	PriorityBackground Priority = iota
	PriorityRequest
)

func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityRequest:
		return "request"
	}
	return "unknown"
}

// Key is the supersede unit: one file, one kind of work.
type Key struct {
	FileID string
	Kind   Kind
}

// Task is a unit of work over one file. Fn runs to completion or failure
// without preemption; cancellation happens only at task boundaries.
type Task struct {
	ID         uuid.UUID
	Key        Key
	Priority   Priority
	Timeout    time.Duration
	MaxRetries int
	Fn         func(ctx context.Context) error

	seq      uint64
	attempts int
	index    int // heap bookkeeping
	result   chan Result
}

// Outcome is the terminal disposition of a task.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeSuperseded
	OutcomeTerminal
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeTerminal:
		return "terminal"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is delivered exactly once per accepted task, on the channel
// Enqueue returned. Failures are never silently dropped.
type Result struct {
	TaskID   uuid.UUID
	Key      Key
	Outcome  Outcome
	Err      error
	Attempts int
}
