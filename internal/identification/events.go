package identification

import (
	"context"
	"time"
)

// EventType classifies progress events.
type EventType string

const (
	EventStarted      EventType = "started"
	EventIdentified   EventType = "identified"
	EventUnidentified EventType = "unidentified"
	EventSkipped      EventType = "skipped"
	EventCompleted    EventType = "completed"
	EventCancelled    EventType = "cancelled"
	EventAborted      EventType = "aborted"
)

// Event reports run progress. Index is 1-based and zero for run-level events.
type Event struct {
	Type       EventType `json:"type"`
	RunID      string    `json:"run_id"`
	Index      int       `json:"index,omitempty"`
	Total      int       `json:"total"`
	Filename   string    `json:"filename,omitempty"`
	Species    string    `json:"species,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Time       time.Time `json:"time"`
}

// Observer receives events synchronously from the run.
type Observer func(Event)

// Task is a run dispatched onto its own goroutine.
type Task struct {
	events chan Event
	done   chan struct{}
	report *Report
	err    error
}

// Start runs the pipeline in the background. Events is closed when the run
// finishes; callers that do not consume it should still call Wait.
func (p *Pipeline) Start(ctx context.Context, req Request) *Task {
	task := &Task{
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(task.done)
		defer close(task.events)
		task.report, task.err = p.Run(ctx, req, func(ev Event) {
			task.events <- ev
		})
	}()
	return task
}

// Events streams progress until the run ends.
func (t *Task) Events() <-chan Event {
	return t.events
}

// Wait drains any unread events and returns the run result.
func (t *Task) Wait() (*Report, error) {
	for range t.events {
	}
	<-t.done
	return t.report, t.err
}
