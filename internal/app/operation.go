package app

import "time"

// Operation tracks one CLI invocation. Its ID tags every log line written
// while it runs, and its outcome is logged when the app closes.
type Operation struct {
	ID        string
	Command   string
	StartedAt time.Time
	Status    string // "success" or "error"
}

// NewOperation starts an operation for command at now.
func NewOperation(command string, now time.Time) *Operation {
	return &Operation{
		ID:        now.UTC().Format("20060102T150405Z"),
		Command:   command,
		StartedAt: now,
		Status:    "success",
	}
}

// Finish records err as the outcome and returns it unchanged.
func (op *Operation) Finish(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}

// Failed reports whether Finish was given an error.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}

// Elapsed returns the time since the operation started.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.StartedAt)
}
