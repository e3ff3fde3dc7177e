package well

import "time"

// InsightOutcome classifies how an insight request was served.
type InsightOutcome string

const (
	InsightHit         InsightOutcome = "hit"
	InsightMiss        InsightOutcome = "miss"
	InsightFallback    InsightOutcome = "fallback"
	InsightUncacheable InsightOutcome = "uncacheable"
)

// Instrumentation receives operational counters from the service.
type Instrumentation interface {
	RecordAppended(t RecordType)
	XPCredited(awarded int64, multiplier float64)
	InsightServed(outcome InsightOutcome)
	CompletionObserved(elapsed time.Duration, err error)
}

// NopInstrumentation discards all observations.
type NopInstrumentation struct{}

func (NopInstrumentation) RecordAppended(RecordType)               {}
func (NopInstrumentation) XPCredited(int64, float64)               {}
func (NopInstrumentation) InsightServed(InsightOutcome)            {}
func (NopInstrumentation) CompletionObserved(time.Duration, error) {}
