package well

import (
	"math"
	"slices"
	"strings"
	"time"
)

// RecordType classifies a wellness record.
type RecordType string

const (
	TypeActivity  RecordType = "activity"
	TypeMeal      RecordType = "meal"
	TypeSleep     RecordType = "sleep"
	TypeSteps     RecordType = "steps"
	TypeHydration RecordType = "hydration"
	TypeWorkout   RecordType = "workout"
)

// Record timestamps must fall in [MinTimestamp, MaxTimestamp). Both bounds are
// inside the int64 nanosecond range the SQLite store uses.
var (
	MinTimestamp = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxTimestamp = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
)

// TimestampPrecision is the finest resolution kept for a record timestamp.
// Postgres stores microseconds.
const TimestampPrecision = time.Microsecond

// RecordTypes lists every known record type in display order.
var RecordTypes = []RecordType{TypeActivity, TypeMeal, TypeSleep, TypeSteps, TypeHydration, TypeWorkout}

// Valid reports whether t is one of the known record types.
func (t RecordType) Valid() bool {
	return slices.Contains(RecordTypes, t)
}

// burnsCalories reports whether calories on this type count as burned.
// Meals are the only type whose calories are consumed.
func (t RecordType) burnsCalories() bool {
	return t == TypeActivity || t == TypeWorkout || t == TypeSteps
}

func (t RecordType) isActivity() bool {
	return t == TypeActivity || t == TypeWorkout
}

// Record is one observed wellness event. ID, UserID, Timestamp and Type never
// change once the record has been appended; corrections are new records.
type Record struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Timestamp time.Time  `json:"timestamp"`
	Type      RecordType `json:"type"`
	Category  string     `json:"category,omitempty"`
	Metrics   Metrics    `json:"metrics"`
	Metadata  Metadata   `json:"metadata"`
}

// Metrics is a sparse bag of optional measurements. A nil field means "not
// observed" and folds as zero.
type Metrics struct {
	Duration  *float64     `json:"duration,omitempty"` // minutes
	Calories  *float64     `json:"calories,omitempty"` // kcal; consumed for meals, burned otherwise
	XPEarned  *float64     `json:"xp_earned,omitempty"`
	Intensity *float64     `json:"intensity,omitempty"` // 1-10
	Quantity  *float64     `json:"quantity,omitempty"`  // steps or ml
	Quality   *float64     `json:"quality,omitempty"`   // 0-1
	Nutrition *Nutrition   `json:"nutrition,omitempty"`
	Sleep     *SleepStages `json:"sleep,omitempty"`
}

// Nutrition holds macronutrients in grams.
type Nutrition struct {
	Protein *float64 `json:"protein,omitempty"`
	Carbs   *float64 `json:"carbs,omitempty"`
	Fat     *float64 `json:"fat,omitempty"`
}

// SleepStages holds minutes per sleep stage and the interruption count.
type SleepStages struct {
	Light         *float64 `json:"light,omitempty"`
	Deep          *float64 `json:"deep,omitempty"`
	REM           *float64 `json:"rem,omitempty"`
	Interruptions *float64 `json:"interruptions,omitempty"`
}

// Metadata carries provenance for a record.
type Metadata struct {
	Confidence    *float64 `json:"confidence,omitempty"` // 0-1
	AIInsights    []string `json:"ai_insights,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// RecordFilter narrows a ledger query. Zero values mean "no constraint".
// The time range is half-open: From <= timestamp < To.
type RecordFilter struct {
	Types []RecordType
	From  time.Time
	To    time.Time
}

// Float returns a pointer to v, for building sparse Metrics literals.
func Float(v float64) *float64 { return &v }

// val folds an optional measurement to a number; missing is zero.
func val(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// normalize validates r in place and canonicalizes its set-valued fields.
func (r *Record) normalize() error {
	r.UserID = strings.TrimSpace(r.UserID)
	if r.UserID == "" {
		return invalid("user_id", "is required")
	}
	if r.Type == "" {
		return invalid("type", "is required")
	}
	if !r.Type.Valid() {
		return invalid("type", "must be one of activity, meal, sleep, steps, hydration, workout")
	}
	if r.Timestamp.IsZero() {
		return invalid("timestamp", "is required")
	}
	if r.Timestamp.Before(MinTimestamp) || !r.Timestamp.Before(MaxTimestamp) {
		return invalid("timestamp", "must be in years 1900 to 2199")
	}

	m := r.Metrics
	checks := []struct {
		field    string
		v        *float64
		min, max float64
	}{
		{"metrics.duration", m.Duration, 0, math.Inf(1)},
		{"metrics.quantity", m.Quantity, 0, math.Inf(1)},
		{"metrics.intensity", m.Intensity, 1, 10},
		{"metrics.quality", m.Quality, 0, 1},
		{"metadata.confidence", r.Metadata.Confidence, 0, 1},
	}
	for _, c := range checks {
		if c.v == nil {
			continue
		}
		if math.IsNaN(*c.v) || math.IsInf(*c.v, 0) || *c.v < c.min || *c.v > c.max {
			return invalid(c.field, "is out of range")
		}
	}
	for _, p := range []*float64{m.Calories, m.XPEarned} {
		if p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
			return invalid("metrics", "must be finite")
		}
	}

	r.Metadata.Tags = tagSet(r.Metadata.Tags)
	r.Timestamp = r.Timestamp.UTC().Truncate(TimestampPrecision)
	return nil
}

// tagSet trims, de-duplicates and sorts tags.
func tagSet(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// countsAsSteps reports whether the record's quantity is a step count.
func (r *Record) countsAsSteps() bool {
	if r.Type == TypeSteps {
		return true
	}
	if r.Type == TypeHydration {
		return false
	}
	switch strings.ToLower(r.Category) {
	case "steps", "walking", "running":
		return true
	}
	return false
}
