package well

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"
)

func TestRecord_Normalize(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	valid := func() Record {
		return Record{UserID: "alice", Type: TypeActivity, Timestamp: at}
	}

	tests := []struct {
		name      string
		mutate    func(*Record)
		wantField string
	}{
		{"missing user", func(r *Record) { r.UserID = "  " }, "user_id"},
		{"missing type", func(r *Record) { r.Type = "" }, "type"},
		{"unknown type", func(r *Record) { r.Type = "yoga" }, "type"},
		{"missing timestamp", func(r *Record) { r.Timestamp = time.Time{} }, "timestamp"},
		{"timestamp before 1900", func(r *Record) { r.Timestamp = MinTimestamp.Add(-time.Nanosecond) }, "timestamp"},
		{"timestamp in 2200", func(r *Record) { r.Timestamp = MaxTimestamp }, "timestamp"},
		{"timestamp in 2300", func(r *Record) { r.Timestamp = time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC) }, "timestamp"},
		{"timestamp in 1600", func(r *Record) { r.Timestamp = time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC) }, "timestamp"},
		{"intensity below 1", func(r *Record) { r.Metrics.Intensity = Float(0) }, "metrics.intensity"},
		{"intensity above 10", func(r *Record) { r.Metrics.Intensity = Float(11) }, "metrics.intensity"},
		{"quality above 1", func(r *Record) { r.Metrics.Quality = Float(1.5) }, "metrics.quality"},
		{"negative confidence", func(r *Record) { r.Metadata.Confidence = Float(-0.1) }, "metadata.confidence"},
		{"negative duration", func(r *Record) { r.Metrics.Duration = Float(-1) }, "metrics.duration"},
		{"negative quantity", func(r *Record) { r.Metrics.Quantity = Float(-10) }, "metrics.quantity"},
		{"nan calories", func(r *Record) { r.Metrics.Calories = Float(math.NaN()) }, "metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := r.normalize()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("normalize() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}

	t.Run("canonicalizes a valid record", func(t *testing.T) {
		r := valid()
		r.UserID = " alice "
		r.Timestamp = at.In(time.FixedZone("X", 3600))
		r.Metrics.Intensity = Float(10)
		r.Metrics.Quality = Float(0)
		r.Metadata.Tags = []string{"run", " park", "run", ""}

		if err := r.normalize(); err != nil {
			t.Fatalf("normalize() error = %v", err)
		}
		if r.UserID != "alice" {
			t.Errorf("UserID = %q, want trimmed", r.UserID)
		}
		if r.Timestamp.Location() != time.UTC || !r.Timestamp.Equal(at) {
			t.Errorf("Timestamp = %v, want %v in UTC", r.Timestamp, at)
		}
		if want := []string{"park", "run"}; !slices.Equal(r.Metadata.Tags, want) {
			t.Errorf("Tags = %v, want %v", r.Metadata.Tags, want)
		}
	})

	t.Run("timestamp bounds", func(t *testing.T) {
		for _, ts := range []time.Time{MinTimestamp, MaxTimestamp.Add(-time.Microsecond)} {
			r := valid()
			r.Timestamp = ts
			if err := r.normalize(); err != nil {
				t.Errorf("normalize(%v) error = %v", ts, err)
			}
		}
	})

	t.Run("truncates to microseconds", func(t *testing.T) {
		r := valid()
		r.Timestamp = at.Add(1234567 * time.Nanosecond)
		if err := r.normalize(); err != nil {
			t.Fatalf("normalize() error = %v", err)
		}
		if want := at.Add(1234 * time.Microsecond); !r.Timestamp.Equal(want) {
			t.Errorf("Timestamp = %v, want %v", r.Timestamp, want)
		}
	})
}

func TestRecord_CountsAsSteps(t *testing.T) {
	tests := []struct {
		typ      RecordType
		category string
		want     bool
	}{
		{TypeSteps, "", true},
		{TypeActivity, "running", true},
		{TypeWorkout, "Walking", true},
		{TypeActivity, "cycling", false},
		{TypeHydration, "steps", false},
	}
	for _, tt := range tests {
		r := &Record{Type: tt.typ, Category: tt.category}
		if got := r.countsAsSteps(); got != tt.want {
			t.Errorf("countsAsSteps(%s/%s) = %v, want %v", tt.typ, tt.category, got, tt.want)
		}
	}
}
