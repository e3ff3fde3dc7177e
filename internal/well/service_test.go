package well_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"well-go/internal/testutil"
	"well-go/internal/well"
)

// seed appends a record for user at the fixture's clock time minus daysAgo days.
func seed(t *testing.T, f *testutil.ServiceFixture, user string, daysAgo int, typ well.RecordType, m well.Metrics) {
	t.Helper()
	_, err := f.Service.AppendRecord(context.Background(), &well.Record{
		UserID:    user,
		Timestamp: f.Clock.Now().AddDate(0, 0, -daysAgo),
		Type:      typ,
		Metrics:   m,
	})
	if err != nil {
		t.Fatalf("AppendRecord() error = %v", err)
	}
}

// brokenDatabase fails every ledger read.
type brokenDatabase struct {
	well.Database
}

var errStoreDown = errors.New("store unavailable")

func (brokenDatabase) QueryRecords(context.Context, string, well.RecordFilter) ([]*well.Record, error) {
	return nil, errStoreDown
}

func TestWellService_AppendRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns an id and leaves the caller's record alone", func(t *testing.T) {
		f := testutil.NewTestService(t)
		r := &well.Record{UserID: "alice", Type: well.TypeSteps, Timestamp: f.Clock.Now(), Metrics: well.Metrics{Quantity: well.Float(100)}}

		id, err := f.Service.AppendRecord(ctx, r)
		if err != nil {
			t.Fatalf("AppendRecord() error = %v", err)
		}
		if id != "id-1" {
			t.Errorf("id = %q, want id-1", id)
		}
		if r.ID != "" {
			t.Errorf("caller's record ID = %q, want unchanged", r.ID)
		}

		got, err := f.Service.QueryRecords(ctx, "alice", well.RecordFilter{})
		if err != nil {
			t.Fatalf("QueryRecords() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != id {
			t.Errorf("QueryRecords() = %+v, want the appended record", got)
		}
	})

	t.Run("rejects invalid records", func(t *testing.T) {
		f := testutil.NewTestService(t)
		tests := []struct {
			name   string
			record *well.Record
			field  string
		}{
			{"nil", nil, "record"},
			{"unknown type", &well.Record{UserID: "alice", Type: "dance", Timestamp: f.Clock.Now()}, "type"},
			{"bad intensity", &well.Record{UserID: "alice", Type: well.TypeWorkout, Timestamp: f.Clock.Now(), Metrics: well.Metrics{Intensity: well.Float(42)}}, "metrics.intensity"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.Service.AppendRecord(ctx, tt.record)
				var ve *well.ValidationError
				if !errors.As(err, &ve) || ve.Field != tt.field {
					t.Errorf("AppendRecord() error = %v, want validation error on %s", err, tt.field)
				}
			})
		}
	})

	t.Run("timestamps outside the supported years are rejected", func(t *testing.T) {
		f := testutil.NewTestService(t)
		for _, at := range []time.Time{
			time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
		} {
			_, err := f.Service.AppendRecord(ctx, &well.Record{UserID: "alice", Type: well.TypeSteps, Timestamp: at})
			var ve *well.ValidationError
			if !errors.As(err, &ve) || ve.Field != "timestamp" {
				t.Errorf("AppendRecord(%v) error = %v, want validation error on timestamp", at, err)
			}
		}
		if got, _ := f.Service.QueryRecords(ctx, "alice", well.RecordFilter{}); len(got) != 0 {
			t.Errorf("QueryRecords() = %d records, want 0", len(got))
		}
	})

	t.Run("timestamps round-trip unchanged", func(t *testing.T) {
		f := testutil.NewTestService(t)
		times := []time.Time{
			well.MinTimestamp,
			time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC),
			well.MaxTimestamp.Add(-time.Microsecond),
		}
		for _, at := range times {
			if _, err := f.Service.AppendRecord(ctx, &well.Record{UserID: "alice", Type: well.TypeSteps, Timestamp: at}); err != nil {
				t.Fatalf("AppendRecord(%v) error = %v", at, err)
			}
		}

		got, err := f.Service.QueryRecords(ctx, "alice", well.RecordFilter{})
		if err != nil {
			t.Fatalf("QueryRecords() error = %v", err)
		}
		if len(got) != len(times) {
			t.Fatalf("QueryRecords() = %d records, want %d", len(got), len(times))
		}
		for i, at := range times {
			if want := at.Truncate(time.Microsecond); !got[i].Timestamp.Equal(want) {
				t.Errorf("record %d timestamp = %v, want %v", i, got[i].Timestamp, want)
			}
		}
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		f := testutil.NewTestService(t)
		r := &well.Record{ID: "fixed", UserID: "alice", Type: well.TypeMeal, Timestamp: f.Clock.Now()}
		if _, err := f.Service.AppendRecord(ctx, r); err != nil {
			t.Fatalf("first AppendRecord() error = %v", err)
		}
		if _, err := f.Service.AppendRecord(ctx, r); !errors.Is(err, well.ErrDuplicateRecord) {
			t.Errorf("second AppendRecord() error = %v, want ErrDuplicateRecord", err)
		}
	})
}

func TestWellService_QueryRecords(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewTestService(t)
	seed(t, f, "alice", 0, well.TypeSteps, well.Metrics{Quantity: well.Float(1000)})
	seed(t, f, "alice", 1, well.TypeMeal, well.Metrics{Calories: well.Float(500)})
	seed(t, f, "bob", 0, well.TypeSteps, well.Metrics{Quantity: well.Float(1)})

	t.Run("filters by type", func(t *testing.T) {
		got, err := f.Service.QueryRecords(ctx, "alice", well.RecordFilter{Types: []well.RecordType{well.TypeMeal}})
		if err != nil {
			t.Fatalf("QueryRecords() error = %v", err)
		}
		if len(got) != 1 || got[0].Type != well.TypeMeal {
			t.Errorf("QueryRecords() = %+v, want one meal", got)
		}
	})

	t.Run("filters by time", func(t *testing.T) {
		from := f.Clock.Now().Add(-time.Hour)
		got, err := f.Service.QueryRecords(ctx, "alice", well.RecordFilter{From: from})
		if err != nil {
			t.Fatalf("QueryRecords() error = %v", err)
		}
		if len(got) != 1 || got[0].Type != well.TypeSteps {
			t.Errorf("QueryRecords() = %+v, want today's steps", got)
		}
	})

	t.Run("ascending order", func(t *testing.T) {
		got, err := f.Service.QueryRecords(ctx, "alice", well.RecordFilter{})
		if err != nil {
			t.Fatalf("QueryRecords() error = %v", err)
		}
		if len(got) != 2 || !got[0].Timestamp.Before(got[1].Timestamp) {
			t.Errorf("QueryRecords() not ascending: %+v", got)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		if _, err := f.Service.QueryRecords(ctx, " ", well.RecordFilter{}); !well.IsValidation(err) {
			t.Errorf("empty user error = %v, want validation error", err)
		}
		if _, err := f.Service.QueryRecords(ctx, "alice", well.RecordFilter{Types: []well.RecordType{"nap"}}); !well.IsValidation(err) {
			t.Errorf("unknown type error = %v, want validation error", err)
		}
	})
}

func TestWellService_Stats(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewTestService(t)
	seed(t, f, "alice", 0, well.TypeSteps, well.Metrics{Quantity: well.Float(8000)})
	seed(t, f, "alice", 3, well.TypeSteps, well.Metrics{Quantity: well.Float(4000)})
	seed(t, f, "alice", 20, well.TypeSteps, well.Metrics{Quantity: well.Float(2000)})
	now := f.Clock.Now()

	tests := []struct {
		name      string
		get       func() (*well.TimeAggregate, error)
		wantDays  int
		wantSteps float64
	}{
		{"daily", func() (*well.TimeAggregate, error) { return f.Service.GetDailyStats(ctx, "alice", now) }, 1, 8000},
		{"weekly", func() (*well.TimeAggregate, error) { return f.Service.GetWeeklyStats(ctx, "alice", now) }, 7, 12000},
		{"monthly", func() (*well.TimeAggregate, error) { return f.Service.GetMonthlyStats(ctx, "alice", now) }, 30, 14000},
		{"zero date means now", func() (*well.TimeAggregate, error) { return f.Service.GetWeeklyStats(ctx, "alice", time.Time{}) }, 7, 12000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, err := tt.get()
			if err != nil {
				t.Fatalf("stats error = %v", err)
			}
			if len(agg.Days) != tt.wantDays {
				t.Errorf("len(Days) = %d, want %d", len(agg.Days), tt.wantDays)
			}
			if agg.Totals.Steps != tt.wantSteps {
				t.Errorf("Steps = %v, want %v", agg.Totals.Steps, tt.wantSteps)
			}
		})
	}

	t.Run("summary", func(t *testing.T) {
		s, err := f.Service.GetSummaryStats(ctx, "alice")
		if err != nil {
			t.Fatalf("GetSummaryStats() error = %v", err)
		}
		if s.Day.Totals.Steps != 8000 || s.Week.Totals.Steps != 12000 {
			t.Errorf("summary = day %v week %v, want 8000/12000", s.Day.Totals.Steps, s.Week.Totals.Steps)
		}
	})

	t.Run("unknown user gets zeros", func(t *testing.T) {
		agg, err := f.Service.GetWeeklyStats(ctx, "nobody", now)
		if err != nil {
			t.Fatalf("GetWeeklyStats() error = %v", err)
		}
		if agg.Totals.Records != 0 || len(agg.Days) != 7 {
			t.Errorf("aggregate = %+v, want empty week", agg.Totals)
		}
	})
}

func TestWellService_StoreFailureDegrades(t *testing.T) {
	ctx := context.Background()
	f := testutil.NewTestService(t)
	clock := f.Clock
	completer := testutil.NewStubCompleter(testutil.InsightJSON)
	svc := well.NewWellService(brokenDatabase{f.DB}, f.DB, completer, well.NewNopLogger(), clock, testutil.NewStubIDGenerator())

	agg, err := svc.GetWeeklyStats(ctx, "alice", clock.Now())
	if !errors.Is(err, errStoreDown) {
		t.Errorf("GetWeeklyStats() error = %v, want wrapping store error", err)
	}
	if agg == nil || len(agg.Days) != 7 || agg.Totals.Records != 0 {
		t.Errorf("GetWeeklyStats() aggregate = %+v, want empty week", agg)
	}

	if b := svc.CalculateXPBonus(ctx, "alice"); b.Multiplier != 1 {
		t.Errorf("CalculateXPBonus() = %v, want 1", b.Multiplier)
	}

	ins := svc.GetInsights(ctx, "alice", well.PeriodWeekly, false)
	if ins == nil || !ins.Fallback {
		t.Errorf("GetInsights() = %+v, want fallback", ins)
	}
	if completer.Calls() != 0 {
		t.Errorf("completer called %d times, want 0", completer.Calls())
	}
}
