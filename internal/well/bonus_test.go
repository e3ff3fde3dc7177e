package well

import "testing"

// weekWith returns a weekly aggregate whose last len(days) days are days,
// each marked active.
func weekWith(days ...DayStat) *TimeAggregate {
	week := &TimeAggregate{Period: PeriodWeekly, Days: make([]DayStat, 7)}
	for i, d := range days {
		d.Records = 1
		week.Days[7-len(days)+i] = d
	}
	return week
}

func repeat(d DayStat, n int) []DayStat {
	out := make([]DayStat, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func TestEvaluateBonus(t *testing.T) {
	walk := DayStat{Steps: 8000}
	sleep := DayStat{SleepHours: 8}
	deficit := DayStat{CaloriesOut: 600, CaloriesIn: 400}

	tests := []struct {
		name        string
		week        *TimeAggregate
		want        float64
		wantSteps   bool
		wantCalorie bool
		wantSleep   bool
	}{
		{name: "nil week", week: nil, want: 1},
		{name: "no activity", week: weekWith(), want: 1},
		{name: "steps streak", week: weekWith(repeat(walk, 3)...), want: 1.1, wantSteps: true},
		{name: "sleep streak", week: weekWith(repeat(sleep, 3)...), want: 1.1, wantSleep: true},
		{
			name: "steps and sleep",
			week: weekWith(repeat(DayStat{Steps: 7000, SleepHours: 7.5}, 3)...),
			want: 1.2, wantSteps: true, wantSleep: true,
		},
		{name: "calorie deficit without steps", week: weekWith(repeat(deficit, 3)...), want: 1.1, wantCalorie: true},
		{
			name: "steps take precedence over deficit",
			week: weekWith(repeat(DayStat{Steps: 9000, CaloriesOut: 900, CaloriesIn: 100}, 3)...),
			want: 1.1, wantSteps: true,
		},
		{
			name: "deficit and sleep",
			week: weekWith(repeat(DayStat{CaloriesOut: 700, CaloriesIn: 100, SleepHours: 9}, 3)...),
			want: 1.2, wantCalorie: true, wantSleep: true,
		},
		{name: "thresholds are strict", week: weekWith(repeat(DayStat{Steps: 6000, SleepHours: 7, CaloriesOut: 500, CaloriesIn: 400}, 3)...), want: 1},
		{name: "one day breaks the streak", week: weekWith(walk, DayStat{Steps: 100}, walk), want: 1},
		{name: "two active days are not enough", week: weekWith(repeat(walk, 2)...), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := EvaluateBonus(tt.week)
			if b.Multiplier != tt.want {
				t.Errorf("Multiplier = %v, want %v", b.Multiplier, tt.want)
			}
			if b.StepsStreak != tt.wantSteps || b.CalorieStreak != tt.wantCalorie || b.SleepStreak != tt.wantSleep {
				t.Errorf("streaks = steps:%t calorie:%t sleep:%t, want %t/%t/%t",
					b.StepsStreak, b.CalorieStreak, b.SleepStreak, tt.wantSteps, tt.wantCalorie, tt.wantSleep)
			}
		})
	}
}

func TestBonusBreakdown_Apply(t *testing.T) {
	tests := []struct {
		name string
		week *TimeAggregate
		base int64
		want int64
	}{
		{"no bonus", nil, 100, 100},
		{"one streak", weekWith(repeat(DayStat{Steps: 7000}, 3)...), 100, 110},
		{"two streaks", weekWith(repeat(DayStat{Steps: 7000, SleepHours: 8}, 3)...), 100, 120},
		{"rounds down", weekWith(repeat(DayStat{Steps: 7000}, 3)...), 15, 16},
		{"large award", weekWith(repeat(DayStat{Steps: 7000, SleepHours: 8}, 3)...), MaxXPAward, 1_200_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateBonus(tt.week).Apply(tt.base); got != tt.want {
				t.Errorf("Apply(%d) = %d, want %d", tt.base, got, tt.want)
			}
		})
	}
}
