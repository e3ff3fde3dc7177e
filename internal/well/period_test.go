package well

import (
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"daily", PeriodDaily, false},
		{"day", PeriodDaily, false},
		{" Weekly ", PeriodWeekly, false},
		{"month", PeriodMonthly, false},
		{"yearly", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePeriod(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePeriod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPeriod_WindowAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks go forward on 2024-03-31 in Berlin.
	ref := time.Date(2024, 3, 31, 18, 0, 0, 0, berlin)

	start, end := PeriodWeekly.Window(ref, berlin)
	if want := time.Date(2024, 3, 25, 0, 0, 0, 0, berlin); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2024, 4, 1, 0, 0, 0, 0, berlin); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}
	if i := dayIndex(start, ref, berlin); i != 6 {
		t.Errorf("dayIndex(ref) = %d, want 6", i)
	}
	if i := dayIndex(start, time.Date(2024, 3, 31, 0, 30, 0, 0, berlin), berlin); i != 6 {
		t.Errorf("dayIndex(just after midnight) = %d, want 6", i)
	}
}
