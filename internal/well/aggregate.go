package well

import (
	"math"
	"time"
)

// TimeAggregate is the derived view of a user's records over one window.
// Every field is recomputed from Records; nothing here is stored.
type TimeAggregate struct {
	UserID    string    `json:"user_id"`
	Period    Period    `json:"period"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Totals    Totals    `json:"totals"`
	Averages  Averages  `json:"averages"`
	Trends    Trends    `json:"trends"`
	Days      []DayStat `json:"days"`
	Records   []*Record `json:"records"`
}

type Totals struct {
	Records          int     `json:"records"`
	XP               float64 `json:"xp"`
	CaloriesBurned   float64 `json:"calories_burned"`
	CaloriesConsumed float64 `json:"calories_consumed"`
	ActivityMinutes  float64 `json:"activity_minutes"`
	SleepHours       float64 `json:"sleep_hours"`
	Steps            float64 `json:"steps"`
	HydrationML      float64 `json:"hydration_ml"`
}

type Averages struct {
	SleepQuality      float64 `json:"sleep_quality"`
	ActivityIntensity float64 `json:"activity_intensity"`
	NutritionBalance  float64 `json:"nutrition_balance"` // 0-100
}

type Trends struct {
	XPTrend             float64 `json:"xp_trend"`              // xp per day
	CalorieBalanceTrend float64 `json:"calorie_balance_trend"` // kcal per day, consumed minus burned
	ConsistencyScore    float64 `json:"consistency_score"`     // 0-100
}

// DayStat is one calendar day of a window. Days without records are present
// with zero values so a series always has Period.Days() entries.
type DayStat struct {
	Date            string  `json:"date"`
	Records         int     `json:"records"`
	XP              float64 `json:"xp"`
	CaloriesIn      float64 `json:"calories_in"`
	CaloriesOut     float64 `json:"calories_out"`
	ActivityMinutes float64 `json:"activity_minutes"`
	SleepHours      float64 `json:"sleep_hours"`
	Steps           float64 `json:"steps"`
	HydrationML     float64 `json:"hydration_ml"`
}

// Target share of meal calories per macronutrient.
const (
	proteinTarget = 0.3
	carbsTarget   = 0.4
	fatTarget     = 0.3
)

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(p *float64) {
	if p != nil {
		m.sum += *p
		m.n++
	}
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// Aggregate folds records into the window of period ending on ref's calendar
// day in loc. Records outside the window are ignored. The result depends only
// on its arguments.
func Aggregate(userID string, period Period, ref time.Time, loc *time.Location, records []*Record) *TimeAggregate {
	if loc == nil {
		loc = time.UTC
	}
	start, end := period.Window(ref, loc)
	n := period.Days()

	agg := &TimeAggregate{
		UserID:    userID,
		Period:    period,
		StartDate: start,
		EndDate:   end,
		Days:      make([]DayStat, n),
		Records:   make([]*Record, 0, len(records)),
	}
	for i := range agg.Days {
		agg.Days[i].Date = start.AddDate(0, 0, i).Format(time.DateOnly)
	}

	var quality, intensity mean
	var protein, carbs, fat float64
	for _, r := range records {
		if r.Timestamp.Before(start) || !r.Timestamp.Before(end) {
			continue
		}
		i := dayIndex(start, r.Timestamp, loc)
		if i < 0 || i >= n {
			continue
		}
		agg.Records = append(agg.Records, r)

		m := r.Metrics
		d := &agg.Days[i]
		d.Records++
		d.XP += val(m.XPEarned)
		switch {
		case r.Type == TypeMeal:
			d.CaloriesIn += val(m.Calories)
		case r.Type.burnsCalories():
			d.CaloriesOut += val(m.Calories)
		}
		if r.Type.isActivity() {
			d.ActivityMinutes += val(m.Duration)
			intensity.add(m.Intensity)
		}
		if r.countsAsSteps() {
			d.Steps += val(m.Quantity)
		}
		switch r.Type {
		case TypeSleep:
			d.SleepHours += val(m.Duration) / 60
			quality.add(m.Quality)
		case TypeHydration:
			d.HydrationML += val(m.Quantity)
		case TypeMeal:
			if m.Nutrition != nil {
				protein += val(m.Nutrition.Protein)
				carbs += val(m.Nutrition.Carbs)
				fat += val(m.Nutrition.Fat)
			}
		}
	}

	active := 0
	xp := make([]float64, n)
	balance := make([]float64, n)
	for i, d := range agg.Days {
		t := &agg.Totals
		t.Records += d.Records
		t.XP += d.XP
		t.CaloriesConsumed += d.CaloriesIn
		t.CaloriesBurned += d.CaloriesOut
		t.ActivityMinutes += d.ActivityMinutes
		t.SleepHours += d.SleepHours
		t.Steps += d.Steps
		t.HydrationML += d.HydrationML
		if d.Records > 0 {
			active++
		}
		xp[i] = d.XP
		balance[i] = d.CaloriesIn - d.CaloriesOut
	}

	agg.Averages = Averages{
		SleepQuality:      quality.value(),
		ActivityIntensity: intensity.value(),
		NutritionBalance:  nutritionBalance(protein, carbs, fat),
	}
	agg.Trends = Trends{
		XPTrend:             slope(xp),
		CalorieBalanceTrend: slope(balance),
		ConsistencyScore:    100 * float64(active) / float64(n),
	}
	return agg
}

// ActiveDays returns the number of days in the window with at least one record.
func (a *TimeAggregate) ActiveDays() int {
	count := 0
	for _, d := range a.Days {
		if d.Records > 0 {
			count++
		}
	}
	return count
}

// nutritionBalance scores how close the macro calorie split is to the target
// split: 100 is an exact match, 0 means no macros were logged.
func nutritionBalance(protein, carbs, fat float64) float64 {
	p, c, f := protein*4, carbs*4, fat*9
	total := p + c + f
	if total <= 0 {
		return 0
	}
	diff := math.Abs(p/total-proteinTarget) + math.Abs(c/total-carbsTarget) + math.Abs(f/total-fatTarget)
	return math.Max(0, 100*(1-diff/2))
}

// slope is the least-squares slope of ys against their index.
func slope(ys []float64) float64 {
	n := float64(len(ys))
	if len(ys) < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}
