package well

const (
	streakDays           = 3
	stepsStreakThreshold = 6000
	sleepStreakHours     = 7
	calorieDeficitMargin = 100
)

// BonusBreakdown is the XP multiplier for a user and the streaks behind it.
type BonusBreakdown struct {
	Multiplier    float64 `json:"multiplier"`
	StepsStreak   bool    `json:"steps_streak"`
	CalorieStreak bool    `json:"calorie_streak"`
	SleepStreak   bool    `json:"sleep_streak"`
	ActiveDays    int     `json:"active_days"`

	tenths int64
}

// NoBonus is the multiplier when no streak qualifies.
var NoBonus = BonusBreakdown{Multiplier: 1}

// Apply returns base scaled by the multiplier, rounded down.
// The arithmetic is done in tenths so 100 * 1.1 is exactly 110.
func (b BonusBreakdown) Apply(base int64) int64 {
	return base * (10 + b.tenths) / 10
}

// EvaluateBonus reads the last three days of a weekly aggregate and returns
// the streak multiplier. Those days end with the reference day itself, so a
// streak only counts once today qualifies: for the live ledger the current,
// unfinished day is one of the three. The steps and calorie-deficit streaks
// are alternatives: the deficit is only checked when steps did not qualify.
// The sleep streak is independent of both. A window with fewer than three
// active days earns nothing.
func EvaluateBonus(week *TimeAggregate) BonusBreakdown {
	b := NoBonus
	if week == nil || len(week.Days) < streakDays {
		return b
	}
	b.ActiveDays = week.ActiveDays()
	if b.ActiveDays < streakDays {
		return b
	}

	last := week.Days[len(week.Days)-streakDays:]
	if every(last, func(d DayStat) bool { return d.Steps > stepsStreakThreshold }) {
		b.StepsStreak = true
		b.tenths++
	} else if every(last, func(d DayStat) bool { return d.CaloriesOut > d.CaloriesIn+calorieDeficitMargin }) {
		b.CalorieStreak = true
		b.tenths++
	}
	if every(last, func(d DayStat) bool { return d.SleepHours > sleepStreakHours }) {
		b.SleepStreak = true
		b.tenths++
	}
	b.Multiplier = float64(10+b.tenths) / 10
	return b
}

func every(days []DayStat, ok func(DayStat) bool) bool {
	for _, d := range days {
		if !ok(d) {
			return false
		}
	}
	return true
}
