package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"well-go/internal/well"
)

// parseWhen accepts a calendar date (taken at noon in loc, so it falls inside
// that day whatever the offset), an RFC 3339 timestamp, or "" for now.
func parseWhen(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now, nil
	}
	if d, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return d.Add(12 * time.Hour), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want YYYY-MM-DD or RFC 3339", raw)
	}
	return t, nil
}

// optFloat returns the flag's value, or nil when it was not given.
func optFloat(flags *pflag.FlagSet, name string) *float64 {
	if !flags.Changed(name) {
		return nil
	}
	v, _ := flags.GetFloat64(name)
	return &v
}

// recordFromFlags builds a record from the `record add` flags. Validation is
// left to the service.
func recordFromFlags(flags *pflag.FlagSet, userID string, at time.Time) *well.Record {
	typ, _ := flags.GetString("type")
	category, _ := flags.GetString("category")
	tags, _ := flags.GetStringSlice("tags")

	r := &well.Record{
		UserID:    userID,
		Timestamp: at,
		Type:      well.RecordType(strings.ToLower(typ)),
		Category:  category,
		Metrics: well.Metrics{
			Duration:  optFloat(flags, "duration"),
			Calories:  optFloat(flags, "calories"),
			XPEarned:  optFloat(flags, "xp"),
			Intensity: optFloat(flags, "intensity"),
			Quantity:  optFloat(flags, "quantity"),
			Quality:   optFloat(flags, "quality"),
		},
		Metadata: well.Metadata{
			Confidence: optFloat(flags, "confidence"),
			Tags:       tags,
		},
	}

	protein, carbs, fat := optFloat(flags, "protein"), optFloat(flags, "carbs"), optFloat(flags, "fat")
	if protein != nil || carbs != nil || fat != nil {
		r.Metrics.Nutrition = &well.Nutrition{Protein: protein, Carbs: carbs, Fat: fat}
	}
	return r
}

func addRecordFlags(flags *pflag.FlagSet) {
	flags.StringP("type", "t", "", "Record type: "+recordTypeList())
	flags.String("at", "", "When it happened (YYYY-MM-DD or RFC 3339, default now)")
	flags.String("category", "", "Free-form category")
	flags.Float64("duration", 0, "Duration in minutes (sleep: minutes asleep)")
	flags.Float64("calories", 0, "Calories; consumed for meals, burned otherwise")
	flags.Float64("xp", 0, "XP earned by this record")
	flags.Float64("intensity", 0, "Intensity 1-10")
	flags.Float64("quantity", 0, "Steps, or millilitres for hydration")
	flags.Float64("quality", 0, "Quality 0-1")
	flags.Float64("confidence", 0, "Confidence 0-1")
	flags.Float64("protein", 0, "Protein grams")
	flags.Float64("carbs", 0, "Carbohydrate grams")
	flags.Float64("fat", 0, "Fat grams")
	flags.StringSlice("tags", nil, "Comma-separated tags")
}

func recordTypeList() string {
	names := make([]string, len(well.RecordTypes))
	for i, t := range well.RecordTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
