package well

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoCompleter is wrapped in an UpstreamServiceError when no completion
// service is configured.
var ErrNoCompleter = errors.New("no completion service configured")

// CompletionResult is the outcome of one completion call: exactly one of
// ParsedCompletion, RawCompletion or FailedCompletion.
type CompletionResult interface {
	completionResult()
}

// ParsedCompletion is a response that contained a JSON object.
type ParsedCompletion struct {
	Fields map[string]any
}

// RawCompletion is a response with no usable JSON object.
type RawCompletion struct {
	Text string
}

// FailedCompletion is a call that returned an error.
type FailedCompletion struct {
	Err error
}

func (ParsedCompletion) completionResult() {}
func (RawCompletion) completionResult()    {}
func (FailedCompletion) completionResult() {}

// ParseCompletion classifies the text and error returned by a Completer.
// Responses may wrap their JSON in markdown fences or surrounding prose; the
// outermost {...} span is what gets parsed.
func ParseCompletion(text string, err error) CompletionResult {
	if err != nil {
		return FailedCompletion{Err: err}
	}
	body := stripFences(text)
	open := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if open < 0 || end < open {
		return RawCompletion{Text: text}
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(body[open:end+1]), &fields); err != nil {
		return RawCompletion{Text: text}
	}
	return ParsedCompletion{Fields: fields}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

// InsightsFromCompletion converts a completion result into a payload. Only a
// parsed object with at least one insight or recommendation succeeds; every
// other result is an UpstreamServiceError. Lists are cut or padded to three
// entries and unrecognised fields are kept in Details.
func InsightsFromCompletion(res CompletionResult, at time.Time) (*Insights, error) {
	switch r := res.(type) {
	case ParsedCompletion:
		return insightsFromFields(r.Fields, at)
	case RawCompletion:
		return nil, &UpstreamServiceError{Err: fmt.Errorf("response has no JSON object: %q", truncate(r.Text, 80))}
	case FailedCompletion:
		return nil, &UpstreamServiceError{Err: r.Err}
	default:
		return nil, &UpstreamServiceError{Err: fmt.Errorf("unexpected completion result %T", res)}
	}
}

func insightsFromFields(fields map[string]any, at time.Time) (*Insights, error) {
	insights := stringList(fields["insights"])
	recs := stringList(fields["recommendations"])
	if len(insights) == 0 && len(recs) == 0 {
		return nil, &UpstreamServiceError{Err: errors.New("response has no insights or recommendations")}
	}

	out := &Insights{
		Insights:        fillTo(insights, fallbackInsights),
		Recommendations: fillTo(recs, fallbackRecommendations),
		GeneratedAt:     at.UTC(),
	}
	for k, v := range fields {
		if k == "insights" || k == "recommendations" {
			continue
		}
		if out.Details == nil {
			out.Details = make(map[string]any)
		}
		out.Details[k] = v
	}
	return out, nil
}

// stringList extracts the non-empty strings from a decoded JSON array.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func fillTo(got, defaults []string) []string {
	out := make([]string, 0, insightCount)
	for _, s := range got {
		if len(out) == insightCount {
			break
		}
		out = append(out, s)
	}
	for _, s := range defaults {
		if len(out) == insightCount {
			break
		}
		out = append(out, s)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// insightPrompt describes an aggregate to the completion service and asks
// for a JSON reply.
func insightPrompt(agg *TimeAggregate, progress Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a wellness coach. Review this user's %s summary for %s to %s.\n",
		agg.Period, agg.StartDate.Format(time.DateOnly), agg.EndDate.AddDate(0, 0, -1).Format(time.DateOnly))
	t := agg.Totals
	fmt.Fprintf(&b, "Records: %d over %d of %d days (consistency %.0f%%).\n",
		t.Records, agg.ActiveDays(), len(agg.Days), agg.Trends.ConsistencyScore)
	fmt.Fprintf(&b, "Steps: %.0f. Activity: %.0f min, average intensity %.1f.\n",
		t.Steps, t.ActivityMinutes, agg.Averages.ActivityIntensity)
	fmt.Fprintf(&b, "Calories consumed: %.0f kcal, burned: %.0f kcal, balance trend %.1f kcal/day.\n",
		t.CaloriesConsumed, t.CaloriesBurned, agg.Trends.CalorieBalanceTrend)
	fmt.Fprintf(&b, "Sleep: %.1f h, average quality %.2f. Hydration: %.0f ml. Nutrition balance %.0f/100.\n",
		t.SleepHours, agg.Averages.SleepQuality, t.HydrationML, agg.Averages.NutritionBalance)
	fmt.Fprintf(&b, "Level %d with %d XP (%.0f XP earned in this period, trend %.1f XP/day).\n",
		progress.Level, progress.TotalXP, t.XP, agg.Trends.XPTrend)
	b.WriteString(`Reply with only a JSON object of the form {"insights": ["...", "...", "..."], "recommendations": ["...", "...", "..."]} `)
	b.WriteString("containing exactly three short insights and three actionable recommendations.")
	return b.String()
}
