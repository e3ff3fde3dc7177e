// Package digest composes the daily wellness digest and delivers it on a schedule.
package digest

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"well-go/internal/well"
)

// Notifier delivers a rendered digest for one user.
type Notifier interface {
	Notify(ctx context.Context, userID, text string) error
}

// Digest is one user's daily snapshot.
type Digest struct {
	UserID   string
	Date     time.Time
	Summary  *well.Summary
	Progress well.Progress
	Insights *well.Insights
}

// Compose builds the digest for userID. Read failures degrade to zeros and
// are logged; the insight request goes through the cache and warms it.
func Compose(ctx context.Context, svc *well.WellService, logger well.Logger, userID string, now time.Time) *Digest {
	summary, err := svc.GetSummaryStats(ctx, userID)
	if err != nil {
		logger.Warn("digest summary degraded", "user", userID, "error", err)
	}
	progress, err := svc.GetProgress(ctx, userID)
	if err != nil {
		logger.Warn("digest progress degraded", "user", userID, "error", err)
	}
	return &Digest{
		UserID:   userID,
		Date:     now.In(svc.Location()),
		Summary:  summary,
		Progress: progress,
		Insights: svc.GetInsights(ctx, userID, well.PeriodDaily, false),
	}
}

// Text renders the digest as Telegram-flavoured HTML.
func (d *Digest) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Daily digest for %s</b> (%s)\n\n", html.EscapeString(d.UserID), d.Date.Format("2006-01-02"))

	if d.Summary != nil && d.Summary.Day != nil {
		t := d.Summary.Day.Totals
		fmt.Fprintf(&b, "Today: %.0f steps, %.1f h sleep, %.0f kcal in, %.0f kcal out, %.0f min active\n",
			t.Steps, t.SleepHours, t.CaloriesConsumed, t.CaloriesBurned, t.ActivityMinutes)
	}
	if d.Summary != nil && d.Summary.Week != nil {
		fmt.Fprintf(&b, "Week: consistency %.0f%%, %.0f steps\n",
			d.Summary.Week.Trends.ConsistencyScore, d.Summary.Week.Totals.Steps)
	}
	fmt.Fprintf(&b, "Level %d, %d XP (%.0f%% to level %d)\n",
		d.Progress.Level, d.Progress.TotalXP, d.Progress.Progress*100, d.Progress.Level+1)

	if d.Insights != nil {
		b.WriteString("\n<b>Insights</b>\n")
		for _, s := range d.Insights.Insights {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(s))
		}
		b.WriteString("\n<b>Recommendations</b>\n")
		for _, s := range d.Insights.Recommendations {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(s))
		}
	}
	return b.String()
}

// Runner sends the digest to every configured user.
type Runner struct {
	svc      *well.WellService
	notifier Notifier
	users    []string
	logger   well.Logger
	clock    well.Clock
}

// NewRunner creates a Runner.
func NewRunner(svc *well.WellService, notifier Notifier, users []string, logger well.Logger, clock well.Clock) *Runner {
	return &Runner{svc: svc, notifier: notifier, users: users, logger: logger, clock: clock}
}

// Run composes and sends one digest per user. A failing user does not stop
// the others; all failures are returned joined.
func (r *Runner) Run(ctx context.Context) error {
	var errs []error
	for _, userID := range r.users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		d := Compose(ctx, r.svc, r.logger, userID, r.clock.Now())
		if err := r.notifier.Notify(ctx, userID, d.Text()); err != nil {
			r.logger.Error("sending digest", "user", userID, "error", err)
			errs = append(errs, fmt.Errorf("digest for %s: %w", userID, err))
			continue
		}
		r.logger.Info("digest sent", "user", userID)
	}
	return errors.Join(errs...)
}
