package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"well-go/internal/app"
	"well-go/internal/well"
)

// record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Manage wellness records",
}

var recordAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a wellness record",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, "AppendRecord", func(ctx context.Context, a *app.WellApp) error {
			svc := a.Service()
			raw, _ := cmd.Flags().GetString("at")
			at, err := parseWhen(raw, svc.Location(), time.Now())
			if err != nil {
				return err
			}

			id, err := svc.AppendRecord(ctx, recordFromFlags(cmd.Flags(), user, at))
			if err != nil {
				return err
			}
			fmt.Printf("Appended %s\n", id)
			return nil
		})
	},
}

var recordListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wellness records",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, "QueryRecords", func(ctx context.Context, a *app.WellApp) error {
			svc := a.Service()
			var filter well.RecordFilter
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			if from != "" {
				if filter.From, err = parseWhen(from, svc.Location(), time.Time{}); err != nil {
					return err
				}
			}
			if to != "" {
				if filter.To, err = parseWhen(to, svc.Location(), time.Time{}); err != nil {
					return err
				}
			}
			types, _ := cmd.Flags().GetStringSlice("type")
			for _, t := range types {
				filter.Types = append(filter.Types, well.RecordType(t))
			}

			records, err := svc.QueryRecords(ctx, user, filter)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(records)
			}
			if len(records) == 0 {
				fmt.Println("No records.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTYPE\tMEASUREMENTS\tID")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					r.Timestamp.In(svc.Location()).Format("2006-01-02 15:04"), r.Type, describeMetrics(r.Metrics), r.ID)
			}
			return w.Flush()
		})
	},
}

func describeMetrics(m well.Metrics) string {
	var out string
	add := func(p *float64, format string) {
		if p == nil {
			return
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf(format, *p)
	}
	add(m.Quantity, "qty=%g")
	add(m.Duration, "min=%g")
	add(m.Calories, "kcal=%g")
	add(m.Intensity, "intensity=%g")
	add(m.Quality, "quality=%g")
	add(m.XPEarned, "xp=%g")
	if out == "" {
		return "-"
	}
	return out
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated statistics",
}

func statsPeriodCmd(use string, period well.Period) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Show %s statistics", period),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := userID(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, "ComputeAggregate", func(ctx context.Context, a *app.WellApp) error {
				svc := a.Service()
				raw, _ := cmd.Flags().GetString("date")
				ref, err := parseWhen(raw, svc.Location(), time.Now())
				if err != nil {
					return err
				}
				agg, err := svc.ComputeAggregate(ctx, user, period, ref)
				if err != nil {
					return err
				}
				if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
					return printJSON(agg)
				}
				printAggregate(agg)
				return nil
			})
		},
	}
	c.Flags().String("date", "", "Reference day (YYYY-MM-DD or RFC 3339, default today)")
	c.Flags().Bool("json", false, "Print JSON")
	return c
}

var statsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show today and the last seven days",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, "GetSummaryStats", func(ctx context.Context, a *app.WellApp) error {
			summary, err := a.Service().GetSummaryStats(ctx, user)
			if err != nil {
				a.Logger().Warn("summary degraded", "user", user, "error", err)
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(summary)
			}
			printAggregate(summary.Day)
			fmt.Println()
			printAggregate(summary.Week)
			return nil
		})
	},
}

func printAggregate(agg *well.TimeAggregate) {
	if agg == nil {
		return
	}
	t := agg.Totals
	fmt.Printf("%s %s to %s (%d records)\n", agg.Period,
		agg.StartDate.Format("2006-01-02"), agg.EndDate.Add(-time.Nanosecond).Format("2006-01-02"), t.Records)
	fmt.Printf("  steps %.0f, sleep %.1f h, active %.0f min, water %.0f ml\n", t.Steps, t.SleepHours, t.ActivityMinutes, t.HydrationML)
	fmt.Printf("  kcal in %.0f, out %.0f, xp %.0f\n", t.CaloriesConsumed, t.CaloriesBurned, t.XP)
	fmt.Printf("  sleep quality %.2f, intensity %.1f, nutrition balance %.0f\n",
		agg.Averages.SleepQuality, agg.Averages.ActivityIntensity, agg.Averages.NutritionBalance)
	fmt.Printf("  consistency %.0f%%, xp trend %+.1f/day, calorie balance trend %+.0f/day\n",
		agg.Trends.ConsistencyScore, agg.Trends.XPTrend, agg.Trends.CalorieBalanceTrend)
}

// xp command
var xpCmd = &cobra.Command{
	Use:   "xp",
	Short: "Experience points and levels",
}

var xpShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show XP, level and progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, "GetProgress", func(ctx context.Context, a *app.WellApp) error {
			p, err := a.Service().GetProgress(ctx, user)
			if err != nil {
				return err
			}
			fmt.Printf("Level %d, %d XP\n", p.Level, p.TotalXP)
			fmt.Printf("%d / %d XP to level %d (%.0f%%)\n",
				p.TotalXP-p.LevelFloorXP, p.NextLevelXP-p.LevelFloorXP, p.Level+1, p.Progress*100)
			return nil
		})
	},
}

var xpAddCmd = &cobra.Command{
	Use:   "add AMOUNT",
	Short: "Award XP, applying the streak bonus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		var base int64
		if _, err := fmt.Sscan(args[0], &base); err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}
		label, _ := cmd.Flags().GetString("label")

		return withApp(cmd, "AddXP", func(ctx context.Context, a *app.WellApp) error {
			ev, err := a.Service().AwardXP(ctx, user, base, label)
			if err != nil {
				return err
			}
			fmt.Printf("Awarded %d XP (base %d x %.1f), total %d, level %d\n",
				ev.Awarded, ev.Base, ev.Multiplier, ev.TotalXP, well.LevelForXP(ev.TotalXP))
			return nil
		})
	},
}

var xpBonusCmd = &cobra.Command{
	Use:   "bonus",
	Short: "Preview the current XP multiplier",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, "CalculateXPBonus", func(ctx context.Context, a *app.WellApp) error {
			b := a.Service().CalculateXPBonus(ctx, user)
			fmt.Printf("Multiplier %.1f (%d active days in the last week)\n", b.Multiplier, b.ActiveDays)
			fmt.Printf("  steps streak:   %t\n", b.StepsStreak)
			fmt.Printf("  calorie streak: %t\n", b.CalorieStreak)
			fmt.Printf("  sleep streak:   %t\n", b.SleepStreak)
			return nil
		})
	},
}

var xpHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent XP awards",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(cmd, "XPHistory", func(ctx context.Context, a *app.WellApp) error {
			events, err := a.Service().XPHistory(ctx, user, limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No XP awarded yet.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tAWARDED\tBASE\tMULT\tTOTAL\tLABEL")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\t%d\t%s\n",
					ev.CreatedAt.In(a.Service().Location()).Format("2006-01-02 15:04"),
					ev.Awarded, ev.Base, ev.Multiplier, ev.TotalXP, ev.Label)
			}
			return w.Flush()
		})
	},
}

// insights command
var insightsCmd = &cobra.Command{
	Use:   "insights [daily|weekly|monthly]",
	Short: "Show AI insights for a period",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		period := well.PeriodWeekly
		if len(args) > 0 {
			if period, err = well.ParsePeriod(args[0]); err != nil {
				return err
			}
		}
		regenerate, _ := cmd.Flags().GetBool("regenerate")

		return withApp(cmd, "GetInsights", func(ctx context.Context, a *app.WellApp) error {
			ins := a.Service().GetInsights(ctx, user, period, regenerate)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(ins)
			}
			fmt.Println("Insights:")
			for _, s := range ins.Insights {
				fmt.Printf("  - %s\n", s)
			}
			fmt.Println("Recommendations:")
			for _, s := range ins.Recommendations {
				fmt.Printf("  - %s\n", s)
			}
			return nil
		})
	},
}

// digest command
var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Daily digest delivery",
}

var digestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Send the digest to every configured user now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "RunDigest", func(ctx context.Context, a *app.WellApp) error {
			runner, err := a.NewDigestRunner()
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		})
	},
}

var digestScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Send the digest on the configured schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "ScheduleDigest", func(ctx context.Context, a *app.WellApp) error {
			s, err := a.NewDigestScheduler()
			if err != nil {
				return err
			}
			s.Start()
			fmt.Printf("Next digest at %s\n", s.Next(time.Now()).Format(time.RFC3339))
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return s.Stop(stopCtx)
		})
	},
}

// export / import commands
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an encrypted snapshot of the user's ledger to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, "ExportUser", func(ctx context.Context, a *app.WellApp) error {
			name, err := a.Service().ExportUser(ctx, user)
			if err != nil {
				return err
			}
			fmt.Printf("Exported snapshot %s\n", name)
			return nil
		})
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List the user's snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, "ListSnapshots", func(ctx context.Context, a *app.WellApp) error {
			names, err := a.Service().ListSnapshots(ctx, user)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("No snapshots.")
				return nil
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import SNAPSHOT",
	Short: "Restore records and XP from a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		return withApp(cmd, "ImportUser", func(ctx context.Context, a *app.WellApp) error {
			res, err := a.Service().ImportUser(ctx, user, args[0], pass)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d record(s), skipped %d, restored %d XP\n", res.Imported, res.Skipped, res.XPRestored)
			return nil
		})
	},
}

func init() {
	recordCmd.AddCommand(recordAddCmd)
	recordCmd.AddCommand(recordListCmd)
	addRecordFlags(recordAddCmd.Flags())
	recordAddCmd.MarkFlagRequired("type")
	recordListCmd.Flags().String("from", "", "Earliest time, inclusive")
	recordListCmd.Flags().String("to", "", "Latest time, exclusive")
	recordListCmd.Flags().StringSlice("type", nil, "Only these record types")
	recordListCmd.Flags().Bool("json", false, "Print JSON")

	statsCmd.AddCommand(statsPeriodCmd("day", well.PeriodDaily))
	statsCmd.AddCommand(statsPeriodCmd("week", well.PeriodWeekly))
	statsCmd.AddCommand(statsPeriodCmd("month", well.PeriodMonthly))
	statsCmd.AddCommand(statsSummaryCmd)
	statsSummaryCmd.Flags().Bool("json", false, "Print JSON")

	xpCmd.AddCommand(xpShowCmd)
	xpCmd.AddCommand(xpAddCmd)
	xpAddCmd.Flags().StringP("label", "l", "", "What the XP was awarded for")
	xpCmd.AddCommand(xpBonusCmd)
	xpCmd.AddCommand(xpHistoryCmd)
	xpHistoryCmd.Flags().IntP("limit", "n", 20, "Maximum number of awards to show")

	insightsCmd.Flags().Bool("regenerate", false, "Bypass the cache")
	insightsCmd.Flags().Bool("json", false, "Print JSON")

	digestCmd.AddCommand(digestRunCmd)
	digestCmd.AddCommand(digestScheduleCmd)

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(xpCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(importCmd)
}
