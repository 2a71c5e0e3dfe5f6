package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/david/grant-assistant/internal/deadlines"
	"github.com/david/grant-assistant/internal/models"
)

var deadlinesCmd = &cobra.Command{
	Use:   "deadlines",
	Short: "Track grant deadlines and reminder offsets",
}

var deadlinesAddCmd = &cobra.Command{
	Use:   "add <grant-id> <deadline>",
	Short: "Add or update the deadline for a grant",
	Long: `Add records a deadline. The timestamp may be RFC 3339, a zone-less
date-time (read as UTC) or a bare date, meaning the end of that day.
Re-adding the same deadline keeps reminders already sent.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := deadlines.ParseTimestamp(args[1])
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetString("offsets")
		offsets, err := parseInts(raw)
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.Deadlines.Add(cmd.Context(), args[0], ts, offsets)
		if err != nil {
			return err
		}
		return printDeadlines(cmd, []models.Deadline{d})
	},
}

var deadlinesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked deadlines, soonest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return printDeadlines(cmd, a.Deadlines.List())
	},
}

var deadlinesUpcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List deadlines falling within the next N days",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ds, err := a.Deadlines.Upcoming(days)
		if err != nil {
			return err
		}
		return printDeadlines(cmd, ds)
	},
}

var deadlinesRemoveCmd = &cobra.Command{
	Use:   "remove <grant-id>",
	Short: "Stop tracking a grant deadline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Deadlines.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

var deadlinesNotifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Compute and record the reminders that are due",
	Long: `Notify marks every reminder offset that has come due as sent and prints
it. Deadlines already past are closed without a reminder. Use --at to
replay a missed run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now().UTC()
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			ts, err := deadlines.ParseTimestamp(at)
			if err != nil {
				return err
			}
			now = ts
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		due, err := a.Deadlines.ComputeDueNotifications(cmd.Context(), now)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput(cmd) {
			return printJSON(out, due)
		}
		if len(due) == 0 {
			fmt.Fprintln(out, "No reminders due.")
			return nil
		}
		t := newTable(out, "Grant", "Offset (days)", "Deadline")
		for _, n := range due {
			t.AppendRow([]interface{}{n.GrantID, n.Offset, n.DeadlineAt.Format(time.RFC3339)})
		}
		t.Render()
		return nil
	},
}

func printDeadlines(cmd *cobra.Command, ds []models.Deadline) error {
	out := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		return printJSON(out, ds)
	}
	if len(ds) == 0 {
		fmt.Fprintln(out, "No deadlines.")
		return nil
	}
	writeDeadlineTable(out, ds, time.Now())
	return nil
}

func writeDeadlineTable(w io.Writer, ds []models.Deadline, now time.Time) {
	t := newTable(w, "Grant", "Deadline", "Days Left", "Offsets", "Notified", "Status")
	for _, d := range ds {
		t.AppendRow([]interface{}{
			d.GrantID,
			d.DeadlineAt.Format(time.RFC3339),
			fmt.Sprintf("%.1f", d.DaysRemaining(now)),
			joinInts(d.NotifyOffsets),
			joinInts(d.NotifiedOffsets),
			d.Status,
		})
	}
	t.Render()
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ",")
}

func init() {
	deadlinesAddCmd.Flags().String("offsets", "", "reminder offsets in days (comma-separated, default 7)")
	deadlinesUpcomingCmd.Flags().Int("days", deadlines.DefaultUpcomingDays, "window in days")
	deadlinesNotifyCmd.Flags().String("at", "", "evaluate as of this time instead of now")

	deadlinesCmd.AddCommand(deadlinesAddCmd, deadlinesListCmd, deadlinesUpcomingCmd, deadlinesRemoveCmd, deadlinesNotifyCmd)
	rootCmd.AddCommand(deadlinesCmd)
}
