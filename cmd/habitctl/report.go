package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"habittracker/internal/analytics"
	"habittracker/internal/model"
)

func printReport(w io.Writer, name string, now time.Time, habits []model.HabitWithEntries, o analytics.Overview) {
	fmt.Fprintf(w, "Habits of %s on %s\n", name, analytics.FormatDate(now))
	fmt.Fprintln(w, strings.Repeat("=", 56))
	fmt.Fprintf(w, "%-30s %8s %8s %6s\n", "HABIT", "STREAK", "RATE", "TODAY")
	for _, h := range habits {
		name := h.Name
		if !h.IsActive {
			name += " (paused)"
		}
		today := "-"
		if h.TodayCompleted {
			today = "done"
		}
		fmt.Fprintf(w, "%-30s %8d %7d%% %6s\n", truncate(name, 30), h.Streak, h.CompletionRate, today)
	}
	fmt.Fprintln(w, strings.Repeat("-", 56))
	fmt.Fprintf(w, "active %d, done today %d (%d%%), total streak %d, best streak %d, average rate %d%%\n",
		o.ActiveHabits, o.CompletedToday, o.TodayPercentage, o.TotalStreak, o.BestStreak, o.AverageCompletionRate)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
