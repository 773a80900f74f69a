package analytics

import (
	"time"

	"habittracker/internal/model"
)

type CalendarDay struct {
	Date      string `json:"date"`
	Weekday   int    `json:"weekday"` // 0 = Sunday
	Completed bool   `json:"completed"`
	HasEntry  bool   `json:"has_entry"`
	IsToday   bool   `json:"is_today"`
	IsFuture  bool   `json:"is_future"`
	CanToggle bool   `json:"can_toggle"`
}

type MonthView struct {
	HabitID       string        `json:"habit_id"`
	Color         string        `json:"color"`
	Month         string        `json:"month"`
	CompletedDays int           `json:"completed_days"`
	Days          []CalendarDay `json:"days"`
}

// MonthCalendar lays out every day of month for one habit. Days after today
// cannot be toggled.
func MonthCalendar(h model.Habit, entries []model.Entry, month, today time.Time) MonthView {
	byDate := make(map[string]model.Entry, len(entries))
	for _, e := range entries {
		if e.HabitID == "" || e.HabitID == h.ID {
			byDate[e.Date] = e
		}
	}

	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)
	todayDay := Day(today)

	view := MonthView{
		HabitID: h.ID,
		Color:   h.Color,
		Month:   first.Format(MonthLayout),
	}
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		date := FormatDate(d)
		e, ok := byDate[date]
		future := d.After(todayDay)
		day := CalendarDay{
			Date:      date,
			Weekday:   int(d.Weekday()),
			Completed: ok && e.Completed,
			HasEntry:  ok,
			IsToday:   d.Equal(todayDay),
			IsFuture:  future,
			CanToggle: !future,
		}
		if day.Completed {
			view.CompletedDays++
		}
		view.Days = append(view.Days, day)
	}
	return view
}
