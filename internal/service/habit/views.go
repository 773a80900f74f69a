package habit

import (
	"context"
	"time"

	"habittracker/internal/analytics"
	"habittracker/internal/model"
	"habittracker/internal/service"
)

const (
	viewHabits       = "habits"
	viewActiveHabits = "habits_active"
	viewDashboard    = "dashboard"
	viewAnalytics    = "analytics"
)

type Dashboard struct {
	Date     string                   `json:"date"`
	Overview analytics.Overview       `json:"overview"`
	Habits   []model.HabitWithEntries `json:"habits"`
}

type Analytics struct {
	Date      string                `json:"date"`
	Month     string                `json:"month"`
	Overview  analytics.Overview    `json:"overview"`
	Calendars []analytics.MonthView `json:"calendars"`
}

// List returns the user's habits with entries and derived state as of now.
func (s *Service) List(ctx context.Context, userID string, now time.Time, activeOnly bool) ([]model.HabitWithEntries, error) {
	day := analytics.FormatDate(analytics.Day(now))
	view := viewHabits
	if activeOnly {
		view = viewActiveHabits
	}

	var cached []model.HabitWithEntries
	gen, hit := s.cache.Get(ctx, userID, day, view, &cached)
	if hit {
		return cached, nil
	}

	out, err := s.enhanced(ctx, userID, now, activeOnly)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, userID, gen, day, view, out)
	return out, nil
}

func (s *Service) enhanced(ctx context.Context, userID string, now time.Time, activeOnly bool) ([]model.HabitWithEntries, error) {
	habits, err := s.habits.ListByUser(ctx, userID, activeOnly)
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.Enhance(habits, entries, now), nil
}

func (s *Service) Get(ctx context.Context, userID, id string, now time.Time) (*model.HabitWithEntries, error) {
	h, err := s.lookup(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListByHabit(ctx, userID, id, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	out := analytics.EnhanceOne(*h, entries, now)
	return &out, nil
}

// Entries lists the habit's entries between from and to inclusive; either
// bound may be empty.
func (s *Service) Entries(ctx context.Context, userID, habitID, from, to string) ([]model.Entry, error) {
	var fromDay, toDay time.Time
	var err error
	if from != "" {
		if fromDay, err = analytics.ParseDate(from); err != nil {
			return nil, service.Invalid("from", "must be YYYY-MM-DD")
		}
	}
	if to != "" {
		if toDay, err = analytics.ParseDate(to); err != nil {
			return nil, service.Invalid("to", "must be YYYY-MM-DD")
		}
	}
	if !fromDay.IsZero() && !toDay.IsZero() && toDay.Before(fromDay) {
		return nil, service.Invalid("to", "must not be before from")
	}

	if _, err := s.lookup(ctx, userID, habitID); err != nil {
		return nil, err
	}
	return s.entries.ListByHabit(ctx, userID, habitID, fromDay, toDay)
}

func (s *Service) Dashboard(ctx context.Context, userID string, now time.Time) (*Dashboard, error) {
	day := analytics.FormatDate(analytics.Day(now))

	var cached Dashboard
	gen, hit := s.cache.Get(ctx, userID, day, viewDashboard, &cached)
	if hit {
		return &cached, nil
	}

	habits, err := s.enhanced(ctx, userID, now, true)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{
		Date:     day,
		Overview: analytics.Summarize(habits),
		Habits:   habits,
	}
	s.cache.Set(ctx, userID, gen, day, viewDashboard, d)
	return d, nil
}

// Analytics summarizes active habits and lays out their calendars for
// month (YYYY-MM), defaulting to the month of now.
func (s *Service) Analytics(ctx context.Context, userID, month string, now time.Time) (*Analytics, error) {
	monthStart, err := s.month(month, now)
	if err != nil {
		return nil, err
	}
	day := analytics.FormatDate(analytics.Day(now))
	view := viewAnalytics + ":" + monthStart.Format(analytics.MonthLayout)

	var cached Analytics
	gen, hit := s.cache.Get(ctx, userID, day, view, &cached)
	if hit {
		return &cached, nil
	}

	habits, err := s.enhanced(ctx, userID, now, true)
	if err != nil {
		return nil, err
	}
	a := &Analytics{
		Date:      day,
		Month:     monthStart.Format(analytics.MonthLayout),
		Overview:  analytics.Summarize(habits),
		Calendars: make([]analytics.MonthView, 0, len(habits)),
	}
	for _, h := range habits {
		a.Calendars = append(a.Calendars, analytics.MonthCalendar(h.Habit, h.Entries, monthStart, now))
	}
	s.cache.Set(ctx, userID, gen, day, view, a)
	return a, nil
}

// Calendar lays out one habit's month.
func (s *Service) Calendar(ctx context.Context, userID, habitID, month string, now time.Time) (*analytics.MonthView, error) {
	monthStart, err := s.month(month, now)
	if err != nil {
		return nil, err
	}
	h, err := s.lookup(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	last := monthStart.AddDate(0, 1, -1)
	entries, err := s.entries.ListByHabit(ctx, userID, habitID, monthStart, last)
	if err != nil {
		return nil, err
	}
	view := analytics.MonthCalendar(*h, entries, monthStart, now)
	return &view, nil
}

func (s *Service) Milestones(ctx context.Context, userID string) ([]model.Milestone, error) {
	return s.milestones.ListByUser(ctx, userID)
}

func (s *Service) month(month string, now time.Time) (time.Time, error) {
	if month == "" {
		d := analytics.Day(now)
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	m, err := analytics.ParseMonth(month)
	if err != nil {
		return time.Time{}, service.Invalid("month", "must be YYYY-MM")
	}
	return m, nil
}
