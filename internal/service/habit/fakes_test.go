package habit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"habittracker/internal/analytics"
	"habittracker/internal/model"
	"habittracker/internal/repository"
	"habittracker/pkg/db"
)

type store struct {
	mu         sync.Mutex
	habits     []*model.Habit
	entries    map[string]*model.Entry // habitID|date
	milestones []model.Milestone

	// beforeToggle runs inside Toggle ahead of the upsert.
	beforeToggle func()
}

func newStore() *store {
	return &store{entries: map[string]*model.Entry{}}
}

func (s *store) hasHabit(id string) bool {
	for _, h := range s.habits {
		if h.ID == id {
			return true
		}
	}
	return false
}

type fakeHabits struct{ s *store }

func (f fakeHabits) Insert(_ context.Context, _ db.DBTX, h *model.Habit) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	h.ID = uuid.NewString()
	h.CreatedAt = time.Now().Add(time.Duration(len(f.s.habits)) * time.Millisecond)
	h.UpdatedAt = h.CreatedAt
	cp := *h
	f.s.habits = append(f.s.habits, &cp)
	return nil
}

func (f fakeHabits) ListByUser(_ context.Context, userID string, activeOnly bool) ([]model.Habit, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []model.Habit{}
	for _, h := range f.s.habits {
		if h.UserID == userID && (!activeOnly || h.IsActive) {
			out = append(out, *h)
		}
	}
	return out, nil
}

func (f fakeHabits) GetByID(_ context.Context, userID, id string) (*model.Habit, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, h := range f.s.habits {
		if h.ID == id && h.UserID == userID {
			cp := *h
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeHabits) Update(_ context.Context, _ db.DBTX, h *model.Habit) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for i, existing := range f.s.habits {
		if existing.ID == h.ID && existing.UserID == h.UserID {
			h.UpdatedAt = time.Now()
			cp := *h
			f.s.habits[i] = &cp
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f fakeHabits) Delete(_ context.Context, _ db.DBTX, userID, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for i, h := range f.s.habits {
		if h.ID == id && h.UserID == userID {
			f.s.habits = append(f.s.habits[:i], f.s.habits[i+1:]...)
			for k, e := range f.s.entries {
				if e.HabitID == id {
					delete(f.s.entries, k)
				}
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeEntries struct{ s *store }

func (f fakeEntries) Toggle(_ context.Context, _ db.DBTX, userID, habitID string, date time.Time) (*model.Entry, error) {
	if f.s.beforeToggle != nil {
		f.s.beforeToggle()
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if !f.s.hasHabit(habitID) {
		return nil, repository.ErrNotFound
	}
	key := habitID + "|" + analytics.FormatDate(date)
	if e, ok := f.s.entries[key]; ok {
		e.Completed = !e.Completed
		cp := *e
		return &cp, nil
	}
	e := &model.Entry{
		ID:        uuid.NewString(),
		HabitID:   habitID,
		UserID:    userID,
		Date:      analytics.FormatDate(date),
		Completed: true,
		CreatedAt: time.Now(),
	}
	f.s.entries[key] = e
	cp := *e
	return &cp, nil
}

func (f fakeEntries) list(match func(e *model.Entry) bool) []model.Entry {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []model.Entry{}
	for _, e := range f.s.entries {
		if match(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (f fakeEntries) ListByUser(_ context.Context, userID string) ([]model.Entry, error) {
	return f.list(func(e *model.Entry) bool { return e.UserID == userID }), nil
}

func (f fakeEntries) ListByHabit(_ context.Context, userID, habitID string, from, to time.Time) ([]model.Entry, error) {
	return f.list(func(e *model.Entry) bool {
		if e.UserID != userID || e.HabitID != habitID {
			return false
		}
		if !from.IsZero() && e.Date < analytics.FormatDate(from) {
			return false
		}
		if !to.IsZero() && e.Date > analytics.FormatDate(to) {
			return false
		}
		return true
	}), nil
}

type fakeMilestones struct{ s *store }

func (f fakeMilestones) ListByUser(_ context.Context, userID string) ([]model.Milestone, error) {
	out := []model.Milestone{}
	for _, m := range f.s.milestones {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeTx discards events enqueued by a failed fn, like a rolled back tx.
type fakeTx struct {
	events *fakeEvents
}

func (f fakeTx) InTx(_ context.Context, fn func(q db.DBTX) error) error {
	mark := len(f.events.events)
	if err := fn(nil); err != nil {
		f.events.events = f.events.events[:mark]
		return err
	}
	return nil
}

type event struct {
	AggregateType string
	AggregateID   string
	RoutingKey    string
	Payload       json.RawMessage
}

type fakeEvents struct {
	events []event
	err    error
}

func (f *fakeEvents) Enqueue(_ context.Context, _ db.DBTX, aggregateType, aggregateID, routingKey string, payload any) error {
	if f.err != nil {
		return f.err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.events = append(f.events, event{aggregateType, aggregateID, routingKey, raw})
	return nil
}

type fakeCache struct {
	data          map[string][]byte
	gens          map[string]int64
	gets, hits    int
	invalidations int
	broken        bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}, gens: map[string]int64{}}
}

func (c *fakeCache) key(userID string, gen int64, day, view string) string {
	return fmt.Sprintf("%s|%d|%s|%s", userID, gen, day, view)
}

func (c *fakeCache) Get(_ context.Context, userID, day, view string, out any) (int64, bool) {
	c.gets++
	if c.broken {
		return -1, false
	}
	gen := c.gens[userID]
	raw, ok := c.data[c.key(userID, gen, day, view)]
	if !ok {
		return gen, false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return gen, false
	}
	c.hits++
	return gen, true
}

func (c *fakeCache) Set(_ context.Context, userID string, gen int64, day, view string, v any) {
	if c.broken || gen < 0 {
		return
	}
	raw, _ := json.Marshal(v)
	c.data[c.key(userID, gen, day, view)] = raw
}

func (c *fakeCache) Invalidate(_ context.Context, userID string) error {
	c.invalidations++
	if c.broken {
		return errors.New("redis down")
	}
	c.gens[userID]++
	return nil
}
