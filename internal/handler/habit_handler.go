package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"habittracker/internal/analytics"
	"habittracker/internal/model"
	"habittracker/internal/service/habit"
)

// TimezoneHeader lets clients state their local time zone.
const TimezoneHeader = "X-Timezone"

type HabitService interface {
	List(ctx context.Context, userID string, now time.Time, activeOnly bool) ([]model.HabitWithEntries, error)
	Get(ctx context.Context, userID, id string, now time.Time) (*model.HabitWithEntries, error)
	Create(ctx context.Context, userID string, in model.CreateHabitInput) (*model.Habit, error)
	Update(ctx context.Context, userID, id string, in model.UpdateHabitInput) (*model.Habit, error)
	Delete(ctx context.Context, userID, id string) error
	Toggle(ctx context.Context, userID, habitID, date string, now time.Time) (*model.Entry, error)
	Entries(ctx context.Context, userID, habitID, from, to string) ([]model.Entry, error)
	Dashboard(ctx context.Context, userID string, now time.Time) (*habit.Dashboard, error)
	Analytics(ctx context.Context, userID, month string, now time.Time) (*habit.Analytics, error)
	Calendar(ctx context.Context, userID, habitID, month string, now time.Time) (*analytics.MonthView, error)
	Milestones(ctx context.Context, userID string) ([]model.Milestone, error)
}

type HabitHandler struct {
	habits   HabitService
	location *time.Location
	clock    func() time.Time
	logger   *zap.Logger
}

func NewHabitHandler(habits HabitService, defaultLocation *time.Location, logger *zap.Logger) *HabitHandler {
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &HabitHandler{
		habits:   habits,
		location: defaultLocation,
		clock:    time.Now,
		logger:   logger,
	}
}

// now returns the current instant in the caller's time zone, taken from the
// tz query parameter, then the X-Timezone header, then the server default.
func (h *HabitHandler) now(c *gin.Context) (time.Time, bool) {
	name := c.Query("tz")
	if name == "" {
		name = c.GetHeader(TimezoneHeader)
	}
	loc := h.location
	if name != "" {
		l, err := time.LoadLocation(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown time zone", "field": "tz"})
			return time.Time{}, false
		}
		loc = l
	}
	return h.clock().In(loc), true
}

// habitID validates the :id path parameter.
func habitID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": habit.ErrHabitNotFound.Error()})
		return "", false
	}
	return id, true
}

// List GET /habits?active=true
func (h *HabitHandler) List(c *gin.Context) {
	now, ok := h.now(c)
	if !ok {
		return
	}
	out, err := h.habits.List(c.Request.Context(), currentUserID(c), now, c.Query("active") == "true")
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habits": out})
}

// Get GET /habits/:id
func (h *HabitHandler) Get(c *gin.Context) {
	id, ok := habitID(c)
	if !ok {
		return
	}
	now, ok := h.now(c)
	if !ok {
		return
	}
	out, err := h.habits.Get(c.Request.Context(), currentUserID(c), id, now)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Create POST /habits
func (h *HabitHandler) Create(c *gin.Context) {
	var in model.CreateHabitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	out, err := h.habits.Create(c.Request.Context(), currentUserID(c), in)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// Update PATCH /habits/:id
func (h *HabitHandler) Update(c *gin.Context) {
	id, ok := habitID(c)
	if !ok {
		return
	}
	var in model.UpdateHabitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	out, err := h.habits.Update(c.Request.Context(), currentUserID(c), id, in)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Delete DELETE /habits/:id
func (h *HabitHandler) Delete(c *gin.Context) {
	id, ok := habitID(c)
	if !ok {
		return
	}
	if err := h.habits.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		fail(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type toggleRequest struct {
	Date string `json:"date"`
}

// Toggle POST /habits/:id/toggle  {"date": "YYYY-MM-DD"} (body optional)
func (h *HabitHandler) Toggle(c *gin.Context) {
	id, ok := habitID(c)
	if !ok {
		return
	}
	var req toggleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	now, ok := h.now(c)
	if !ok {
		return
	}
	entry, err := h.habits.Toggle(c.Request.Context(), currentUserID(c), id, req.Date, now)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Entries GET /habits/:id/entries?from=&to=
func (h *HabitHandler) Entries(c *gin.Context) {
	id, ok := habitID(c)
	if !ok {
		return
	}
	out, err := h.habits.Entries(c.Request.Context(), currentUserID(c), id, c.Query("from"), c.Query("to"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

// Calendar GET /habits/:id/calendar?month=YYYY-MM
func (h *HabitHandler) Calendar(c *gin.Context) {
	id, ok := habitID(c)
	if !ok {
		return
	}
	now, ok := h.now(c)
	if !ok {
		return
	}
	out, err := h.habits.Calendar(c.Request.Context(), currentUserID(c), id, c.Query("month"), now)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Dashboard GET /dashboard
func (h *HabitHandler) Dashboard(c *gin.Context) {
	now, ok := h.now(c)
	if !ok {
		return
	}
	out, err := h.habits.Dashboard(c.Request.Context(), currentUserID(c), now)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Analytics GET /analytics?month=YYYY-MM
func (h *HabitHandler) Analytics(c *gin.Context) {
	now, ok := h.now(c)
	if !ok {
		return
	}
	out, err := h.habits.Analytics(c.Request.Context(), currentUserID(c), c.Query("month"), now)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Milestones GET /milestones
func (h *HabitHandler) Milestones(c *gin.Context) {
	out, err := h.habits.Milestones(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestones": out})
}

// SetClock replaces the time source of h.
func SetClock(h *HabitHandler, clock func() time.Time) {
	h.clock = clock
}
