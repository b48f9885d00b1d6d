package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"remindd/internal/lifecycle"
	"remindd/internal/reminder"
)

type errorBody struct {
	Error string `json:"error"`
}

var errBadEvent = errors.New("invalid task event")

type taskEventRequest struct {
	Event    string         `json:"event"`
	Task     *reminder.Task `json:"task"`
	Previous *reminder.Task `json:"previous,omitempty"`
	Assignee string         `json:"assignee,omitempty"`
}

type summaryRequest struct {
	UserID    string `json:"user_id"`
	Completed int    `json:"completed"`
	Points    int    `json:"points"`
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: err.Error()})
}

func (s *Server) healthz(c *gin.Context) {
	body := gin.H{"status": "ok", "time": time.Now().UTC()}
	if s.deps.Health != nil {
		for k, v := range s.deps.Health() {
			body[k] = v
		}
	}
	c.JSON(http.StatusOK, body)
}

// taskEvent dispatches one lifecycle event. Hooks run before the response
// and cannot fail it; only malformed input is rejected.
func (s *Server) taskEvent(c *gin.Context) {
	var req taskEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.normalize(); err != nil {
		badRequest(c, err)
		return
	}

	// Hooks finish even if the client goes away mid-request.
	ctx, h := context.WithoutCancel(c.Request.Context()), s.deps.Hooks
	switch req.Event {
	case lifecycle.EventCreated:
		h.OnCreated(ctx, *req.Task)
	case lifecycle.EventUpdated:
		h.OnUpdated(ctx, *req.Previous, *req.Task)
	case lifecycle.EventDueDateChanged:
		h.OnDueDateChanged(ctx, *req.Task)
	case lifecycle.EventCompleted:
		h.OnCompleted(ctx, req.Task.ID)
	case lifecycle.EventDeleted:
		h.OnDeleted(ctx, req.Task.ID)
	case lifecycle.EventAssigned:
		h.OnAssigned(ctx, *req.Task, req.Assignee)
	}
	c.JSON(http.StatusAccepted, gin.H{"event": req.Event, "task_id": req.Task.ID})
}

func (r *taskEventRequest) normalize() error {
	r.Event = strings.ToLower(strings.TrimSpace(r.Event))
	switch r.Event {
	case lifecycle.EventCreated, lifecycle.EventUpdated, lifecycle.EventDueDateChanged,
		lifecycle.EventCompleted, lifecycle.EventDeleted, lifecycle.EventAssigned:
	default:
		return fmt.Errorf("%w: unknown event %q", errBadEvent, r.Event)
	}
	if r.Task == nil || strings.TrimSpace(r.Task.ID) == "" {
		return fmt.Errorf("%w: task.id required", errBadEvent)
	}
	if err := normalizeRepeat(r.Task); err != nil {
		return err
	}
	switch r.Event {
	case lifecycle.EventUpdated:
		if r.Previous == nil {
			return fmt.Errorf("%w: previous required for updated", errBadEvent)
		}
		if r.Previous.ID == "" {
			r.Previous.ID = r.Task.ID
		}
		if r.Previous.ID != r.Task.ID {
			return fmt.Errorf("%w: previous.id %q does not match task.id", errBadEvent, r.Previous.ID)
		}
		if err := normalizeRepeat(r.Previous); err != nil {
			return err
		}
	case lifecycle.EventAssigned:
		r.Assignee = strings.TrimSpace(r.Assignee)
		if r.Assignee == "" {
			return fmt.Errorf("%w: assignee required for assigned", errBadEvent)
		}
	}
	return nil
}

func normalizeRepeat(t *reminder.Task) error {
	rt, err := reminder.ParseRepeatType(string(t.RepeatType))
	if err != nil {
		return err
	}
	t.RepeatType = rt
	return nil
}

func (s *Server) summary(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		badRequest(c, errors.New("user_id required"))
		return
	}
	if req.Completed < 0 || req.Points < 0 {
		badRequest(c, errors.New("completed and points must be >= 0"))
		return
	}
	s.deps.Hooks.ScheduleDailySummary(context.WithoutCancel(c.Request.Context()), req.UserID, req.Completed, req.Points)
	c.JSON(http.StatusAccepted, gin.H{"user_id": req.UserID, "handle": reminder.Handle(req.UserID, reminder.KindDailySummary)})
}

func (s *Server) listPending(c *gin.Context) {
	pending := s.deps.Reminders.ListPending(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"count": len(pending), "pending": pending})
}

func (s *Server) clearPending(c *gin.Context) {
	n := s.deps.Reminders.ClearPending(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

func (s *Server) permission(c *gin.Context) {
	p := s.deps.Reminders.CheckAndRequestPermission(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"permission": p})
}

// handles reports the handle for one kind, or for every kind when kind is omitted.
func (s *Server) handles(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		badRequest(c, errors.New("id required"))
		return
	}
	if raw := c.Query("kind"); raw != "" {
		k, err := reminder.ParseKind(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "kind": k, "handle": reminder.Handle(id, k)})
		return
	}
	out := make(map[reminder.Kind]int32, len(reminder.AllKinds()))
	for _, k := range reminder.AllKinds() {
		out[k] = reminder.Handle(id, k)
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "handles": out})
}

func (s *Server) deliveries(c *gin.Context) {
	items := s.deps.Deliveries()
	c.JSON(http.StatusOK, gin.H{"count": len(items), "deliveries": items})
}
