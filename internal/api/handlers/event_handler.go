package handlers

import (
	"net/http"
	"time"

	"github.com/djeeyo/nmreggae/internal/calendar"
	"github.com/djeeyo/nmreggae/internal/models"
	"github.com/djeeyo/nmreggae/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventHandler serves the public event API
type EventHandler struct {
	service *services.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(service *services.EventService) *EventHandler {
	return &EventHandler{service: service}
}

// RegisterRoutes registers the event routes
func (h *EventHandler) RegisterRoutes(router gin.IRouter) {
	events := router.Group("/events")
	events.GET("", h.ListEvents)
	events.POST("", h.CreateEvent)
	events.GET("/calendar", h.Calendar)
	events.GET("/search", h.SearchEvents)
	events.GET("/:id", h.GetEvent)
	events.PUT("/:id", h.UpdateEvent)
	events.DELETE("/:id", h.DeleteEvent)
}

// ListEvents handles GET /events?startDate=&endDate=
func (h *EventHandler) ListEvents(c *gin.Context) {
	start, end, err := windowParams(c)
	if err != nil {
		WriteError(c, err)
		return
	}

	events, err := h.service.ListEvents(c.Request.Context(), start, end)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Calendar handles GET /events/calendar, the month and city grouping
func (h *EventHandler) Calendar(c *gin.Context) {
	start, end, err := windowParams(c)
	if err != nil {
		WriteError(c, err)
		return
	}

	cal, months, err := h.service.Calendar(c.Request.Context(), start, end)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"months":   months,
		"calendar": cal.Months,
	})
}

// SearchEvents handles GET /events/search?q=
func (h *EventHandler) SearchEvents(c *gin.Context) {
	events, err := h.service.SearchEvents(c.Request.Context(), c.Query("q"))
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetEvent handles GET /events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.service.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": event})
}

// CreateEvent handles POST /events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var input models.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Debug().Err(err).Msg("invalid event body")
		WriteError(c, NewValidationError("Invalid request body"))
		return
	}

	event, err := h.service.CreateEvent(c.Request.Context(), input)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// UpdateEvent handles PUT /events/:id; absent fields are left unchanged
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	var patch models.EventPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		log.Debug().Err(err).Msg("invalid event body")
		WriteError(c, NewValidationError("Invalid request body"))
		return
	}

	event, err := h.service.UpdateEvent(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": event})
}

// DeleteEvent handles DELETE /events/:id. An unknown id answers 404 with a
// message body rather than an error body.
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	err := h.service.DeleteEvent(c.Request.Context(), c.Param("id"))
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Event not found"})
		return
	}
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// windowParams reads the optional startDate and endDate query parameters
func windowParams(c *gin.Context) (*time.Time, *time.Time, error) {
	start, err := optionalDate(c.Query("startDate"))
	if err != nil {
		return nil, nil, NewValidationError("Invalid startDate")
	}
	end, err := optionalDate(c.Query("endDate"))
	if err != nil {
		return nil, nil, NewValidationError("Invalid endDate")
	}
	return start, end, nil
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := calendar.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
