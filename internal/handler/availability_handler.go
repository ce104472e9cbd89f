package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/service"
	appErrors "github.com/pvhs-tutoring/peer-tutoring-api/pkg/errors"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/response"
)

// AvailabilityHandler serves the public open-slot views.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
	window       *service.BookingWindow
	now          func() time.Time
}

// NewAvailabilityHandler creates a new handler.
func NewAvailabilityHandler(availability *service.AvailabilityService, window *service.BookingWindow) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability, window: window, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (h *AvailabilityHandler) WithClock(now func() time.Time) *AvailabilityHandler {
	h.now = now
	return h
}

// OpenSlots godoc
// @Summary List open slots
// @Description Returns bookable slots for a subject and date. Dates outside the booking window return an empty list with the reason in meta.
// @Tags Availability
// @Produce json
// @Param subject_id query string true "Subject id"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) OpenSlots(c *gin.Context) {
	subjectID := c.Query("subject_id")
	if subjectID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subject_id is required"))
		return
	}
	date, err := time.ParseInLocation("2006-01-02", c.Query("date"), h.availability.Location())
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD"))
		return
	}

	if allowed, reason := h.window.Status(date, h.now()); !allowed {
		response.JSON(c, http.StatusOK, []models.OpenSlot{}, nil, map[string]interface{}{"message": reason})
		return
	}

	slots, err := h.availability.CollectOpenSlots(c.Request.Context(), subjectID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	if slots == nil {
		slots = []models.OpenSlot{}
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// BookingWindow godoc
// @Summary Booking window status
// @Description Reports the earliest bookable date and, for an optional target date, whether it is open
// @Tags Availability
// @Produce json
// @Param date query string false "Target date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /booking-window [get]
func (h *AvailabilityHandler) BookingWindow(c *gin.Context) {
	now := h.now()
	payload := gin.H{
		"earliest_date": h.window.EarliestBookableDate(now).Format("2006-01-02"),
	}

	if raw := c.Query("date"); raw != "" {
		date, err := time.ParseInLocation("2006-01-02", raw, h.availability.Location())
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD"))
			return
		}
		allowed, reason := h.window.Status(date, now)
		payload["allowed"] = allowed
		if reason != "" {
			payload["reason"] = reason
		}
	}

	response.JSON(c, http.StatusOK, payload, nil)
}
