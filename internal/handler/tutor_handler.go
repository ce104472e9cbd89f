package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/middleware"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/service"
	appErrors "github.com/pvhs-tutoring/peer-tutoring-api/pkg/errors"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/response"
)

// TutorHandler serves tutor signup, login, and the authenticated portal.
type TutorHandler struct {
	auth     *service.AuthService
	tutors   *service.TutorService
	bookings *service.BookingService
	notifier *service.NotificationService
}

// NewTutorHandler creates a new handler.
func NewTutorHandler(auth *service.AuthService, tutors *service.TutorService, bookings *service.BookingService, notifier *service.NotificationService) *TutorHandler {
	return &TutorHandler{auth: auth, tutors: tutors, bookings: bookings, notifier: notifier}
}

// Signup godoc
// @Summary Register a tutor
// @Description Creates a tutor account with phone + PIN credentials and returns a token
// @Tags Tutors
// @Accept json
// @Produce json
// @Param payload body service.SignupRequest true "Signup payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tutors/signup [post]
func (h *TutorHandler) Signup(c *gin.Context) {
	var req service.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid signup payload"))
		return
	}

	res, err := h.auth.Signup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate a tutor
// @Description Authenticates by phone + PIN and returns a token
// @Tags Tutors
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /tutors/login [post]
func (h *TutorHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Dashboard godoc
// @Summary Tutor dashboard
// @Description Returns the tutor's profile, schedule, upcoming bookings, and recent cancellations
// @Tags Tutors
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /tutors/me/dashboard [get]
func (h *TutorHandler) Dashboard(c *gin.Context) {
	tutor, ok := middleware.CurrentTutor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dashboard, err := h.tutors.Dashboard(c.Request.Context(), tutor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// ReplaceSubjects godoc
// @Summary Replace taught subjects
// @Description Swaps the tutor's taught subject set
// @Tags Tutors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body object true "Subject ids"
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /tutors/me/subjects [put]
func (h *TutorHandler) ReplaceSubjects(c *gin.Context) {
	tutor, ok := middleware.CurrentTutor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		SubjectIDs []string `json:"subject_ids"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.tutors.ReplaceSubjects(c.Request.Context(), tutor.ID, payload.SubjectIDs); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddAvailability godoc
// @Summary Add a weekly availability block
// @Description Creates a recurring block on a weekday (0 = Monday)
// @Tags Tutors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.AddAvailabilityRequest true "Availability payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /tutors/me/availability [post]
func (h *TutorHandler) AddAvailability(c *gin.Context) {
	tutor, ok := middleware.CurrentTutor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AddAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}

	block, err := h.tutors.AddAvailability(c.Request.Context(), tutor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// DeleteAvailability godoc
// @Summary Delete a weekly availability block
// @Tags Tutors
// @Produce json
// @Security BearerAuth
// @Param id path string true "Block id"
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tutors/me/availability/{id} [delete]
func (h *TutorHandler) DeleteAvailability(c *gin.Context) {
	tutor, ok := middleware.CurrentTutor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.tutors.DeleteAvailability(c.Request.Context(), tutor.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddException godoc
// @Summary Add a blackout exception
// @Description Creates a full-day or partial blackout on a date
// @Tags Tutors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.AddExceptionRequest true "Exception payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tutors/me/exceptions [post]
func (h *TutorHandler) AddException(c *gin.Context) {
	tutor, ok := middleware.CurrentTutor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AddExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exception payload"))
		return
	}

	exception, err := h.tutors.AddException(c.Request.Context(), tutor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exception)
}

// DeleteException godoc
// @Summary Delete a blackout exception
// @Tags Tutors
// @Produce json
// @Security BearerAuth
// @Param id path string true "Exception id"
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tutors/me/exceptions/{id} [delete]
func (h *TutorHandler) DeleteException(c *gin.Context) {
	tutor, ok := middleware.CurrentTutor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.tutors.DeleteException(c.Request.Context(), tutor.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CancelBooking godoc
// @Summary Cancel a booking
// @Description Cancels one of the tutor's bookings; repeating the call is a no-op
// @Tags Tutors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking id"
// @Param payload body object false "Optional reason"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tutors/me/bookings/{id}/cancel [post]
func (h *TutorHandler) CancelBooking(c *gin.Context) {
	tutor, ok := middleware.CurrentTutor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}

	booking, canceled, err := h.bookings.Cancel(c.Request.Context(), c.Param("id"), tutor.ID, payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	if canceled && h.notifier != nil {
		go func(b models.Booking) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			h.notifier.SendCancellationNotice(ctx, &b)
		}(*booking)
	}

	response.JSON(c, http.StatusOK, booking, nil)
}
