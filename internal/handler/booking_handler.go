package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/service"
	appErrors "github.com/pvhs-tutoring/peer-tutoring-api/pkg/errors"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/response"
)

// BookingHandler serves the public booking commit and the roster export.
type BookingHandler struct {
	bookings *service.BookingService
	exports  *service.ExportService
	notifier *service.NotificationService
}

// NewBookingHandler creates a new handler.
func NewBookingHandler(bookings *service.BookingService, exports *service.ExportService, notifier *service.NotificationService) *BookingHandler {
	return &BookingHandler{bookings: bookings, exports: exports, notifier: notifier}
}

// bookingConfirmation is the student-facing 201 payload: the booking plus
// the assigned tutor's contact details.
type bookingConfirmation struct {
	Booking models.Booking  `json:"booking"`
	Tutor   models.TutorRef `json:"tutor"`
	Subject string          `json:"subject"`
}

// Create godoc
// @Summary Book a tutoring session
// @Description Commits a booking for the requested subject and slot, assigning the least-loaded free tutor
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.BookSessionRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.BookSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	result, err := h.bookings.Book(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.notifier != nil {
		// Confirmation texts ride a detached context so a slow SMS gateway
		// never delays the 201.
		go func(r service.BookingResult) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			h.notifier.SendBookingConfirmation(ctx, &r)
		}(*result)
	}

	response.Created(c, bookingConfirmation{
		Booking: result.Booking,
		Tutor:   result.Tutor.Ref(),
		Subject: result.Subject.Name,
	})
}

// Export godoc
// @Summary Export booking roster
// @Description Downloads every booking as CSV or PDF
// @Tags Bookings
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /bookings/export [get]
func (h *BookingHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	switch format {
	case "csv":
		data, err := h.exports.RosterCSV(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="bookings.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
	case "pdf":
		data, err := h.exports.RosterPDF(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="bookings.pdf"`)
		c.Data(http.StatusOK, "application/pdf", data)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}
