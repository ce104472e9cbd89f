package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/service"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/response"
)

// SubjectHandler serves the public subject catalog.
type SubjectHandler struct {
	service *service.SubjectService
}

// NewSubjectHandler creates a new handler.
func NewSubjectHandler(svc *service.SubjectService) *SubjectHandler {
	return &SubjectHandler{service: svc}
}

// List godoc
// @Summary List subjects
// @Description Returns the subject catalog grouped by category in display order
// @Tags Subjects
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	groups, err := h.service.ListGrouped(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}
