package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/service"
	appErrors "github.com/pvhs-tutoring/peer-tutoring-api/pkg/errors"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/response"
)

// ContextTutorKey is the gin context key storing the authenticated tutor.
const ContextTutorKey = "currentTutor"

// JWT protects tutor portal routes by requiring a valid access token and
// resolving it to a live, active tutor.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		tutor, err := authService.CurrentTutor(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextTutorKey, tutor)
		c.Next()
	}
}

// CurrentTutor extracts the authenticated tutor set by the JWT middleware.
func CurrentTutor(c *gin.Context) (*models.Tutor, bool) {
	value, ok := c.Get(ContextTutorKey)
	if !ok {
		return nil, false
	}
	tutor, ok := value.(*models.Tutor)
	return tutor, ok
}
