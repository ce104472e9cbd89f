package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pvhs-tutoring/peer-tutoring-api/internal/models"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/service"
)

type fakeSubjectRepo struct {
	subjects []models.Subject
}

func (r *fakeSubjectRepo) ListOrdered(ctx context.Context) ([]models.Subject, error) {
	return r.subjects, nil
}

func (r *fakeSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	return nil, sql.ErrNoRows
}

func TestListSubjectsGroupsByCategory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeSubjectRepo{subjects: []models.Subject{
		{ID: "s1", Name: "Algebra II", Category: "Math"},
		{ID: "s2", Name: "Geometry", Category: "Math"},
		{ID: "s3", Name: "Chemistry", Category: "Science"},
	}}
	handler := NewSubjectHandler(service.NewSubjectService(repo, zap.NewNop()))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/subjects", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	var groups []models.SubjectGroup
	require.NoError(t, json.Unmarshal(body.Data, &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "Math", groups[0].Category)
	require.Len(t, groups[0].Subjects, 2)
	assert.Equal(t, "Science", groups[1].Category)
}
