package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepdeck/prepdeck-backend/internal/model"
	"github.com/prepdeck/prepdeck-backend/internal/response"
	"github.com/prepdeck/prepdeck-backend/internal/service"
)

// ExamHandler serves the read-only exam catalog.
type ExamHandler struct {
	sessions *service.SessionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessions *service.SessionService) *ExamHandler {
	return &ExamHandler{sessions: sessions}
}

// ListExams godoc
// GET /api/v1/exams
// Returns the catalog of published exams.
func (h *ExamHandler) ListExams(c *gin.Context) {
	exams, err := h.sessions.Catalog(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if exams == nil {
		exams = []model.ExamSummary{}
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}
