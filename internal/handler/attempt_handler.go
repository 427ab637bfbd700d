package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prepdeck/prepdeck-backend/internal/middleware"
	"github.com/prepdeck/prepdeck-backend/internal/model"
	"github.com/prepdeck/prepdeck-backend/internal/repository"
	"github.com/prepdeck/prepdeck-backend/internal/response"
	"github.com/prepdeck/prepdeck-backend/internal/service"
	"github.com/prepdeck/prepdeck-backend/internal/validator"
)

// AttemptHandler exposes the timed exam session endpoints.
type AttemptHandler struct {
	sessions *service.SessionService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(sessions *service.SessionService) *AttemptHandler {
	return &AttemptHandler{sessions: sessions}
}

// StartAttempt godoc
// POST /api/v1/exams/:exam_id/attempts
// Starts a timed attempt; the deadline is fixed server-side at creation.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	started, err := h.sessions.StartAttempt(c.Request.Context(), claims.UserID, claims.Plan, examID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusCreated, started)
}

// GetHistory godoc
// GET /api/v1/attempts
// Returns the user's attempts, newest first.
func (h *AttemptHandler) GetHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.sessions.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetPaper godoc
// GET /api/v1/attempts/:attempt_id/paper
// Returns the question set (no answer keys) plus saved answers, so a
// reconnecting client can restore its state.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	claims, attemptID, ok := h.attemptRequest(c)
	if !ok {
		return
	}

	paper, err := h.sessions.Paper(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// GetClock godoc
// GET /api/v1/attempts/:attempt_id/clock
// Reports server-authoritative remaining time. A passed deadline is
// finalized inside this call, so status can never read running+expired.
func (h *AttemptHandler) GetClock(c *gin.Context) {
	claims, attemptID, ok := h.attemptRequest(c)
	if !ok {
		return
	}

	clock, err := h.sessions.Clock(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, clock)
}

// SubmitAnswer godoc
// PUT /api/v1/attempts/:attempt_id/answers
// Records one answer; resubmission for the same question overwrites.
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	claims, attemptID, ok := h.attemptRequest(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.RecordAnswer(c.Request.Context(), claims.UserID, attemptID, req); err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"accepted": true})
}

// SubmitExam godoc
// POST /api/v1/attempts/:attempt_id/submit
// Finalizes the attempt and returns the result summary.
func (h *AttemptHandler) SubmitExam(c *gin.Context) {
	claims, attemptID, ok := h.attemptRequest(c)
	if !ok {
		return
	}

	result, err := h.sessions.SubmitExam(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, result.Summary())
}

// GetResult godoc
// GET /api/v1/attempts/:attempt_id/result
// Returns the full stored result, including the per-question review and
// section breakdown.
func (h *AttemptHandler) GetResult(c *gin.Context) {
	claims, attemptID, ok := h.attemptRequest(c)
	if !ok {
		return
	}

	result, err := h.sessions.Result(c.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

func (h *AttemptHandler) attemptRequest(c *gin.Context) (*middleware.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, attemptID, true
}

// failSession maps session errors onto HTTP status + error codes. Policy
// violations are 4xx the client must react to; infrastructure failures are
// 503 because mutations fail closed rather than guess about the deadline.
func failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, repository.ErrAlreadyRunning):
		response.Fail(c, http.StatusConflict, response.ErrAttemptAlreadyRunning)
	case errors.Is(err, repository.ErrAttemptNotRunning), errors.Is(err, repository.ErrAlreadyFinalized):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotRunning)
	case errors.Is(err, service.ErrTimeExpired):
		response.Fail(c, http.StatusGone, response.ErrTimeExpired)
	case errors.Is(err, service.ErrAttemptStillRunning):
		response.Fail(c, http.StatusConflict, response.ErrAttemptInProgress)
	case errors.Is(err, service.ErrQuestionNotInExam):
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionNotInExam)
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusBadRequest, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrUpgradeRequired):
		response.Fail(c, http.StatusForbidden, response.ErrUpgradeRequired)
	default:
		response.Fail(c, http.StatusServiceUnavailable, response.ErrServiceUnavailable)
	}
}
