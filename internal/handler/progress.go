package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/crypto-academy/internal/apperror"
	"github.com/sakif/crypto-academy/internal/auth"
	"github.com/sakif/crypto-academy/internal/model"
	"github.com/sakif/crypto-academy/internal/service"
)

// ProgressHandler exposes the lesson-completion and progress-view
// endpoints.
type ProgressHandler struct {
	progress *service.ProgressService
	logger   *slog.Logger
}

func NewProgressHandler(progress *service.ProgressService, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{progress: progress, logger: logger}
}

// HandleCompleteLesson records a lesson completion and returns the
// XP award plus refreshed progress. Safe to replay: a second call for
// the same lesson succeeds with xpEarned 0.
//
// HTTP: POST /api/complete-lesson
// Body: {"courseId", "lessonId", "timeSpent"?, "score"?}
func (h *ProgressHandler) HandleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	// Score is a pointer so "no score sent" is distinguishable from an
	// explicit 0. Lessons without a quiz omit the field and count as a
	// full score.
	var in struct {
		CourseID  string `json:"courseId"`
		LessonID  int    `json:"lessonId"`
		TimeSpent int    `json:"timeSpent"`
		Score     *int   `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid request body"))
		return
	}

	score := 100
	if in.Score != nil {
		score = *in.Score
	}

	result, err := h.progress.CompleteLesson(r.Context(), userID, in.CourseID, in.LessonID, in.TimeSpent, score)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		*model.CompletionResult
	}{true, "lesson completed", result})
}

// HandleOverallProgress returns the account-wide aggregate. A user with
// no enrollments gets a zeroed structure, not an error.
//
// HTTP: GET /api/overall-progress
func (h *ProgressHandler) HandleOverallProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	overall, err := h.progress.OverallProgress(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success  bool                   `json:"success"`
		Progress *model.OverallProgress `json:"progress"`
	}{true, overall})
}

// HandleCourseProgress returns the derived progress for one course.
// progress is null when the user is not enrolled — the client treats
// that as "nothing yet", so it is not a 404.
//
// HTTP: GET /api/course/{courseId}/progress
func (h *ProgressHandler) HandleCourseProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	cp, err := h.progress.CourseProgress(r.Context(), userID, chi.URLParam(r, "courseId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success  bool                  `json:"success"`
		Progress *model.CourseProgress `json:"progress"`
	}{true, cp})
}

// HandleLessonStatus returns the gating state of one lesson.
//
// HTTP: GET /api/lesson-status/{courseId}/{lessonId}
func (h *ProgressHandler) HandleLessonStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	lessonID, err := strconv.Atoi(chi.URLParam(r, "lessonId"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("lessonId", "lessonId must be a number"))
		return
	}

	status, err := h.progress.LessonStatus(r.Context(), userID, chi.URLParam(r, "courseId"), lessonID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*model.LessonStatus
	}{true, status})
}
