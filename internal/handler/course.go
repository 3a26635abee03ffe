package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/crypto-academy/internal/apperror"
	"github.com/sakif/crypto-academy/internal/auth"
	"github.com/sakif/crypto-academy/internal/model"
	"github.com/sakif/crypto-academy/internal/service"
)

// CourseHandler exposes the enrollment endpoints. All of them sit
// behind RequireAuth, so the user ID always comes from the token, never
// from the request body.
type CourseHandler struct {
	progress *service.ProgressService
	logger   *slog.Logger
}

func NewCourseHandler(progress *service.ProgressService, logger *slog.Logger) *CourseHandler {
	return &CourseHandler{progress: progress, logger: logger}
}

// enrollResponse is the success payload of enroll and save.
type enrollResponse struct {
	Success         bool                `json:"success"`
	Message         string              `json:"message"`
	Course          *model.Enrollment   `json:"course"`
	AlreadyEnrolled bool                `json:"alreadyEnrolled"`
	OverallStats    *model.OverallStats `json:"overallStats,omitempty"`
}

// HandleEnrollCourse enrolls the user in a course. Replaying the call
// for a course already enrolled succeeds without touching anything.
//
// HTTP: POST /api/enroll-course
// Body: {"courseId", "courseTitle"?, "courseIcon"?, "totalLessons"?}
func (h *CourseHandler) HandleEnrollCourse(w http.ResponseWriter, r *http.Request) {
	h.upsertCourse(w, r, h.progress.EnrollCourse, "enrolled in course")
}

// HandleSaveCourse upserts a course enrollment: creates it with
// defaults, or updates the metadata fields the body actually supplies.
//
// HTTP: POST /api/save-course
// Body: same as enroll-course
func (h *CourseHandler) HandleSaveCourse(w http.ResponseWriter, r *http.Request) {
	h.upsertCourse(w, r, h.progress.SaveCourse, "course saved")
}

type courseOp func(ctx context.Context, userID string, in service.CourseInput) (*service.EnrollResult, error)

// upsertCourse is the shared decode/respond shell of the two course
// write endpoints — only the service call differs.
func (h *CourseHandler) upsertCourse(w http.ResponseWriter, r *http.Request, op courseOp, message string) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var in service.CourseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid request body"))
		return
	}

	result, err := op(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.AlreadyEnrolled {
		message = "already enrolled in this course"
	}
	writeJSON(w, http.StatusOK, enrollResponse{
		Success:         true,
		Message:         message,
		Course:          result.Course,
		AlreadyEnrolled: result.AlreadyEnrolled,
		OverallStats:    result.OverallStats,
	})
}

// HandleMyCourses lists the user's enrollments with derived progress.
//
// HTTP: GET /api/my-courses (also mounted at /api/user/courses)
func (h *CourseHandler) HandleMyCourses(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	list, err := h.progress.MyCourses(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*service.CourseList
	}{true, list})
}

// HandleCheckEnrollment reports whether the user is enrolled in one
// course. Not enrolled is a normal answer: 200 with isEnrolled=false
// and a null progress, never a 404.
//
// HTTP: GET /api/check-enrollment/{courseId}
func (h *CourseHandler) HandleCheckEnrollment(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	cp, err := h.progress.CheckEnrollment(r.Context(), userID, chi.URLParam(r, "courseId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success    bool                  `json:"success"`
		IsEnrolled bool                  `json:"isEnrolled"`
		Progress   *model.CourseProgress `json:"progress"`
	}{true, cp != nil, cp})
}

// HandleCheckCourse reports whether a saved course exists for the user,
// returning its derived progress view under "course". The course editor
// uses it to decide create vs update.
//
// HTTP: GET /api/check-course/{courseId}
func (h *CourseHandler) HandleCheckCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	cp, err := h.progress.CheckEnrollment(r.Context(), userID, chi.URLParam(r, "courseId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool                  `json:"success"`
		Exists  bool                  `json:"exists"`
		Course  *model.CourseProgress `json:"course"`
	}{true, cp != nil, cp})
}
