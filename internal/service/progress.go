package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sakif/crypto-academy/internal/apperror"
	"github.com/sakif/crypto-academy/internal/model"
	"github.com/sakif/crypto-academy/internal/repository"
)

// XP award for a first-time lesson completion: a flat base plus a bonus
// per full minute spent on the lesson. Repeat completions award nothing.
const (
	xpBase      = 100
	xpPerMinute = 10
)

// ProgressService owns the learning-progress rules: enrollment, lesson
// completion, XP awards, gating, and the derived progress views.
//
// Writes for the same user are serialized through a per-user mutex so
// two concurrent completions of the same lesson can't both observe it
// as incomplete and award XP twice. Different users never contend.
type ProgressService struct {
	users       repository.UserRepository
	enrollments repository.EnrollmentRepository
	lessons     repository.LessonRepository
	stats       repository.StatsRepository
	logger      *slog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewProgressService creates a ProgressService backed by the given stores.
func NewProgressService(
	users repository.UserRepository,
	enrollments repository.EnrollmentRepository,
	lessons repository.LessonRepository,
	stats repository.StatsRepository,
	logger *slog.Logger,
) *ProgressService {
	return &ProgressService{
		users:       users,
		enrollments: enrollments,
		lessons:     lessons,
		stats:       stats,
		logger:      logger,
		userLocks:   make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex guarding writes for one user, creating it
// on first use. Locks are never removed; the map grows with the number
// of distinct users seen by this process, which is fine at this scale.
func (s *ProgressService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// CourseInput carries the course metadata supplied by the client when
// enrolling or saving a course. Only CourseID is required; the rest
// falls back to defaults for a new enrollment and to the stored values
// for an existing one.
type CourseInput struct {
	CourseID     string `json:"courseId"`
	CourseTitle  string `json:"courseTitle"`
	CourseIcon   string `json:"courseIcon"`
	TotalLessons int    `json:"totalLessons"`
}

// EnrollResult is returned by EnrollCourse and SaveCourse.
type EnrollResult struct {
	Course          *model.Enrollment   `json:"course"`
	AlreadyEnrolled bool                `json:"alreadyEnrolled"`
	OverallStats    *model.OverallStats `json:"overallStats,omitempty"`
}

// CourseList is the response of MyCourses: every enrollment with its
// derived progress, plus the headline counts.
type CourseList struct {
	Courses          []model.CourseProgress `json:"courses"`
	EnrolledCourses  int                    `json:"enrolledCourses"`
	CompletedCourses int                    `json:"completedCourses"`
}

// EnrollCourse enrolls the user in a course. Enrolling twice is not an
// error: the existing enrollment is returned untouched with
// AlreadyEnrolled set, so the client can't reset anyone's progress by
// replaying the call.
func (s *ProgressService) EnrollCourse(ctx context.Context, userID string, in CourseInput) (*EnrollResult, error) {
	if in.CourseID == "" {
		return nil, apperror.ValidationFailed("courseId", "courseId is required")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := s.enrollments.Get(ctx, userID, in.CourseID); err == nil {
		return &EnrollResult{Course: existing, AlreadyEnrolled: true}, nil
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	e := newEnrollment(userID, in)
	if e.CourseTitle == "" {
		e.CourseTitle = "Course " + in.CourseID
	}
	if err := s.enrollments.Create(ctx, e); err != nil {
		return nil, err
	}

	overall, err := s.refreshStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("course enrolled",
		slog.String("userID", userID),
		slog.String("courseID", in.CourseID),
	)

	return &EnrollResult{Course: e, OverallStats: &overall.OverallStats}, nil
}

// SaveCourse upserts a course enrollment. A new course gets the default
// metadata for anything not supplied; an existing one keeps its stored
// values except for the fields the client actually sent, and gets its
// last-accessed time refreshed. Completion records are never touched.
func (s *ProgressService) SaveCourse(ctx context.Context, userID string, in CourseInput) (*EnrollResult, error) {
	if in.CourseID == "" {
		return nil, apperror.ValidationFailed("courseId", "courseId is required")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	existing, err := s.enrollments.Get(ctx, userID, in.CourseID)
	switch {
	case err == nil:
		if in.CourseTitle != "" {
			existing.CourseTitle = in.CourseTitle
		}
		if in.CourseIcon != "" {
			existing.CourseIcon = in.CourseIcon
		}
		if in.TotalLessons > 0 {
			existing.TotalLessons = in.TotalLessons
		}
		existing.LastAccessed = now
		if err := s.enrollments.Update(ctx, existing); err != nil {
			return nil, err
		}
		overall, err := s.refreshStats(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &EnrollResult{Course: existing, AlreadyEnrolled: true, OverallStats: &overall.OverallStats}, nil

	case errors.Is(err, apperror.ErrNotFound):
		e := newEnrollment(userID, in)
		if e.CourseTitle == "" {
			e.CourseTitle = in.CourseID
		}
		if err := s.enrollments.Create(ctx, e); err != nil {
			return nil, err
		}
		overall, err := s.refreshStats(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("course saved",
			slog.String("userID", userID),
			slog.String("courseID", in.CourseID),
		)
		return &EnrollResult{Course: e, OverallStats: &overall.OverallStats}, nil

	default:
		return nil, err
	}
}

// MyCourses lists every enrollment of the user with derived progress.
func (s *ProgressService) MyCourses(ctx context.Context, userID string) (*CourseList, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	enrollments, err := s.enrollments.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	list := &CourseList{Courses: make([]model.CourseProgress, 0, len(enrollments))}
	for i := range enrollments {
		cp, _, err := s.aggregateCourse(ctx, userID, &enrollments[i])
		if err != nil {
			return nil, err
		}
		if cp.IsCompleted {
			list.CompletedCourses++
		}
		list.Courses = append(list.Courses, cp)
	}
	list.EnrolledCourses = len(list.Courses)
	return list, nil
}

// CheckEnrollment reports whether the user is enrolled in a course.
// Not being enrolled is an answer, not an error: it returns (nil, nil).
func (s *ProgressService) CheckEnrollment(ctx context.Context, userID, courseID string) (*model.CourseProgress, error) {
	if courseID == "" {
		return nil, apperror.ValidationFailed("courseId", "courseId is required")
	}
	return s.CourseProgress(ctx, userID, courseID)
}

// CourseProgress computes the derived progress view for one enrollment.
// An unknown enrollment yields (nil, nil) — "no progress yet" is an
// expected state the client renders, not a failure.
func (s *ProgressService) CourseProgress(ctx context.Context, userID, courseID string) (*model.CourseProgress, error) {
	e, err := s.enrollments.Get(ctx, userID, courseID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cp, _, err := s.aggregateCourse(ctx, userID, e)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// OverallProgress aggregates all of the user's enrollments plus the XP
// state into one structure. A user with no enrollments gets zeros, not
// an error. This is a pure read: nothing is written.
func (s *ProgressService) OverallProgress(ctx context.Context, userID string) (*model.OverallProgress, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.computeOverall(ctx, user)
}

// LessonStatus reports the gating state of one lesson. Lesson 1 is
// always accessible; a later lesson unlocks when the one before it (or
// the lesson itself) is completed.
func (s *ProgressService) LessonStatus(ctx context.Context, userID, courseID string, lessonID int) (*model.LessonStatus, error) {
	if courseID == "" {
		return nil, apperror.ValidationFailed("courseId", "courseId is required")
	}
	if lessonID < 1 {
		return nil, apperror.ValidationFailed("lessonId", "lessonId must be a positive number")
	}

	isCompleted, err := s.lessonCompleted(ctx, userID, courseID, lessonID)
	if err != nil {
		return nil, err
	}

	canAccess := true
	if lessonID > 1 {
		prevCompleted, err := s.lessonCompleted(ctx, userID, courseID, lessonID-1)
		if err != nil {
			return nil, err
		}
		canAccess = prevCompleted || isCompleted
	}

	status := model.LessonLocked
	switch {
	case isCompleted:
		status = model.LessonCompleted
	case canAccess:
		status = model.LessonAvailable
	}

	return &model.LessonStatus{
		Status:      status,
		CanAccess:   canAccess,
		IsCompleted: isCompleted,
	}, nil
}

// CompleteLesson records a lesson completion and awards XP.
//
// The first completion of a lesson writes an immutable record and awards
// xpBase plus xpPerMinute per full minute of timeSpent. Completing the
// same lesson again changes nothing and awards nothing, but still
// refreshes the enrollment's last-accessed time and succeeds — clients
// replay this call freely.
func (s *ProgressService) CompleteLesson(ctx context.Context, userID, courseID string, lessonID, timeSpent, score int) (*model.CompletionResult, error) {
	if courseID == "" || lessonID < 1 {
		return nil, apperror.ValidationFailed("", "courseId and lessonId are required")
	}
	if timeSpent < 0 {
		timeSpent = 0
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.enrollments.Get(ctx, userID, courseID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("courseId", "course not found, enroll in the course first")
		}
		return nil, err
	}

	now := time.Now()
	xpEarned := 0

	alreadyDone, err := s.lessonCompleted(ctx, userID, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	if !alreadyDone {
		xpEarned = xpBase + timeSpent/60*xpPerMinute
		lc := &model.LessonCompletion{
			UserID:      userID,
			CourseID:    courseID,
			LessonID:    lessonID,
			Completed:   true,
			CompletedAt: now,
			TimeSpent:   timeSpent,
			Score:       score,
			XPEarned:    xpEarned,
		}
		if err := s.lessons.Put(ctx, lc); err != nil {
			return nil, err
		}

		user.XP += xpEarned
		user.Level = model.LevelForXP(user.XP)
		if err := s.users.UpdateProgress(ctx, userID, user.XP, user.Level); err != nil {
			return nil, err
		}
	}

	if err := s.enrollments.Touch(ctx, userID, courseID, now); err != nil {
		return nil, err
	}

	overall, err := s.refreshStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	courseProgress, err := s.CourseProgress(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("lesson completed",
		slog.String("userID", userID),
		slog.String("courseID", courseID),
		slog.Int("lessonID", lessonID),
		slog.Int("xpEarned", xpEarned),
	)

	return &model.CompletionResult{
		XPEarned:        xpEarned,
		User:            user.Summary(),
		CourseProgress:  courseProgress,
		OverallProgress: overall,
	}, nil
}

// courseTally carries the per-course sums feeding the overall-stats
// rollup, on top of what CourseProgress already exposes.
type courseTally struct {
	timeSpent  int // seconds across completed lessons
	scoreSum   int
	scoreCount int
}

// aggregateCourse derives the progress view for one enrollment. Only
// completion records whose lesson number falls inside 1..TotalLessons
// count — stale records from a shrunk course don't inflate percentages.
func (s *ProgressService) aggregateCourse(ctx context.Context, userID string, e *model.Enrollment) (model.CourseProgress, courseTally, error) {
	records, err := s.lessons.ListByCourse(ctx, userID, e.CourseID)
	if err != nil {
		return model.CourseProgress{}, courseTally{}, err
	}

	var completed int
	var tally courseTally
	for i := range records {
		r := &records[i]
		if !r.Completed || r.LessonID < 1 || r.LessonID > e.TotalLessons {
			continue
		}
		completed++
		tally.timeSpent += r.TimeSpent
		// Score 0 means no quiz was scored for that lesson; it must not
		// drag the average down.
		if r.Score > 0 {
			tally.scoreSum += r.Score
			tally.scoreCount++
		}
	}

	pct := percentage(completed, e.TotalLessons)
	return model.CourseProgress{
		CourseID:         e.CourseID,
		CourseTitle:      e.CourseTitle,
		CourseIcon:       e.CourseIcon,
		CompletedLessons: completed,
		TotalLessons:     e.TotalLessons,
		Percentage:       pct,
		IsCompleted:      pct == 100,
		LastAccessed:     e.LastAccessed,
		EnrolledAt:       e.EnrolledAt,
	}, tally, nil
}

// computeOverall builds the full aggregate for a user. The streak
// fields come from the stored stats row unchanged; everything else is
// recomputed from the current enrollments and completions.
func (s *ProgressService) computeOverall(ctx context.Context, user *model.User) (*model.OverallProgress, error) {
	enrollments, err := s.enrollments.List(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	overall := &model.OverallProgress{
		Courses: make([]model.CourseProgress, 0, len(enrollments)),
		XP:      user.XP,
		Level:   user.Level,
		Streak:  user.Streak,
	}

	var totalTime, scoreSum, scoreCount int
	for i := range enrollments {
		cp, tally, err := s.aggregateCourse(ctx, user.ID, &enrollments[i])
		if err != nil {
			return nil, err
		}
		overall.Courses = append(overall.Courses, cp)
		overall.CompletedLessons += cp.CompletedLessons
		overall.TotalLessons += cp.TotalLessons
		if cp.IsCompleted {
			overall.CompletedCourses++
		}
		totalTime += tally.timeSpent
		scoreSum += tally.scoreSum
		scoreCount += tally.scoreCount
	}
	overall.EnrolledCourses = len(overall.Courses)
	overall.TotalProgress = percentage(overall.CompletedLessons, overall.TotalLessons)

	prior, err := s.stats.Get(ctx, user.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		prior = initialStats()
	} else if err != nil {
		return nil, err
	}

	stats := model.OverallStats{
		TotalLessonsCompleted: overall.CompletedLessons,
		TotalLessons:          overall.TotalLessons,
		CompletionRate:        overall.TotalProgress,
		EnrolledCourses:       overall.EnrolledCourses,
		CompletedCourses:      overall.CompletedCourses,
		TotalTimeSpent:        totalTime,
		LastActivity:          time.Now(),
		CurrentStreak:         prior.CurrentStreak,
		LongestStreak:         prior.LongestStreak,
		DaysActive:            prior.DaysActive,
	}
	if scoreCount > 0 {
		stats.AverageScore = int(math.Round(float64(scoreSum) / float64(scoreCount)))
	}
	if overall.CompletedLessons > 0 {
		stats.AverageTimePerLesson = int(math.Round(float64(totalTime) / float64(overall.CompletedLessons)))
	}
	overall.OverallStats = stats

	return overall, nil
}

// refreshStats recomputes the overall aggregate and persists the stats
// row. Called after every mutating operation so the stored row always
// reflects the latest state.
func (s *ProgressService) refreshStats(ctx context.Context, userID string) (*model.OverallProgress, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	overall, err := s.computeOverall(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.stats.Save(ctx, userID, &overall.OverallStats); err != nil {
		return nil, fmt.Errorf("saving stats: %w", err)
	}
	return overall, nil
}

// lessonCompleted reports whether a completion record exists and is
// marked completed. A missing record is simply "not completed".
func (s *ProgressService) lessonCompleted(ctx context.Context, userID, courseID string, lessonID int) (bool, error) {
	lc, err := s.lessons.Get(ctx, userID, courseID, lessonID)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return lc.Completed, nil
}

// newEnrollment builds an enrollment from the client input, filling in
// defaults for anything missing. Title defaulting differs between the
// enroll and save paths, so callers set it.
func newEnrollment(userID string, in CourseInput) *model.Enrollment {
	now := time.Now()
	e := &model.Enrollment{
		UserID:       userID,
		CourseID:     in.CourseID,
		CourseTitle:  in.CourseTitle,
		CourseIcon:   in.CourseIcon,
		TotalLessons: in.TotalLessons,
		EnrolledAt:   now,
		LastAccessed: now,
	}
	if e.CourseIcon == "" {
		e.CourseIcon = model.DefaultCourseIcon
	}
	if e.TotalLessons <= 0 {
		e.TotalLessons = model.DefaultTotalLessons
	}
	return e
}

// percentage computes the round-half-up completion percentage.
// int(math.Round) is exact here: done/total*100 for small integers never
// lands on a .5 float artifact that would flip the rounding direction.
func percentage(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
