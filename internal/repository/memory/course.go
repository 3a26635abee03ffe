package memory

import (
	"context"
	"strconv"
	"time"

	"github.com/sakif/crypto-academy/internal/apperror"
	"github.com/sakif/crypto-academy/internal/model"
	"github.com/sakif/crypto-academy/internal/repository"
)

// EnrollmentStore implements repository.EnrollmentRepository.
type EnrollmentStore struct {
	s *Store
}

var _ repository.EnrollmentRepository = (*EnrollmentStore)(nil)

func (e *EnrollmentStore) Create(_ context.Context, enr *model.Enrollment) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	for _, existing := range e.s.enrollments[enr.UserID] {
		if existing.CourseID == enr.CourseID {
			return apperror.Conflict("enrollment", "already enrolled in course "+enr.CourseID)
		}
	}

	stored := *enr
	e.s.enrollments[enr.UserID] = append(e.s.enrollments[enr.UserID], &stored)
	return nil
}

func (e *EnrollmentStore) Update(_ context.Context, enr *model.Enrollment) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	for i, existing := range e.s.enrollments[enr.UserID] {
		if existing.CourseID == enr.CourseID {
			stored := *enr
			e.s.enrollments[enr.UserID][i] = &stored
			return nil
		}
	}
	return apperror.NotFound("enrollment", enr.CourseID)
}

func (e *EnrollmentStore) Get(_ context.Context, userID, courseID string) (*model.Enrollment, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	for _, existing := range e.s.enrollments[userID] {
		if existing.CourseID == courseID {
			result := *existing
			return &result, nil
		}
	}
	return nil, apperror.NotFound("enrollment", courseID)
}

func (e *EnrollmentStore) List(_ context.Context, userID string) ([]model.Enrollment, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	result := make([]model.Enrollment, 0, len(e.s.enrollments[userID]))
	for _, existing := range e.s.enrollments[userID] {
		result = append(result, *existing)
	}
	return result, nil
}

func (e *EnrollmentStore) Touch(_ context.Context, userID, courseID string, at time.Time) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	for _, existing := range e.s.enrollments[userID] {
		if existing.CourseID == courseID {
			existing.LastAccessed = at
			return nil
		}
	}
	return apperror.NotFound("enrollment", courseID)
}

// LessonStore implements repository.LessonRepository.
type LessonStore struct {
	s *Store
}

var _ repository.LessonRepository = (*LessonStore)(nil)

func (l *LessonStore) Get(_ context.Context, userID, courseID string, lessonID int) (*model.LessonCompletion, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	lc, ok := l.s.lessons[userID][lessonKey{courseID, lessonID}]
	if !ok {
		return nil, apperror.NotFound("lesson", courseID+"_"+strconv.Itoa(lessonID))
	}
	result := *lc
	return &result, nil
}

func (l *LessonStore) ListByCourse(_ context.Context, userID, courseID string) ([]model.LessonCompletion, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	result := []model.LessonCompletion{}
	for key, lc := range l.s.lessons[userID] {
		if key.courseID == courseID {
			result = append(result, *lc)
		}
	}
	return result, nil
}

func (l *LessonStore) Put(_ context.Context, lc *model.LessonCompletion) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	if l.s.lessons[lc.UserID] == nil {
		l.s.lessons[lc.UserID] = make(map[lessonKey]*model.LessonCompletion)
	}
	stored := *lc
	l.s.lessons[lc.UserID][lessonKey{lc.CourseID, lc.LessonID}] = &stored
	return nil
}

// StatsStore implements repository.StatsRepository.
type StatsStore struct {
	s *Store
}

var _ repository.StatsRepository = (*StatsStore)(nil)

func (st *StatsStore) Get(_ context.Context, userID string) (*model.OverallStats, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()

	stats, ok := st.s.stats[userID]
	if !ok {
		return nil, apperror.NotFound("stats", userID)
	}
	result := *stats
	return &result, nil
}

func (st *StatsStore) Save(_ context.Context, userID string, stats *model.OverallStats) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	stored := *stats
	st.s.stats[userID] = &stored
	return nil
}
