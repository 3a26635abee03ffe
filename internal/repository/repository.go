// Package repository defines the storage interfaces the rest of the
// application programs against.
//
// The progress engine only needs get/set-by-key access to four record
// types, so each entity gets a small interface. Two implementations
// exist: sqlite (persistent, the default) and memory (map-backed, used
// in tests and as a no-persistence mode). Services receive these
// interfaces, never a concrete store.
package repository

import (
	"context"
	"time"

	"github.com/sakif/crypto-academy/internal/model"
)

// ProfileUpdate carries the fields a user may change about themselves.
// A nil field means "leave unchanged".
type ProfileUpdate struct {
	FullName  *string
	Bio       *string
	AvatarURL *string
}

// UserRepository stores user accounts.
//
// GetByLogin matches either username or email — the login form accepts
// both. UpdateProgress persists the XP/level pair atomically so the
// level invariant can't be split across two writes.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	UpsertByGitHubID(ctx context.Context, user *model.User) error
	UpdateProgress(ctx context.Context, id string, xp, level int) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*model.User, error)
}

// EnrollmentRepository stores (user, course) enrollments.
// Get returns apperror.ErrNotFound when the user is not enrolled.
type EnrollmentRepository interface {
	Create(ctx context.Context, e *model.Enrollment) error
	Update(ctx context.Context, e *model.Enrollment) error
	Get(ctx context.Context, userID, courseID string) (*model.Enrollment, error)
	List(ctx context.Context, userID string) ([]model.Enrollment, error)
	// Touch refreshes last_accessed without rewriting the enrollment.
	Touch(ctx context.Context, userID, courseID string, at time.Time) error
}

// LessonRepository stores per-lesson completion records.
// Get returns apperror.ErrNotFound for lessons never touched.
type LessonRepository interface {
	Get(ctx context.Context, userID, courseID string, lessonID int) (*model.LessonCompletion, error)
	ListByCourse(ctx context.Context, userID, courseID string) ([]model.LessonCompletion, error)
	Put(ctx context.Context, lc *model.LessonCompletion) error
}

// StatsRepository stores the per-user overall-stats row. Only the streak
// fields and DaysActive truly need persistence (they are preserved, not
// computed); the rest is refreshed on every mutating operation so the
// stored row always matches the last write.
type StatsRepository interface {
	Get(ctx context.Context, userID string) (*model.OverallStats, error)
	Save(ctx context.Context, userID string, stats *model.OverallStats) error
}
