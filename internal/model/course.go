package model

import "time"

// Default display metadata for enrollments created without it.
const (
	DefaultCourseIcon   = "📚"
	DefaultTotalLessons = 1
)

// Enrollment links a user to a course. At most one exists per
// (UserID, CourseID) pair.
//
// TotalLessons is fixed when the enrollment is created and only changes
// when a later save supplies a new positive value — it is never adjusted
// implicitly. LastAccessed is refreshed on every lesson completion and on
// every re-save of the course.
type Enrollment struct {
	UserID       string    `json:"-"            db:"user_id"`
	CourseID     string    `json:"courseId"     db:"course_id"`
	CourseTitle  string    `json:"courseTitle"  db:"course_title"`
	CourseIcon   string    `json:"courseIcon"   db:"course_icon"`
	TotalLessons int       `json:"totalLessons" db:"total_lessons"`
	EnrolledAt   time.Time `json:"enrolledAt"   db:"enrolled_at"`
	LastAccessed time.Time `json:"lastAccessed" db:"last_accessed"`
}

// LessonCompletion records a user finishing one lesson of a course.
// Lessons are numbered 1..TotalLessons with no gaps.
//
// The record is write-once: once Completed is set the completion
// timestamp, time spent, score and XPEarned never change, and repeating
// the completion awards no further XP.
type LessonCompletion struct {
	UserID      string    `json:"-"           db:"user_id"`
	CourseID    string    `json:"courseId"    db:"course_id"`
	LessonID    int       `json:"lessonId"    db:"lesson_id"`
	Completed   bool      `json:"completed"   db:"completed"`
	CompletedAt time.Time `json:"completedAt" db:"completed_at"`
	TimeSpent   int       `json:"timeSpent"   db:"time_spent"` // seconds, caller-supplied
	Score       int       `json:"score"       db:"score"`      // caller-supplied
	XPEarned    int       `json:"xpEarned"    db:"xp_earned"`  // audit: XP awarded at first completion
}
