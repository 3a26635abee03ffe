package model

import "time"

// Lesson status values returned by the gating check.
const (
	LessonCompleted = "completed"
	LessonAvailable = "available"
	LessonLocked    = "locked"
)

// CourseProgress is the derived view of one enrollment: how many of its
// lessons are done and the rounded completion percentage. It is computed,
// never stored.
type CourseProgress struct {
	CourseID         string    `json:"courseId"`
	CourseTitle      string    `json:"courseTitle"`
	CourseIcon       string    `json:"courseIcon"`
	CompletedLessons int       `json:"completedLessons"`
	TotalLessons     int       `json:"totalLessons"`
	Percentage       int       `json:"percentage"`
	IsCompleted      bool      `json:"isCompleted"`
	LastAccessed     time.Time `json:"lastAccessed"`
	EnrolledAt       time.Time `json:"enrolledAt"`
}

// OverallStats is the account-wide rollup. Most fields are recomputed
// from enrollments and completions on every refresh; CurrentStreak,
// LongestStreak and DaysActive are carried over from the previously
// stored row unchanged — streak logic lives outside this backend.
type OverallStats struct {
	TotalLessonsCompleted int       `json:"totalLessonsCompleted"`
	TotalLessons          int       `json:"totalLessons"`
	CompletionRate        int       `json:"completionRate"`
	EnrolledCourses       int       `json:"enrolledCourses"`
	CompletedCourses      int       `json:"completedCourses"`
	TotalTimeSpent        int       `json:"totalTimeSpent"`
	AverageScore          int       `json:"averageScore"`
	AverageTimePerLesson  int       `json:"averageTimePerLesson"`
	LastActivity          time.Time `json:"lastActivity"`
	CurrentStreak         int       `json:"currentStreak"`
	LongestStreak         int       `json:"longestStreak"`
	DaysActive            int       `json:"daysActive"`
}

// OverallProgress aggregates every enrollment of one user plus the
// user's XP state. A user with no enrollments gets a zeroed structure,
// not an error.
type OverallProgress struct {
	TotalProgress    int              `json:"totalProgress"`
	CompletedCourses int              `json:"completedCourses"`
	EnrolledCourses  int              `json:"enrolledCourses"`
	CompletedLessons int              `json:"completedLessons"`
	TotalLessons     int              `json:"totalLessons"`
	Courses          []CourseProgress `json:"courses"`
	XP               int              `json:"xp"`
	Level            int              `json:"level"`
	Streak           int              `json:"streak"`
	OverallStats     OverallStats     `json:"overallStats"`
}

// LessonStatus is the gating result for a single lesson.
// Lesson 1 is always accessible; lesson n > 1 unlocks once lesson n-1
// (or n itself) is completed.
type LessonStatus struct {
	Status      string `json:"status"`
	CanAccess   bool   `json:"canAccess"`
	IsCompleted bool   `json:"isCompleted"`
}

// CompletionResult is returned by the lesson-completion write path.
// XPEarned is zero when the lesson had already been completed.
type CompletionResult struct {
	XPEarned        int              `json:"xpEarned"`
	User            UserSummary      `json:"user"`
	CourseProgress  *CourseProgress  `json:"courseProgress"`
	OverallProgress *OverallProgress `json:"overallProgress"`
}
