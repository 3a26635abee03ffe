package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/crypto-academy/internal/apperror"
	"github.com/sakif/crypto-academy/internal/model"
	"github.com/sakif/crypto-academy/internal/repository"
)

// StatsDB implements repository.StatsRepository over the shared pool.
type StatsDB struct {
	conn *sql.DB
}

var _ repository.StatsRepository = (*StatsDB)(nil)

// Get returns the stored overall-stats row for a user.
// Returns apperror.ErrNotFound if no row was ever saved (the auth flow
// saves an initial row at registration).
func (db *StatsDB) Get(ctx context.Context, userID string) (*model.OverallStats, error) {
	var s model.OverallStats
	err := db.conn.QueryRowContext(ctx,
		`SELECT total_lessons_completed, total_lessons, completion_rate,
			enrolled_courses, completed_courses, total_time_spent, average_score,
			average_time_per_lesson, last_activity, current_streak, longest_streak,
			days_active
		 FROM user_stats WHERE user_id = ?`,
		userID,
	).Scan(
		&s.TotalLessonsCompleted,
		&s.TotalLessons,
		&s.CompletionRate,
		&s.EnrolledCourses,
		&s.CompletedCourses,
		&s.TotalTimeSpent,
		&s.AverageScore,
		&s.AverageTimePerLesson,
		&s.LastActivity,
		&s.CurrentStreak,
		&s.LongestStreak,
		&s.DaysActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("stats", userID)
		}
		return nil, fmt.Errorf("sqlite: getting stats for user %s: %w", userID, err)
	}
	return &s, nil
}

// Save upserts the overall-stats row for a user.
func (db *StatsDB) Save(ctx context.Context, userID string, s *model.OverallStats) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_stats (user_id, total_lessons_completed, total_lessons,
			completion_rate, enrolled_courses, completed_courses, total_time_spent,
			average_score, average_time_per_lesson, last_activity, current_streak,
			longest_streak, days_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			total_lessons_completed = excluded.total_lessons_completed,
			total_lessons = excluded.total_lessons,
			completion_rate = excluded.completion_rate,
			enrolled_courses = excluded.enrolled_courses,
			completed_courses = excluded.completed_courses,
			total_time_spent = excluded.total_time_spent,
			average_score = excluded.average_score,
			average_time_per_lesson = excluded.average_time_per_lesson,
			last_activity = excluded.last_activity,
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			days_active = excluded.days_active`,
		userID,
		s.TotalLessonsCompleted,
		s.TotalLessons,
		s.CompletionRate,
		s.EnrolledCourses,
		s.CompletedCourses,
		s.TotalTimeSpent,
		s.AverageScore,
		s.AverageTimePerLesson,
		s.LastActivity,
		s.CurrentStreak,
		s.LongestStreak,
		s.DaysActive,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving stats for user %s: %w", userID, err)
	}
	return nil
}
