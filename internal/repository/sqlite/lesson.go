package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/sakif/crypto-academy/internal/apperror"
	"github.com/sakif/crypto-academy/internal/model"
	"github.com/sakif/crypto-academy/internal/repository"
)

// LessonDB implements repository.LessonRepository over the shared pool.
type LessonDB struct {
	conn *sql.DB
}

var _ repository.LessonRepository = (*LessonDB)(nil)

const lessonColumns = `user_id, course_id, lesson_id, completed, completed_at,
	time_spent, score, xp_earned`

func scanLesson(scan func(dest ...any) error) (*model.LessonCompletion, error) {
	var lc model.LessonCompletion
	err := scan(
		&lc.UserID,
		&lc.CourseID,
		&lc.LessonID,
		&lc.Completed,
		&lc.CompletedAt,
		&lc.TimeSpent,
		&lc.Score,
		&lc.XPEarned,
	)
	if err != nil {
		return nil, err
	}
	return &lc, nil
}

// Get retrieves one lesson-completion record.
// Returns apperror.ErrNotFound for lessons the user never touched.
func (db *LessonDB) Get(ctx context.Context, userID, courseID string, lessonID int) (*model.LessonCompletion, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+lessonColumns+` FROM lesson_progress
		 WHERE user_id = ? AND course_id = ? AND lesson_id = ?`,
		userID, courseID, lessonID)

	lc, err := scanLesson(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("lesson", courseID+"_"+strconv.Itoa(lessonID))
		}
		return nil, fmt.Errorf("sqlite: getting lesson %s/%s/%d: %w", userID, courseID, lessonID, err)
	}
	return lc, nil
}

// ListByCourse returns every completion record of one course for one
// user. The aggregator builds a completed-lesson set from this instead of
// issuing one query per lesson number.
func (db *LessonDB) ListByCourse(ctx context.Context, userID, courseID string) ([]model.LessonCompletion, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+lessonColumns+` FROM lesson_progress
		 WHERE user_id = ? AND course_id = ? ORDER BY lesson_id`,
		userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing lessons for %s/%s: %w", userID, courseID, err)
	}
	defer rows.Close()

	lessons := []model.LessonCompletion{}
	for rows.Next() {
		lc, err := scanLesson(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning lesson: %w", err)
		}
		lessons = append(lessons, *lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating lessons: %w", err)
	}

	return lessons, nil
}

// Put inserts or replaces a lesson-completion record. The write-once
// guarantee (no double XP) is enforced by the service, which reads the
// record first under the per-user write lock; the storage layer simply
// stores whatever the engine decided.
func (db *LessonDB) Put(ctx context.Context, lc *model.LessonCompletion) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO lesson_progress (user_id, course_id, lesson_id, completed,
			completed_at, time_spent, score, xp_earned)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, course_id, lesson_id) DO UPDATE SET
			completed = excluded.completed,
			completed_at = excluded.completed_at,
			time_spent = excluded.time_spent,
			score = excluded.score,
			xp_earned = excluded.xp_earned`,
		lc.UserID,
		lc.CourseID,
		lc.LessonID,
		lc.Completed,
		lc.CompletedAt,
		lc.TimeSpent,
		lc.Score,
		lc.XPEarned,
	)
	if err != nil {
		return fmt.Errorf("sqlite: storing lesson %s/%s/%d: %w", lc.UserID, lc.CourseID, lc.LessonID, err)
	}
	return nil
}
