package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/crypto-academy/internal/apperror"
	"github.com/sakif/crypto-academy/internal/model"
	"github.com/sakif/crypto-academy/internal/repository"
)

// EnrollmentDB implements repository.EnrollmentRepository over the shared pool.
type EnrollmentDB struct {
	conn *sql.DB
}

var _ repository.EnrollmentRepository = (*EnrollmentDB)(nil)

const enrollmentColumns = `user_id, course_id, course_title, course_icon,
	total_lessons, enrolled_at, last_accessed`

func scanEnrollment(scan func(dest ...any) error) (*model.Enrollment, error) {
	var e model.Enrollment
	err := scan(
		&e.UserID,
		&e.CourseID,
		&e.CourseTitle,
		&e.CourseIcon,
		&e.TotalLessons,
		&e.EnrolledAt,
		&e.LastAccessed,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new enrollment. The (user_id, course_id) primary key
// enforces at-most-one enrollment per pair; the service checks existence
// first, so a violation here surfaces as a conflict rather than silently
// replacing the row.
func (db *EnrollmentDB) Create(ctx context.Context, e *model.Enrollment) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO enrollments (user_id, course_id, course_title, course_icon,
			total_lessons, enrolled_at, last_accessed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID,
		e.CourseID,
		e.CourseTitle,
		e.CourseIcon,
		e.TotalLessons,
		e.EnrolledAt,
		e.LastAccessed,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("enrollment", "already enrolled in course "+e.CourseID)
		}
		return fmt.Errorf("sqlite: inserting enrollment %s/%s: %w", e.UserID, e.CourseID, err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing enrollment.
func (db *EnrollmentDB) Update(ctx context.Context, e *model.Enrollment) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE enrollments
		 SET course_title = ?, course_icon = ?, total_lessons = ?, last_accessed = ?
		 WHERE user_id = ? AND course_id = ?`,
		e.CourseTitle,
		e.CourseIcon,
		e.TotalLessons,
		e.LastAccessed,
		e.UserID,
		e.CourseID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating enrollment %s/%s: %w", e.UserID, e.CourseID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("enrollment", e.CourseID)
	}
	return nil
}

// Get retrieves one enrollment.
// Returns apperror.ErrNotFound when the user is not enrolled in courseID.
func (db *EnrollmentDB) Get(ctx context.Context, userID, courseID string) (*model.Enrollment, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments
		 WHERE user_id = ? AND course_id = ?`,
		userID, courseID)

	e, err := scanEnrollment(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("enrollment", courseID)
		}
		return nil, fmt.Errorf("sqlite: getting enrollment %s/%s: %w", userID, courseID, err)
	}
	return e, nil
}

// List returns every enrollment of one user, oldest first.
func (db *EnrollmentDB) List(ctx context.Context, userID string) ([]model.Enrollment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments
		 WHERE user_id = ? ORDER BY enrolled_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing enrollments for user %s: %w", userID, err)
	}
	defer rows.Close()

	enrollments := []model.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning enrollment: %w", err)
		}
		enrollments = append(enrollments, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating enrollments: %w", err)
	}

	return enrollments, nil
}

// Touch refreshes last_accessed only. Used on every lesson completion so
// the course list can sort by recent activity.
func (db *EnrollmentDB) Touch(ctx context.Context, userID, courseID string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE enrollments SET last_accessed = ? WHERE user_id = ? AND course_id = ?`,
		at, userID, courseID)
	if err != nil {
		return fmt.Errorf("sqlite: touching enrollment %s/%s: %w", userID, courseID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("enrollment", courseID)
	}
	return nil
}
