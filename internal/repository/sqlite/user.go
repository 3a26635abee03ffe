package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/crypto-academy/internal/apperror"
	"github.com/sakif/crypto-academy/internal/model"
	"github.com/sakif/crypto-academy/internal/repository"
)

// UserDB implements repository.UserRepository over the shared pool.
type UserDB struct {
	conn *sql.DB
}

var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, username, email, full_name, password_hash, github_id,
	avatar_url, bio, xp, level, streak, created_at, last_login`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.GitHubID,
		&u.AvatarURL,
		&u.Bio,
		&u.XP,
		&u.Level,
		&u.Streak,
		&u.CreatedAt,
		&u.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user. The ID, timestamps and level are filled in
// here; a violated username/email UNIQUE constraint comes back as an
// apperror.Conflict so the service can report "already exists" without
// inspecting driver errors itself.
func (db *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.LastLogin = now
	user.Level = model.LevelForXP(user.XP)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, full_name, password_hash, github_id,
			avatar_url, bio, xp, level, streak, created_at, last_login)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.GitHubID,
		user.AvatarURL,
		user.Bio,
		user.XP,
		user.Level,
		user.Streak,
		user.CreatedAt,
		user.LastLogin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "a user with this username or email already exists")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByLogin retrieves a user by username or email — the login form
// accepts either.
func (db *UserDB) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ?`,
		login, login)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", login)
		}
		return nil, fmt.Errorf("sqlite: getting user by login %q: %w", login, err)
	}
	return u, nil
}

// UpsertByGitHubID inserts a user on their first GitHub login and
// refreshes profile fields on later ones. The internal ID, XP and level
// of an existing account are kept — a returning user must not lose
// progress because their GitHub profile changed.
func (db *UserDB) UpsertByGitHubID(ctx context.Context, user *model.User) error {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, user.GitHubID)

	existing, err := scanUser(row)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existing != nil {
		now := time.Now()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET full_name = ?, avatar_url = ?, last_login = ? WHERE id = ?`,
			user.FullName, user.AvatarURL, now, existing.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", existing.ID, err)
		}
		existing.FullName = user.FullName
		existing.AvatarURL = user.AvatarURL
		existing.LastLogin = now
		*user = *existing
		return nil
	}

	return db.Create(ctx, user)
}

// UpdateProgress persists a new XP/level pair. Both values are written in
// one statement so the level invariant can't straddle two writes.
func (db *UserDB) UpdateProgress(ctx context.Context, id string, xp, level int) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET xp = ?, level = ? WHERE id = ?`, xp, level, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating progress for user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// UpdateLastLogin stamps the user's last login time.
func (db *UserDB) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating last login for user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// UpdateProfile applies the allow-listed profile fields and returns the
// updated user. Nil fields are left untouched.
func (db *UserDB) UpdateProfile(ctx context.Context, id string, upd repository.ProfileUpdate) (*model.User, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if upd.FullName != nil {
		sets = append(sets, "full_name = ?")
		args = append(args, *upd.FullName)
	}
	if upd.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, *upd.Bio)
	}
	if upd.AvatarURL != nil {
		sets = append(sets, "avatar_url = ?")
		args = append(args, *upd.AvatarURL)
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := db.conn.ExecContext(ctx,
			`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, fmt.Errorf("sqlite: updating profile for user %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, apperror.NotFound("user", id)
		}
	}

	return db.GetByID(ctx, id)
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// modernc.org/sqlite doesn't export a typed error for this, so we match
// the SQLite error text ("UNIQUE constraint failed: users.username").
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
