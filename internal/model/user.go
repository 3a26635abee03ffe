// Package model defines the data structures used throughout the application.
package model

import "time"

// levelStep is the XP cost of one level. Level 1 starts at 0 XP.
const levelStep = 1000

// User represents a registered learner account.
//
// Identity is either email/password (the normal registration flow) or a
// GitHub account (OAuth flow). In both cases we generate our own internal
// string ID (xid) so primary keys never depend on a third party's scheme.
//
// PasswordHash is the bcrypt hash for password accounts and empty for
// OAuth-only accounts. It is tagged `json:"-"` so it can never leak into a
// response, no matter which handler serializes the user.
//
// XP only ever grows (first-time lesson completions award it once), and
// Level is derived from XP — see LevelForXP. Streak is a stored value:
// this backend preserves it but does not compute streak logic.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"`
	FullName     string    `json:"fullName"  db:"full_name"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	GitHubID     int64     `json:"-"         db:"github_id"` // 0 for password accounts
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"`
	Bio          string    `json:"bio"       db:"bio"`
	XP           int       `json:"xp"        db:"xp"`
	Level        int       `json:"level"     db:"level"`
	Streak       int       `json:"streak"    db:"streak"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	LastLogin    time.Time `json:"lastLogin" db:"last_login"`
}

// LevelForXP derives the level for a given XP total.
// Invariant: User.Level must always equal LevelForXP(User.XP).
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/levelStep + 1
}

// UserSummary is the trimmed user view returned alongside lesson-completion
// results — just enough for the client to refresh its XP/level display.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	XP       int    `json:"xp"`
	Level    int    `json:"level"`
}

// Summary returns the trimmed view of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		XP:       u.XP,
		Level:    u.Level,
	}
}
