package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/crypto-academy/internal/apperror"
	"github.com/sakif/crypto-academy/internal/model"
	"github.com/sakif/crypto-academy/internal/repository"
)

// UserStore implements repository.UserRepository over the shared maps.
type UserStore struct {
	s *Store
}

var _ repository.UserRepository = (*UserStore)(nil)

func (u *UserStore) Create(_ context.Context, user *model.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	for _, existing := range u.s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return apperror.Conflict("user", "a user with this username or email already exists")
		}
	}

	now := time.Now()
	u.s.seq++
	user.ID = fmt.Sprintf("u-%d", u.s.seq)
	user.CreatedAt = now
	user.LastLogin = now
	user.Level = model.LevelForXP(user.XP)

	stored := *user
	u.s.users[user.ID] = &stored
	return nil
}

func (u *UserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	user, ok := u.s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *user
	return &result, nil
}

func (u *UserStore) GetByLogin(_ context.Context, login string) (*model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	for _, user := range u.s.users {
		if user.Username == login || user.Email == login {
			result := *user
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", login)
}

func (u *UserStore) UpsertByGitHubID(_ context.Context, user *model.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	for _, existing := range u.s.users {
		if existing.GitHubID == user.GitHubID && user.GitHubID != 0 {
			existing.FullName = user.FullName
			existing.AvatarURL = user.AvatarURL
			existing.LastLogin = time.Now()
			*user = *existing
			return nil
		}
	}

	now := time.Now()
	u.s.seq++
	user.ID = fmt.Sprintf("u-%d", u.s.seq)
	user.CreatedAt = now
	user.LastLogin = now
	user.Level = model.LevelForXP(user.XP)

	stored := *user
	u.s.users[user.ID] = &stored
	return nil
}

func (u *UserStore) UpdateProgress(_ context.Context, id string, xp, level int) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	user.XP = xp
	user.Level = level
	return nil
}

func (u *UserStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	user.LastLogin = at
	return nil
}

func (u *UserStore) UpdateProfile(_ context.Context, id string, upd repository.ProfileUpdate) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	if upd.FullName != nil {
		user.FullName = *upd.FullName
	}
	if upd.Bio != nil {
		user.Bio = *upd.Bio
	}
	if upd.AvatarURL != nil {
		user.AvatarURL = *upd.AvatarURL
	}
	result := *user
	return &result, nil
}
