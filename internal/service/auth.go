// Package service contains the business logic layer.
//
// Handlers parse HTTP and map errors to status codes; services enforce
// the platform rules; repositories read and write records. Services
// receive repository interfaces, so the same rules run over SQLite, the
// in-memory store, or the fakes in tests without changing a line here.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/crypto-academy/internal/apperror"
	"github.com/sakif/crypto-academy/internal/auth"
	"github.com/sakif/crypto-academy/internal/model"
	"github.com/sakif/crypto-academy/internal/repository"
)

// AuthService handles registration, login and identity resolution.
//
// Two identity paths exist: email/password (Register/Login) and GitHub
// OAuth (LoginWithGitHub). Both end in the same place — a user row and a
// signed JWT.
type AuthService struct {
	users     repository.UserRepository
	stats     repository.StatsRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	stats repository.StatsRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		stats:     stats,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// RegisterInput carries the registration form fields. All are required.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// Register creates a new account: validates the form, hashes the
// password, stores the user with zeroed progress (xp 0, level 1, streak
// 0), seeds the overall-stats row, and issues a session token.
//
// A username or email already in use surfaces as apperror.ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, string, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	if in.Username == "" || in.Email == "" || in.Password == "" || in.FullName == "" {
		return nil, "", apperror.ValidationFailed("", "all fields are required")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, "", apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	// Seed the stats row so the first overall-progress read has a prior
	// state to carry streak fields from.
	if err := s.stats.Save(ctx, user.ID, initialStats()); err != nil {
		s.logger.Error("failed to seed stats row",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, "", fmt.Errorf("seeding stats: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return user, token, nil
}

// Login authenticates by username or email plus password and issues a
// session token. Wrong login and wrong password produce the same
// "invalid email or password" — no account probing.
func (s *AuthService) Login(ctx context.Context, login, password string) (*model.User, string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, "", apperror.ValidationFailed("", "email and password are required")
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, "", apperror.Unauthorized("invalid email or password")
	}

	// OAuth-only accounts have no password hash; they can't log in here.
	if user.PasswordHash == "" {
		return nil, "", apperror.Unauthorized("invalid email or password")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, "", apperror.Unauthorized("invalid email or password")
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Error("failed to update last login",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	} else {
		user.LastLogin = now
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return user, token, nil
}

// LoginWithGitHub upserts the account matching a GitHub profile and
// issues a session token. First-time GitHub users get a fresh account
// with zeroed progress; returning users keep their ID and XP.
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*model.User, string, error) {
	email := gh.Email
	if email == "" {
		// GitHub users may hide their email; fall back to the noreply
		// address so the NOT NULL UNIQUE email column stays meaningful.
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", gh.ID, gh.Login)
	}
	fullName := gh.Name
	if fullName == "" {
		fullName = gh.Login
	}

	user := &model.User{
		Username:  gh.Login,
		Email:     email,
		FullName:  fullName,
		AvatarURL: gh.AvatarURL,
		GitHubID:  gh.ID,
	}
	if err := s.users.UpsertByGitHubID(ctx, user); err != nil {
		return nil, "", err
	}

	// First GitHub login has no stats row yet.
	if _, err := s.stats.Get(ctx, user.ID); err != nil {
		if err := s.stats.Save(ctx, user.ID, initialStats()); err != nil {
			return nil, "", fmt.Errorf("seeding stats: %w", err)
		}
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("user logged in via GitHub",
		slog.String("userID", user.ID),
		slog.Int64("githubID", gh.ID),
	)

	return user, token, nil
}

// Verify resolves a user ID (from a validated token) back to the
// account. Used by the verify-auth endpoint on SPA load.
func (s *AuthService) Verify(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile applies the allow-listed profile fields.
// Progress fields (xp, level, streak) are not updatable here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, upd repository.ProfileUpdate) (*model.User, error) {
	user, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return user, nil
}

// initialStats is the stats row seeded at account creation: nothing done
// yet, first active day counted.
func initialStats() *model.OverallStats {
	return &model.OverallStats{
		LastActivity: time.Now(),
		DaysActive:   1,
	}
}
