package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/crypto-academy/internal/apperror"
	"github.com/sakif/crypto-academy/internal/auth"
	"github.com/sakif/crypto-academy/internal/model"
	"github.com/sakif/crypto-academy/internal/repository"
	"github.com/sakif/crypto-academy/internal/service"
)

// sessionLifetime is how long the JWT cookie set by the OAuth callback
// lives. Matches the token's own expiry.
const sessionLifetime = 24 * time.Hour

// AuthHandler exposes the account endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an account, return token + user
//   - HandleLogin          → email-or-username + password login
//   - HandleVerifyAuth     → resolve the current token to its user
//   - HandleUpdateProfile  → apply allow-listed profile fields
//   - HandleGitHubLogin    → redirect the browser to GitHub
//   - HandleGitHubCallback → finish the OAuth flow, set the JWT cookie
//   - HandleLogout         → clear the JWT cookie
//
// The SPA sends the token as an Authorization: Bearer header; the OAuth
// flow delivers it as an HttpOnly cookie. The auth middleware accepts
// both.
type AuthHandler struct {
	auths  *service.AuthService
	github *auth.GitHubProvider // nil when GitHub login is not configured
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil; the server
// only mounts the OAuth routes when it isn't.
func NewAuthHandler(auths *service.AuthService, github *auth.GitHubProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auths: auths, github: github, logger: logger}
}

// authResponse is the success payload of register, login and verify.
type authResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token,omitempty"`
	User    *model.User `json:"user"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /api/register
// Body: {"username", "email", "password", "fullName"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid request body"))
		return
	}

	user, token, err := h.auths.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{Success: true, Token: token, User: user})
}

// HandleLogin authenticates by username or email.
//
// HTTP: POST /api/login
// Body: {"email", "password"} — email also accepts a username
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid request body"))
		return
	}

	login := in.Email
	if login == "" {
		login = in.Username
	}

	user, token, err := h.auths.Login(r.Context(), login, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Success: true, Token: token, User: user})
}

// HandleVerifyAuth returns the user behind the current token. The SPA
// calls it on load to restore a session.
//
// HTTP: GET /api/verify-auth
// Auth: required
func (h *AuthHandler) HandleVerifyAuth(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.auths.Verify(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Success: true, User: user})
}

// HandleUpdateProfile applies the allow-listed profile fields. Anything
// else in the body (xp, level, email, ...) is ignored, not an error.
//
// HTTP: PUT /api/profile
// Auth: required
// Body: any subset of {"fullName", "bio", "avatarUrl"}
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	// Nil pointer = field absent from the body = leave unchanged.
	var body struct {
		FullName  *string `json:"fullName"`
		Bio       *string `json:"bio"`
		AvatarURL *string `json:"avatarUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperror.ValidationFailed("", "invalid request body"))
		return
	}

	user, err := h.auths.UpdateProfile(r.Context(), userID, repository.ProfileUpdate{
		FullName:  body.FullName,
		Bio:       body.Bio,
		AvatarURL: body.AvatarURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Success: true, User: user})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization
// page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived HttpOnly cookie; the
// callback rejects any response whose state doesn't match it.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Upsert the account and issue a JWT
//  4. Set the JWT as an HttpOnly cookie and redirect to the app
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// State is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// User denied authorization on GitHub's page.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	_, token, err := h.auths.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// HttpOnly keeps the token away from page scripts; SameSite=Lax
	// still lets the top-level redirect below carry it.
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the JWT cookie. The token itself stays valid
// until expiry — logout just removes the browser's copy.
//
// HTTP: POST /api/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "logged out",
	})
}
