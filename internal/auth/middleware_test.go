package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// echoUserID is the protected handler under test: it just writes the
// user ID RequireAuth put into the context.
func echoUserID(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			t.Error("no userID in context behind RequireAuth")
		}
		w.Write([]byte(userID))
	})
}

func TestRequireAuth_BearerHeader(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate("user-42")

	req := httptest.NewRequest(http.MethodGet, "/api/verify-auth", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	RequireAuth(ts)(echoUserID(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", rec.Body.String())
}

func TestRequireAuth_CookieFallback(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate("user-42")

	// No Authorization header — the OAuth flow delivers the token as a
	// cookie instead.
	req := httptest.NewRequest(http.MethodGet, "/api/verify-auth", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rec := httptest.NewRecorder()

	RequireAuth(ts)(echoUserID(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", rec.Body.String())
}

func TestRequireAuth_Rejections(t *testing.T) {
	ts := newTestTokenService(t)
	other, _ := NewTokenService("a-completely-different-secret!!!")
	foreignToken, _ := other.Generate("user-42")

	cases := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"no credentials", func(r *http.Request) {}},
		{"malformed header", func(r *http.Request) {
			r.Header.Set("Authorization", "Token abc")
		}},
		{"garbage bearer", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer not-a-jwt")
		}},
		{"wrong key", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+foreignToken)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/verify-auth", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
			RequireAuth(ts)(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called, "handler must not run without valid auth")
			assert.JSONEq(t, `{"success":false,"error":"valid authentication required"}`, rec.Body.String())
		})
	}
}

func TestUserIDFromContext_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	id, ok := UserIDFromContext(req.Context())
	assert.False(t, ok)
	assert.Empty(t, id)
}
