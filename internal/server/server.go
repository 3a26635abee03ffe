// Package server wires the application together: database, services,
// handlers, middleware, routes, and the HTTP lifecycle.
//
// This is the composition root — every dependency chain is assembled in
// New/setupRoutes, nowhere else. main.go only loads config and calls
// Start.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/crypto-academy/internal/auth"
	"github.com/sakif/crypto-academy/internal/handler"
	"github.com/sakif/crypto-academy/internal/middleware"
	sqliteRepo "github.com/sakif/crypto-academy/internal/repository/sqlite"
	"github.com/sakif/crypto-academy/internal/service"
)

// Config holds everything the server needs to run. Loaded from the
// environment by main.go.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string

	// StaticDir, when set, is the built SPA bundle to serve alongside
	// the API. Empty means API-only.
	StaticDir string

	// GitHub OAuth is optional: the routes are only mounted when a
	// client ID is configured.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server owns the router and the resources that must be released on
// shutdown (the database connection).
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and assembles the full dependency chain:
// repositories → services → handlers → routes. Each layer only receives
// the interfaces it needs; handlers never see the database.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware, builds the service layer, and
// mounts every route.
//
// ROUTE STRUCTURE:
//
//	POST /api/register                                → create account
//	POST /api/login                                   → password login
//	POST /api/logout                                  → clear session cookie
//	GET  /auth/github/login, /auth/github/callback    → OAuth (optional)
//	--- everything below requires a valid token ---
//	GET  /api/verify-auth, /api/profile               → current user
//	PUT  /api/profile                                 → update profile
//	POST /api/enroll-course, /api/save-course         → enrollment writes
//	GET  /api/my-courses, /api/user/courses           → enrollment list
//	GET  /api/check-enrollment/{courseId}             → enrollment check
//	GET  /api/check-course/{courseId}                 → saved-course check
//	POST /api/complete-lesson                         → completion + XP
//	GET  /api/overall-progress                        → account aggregate
//	GET  /api/course/{courseId}/progress              → one course
//	GET  /api/lesson-status/{courseId}/{lessonId}     → gating check
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	}

	authService := service.NewAuthService(s.db.Users(), s.db.Stats(), tokens, passwords, s.logger)
	progressService := service.NewProgressService(
		s.db.Users(), s.db.Enrollments(), s.db.Lessons(), s.db.Stats(), s.logger,
	)

	authHandler := handler.NewAuthHandler(authService, github, s.logger)
	courseHandler := handler.NewCourseHandler(progressService, s.logger)
	progressHandler := handler.NewProgressHandler(progressService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		// Public endpoints.
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)

		// Everything else needs a valid token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/verify-auth", authHandler.HandleVerifyAuth)
			// Same payload as verify-auth; the profile page reads it here.
			r.Get("/profile", authHandler.HandleVerifyAuth)
			r.Put("/profile", authHandler.HandleUpdateProfile)

			r.Post("/enroll-course", courseHandler.HandleEnrollCourse)
			r.Post("/save-course", courseHandler.HandleSaveCourse)
			r.Get("/my-courses", courseHandler.HandleMyCourses)
			r.Get("/user/courses", courseHandler.HandleMyCourses)
			r.Get("/check-enrollment/{courseId}", courseHandler.HandleCheckEnrollment)
			r.Get("/check-course/{courseId}", courseHandler.HandleCheckCourse)

			r.Post("/complete-lesson", progressHandler.HandleCompleteLesson)
			r.Get("/overall-progress", progressHandler.HandleOverallProgress)
			r.Get("/course/{courseId}/progress", progressHandler.HandleCourseProgress)
			r.Get("/lesson-status/{courseId}/{lessonId}", progressHandler.HandleLessonStatus)
		})

		// Unknown /api paths get the JSON envelope, never the SPA page.
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"error":"endpoint not found"}`))
		})
	})

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	if s.config.StaticDir != "" {
		s.router.NotFound(s.spaHandler())
	}

	return nil
}

// spaHandler serves the built frontend: real files when they exist,
// index.html for everything else so client-side routes survive a
// refresh.
func (s *Server) spaHandler() http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	index := filepath.Join(s.config.StaticDir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.config.StaticDir, filepath.Clean("/"+r.URL.Path))
		if !strings.HasPrefix(path, filepath.Clean(s.config.StaticDir)) {
			http.NotFound(w, r)
			return
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, index)
	}
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests for
// up to 30 seconds, close the database (flushes the WAL).
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
