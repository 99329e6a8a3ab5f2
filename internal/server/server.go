package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ndenisov/cleanday/internal/auth"
	"github.com/ndenisov/cleanday/internal/handler"
	"github.com/ndenisov/cleanday/internal/middleware"
	"github.com/ndenisov/cleanday/internal/store"
	ws "github.com/ndenisov/cleanday/internal/websocket"
)

// Config carries the server's externally-owned settings.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	userH        *handler.UserHandler
	housingH     *handler.HousingHandler
	scheduleH    *handler.ScheduleHandler
	taskH        *handler.TaskHandler
	tokens       *auth.TokenManager
	userStore    *store.UserStore
	housingStore *store.HousingStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	housingStore := store.NewHousingStore(db)
	scheduleStore := store.NewScheduleStore(db)
	taskStore := store.NewTaskStore(db)

	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = auth.DefaultTokenTTL
	}
	tokens := auth.NewTokenManager(cfg.JWTSecret, ttl)

	return &Server{
		db:           db,
		hub:          hub,
		userH:        handler.NewUserHandler(userStore, housingStore, tokens, logger.With("component", "user")),
		housingH:     handler.NewHousingHandler(housingStore, userStore, logger.With("component", "housing")),
		scheduleH:    handler.NewScheduleHandler(scheduleStore, hub, logger.With("component", "schedule")),
		taskH:        handler.NewTaskHandler(taskStore, hub, logger.With("component", "task")),
		tokens:       tokens,
		userStore:    userStore,
		housingStore: housingStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	authed := middleware.RequireAuth(s.tokens, s.userStore)
	membered := middleware.RequireMember(s.housingStore)

	member := func(h http.HandlerFunc) http.Handler {
		return authed(membered(h))
	}
	manager := func(h http.HandlerFunc) http.Handler {
		return authed(membered(middleware.RequireManager(h)))
	}

	// Public routes
	mux.Handle("POST /api/users", s.rateLimited(s.userH.Register))
	mux.Handle("POST /api/users/login", s.rateLimited(s.userH.Login))
	mux.HandleFunc("GET /api/buildings", s.housingH.Buildings)
	mux.HandleFunc("GET /api/buildings/{code}/apartments", s.housingH.Apartments)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	// Authenticated routes
	mux.Handle("GET /api/users/me", authed(http.HandlerFunc(s.userH.Me)))
	mux.Handle("GET /api/users", authed(http.HandlerFunc(s.userH.List)))
	mux.Handle("GET /api/users/{id}", authed(http.HandlerFunc(s.userH.Get)))
	mux.Handle("POST /api/apartments/{id}/join", authed(http.HandlerFunc(s.housingH.Join)))
	mux.Handle("POST /api/apartments/{id}/move", authed(http.HandlerFunc(s.housingH.Move)))
	mux.Handle("POST /api/tasks/{id}/toggle", authed(http.HandlerFunc(s.taskH.Toggle)))

	// Apartment-member routes
	mux.Handle("GET /api/apartments/me", member(s.housingH.MyApartment))
	mux.Handle("GET /api/apartments/me/members", member(s.housingH.MyMembers))
	mux.Handle("GET /api/schedule", member(s.scheduleH.Week))
	mux.Handle("POST /api/schedule/{id}/claim", member(s.scheduleH.Claim))
	mux.Handle("POST /api/schedule/{id}/release", member(s.scheduleH.Release))
	mux.Handle("GET /api/tasks/{day}", member(s.taskH.Day))

	// Manager-only routes
	mux.Handle("DELETE /api/apartments/{id}/members/{user_id}", manager(s.housingH.RemoveMember))
	mux.Handle("PUT /api/apartments/me/default-tasks", manager(s.housingH.SetDefaultTasks))
	mux.Handle("GET /api/templates", manager(s.taskH.ListTemplates))
	mux.Handle("POST /api/templates", manager(s.taskH.CreateTemplate))
	mux.Handle("DELETE /api/templates/{id}", manager(s.taskH.DeleteTemplate))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)(h)
}
