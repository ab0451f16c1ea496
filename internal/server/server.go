package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/choreday/internal/auth"
	"github.com/dukerupert/choreday/internal/docstore"
	"github.com/dukerupert/choreday/internal/generate"
	"github.com/dukerupert/choreday/internal/handler"
	"github.com/dukerupert/choreday/internal/middleware"
	"github.com/dukerupert/choreday/internal/push"
	"github.com/dukerupert/choreday/internal/reaction"
	"github.com/dukerupert/choreday/internal/store"
	ws "github.com/dukerupert/choreday/internal/websocket"
)

// Config holds the settings the router needs.
type Config struct {
	AuthSecret      []byte
	AdminKeyHash    string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// AdminRateLimit is the number of admin requests allowed per client IP
	// per minute. Zero means 10.
	AdminRateLimit int
}

type Server struct {
	cfg         Config
	db          docstore.Store
	hub         *ws.Hub
	stopFeed    func()
	adminH      *handler.AdminHandler
	taskH       *handler.TaskHandler
	templateH   *handler.TemplateHandler
	householdH  *handler.HouseholdHandler
	pushH       *handler.PushHandler
	userStore   *store.UserStore
	generator   *generate.Generator
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db docstore.Store, cfg Config, logger *slog.Logger) *Server {
	if cfg.AdminRateLimit <= 0 {
		cfg.AdminRateLimit = 10
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	taskStore := store.NewTaskStore(db)
	templateStore := store.NewTemplateStore(db)
	householdStore := store.NewHouseholdStore(db)
	userStore := store.NewUserStore(db)
	pushStore := store.NewPushStore(db)

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	var (
		reactionNotifier handler.ReactionNotifier
		genOpts          []generate.Option
	)
	if pushSvc.Enabled() {
		n := push.NewNotifier(pushSvc, pushStore, householdStore, logger.With("component", "push"))
		reactionNotifier = n
		genOpts = append(genOpts, generate.WithNotifier(n))
	}

	generator := generate.New(templateStore, taskStore, logger.With("component", "generate"), genOpts...)

	return &Server{
		cfg:         cfg,
		db:          db,
		hub:         hub,
		stopFeed:    hub.Follow(db),
		adminH:      handler.NewAdminHandler(generator, logger.With("component", "admin")),
		taskH:       handler.NewTaskHandler(taskStore, reaction.NewToggler(db), reactionNotifier, logger.With("component", "task")),
		templateH:   handler.NewTemplateHandler(templateStore, logger.With("component", "template")),
		householdH:  handler.NewHouseholdHandler(householdStore, userStore, logger.With("component", "household")),
		pushH:       handler.NewPushHandler(pushStore, pushSvc.VAPIDPublicKey(), logger.With("component", "push_handler")),
		userStore:   userStore,
		generator:   generator,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Generator returns the daily task generator for the scheduler.
func (s *Server) Generator() *generate.Generator {
	return s.generator
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Close detaches the websocket feed from the store.
func (s *Server) Close() {
	s.stopFeed()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Admin routes: rate limited per client IP, then key checked.
	outerMux.Handle("GET /admin/generate", s.adminHandler(s.adminH.Generate))
	outerMux.Handle("GET /admin/generate-all", s.adminHandler(s.adminH.GenerateAll))

	// Protected routes, wrapped with RequireUser
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	requireUser := middleware.RequireUser(s.cfg.AuthSecret, s.userStore)
	outerMux.Handle("/", requireUser(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) adminHandler(h http.HandlerFunc) http.Handler {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, s.cfg.AdminRateLimit, time.Minute)
	return rl(middleware.RequireAdminKey(s.cfg.AdminKeyHash)(h))
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Profile and household routes
	mux.HandleFunc("GET /api/profile", s.householdH.Profile)
	mux.HandleFunc("PUT /api/profile", s.householdH.UpdateProfile)
	mux.HandleFunc("GET /api/household", s.householdH.Get)
	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("POST /api/households/join", s.householdH.Join)
	mux.HandleFunc("POST /api/households/leave", s.householdH.Leave)
	mux.HandleFunc("POST /api/households/invite", s.householdH.RegenerateInvite)

	// Task routes
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("PUT /api/tasks/{id}/title", s.taskH.UpdateTitle)
	mux.HandleFunc("PUT /api/tasks/{id}/status", s.taskH.UpdateStatus)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/reactions", s.taskH.React)
	mux.HandleFunc("GET /api/reactions/mine", s.taskH.MyReactions)

	// Template routes
	mux.HandleFunc("GET /api/templates", s.templateH.List)
	mux.HandleFunc("POST /api/templates", s.templateH.Create)
	mux.HandleFunc("PUT /api/templates/{id}/title", s.templateH.UpdateTitle)
	mux.HandleFunc("PUT /api/templates/{id}/days", s.templateH.UpdateDays)
	mux.HandleFunc("DELETE /api/templates/{id}", s.templateH.Delete)

	// Push notification routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)

	// WebSocket change feed
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, func(r *http.Request) string {
		return auth.HouseholdID(r.Context())
	}, s.logger.With("component", "websocket")))
}
