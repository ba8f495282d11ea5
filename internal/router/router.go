// Package router assembles the HTTP surface.
package router

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/reviewcash/backend/internal/console"
	"github.com/reviewcash/backend/internal/handlers"
	"github.com/reviewcash/backend/internal/metrics"
	"github.com/reviewcash/backend/internal/middleware"
	"github.com/reviewcash/backend/internal/models"
)

type Config struct {
	Handler     *handlers.Handler
	Tokens      middleware.TokenVerifier
	Metrics     *metrics.Metrics
	RateLimit   *middleware.ClientRateLimit
	CORSOrigins []string
	Logger      *slog.Logger
}

// adminCollections maps the URL collection names to request kinds.
var adminCollections = map[string]models.Kind{
	"topups":    models.KindTopUp,
	"withdraws": models.KindWithdrawal,
	"works":     models.KindWork,
}

// New returns the root handler: request log, metrics, CORS, then the mux.
func New(cfg Config) http.Handler {
	h := cfg.Handler
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /healthz", handlers.Healthz)
	mux.HandleFunc("GET /api/tasks_public", h.TasksPublic)
	mux.HandleFunc("GET /api/profile_me", h.ProfileMe)
	mux.Handle("GET /metrics", cfg.Metrics.Handler())

	// WebApp: per-IP throttle -> body limit -> dispatch
	webapp := middleware.BodyLimit(middleware.DefaultBodyLimit)(http.HandlerFunc(h.WebApp))
	if cfg.RateLimit != nil {
		webapp = cfg.RateLimit.Handler(webapp)
	}
	mux.Handle("POST /webapp", webapp)

	// Console page verifies its own token and answers 403 on any failure.
	mux.Handle("GET /mainadmin", console.Handler(cfg.Tokens, cfg.Logger))

	// Admin API
	admin := middleware.AdminAuth(cfg.Tokens)
	limit := middleware.BodyLimit(middleware.DefaultBodyLimit)
	for name, kind := range adminCollections {
		mux.Handle("GET /api/"+name, admin(h.ListRequests(kind)))
		mux.Handle("POST /api/"+name+"/{id}/approve", admin(limit(h.Resolve(kind, models.ResolutionApprove))))
		mux.Handle("POST /api/"+name+"/{id}/reject", admin(limit(h.Resolve(kind, models.ResolutionReject))))
	}
	mux.Handle("GET /api/tasks", admin(http.HandlerFunc(h.ListTasks)))
	mux.Handle("PATCH /api/tasks/{id}", admin(limit(http.HandlerFunc(h.PatchTask))))
	mux.Handle("DELETE /api/tasks/{id}", admin(http.HandlerFunc(h.CloseTask)))
	mux.Handle("GET /api/roster", admin(http.HandlerFunc(h.ListRoster)))
	mux.Handle("POST /api/roster", admin(limit(http.HandlerFunc(h.AddOperator))))
	mux.Handle("DELETE /api/roster/{id}", admin(http.HandlerFunc(h.RemoveOperator)))

	var root http.Handler = cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", handlers.InitDataHeader},
	}).Handler(mux)
	root = cfg.Metrics.InstrumentHandler(root)
	return middleware.RequestLog(cfg.Logger)(root)
}
