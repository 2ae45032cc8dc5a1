package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/go-equip/internal/api/handlers"
	"github.com/hugh/go-equip/internal/api/middleware"
	"github.com/hugh/go-equip/internal/auth"
	"github.com/hugh/go-equip/internal/invitation"
	"github.com/hugh/go-equip/internal/organization"
	"github.com/hugh/go-equip/internal/rbac"
	"github.com/hugh/go-equip/internal/uploads"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB                *gorm.DB
	Redis             *redis.Client
	Logger            *slog.Logger
	JWTService        *auth.JWTService
	AuthService       *auth.Service
	Gate              middleware.Authorizer
	OrgService        *organization.Service
	InvitationService *invitation.Service
	UploadService     *uploads.Service
	Limiter           middleware.Limiter // nil disables rate limiting
	UploadLimiter     middleware.Limiter // per-user cap on upload routes, optional
	AllowedOrigins    []string           // CORS allowed origins
	SecureCookies     bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.Limiter != nil {
		r.Use(middleware.RateLimit(cfg.Limiter))
	}

	// CORS - restrict to configured origins, or allow localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	csrfStore := middleware.NewCSRFStore()
	requirePerm := func(perm rbac.Permission) func(http.Handler) http.Handler {
		return middleware.RequirePermission(cfg.Gate, perm, cfg.Logger)
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.SecureCookies)
	orgHandler := handlers.NewOrganizationHandler(cfg.OrgService, cfg.Logger)
	invitationHandler := handlers.NewInvitationHandler(cfg.InvitationService, cfg.Logger)
	equipmentHandler := handlers.NewEquipmentHandler(cfg.DB, cfg.Logger)
	logHandler := handlers.NewLogHandler(cfg.DB, cfg.Logger)
	alertHandler := handlers.NewAlertHandler(cfg.DB, cfg.Logger)
	uploadHandler := handlers.NewUploadHandler(cfg.UploadService, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// The token is the credential for these two
		r.Get("/invitations/token/{token}", invitationHandler.Resolve)
		r.Post("/invitations/token/{token}/decline", invitationHandler.Decline)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			r.Use(middleware.CSRF(csrfStore))

			r.Get("/me", authHandler.Me)
			r.Get("/auth/csrf", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"csrf_token": middleware.GetCSRFToken(r, csrfStore)})
			})

			// Organizations; the service checks roles itself
			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", orgHandler.List)
				r.Post("/", orgHandler.Create)
				r.Get("/current", orgHandler.Current)
				r.Put("/current", orgHandler.Switch)
				r.Patch("/current", orgHandler.Update)
				r.Delete("/current", orgHandler.Delete)
			})

			r.Route("/members", func(r chi.Router) {
				r.Get("/", orgHandler.ListMembers)
				r.Put("/{userID}/role", orgHandler.UpdateMemberRole)
				r.Post("/{userID}/deactivate", orgHandler.Deactivate)
				r.Delete("/{userID}", orgHandler.Remove)
			})

			r.Route("/invitations", func(r chi.Router) {
				r.With(requirePerm(rbac.PermManageInvitations)).Get("/", invitationHandler.List)
				r.Post("/", invitationHandler.Create)
				r.Get("/mine", invitationHandler.Mine)
				r.Delete("/{id}", invitationHandler.Cancel)
				r.Post("/token/{token}/accept", invitationHandler.Accept)
			})

			r.Route("/equipment", func(r chi.Router) {
				r.With(requirePerm(rbac.PermViewEquipment)).Get("/", equipmentHandler.List)
				r.With(requirePerm(rbac.PermCreateEquipment)).Post("/", equipmentHandler.Create)
				r.With(requirePerm(rbac.PermViewEquipment)).Get("/{id}", equipmentHandler.Get)
				r.With(requirePerm(rbac.PermEditEquipment)).Put("/{id}", equipmentHandler.Update)
				r.With(requirePerm(rbac.PermDeleteEquipment)).Delete("/{id}", equipmentHandler.Delete)

				r.With(requirePerm(rbac.PermViewLogs)).Get("/{id}/logs", logHandler.List)
				r.With(requirePerm(rbac.PermCreateLog)).Post("/{id}/logs", logHandler.Create)

				r.With(requirePerm(rbac.PermCreateAlert)).Post("/{id}/alerts", alertHandler.Create)
			})

			r.Route("/alerts", func(r chi.Router) {
				r.With(requirePerm(rbac.PermViewAlerts)).Get("/", alertHandler.List)
				r.With(requirePerm(rbac.PermResolveAlert)).Post("/{id}/acknowledge", alertHandler.Acknowledge)
				r.With(requirePerm(rbac.PermResolveAlert)).Post("/{id}/resolve", alertHandler.Resolve)
			})

			r.Route("/uploads", func(r chi.Router) {
				if cfg.UploadLimiter != nil {
					r.Use(middleware.RateLimitByUser(cfg.UploadLimiter))
				}
				r.With(requirePerm(rbac.PermViewUploads)).Get("/", uploadHandler.List)
				r.With(requirePerm(rbac.PermCreateUpload)).Post("/", uploadHandler.Create)
				r.With(requirePerm(rbac.PermViewUploads)).Get("/{id}", uploadHandler.Get)
				r.With(requirePerm(rbac.PermViewUploads)).Get("/{id}/content", uploadHandler.Download)
				r.With(requirePerm(rbac.PermDeleteUpload)).Delete("/{id}", uploadHandler.Delete)
			})
		})
	})

	return &Router{r}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
