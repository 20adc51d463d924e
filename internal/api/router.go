package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"

	"abegfix/internal/auth"
	"abegfix/internal/blob"
	"abegfix/internal/config"
	"abegfix/internal/db"
	"abegfix/internal/geo"
	"abegfix/internal/jobs"
	"abegfix/internal/kv"
	"abegfix/internal/models"
	"abegfix/internal/ws"
)

type Server struct {
	router *chi.Mux
	config *config.Config
	hub    *ws.Hub
}

type Repositories struct {
	Users      *db.UserRepository
	Jobs       *db.JobRepository
	Reviews    *db.ReviewRepository
	Categories *db.CategoryRepository
	Locations  *db.LocationRepository
	AuditLogs  *db.AuditLogRepository
	Messages   *db.MessageRepository
}

func NewServer(
	cfg *config.Config,
	database *db.DB,
	redisClient *redis.Client,
	repos Repositories,
	sessions *auth.SessionService,
	referrals *kv.ReferralStore,
	queue *jobs.Queue,
	blobs *blob.Service,
	geocoder *geo.Geocoder,
) *Server {
	hub := ws.NewHub(repos.Messages)
	go hub.Run()

	authHandler := NewAuthHandler(sessions, repos.Users, referrals, queue, cfg.Auth.OneTimeTokenTTL, cfg.Auth.CookieDomain)
	userHandler := NewUserHandler(repos.Users)
	artisanHandler := NewArtisanHandler(repos.Users, repos.Locations, repos.Reviews, repos.Jobs, queue)
	jobHandler := NewJobHandler(repos.Jobs, repos.Users)
	reviewHandler := NewReviewHandler(repos.Reviews, repos.Jobs, repos.Users)
	categoryHandler := NewCategoryHandler(repos.Categories)
	locationHandler := NewLocationHandler(repos.Locations, geocoder)
	uploadHandler := NewUploadHandler(blobs, repos.Users)
	adminHandler := NewAdminHandler(repos.Users, repos.Jobs, repos.AuditLogs)
	referralHandler := NewReferralHandler(referrals)
	messageHandler := NewMessageHandler(repos.Messages)
	wsHandler := NewWebSocketHandler(hub, sessions)
	healthHandler := NewHealthHandler(database, redisClient)

	authMiddleware := NewAuthMiddleware(sessions)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.Server.ClientURL))
	r.Use(securityHeadersMiddleware)
	r.Use(httprate.LimitByIP(300, time.Minute))

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		// Uploads carry image payloads and get their own larger body cap.
		r.Route("/uploads", func(r chi.Router) {
			r.Use(maxBodySizeMiddleware(4 << 20)) // 4 MB
			r.Use(authMiddleware.RequireAuth)
			r.Post("/avatar", uploadHandler.UploadAvatar)
			r.Post("/portfolio", uploadHandler.PresignPortfolio)
		})

		r.Group(func(r chi.Router) {
			r.Use(maxBodySizeMiddleware(1 << 20)) // 1 MB

			r.Route("/auth", func(r chi.Router) {
				r.Post("/signup", authHandler.Signup)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
				r.Post("/logout", authHandler.Logout)
				r.Post("/forgot-password", authHandler.ForgotPassword)
				r.Post("/reset-password/{token}", authHandler.ResetPassword)
				r.Post("/verify-email/{token}", authHandler.VerifyEmail)

				r.Group(func(r chi.Router) {
					r.Use(authMiddleware.RequireAuth)
					r.Get("/me", authHandler.Me)
					r.Post("/resend-verification", authHandler.ResendVerification)
					r.Post("/change-password", authHandler.ChangePassword)
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Patch("/me", userHandler.UpdateMe)
				r.Delete("/me", userHandler.DeleteMe)
				r.Get("/{id}", userHandler.GetByID)
			})

			r.Route("/artisans", func(r chi.Router) {
				r.Get("/", artisanHandler.List)
				r.Get("/nearby", artisanHandler.Nearby)
				r.Get("/{id}", artisanHandler.GetByID)
				r.Get("/{id}/stats", artisanHandler.Stats)
				r.Get("/{id}/reviews", reviewHandler.ListByArtisan)

				r.Group(func(r chi.Router) {
					r.Use(authMiddleware.RequireAuth)
					r.Use(authMiddleware.RequireRole(models.RoleArtisan))
					r.Patch("/me", artisanHandler.UpdateProfile)
					r.Patch("/me/availability", artisanHandler.SetAvailability)
				})
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.With(authMiddleware.RequireVerifiedEmail).Post("/", jobHandler.Create)
				r.Get("/", jobHandler.ListMine)
				r.Get("/can-review/{artisanId}", jobHandler.CanReview)
				r.Get("/{id}", jobHandler.GetByID)
				r.Patch("/{id}/status", jobHandler.UpdateStatus)
			})

			r.Route("/reviews", func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.With(authMiddleware.RequireVerifiedEmail).Post("/", reviewHandler.Create)
				r.Get("/mine", reviewHandler.ListMine)
				r.Delete("/{id}", reviewHandler.Delete)
			})

			r.Get("/categories", categoryHandler.List)
			r.Get("/locations", locationHandler.List)
			r.Get("/locations/nearby", locationHandler.Nearby)

			r.Route("/referrals", func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Post("/code", referralHandler.CreateCode)
				r.Get("/me", referralHandler.Me)
			})

			r.Route("/messages", func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Get("/", messageHandler.GetHistory)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Use(authMiddleware.RequireRole(models.RoleAdmin))
				r.Get("/users", adminHandler.ListUsers)
				r.Patch("/users/{id}/ban", adminHandler.SetBanned)
				r.Patch("/users/{id}/role", adminHandler.SetRole)
				r.Delete("/users/{id}", adminHandler.DeleteUser)
				r.Patch("/artisans/{id}/approve", adminHandler.ApproveArtisan)
				r.Patch("/artisans/{id}/feature", adminHandler.FeatureArtisan)
				r.Delete("/artisans/{id}/feature", adminHandler.UnfeatureArtisan)
				r.Get("/users/{id}/referrals", referralHandler.StatsFor)
				r.Get("/jobs", adminHandler.ListJobs)
				r.Get("/analytics", adminHandler.Analytics)
				r.Get("/audit-logs", adminHandler.ListAuditLogs)
				r.Post("/categories", categoryHandler.Create)
				r.Delete("/categories/{id}", categoryHandler.Delete)
				r.Post("/locations", locationHandler.Create)
			})
		})
	})

	r.Get("/ws", wsHandler.ServeWS)

	return &Server{
		router: r,
		config: cfg,
		hub:    hub,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Shutdown() {
	s.hub.Shutdown()
}

// corsMiddleware allows the configured frontend origin with credentials so
// the session cookies work cross-site.
func corsMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && origin == allowedOrigin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
