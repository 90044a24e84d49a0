package handler

import (
	"net/http"
	"time"

	"hr-auth-server/internal/model"
	"hr-auth-server/internal/ratelimit"
	"hr-auth-server/internal/security"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouteGuards : зависимости middleware для маршрутов
type RouteGuards struct {
	Verifier security.AccessVerifier
	// Limiter == nil отключает rate limit
	Limiter         ratelimit.Limiter
	RateLimitPrefix string
	AllowedOrigins  []string
	Log             *zap.Logger
}

// SetupBaseMiddleware : request id, адрес клиента, логирование, recover, CORS
func SetupBaseMiddleware(r chi.Router, allowedOrigins []string, trustedProxyHops int, log *zap.Logger) {
	r.Use(middleware.RequestID)
	r.Use(TrustedClientIP(trustedProxyHops))
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", security.CSRFHeaderName},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func SetupAuthRoutes(r chi.Router, h *AuthenticationHandler, guards RouteGuards) {
	rateLimited := func(r chi.Router) {
		if guards.Limiter != nil {
			r.Use(ratelimit.Middleware(guards.Limiter, guards.RateLimitPrefix, guards.Log))
		}
	}
	csrf := security.CSRFGuard(guards.AllowedOrigins, guards.Log)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			rateLimited(r)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/google", h.GoogleLogin)
			r.Get("/google/oauth", h.GoogleOAuthStart)
		})

		r.Get("/google/callback", h.GoogleCallback)

		r.Group(func(r chi.Router) {
			rateLimited(r)
			r.Use(csrf)
			r.Post("/refresh", h.Refresh)
		})

		r.With(csrf).Post("/logout", h.Logout)
	})
}

// dashboardRoles : роли, которым открыт /users. Сейчас это весь закрытый набор ролей,
// гейт отсекает identity с ролью вне набора, даже если verifier её пропустил
var dashboardRoles = []model.Role{model.RoleSuperAdmin, model.RoleHRAdmin, model.RoleHRManager}

func SetupUserRoutes(r chi.Router, h *UserHandler, guards RouteGuards) {
	r.Route("/users", func(r chi.Router) {
		r.Use(security.BearerAuth(guards.Verifier, guards.Log))
		r.Use(security.RequireRoles(dashboardRoles...))
		r.Get("/me", h.GetCurrentUser)
	})
}

// RequestLogger пишет метод, путь, статус и длительность каждого запроса
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info("запрос",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
