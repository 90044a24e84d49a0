package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"hr-auth-server/internal/model/requestresponse"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Middleware считает запросы по ключу prefix:ip:METHOD route.
// При ошибке лимитера запрос пропускается
func Middleware(limiter Limiter, prefix string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := buildKey(prefix, r)

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Warn("ошибка лимитера, запрос пропущен", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				secs := int(math.Ceil(res.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				log.Info("превышен лимит запросов", zap.String("key", key))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(requestresponse.ErrorResponse{
					Error: requestresponse.ErrorDetail{
						Code: http.StatusTooManyRequests,
						Text: "Too many requests, please try again later",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func buildKey(prefix string, r *http.Request) string {
	ip := clientIP(r)
	if ip == "" {
		ip = "unknown"
	}

	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			route = pattern
		}
	}

	return strings.Join([]string{prefix, "ip", ip, "route", r.Method + " " + route}, ":")
}

// clientIP : RemoteAddr без порта. Заголовки прокси учитываются раньше, в handler.TrustedClientIP
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
