package security

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"hr-auth-server/internal/model"
	"hr-auth-server/internal/model/requestresponse"

	"go.uber.org/zap"
)

type contextKey string

const (
	UserContextKey contextKey = "user"

	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// Identity : проверенная личность из access токена
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   model.Role
}

// AccessVerifier : то, что нужно BearerAuth от TokenCodec
type AccessVerifier interface {
	VerifyAccess(tokenStr string) (*AccessClaims, error)
}

// BearerAuth проверяет заголовок Authorization: Bearer <token> и кладёт Identity в контекст
func BearerAuth(verifier AccessVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorizationHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authorizationHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authorizationHeader, "Bearer "))
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := verifier.VerifyAccess(token)
			if err != nil {
				log.Debug("невалидный access токен", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			identity := &Identity{
				UserID: claims.Subject,
				Email:  claims.Email,
				Name:   claims.Name,
				Role:   claims.Role,
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireRoles пропускает запрос, только если роль из контекста входит в roles.
// Должен стоять после BearerAuth
func RequireRoles(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if _, ok := allowed[identity.Role]; !ok {
				writeError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFGuard : double-submit проверка для запросов, которые опираются на refresh cookie.
// Origin, если передан, должен быть в allowedOrigins
func CSRFGuard(allowedOrigins []string, log *zap.Logger) func(http.Handler) http.Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := origins[strings.TrimRight(origin, "/")]; !ok {
					log.Warn("запрос с неразрешённого origin", zap.String("origin", origin), zap.String("path", r.URL.Path))
					writeError(w, http.StatusForbidden, "Origin not allowed")
					return
				}
			}

			cookie, err := r.Cookie(CSRFCookieName)
			header := r.Header.Get(CSRFHeaderName)
			if err != nil || cookie.Value == "" || header == "" ||
				subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
				writeError(w, http.StatusForbidden, "CSRF validation failed")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, UserContextKey, identity)
}

func IdentityFromContext(ctx context.Context) (*Identity, error) {
	identity, ok := ctx.Value(UserContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, errors.New("пользователь не авторизован")
	}
	return identity, nil
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(requestresponse.ErrorResponse{
		Error: requestresponse.ErrorDetail{
			Code: statusCode,
			Text: message,
		},
	})
}
