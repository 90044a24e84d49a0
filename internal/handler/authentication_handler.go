package handler

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hr-auth-server/internal/errs"
	"hr-auth-server/internal/model"
	"hr-auth-server/internal/model/requestresponse"
	"hr-auth-server/internal/ports"
	"hr-auth-server/internal/util"

	"go.uber.org/zap"
)

const (
	maxUserAgentLength = 512
	oauthStateBytes    = 32
)

type AuthenticationHandler struct {
	ports.AuthenticationService
	cookies     CookieSettings
	frontendURL string
	log         *zap.Logger
	now         func() time.Time
}

func NewAuthenticationHandler(
	authenticationService ports.AuthenticationService,
	cookies CookieSettings,
	frontendURL string,
	log *zap.Logger,
) *AuthenticationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthenticationHandler{
		AuthenticationService: authenticationService,
		cookies:               cookies,
		frontendURL:           strings.TrimRight(frontendURL, "/"),
		log:                   log.Named("auth_handler"),
		now:                   time.Now,
	}
}

// Register godoc
// @Summary Регистрация пользователя
// @Description Создаёт LOCAL аккаунт и сразу выдаёт сессию. Refresh и CSRF токены приходят в cookie
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.RegisterRequest true "Тело запроса"
// @Success 201 {object} requestresponse.AccessTokenResponse "Пользователь создан"
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный email или слабый пароль"
// @Failure 409 {object} requestresponse.ErrorResponse "Email уже занят"
// @Failure 429 {object} requestresponse.ErrorResponse "Слишком много запросов"
// @Failure 503 {object} requestresponse.ErrorResponse "Хранилище недоступно"
// @Router /auth/register [post]
func (h *AuthenticationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req requestresponse.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		sendErrorResponse(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	pair, err := h.AuthenticationService.Register(r.Context(), req.Email, req.Password, req.Name, clientMeta(r))
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	h.respondWithSession(w, http.StatusCreated, pair)
}

// Login godoc
// @Summary Аутентификация пользователя
// @Description Вход по email и паролю
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.LoginRequest true "Тело запроса"
// @Success 200 {object} requestresponse.AccessTokenResponse "Успешная аутентификация"
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный JSON или пустые поля"
// @Failure 401 {object} requestresponse.ErrorResponse "Неверный email или пароль"
// @Failure 429 {object} requestresponse.ErrorResponse "Слишком много запросов"
// @Failure 503 {object} requestresponse.ErrorResponse "Хранилище недоступно"
// @Router /auth/login [post]
func (h *AuthenticationHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req requestresponse.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		sendErrorResponse(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	pair, err := h.AuthenticationService.Login(r.Context(), req.Email, req.Password, clientMeta(r))
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	h.respondWithSession(w, http.StatusOK, pair)
}

// GoogleLogin godoc
// @Summary Вход через Google
// @Description Обмен Google ID token на сессию. Аккаунт создаётся или привязывается по email
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.GoogleLoginRequest true "Тело запроса"
// @Success 200 {object} requestresponse.AccessTokenResponse "Успешная аутентификация"
// @Failure 400 {object} requestresponse.ErrorResponse "Нет idToken"
// @Failure 401 {object} requestresponse.ErrorResponse "Невалидный Google токен"
// @Failure 409 {object} requestresponse.ErrorResponse "Email привязан к другому Google аккаунту"
// @Failure 429 {object} requestresponse.ErrorResponse "Слишком много запросов"
// @Failure 503 {object} requestresponse.ErrorResponse "Google вход не настроен или хранилище недоступно"
// @Router /auth/google [post]
func (h *AuthenticationHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req requestresponse.GoogleLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if strings.TrimSpace(req.IDToken) == "" {
		sendErrorResponse(w, http.StatusBadRequest, "idToken is required")
		return
	}

	pair, err := h.AuthenticationService.LoginWithGoogle(r.Context(), req.IDToken, clientMeta(r))
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	h.respondWithSession(w, http.StatusOK, pair)
}

// GoogleOAuthStart godoc
// @Summary Начало OAuth входа через Google
// @Description Ставит cookie oauth_state и перенаправляет на страницу согласия Google
// @Tags Authentication
// @Success 302 "Редирект на accounts.google.com"
// @Failure 503 {object} requestresponse.ErrorResponse "Google OAuth не настроен"
// @Router /auth/google/oauth [get]
func (h *AuthenticationHandler) GoogleOAuthStart(w http.ResponseWriter, r *http.Request) {
	state, err := util.GenerateRandomToken(oauthStateBytes)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	authURL := h.AuthenticationService.GoogleAuthURL(state)
	if authURL == "" {
		sendErrorResponse(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	h.cookies.setOAuthState(w, state)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// GoogleCallback godoc
// @Summary Callback Google OAuth
// @Description Проверяет state, меняет code на сессию и перенаправляет на фронтенд
// @Tags Authentication
// @Param state query string true "State из cookie oauth_state"
// @Param code query string false "Authorization code"
// @Param error query string false "Ошибка от Google"
// @Success 302 "Редирект на /dashboard или /login?error=..."
// @Router /auth/google/callback [get]
func (h *AuthenticationHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state := query.Get("state")

	stateCookie, err := r.Cookie(OAuthStateCookie)
	h.cookies.clearOAuthState(w)

	if err != nil || stateCookie.Value == "" || state == "" ||
		subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		h.log.Warn("OAuth state не совпал", zap.String("ip", clientMeta(r).IPAddress))
		h.redirectToLogin(w, r, "state_mismatch")
		return
	}

	if providerErr := query.Get("error"); providerErr != "" {
		h.log.Info("Google вернул ошибку", zap.String("error", providerErr))
		h.redirectToLogin(w, r, "access_denied")
		return
	}

	pair, err := h.AuthenticationService.LoginWithGoogleCode(r.Context(), query.Get("code"), clientMeta(r))
	if err != nil {
		if errors.Is(err, errs.ErrServiceUnavailable) {
			h.log.Error("вход через Google не удался", zap.Error(err))
		} else {
			h.log.Info("вход через Google отклонён", zap.Error(err))
		}
		h.redirectToLogin(w, r, "oauth_failed")
		return
	}

	h.cookies.setSessionCookies(w, pair, h.now())
	http.Redirect(w, r, h.frontendURL+"/dashboard", http.StatusFound)
}

// Refresh godoc
// @Summary Обновление access токена
// @Description Ротация refresh токена из cookie. Нужен заголовок X-CSRF-Token, равный cookie csrf_token
// @Tags Authentication
// @Produce json
// @Param X-CSRF-Token header string true "CSRF токен"
// @Success 200 {object} requestresponse.AccessTokenResponse "Новый access токен"
// @Failure 401 {object} requestresponse.ErrorResponse "Refresh токен отсутствует, невалиден или использован повторно"
// @Failure 403 {object} requestresponse.ErrorResponse "CSRF проверка не пройдена"
// @Failure 429 {object} requestresponse.ErrorResponse "Слишком много запросов"
// @Failure 503 {object} requestresponse.ErrorResponse "Хранилище недоступно"
// @Router /auth/refresh [post]
func (h *AuthenticationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		h.cookies.clearSessionCookies(w)
		sendErrorResponse(w, http.StatusUnauthorized, "Missing refresh token")
		return
	}

	pair, err := h.AuthenticationService.Refresh(r.Context(), cookie.Value, clientMeta(r))
	if err != nil {
		// при недоступном хранилище сессию не трогаем, клиент может повторить
		if !errors.Is(err, errs.ErrServiceUnavailable) {
			h.cookies.clearSessionCookies(w)
		}
		handleServiceError(w, h.log, err)
		return
	}

	h.respondWithSession(w, http.StatusOK, pair)
}

// Logout godoc
// @Summary Выход
// @Description Отзывает refresh токен из cookie и очищает cookie. Всегда 204, если CSRF проверка пройдена
// @Tags Authentication
// @Param X-CSRF-Token header string true "CSRF токен"
// @Success 204 "Сессия завершена"
// @Failure 403 {object} requestresponse.ErrorResponse "CSRF проверка не пройдена"
// @Router /auth/logout [post]
func (h *AuthenticationHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		if err := h.AuthenticationService.Logout(r.Context(), cookie.Value, clientMeta(r)); err != nil {
			h.log.Warn("не удалось отозвать refresh токен при выходе", zap.Error(err))
		}
	}

	h.cookies.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthenticationHandler) respondWithSession(w http.ResponseWriter, status int, pair *model.TokenPair) {
	h.cookies.setSessionCookies(w, pair, h.now())
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, requestresponse.AccessTokenResponse{AccessToken: pair.AccessToken})
}

func (h *AuthenticationHandler) redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.frontendURL+"/login?error="+url.QueryEscape(reason), http.StatusFound)
}

// clientMeta : IP (RemoteAddr уже переписан TrustedClientIP) и User-Agent
func clientMeta(r *http.Request) model.ClientMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	userAgent := r.UserAgent()
	if len(userAgent) > maxUserAgentLength {
		userAgent = userAgent[:maxUserAgentLength]
	}

	return model.ClientMeta{IPAddress: ip, UserAgent: userAgent}
}
