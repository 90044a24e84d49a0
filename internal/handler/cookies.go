package handler

import (
	"net/http"
	"time"

	"hr-auth-server/config"
	"hr-auth-server/internal/model"
	"hr-auth-server/internal/security"
)

const (
	RefreshCookieName = "refresh_token"
	OAuthStateCookie  = "oauth_state"

	oauthStateTTL = 10 * time.Minute
)

// CookieSettings : атрибуты cookie сессии
type CookieSettings struct {
	// Path для refresh и csrf cookie, обычно base_path + "/auth"
	Path     string
	Secure   bool
	SameSite http.SameSite
}

func CookieSettingsFromConfig(cfg *config.AppConfig) CookieSettings {
	return CookieSettings{
		Path:     cfg.Server.BasePath + "/auth",
		Secure:   cfg.IsProduction(),
		SameSite: cfg.SameSite(),
	}
}

// setSessionCookies ставит refresh (httpOnly) и csrf (читается фронтендом) cookie
func (c CookieSettings) setSessionCookies(w http.ResponseWriter, pair *model.TokenPair, now time.Time) {
	maxAge := int(pair.RefreshExpiresAt.Sub(now).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     c.Path,
		MaxAge:   maxAge,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     security.CSRFCookieName,
		Value:    pair.CSRFToken,
		Path:     c.Path,
		MaxAge:   maxAge,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: false,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (c CookieSettings) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{RefreshCookieName, security.CSRFCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     c.Path,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: name == RefreshCookieName,
			Secure:   c.Secure,
			SameSite: c.SameSite,
		})
	}
}

// state cookie живёт на пути callback. SameSite=Lax, иначе браузер не пришлёт
// её при возврате с accounts.google.com
func (c CookieSettings) setOAuthState(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookie,
		Value:    state,
		Path:     c.Path + "/google",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieSettings) clearOAuthState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     OAuthStateCookie,
		Value:    "",
		Path:     c.Path + "/google",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
