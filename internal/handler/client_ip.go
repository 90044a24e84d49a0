package handler

import (
	"net"
	"net/http"
	"strings"
)

const forwardedForHeader = "X-Forwarded-For"

// TrustedClientIP подменяет r.RemoteAddr адресом клиента из X-Forwarded-For,
// но только на глубину trustedHops от конца цепочки: левые записи пишет сам клиент.
// trustedHops == 0 оставляет TCP адрес как есть
func TrustedClientIP(trustedHops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if trustedHops <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := forwardedClientIP(r.Header.Values(forwardedForHeader), trustedHops); ip != "" {
				r.RemoteAddr = net.JoinHostPort(ip, "0")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedClientIP : запись, добавленная самым дальним доверенным прокси
func forwardedClientIP(headers []string, trustedHops int) string {
	var chain []string
	for _, header := range headers {
		for _, entry := range strings.Split(header, ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				chain = append(chain, entry)
			}
		}
	}
	if len(chain) == 0 {
		return ""
	}

	idx := len(chain) - trustedHops
	if idx < 0 {
		idx = 0
	}
	ip := net.ParseIP(chain[idx])
	if ip == nil {
		return ""
	}
	return ip.String()
}
