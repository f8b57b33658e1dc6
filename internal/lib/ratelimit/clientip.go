package ratelimit

import (
	"net/http"
	"strings"
)

// ClientIP определяет адрес клиента по заголовкам прокси:
// первый адрес X-Forwarded-For, затем X-Real-IP, затем CF-Connecting-IP.
// Без заголовков все такие клиенты делят общий ключ "unknown".
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	return "unknown"
}
