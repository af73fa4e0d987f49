package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc deriva o identificador do cliente a partir da requisição.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc identifica o cliente nesta ordem:
//  1. header configurado (ex: X-Api-Key), se presente
//  2. primeiro IP do X-Forwarded-For, só se trustXFF (o header pode ser forjado)
//  3. host do RemoteAddr
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			if ip := firstForwardedFor(r); ip != "" {
				return ip
			}
		}

		return remoteHost(r)
	}
}

// firstForwardedFor pega o primeiro IP do X-Forwarded-For (cliente original).
func firstForwardedFor(r *http.Request) string {
	for _, xff := range r.Header.Values("X-Forwarded-For") {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return ""
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return "unknown"
}
