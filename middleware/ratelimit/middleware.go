package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sliding-gateway/middleware/ratelimit/application"
	"sliding-gateway/middleware/ratelimit/domain"
)

type Options struct {
	Limiter    domain.Limiter
	Stats      domain.StatsStore
	KeyFn      KeyFunc
	EndpointFn EndpointFunc

	// usados só quando KeyFn é nil
	KeyHeader          string
	TrustXForwardedFor bool

	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool

	// DenyMessage monta o texto do corpo 429. Padrão: DefaultDenyMessage.
	DenyMessage func(key domain.Key) string

	Logger *zap.Logger
	// DenyLogEvery amostra o log de negações (0 = registra todas).
	DenyLogEvery time.Duration
}

// DefaultDenyMessage é o texto padrão de negação.
func DefaultDenyMessage(key domain.Key) string {
	return fmt.Sprintf("Rate limit exceeded for %s endpoint. Please try again later.", key.Endpoint)
}

type errorBody struct {
	Error string `json:"error"`
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.EndpointFn == nil {
		opts.EndpointFn = PathEndpoint
	}
	if opts.DenyMessage == nil {
		opts.DenyMessage = DefaultDenyMessage
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.NewService(opts.Limiter, opts.RetryAfter, opts.Logger, opts.DenyLogEvery)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key{Client: opts.KeyFn(r), Endpoint: opts.EndpointFn(r)}
			dec := svc.Decide(key)

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     key,
					Allowed: dec.Allowed,
					Limit:   dec.Rule.Limit,
					Count:   dec.Count,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
				if err != nil {
					opts.Logger.Warn("rate limit stats not recorded", zap.Error(err))
				}
			}

			if opts.AddRateLimitHeaders && dec.Rule.Limit > 0 {
				h := w.Header()
				h.Set("X-RateLimit-Limit", formatInt(dec.Rule.Limit))
				h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
				if !dec.ResetAt.IsZero() {
					h.Set("X-RateLimit-Reset", formatUnix(dec.ResetAt))
				}
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(ceilSeconds(dec.RetryAfter)))
				writeJSON(w, opts.RejectStatus, errorBody{Error: opts.DenyMessage(key)})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
