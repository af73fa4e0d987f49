package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sliding-gateway/middleware/ratelimit/application"
	"sliding-gateway/middleware/ratelimit/domain"
	"sliding-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration

	// Pool permite compartilhar o semáforo (ex: para expor vagas em uso).
	// Se nil, um infra.SlotPool com capacidade Max é criado.
	Pool   domain.SlotPool
	Logger *zap.Logger
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 && opts.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Pool == nil {
		opts.Pool = infra.NewSlotPool(opts.Max)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				if !errors.Is(err, domain.ErrNoSlot) {
					// cliente desistiu antes de conseguir vaga; não há para quem responder
					return
				}
				opts.Logger.Debug("concurrency limit reached",
					zap.String("path", r.URL.Path),
					zap.Duration("acquire_timeout", opts.AcquireTimeout))
				writeJSON(w, opts.RejectStatus, errorBody{Error: http.StatusText(opts.RejectStatus)})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
