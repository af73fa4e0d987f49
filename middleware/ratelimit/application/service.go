package application

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"sliding-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Negações são registradas no log, com amostragem para que um cliente abusivo
// não inunde a saída.
type Service struct {
	Limiter    domain.Limiter
	RetryAfter time.Duration
	Logger     *zap.Logger

	denyLog    rate.Sometimes
	suppressed atomic.Int64
}

// NewService monta o serviço registrando no máximo uma negação por logEvery
// (0 = todas).
func NewService(lim domain.Limiter, retryAfter time.Duration, logger *zap.Logger, logEvery time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		Limiter:    lim,
		RetryAfter: retryAfter,
		Logger:     logger,
	}
	if logEvery > 0 {
		s.denyLog.Interval = logEvery
	} else {
		s.denyLog.Every = 1
	}
	return s
}

func (s *Service) Decide(key domain.Key) domain.Decision {
	if s.Limiter == nil {
		return domain.Decision{Allowed: true}
	}

	dec := s.Limiter.Check(key)
	if dec.Allowed {
		return dec
	}

	if dec.RetryAfter <= 0 {
		dec.RetryAfter = s.RetryAfter
		if dec.RetryAfter <= 0 {
			dec.RetryAfter = 1 * time.Second
		}
	}
	s.logDenied(key, dec)
	return dec
}

func (s *Service) logDenied(key domain.Key, dec domain.Decision) {
	if s.Logger == nil {
		return
	}
	logged := false
	s.denyLog.Do(func() {
		logged = true
		s.Logger.Info("rate limit exceeded",
			zap.String("client", key.Client),
			zap.String("endpoint", key.Endpoint),
			zap.Int("limit", dec.Rule.Limit),
			zap.Duration("window", dec.Rule.Window),
			zap.Int("in_window", dec.Count),
			zap.Bool("untracked", dec.Untracked),
			zap.Duration("retry_after", dec.RetryAfter),
			zap.Int64("suppressed", s.suppressed.Swap(0)))
	})
	if !logged {
		s.suppressed.Add(1)
	}
}
