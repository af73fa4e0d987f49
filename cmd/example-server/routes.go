package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sliding-gateway/middleware/ratelimit"
	"sliding-gateway/middleware/ratelimit/domain"
	"sliding-gateway/middleware/ratelimit/infra"
)

type messageBody struct {
	Message string `json:"message"`
}

type statsBody struct {
	Total     infra.Counters            `json:"total"`
	Endpoints map[string]infra.Counters `json:"endpoints"`
	Clients   map[string]infra.Counters `json:"clients,omitempty"`
}

// newRouter monta as rotas de demonstração: padrão de 5 req/15s, /limited com
// 2 req/10s e /unlimited com 1000 req/60s, por IP do cliente. GET /stats mostra
// os contadores de decisão (por cliente se trackClients) e não passa pelo limiter.
func newRouter(logger *zap.Logger, trackClients bool, opts ...infra.SlidingLogOption) (*chi.Mux, *infra.SlidingLog, error) {
	opts = append([]infra.SlidingLogOption{infra.WithLogger(logger)}, opts...)
	lim, err := infra.NewSlidingLog(domain.Rule{Limit: 5, Window: 15 * time.Second}, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := lim.AddEndpointRule("/limited", 2, 10*time.Second); err != nil {
		return nil, nil, err
	}
	if err := lim.AddEndpointRule("/unlimited", 1000, 60*time.Second); err != nil {
		return nil, nil, err
	}
	stats := infra.NewMemoryStatsStore(infra.WithTrackClients(trackClients))

	limit := func(endpoint, label string) func(http.Handler) http.Handler {
		return ratelimit.Middleware(ratelimit.Options{
			Limiter:            lim,
			Stats:              stats,
			EndpointFn:         ratelimit.StaticEndpoint(endpoint),
			TrustXForwardedFor: true,
			Logger:             logger,
			DenyMessage: func(domain.Key) string {
				return "Rate limit exceeded for " + label + " endpoint. Please try again later."
			},
		})
	}

	r := chi.NewRouter()
	r.With(limit("/", "default")).Get("/", message("Welcome to the homepage! (Default Rate Limit)"))
	r.With(limit("/limited", "/limited")).Get("/limited", message("This is a limited endpoint. (2 requests per 10 seconds)"))
	r.With(limit("/unlimited", "/unlimited")).Get("/unlimited", message("This endpoint is effectively unlimited."))
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := statsBody{Total: stats.Total(), Endpoints: stats.ByEndpoint()}
		if trackClients {
			body.Clients = stats.ByClient()
		}
		_ = json.NewEncoder(w).Encode(body)
	})

	return r, lim, nil
}

func message(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(messageBody{Message: text})
	}
}
