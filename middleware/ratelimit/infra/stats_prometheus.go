package infra

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sliding-gateway/middleware/ratelimit/domain"
)

// PrometheusStatsStore exporta as decisões como métricas Prometheus.
//
// Rótulos por endpoint apenas; o cliente fica de fora para não explodir cardinalidade.
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
	usage     *prometheus.HistogramVec
}

// fração da janela ocupada após a decisão (count/limit)
var usageBuckets = []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1}

func NewPrometheusStatsStore(reg prometheus.Registerer, namespace string) *PrometheusStatsStore {
	factory := promauto.With(reg)
	return &PrometheusStatsStore{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_decisions_total",
				Help:      "Rate limit decisions by endpoint and outcome",
			},
			[]string{"endpoint", "decision"},
		),
		usage: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ratelimit_window_usage_ratio",
				Help:      "Share of the endpoint limit used in the client window after each decision",
				Buckets:   usageBuckets,
			},
			[]string{"endpoint"},
		),
	}
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	decision := "denied"
	if ev.Allowed {
		decision = "allowed"
	}
	s.decisions.WithLabelValues(ev.Key.Endpoint, decision).Inc()
	if ev.Limit > 0 {
		s.usage.WithLabelValues(ev.Key.Endpoint).Observe(float64(ev.Count) / float64(ev.Limit))
	}
	return nil
}

// RegisterGaugeFunc expõe um valor lido sob demanda (ex: chaves rastreadas, vagas em uso).
func RegisterGaugeFunc(reg prometheus.Registerer, namespace, name, help string, fn func() int) {
	promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		func() float64 { return float64(fn()) },
	)
}
