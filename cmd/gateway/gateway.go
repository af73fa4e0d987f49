package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sliding-gateway/internal/config"
	"sliding-gateway/middleware/ratelimit"
	"sliding-gateway/middleware/ratelimit/domain"
	"sliding-gateway/middleware/ratelimit/infra"
)

type gateway struct {
	handler http.Handler
	limiter *infra.SlidingLog // nil quando rate.enabled=false
	pool    *infra.SlotPool   // nil quando concurrency.max=0
}

func newGateway(cfg *config.Config, logger *zap.Logger, stats domain.StatsStore, reg prometheus.Registerer) (*gateway, error) {
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream_url: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	gw := &gateway{}
	h := http.Handler(proxy)

	if cfg.Concurrency.Max > 0 {
		gw.pool = infra.NewSlotPool(cfg.Concurrency.Max)
		h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Pool:           gw.pool,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.Concurrency.Timeout,
			Logger:         logger,
		})(h)
	}

	if cfg.Rate.Enabled {
		gw.limiter, err = newLimiter(cfg.Rate, logger)
		if err != nil {
			return nil, err
		}

		var endpointFn ratelimit.EndpointFunc = ratelimit.PathEndpoint
		if cfg.Rate.UnmatchedEndpoint != "" {
			endpointFn = ratelimit.RuleEndpoint(gw.limiter.Rules(), cfg.Rate.UnmatchedEndpoint)
		}

		h = ratelimit.Middleware(ratelimit.Options{
			Limiter:             gw.limiter,
			Stats:               stats,
			EndpointFn:          endpointFn,
			KeyHeader:           cfg.Rate.KeyHeader,
			TrustXForwardedFor:  cfg.Rate.TrustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.Rate.RetryAfter,
			AddRateLimitHeaders: cfg.Rate.AddHeaders,
			Logger:              logger,
			DenyLogEvery:        cfg.Rate.DenyLogEvery,
		})(h)
	}

	if reg != nil {
		ns := cfg.Metrics.Namespace
		if gw.limiter != nil {
			infra.RegisterGaugeFunc(reg, ns, "ratelimit_tracked_keys",
				"Client/endpoint logs currently held in memory", gw.limiter.Len)
		}
		if gw.pool != nil {
			infra.RegisterGaugeFunc(reg, ns, "concurrency_in_flight",
				"Requests currently holding a concurrency slot", gw.pool.InUse)
		}
	}

	gw.handler = h
	return gw, nil
}

func newLimiter(rc config.RateConfig, logger *zap.Logger) (*infra.SlidingLog, error) {
	def, rules, err := rc.Rules()
	if err != nil {
		return nil, err
	}

	lim, err := infra.NewSlidingLog(def,
		infra.WithShards(rc.Shards),
		infra.WithMaxKeys(rc.MaxKeys),
		infra.WithCleanupEvery(rc.CleanupEvery),
		infra.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	for ep, r := range rules {
		if err := lim.AddEndpointRule(ep, r.Limit, r.Window); err != nil {
			return nil, err
		}
	}
	return lim, nil
}

func (gw *gateway) logSettings(logger *zap.Logger, cfg *config.Config) {
	if gw.limiter == nil {
		logger.Info("rate limit", zap.Bool("enabled", false))
	} else {
		logger.Info("rate limit",
			zap.Bool("enabled", true),
			zap.Stringer("default_rule", gw.limiter.Rules().Default()),
			zap.Strings("endpoints", gw.endpoints()),
			zap.String("key_header", cfg.Rate.KeyHeader),
			zap.Bool("trust_xff", cfg.Rate.TrustXFF),
			zap.Int("max_keys", cfg.Rate.MaxKeys),
			zap.Duration("cleanup_every", gw.limiter.CleanupEvery()))
	}

	if gw.pool == nil {
		logger.Info("concurrency", zap.Bool("enabled", false))
		return
	}
	logger.Info("concurrency",
		zap.Bool("enabled", true),
		zap.Int("capacity", gw.pool.Capacity()),
		zap.Duration("acquire_timeout", cfg.Concurrency.Timeout))
}

func (gw *gateway) endpoints() []string {
	if gw.limiter == nil {
		return nil
	}
	var eps []string
	for ep, r := range gw.limiter.Rules().Endpoints() {
		eps = append(eps, ep+"="+r.String())
	}
	sort.Strings(eps)
	return eps
}

// newStats monta os destinos de estatística habilitados. Sem nenhum, devolve nil.
func newStats(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (domain.StatsStore, func(), error) {
	var sinks infra.MultiStatsStore
	closeFn := func() {}

	if cfg.Stats.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.Redis.Addr,
			Password: cfg.Stats.Redis.Password,
			DB:       cfg.Stats.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis stats ping error: %w", err)
		}

		closeFn = func() { _ = rdb.Close() }
		sinks = append(sinks, infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackClients(cfg.Stats.TrackClients),
			infra.WithStatsTrackRoutes(cfg.Stats.TrackRoutes),
		))
	}

	if reg != nil {
		sinks = append(sinks, infra.NewPrometheusStatsStore(reg, cfg.Metrics.Namespace))
	}

	switch len(sinks) {
	case 0:
		return nil, closeFn, nil
	case 1:
		return sinks[0], closeFn, nil
	}
	return sinks, closeFn, nil
}
