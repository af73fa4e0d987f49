package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"sliding-gateway/internal/config"
)

func testConfig(upstream string) *config.Config {
	return &config.Config{
		UpstreamURL: upstream,
		Rate: config.RateConfig{
			Enabled:       true,
			DefaultLimit:  3,
			DefaultWindow: time.Minute,
			EndpointRules: "/limited=1/1m",
			CleanupEvery:  time.Minute,
		},
		Concurrency: config.ConcurrencyConfig{Max: 10},
		Stats:       config.StatsConfig{Bucket: "minute"},
		Metrics:     config.MetricsConfig{Namespace: "gw"},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "http://gateway"+path, nil)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestGateway_ProxiesAndLimitsPerEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "upstream "+r.URL.Path)
	}))
	defer upstream.Close()

	reg := prometheus.NewRegistry()
	cfg := testConfig(upstream.URL)
	stats, closeStats, err := newStats(context.Background(), cfg, reg)
	require.NoError(t, err)
	defer closeStats()

	gw, err := newGateway(cfg, zap.NewNop(), stats, reg)
	require.NoError(t, err)

	w := get(t, gw.handler, "/limited")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "upstream /limited", w.Body.String())

	w = get(t, gw.handler, "/limited")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "/limited"))

	// endpoint diferente tem log próprio
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, get(t, gw.handler, "/").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, get(t, gw.handler, "/").Code)

	assert.Equal(t, 2, gw.limiter.Len())
	assert.Equal(t, []string{"/limited=1 req/1m0s"}, gw.endpoints())

	n, err := testutil.GatherAndCount(reg, "gw_ratelimit_decisions_total", "gw_ratelimit_tracked_keys", "gw_concurrency_in_flight")
	require.NoError(t, err)
	// 2 endpoints x allowed/denied + 2 gauges
	assert.Equal(t, 6, n)
}

func TestGateway_UnmatchedEndpointGroupsPaths(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	cfg := testConfig(upstream.URL)
	cfg.Rate.UnmatchedEndpoint = "*"
	gw, err := newGateway(cfg, zap.NewNop(), nil, nil)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, get(t, gw.handler, "/a").Code)
	require.Equal(t, http.StatusOK, get(t, gw.handler, "/b").Code)
	require.Equal(t, http.StatusOK, get(t, gw.handler, "/c").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, gw.handler, "/d").Code)
	assert.Equal(t, 1, gw.limiter.Len())
}

func TestGateway_RateDisabled(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	cfg := testConfig(upstream.URL)
	cfg.Rate.Enabled = false
	cfg.Concurrency.Max = 0
	gw, err := newGateway(cfg, zap.NewNop(), nil, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, get(t, gw.handler, "/limited").Code)
	}
	assert.Nil(t, gw.limiter)
	assert.Nil(t, gw.pool)
}

func TestGateway_BadUpstream(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	gw, err := newGateway(cfg, zap.NewNop(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadGateway, get(t, gw.handler, "/").Code)
}

func TestGateway_LogSettings(t *testing.T) {
	cfg := testConfig("http://upstream:8000")
	cfg.Concurrency.Max = 7
	gw, err := newGateway(cfg, zap.NewNop(), nil, nil)
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	gw.logSettings(zap.New(core), cfg)

	rate := logs.FilterMessage("rate limit").All()
	require.Len(t, rate, 1)
	fields := rate[0].ContextMap()
	assert.Equal(t, "3 req/1m0s", fields["default_rule"])
	assert.Equal(t, time.Minute, fields["cleanup_every"])

	conc := logs.FilterMessage("concurrency").All()
	require.Len(t, conc, 1)
	assert.Equal(t, int64(7), conc[0].ContextMap()["capacity"])
}
