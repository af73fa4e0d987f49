package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sliding-gateway/internal/config"
	"sliding-gateway/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile, envFile string
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Reverse proxy with per-endpoint sliding window rate limiting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// .env é opcional; variáveis já exportadas têm precedência
			if err := godotenv.Load(envFile); err != nil && envFile != ".env" {
				return fmt.Errorf("loading env file %s: %w", envFile, err)
			}

			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return run(cmd.Context(), cfg, logger)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("listen-addr", ":8080", "address the gateway listens on")
	flags.String("upstream-url", "", "upstream base URL")
	flags.String("endpoint-rules", "", `per-endpoint rules, e.g. "/limited=2/10s,/unlimited=1000/60s"`)
	flags.String("log-level", "info", "debug, info, warn or error")

	_ = v.BindPFlag("listen_addr", flags.Lookup("listen-addr"))
	_ = v.BindPFlag("upstream_url", flags.Lookup("upstream-url"))
	_ = v.BindPFlag("rate.endpoint_rules", flags.Lookup("endpoint-rules"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))

	return cmd
}

func run(parent context.Context, cfg *config.Config, logger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// registerer fica nil (interface) quando métricas estão desligadas
	var (
		reg        *prometheus.Registry
		registerer prometheus.Registerer
	)
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		registerer = reg
	}

	stats, closeStats, err := newStats(ctx, cfg, registerer)
	if err != nil {
		return err
	}
	defer closeStats()

	gw, err := newGateway(cfg, logger, stats, registerer)
	if err != nil {
		return err
	}
	if gw.limiter != nil {
		gw.limiter.StartJanitor(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}

	servers := []*http.Server{srv}
	if reg != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, s := range servers {
			_ = s.Shutdown(shutdownCtx)
		}
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("upstream", cfg.UpstreamURL))
	gw.logSettings(logger, cfg)

	errCh := make(chan error, len(servers))
	for i, s := range servers {
		if i > 0 {
			logger.Info("metrics listening", zap.String("addr", s.Addr))
		}
		go func(s *http.Server) {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", s.Addr, err)
				return
			}
			errCh <- nil
		}(s)
	}

	var firstErr error
	for range servers {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	if firstErr != nil {
		return firstErr
	}
	logger.Info("gateway stopped")
	return nil
}
