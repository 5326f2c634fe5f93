package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/dashboard/handler"
	"github.com/xela07ax/secure-access-dashboard/internal/dashboard/server"
	"github.com/xela07ax/secure-access-dashboard/internal/infra/auth"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(parent context.Context) error {
	// Контекст для управления жизненным циклом: SIGINT/SIGTERM запускают остановку
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := buildApp(ctx, cfg, reg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	dashH, err := handler.NewDashboardHandler(a.service, a.translator, cfg.Dashboard.Author, logger)
	if err != nil {
		return err
	}
	creds := auth.Credentials{Username: cfg.Auth.Username, PasswordHash: []byte(cfg.Auth.PasswordHash)}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.NewDashboardServer(logger, creds, dashH),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 2)
	servers := []*http.Server{srv}

	// Экспортируем метрики для Prometheus на отдельном порту
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		servers = append(servers, metricsSrv)

		go func() {
			logger.Info("metrics server started", zap.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	go func() {
		logger.Info("dashboard started", zap.String("addr", srv.Addr), zap.String("lang", a.translator.Lang()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("dashboard server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("server failed", zap.Error(runErr))
	}

	// Graceful Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("forced shutdown", zap.String("addr", s.Addr), zap.Error(err))
		}
	}
	return runErr
}
