package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/cache"
	"github.com/xela07ax/secure-access-dashboard/internal/dashboard/service"
	"github.com/xela07ax/secure-access-dashboard/internal/i18n"
	"github.com/xela07ax/secure-access-dashboard/internal/infra"
	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
	"github.com/xela07ax/secure-access-dashboard/internal/snapshot"
)

// app — собранные зависимости дашборда.
type app struct {
	service    *service.DashboardService
	translator *i18n.Translator
	closers    []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

// buildApp собирает слои (Dependency Injection) по конфигу.
func buildApp(ctx context.Context, cfg *infra.Config, reg prometheus.Registerer, logger *zap.Logger) (*app, error) {
	a := &app{}

	loc, err := time.LoadLocation(cfg.Dashboard.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Dashboard.Timezone, err)
	}

	a.translator, err = i18n.New(cfg.Dashboard.Language)
	if err != nil {
		return nil, err
	}

	metrics := infra.NewMetrics(reg)

	if !cfg.SecureAccess.HasCredentials() {
		logger.Warn("secure access credentials are not configured, views will report the error")
	}
	client := secureaccess.NewClient(cfg.SecureAccess, metrics, logger)

	store, err := newCacheStore(ctx, cfg.Cache, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	apiCache := cache.New(store, cfg.Cache.TTL, metrics, logger)

	snapshots, err := newSnapshotStore(ctx, cfg.Snapshot, logger, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	collector := service.NewCollector(client, snapshots, service.CollectorConfig{
		Location:     loc,
		DayStartHour: cfg.Dashboard.DayStartHour,
		PageSize:     cfg.SecureAccess.ZTNAPageSize,
		MaxOffset:    cfg.SecureAccess.ZTNAMaxOffset,
	}, metrics, logger)

	logos := service.LoadLogos(logger, cfg.Dashboard.Logo1Path, cfg.Dashboard.Logo2Path)

	a.service = service.NewDashboardService(client, apiCache, collector, logos, loc, metrics, logger)
	return a, nil
}

func newCacheStore(ctx context.Context, cfg infra.CacheConfig, a *app) (cache.Store, error) {
	if cfg.Backend != "redis" {
		return cache.NewMemoryStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	a.closers = append(a.closers, rdb.Close)

	store := cache.NewRedisStore(rdb)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Addr, err)
	}
	return store, nil
}

func newSnapshotStore(ctx context.Context, cfg infra.SnapshotConfig, logger *zap.Logger, a *app) (snapshot.Store, error) {
	if cfg.Backend != "postgres" {
		return snapshot.NewFileStore(cfg.Dir, logger), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	store, err := snapshot.NewPostgresStore(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}
