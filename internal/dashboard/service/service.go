// Package service собирает представления дашборда из Secure Access API,
// кэша ответов и снимков активности ZTNA.
package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/cache"
	"github.com/xela07ax/secure-access-dashboard/internal/domain"
	"github.com/xela07ax/secure-access-dashboard/internal/infra"
	"github.com/xela07ax/secure-access-dashboard/internal/report"
	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
)

// SecureAccessAPI описывает, что сервису нужно от клиента Secure Access.
type SecureAccessAPI interface {
	ZTNASource
	Identities(ctx context.Context) ([]secureaccess.Identity, error)
	UserSummaries(ctx context.Context, ids []int64) ([]secureaccess.UserSummary, error)
	VPNUserConnections(ctx context.Context) ([]secureaccess.VPNConnection, int, error)
	PrivateResources(ctx context.Context) ([]string, error)
}

// Overview — все три раздела страницы. Ошибка одного раздела не скрывает остальные.
type Overview struct {
	Enrollment    *domain.EnrollmentView
	EnrollmentErr error
	Tunnels       *domain.TunnelView
	TunnelsErr    error
	Activity      *domain.ActivityView
	ActivityErr   error
}

type DashboardService struct {
	api       SecureAccessAPI
	cache     *cache.Cache
	collector *Collector
	logos     Logos
	location  *time.Location
	now       func() time.Time
	metrics   *infra.Metrics
	logger    *zap.Logger
}

func NewDashboardService(
	api SecureAccessAPI,
	c *cache.Cache,
	collector *Collector,
	logos Logos,
	location *time.Location,
	metrics *infra.Metrics,
	logger *zap.Logger,
) *DashboardService {
	if location == nil {
		location = time.UTC
	}
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &DashboardService{
		api:       api,
		cache:     c,
		collector: collector,
		logos:     logos,
		location:  location,
		now:       time.Now,
		metrics:   metrics,
		logger:    logger.Named("dashboard"),
	}
}

func (s *DashboardService) Logos() Logos {
	return s.logos
}

func (s *DashboardService) Location() *time.Location {
	return s.location
}

// Enrollment строит отчет по enrollment пользователей AD.
func (s *DashboardService) Enrollment(ctx context.Context) (*domain.EnrollmentView, error) {
	defer s.observe("enrollment")()

	identities, err := cache.Remember(ctx, s.cache, infra.CacheKeyIdentities, s.api.Identities)
	if err != nil {
		return nil, fmt.Errorf("dashboard: fetch identities: %w", err)
	}

	ids := make([]int64, len(identities))
	for i, id := range identities {
		ids[i] = id.ID
	}

	summaries, err := cache.Remember(ctx, s.cache, summariesKey(ids),
		func(ctx context.Context) ([]secureaccess.UserSummary, error) {
			return s.api.UserSummaries(ctx, ids)
		})
	if err != nil {
		return nil, fmt.Errorf("dashboard: fetch user summaries: %w", err)
	}

	view := report.BuildEnrollment(identities, summaries)
	return &view, nil
}

type vpnPage struct {
	Connections []secureaccess.VPNConnection `json:"connections"`
	Total       int                          `json:"total"`
}

// Tunnels строит таблицу machine tunnel подключений. Имена пользователей берутся
// из отчета enrollment; если он недоступен, пользователи остаются "Unknown".
func (s *DashboardService) Tunnels(ctx context.Context) (*domain.TunnelView, error) {
	enrollment, err := s.Enrollment(ctx)
	return s.tunnels(ctx, s.identifierMap(ctx, enrollment, err))
}

func (s *DashboardService) tunnels(ctx context.Context, idmap map[string]string) (*domain.TunnelView, error) {
	defer s.observe("tunnels")()

	page, err := cache.Remember(ctx, s.cache, infra.CacheKeyVPNConnections,
		func(ctx context.Context) (vpnPage, error) {
			conns, total, err := s.api.VPNUserConnections(ctx)
			return vpnPage{Connections: conns, Total: total}, err
		})
	if err != nil {
		return nil, fmt.Errorf("dashboard: fetch vpn connections: %w", err)
	}

	view := report.BuildTunnels(page.Connections, page.Total, idmap, s.now(), s.location)
	return &view, nil
}

// identifierMap — соответствие идентификатор -> имя из уже построенного отчета enrollment.
func (s *DashboardService) identifierMap(ctx context.Context, enrollment *domain.EnrollmentView, err error) map[string]string {
	if err != nil || enrollment == nil {
		s.logger.Warn("tunnel users are not resolved", zap.String("trace_id", infra.TraceID(ctx)), zap.Error(err))
		return nil
	}
	return report.IdentifierMap(enrollment.Enrolled)
}

// Activity догружает активность ZTNA за день и считает обращения к приватным приложениям.
func (s *DashboardService) Activity(ctx context.Context) (*domain.ActivityView, error) {
	defer s.observe("activity")()

	events, window, err := s.collector.Collect(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("dashboard: collect ztna activity: %w", err)
	}

	resources, err := cache.Remember(ctx, s.cache, infra.CacheKeyPrivateResources, s.api.PrivateResources)
	if err != nil {
		return nil, fmt.Errorf("dashboard: fetch private resources: %w", err)
	}

	view := report.BuildActivity(events, resources, window)
	return &view, nil
}

// Overview собирает все разделы последовательно, чтобы не превышать лимит API.
func (s *DashboardService) Overview(ctx context.Context) Overview {
	var o Overview
	o.Enrollment, o.EnrollmentErr = s.Enrollment(ctx)
	// Отчет enrollment уже построен (или упал): повторно идентичности не запрашиваем
	o.Tunnels, o.TunnelsErr = s.tunnels(ctx, s.identifierMap(ctx, o.Enrollment, o.EnrollmentErr))
	o.Activity, o.ActivityErr = s.Activity(ctx)

	for view, err := range map[string]error{"enrollment": o.EnrollmentErr, "tunnels": o.TunnelsErr, "activity": o.ActivityErr} {
		if err != nil {
			s.logger.Error("dashboard view failed",
				zap.String("view", view), zap.String("trace_id", infra.TraceID(ctx)), zap.Error(err))
		}
	}
	return o
}

// FlushCache сбрасывает кэш ответов API; снимки ZTNA не трогаются.
func (s *DashboardService) FlushCache(ctx context.Context) error {
	if err := s.cache.Flush(ctx); err != nil {
		return fmt.Errorf("dashboard: flush cache: %w", err)
	}
	s.logger.Info("cache flushed", zap.String("trace_id", infra.TraceID(ctx)))
	return nil
}

func (s *DashboardService) observe(view string) func() {
	start := time.Now()
	return func() {
		s.metrics.RenderDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
	}
}

// summariesKey привязывает сводки к набору идентичностей, из которого они запрошены.
func summariesKey(ids []int64) string {
	h := fnv.New64a()
	for _, id := range ids {
		h.Write(strconv.AppendInt(nil, id, 10))
		h.Write([]byte{','})
	}
	return infra.CacheKeyUserSummaries + ":" + strconv.FormatUint(h.Sum64(), 16)
}
