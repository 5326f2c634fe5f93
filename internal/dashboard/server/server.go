package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/dashboard/handler"
	"github.com/xela07ax/secure-access-dashboard/internal/infra"
	"github.com/xela07ax/secure-access-dashboard/internal/infra/auth"
)

type DashboardServer struct {
	router *chi.Mux
	logger *zap.Logger
	creds  auth.Credentials

	dashHandler *handler.DashboardHandler // /, /api/v1/*, /logos/*
}

// NewDashboardServer инициализирует роутер дашборда со всеми зависимостями
func NewDashboardServer(logger *zap.Logger, creds auth.Credentials, dashH *handler.DashboardHandler) *DashboardServer {
	s := &DashboardServer{
		router:      chi.NewRouter(),
		logger:      logger.Named("dashboard-http"),
		creds:       creds,
		dashHandler: dashH,
	}

	s.routes()
	return s
}

func (s *DashboardServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(infra.TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Get("/health", s.dashHandler.Health)

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Basic Auth, если включен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.creds, s.logger))

		r.Get("/", s.dashHandler.Page)
		r.Get("/logos/{n}", s.dashHandler.GetLogo)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/enrollment", s.dashHandler.GetEnrollment)
			r.Get("/tunnels", s.dashHandler.GetTunnels)
			r.Get("/activity", s.dashHandler.GetActivity)
			r.Post("/cache/flush", s.dashHandler.FlushCache)
		})
	})
}

// accessLog пишет запросы в zap вместо стандартного middleware.Logger
func (s *DashboardServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			s.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote", r.RemoteAddr),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// ServeHTTP позволяет использовать DashboardServer как стандартный http.Handler
func (s *DashboardServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
